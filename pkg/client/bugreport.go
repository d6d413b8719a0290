package client

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BugReport is a pre-filled support mail offered after a transport error.
type BugReport struct {
	Recipient string
	Query     string
	ErrorText string
	Time      time.Time
	Reference string
}

func NewBugReport(recipient, query string, err error, now time.Time) BugReport {
	text := ""
	if err != nil {
		text = err.Error()
	}
	return BugReport{
		Recipient: recipient,
		Query:     query,
		ErrorText: text,
		Time:      now.UTC(),
		Reference: uuid.New().String(),
	}
}

func (b BugReport) Subject() string {
	return fmt.Sprintf("Universal search error report [%s]", b.Reference[:8])
}

func (b BugReport) Body() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Reference: %s\n", b.Reference)
	fmt.Fprintf(&sb, "Time: %s\n", b.Time.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Query: %s\n", b.Query)
	fmt.Fprintf(&sb, "Error: %s\n\n", b.ErrorText)
	sb.WriteString("Steps to reproduce / additional details:\n")
	return sb.String()
}

// MailtoURL returns a mailto link with subject and body filled in.
func (b BugReport) MailtoURL() string {
	q := url.Values{}
	q.Set("subject", b.Subject())
	q.Set("body", b.Body())
	// Mail clients expect %20 rather than + for spaces.
	encoded := strings.ReplaceAll(q.Encode(), "+", "%20")
	return "mailto:" + url.PathEscape(b.Recipient) + "?" + encoded
}
