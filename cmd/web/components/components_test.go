package components

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"

	"github.com/hdsoft/unisearch/cmd/web/components/types"
	"github.com/hdsoft/unisearch/pkg/payload"
	"github.com/hdsoft/unisearch/pkg/session"
)

func renderString(t *testing.T, ctx context.Context, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	return buf.String()
}

func assertContains(t *testing.T, body string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(body, w) {
			t.Errorf("Expected output to contain %q", w)
		}
	}
}

func TestLayoutWrapsChildren(t *testing.T) {
	ctx := templ.WithChildren(context.Background(), templ.Raw("<p>inner</p>"))
	body := renderString(t, ctx, Layout("Search <1>", "v1.2.3"))

	assertContains(t, body,
		"<title>Search &lt;1&gt;</title>",
		"<main><p>inner</p></main>",
		"<footer>unisearch v1.2.3</footer>",
		`href="/reports"`,
	)
}

func TestIndexWithResults(t *testing.T) {
	data := types.PageData{
		Title: "partners",
		Query: "partners",
		State: session.State{Query: "partners", Seq: 3, Tab: session.TabResults, HasResults: true},
		Models: []types.ModelTable{{
			Title:   "Contact",
			Columns: []payload.FieldDescriptor{{Name: "name", Type: payload.TypeString, Label: "Name"}},
			Rows:    [][]string{{"Acme & Co"}},
			Hidden:  4,
		}},
		Total:     5,
		Favorites: []payload.Favorite{{ID: 7, Name: "Partners", QueryText: "partners"}},
	}
	body := renderString(t, context.Background(), Index(data))

	assertContains(t, body,
		`name="q"`,
		`value="partners"`,
		`data-seq="3"`,
		"<h3>Contact</h3>",
		`<th data-type="string">Name</th>`,
		"<td>Acme &amp; Co</td>",
		"4 more records not shown",
		"Results (5)",
		`href="/?q=partners&amp;tab=results" class="active"`,
		`action="/favorites/7/delete"`,
	)
	if strings.Contains(body, " disabled") {
		t.Error("Expected the search button to be enabled")
	}
}

func TestIndexChartTab(t *testing.T) {
	sel := types.ChartSelection{Visualization: "bar", Dimension: "country", Measure: "amount", Series: "year", Stacked: true, Aggregation: "sum"}
	data := types.PageData{
		Query:        "sales",
		State:        session.State{Tab: session.TabChart, HasResults: true},
		Fields:       []payload.FieldDescriptor{{Name: "country", Label: "Country"}, {Name: "amount", Label: "Amount"}},
		Selection:    sel,
		Aggregations: []string{"sum", "count"},
		ChartURL:     ChartURL(sel, "svg"),
	}
	body := renderString(t, context.Background(), Index(data))

	assertContains(t, body,
		`<option value="bar" selected>bar</option>`,
		`<option value="country" selected>Country</option>`,
		`<option value="">(none)</option>`,
		`name="stacked" checked`,
		`<option value="sum" selected>sum</option>`,
		"/api/chart?",
		"dimension=country",
		`<input type="hidden" name="stacked" value="true">`,
		`placeholder="Report name"`,
	)
	if strings.Contains(body, "<td>") {
		t.Error("Expected no record tables on the chart tab")
	}
}

func TestIndexShowsBugReportLink(t *testing.T) {
	data := types.PageData{
		Query:     "x",
		Error:     "backend down",
		BugReport: "mailto:support@example.com?subject=bug",
		State:     session.State{Loading: true},
	}
	body := renderString(t, context.Background(), Index(data))

	assertContains(t, body,
		`role="alert">backend down`,
		`href="mailto:support@example.com?subject=bug"`,
		" disabled>Search</button>",
	)
	if strings.Contains(body, "Save as favorite") {
		t.Error("Expected no favorite form while an error is shown")
	}
	if strings.Contains(body, "Run a search") {
		t.Error("Expected the empty hint to be hidden while an error is shown")
	}
}

func TestReportsPage(t *testing.T) {
	data := types.PageData{
		Success: "Report saved.",
		Reports: []payload.SavedReport{{ID: 3, Name: "Partners by country", QueryText: "partners", CreateDate: "2024-05-01"}},
	}
	body := renderString(t, context.Background(), Reports(data))

	assertContains(t, body,
		"Report saved.",
		"<h3>Partners by country</h3>",
		"partners &middot; 2024-05-01",
		`src="/api/reports/3/chart?format=svg"`,
		`action="/reports/3/open"`,
		`action="/reports/3/delete"`,
	)

	empty := renderString(t, context.Background(), Reports(types.PageData{}))
	assertContains(t, empty, "No reports saved yet.")
}

func TestHistoryPage(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local)
	data := types.PageData{History: []types.HistoryRow{
		{Query: "partners", Shape: "records", RecordCount: 2, SearchedAt: at, Took: 1500 * time.Microsecond},
		{Query: "broken", Failed: true, SearchedAt: at},
	}}
	body := renderString(t, context.Background(), History(data))

	assertContains(t, body,
		"<td>2024-05-01 10:30</td>",
		`<a href="/?q=partners">partners</a>`,
		"records, 2 records",
		"<td>2ms</td>",
		`<span class="danger">failed</span>`,
	)
}

func TestUnsafeURLIsSanitized(t *testing.T) {
	data := types.PageData{Error: "oops", BugReport: "javascript:alert(1)"}
	body := renderString(t, context.Background(), History(data))
	if strings.Contains(body, "javascript:") {
		t.Error("Expected the javascript URL to be replaced")
	}
}
