package components

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/hdsoft/unisearch/cmd/web/components/types"
	"github.com/hdsoft/unisearch/pkg/session"
)

// ChartURL builds the image URL for a chart selection. The API reads the
// same query parameters.
func ChartURL(sel types.ChartSelection, format string) string {
	q := selectionValues(sel)
	q.Set("format", format)
	return "/api/chart?" + q.Encode()
}

// ChartPageURL opens the chart tab of the search page for query.
func ChartPageURL(query string, sel types.ChartSelection) string {
	q := selectionValues(sel)
	q.Set("q", query)
	q.Set("tab", "chart")
	return "/?" + q.Encode()
}

func selectionValues(sel types.ChartSelection) url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("visualization", sel.Visualization)
	set("dimension", sel.Dimension)
	set("measure", sel.Measure)
	set("series", sel.Series)
	set("aggregation", sel.Aggregation)
	if sel.Stacked {
		q.Set("stacked", "true")
	}
	if sel.Cumulated {
		q.Set("cumulated", "true")
	}
	return q
}

// SearchURL links to the search page for query.
func SearchURL(query string) string {
	return "/?" + url.Values{"q": {query}}.Encode()
}

var resultTabs = []session.Tab{session.TabResults, session.TabChart}

func tabURL(query string, t session.Tab) string {
	return SearchURL(query) + "&tab=" + string(t)
}

func tabLabel(t session.Tab, total int) string {
	if t == session.TabResults {
		return fmt.Sprintf("Results (%d)", total)
	}
	return "Chart"
}

func hiddenLabel(n int) string {
	return fmt.Sprintf("%d more records not shown", n)
}

// selectionFields lists the hidden inputs carried by the save-report form.
func selectionFields(sel types.ChartSelection) [][2]string {
	return [][2]string{
		{"visualization", sel.Visualization},
		{"dimension", sel.Dimension},
		{"measure", sel.Measure},
		{"series", sel.Series},
		{"aggregation", sel.Aggregation},
	}
}

func favoriteDeleteURL(id int) string {
	return "/favorites/" + itoa(id) + "/delete"
}

func reportChartURL(id int) string {
	return "/api/reports/" + itoa(id) + "/chart?format=svg"
}

func reportActionURL(id int, action string) string {
	return "/reports/" + itoa(id) + "/" + action
}

func historyTime(h types.HistoryRow) string {
	return h.SearchedAt.Local().Format("2006-01-02 15:04")
}

func historySummary(h types.HistoryRow) string {
	return fmt.Sprintf("%s, %d records", h.Shape, h.RecordCount)
}

func historyTook(h types.HistoryRow) string {
	return h.Took.Round(time.Millisecond).String()
}

func itoa(i int) string { return strconv.Itoa(i) }
