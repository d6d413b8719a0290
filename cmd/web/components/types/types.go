package types

import (
	"time"

	"github.com/hdsoft/unisearch/pkg/payload"
	"github.com/hdsoft/unisearch/pkg/session"
)

// PageData represents data passed to templates
type PageData struct {
	Title     string
	Query     string
	State     session.State
	Error     string
	BugReport string // mailto link offered next to backend errors
	Success   string
	Version   string // Application version (for footer display)

	// Results tab
	Models []ModelTable
	Total  int

	// Chart tab
	Fields       []payload.FieldDescriptor
	Selection    ChartSelection
	Aggregations []string
	ChartURL     string

	Favorites []payload.Favorite
	Reports   []payload.SavedReport
	History   []HistoryRow
}

// ModelTable is one table of records on the results tab.
type ModelTable struct {
	Title   string
	Columns []payload.FieldDescriptor
	Rows    [][]string
	Hidden  int // records not shown
}

// ChartSelection mirrors the report dialog controls.
type ChartSelection struct {
	Visualization string
	Dimension     string
	Measure       string
	Series        string
	Aggregation   string
	Stacked       bool
	Cumulated     bool
}

// HistoryRow is a past search for display
type HistoryRow struct {
	Query       string
	Shape       string
	RecordCount int
	Failed      bool
	SearchedAt  time.Time
	Took        time.Duration
}
