package api

import (
	"time"

	"github.com/hdsoft/unisearch/pkg/aggregate"
	"github.com/hdsoft/unisearch/pkg/chart"
	"github.com/hdsoft/unisearch/pkg/fields"
	"github.com/hdsoft/unisearch/pkg/payload"
	"github.com/hdsoft/unisearch/pkg/session"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	BugReport string `json:"bug_report,omitempty"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

type SearchRequest struct {
	Query string `json:"query"`
}

type SearchResponse struct {
	Query   string           `json:"query"`
	Summary session.Summary  `json:"summary"`
	Data    *payload.Payload `json:"data"`
}

type TabRequest struct {
	Tab string `json:"tab"`
}

type FieldsResponse struct {
	Fields       []payload.FieldDescriptor `json:"fields"`
	Defaults     fields.Defaults           `json:"defaults"`
	Aggregations []aggregate.Kind          `json:"aggregations"`
}

type ChartResponse struct {
	Chart        chart.Config              `json:"chart"`
	Definition   payload.ChartDefinition   `json:"definition"`
	Fields       []payload.FieldDescriptor `json:"fields"`
	Aggregations []aggregate.Kind          `json:"aggregations"`
}

type FavoriteRequest struct {
	Query string `json:"query"`
}

type ListFavoritesResponse struct {
	Favorites []payload.Favorite `json:"favorites"`
	Count     int                `json:"count"`
}

type ListReportsResponse struct {
	Reports []session.ReportSummary `json:"reports"`
	Count   int                     `json:"count"`
}

type HistoryEntry struct {
	ID          int64     `json:"id"`
	Query       string    `json:"query"`
	Shape       string    `json:"shape,omitempty"`
	RecordCount int       `json:"record_count"`
	Error       string    `json:"error,omitempty"`
	DurationMS  int64     `json:"duration_ms"`
	SearchedAt  time.Time `json:"searched_at"`
}

type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
	Count   int            `json:"count"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
}
