package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hdsoft/unisearch/pkg/payload"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "nested", "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestFavoritesReplaceWholesale(t *testing.T) {
	c := openTestCache(t)

	first := []payload.Favorite{
		{ID: 1, Name: "old", QueryText: "old query", CreateDate: "2024-01-01T00:00:00"},
		{ID: 2, QueryText: "newer", CreateDate: "2024-02-01T00:00:00"},
	}
	if err := c.ReplaceFavorites(first); err != nil {
		t.Fatalf("ReplaceFavorites: %v", err)
	}
	got, err := c.Favorites()
	if err != nil {
		t.Fatalf("Favorites: %v", err)
	}
	if len(got) != 2 || got[0].ID != 2 {
		t.Fatalf("favorites = %+v, want newest first", got)
	}

	if err := c.ReplaceFavorites(first[:1]); err != nil {
		t.Fatal(err)
	}
	got, _ = c.Favorites()
	if len(got) != 1 || got[0].Name != "old" {
		t.Fatalf("favorites after replace = %+v", got)
	}
}

func TestReportsRoundTripCompressed(t *testing.T) {
	c := openTestCache(t)
	data := payload.MustParse(`{"records":[{"region":"North","qty":2}],"chartDefinition":{"dimensionField":"region","measureField":"qty","aggregationType":"sum","seriesField":null,"fieldTypes":{"qty":"number"}}}`)

	reports := []payload.SavedReport{{
		ID:                7,
		Name:              "Qty by region",
		QueryText:         "qty by region",
		VisualizationType: "bar",
		Config:            payload.ReportConfig{Stacked: true, DimensionField: "region"},
		Data:              data,
		CreateDate:        "2024-03-01T10:00:00",
	}}
	if err := c.ReplaceReports(reports); err != nil {
		t.Fatalf("ReplaceReports: %v", err)
	}

	var stored []byte
	if err := c.DB().QueryRow("SELECT data FROM reports WHERE id = 7").Scan(&stored); err != nil {
		t.Fatal(err)
	}
	if len(stored) < 4 || stored[0] != 0x28 || stored[1] != 0xb5 || stored[2] != 0x2f || stored[3] != 0xfd {
		t.Errorf("report data is not zstd framed: % x", stored)
	}

	list, err := c.Reports()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Data != nil || !list[0].Config.Stacked {
		t.Fatalf("Reports() = %+v", list)
	}

	r, err := c.Report(7)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	def, ok := r.Data.ChartDefinition()
	if !ok || def.DimensionField != "region" {
		t.Errorf("definition = %+v, ok=%v", def, ok)
	}
	if len(r.Data.Records()) != 1 {
		t.Errorf("records = %d", len(r.Data.Records()))
	}

	if _, err := c.Report(99); !errors.Is(err, ErrNotFound) {
		t.Errorf("Report(99) err = %v, want ErrNotFound", err)
	}
}

func TestHistory(t *testing.T) {
	c := openTestCache(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	entries := []SearchEntry{
		{QueryText: "Sales by month", Shape: "aggregation", RecordCount: 12, SearchedAt: base},
		{QueryText: "open invoices", Shape: "plain-records", RecordCount: 40, SearchedAt: base.Add(time.Hour)},
		{QueryText: "sales per region", Error: "timeout", Duration: 1500 * time.Millisecond, SearchedAt: base.Add(2 * time.Hour)},
	}
	for _, e := range entries {
		if _, err := c.RecordSearch(e); err != nil {
			t.Fatalf("RecordSearch: %v", err)
		}
	}

	all, err := c.History(HistoryParams{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].QueryText != "sales per region" {
		t.Fatalf("history = %+v", all)
	}
	if all[0].Duration != 1500*time.Millisecond || all[0].Error != "timeout" {
		t.Errorf("entry = %+v", all[0])
	}

	sales, _ := c.History(HistoryParams{Query: "SALES"})
	if len(sales) != 2 {
		t.Errorf("matching entries = %d, want 2", len(sales))
	}

	recent, _ := c.History(HistoryParams{Since: base.Add(30 * time.Minute)})
	if len(recent) != 2 {
		t.Errorf("recent entries = %d, want 2", len(recent))
	}

	page2, _ := c.History(HistoryParams{Page: 2, Limit: 2})
	if len(page2) != 1 || page2[0].QueryText != "Sales by month" {
		t.Errorf("page 2 = %+v", page2)
	}

	n, err := c.ClearHistory(base.Add(90 * time.Minute))
	if err != nil || n != 2 {
		t.Errorf("ClearHistory = %d, %v", n, err)
	}
}

func TestStats(t *testing.T) {
	c := openTestCache(t)
	fixed := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	if err := c.ReplaceFavorites([]payload.Favorite{{ID: 1, QueryText: "q"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.RecordSearch(SearchEntry{QueryText: "q"}); err != nil {
		t.Fatal(err)
	}

	s, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if s.Favorites != 1 || s.Reports != 0 || s.Searches != 1 {
		t.Errorf("stats = %+v", s)
	}
	if s.LastSyncedAt == nil || !s.LastSyncedAt.Equal(fixed) {
		t.Errorf("last synced = %v, want %v", s.LastSyncedAt, fixed)
	}
	if s.SchemaVersion != 2 || s.PendingMigrations != 0 {
		t.Errorf("schema version = %d, pending = %d, want 2 and 0", s.SchemaVersion, s.PendingMigrations)
	}
}
