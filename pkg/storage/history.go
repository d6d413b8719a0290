package storage

import (
	"fmt"
	"strings"
	"time"
)

// SearchEntry is one search run from this machine.
type SearchEntry struct {
	ID          int64
	QueryText   string
	Shape       string
	RecordCount int
	Error       string
	Duration    time.Duration
	SearchedAt  time.Time
}

// HistoryParams filters the search history.
type HistoryParams struct {
	// Query matches entries whose query text contains it, case-insensitively.
	Query string
	// Since keeps entries at or after this time when non-zero.
	Since time.Time
	// Page is 1-based; defaults to 1.
	Page int
	// Limit defaults to 30.
	Limit int
}

func (p *HistoryParams) normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = 30
	}
}

func (c *Cache) RecordSearch(e SearchEntry) (int64, error) {
	if e.SearchedAt.IsZero() {
		e.SearchedAt = c.now()
	}
	res, err := c.db.Exec(`
		INSERT INTO search_history (query_text, shape, record_count, error, duration_ms, searched_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.QueryText, e.Shape, e.RecordCount, e.Error, e.Duration.Milliseconds(), e.SearchedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("recording search: %w", err)
	}
	return res.LastInsertId()
}

// History returns matching entries, newest first.
func (c *Cache) History(params HistoryParams) ([]SearchEntry, error) {
	params.normalize()

	var where []string
	var args []any
	if q := strings.TrimSpace(params.Query); q != "" {
		where = append(where, "LOWER(query_text) LIKE ?")
		args = append(args, "%"+strings.ToLower(q)+"%")
	}
	if !params.Since.IsZero() {
		where = append(where, "searched_at >= ?")
		args = append(args, params.Since.UTC())
	}

	query := "SELECT id, query_text, shape, record_count, error, duration_ms, searched_at FROM search_history"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY searched_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, params.Limit, (params.Page-1)*params.Limit)

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []SearchEntry
	for rows.Next() {
		var e SearchEntry
		var ms int64
		if err := rows.Scan(&e.ID, &e.QueryText, &e.Shape, &e.RecordCount, &e.Error, &ms, &e.SearchedAt); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		e.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClearHistory removes entries older than before, or all when before is zero.
func (c *Cache) ClearHistory(before time.Time) (int64, error) {
	var (
		res interface{ RowsAffected() (int64, error) }
		err error
	)
	if before.IsZero() {
		res, err = c.db.Exec("DELETE FROM search_history")
	} else {
		res, err = c.db.Exec("DELETE FROM search_history WHERE searched_at < ?", before.UTC())
	}
	if err != nil {
		return 0, fmt.Errorf("clearing history: %w", err)
	}
	return res.RowsAffected()
}
