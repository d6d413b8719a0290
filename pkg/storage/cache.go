// Package storage keeps a local sqlite projection of the backend's favorites
// and reports, plus a history of searches run from this machine.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/hdsoft/unisearch/pkg/db"
	"github.com/hdsoft/unisearch/pkg/log"
	"github.com/hdsoft/unisearch/pkg/payload"
)

var ErrNotFound = errors.New("not found in cache")

var logger = log.ForService("storage")

type Cache struct {
	db    *sql.DB
	codec *codec
	now   func() time.Time
}

// Open opens (creating if needed) the cache database and migrates it.
func Open(dbPath string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA cache_size = -16000", // 16MB cache
		"PRAGMA temp_store = memory",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	if err := db.InitializeDatabase(conn); err != nil {
		conn.Close()
		return nil, err
	}

	c, err := newCodec()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Cache{db: conn, codec: c, now: time.Now}, nil
}

func (c *Cache) Close() error {
	c.codec.Close()
	return c.db.Close()
}

// DB returns the underlying connection.
func (c *Cache) DB() *sql.DB {
	return c.db
}

// inTx runs fn in a transaction, rolling back on error.
func (c *Cache) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				logger.Warnf("failed to rollback transaction: %v", err)
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	committed = true
	return nil
}

// ReplaceFavorites swaps the cached favorites for favs.
func (c *Cache) ReplaceFavorites(favs []payload.Favorite) error {
	synced := c.now().UTC()
	return c.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM favorites"); err != nil {
			return fmt.Errorf("clearing favorites: %w", err)
		}
		stmt, err := tx.Prepare(`
			INSERT INTO favorites (id, name, query_text, create_date, synced_at)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for _, f := range favs {
			if _, err := stmt.Exec(f.ID, f.Name, f.QueryText, f.CreateDate, synced); err != nil {
				return fmt.Errorf("inserting favorite %d: %w", f.ID, err)
			}
		}
		return nil
	})
}

// Favorites returns cached favorites, newest first.
func (c *Cache) Favorites() ([]payload.Favorite, error) {
	rows, err := c.db.Query(`
		SELECT id, name, query_text, create_date FROM favorites
		ORDER BY create_date DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying favorites: %w", err)
	}
	defer rows.Close()

	var favs []payload.Favorite
	for rows.Next() {
		var f payload.Favorite
		if err := rows.Scan(&f.ID, &f.Name, &f.QueryText, &f.CreateDate); err != nil {
			return nil, fmt.Errorf("scanning favorite: %w", err)
		}
		favs = append(favs, f)
	}
	return favs, rows.Err()
}

// ReplaceReports swaps the cached reports for reports. Report data is stored
// zstd compressed.
func (c *Cache) ReplaceReports(reports []payload.SavedReport) error {
	synced := c.now().UTC()
	return c.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM reports"); err != nil {
			return fmt.Errorf("clearing reports: %w", err)
		}
		stmt, err := tx.Prepare(`
			INSERT INTO reports (id, name, query_text, visualization_type, config, data, data_encoding, create_date, synced_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for _, r := range reports {
			cfg, err := json.Marshal(r.Config)
			if err != nil {
				return fmt.Errorf("encoding config of report %d: %w", r.ID, err)
			}
			var data []byte
			if r.Data != nil {
				raw, err := json.Marshal(r.Data)
				if err != nil {
					return fmt.Errorf("encoding data of report %d: %w", r.ID, err)
				}
				data = c.codec.Compress(raw)
			}
			if _, err := stmt.Exec(r.ID, r.Name, r.QueryText, r.VisualizationType, string(cfg), data, encodingZstd, r.CreateDate, synced); err != nil {
				return fmt.Errorf("inserting report %d: %w", r.ID, err)
			}
		}
		return nil
	})
}

// Reports returns cached reports without their data, newest first.
func (c *Cache) Reports() ([]payload.SavedReport, error) {
	rows, err := c.db.Query(`
		SELECT id, name, query_text, visualization_type, config, create_date FROM reports
		ORDER BY create_date DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var out []payload.SavedReport
	for rows.Next() {
		var r payload.SavedReport
		var cfg string
		if err := rows.Scan(&r.ID, &r.Name, &r.QueryText, &r.VisualizationType, &cfg, &r.CreateDate); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		if err := json.Unmarshal([]byte(cfg), &r.Config); err != nil {
			logger.Warnf("report %d has unreadable config: %v", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Report returns one cached report including its data.
func (c *Cache) Report(id int) (payload.SavedReport, error) {
	var r payload.SavedReport
	var cfg, encoding string
	var data []byte
	err := c.db.QueryRow(`
		SELECT id, name, query_text, visualization_type, config, data, data_encoding, create_date
		FROM reports WHERE id = ?
	`, id).Scan(&r.ID, &r.Name, &r.QueryText, &r.VisualizationType, &cfg, &data, &encoding, &r.CreateDate)
	if errors.Is(err, sql.ErrNoRows) {
		return payload.SavedReport{}, fmt.Errorf("report %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return payload.SavedReport{}, fmt.Errorf("querying report %d: %w", id, err)
	}

	if err := json.Unmarshal([]byte(cfg), &r.Config); err != nil {
		logger.Warnf("report %d has unreadable config: %v", id, err)
	}
	if len(data) > 0 {
		raw, err := c.codec.Decode(data, encoding)
		if err != nil {
			return payload.SavedReport{}, fmt.Errorf("decoding data of report %d: %w", id, err)
		}
		p, err := payload.Parse(raw)
		if err != nil {
			return payload.SavedReport{}, fmt.Errorf("parsing data of report %d: %w", id, err)
		}
		r.Data = p
	}
	return r, nil
}

// Stats summarizes the cache contents.
type Stats struct {
	Favorites    int        `json:"favorites"`
	Reports      int        `json:"reports"`
	Searches     int        `json:"searches"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	// SchemaVersion is the latest applied cache migration.
	SchemaVersion     int `json:"schema_version"`
	PendingMigrations int `json:"pending_migrations"`
}

func (c *Cache) Stats() (Stats, error) {
	var s Stats
	counts := []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM favorites", &s.Favorites},
		{"SELECT COUNT(*) FROM reports", &s.Reports},
		{"SELECT COUNT(*) FROM search_history", &s.Searches},
	}
	for _, q := range counts {
		if err := c.db.QueryRow(q.query).Scan(q.dst); err != nil {
			return Stats{}, fmt.Errorf("counting: %w", err)
		}
	}

	status, err := db.NewMigrationManager(c.db).GetMigrationStatus()
	if err != nil {
		return Stats{}, fmt.Errorf("reading migration status: %w", err)
	}
	s.SchemaVersion = status.Version()
	s.PendingMigrations = len(status.Pending)

	// MAX() loses the column type, so the timestamp comes back as text.
	var last sql.NullString
	err = c.db.QueryRow(`
		SELECT MAX(synced_at) FROM (SELECT synced_at FROM favorites UNION ALL SELECT synced_at FROM reports)
	`).Scan(&last)
	if err == nil && last.Valid {
		for _, layout := range []string{time.RFC3339Nano, time.DateTime} {
			if t, err := time.Parse(layout, last.String); err == nil {
				s.LastSyncedAt = &t
				break
			}
		}
	}
	return s, nil
}
