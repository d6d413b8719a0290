package db

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	migrations, err := NewMigrationManager(nil).GetAvailableMigrations()
	if err != nil {
		t.Fatalf("GetAvailableMigrations: %v", err)
	}
	if len(migrations) < 2 {
		t.Fatalf("expected at least 2 migrations, got %d", len(migrations))
	}
	for i, m := range migrations {
		if m.Version != i+1 {
			t.Errorf("migration %d has version %d", i, m.Version)
		}
	}
	if migrations[0].Name != "cache" {
		t.Errorf("first migration name = %q", migrations[0].Name)
	}
}

func TestInitializeDatabaseIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	if err := InitializeDatabase(db); err != nil {
		t.Fatalf("first init: %v", err)
	}
	if err := InitializeDatabase(db); err != nil {
		t.Fatalf("second init: %v", err)
	}

	for _, table := range []string{"favorites", "reports", "search_history"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	status, err := NewMigrationManager(db).GetMigrationStatus()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(status.Pending) != 0 {
		t.Errorf("pending = %d, want 0", len(status.Pending))
	}
	if len(status.Applied) != len(status.Available) {
		t.Errorf("applied %d of %d", len(status.Applied), len(status.Available))
	}
	if got, want := status.Version(), len(status.Available); got != want {
		t.Errorf("version = %d, want %d", got, want)
	}
}

func TestMigrationsFromPath(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"001_first.sql":  "CREATE TABLE a (id INTEGER);",
		"002_second.sql": "CREATE TABLE b (id INTEGER);",
		"notes.txt":      "ignored",
		"bad_name.sql":   "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	db := openTestDB(t)
	m := NewMigrationManagerFromPath(db, dir)
	if err := m.ApplyPendingMigrations(); err != nil {
		t.Fatalf("apply: %v", err)
	}

	available, err := m.GetAvailableMigrations()
	if err != nil {
		t.Fatal(err)
	}
	if len(available) != 2 || available[1].Name != "second" {
		t.Fatalf("available = %+v", available)
	}
}

func TestFailedMigrationRollsBack(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_broken.sql"), []byte("CREATE TABLE ok (id INTEGER); NOT SQL;"), 0644); err != nil {
		t.Fatal(err)
	}

	db := openTestDB(t)
	m := NewMigrationManagerFromPath(db, dir)
	if err := m.ApplyPendingMigrations(); err == nil {
		t.Fatal("expected error from broken migration")
	}

	applied, err := m.GetAppliedMigrations()
	if err != nil {
		t.Fatal(err)
	}
	if len(applied) != 0 {
		t.Errorf("broken migration recorded as applied")
	}
}
