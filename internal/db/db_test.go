package db

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T, path string) *DB {
	t.Helper()
	database, err := New(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return database
}

func TestNew_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")

	database := openTestDB(t, dbPath)
	defer func() { _ = database.Close() }()

	for _, table := range []string{"jobs", "_migrations"} {
		var name string
		err := database.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestNew_WALEnabled(t *testing.T) {
	database := openTestDB(t, filepath.Join(t.TempDir(), "test.db"))
	defer func() { _ = database.Close() }()

	var journalMode string
	if err := database.Conn().QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}
}

func TestNew_MigrationsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db1 := openTestDB(t, dbPath)
	_ = db1.Close()

	db2 := openTestDB(t, dbPath)
	defer func() { _ = db2.Close() }()

	var count int
	if err := db2.Conn().QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations error = %v", err)
	}
	if count != 1 {
		t.Errorf("migration count = %d, want 1", count)
	}
}

func TestMarkInterruptedJobs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db1 := openTestDB(t, dbPath)
	insert := `INSERT INTO jobs (id, status, source_path, options, created_at, updated_at)
	           VALUES (?, ?, '/v.mp4', '{}', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')`
	for id, status := range map[string]string{"queued": "IN_QUEUE", "running": "RUNNING", "done": "COMPLETED"} {
		if _, err := db1.Conn().Exec(insert, id, status); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	_ = db1.Close()

	db2 := openTestDB(t, dbPath)
	defer func() { _ = db2.Close() }()

	want := map[string]string{"queued": "FAILED", "running": "FAILED", "done": "COMPLETED"}
	for id, status := range want {
		var got, msg string
		if err := db2.Conn().QueryRow("SELECT status, error FROM jobs WHERE id = ?", id).Scan(&got, &msg); err != nil {
			t.Fatalf("select %s: %v", id, err)
		}
		if got != status {
			t.Errorf("job %s status = %s, want %s", id, got, status)
		}
		if status == "FAILED" && msg != InterruptedMessage {
			t.Errorf("job %s error = %q, want %q", id, msg, InterruptedMessage)
		}
	}
}
