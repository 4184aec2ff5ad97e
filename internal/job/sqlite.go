package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/maauso/clipthumb/internal/preview"
)

// Compile-time check that SQLiteRepository implements Repository.
var _ Repository = (*SQLiteRepository)(nil)

// timeLayout is fixed-width so that created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepository persists jobs in the jobs table created by package db.
// Options and Result are stored as JSON documents.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save inserts the job or updates it in place.
func (r *SQLiteRepository) Save(ctx context.Context, job *Job) error {
	j := job.Clone()

	opts, err := json.Marshal(j.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}

	var result sql.NullString
	if j.Result != nil {
		data, err := json.Marshal(j.Result)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		result = sql.NullString{String: string(data), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, status, source_path, options, publish, result, url, error,
		                  created_at, updated_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			source_path = excluded.source_path,
			options = excluded.options,
			publish = excluded.publish,
			result = excluded.result,
			url = excluded.url,
			error = excluded.error,
			updated_at = excluded.updated_at,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`,
		j.ID, string(j.Status), j.SourcePath, string(opts), boolToInt(j.Publish), result, j.URL, j.Error,
		formatTime(j.CreatedAt), formatTime(j.UpdatedAt), nullTime(j.StartedAt), nullTime(j.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("save job %s: %w", j.ID, err)
	}
	return nil
}

const selectJob = `
	SELECT id, status, source_path, options, publish, result, url, error,
	       created_at, updated_at, started_at, completed_at
	FROM jobs`

// FindByID retrieves a job by its ID.
func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, selectJob+" WHERE id = ?", id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find job %s: %w", id, err)
	}
	return j, nil
}

// List returns all jobs ordered by creation time.
func (r *SQLiteRepository) List(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, selectJob+" ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	jobs := make([]*Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list jobs: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Delete removes a job.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*Job, error) {
	var (
		j                      Job
		status, opts           string
		publish                int
		result                 sql.NullString
		createdAt, updatedAt   string
		startedAt, completedAt sql.NullString
	)

	err := s.Scan(&j.ID, &status, &j.SourcePath, &opts, &publish, &result, &j.URL, &j.Error,
		&createdAt, &updatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	j.Status = Status(status)
	j.Publish = publish == 1
	if err := json.Unmarshal([]byte(opts), &j.Options); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	if result.Valid {
		var res preview.Result
		if err := json.Unmarshal([]byte(result.String), &res); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		j.Result = &res
	}
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	j.StartedAt = parseTime(startedAt.String)
	j.CompletedAt = parseTime(completedAt.String)

	return &j, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
