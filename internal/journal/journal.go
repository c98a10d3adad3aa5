// Package journal records the history of sync runs in SQLite.
//
// Each run, successful or not, becomes one row keyed by a UUID. The journal is
// diagnostic: the manifest, not the journal, is the source of truth for what
// the vector store holds.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Kind identifies the type of sync run.
type Kind string

const (
	KindFull        Kind = "full"
	KindIncremental Kind = "incremental"
)

// SyncRun is one recorded sync.
type SyncRun struct {
	ID             string
	ProjectKey     string
	Kind           Kind
	StartedAt      time.Time
	FinishedAt     time.Time
	FilesAdded     int
	FilesModified  int
	FilesDeleted   int
	FilesUnchanged int
	FilesSkipped   int
	ChunksAdded    int
	ChunksDeleted  int
	EmbedFailures  int
	Error          string // empty on success
}

// Succeeded reports whether the run finished without error.
func (r *SyncRun) Succeeded() bool {
	return r.Error == ""
}

// Duration returns the wall time of the run.
func (r *SyncRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Journal stores and retrieves sync runs.
type Journal interface {
	// Record inserts run, assigning an ID when it has none.
	Record(ctx context.Context, run *SyncRun) error

	// Last returns the most recent run for the project, or (nil, nil) if none.
	Last(ctx context.Context, projectKey string) (*SyncRun, error)

	// List returns up to limit runs for the project, newest first.
	List(ctx context.Context, projectKey string, limit int) ([]*SyncRun, error)

	// Purge removes every run for the project.
	Purge(ctx context.Context, projectKey string) error

	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS sync_runs (
	id              TEXT PRIMARY KEY,
	project_key     TEXT NOT NULL,
	kind            TEXT NOT NULL,
	started_at      TEXT NOT NULL,
	finished_at     TEXT NOT NULL,
	files_added     INTEGER NOT NULL DEFAULT 0,
	files_modified  INTEGER NOT NULL DEFAULT 0,
	files_deleted   INTEGER NOT NULL DEFAULT 0,
	files_unchanged INTEGER NOT NULL DEFAULT 0,
	files_skipped   INTEGER NOT NULL DEFAULT 0,
	chunks_added    INTEGER NOT NULL DEFAULT 0,
	chunks_deleted  INTEGER NOT NULL DEFAULT 0,
	embed_failures  INTEGER NOT NULL DEFAULT 0,
	error           TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sync_runs_project ON sync_runs(project_key, started_at);
`

// timeLayout is fixed-width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var columns = []string{
	"id", "project_key", "kind", "started_at", "finished_at",
	"files_added", "files_modified", "files_deleted", "files_unchanged", "files_skipped",
	"chunks_added", "chunks_deleted", "embed_failures", "error",
}

// SQLiteJournal is a Journal backed by a SQLite database file.
type SQLiteJournal struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*SQLiteJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}
	return &SQLiteJournal{db: db}, nil
}

// Record inserts run, assigning an ID when it has none.
func (j *SQLiteJournal) Record(ctx context.Context, run *SyncRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	_, err := sq.Insert("sync_runs").
		Columns(columns...).
		Values(
			run.ID,
			run.ProjectKey,
			string(run.Kind),
			run.StartedAt.UTC().Format(timeLayout),
			run.FinishedAt.UTC().Format(timeLayout),
			run.FilesAdded,
			run.FilesModified,
			run.FilesDeleted,
			run.FilesUnchanged,
			run.FilesSkipped,
			run.ChunksAdded,
			run.ChunksDeleted,
			run.EmbedFailures,
			run.Error,
		).
		RunWith(j.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to record sync run %s: %w", run.ID, err)
	}
	return nil
}

// Last returns the most recent run for the project, or (nil, nil) if none.
func (j *SQLiteJournal) Last(ctx context.Context, projectKey string) (*SyncRun, error) {
	runs, err := j.List(ctx, projectKey, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

// List returns up to limit runs for the project, newest first. A
// non-positive limit returns every run.
func (j *SQLiteJournal) List(ctx context.Context, projectKey string, limit int) ([]*SyncRun, error) {
	q := sq.Select(columns...).
		From("sync_runs").
		Where(sq.Eq{"project_key": projectKey}).
		OrderBy("started_at DESC", "rowid DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	rows, err := q.RunWith(j.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sync runs: %w", err)
	}
	return runs, nil
}

// Purge removes every run for the project.
func (j *SQLiteJournal) Purge(ctx context.Context, projectKey string) error {
	_, err := sq.Delete("sync_runs").
		Where(sq.Eq{"project_key": projectKey}).
		RunWith(j.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to purge sync runs: %w", err)
	}
	return nil
}

// Close closes the database.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func scanRun(rows *sql.Rows) (*SyncRun, error) {
	run := &SyncRun{}
	var kind, startedAt, finishedAt string
	err := rows.Scan(
		&run.ID,
		&run.ProjectKey,
		&kind,
		&startedAt,
		&finishedAt,
		&run.FilesAdded,
		&run.FilesModified,
		&run.FilesDeleted,
		&run.FilesUnchanged,
		&run.FilesSkipped,
		&run.ChunksAdded,
		&run.ChunksDeleted,
		&run.EmbedFailures,
		&run.Error,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}
	run.Kind = Kind(kind)

	var parseErr error
	if run.StartedAt, parseErr = time.Parse(timeLayout, startedAt); parseErr != nil {
		return nil, fmt.Errorf("invalid started_at for run %s: %w", run.ID, parseErr)
	}
	if run.FinishedAt, parseErr = time.Parse(timeLayout, finishedAt); parseErr != nil {
		return nil, fmt.Errorf("invalid finished_at for run %s: %w", run.ID, parseErr)
	}
	return run, nil
}

// Nop is a Journal that stores nothing. It is used when no journal is configured.
type Nop struct{}

func (Nop) Record(ctx context.Context, run *SyncRun) error { return nil }
func (Nop) Last(ctx context.Context, projectKey string) (*SyncRun, error) {
	return nil, nil
}
func (Nop) List(ctx context.Context, projectKey string, limit int) ([]*SyncRun, error) {
	return nil, nil
}
func (Nop) Purge(ctx context.Context, projectKey string) error { return nil }
func (Nop) Close() error                                       { return nil }
