package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"tellcocli/pkg/contracts/domain"
)

// ErrRunNotFound is returned by Get for an unknown run id
var ErrRunNotFound = errors.New("run not found")

// DefaultRetention is the number of runs kept when Options.Retention is zero
const DefaultRetention = 500

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	policy      TEXT NOT NULL,
	rows_loaded INTEGER NOT NULL,
	rows_kept   INTEGER NOT NULL,
	total_bytes REAL NOT NULL,
	duration_ns INTEGER NOT NULL,
	created_at  INTEGER NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS runs_created_at ON runs (created_at DESC);
`

// Options tunes a Store
type Options struct {
	// Retention caps the number of stored runs; older runs are pruned on insert
	Retention int
	Logger    *slog.Logger
}

// Store is the SQLite-backed run history
type Store struct {
	db        *sqlx.DB
	retention int
	logger    *slog.Logger
}

// runRow mirrors the runs table
type runRow struct {
	ID         string  `db:"id"`
	Source     string  `db:"source"`
	Policy     string  `db:"policy"`
	RowsLoaded int     `db:"rows_loaded"`
	RowsKept   int     `db:"rows_kept"`
	TotalBytes float64 `db:"total_bytes"`
	DurationNS int64   `db:"duration_ns"`
	CreatedAt  int64   `db:"created_at"`
	Status     string  `db:"status"`
	Error      string  `db:"error"`
}

func toRow(r domain.RunRecord) runRow {
	return runRow{
		ID:         r.ID,
		Source:     r.Source,
		Policy:     r.Policy,
		RowsLoaded: r.RowsLoaded,
		RowsKept:   r.RowsKept,
		TotalBytes: r.TotalBytes,
		DurationNS: int64(r.Duration),
		CreatedAt:  r.CreatedAt.UnixMilli(),
		Status:     string(r.Status),
		Error:      r.Error,
	}
}

func (r runRow) record() domain.RunRecord {
	return domain.RunRecord{
		ID:         r.ID,
		Source:     r.Source,
		Policy:     r.Policy,
		RowsLoaded: r.RowsLoaded,
		RowsKept:   r.RowsKept,
		TotalBytes: r.TotalBytes,
		Duration:   time.Duration(r.DurationNS),
		CreatedAt:  time.UnixMilli(r.CreatedAt).UTC(),
		Status:     domain.RunStatus(r.Status),
		Error:      r.Error,
	}
}

// Open opens (creating if needed) the history database at path and applies
// the schema.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("open run history: empty path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create run history directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open run history %s: %w", path, err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open run history %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate run history: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retention := opts.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}

	s := &Store{
		db:        db,
		retention: retention,
		logger:    logger.With(slog.String("component", "run_store")),
	}
	s.logger.InfoContext(ctx, "Run history opened",
		slog.String("path", path),
		slog.Int("retention", retention))
	return s, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// Record inserts a run and prunes history beyond the retention limit
func (s *Store) Record(ctx context.Context, rec domain.RunRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("record run: empty id")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO runs (id, source, policy, rows_loaded, rows_kept, total_bytes, duration_ns, created_at, status, error)
		VALUES (:id, :source, :policy, :rows_loaded, :rows_kept, :total_bytes, :duration_ns, :created_at, :status, :error)`,
		toRow(rec)); err != nil {
		return fmt.Errorf("record run %s: %w", rec.ID, err)
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, s.retention)
	if err != nil {
		return fmt.Errorf("prune run history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run %s: %w", rec.ID, err)
	}

	if pruned, _ := res.RowsAffected(); pruned > 0 {
		s.logger.DebugContext(ctx, "Pruned run history", slog.Int64("pruned", pruned))
	}
	s.logger.DebugContext(ctx, "Run recorded",
		slog.String("run_id", rec.ID),
		slog.String("status", string(rec.Status)))
	return nil
}

// List returns up to limit runs, newest first
func (s *Store) List(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = s.retention
	}

	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, source, policy, rows_loaded, rows_kept, total_bytes, duration_ns, created_at, status, error
		FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	records := make([]domain.RunRecord, len(rows))
	for i, r := range rows {
		records[i] = r.record()
	}
	return records, nil
}

// Get returns one run by id
func (s *Store) Get(ctx context.Context, id string) (domain.RunRecord, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, source, policy, rows_loaded, rows_kept, total_bytes, duration_ns, created_at, status, error
		FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return row.record(), nil
}

// Count returns the number of stored runs
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM runs`); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
