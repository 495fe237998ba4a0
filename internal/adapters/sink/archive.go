package sink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/domain"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/ports"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Archive keeps an embedded SQLite database of past acquisition runs,
// so a bench laptop accumulates a browsable record across sessions.
type Archive struct {
	db *sql.DB
}

// RunMeta identifies one acquisition run in the archive.
type RunMeta struct {
	ID        string
	StartedAt time.Time
	Source    string
}

// RunSummary is one row of the runs listing.
type RunSummary struct {
	ID          string
	StartedAt   time.Time
	EndedAt     time.Time // zero when the run never closed cleanly
	Source      string
	SampleCount int64
}

// OpenArchive opens or creates the archive database and applies
// migrations.
func OpenArchive(path string) (*Archive, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	a := &Archive{db: db}
	if err := a.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			source TEXT NOT NULL,
			sample_count INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS samples (
			run_id TEXT NOT NULL,
			ts TEXT NOT NULL,
			elapsed_seconds REAL NOT NULL,
			flow_rate_l_s REAL NOT NULL,
			delta_h_cm REAL NOT NULL,
			raw_line TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_samples_run ON samples(run_id);`,
	}
	for _, stmt := range stmts {
		if _, err := a.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// StartRun registers a run and returns the sink that feeds it.
func (a *Archive) StartRun(ctx context.Context, meta RunMeta) (*RunSink, error) {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, source, sample_count) VALUES (?, ?, ?, 0)`,
		meta.ID, meta.StartedAt.Format(time.RFC3339Nano), meta.Source)
	if err != nil {
		return nil, fmt.Errorf("register run %s: %w", meta.ID, err)
	}
	return &RunSink{db: a.db, runID: meta.ID}, nil
}

// ListRuns returns every archived run, newest first.
func (a *Archive) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, started_at, ended_at, source, sample_count FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			r       RunSummary
			started string
			ended   sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &ended, &r.Source, &r.SampleCount); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("run %s started_at: %w", r.ID, err)
		}
		if ended.Valid && ended.String != "" {
			if r.EndedAt, err = time.Parse(time.RFC3339Nano, ended.String); err != nil {
				return nil, fmt.Errorf("run %s ended_at: %w", r.ID, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunSink writes one run's samples into the archive. Samples buffer in
// memory and land in a single transaction per flush.
type RunSink struct {
	db    *sql.DB
	runID string

	mu     sync.Mutex
	buf    []domain.Sample
	count  int64
	closed bool
}

func (r *RunSink) Name() string { return "sqlite" }

func (r *RunSink) WriteSample(s domain.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("archive run %s: %w", r.runID, ErrClosed)
	}
	r.buf = append(r.buf, s)
	return nil
}

func (r *RunSink) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

func (r *RunSink) flushLocked() (err error) {
	if len(r.buf) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(
		`INSERT INTO samples (run_id, ts, elapsed_seconds, flow_rate_l_s, delta_h_cm, raw_line) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range r.buf {
		if _, err = stmt.Exec(r.runID, s.Time.Format(time.RFC3339Nano), s.Elapsed, s.FlowRate, s.HeadCM, s.Raw); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	r.count += int64(len(r.buf))
	r.buf = r.buf[:0]
	return nil
}

// Close flushes the remainder and seals the run row. The archive's
// database handle stays open.
func (r *RunSink) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.flushLocked(); err != nil {
		return err
	}
	_, err := r.db.Exec(
		`UPDATE runs SET ended_at = ?, sample_count = ? WHERE id = ?`,
		time.Now().Format(time.RFC3339Nano), r.count, r.runID)
	return err
}

var _ ports.HistorySink = (*RunSink)(nil)
