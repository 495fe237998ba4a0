package sink

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/domain"
	"github.com/muhammedalf909/Smart-Orifice-Flow-System/internal/ports"
)

// PostgresSink batches accepted samples into a Postgres (or
// Timescale) table. Rows accumulate in memory between flushes and go
// out in a single multi-row INSERT, idempotent via the (run_id, ts)
// unique key. The sink does not own the *sql.DB.
type PostgresSink struct {
	db        *sql.DB
	tableName string
	runID     string

	mu     sync.Mutex
	buf    []domain.Sample
	closed bool
}

func NewPostgresSink(db *sql.DB, table, runID string) *PostgresSink {
	return &PostgresSink{db: db, tableName: table, runID: runID}
}

func (p *PostgresSink) Name() string { return "postgres" }

func (p *PostgresSink) WriteSample(s domain.Sample) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("postgres %s: %w", p.tableName, ErrClosed)
	}
	p.buf = append(p.buf, s)
	return nil
}

func (p *PostgresSink) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushLocked()
}

func (p *PostgresSink) flushLocked() error {
	if len(p.buf) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(p.tableName)
	b.WriteString(" (run_id, ts, elapsed_seconds, flow_rate_l_s, delta_h_cm, raw_line) VALUES ")

	args := make([]any, 0, len(p.buf)*6)
	for i, s := range p.buf {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4, len(args)+5, len(args)+6))
		args = append(args,
			p.runID,
			s.Time,
			s.Elapsed,
			s.FlowRate,
			s.HeadCM,
			s.Raw,
		)
	}

	b.WriteString(" ON CONFLICT (run_id, ts) DO NOTHING")

	if _, err := p.db.Exec(b.String(), args...); err != nil {
		return err
	}
	p.buf = p.buf[:0]
	return nil
}

// Close flushes what is buffered. The database handle stays open; its
// owner closes it.
func (p *PostgresSink) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.flushLocked()
}

var _ ports.HistorySink = (*PostgresSink)(nil)
