// Package ledger stores anonymous assessment outcomes in sqlite and reports
// aggregate statistics over them.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pocketpilot/internal/events"

	_ "modernc.org/sqlite"
)

type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Summary aggregates outcomes recorded since a point in time.
type Summary struct {
	Since          time.Time
	Total          int
	ByCondition    map[string]int
	ByOutcome      map[string]int
	ByProvider     map[string]int
	MeanDurationMs float64
}

// Open opens (creating if needed) the ledger database and migrates it.
func Open(dbPath string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// sqlite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Ledger{db: db, now: time.Now}, nil
}

func (l *Ledger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Record stores msg. It reports false when the run was already recorded.
func (l *Ledger) Record(ctx context.Context, msg *events.AssessmentCompleted) (bool, error) {
	occurred := msg.Timestamp
	if occurred.IsZero() {
		occurred = l.now()
	}

	res, err := l.db.ExecContext(ctx, `
		INSERT INTO assessment_outcomes
			(run_id, request_id, condition, generator_outcome, generator_provider, nodes, duration_ms, occurred_at, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING`,
		msg.RunID,
		msg.RequestID,
		msg.Condition,
		msg.GeneratorOutcome,
		msg.GeneratorProvider,
		strings.Join(msg.Nodes, ","),
		max(msg.DurationMs, 0),
		occurred.UnixMilli(),
		l.now().UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("insert outcome: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		slog.DebugContext(ctx, "Duplicate assessment outcome ignored", "run_id", msg.RunID)
		return false, nil
	}
	return true, nil
}

// Handle adapts Record to events.Handler.
func (l *Ledger) Handle(ctx context.Context, msg *events.AssessmentCompleted) error {
	_, err := l.Record(ctx, msg)
	return err
}

// Summary reports outcome counts and mean duration since the given time.
func (l *Ledger) Summary(ctx context.Context, since time.Time) (Summary, error) {
	s := Summary{
		Since:       since,
		ByCondition: make(map[string]int),
		ByOutcome:   make(map[string]int),
		ByProvider:  make(map[string]int),
	}
	from := since.UnixMilli()

	row := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(duration_ms), 0) FROM assessment_outcomes WHERE occurred_at >= ?`, from)
	if err := row.Scan(&s.Total, &s.MeanDurationMs); err != nil {
		return s, fmt.Errorf("count outcomes: %w", err)
	}

	groups := []struct {
		column string
		into   map[string]int
	}{
		{"condition", s.ByCondition},
		{"generator_outcome", s.ByOutcome},
		{"generator_provider", s.ByProvider},
	}
	for _, g := range groups {
		if err := l.countBy(ctx, g.column, from, g.into); err != nil {
			return s, err
		}
	}
	return s, nil
}

// countBy fills into with counts grouped by column. column is never user
// input.
func (l *Ledger) countBy(ctx context.Context, column string, from int64, into map[string]int) error {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+column+`, COUNT(*) FROM assessment_outcomes WHERE occurred_at >= ? GROUP BY `+column, from)
	if err != nil {
		return fmt.Errorf("group by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan %s: %w", column, err)
		}
		into[key] = n
	}
	return rows.Err()
}
