package record

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/karfly/ball-satisfaction/internal/render"
)

// SQLiteStore records runs in a local SQLite file, or in memory with the
// ":memory:" DSN.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

func OpenSQLite(ctx context.Context, dsn string, log *zap.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create recording directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single connection: the in-memory DSN is per-connection, and the
	// recorder is the only writer anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := migrate(ctx, db, "sqlite3", "migrations/sqlite"); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("recording store ready", zap.String("driver", "sqlite"), zap.String("dsn", dsn))
	return &SQLiteStore{db: db, log: log}, nil
}

func (s *SQLiteStore) BeginRun(ctx context.Context, meta RunMeta) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (preset, seed, step_hz, started_at) VALUES (?, ?, ?, ?)`,
		meta.Preset, meta.Seed, meta.StepHz, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("begin run: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) AppendEvents(ctx context.Context, runID int64, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("events begin: %w", err)
	}
	defer tx.Rollback()

	for _, e := range events {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_events (run_id, step, kind, ball, x, y) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, int64(e.Step), e.Kind, int64(e.Ball), e.X, e.Y,
		); err != nil {
			return fmt.Errorf("events insert: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID int64, steps uint64, stats render.Stats) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, steps = ?, spawned = ?, escaped = ?, killed = ?, live = ?
		 WHERE id = ?`,
		time.Now().UTC(), int64(steps), stats.Spawned, stats.Escaped, stats.Killed, stats.Live, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, preset, seed, step_hz, started_at, finished_at, steps, spawned, escaped, killed, live
		 FROM runs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			r     RunSummary
			fin   sql.NullTime
			steps int64
		)
		if err := rows.Scan(&r.ID, &r.Preset, &r.Seed, &r.StepHz, &r.StartedAt, &fin,
			&steps, &r.Stats.Spawned, &r.Stats.Escaped, &r.Stats.Killed, &r.Stats.Live); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Steps = uint64(steps)
		if fin.Valid {
			t := fin.Time
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) RunEvents(ctx context.Context, runID int64) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step, kind, ball, x, y FROM run_events WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e          Event
			step, ball int64
		)
		if err := rows.Scan(&step, &e.Kind, &ball, &e.X, &e.Y); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		e.Step = uint64(step)
		e.Ball = uint64(ball)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
