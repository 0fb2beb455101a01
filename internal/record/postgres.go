package record

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/karfly/ball-satisfaction/internal/render"
)

// PostgresStore records runs in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func OpenPostgres(ctx context.Context, dsn string, log *zap.Logger) (*PostgresStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := migratePool(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("recording store ready", zap.String("driver", "postgres"))
	return &PostgresStore{pool: pool, log: log}, nil
}

// migratePool runs migrations over a temporary database/sql bridge. The
// pool stays open; only the bridge is closed.
func migratePool(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return migrate(ctx, db, "postgres", "migrations/postgres")
}

func (s *PostgresStore) BeginRun(ctx context.Context, meta RunMeta) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO runs (preset, seed, step_hz, started_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		meta.Preset, meta.Seed, meta.StepHz, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) AppendEvents(ctx context.Context, runID int64, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("events begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range events {
		if _, err := tx.Exec(ctx,
			`INSERT INTO run_events (run_id, step, kind, ball, x, y) VALUES ($1, $2, $3, $4, $5, $6)`,
			runID, int64(e.Step), e.Kind, int64(e.Ball), e.X, e.Y,
		); err != nil {
			return fmt.Errorf("events insert: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID int64, steps uint64, stats render.Stats) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE runs SET finished_at = $1, steps = $2, spawned = $3, escaped = $4, killed = $5, live = $6
		 WHERE id = $7`,
		time.Now().UTC(), int64(steps), stats.Spawned, stats.Escaped, stats.Killed, stats.Live, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func (s *PostgresStore) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.pool.Query(ctx,
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
			fin   *time.Time
			steps int64
		)
		if err := rows.Scan(&r.ID, &r.Preset, &r.Seed, &r.StepHz, &r.StartedAt, &fin,
			&steps, &r.Stats.Spawned, &r.Stats.Escaped, &r.Stats.Killed, &r.Stats.Live); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Steps = uint64(steps)
		r.FinishedAt = fin
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RunEvents(ctx context.Context, runID int64) ([]Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT step, kind, ball, x, y FROM run_events WHERE run_id = $1 ORDER BY id`, runID)
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

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
