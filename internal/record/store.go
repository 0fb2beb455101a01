package record

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/karfly/ball-satisfaction/internal/render"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// RunMeta identifies a run when it starts.
type RunMeta struct {
	Preset string
	Seed   int64
	StepHz float64
}

// RunSummary is one recorded run. FinishedAt is nil for runs that were cut
// off before Finish.
type RunSummary struct {
	ID         int64
	Preset     string
	Seed       int64
	StepHz     float64
	StartedAt  time.Time
	FinishedAt *time.Time
	Steps      uint64
	Stats      render.Stats
}

// Event is one recorded lifecycle event.
type Event struct {
	Step uint64
	Kind string // "spawn", "escape", "kill", "touch"
	Ball uint64
	X, Y float64
}

// Store persists runs and their events. Implementations must not retain
// the events slice past the AppendEvents call.
type Store interface {
	BeginRun(ctx context.Context, meta RunMeta) (int64, error)
	AppendEvents(ctx context.Context, runID int64, events []Event) error
	FinishRun(ctx context.Context, runID int64, steps uint64, stats render.Stats) error
	Runs(ctx context.Context) ([]RunSummary, error)
	RunEvents(ctx context.Context, runID int64) ([]Event, error)
	Close() error
}

// Open connects the configured backend and applies pending migrations.
func Open(ctx context.Context, driver, dsn string, log *zap.Logger) (Store, error) {
	switch driver {
	case "sqlite":
		return OpenSQLite(ctx, dsn, log)
	case "postgres":
		return OpenPostgres(ctx, dsn, log)
	default:
		return nil, fmt.Errorf("unknown record driver %q", driver)
	}
}

// migrate applies the embedded migrations for one backend.
func migrate(ctx context.Context, db *sql.DB, dialect, dir string) error {
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
