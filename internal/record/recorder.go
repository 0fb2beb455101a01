package record

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/karfly/ball-satisfaction/internal/core/event"
	"github.com/karfly/ball-satisfaction/internal/render"
)

const defaultBatchSize = 256

// Recorder turns bus events into recording rows. Events buffer in memory
// and go to the store in whole batches, so a slow disk costs the
// simulation one write per batch instead of one per event.
//
// Single-goroutine access only (simulation loop).
type Recorder struct {
	store Store
	log   *zap.Logger

	runID     int64
	buf       []Event
	batchSize int
	lost      int
}

func NewRecorder(store Store, batchSize int, log *zap.Logger) *Recorder {
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		store:     store,
		log:       log,
		buf:       make([]Event, 0, batchSize),
		batchSize: batchSize,
	}
}

// Attach subscribes the recorder to the simulation bus. Call once, before
// the run starts.
func (r *Recorder) Attach(bus *event.Bus) {
	event.Subscribe(bus, func(ev event.BallSpawned) {
		r.add(Event{Step: ev.Step, Kind: "spawn", Ball: uint64(ev.Ball), X: ev.X, Y: ev.Y})
	})
	event.Subscribe(bus, func(ev event.BallEscaped) {
		r.add(Event{Step: ev.Step, Kind: "escape", Ball: uint64(ev.Ball), X: ev.X, Y: ev.Y})
	})
	event.Subscribe(bus, func(ev event.BallKilled) {
		r.add(Event{Step: ev.Step, Kind: "kill", Ball: uint64(ev.Ball), X: ev.X, Y: ev.Y})
	})
	event.Subscribe(bus, func(ev event.WallTouched) {
		r.add(Event{Step: ev.Step, Kind: "touch", Ball: uint64(ev.Ball), X: ev.X, Y: ev.Y})
	})
}

// Begin opens a new run row. Events observed before Begin are dropped.
func (r *Recorder) Begin(ctx context.Context, meta RunMeta) error {
	id, err := r.store.BeginRun(ctx, meta)
	if err != nil {
		return err
	}
	r.runID = id
	r.log.Info("recording run",
		zap.Int64("run", id),
		zap.String("preset", meta.Preset),
		zap.Int64("seed", meta.Seed))
	return nil
}

func (r *Recorder) add(e Event) {
	if r.runID == 0 {
		return
	}
	r.buf = append(r.buf, e)
	if len(r.buf) >= r.batchSize {
		r.Flush(context.Background())
	}
}

// Flush writes the buffered batch. On failure the batch is dropped; the
// recorder never stalls the simulation over a broken store.
func (r *Recorder) Flush(ctx context.Context) {
	if r.runID == 0 || len(r.buf) == 0 {
		return
	}
	if err := r.store.AppendEvents(ctx, r.runID, r.buf); err != nil {
		r.lost += len(r.buf)
		r.log.Warn("recording batch lost",
			zap.Error(err),
			zap.Int("events", len(r.buf)),
			zap.Int("total_lost", r.lost))
	}
	r.buf = r.buf[:0]
}

// Finish flushes and closes the run row. The recorder goes idle until the
// next Begin.
func (r *Recorder) Finish(ctx context.Context, steps uint64, stats render.Stats) error {
	if r.runID == 0 {
		return nil
	}
	r.Flush(ctx)
	if err := r.store.FinishRun(ctx, r.runID, steps, stats); err != nil {
		return fmt.Errorf("finish run %d: %w", r.runID, err)
	}
	r.log.Info("recording finished",
		zap.Int64("run", r.runID),
		zap.Uint64("steps", steps),
		zap.Int("spawned", stats.Spawned),
		zap.Int("escaped", stats.Escaped),
		zap.Int("killed", stats.Killed))
	r.runID = 0
	return nil
}
