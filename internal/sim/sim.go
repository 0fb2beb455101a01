package sim

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/karfly/ball-satisfaction/internal/core/event"
	"github.com/karfly/ball-satisfaction/internal/core/system"
	"github.com/karfly/ball-satisfaction/internal/data"
	"github.com/karfly/ball-satisfaction/internal/geom"
	"github.com/karfly/ball-satisfaction/internal/physics"
	"github.com/karfly/ball-satisfaction/internal/render"
)

const (
	DefaultStepHz     = 120
	DefaultMaxCatchup = 8
)

// Config selects the preset and the host-facing knobs. The preset carries
// everything physical; Config carries what the host decides per run.
type Config struct {
	Preset     *data.ArenaPreset
	StepHz     float64
	MaxCatchup int
	Seed       int64
	ViewportW  float64
	ViewportH  float64
	Policy     SpawnPolicy // nil = flat per-escape count from the preset
}

// Sim is the host-facing facade. One goroutine owns it: every method must
// be called from the loop that calls Tick, never concurrently with it.
type Sim struct {
	log  *zap.Logger
	feed render.Feed

	world  *physics.World
	bus    *event.Bus
	reg    *Registry
	router *Router
	ctrl   *Controller
	ring   *Ring
	bounds *Bounds
	clock  *Clock
	runner *system.Runner
}

func New(cfg Config, feed render.Feed, log *zap.Logger) (*Sim, error) {
	if cfg.Preset == nil {
		return nil, fmt.Errorf("arena preset required")
	}
	if err := cfg.Preset.Validate(); err != nil {
		return nil, fmt.Errorf("arena preset: %w", err)
	}
	if feed == nil {
		feed = render.Discard{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.StepHz <= 0 {
		cfg.StepHz = DefaultStepHz
	}
	if cfg.MaxCatchup < 1 {
		cfg.MaxCatchup = DefaultMaxCatchup
	}
	p := cfg.Preset
	if cfg.ViewportW <= 0 || cfg.ViewportH <= 0 {
		// square frame, ring centered with its own diameter of margin
		outer := p.Arena.Radius + p.Arena.SensorOffset + p.Arena.SensorThickness
		cfg.ViewportW = 4 * outer
		cfg.ViewportH = 4 * outer
	}

	world := physics.NewWorld(physics.WorldDef{
		Gravity: geom.V(p.World.GravityX, p.World.GravityY),
	})
	bus := event.NewBus()
	reg := NewRegistry(feed, log)

	ring, err := NewRing(world, p.Arena, p.Spawn.TouchCooldownSteps)
	if err != nil {
		return nil, fmt.Errorf("build ring: %w", err)
	}
	bounds, err := NewBounds(world, p.Kill, cfg.ViewportW, cfg.ViewportH)
	if err != nil {
		return nil, fmt.Errorf("build kill frame: %w", err)
	}

	router := NewRouter(world, reg.Get, log)
	ctrl := NewController(world, reg, ring, bus, p.Ball, p.Spawn, cfg.Seed, cfg.Policy, log)
	router.SetHandlers(ctrl.HandleEscape, ctrl.HandleTouch, ctrl.HandleKill)
	reg.SetOnRemoved(func(e Entity) {
		if e.Kind() == KindBall {
			router.ClearBall(e.Body())
			ring.ClearBall(e.Body())
		}
	})

	reg.Spawn(ring)
	reg.Spawn(bounds)
	router.RegisterContacts(ring.Body(), ring.ContactColliders()...)
	router.RegisterEscapeSensors(ring.Body(), ring.EscapeColliders()...)
	router.RegisterKillSensors(bounds.Body(), bounds.Colliders()...)

	clock := NewClock(cfg.StepHz, cfg.MaxCatchup)
	runner := system.NewRunner()
	runner.Register(&actuateSystem{reg: reg})
	runner.Register(&physicsSystem{world: world, router: router})
	runner.Register(&syncSystem{reg: reg, ctrl: ctrl, ring: ring, feed: feed, stepDur: clock.StepDur()})
	runner.Register(&observeSystem{bus: bus})

	s := &Sim{
		log:    log,
		feed:   feed,
		world:  world,
		bus:    bus,
		reg:    reg,
		router: router,
		ctrl:   ctrl,
		ring:   ring,
		bounds: bounds,
		clock:  clock,
		runner: runner,
	}
	s.forwardEffects()

	log.Info("simulation ready",
		zap.String("preset", p.Name),
		zap.Float64("step_hz", cfg.StepHz),
		zap.Int("max_balls", p.Spawn.MaxBalls),
		zap.Float64("viewport_w", cfg.ViewportW),
		zap.Float64("viewport_h", cfg.ViewportH))
	return s, nil
}

// forwardEffects mirrors lifecycle events to the feed as visual cues.
func (s *Sim) forwardEffects() {
	event.Subscribe(s.bus, func(ev event.BallSpawned) {
		s.feed.PublishEffect(render.Effect{Kind: "spawn", ID: uint64(ev.Ball), X: ev.X, Y: ev.Y})
	})
	event.Subscribe(s.bus, func(ev event.BallEscaped) {
		s.feed.PublishEffect(render.Effect{Kind: "escape", ID: uint64(ev.Ball), X: ev.X, Y: ev.Y})
	})
	event.Subscribe(s.bus, func(ev event.BallKilled) {
		s.feed.PublishEffect(render.Effect{Kind: "kill", ID: uint64(ev.Ball), X: ev.X, Y: ev.Y})
	})
	event.Subscribe(s.bus, func(ev event.WallTouched) {
		s.feed.PublishEffect(render.Effect{Kind: "touch", ID: uint64(ev.Ball), X: ev.X, Y: ev.Y})
	})
}

// SpawnInitial places the preset's starting balls. Call once after New,
// before the first Tick.
func (s *Sim) SpawnInitial() error {
	return s.ctrl.SpawnInitial()
}

// Tick banks a wall-clock delta and runs every fixed step that came due.
// Returns the number of steps executed.
func (s *Sim) Tick(wallDt float64) int {
	n := s.clock.Advance(wallDt)
	for i := 0; i < n; i++ {
		s.runner.Step(s.clock.StepDur())
	}
	return n
}

// StepN runs exactly n fixed steps, bypassing the accumulator.
func (s *Sim) StepN(n int) {
	for i := 0; i < n; i++ {
		s.runner.Step(s.clock.StepDur())
	}
}

// SetViewport rebuilds the kill frame around new viewport extents. Apply
// between ticks; the loop goroutine owns all state.
func (s *Sim) SetViewport(w, h float64) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("viewport must be positive, got %gx%g", w, h)
	}
	s.router.ForgetKillSensors(s.bounds.Colliders())
	if err := s.bounds.Rebuild(w, h); err != nil {
		return err
	}
	s.router.RegisterKillSensors(s.bounds.Body(), s.bounds.Colliders()...)
	s.log.Info("viewport changed", zap.Float64("w", w), zap.Float64("h", h))
	return nil
}

// Teardown releases every entity and its physics representation in one
// pass. The sim must not be ticked afterwards.
func (s *Sim) Teardown() {
	s.reg.ForEach(func(e Entity) {
		s.reg.Remove(e.Body())
	})
	s.log.Info("simulation torn down",
		zap.Uint64("steps", s.ring.StepCount()),
		zap.Int("spawned", s.ctrl.Spawned()))
}

// Bus exposes the observer bus for read-only subscribers (recorder, UI).
// Subscribe before the first Tick; handlers run on the loop goroutine.
func (s *Sim) Bus() *event.Bus { return s.bus }

func (s *Sim) Stats() render.Stats { return s.ctrl.Stats() }

// StepCount is the number of fixed steps completed.
func (s *Sim) StepCount() uint64 { return s.ring.StepCount() }

// StepDur is the fixed step length in seconds.
func (s *Sim) StepDur() float64 { return s.clock.StepDur() }

func (s *Sim) RingRotation() float64 { return s.ring.Rotation() }

// Viewport reports the extents the kill frame is built around.
func (s *Sim) Viewport() (w, h float64) { return s.bounds.Viewport() }

// EntityCount includes the ring and the kill frame, not just balls.
func (s *Sim) EntityCount() int { return s.reg.Len() }
