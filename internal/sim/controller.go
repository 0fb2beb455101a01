package sim

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/karfly/ball-satisfaction/internal/core/event"
	"github.com/karfly/ball-satisfaction/internal/core/handle"
	"github.com/karfly/ball-satisfaction/internal/data"
	"github.com/karfly/ball-satisfaction/internal/geom"
	"github.com/karfly/ball-satisfaction/internal/physics"
	"github.com/karfly/ball-satisfaction/internal/render"
)

// PolicyContext is the state a spawn policy sees when deciding how many
// balls one trigger is worth. The returned count is clamped to the
// remaining budget; policies never override the cap.
type PolicyContext struct {
	Trigger      string
	Escaped      int
	Killed       int
	Live         int
	TotalSpawned int
	MaxBalls     int
}

type SpawnPolicy func(PolicyContext) int

// Controller owns ball lifecycle and the run counters. The router calls
// its handlers synchronously during event dispatch; everything else
// observes through the bus.
//
// totalSpawned counts every ball ever created, initial balls included,
// and never decreases. The spawn budget is MaxBalls - totalSpawned, so a
// long run cannot cycle kills to sneak past the cap.
type Controller struct {
	log   *zap.Logger
	world *physics.World
	reg   *Registry
	bus   *event.Bus
	ring  *Ring
	rng   *rand.Rand

	ball   data.BallSpec
	spawn  data.SpawnSpec
	policy SpawnPolicy

	totalSpawned int
	escaped      int
	killed       int
}

func NewController(world *physics.World, reg *Registry, ring *Ring, bus *event.Bus,
	ball data.BallSpec, spawn data.SpawnSpec, seed int64, policy SpawnPolicy, log *zap.Logger) *Controller {
	return &Controller{
		log:    log,
		world:  world,
		reg:    reg,
		bus:    bus,
		ring:   ring,
		rng:    rand.New(rand.NewSource(seed)),
		ball:   ball,
		spawn:  spawn,
		policy: policy,
	}
}

// SpawnInitial places the preset's starting balls. Initial balls draw from
// the same budget as everything else.
func (c *Controller) SpawnInitial() error {
	n := c.spawn.Initial
	if budget := c.spawn.MaxBalls - c.totalSpawned; n > budget {
		n = budget
	}
	for i := 0; i < n; i++ {
		if err := c.spawnOne(); err != nil {
			return fmt.Errorf("initial spawn %d: %w", i, err)
		}
	}
	return nil
}

// HandleEscape scores an escape and spawns its reward. The escape counts
// even when the budget denies every spawn.
func (c *Controller) HandleEscape(b *Ball) {
	c.escaped++
	pos := b.Position()
	event.Emit(c.bus, event.BallEscaped{
		Ball: handle.ID(b.body),
		Step: c.ring.StepCount(),
		X:    pos.X,
		Y:    pos.Y,
	})
	c.log.Debug("ball escaped",
		zap.Uint64("ball", b.body.Raw()),
		zap.Int("escaped", c.escaped))
	if c.trigger() == "escape" {
		c.spawnBurst("escape")
	}
}

// HandleTouch fires the wall touch effect, rate-limited per ball by the
// ring's cooldown. With the touch trigger configured it also spawns.
func (c *Controller) HandleTouch(b *Ball) {
	step := c.ring.StepCount()
	if !c.ring.TouchReady(b.body, step) {
		return
	}
	c.ring.MarkTouch(b.body, step)
	pos := b.Position()
	event.Emit(c.bus, event.WallTouched{
		Ball: handle.ID(b.body),
		Step: step,
		X:    pos.X,
		Y:    pos.Y,
	})
	if c.trigger() == "touch" {
		c.spawnBurst("touch")
	}
}

// HandleKill scores and removes the ball. Removal clears every tracking
// entry for the handle, so a later reuse of the slot starts fresh.
func (c *Controller) HandleKill(b *Ball) {
	c.killed++
	pos := b.Position()
	event.Emit(c.bus, event.BallKilled{
		Ball: handle.ID(b.body),
		Step: c.ring.StepCount(),
		X:    pos.X,
		Y:    pos.Y,
	})
	c.reg.Remove(b.body)
	c.log.Debug("ball killed",
		zap.Uint64("ball", b.body.Raw()),
		zap.Int("killed", c.killed))
}

func (c *Controller) spawnBurst(trigger string) {
	want := c.spawn.PerEscape
	if c.policy != nil {
		want = c.policy(PolicyContext{
			Trigger:      trigger,
			Escaped:      c.escaped,
			Killed:       c.killed,
			Live:         c.Live(),
			TotalSpawned: c.totalSpawned,
			MaxBalls:     c.spawn.MaxBalls,
		})
	}
	if want < 0 {
		want = 0
	}
	if budget := c.spawn.MaxBalls - c.totalSpawned; want > budget {
		want = budget
	}
	for i := 0; i < want; i++ {
		if err := c.spawnOne(); err != nil {
			c.log.Error("spawn failed", zap.Error(err))
			return
		}
	}
}

func (c *Controller) spawnOne() error {
	pos := geom.V(c.spawn.X, c.spawn.Y)
	vel := c.spawnVelocity()
	color := c.ball.Colors[c.totalSpawned%len(c.ball.Colors)]

	ball, err := NewBall(c.world, c.ball, pos, vel, color)
	if err != nil {
		return err
	}
	c.reg.Spawn(ball)
	c.totalSpawned++
	event.Emit(c.bus, event.BallSpawned{
		Ball:  handle.ID(ball.body),
		Step:  c.ring.StepCount(),
		X:     pos.X,
		Y:     pos.Y,
		Color: color,
	})
	return nil
}

// spawnVelocity builds the launch vector. Angle mode samples uniformly in
// [AngleMin, AngleMax] per ball from the controller's seeded source.
func (c *Controller) spawnVelocity() geom.Vec2 {
	if c.spawn.Mode == "fixed" {
		return geom.V(c.spawn.VX, c.spawn.VY)
	}
	a := c.spawn.AngleMin
	if span := c.spawn.AngleMax - c.spawn.AngleMin; span > 0 {
		a += c.rng.Float64() * span
	}
	return geom.Polar(a, c.spawn.Speed)
}

func (c *Controller) trigger() string {
	if c.spawn.Trigger == "touch" {
		return "touch"
	}
	return "escape"
}

func (c *Controller) Spawned() int { return c.totalSpawned }
func (c *Controller) Escaped() int { return c.escaped }
func (c *Controller) Killed() int  { return c.killed }

// Live is the number of balls currently in play.
func (c *Controller) Live() int { return c.totalSpawned - c.killed }

func (c *Controller) Stats() render.Stats {
	return render.Stats{
		Spawned: c.totalSpawned,
		Escaped: c.escaped,
		Killed:  c.killed,
		Live:    c.Live(),
	}
}
