package sim

import (
	"github.com/karfly/ball-satisfaction/internal/core/event"
	"github.com/karfly/ball-satisfaction/internal/core/system"
	"github.com/karfly/ball-satisfaction/internal/physics"
	"github.com/karfly/ball-satisfaction/internal/render"
)

// actuateSystem drives per-entity behavior ahead of integration. Only the
// ring does anything here; balls are moved by physics alone.
type actuateSystem struct {
	reg *Registry
}

func (s *actuateSystem) Phase() system.Phase { return system.PhaseActuate }

func (s *actuateSystem) Update(dt float64) {
	s.reg.ForEach(func(e Entity) { e.Step(dt) })
}

// physicsSystem advances the world one fixed step and routes the contact
// events it produced. Lifecycle changes happen here, synchronously, so the
// sync phase sees the post-step entity set.
type physicsSystem struct {
	world  *physics.World
	router *Router
}

func (s *physicsSystem) Phase() system.Phase { return system.PhaseIntegrate }

func (s *physicsSystem) Update(dt float64) {
	s.world.Step(dt)
	s.router.Dispatch(s.world.DrainContactEvents())
}

// syncSystem snapshots every live entity into a frame for the feed. The
// ring's step counter is the canonical step clock.
type syncSystem struct {
	reg     *Registry
	ctrl    *Controller
	ring    *Ring
	feed    render.Feed
	stepDur float64
}

func (s *syncSystem) Phase() system.Phase { return system.PhaseSync }

func (s *syncSystem) Update(dt float64) {
	step := s.ring.StepCount()
	frame := render.Frame{
		Step:     step,
		Time:     float64(step) * s.stepDur,
		Stats:    s.ctrl.Stats(),
		Entities: make([]render.EntityState, 0, s.reg.Len()),
	}
	s.reg.ForEach(func(e Entity) {
		frame.Entities = append(frame.Entities, e.State())
	})
	s.feed.PublishFrame(frame)
}

// observeSystem delivers the step's buffered events to subscribers. Events
// emitted by a handler land in the next step's batch.
type observeSystem struct {
	bus *event.Bus
}

func (s *observeSystem) Phase() system.Phase { return system.PhaseObserve }

func (s *observeSystem) Update(dt float64) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
