package sim

import (
	"fmt"

	"github.com/karfly/ball-satisfaction/internal/data"
	"github.com/karfly/ball-satisfaction/internal/geom"
	"github.com/karfly/ball-satisfaction/internal/physics"
	"github.com/karfly/ball-satisfaction/internal/render"
)

type Kind uint8

const (
	KindBall Kind = iota
	KindRing
	KindBounds
)

func (k Kind) String() string {
	switch k {
	case KindBall:
		return "ball"
	case KindRing:
		return "ring"
	case KindBounds:
		return "bounds"
	}
	return "unknown"
}

// Entity is the closed set of simulated things. An entity owns exactly one
// physics body; the body handle doubles as its identity everywhere
// (registry index, contact routing, render IDs).
type Entity interface {
	Kind() Kind
	Body() physics.BodyID
	// Step runs per-step behavior before physics integration.
	Step(dt float64)
	// State returns the current drawable snapshot.
	State() render.EntityState
	// Dispose removes the physics representation. The registry calls it
	// exactly once, before dropping its own bookkeeping.
	Dispose()
}

// Ball is a dynamic circle. Balls never act on their own; physics moves
// them and sensors decide their fate.
type Ball struct {
	world  *physics.World
	body   physics.BodyID
	col    physics.ColliderID
	radius float64
	color  string
}

func NewBall(w *physics.World, spec data.BallSpec, pos, vel geom.Vec2, color string) (*Ball, error) {
	body := w.CreateBody(physics.BodyDef{Type: physics.Dynamic, Pos: pos, Vel: vel})
	col, err := w.CreateCollider(body, physics.ColliderDef{
		Shape:        physics.Circle(spec.Radius),
		ActiveEvents: true,
		Restitution:  spec.Restitution,
		Friction:     spec.Friction,
		Density:      spec.Density,
	})
	if err != nil {
		w.RemoveBody(body)
		return nil, fmt.Errorf("ball collider: %w", err)
	}
	return &Ball{world: w, body: body, col: col, radius: spec.Radius, color: color}, nil
}

func (b *Ball) Kind() Kind           { return KindBall }
func (b *Ball) Body() physics.BodyID { return b.body }
func (b *Ball) Step(dt float64)      {}
func (b *Ball) Color() string        { return b.color }

// Position returns the current body translation, or the zero vector for a
// disposed ball.
func (b *Ball) Position() geom.Vec2 {
	pos, _ := b.world.Translation(b.body)
	return pos
}

func (b *Ball) State() render.EntityState {
	pos := b.Position()
	return render.EntityState{
		ID:     b.body.Raw(),
		Class:  "ball",
		X:      pos.X,
		Y:      pos.Y,
		Radius: b.radius,
		Color:  b.color,
	}
}

func (b *Ball) Dispose() {
	b.world.RemoveBody(b.body)
}
