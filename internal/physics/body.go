package physics

import (
	"github.com/karfly/ball-satisfaction/internal/core/handle"
	"github.com/karfly/ball-satisfaction/internal/geom"
)

// BodyID and ColliderID are generational handles into the world's slot
// arenas. The zero value is never a live handle. Holders must expect any
// stored ID to go stale; all world queries revalidate before use.
type BodyID handle.ID

type ColliderID handle.ID

func (id BodyID) IsZero() bool     { return handle.ID(id).IsZero() }
func (id BodyID) Raw() uint64      { return uint64(id) }
func (id ColliderID) IsZero() bool { return handle.ID(id).IsZero() }
func (id ColliderID) Raw() uint64  { return uint64(id) }

type BodyType uint8

const (
	Static BodyType = iota
	// Kinematic bodies follow externally set transforms and are immovable
	// to the solver.
	Kinematic
	Dynamic
)

type BodyDef struct {
	Type BodyType
	Pos  geom.Vec2
	Vel  geom.Vec2
	Rot  float64
}

type ColliderDef struct {
	Shape  Shape
	Offset geom.Vec2 // local offset from the body origin
	Angle  float64   // local rotation relative to the body

	// Sensor colliders detect overlap without generating contact forces.
	Sensor bool
	// ActiveEvents opts the collider into begin/end contact events. A pair
	// reports events when either side has it set.
	ActiveEvents bool

	Restitution float64
	Friction    float64
	Density     float64 // mass per unit area, dynamic bodies only
}

type bodySlot struct {
	id        BodyID // zero when vacant
	kind      BodyType
	pos       geom.Vec2
	vel       geom.Vec2
	rot       float64
	invMass   float64
	colliders []ColliderID
}

type colliderSlot struct {
	id   ColliderID // zero when vacant
	body BodyID
	def  ColliderDef

	// world-space transform, refreshed each step and on body mutation
	worldPos geom.Vec2
	worldRot float64
	bounds   aabb
}
