package sim

import (
	"fmt"
	"math"

	"github.com/karfly/ball-satisfaction/internal/data"
	"github.com/karfly/ball-satisfaction/internal/geom"
	"github.com/karfly/ball-satisfaction/internal/physics"
	"github.com/karfly/ball-satisfaction/internal/render"
)

// Ring is the spinning arena wall: one kinematic body carrying the wall
// segment boxes, the gap corner caps and the closed escape sensor ring.
//
// The ring is its own actuator. Orientation is recomputed from the step
// counter every step, never accumulated, so after N steps the rotation is
// exactly SpinSpeed·dt·N regardless of float rounding along the way.
type Ring struct {
	world *physics.World
	body  physics.BodyID
	spec  data.ArenaSpec

	contactCols []physics.ColliderID // wall segments + corner caps
	sensorCols  []physics.ColliderID

	steps    uint64
	rotation float64

	// wall touch effect cooldown, per live ball
	cooldown  uint64
	touchLast map[physics.BodyID]uint64
}

func NewRing(w *physics.World, spec data.ArenaSpec, touchCooldownSteps int) (*Ring, error) {
	plan := BuildGeometry(spec)
	body := w.CreateBody(physics.BodyDef{Type: physics.Kinematic})

	r := &Ring{
		world:     w,
		body:      body,
		spec:      spec,
		cooldown:  uint64(touchCooldownSteps),
		touchLast: make(map[physics.BodyID]uint64),
	}

	for _, seg := range plan.Segments {
		col, err := w.CreateCollider(body, physics.ColliderDef{
			Shape:        physics.Box(seg.HalfLen, spec.Thickness/2),
			Offset:       geom.Polar(seg.Angle, spec.Radius),
			Angle:        seg.Angle + math.Pi/2,
			ActiveEvents: true,
			Restitution:  spec.Restitution,
			Friction:     spec.Friction,
		})
		if err != nil {
			return nil, fmt.Errorf("ring segment: %w", err)
		}
		r.contactCols = append(r.contactCols, col)
	}

	for _, edge := range plan.Corners {
		col, err := w.CreateCollider(body, physics.ColliderDef{
			Shape:        physics.Capsule(spec.Thickness/2, spec.CornerRadius),
			Offset:       geom.Polar(edge, spec.Radius),
			Angle:        edge, // capsule axis radial, capping the exposed wall end
			ActiveEvents: true,
			Restitution:  spec.Restitution,
			Friction:     spec.Friction,
		})
		if err != nil {
			return nil, fmt.Errorf("ring corner cap: %w", err)
		}
		r.contactCols = append(r.contactCols, col)
	}

	sensorRadius := spec.Radius + spec.SensorOffset
	for _, seg := range plan.Sensors {
		col, err := w.CreateCollider(body, physics.ColliderDef{
			Shape:        physics.Box(seg.HalfLen, spec.SensorThickness/2),
			Offset:       geom.Polar(seg.Angle, sensorRadius),
			Angle:        seg.Angle + math.Pi/2,
			Sensor:       true,
			ActiveEvents: true,
		})
		if err != nil {
			return nil, fmt.Errorf("ring escape sensor: %w", err)
		}
		r.sensorCols = append(r.sensorCols, col)
	}

	return r, nil
}

func (r *Ring) Kind() Kind           { return KindRing }
func (r *Ring) Body() physics.BodyID { return r.body }

// Step advances the spin. The kinematic target is absolute: the body is
// set to the derived orientation, it never integrates toward it.
func (r *Ring) Step(dt float64) {
	r.steps++
	r.rotation = r.spec.SpinSpeed * dt * float64(r.steps)
	r.world.SetRotation(r.body, r.rotation)
}

func (r *Ring) Rotation() float64 { return r.rotation }
func (r *Ring) StepCount() uint64 { return r.steps }

// ContactColliders returns the physical wall colliders, caps included.
func (r *Ring) ContactColliders() []physics.ColliderID { return r.contactCols }

// EscapeColliders returns the sensor ring colliders.
func (r *Ring) EscapeColliders() []physics.ColliderID { return r.sensorCols }

// TouchReady reports whether a wall touch effect may fire for the ball at
// the given step. A zero cooldown always allows it.
func (r *Ring) TouchReady(ball physics.BodyID, step uint64) bool {
	if r.cooldown == 0 {
		return true
	}
	last, seen := r.touchLast[ball]
	return !seen || step-last >= r.cooldown
}

func (r *Ring) MarkTouch(ball physics.BodyID, step uint64) {
	r.touchLast[ball] = step
}

// ClearBall drops per-ball touch tracking. Called when the ball is
// removed; a reused handle value must start fresh.
func (r *Ring) ClearBall(ball physics.BodyID) {
	delete(r.touchLast, ball)
}

func (r *Ring) State() render.EntityState {
	return render.EntityState{
		ID:         r.body.Raw(),
		Class:      "ring",
		Rot:        r.rotation,
		RingRadius: r.spec.Radius,
		Thickness:  r.spec.Thickness,
		GapWidth:   r.spec.GapWidth,
		GapCenter:  r.spec.GapCenter,
	}
}

func (r *Ring) Dispose() {
	r.world.RemoveBody(r.body)
}
