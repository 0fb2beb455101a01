package physics

import (
	"fmt"
	"math"
	"sort"

	"github.com/karfly/ball-satisfaction/internal/core/handle"
	"github.com/karfly/ball-satisfaction/internal/geom"
)

const (
	solverIterations  = 6
	correctionPercent = 0.4
	correctionSlop    = 0.005
)

// ContactEvent reports a pair of colliders starting or stopping contact.
// Events accumulate during Step and are consumed with DrainContactEvents.
type ContactEvent struct {
	A, B    ColliderID
	Started bool
}

type pairKey struct {
	a, b ColliderID
}

func makePair(x, y ColliderID) pairKey {
	if x < y {
		return pairKey{x, y}
	}
	return pairKey{y, x}
}

type WorldDef struct {
	Gravity geom.Vec2
}

// World steps rigid bodies with a fixed timestep. It is not safe for
// concurrent use; the owning loop goroutine drives it. All iteration runs
// in slot index order so identical inputs produce identical results.
type World struct {
	gravity geom.Vec2

	bodyPool     *handle.Pool
	bodies       []bodySlot
	colliderPool *handle.Pool
	colliders    []colliderSlot

	touching  map[pairKey]struct{}
	events    []ContactEvent
	manifolds []manifold

	liveBodies    int
	liveColliders int
}

func NewWorld(def WorldDef) *World {
	return &World{
		gravity:      def.Gravity,
		bodyPool:     handle.NewPool(),
		colliderPool: handle.NewPool(),
		touching:     make(map[pairKey]struct{}),
	}
}

func (w *World) CreateBody(def BodyDef) BodyID {
	id := BodyID(w.bodyPool.Create())
	idx := int(handle.ID(id).Index())
	for idx >= len(w.bodies) {
		w.bodies = append(w.bodies, bodySlot{})
	}
	w.bodies[idx] = bodySlot{
		id:   id,
		kind: def.Type,
		pos:  def.Pos,
		vel:  def.Vel,
		rot:  def.Rot,
	}
	w.liveBodies++
	return id
}

// RemoveBody removes a body and all of its colliders. Stale IDs are a
// no-op.
func (w *World) RemoveBody(id BodyID) {
	b := w.bodyAt(id)
	if b == nil {
		return
	}
	for len(b.colliders) > 0 {
		w.RemoveCollider(b.colliders[len(b.colliders)-1])
	}
	idx := int(handle.ID(id).Index())
	w.bodyPool.Release(handle.ID(id))
	w.bodies[idx] = bodySlot{}
	w.liveBodies--
}

func (w *World) CreateCollider(body BodyID, def ColliderDef) (ColliderID, error) {
	b := w.bodyAt(body)
	if b == nil {
		return 0, fmt.Errorf("physics: create collider: body %d not alive", body)
	}
	id := ColliderID(w.colliderPool.Create())
	idx := int(handle.ID(id).Index())
	for idx >= len(w.colliders) {
		w.colliders = append(w.colliders, colliderSlot{})
	}
	w.colliders[idx] = colliderSlot{id: id, body: body, def: def}
	b.colliders = append(b.colliders, id)
	w.recomputeMass(b)
	w.refreshCollider(&w.colliders[idx], b)
	w.liveColliders++
	return id, nil
}

// RemoveCollider detaches and frees a collider. Overlap tracking entries
// involving it are dropped without emitting end events. Stale IDs are a
// no-op.
func (w *World) RemoveCollider(id ColliderID) {
	c := w.colliderAt(id)
	if c == nil {
		return
	}
	if b := w.bodyAt(c.body); b != nil {
		for i, cid := range b.colliders {
			if cid == id {
				b.colliders = append(b.colliders[:i], b.colliders[i+1:]...)
				break
			}
		}
		w.recomputeMass(b)
	}
	for k := range w.touching {
		if k.a == id || k.b == id {
			delete(w.touching, k)
		}
	}
	idx := int(handle.ID(id).Index())
	w.colliderPool.Release(handle.ID(id))
	w.colliders[idx] = colliderSlot{}
	w.liveColliders--
}

// Step integrates dynamic bodies, detects contacts and resolves them.
// dt is the fixed step duration in seconds.
func (w *World) Step(dt float64) {
	for i := range w.bodies {
		b := &w.bodies[i]
		if b.id.IsZero() || b.kind != Dynamic {
			continue
		}
		b.vel = b.vel.Add(w.gravity.Scale(dt))
		b.pos = b.pos.Add(b.vel.Scale(dt))
	}
	w.refreshTransforms()

	w.manifolds = w.manifolds[:0]
	current := make(map[pairKey]struct{}, len(w.touching))

	for i := 0; i < len(w.colliders); i++ {
		a := &w.colliders[i]
		if a.id.IsZero() {
			continue
		}
		for j := i + 1; j < len(w.colliders); j++ {
			b := &w.colliders[j]
			if b.id.IsZero() || a.body == b.body {
				continue
			}
			if a.def.Sensor && b.def.Sensor {
				continue
			}
			if !a.bounds.overlaps(b.bounds) {
				continue
			}

			ba := w.bodyAt(a.body)
			bb := w.bodyAt(b.body)
			if a.def.Sensor || b.def.Sensor {
				if !overlapPair(a, b) {
					continue
				}
			} else {
				if ba.kind != Dynamic && bb.kind != Dynamic {
					continue
				}
				n, pen, ok := collidePair(a, b)
				if !ok {
					continue
				}
				w.manifolds = append(w.manifolds, manifold{
					bodyA:       int(handle.ID(a.body).Index()),
					bodyB:       int(handle.ID(b.body).Index()),
					normal:      n,
					penetration: pen,
					restitution: combineRestitution(a.def.Restitution, b.def.Restitution),
					friction:    combineFriction(a.def.Friction, b.def.Friction),
				})
			}

			if a.def.ActiveEvents || b.def.ActiveEvents {
				k := makePair(a.id, b.id)
				current[k] = struct{}{}
				if _, was := w.touching[k]; !was {
					w.events = append(w.events, ContactEvent{A: k.a, B: k.b, Started: true})
				}
			}
		}
	}

	for it := 0; it < solverIterations; it++ {
		for i := range w.manifolds {
			w.resolveManifold(&w.manifolds[i])
		}
	}

	var ended []pairKey
	for k := range w.touching {
		if _, still := current[k]; !still {
			ended = append(ended, k)
		}
	}
	sort.Slice(ended, func(i, j int) bool {
		if ended[i].a != ended[j].a {
			return ended[i].a < ended[j].a
		}
		return ended[i].b < ended[j].b
	})
	for _, k := range ended {
		w.events = append(w.events, ContactEvent{A: k.a, B: k.b, Started: false})
	}
	w.touching = current
}

// DrainContactEvents returns events accumulated since the last drain and
// clears the queue.
func (w *World) DrainContactEvents() []ContactEvent {
	evs := w.events
	w.events = nil
	return evs
}

func (w *World) resolveManifold(m *manifold) {
	ba := &w.bodies[m.bodyA]
	bb := &w.bodies[m.bodyB]
	invSum := ba.invMass + bb.invMass
	if invSum == 0 {
		return
	}

	rel := bb.vel.Sub(ba.vel)
	van := rel.Dot(m.normal)
	if van > 0 {
		return // already separating
	}

	j := -(1 + m.restitution) * van / invSum
	impulse := m.normal.Scale(j)
	ba.vel = ba.vel.Sub(impulse.Scale(ba.invMass))
	bb.vel = bb.vel.Add(impulse.Scale(bb.invMass))

	// friction along the contact tangent, clamped by the normal impulse
	rel = bb.vel.Sub(ba.vel)
	tangent := rel.Sub(m.normal.Scale(rel.Dot(m.normal)))
	if tSq := tangent.LenSq(); tSq > 1e-12 {
		tangent = tangent.Scale(1 / math.Sqrt(tSq))
		jt := -rel.Dot(tangent) / invSum
		limit := m.friction * math.Abs(j)
		if jt > limit {
			jt = limit
		} else if jt < -limit {
			jt = -limit
		}
		fi := tangent.Scale(jt)
		ba.vel = ba.vel.Sub(fi.Scale(ba.invMass))
		bb.vel = bb.vel.Add(fi.Scale(bb.invMass))
	}

	if m.penetration > correctionSlop {
		corr := (m.penetration - correctionSlop) / invSum * correctionPercent
		cv := m.normal.Scale(corr)
		ba.pos = ba.pos.Sub(cv.Scale(ba.invMass))
		bb.pos = bb.pos.Add(cv.Scale(bb.invMass))
	}
}

func (w *World) refreshTransforms() {
	for i := range w.colliders {
		c := &w.colliders[i]
		if c.id.IsZero() {
			continue
		}
		b := w.bodyAt(c.body)
		w.refreshCollider(c, b)
	}
}

func (w *World) refreshCollider(c *colliderSlot, b *bodySlot) {
	c.worldPos = b.pos.Add(c.def.Offset.Rotate(b.rot))
	c.worldRot = b.rot + c.def.Angle
	c.bounds = c.def.Shape.bounds(c.worldPos, c.worldRot)
}

func (w *World) recomputeMass(b *bodySlot) {
	if b.kind != Dynamic {
		b.invMass = 0
		return
	}
	mass := 0.0
	for _, cid := range b.colliders {
		if c := w.colliderAt(cid); c != nil {
			mass += c.def.Density * c.def.Shape.area()
		}
	}
	if mass > 0 {
		b.invMass = 1 / mass
	} else {
		b.invMass = 0
	}
}

func (w *World) bodyAt(id BodyID) *bodySlot {
	if id.IsZero() {
		return nil
	}
	idx := int(handle.ID(id).Index())
	if idx >= len(w.bodies) {
		return nil
	}
	s := &w.bodies[idx]
	if s.id != id {
		return nil
	}
	return s
}

func (w *World) colliderAt(id ColliderID) *colliderSlot {
	if id.IsZero() {
		return nil
	}
	idx := int(handle.ID(id).Index())
	if idx >= len(w.colliders) {
		return nil
	}
	s := &w.colliders[idx]
	if s.id != id {
		return nil
	}
	return s
}

// BodyAlive reports whether the handle still refers to a live body.
func (w *World) BodyAlive(id BodyID) bool {
	return w.bodyAt(id) != nil
}

func (w *World) Translation(id BodyID) (geom.Vec2, bool) {
	if b := w.bodyAt(id); b != nil {
		return b.pos, true
	}
	return geom.Vec2{}, false
}

func (w *World) Rotation(id BodyID) (float64, bool) {
	if b := w.bodyAt(id); b != nil {
		return b.rot, true
	}
	return 0, false
}

func (w *World) LinVel(id BodyID) (geom.Vec2, bool) {
	if b := w.bodyAt(id); b != nil {
		return b.vel, true
	}
	return geom.Vec2{}, false
}

func (w *World) SetTranslation(id BodyID, pos geom.Vec2) {
	if b := w.bodyAt(id); b != nil {
		b.pos = pos
	}
}

func (w *World) SetLinVel(id BodyID, vel geom.Vec2) {
	if b := w.bodyAt(id); b != nil {
		b.vel = vel
	}
}

// SetRotation sets the absolute orientation of a body. Kinematic bodies
// are driven this way each step.
func (w *World) SetRotation(id BodyID, rot float64) {
	if b := w.bodyAt(id); b != nil {
		b.rot = rot
	}
}

// ColliderBody resolves the owning body of a collider.
func (w *World) ColliderBody(id ColliderID) (BodyID, bool) {
	if c := w.colliderAt(id); c != nil {
		return c.body, true
	}
	return 0, false
}

func (w *World) ColliderIsSensor(id ColliderID) (bool, bool) {
	if c := w.colliderAt(id); c != nil {
		return c.def.Sensor, true
	}
	return false, false
}

func (w *World) BodyCount() int     { return w.liveBodies }
func (w *World) ColliderCount() int { return w.liveColliders }
