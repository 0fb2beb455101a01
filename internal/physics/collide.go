package physics

import (
	"math"

	"github.com/karfly/ball-satisfaction/internal/geom"
)

// manifold is one contact between two colliders. normal points from the
// first collider toward the second. restitution combines as the pair
// minimum, friction as the geometric mean.
type manifold struct {
	bodyA, bodyB int // body slot indices
	normal       geom.Vec2
	penetration  float64
	restitution  float64
	friction     float64
}

// collideCircleCircle returns the contact normal from A toward B.
func collideCircleCircle(posA geom.Vec2, rA float64, posB geom.Vec2, rB float64) (geom.Vec2, float64, bool) {
	delta := posB.Sub(posA)
	distSq := delta.LenSq()
	total := rA + rB
	if distSq >= total*total {
		return geom.Vec2{}, 0, false
	}
	dist := math.Sqrt(distSq)
	if dist == 0 {
		// coincident centers: pick a fixed axis
		return geom.V(1, 0), total, true
	}
	return delta.Scale(1 / dist), total - dist, true
}

// collideCircleBox returns the contact normal from the box toward the
// circle. The box is oriented; the test runs in box-local space.
func collideCircleBox(circlePos geom.Vec2, r float64, boxPos geom.Vec2, boxRot, halfW, halfH float64) (geom.Vec2, float64, bool) {
	local := circlePos.Sub(boxPos).Rotate(-boxRot)

	closest := geom.V(
		math.Max(-halfW, math.Min(local.X, halfW)),
		math.Max(-halfH, math.Min(local.Y, halfH)),
	)
	delta := local.Sub(closest)
	distSq := delta.LenSq()
	if distSq >= r*r {
		return geom.Vec2{}, 0, false
	}

	var normal geom.Vec2
	var pen float64
	if distSq > 0 {
		dist := math.Sqrt(distSq)
		normal = delta.Scale(1 / dist)
		pen = r - dist
	} else {
		// center inside the box: push out along the shallow axis
		xDist := halfW - math.Abs(local.X)
		yDist := halfH - math.Abs(local.Y)
		if xDist < yDist {
			if local.X < 0 {
				normal = geom.V(-1, 0)
			} else {
				normal = geom.V(1, 0)
			}
			pen = xDist + r
		} else {
			if local.Y < 0 {
				normal = geom.V(0, -1)
			} else {
				normal = geom.V(0, 1)
			}
			pen = yDist + r
		}
	}
	return normal.Rotate(boxRot), pen, true
}

// collideCircleCapsule returns the contact normal from the capsule toward
// the circle.
func collideCircleCapsule(circlePos geom.Vec2, r float64, capPos geom.Vec2, capRot, halfLen, capR float64) (geom.Vec2, float64, bool) {
	axis := geom.Polar(capRot, halfLen)
	p1 := capPos.Sub(axis)
	p2 := capPos.Add(axis)

	closest := geom.ClosestOnSegment(circlePos, p1, p2)
	delta := circlePos.Sub(closest)
	distSq := delta.LenSq()
	total := r + capR
	if distSq >= total*total {
		return geom.Vec2{}, 0, false
	}
	dist := math.Sqrt(distSq)
	if dist == 0 {
		return geom.Polar(capRot+math.Pi/2, 1), total, true
	}
	return delta.Scale(1 / dist), total - dist, true
}

// collidePair runs the narrow phase for two collider slots. The returned
// normal points from a toward b. Pairs with no supported shape combination
// report no contact.
func collidePair(a, b *colliderSlot) (geom.Vec2, float64, bool) {
	sa, sb := a.def.Shape, b.def.Shape
	switch {
	case sa.Kind == KindCircle && sb.Kind == KindCircle:
		return collideCircleCircle(a.worldPos, sa.Radius, b.worldPos, sb.Radius)

	case sa.Kind == KindCircle && sb.Kind == KindBox:
		n, pen, ok := collideCircleBox(a.worldPos, sa.Radius, b.worldPos, b.worldRot, sb.HalfW, sb.HalfH)
		return n.Neg(), pen, ok
	case sa.Kind == KindBox && sb.Kind == KindCircle:
		return collideCircleBox(b.worldPos, sb.Radius, a.worldPos, a.worldRot, sa.HalfW, sa.HalfH)

	case sa.Kind == KindCircle && sb.Kind == KindCapsule:
		n, pen, ok := collideCircleCapsule(a.worldPos, sa.Radius, b.worldPos, b.worldRot, sb.HalfLen, sb.Radius)
		return n.Neg(), pen, ok
	case sa.Kind == KindCapsule && sb.Kind == KindCircle:
		return collideCircleCapsule(b.worldPos, sb.Radius, a.worldPos, a.worldRot, sa.HalfLen, sa.Radius)
	}
	return geom.Vec2{}, 0, false
}

// overlapPair reports whether two collider slots overlap. Shape pairs
// without an exact test fall back to AABB overlap, which is conservative
// and only reachable for non-ball geometry.
func overlapPair(a, b *colliderSlot) bool {
	sa, sb := a.def.Shape, b.def.Shape
	if sa.Kind == KindCircle || sb.Kind == KindCircle {
		_, _, ok := collidePair(a, b)
		return ok
	}
	return a.bounds.overlaps(b.bounds)
}

func combineRestitution(a, b float64) float64 {
	return math.Min(a, b)
}

func combineFriction(a, b float64) float64 {
	return math.Sqrt(a * b)
}
