package physics

import (
	"math"

	"github.com/karfly/ball-satisfaction/internal/geom"
)

type ShapeKind uint8

const (
	KindCircle ShapeKind = iota
	KindBox
	KindCapsule
)

// Shape is a closed set of collider geometries. Boxes are oriented by the
// collider's world rotation; capsules run along the local X axis with
// rounded caps at ±HalfLen.
type Shape struct {
	Kind    ShapeKind
	Radius  float64 // circle, capsule
	HalfW   float64 // box
	HalfH   float64 // box
	HalfLen float64 // capsule
}

func Circle(radius float64) Shape {
	return Shape{Kind: KindCircle, Radius: radius}
}

func Box(halfW, halfH float64) Shape {
	return Shape{Kind: KindBox, HalfW: halfW, HalfH: halfH}
}

func Capsule(halfLen, radius float64) Shape {
	return Shape{Kind: KindCapsule, HalfLen: halfLen, Radius: radius}
}

// area is the mass contribution basis for dynamic bodies.
func (s Shape) area() float64 {
	switch s.Kind {
	case KindCircle:
		return math.Pi * s.Radius * s.Radius
	case KindBox:
		return 4 * s.HalfW * s.HalfH
	case KindCapsule:
		return 4*s.HalfLen*s.Radius + math.Pi*s.Radius*s.Radius
	}
	return 0
}

type aabb struct {
	min, max geom.Vec2
}

func (a aabb) overlaps(b aabb) bool {
	return a.min.X <= b.max.X && a.max.X >= b.min.X &&
		a.min.Y <= b.max.Y && a.max.Y >= b.min.Y
}

// bounds computes the world-space AABB of the shape at pos with rotation rot.
func (s Shape) bounds(pos geom.Vec2, rot float64) aabb {
	switch s.Kind {
	case KindCircle:
		r := s.Radius
		return aabb{geom.V(pos.X-r, pos.Y-r), geom.V(pos.X+r, pos.Y+r)}
	case KindBox:
		sin, cos := math.Sincos(rot)
		ex := math.Abs(cos)*s.HalfW + math.Abs(sin)*s.HalfH
		ey := math.Abs(sin)*s.HalfW + math.Abs(cos)*s.HalfH
		return aabb{geom.V(pos.X-ex, pos.Y-ey), geom.V(pos.X+ex, pos.Y+ey)}
	case KindCapsule:
		d := geom.Polar(rot, s.HalfLen)
		r := s.Radius
		minX := math.Min(pos.X-d.X, pos.X+d.X) - r
		maxX := math.Max(pos.X-d.X, pos.X+d.X) + r
		minY := math.Min(pos.Y-d.Y, pos.Y+d.Y) - r
		maxY := math.Max(pos.Y-d.Y, pos.Y+d.Y) + r
		return aabb{geom.V(minX, minY), geom.V(maxX, maxY)}
	}
	return aabb{}
}
