package sim

import (
	"math"

	"github.com/karfly/ball-satisfaction/internal/data"
	"github.com/karfly/ball-satisfaction/internal/geom"
)

// SegmentPlacement positions one wall or sensor box on the ring
// centerline: the angular midpoint and the half-length of the chord box.
type SegmentPlacement struct {
	Angle   float64
	HalfLen float64
}

// GeometryPlan is the pure output of arena layout: where wall segments,
// escape sensors and gap corner caps go. Building colliders from it is the
// ring entity's job.
type GeometryPlan struct {
	Segments []SegmentPlacement // physical wall, gap excluded
	Sensors  []SegmentPlacement // closed detection ring, never gapped
	Corners  []float64          // gap edge angles for capsule caps
}

// BuildGeometry lays out the ring from an arena spec.
//
// Wall segments sit at midpoints (i+0.5)·(2π/n) with half-length
// R·tan(π/n), so adjacent boxes meet exactly and the wall is hole-free. A
// segment is excluded when its midpoint falls inside the closed gap arc
// [center-width/2, center+width/2]; both boundaries count as inside. A gap
// width of 2π or more removes every segment.
//
// The sensor ring uses its own segment count and sits SensorOffset beyond
// the wall centerline with no gap, so an escaping ball is detected at any
// angle.
//
// Corner caps are emitted for the two gap edges when a positive corner
// radius, a real gap and at least one wall segment exist; degenerate specs
// yield one or zero caps.
func BuildGeometry(spec data.ArenaSpec) GeometryPlan {
	var plan GeometryPlan

	gapStart := spec.GapCenter - spec.GapWidth/2
	gapEnd := spec.GapCenter + spec.GapWidth/2
	fullGap := spec.GapWidth >= geom.TwoPi

	step := geom.TwoPi / float64(spec.Segments)
	halfLen := spec.Radius * math.Tan(step/2)
	for i := 0; i < spec.Segments; i++ {
		mid := (float64(i) + 0.5) * step
		if fullGap || geom.InArc(mid, gapStart, gapEnd) {
			continue
		}
		plan.Segments = append(plan.Segments, SegmentPlacement{Angle: mid, HalfLen: halfLen})
	}

	sensorRadius := spec.Radius + spec.SensorOffset
	sensorStep := geom.TwoPi / float64(spec.SensorSegments)
	sensorHalfLen := sensorRadius * math.Tan(sensorStep/2)
	for i := 0; i < spec.SensorSegments; i++ {
		mid := (float64(i) + 0.5) * sensorStep
		plan.Sensors = append(plan.Sensors, SegmentPlacement{Angle: mid, HalfLen: sensorHalfLen})
	}

	if spec.CornerRadius > 0 && spec.GapWidth > 0 && len(plan.Segments) > 0 {
		s := geom.NormAngle(gapStart)
		e := geom.NormAngle(gapEnd)
		plan.Corners = append(plan.Corners, s)
		if e != s {
			plan.Corners = append(plan.Corners, e)
		}
	}

	return plan
}
