package sim

import (
	"testing"

	"github.com/karfly/ball-satisfaction/internal/core/handle"
	"github.com/karfly/ball-satisfaction/internal/physics"
)

func TestRingRotationDerivedFromStepCount(t *testing.T) {
	world := physics.NewWorld(physics.WorldDef{})
	spec := testArenaSpec()
	spec.SpinSpeed = 1.7
	ring, err := NewRing(world, spec, 0)
	if err != nil {
		t.Fatalf("build ring: %v", err)
	}

	const dt = 1.0 / 120
	const steps = 600
	for i := 0; i < steps; i++ {
		ring.Step(dt)
	}

	// bit-exact: rotation is recomputed from the counter, never accumulated
	want := spec.SpinSpeed * dt * float64(steps)
	if got := ring.Rotation(); got != want {
		t.Fatalf("Rotation = %v, want exactly %v", got, want)
	}
	if got, ok := world.Rotation(ring.Body()); !ok || got != want {
		t.Fatalf("body rotation = %v, %v, want exactly %v", got, ok, want)
	}
	if ring.StepCount() != steps {
		t.Fatalf("StepCount = %d, want %d", ring.StepCount(), steps)
	}
}

func TestRingColliderLayout(t *testing.T) {
	world := physics.NewWorld(physics.WorldDef{})
	spec := testArenaSpec()
	spec.CornerRadius = 2
	ring, err := NewRing(world, spec, 0)
	if err != nil {
		t.Fatalf("build ring: %v", err)
	}

	plan := BuildGeometry(spec)
	if got := len(ring.ContactColliders()); got != len(plan.Segments)+len(plan.Corners) {
		t.Fatalf("contact colliders = %d, want %d segments + %d caps",
			got, len(plan.Segments), len(plan.Corners))
	}
	if got := len(ring.EscapeColliders()); got != spec.SensorSegments {
		t.Fatalf("escape colliders = %d, want %d", got, spec.SensorSegments)
	}

	for _, col := range ring.EscapeColliders() {
		sensor, ok := world.ColliderIsSensor(col)
		if !ok || !sensor {
			t.Fatalf("escape collider %v: sensor = %v, %v", col, sensor, ok)
		}
	}
	for _, col := range ring.ContactColliders() {
		sensor, ok := world.ColliderIsSensor(col)
		if !ok || sensor {
			t.Fatalf("contact collider %v: sensor = %v, %v", col, sensor, ok)
		}
	}
}

func TestRingTouchCooldown(t *testing.T) {
	world := physics.NewWorld(physics.WorldDef{})
	ring, err := NewRing(world, testArenaSpec(), 10)
	if err != nil {
		t.Fatalf("build ring: %v", err)
	}
	ball := physics.BodyID(handle.New(7, 1))

	if !ring.TouchReady(ball, 5) {
		t.Fatal("first touch must be ready")
	}
	ring.MarkTouch(ball, 5)

	if ring.TouchReady(ball, 14) {
		t.Fatal("step 14 is inside the 10-step cooldown from step 5")
	}
	if !ring.TouchReady(ball, 15) {
		t.Fatal("step 15 ends the cooldown")
	}

	ring.ClearBall(ball)
	if !ring.TouchReady(ball, 6) {
		t.Fatal("cleared ball must be ready immediately")
	}
}

func TestRingZeroCooldownAlwaysReady(t *testing.T) {
	world := physics.NewWorld(physics.WorldDef{})
	ring, err := NewRing(world, testArenaSpec(), 0)
	if err != nil {
		t.Fatalf("build ring: %v", err)
	}
	ball := physics.BodyID(handle.New(3, 1))

	ring.MarkTouch(ball, 8)
	if !ring.TouchReady(ball, 8) {
		t.Fatal("zero cooldown must never suppress")
	}
}

func TestRingDisposeReleasesBody(t *testing.T) {
	world := physics.NewWorld(physics.WorldDef{})
	ring, err := NewRing(world, testArenaSpec(), 0)
	if err != nil {
		t.Fatalf("build ring: %v", err)
	}

	ring.Dispose()
	if world.BodyAlive(ring.Body()) {
		t.Fatal("ring body alive after dispose")
	}
	if world.ColliderCount() != 0 {
		t.Fatalf("collider count = %d, want 0 after dispose", world.ColliderCount())
	}
}
