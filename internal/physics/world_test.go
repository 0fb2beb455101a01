package physics

import (
	"math"
	"testing"

	"github.com/karfly/ball-satisfaction/internal/geom"
)

const testDt = 1.0 / 120

func TestBodyLifecycle(t *testing.T) {
	w := NewWorld(WorldDef{})

	id := w.CreateBody(BodyDef{Type: Dynamic, Pos: geom.V(1, 2)})
	if id.IsZero() {
		t.Fatal("CreateBody returned zero ID")
	}
	if !w.BodyAlive(id) {
		t.Fatal("fresh body not alive")
	}
	pos, ok := w.Translation(id)
	if !ok || pos != geom.V(1, 2) {
		t.Fatalf("Translation = %v, %v", pos, ok)
	}

	w.RemoveBody(id)
	if w.BodyAlive(id) {
		t.Error("removed body still alive")
	}
	if _, ok := w.Translation(id); ok {
		t.Error("Translation on stale handle returned ok")
	}

	// mutators on stale handles are no-ops
	w.SetLinVel(id, geom.V(9, 9))
	w.SetTranslation(id, geom.V(9, 9))
	w.RemoveBody(id)

	// slot reuse bumps the generation, so the stale ID stays dead
	id2 := w.CreateBody(BodyDef{Type: Dynamic})
	if id2 == id {
		t.Error("slot reuse reissued the same handle value")
	}
	if w.BodyAlive(id) {
		t.Error("stale handle alive after slot reuse")
	}
}

func TestCreateColliderOnDeadBody(t *testing.T) {
	w := NewWorld(WorldDef{})
	id := w.CreateBody(BodyDef{Type: Dynamic})
	w.RemoveBody(id)

	if _, err := w.CreateCollider(id, ColliderDef{Shape: Circle(1)}); err == nil {
		t.Fatal("expected error creating collider on dead body")
	}
}

func TestFreeFallIntegration(t *testing.T) {
	g := geom.V(0, -10)
	w := NewWorld(WorldDef{Gravity: g})
	id := w.CreateBody(BodyDef{Type: Dynamic, Pos: geom.V(0, 0)})

	const steps = 60
	for i := 0; i < steps; i++ {
		w.Step(testDt)
	}

	vel, _ := w.LinVel(id)
	wantVel := g.Y * testDt * steps
	if math.Abs(vel.Y-wantVel) > 1e-9 {
		t.Errorf("vel.Y = %v, want %v", vel.Y, wantVel)
	}

	// semi-implicit Euler: y = Σ g·dt²·i for i=1..steps
	wantY := g.Y * testDt * testDt * steps * (steps + 1) / 2
	pos, _ := w.Translation(id)
	if math.Abs(pos.Y-wantY) > 1e-9 {
		t.Errorf("pos.Y = %v, want %v", pos.Y, wantY)
	}
}

func TestElasticHeadOnSwapsVelocities(t *testing.T) {
	w := NewWorld(WorldDef{})
	def := ColliderDef{Shape: Circle(0.5), ActiveEvents: false, Restitution: 1, Friction: 0, Density: 1}

	a := w.CreateBody(BodyDef{Type: Dynamic, Pos: geom.V(-1, 0), Vel: geom.V(5, 0)})
	if _, err := w.CreateCollider(a, def); err != nil {
		t.Fatal(err)
	}
	b := w.CreateBody(BodyDef{Type: Dynamic, Pos: geom.V(1, 0), Vel: geom.V(-5, 0)})
	if _, err := w.CreateCollider(b, def); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 20; i++ {
		w.Step(testDt)
	}

	va, _ := w.LinVel(a)
	vb, _ := w.LinVel(b)
	if math.Abs(va.X+5) > 1e-9 || math.Abs(va.Y) > 1e-9 {
		t.Errorf("vel A = %v, want (-5,0)", va)
	}
	if math.Abs(vb.X-5) > 1e-9 || math.Abs(vb.Y) > 1e-9 {
		t.Errorf("vel B = %v, want (5,0)", vb)
	}
}

func TestBounceOffStaticFloor(t *testing.T) {
	w := NewWorld(WorldDef{})

	floor := w.CreateBody(BodyDef{Type: Static, Pos: geom.V(0, -0.5)})
	if _, err := w.CreateCollider(floor, ColliderDef{Shape: Box(10, 0.5), Restitution: 0.5, Friction: 0}); err != nil {
		t.Fatal(err)
	}
	ball := w.CreateBody(BodyDef{Type: Dynamic, Pos: geom.V(0, 1), Vel: geom.V(0, -4)})
	if _, err := w.CreateCollider(ball, ColliderDef{Shape: Circle(0.25), Restitution: 0.5, Friction: 0, Density: 1}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 25; i++ {
		w.Step(testDt)
	}

	vel, _ := w.LinVel(ball)
	if math.Abs(vel.Y-2.0) > 1e-9 {
		t.Errorf("vel.Y after bounce = %v, want 2 (restitution 0.5 of impact 4)", vel.Y)
	}
	if math.Abs(vel.X) > 1e-9 {
		t.Errorf("vel.X = %v, want 0 with zero friction", vel.X)
	}
}

func TestSensorCrossingEmitsBeginAndEnd(t *testing.T) {
	w := NewWorld(WorldDef{})

	gate := w.CreateBody(BodyDef{Type: Static, Pos: geom.V(0, 0)})
	gateCol, err := w.CreateCollider(gate, ColliderDef{Shape: Box(0.5, 2), Sensor: true, ActiveEvents: true})
	if err != nil {
		t.Fatal(err)
	}
	ball := w.CreateBody(BodyDef{Type: Dynamic, Pos: geom.V(-2, 0), Vel: geom.V(8, 0)})
	ballCol, err := w.CreateCollider(ball, ColliderDef{Shape: Circle(0.25), Density: 1})
	if err != nil {
		t.Fatal(err)
	}

	var got []ContactEvent
	for i := 0; i < 60; i++ {
		w.Step(testDt)
		got = append(got, w.DrainContactEvents()...)
	}

	if len(got) != 2 {
		t.Fatalf("got %d events, want 2 (begin, end): %+v", len(got), got)
	}
	for _, ev := range got {
		pair := makePair(ev.A, ev.B)
		if pair != makePair(gateCol, ballCol) {
			t.Errorf("event pair = (%v,%v), want gate/ball", ev.A, ev.B)
		}
	}
	if !got[0].Started || got[1].Started {
		t.Errorf("event order = %+v, want begin then end", got)
	}

	// sensors never generate contact forces
	vel, _ := w.LinVel(ball)
	if vel != geom.V(8, 0) {
		t.Errorf("ball velocity changed by sensor: %v", vel)
	}
}

func TestContactEventsRequireActiveFlag(t *testing.T) {
	w := NewWorld(WorldDef{})

	gate := w.CreateBody(BodyDef{Type: Static})
	if _, err := w.CreateCollider(gate, ColliderDef{Shape: Box(0.5, 2), Sensor: true}); err != nil {
		t.Fatal(err)
	}
	ball := w.CreateBody(BodyDef{Type: Dynamic, Pos: geom.V(-2, 0), Vel: geom.V(8, 0)})
	if _, err := w.CreateCollider(ball, ColliderDef{Shape: Circle(0.25), Density: 1}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 60; i++ {
		w.Step(testDt)
	}
	if evs := w.DrainContactEvents(); len(evs) != 0 {
		t.Fatalf("events without ActiveEvents flag: %+v", evs)
	}
}

func TestKinematicRotationMovesColliders(t *testing.T) {
	w := NewWorld(WorldDef{})

	kin := w.CreateBody(BodyDef{Type: Kinematic})
	if _, err := w.CreateCollider(kin, ColliderDef{Shape: Box(0.5, 0.5), Offset: geom.V(3, 0), ActiveEvents: true}); err != nil {
		t.Fatal(err)
	}
	probe := w.CreateBody(BodyDef{Type: Static, Pos: geom.V(0, 3)})
	if _, err := w.CreateCollider(probe, ColliderDef{Shape: Circle(0.5), Sensor: true, ActiveEvents: true}); err != nil {
		t.Fatal(err)
	}

	w.Step(testDt)
	if evs := w.DrainContactEvents(); len(evs) != 0 {
		t.Fatalf("unexpected contact before rotation: %+v", evs)
	}

	// quarter turn carries the offset collider onto the probe
	w.SetRotation(kin, math.Pi/2)
	w.Step(testDt)
	evs := w.DrainContactEvents()
	if len(evs) != 1 || !evs[0].Started {
		t.Fatalf("events after rotation = %+v, want one begin", evs)
	}

	if rot, _ := w.Rotation(kin); rot != math.Pi/2 {
		t.Errorf("Rotation = %v, want π/2", rot)
	}
}

func TestRemoveBodyDropsOverlapTracking(t *testing.T) {
	w := NewWorld(WorldDef{})

	gate := w.CreateBody(BodyDef{Type: Static})
	if _, err := w.CreateCollider(gate, ColliderDef{Shape: Box(1, 1), Sensor: true, ActiveEvents: true}); err != nil {
		t.Fatal(err)
	}
	ball := w.CreateBody(BodyDef{Type: Dynamic, Pos: geom.V(0, 0)})
	ballCol, err := w.CreateCollider(ball, ColliderDef{Shape: Circle(0.25), Density: 1})
	if err != nil {
		t.Fatal(err)
	}

	w.Step(testDt)
	evs := w.DrainContactEvents()
	if len(evs) != 1 || !evs[0].Started {
		t.Fatalf("expected one begin event, got %+v", evs)
	}

	// removal drops tracking silently: no end event, no stale lookups
	w.RemoveBody(ball)
	w.Step(testDt)
	if evs := w.DrainContactEvents(); len(evs) != 0 {
		t.Fatalf("events after removal = %+v, want none", evs)
	}
	if _, ok := w.ColliderBody(ballCol); ok {
		t.Error("ColliderBody resolved a removed collider")
	}
	if w.ColliderCount() != 1 || w.BodyCount() != 1 {
		t.Errorf("counts = %d bodies, %d colliders, want 1/1", w.BodyCount(), w.ColliderCount())
	}
}

func buildDeterminismScene(w *World) []BodyID {
	// static octagon of oriented walls around the origin
	for i := 0; i < 8; i++ {
		angle := 2 * math.Pi * float64(i) / 8
		wall := w.CreateBody(BodyDef{Type: Static, Pos: geom.Polar(angle, 3), Rot: angle + math.Pi/2})
		_, _ = w.CreateCollider(wall, ColliderDef{Shape: Box(1.3, 0.2), Restitution: 0.9, Friction: 0.1})
	}

	ids := make([]BodyID, 0, 5)
	for i := 0; i < 5; i++ {
		f := float64(i)
		b := w.CreateBody(BodyDef{
			Type: Dynamic,
			Pos:  geom.V(f*0.3-0.6, f*0.2-0.4),
			Vel:  geom.V(2-f, f*0.7-1.5),
		})
		_, _ = w.CreateCollider(b, ColliderDef{Shape: Circle(0.2), Restitution: 0.9, Friction: 0.1, Density: 1, ActiveEvents: true})
		ids = append(ids, b)
	}
	return ids
}

func TestStepDeterminism(t *testing.T) {
	w1 := NewWorld(WorldDef{Gravity: geom.V(0, -9.81)})
	w2 := NewWorld(WorldDef{Gravity: geom.V(0, -9.81)})
	ids1 := buildDeterminismScene(w1)
	ids2 := buildDeterminismScene(w2)

	for i := 0; i < 600; i++ {
		w1.Step(testDt)
		w2.Step(testDt)
	}

	for i := range ids1 {
		p1, _ := w1.Translation(ids1[i])
		p2, _ := w2.Translation(ids2[i])
		if p1 != p2 {
			t.Errorf("ball %d position diverged: %v vs %v", i, p1, p2)
		}
		v1, _ := w1.LinVel(ids1[i])
		v2, _ := w2.LinVel(ids2[i])
		if v1 != v2 {
			t.Errorf("ball %d velocity diverged: %v vs %v", i, v1, v2)
		}
	}
}
