package sim

import (
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/karfly/ball-satisfaction/internal/core/event"
	"github.com/karfly/ball-satisfaction/internal/data"
	"github.com/karfly/ball-satisfaction/internal/geom"
	"github.com/karfly/ball-satisfaction/internal/physics"
	"github.com/karfly/ball-satisfaction/internal/render"
)

func testArenaSpec() data.ArenaSpec {
	return data.ArenaSpec{
		Radius:          100,
		Thickness:       6,
		Segments:        8,
		GapWidth:        math.Pi / 4,
		GapCenter:       3 * math.Pi / 2,
		SpinSpeed:       1,
		Restitution:     0.9,
		Friction:        0.1,
		SensorOffset:    8,
		SensorThickness: 6,
		SensorSegments:  8,
	}
}

type ctrlFixture struct {
	world *physics.World
	reg   *Registry
	ring  *Ring
	bus   *event.Bus
	ctrl  *Controller
}

func newCtrlFixture(t *testing.T, ball data.BallSpec, spawn data.SpawnSpec, policy SpawnPolicy, cooldown int) *ctrlFixture {
	t.Helper()
	world := physics.NewWorld(physics.WorldDef{})
	reg := NewRegistry(render.Discard{}, zap.NewNop())
	ring, err := NewRing(world, testArenaSpec(), cooldown)
	if err != nil {
		t.Fatalf("build ring: %v", err)
	}
	bus := event.NewBus()
	ctrl := NewController(world, reg, ring, bus, ball, spawn, 1, policy, zap.NewNop())
	return &ctrlFixture{world: world, reg: reg, ring: ring, bus: bus, ctrl: ctrl}
}

func (f *ctrlFixture) firstBall(t *testing.T) *Ball {
	t.Helper()
	var found *Ball
	f.reg.ForEach(func(e Entity) {
		if b, ok := e.(*Ball); ok && found == nil {
			found = b
		}
	})
	if found == nil {
		t.Fatal("no live ball")
	}
	return found
}

func TestControllerSpawnInitialRespectsCap(t *testing.T) {
	f := newCtrlFixture(t, testBallSpec(), data.SpawnSpec{
		Initial: 5, MaxBalls: 3, Mode: "fixed",
	}, nil, 0)

	if err := f.ctrl.SpawnInitial(); err != nil {
		t.Fatalf("SpawnInitial: %v", err)
	}
	if f.ctrl.Spawned() != 3 {
		t.Fatalf("Spawned = %d, want 3", f.ctrl.Spawned())
	}
	if f.reg.Len() != 3 {
		t.Fatalf("registry has %d entities, want 3", f.reg.Len())
	}
}

func TestControllerEscapeSpawnsWithinBudget(t *testing.T) {
	f := newCtrlFixture(t, testBallSpec(), data.SpawnSpec{
		Initial: 1, PerEscape: 5, MaxBalls: 3, Mode: "fixed",
	}, nil, 0)
	if err := f.ctrl.SpawnInitial(); err != nil {
		t.Fatalf("SpawnInitial: %v", err)
	}

	ball := f.firstBall(t)
	f.ctrl.HandleEscape(ball)

	if f.ctrl.Escaped() != 1 {
		t.Fatalf("Escaped = %d, want 1", f.ctrl.Escaped())
	}
	if f.ctrl.Spawned() != 3 {
		t.Fatalf("Spawned = %d, want 3: burst of 5 clamped to budget 2", f.ctrl.Spawned())
	}

	// cap already reached: escapes keep counting, spawns stay denied
	f.ctrl.HandleEscape(ball)
	if f.ctrl.Escaped() != 2 || f.ctrl.Spawned() != 3 {
		t.Fatalf("Escaped = %d, Spawned = %d, want 2 and 3", f.ctrl.Escaped(), f.ctrl.Spawned())
	}
	if f.ctrl.Live() != 3 {
		t.Fatalf("Live = %d, want 3", f.ctrl.Live())
	}
}

func TestControllerEscapeCountsWhenCapDeniesAll(t *testing.T) {
	f := newCtrlFixture(t, testBallSpec(), data.SpawnSpec{
		Initial: 1, PerEscape: 1, MaxBalls: 1, Mode: "fixed",
	}, nil, 0)
	if err := f.ctrl.SpawnInitial(); err != nil {
		t.Fatalf("SpawnInitial: %v", err)
	}

	f.ctrl.HandleEscape(f.firstBall(t))
	if f.ctrl.Escaped() != 1 {
		t.Fatalf("Escaped = %d, want 1", f.ctrl.Escaped())
	}
	if f.ctrl.Spawned() != 1 {
		t.Fatalf("Spawned = %d, want 1: maxBalls=1 admits nothing", f.ctrl.Spawned())
	}
}

func TestControllerPolicyOverridesAndClamps(t *testing.T) {
	var seen []PolicyContext
	policy := func(ctx PolicyContext) int {
		seen = append(seen, ctx)
		if len(seen) == 1 {
			return 100 // way past the cap
		}
		return -7 // nonsense, clamps to zero
	}
	f := newCtrlFixture(t, testBallSpec(), data.SpawnSpec{
		Initial: 1, PerEscape: 1, MaxBalls: 4, Mode: "fixed",
	}, policy, 0)
	if err := f.ctrl.SpawnInitial(); err != nil {
		t.Fatalf("SpawnInitial: %v", err)
	}

	ball := f.firstBall(t)
	f.ctrl.HandleEscape(ball)
	if f.ctrl.Spawned() != 4 {
		t.Fatalf("Spawned = %d, want 4: policy 100 clamped to budget 3", f.ctrl.Spawned())
	}

	f.ctrl.HandleEscape(ball)
	if f.ctrl.Spawned() != 4 {
		t.Fatalf("Spawned = %d, want 4: negative policy spawns nothing", f.ctrl.Spawned())
	}

	if len(seen) != 2 {
		t.Fatalf("policy consulted %d times, want 2", len(seen))
	}
	first := seen[0]
	if first.Trigger != "escape" || first.Escaped != 1 || first.TotalSpawned != 1 || first.MaxBalls != 4 || first.Live != 1 {
		t.Fatalf("policy context = %+v", first)
	}
}

func TestControllerSpawnVelocityFixed(t *testing.T) {
	f := newCtrlFixture(t, testBallSpec(), data.SpawnSpec{
		MaxBalls: 1, Mode: "fixed", VX: 3, VY: -4,
	}, nil, 0)

	if v := f.ctrl.spawnVelocity(); v != geom.V(3, -4) {
		t.Fatalf("spawnVelocity = %v, want {3 -4}", v)
	}
}

func TestControllerSpawnVelocityAngleRange(t *testing.T) {
	spawn := data.SpawnSpec{
		MaxBalls: 1,
		Mode:     "angle",
		Speed:    50,
		AngleMin: math.Pi / 6,
		AngleMax: math.Pi / 3,
	}
	f1 := newCtrlFixture(t, testBallSpec(), spawn, nil, 0)
	f2 := newCtrlFixture(t, testBallSpec(), spawn, nil, 0)

	for i := 0; i < 32; i++ {
		v1 := f1.ctrl.spawnVelocity()
		v2 := f2.ctrl.spawnVelocity()
		if v1 != v2 {
			t.Fatalf("draw %d: same seed diverged: %v vs %v", i, v1, v2)
		}
		if speed := v1.Len(); math.Abs(speed-50) > 1e-9 {
			t.Fatalf("draw %d: |v| = %v, want 50", i, speed)
		}
		angle := math.Atan2(v1.Y, v1.X)
		if angle < spawn.AngleMin-1e-12 || angle > spawn.AngleMax+1e-12 {
			t.Fatalf("draw %d: angle %v outside [%v, %v]", i, angle, spawn.AngleMin, spawn.AngleMax)
		}
	}
}

func TestControllerColorsCycleInSpawnOrder(t *testing.T) {
	ball := testBallSpec()
	ball.Colors = []string{"red", "green", "blue"}
	f := newCtrlFixture(t, ball, data.SpawnSpec{
		Initial: 5, MaxBalls: 5, Mode: "fixed",
	}, nil, 0)
	if err := f.ctrl.SpawnInitial(); err != nil {
		t.Fatalf("SpawnInitial: %v", err)
	}

	var colors []string
	f.reg.ForEach(func(e Entity) {
		if b, ok := e.(*Ball); ok {
			colors = append(colors, b.Color())
		}
	})
	want := []string{"red", "green", "blue", "red", "green"}
	if len(colors) != len(want) {
		t.Fatalf("colors = %v, want %v", colors, want)
	}
	for i := range want {
		if colors[i] != want[i] {
			t.Fatalf("colors = %v, want %v", colors, want)
		}
	}
}

func TestControllerKillRemovesAndReports(t *testing.T) {
	f := newCtrlFixture(t, testBallSpec(), data.SpawnSpec{
		Initial: 1, MaxBalls: 2, Mode: "fixed", X: 7, Y: 9,
	}, nil, 0)
	if err := f.ctrl.SpawnInitial(); err != nil {
		t.Fatalf("SpawnInitial: %v", err)
	}

	var killed []event.BallKilled
	event.Subscribe(f.bus, func(ev event.BallKilled) { killed = append(killed, ev) })

	ball := f.firstBall(t)
	f.ctrl.HandleKill(ball)

	if f.ctrl.Killed() != 1 {
		t.Fatalf("Killed = %d, want 1", f.ctrl.Killed())
	}
	if f.ctrl.Live() != 0 {
		t.Fatalf("Live = %d, want 0", f.ctrl.Live())
	}
	if _, ok := f.reg.Get(ball.body); ok {
		t.Fatal("killed ball still registered")
	}

	f.bus.SwapBuffers()
	f.bus.DispatchAll()
	if len(killed) != 1 {
		t.Fatalf("killed events = %d, want 1", len(killed))
	}
	// position captured before the body went away
	if killed[0].X != 7 || killed[0].Y != 9 {
		t.Fatalf("kill event at (%v, %v), want (7, 9)", killed[0].X, killed[0].Y)
	}
}

func TestControllerTouchTriggerMode(t *testing.T) {
	f := newCtrlFixture(t, testBallSpec(), data.SpawnSpec{
		Initial: 1, PerEscape: 2, MaxBalls: 10, Mode: "fixed", Trigger: "touch",
	}, nil, 0)
	if err := f.ctrl.SpawnInitial(); err != nil {
		t.Fatalf("SpawnInitial: %v", err)
	}

	var touches []event.WallTouched
	event.Subscribe(f.bus, func(ev event.WallTouched) { touches = append(touches, ev) })

	ball := f.firstBall(t)
	f.ctrl.HandleTouch(ball)
	if f.ctrl.Spawned() != 3 {
		t.Fatalf("Spawned = %d, want 3: touch trigger spawns the burst", f.ctrl.Spawned())
	}

	// escapes still count but no longer spawn
	f.ctrl.HandleEscape(ball)
	if f.ctrl.Escaped() != 1 || f.ctrl.Spawned() != 3 {
		t.Fatalf("Escaped = %d, Spawned = %d, want 1 and 3", f.ctrl.Escaped(), f.ctrl.Spawned())
	}

	f.bus.SwapBuffers()
	f.bus.DispatchAll()
	if len(touches) != 1 {
		t.Fatalf("touch events = %d, want 1", len(touches))
	}
}

func TestControllerTouchCooldown(t *testing.T) {
	f := newCtrlFixture(t, testBallSpec(), data.SpawnSpec{
		Initial: 1, PerEscape: 1, MaxBalls: 1, Mode: "fixed",
	}, nil, 5)
	if err := f.ctrl.SpawnInitial(); err != nil {
		t.Fatalf("SpawnInitial: %v", err)
	}

	var touches int
	event.Subscribe(f.bus, func(event.WallTouched) { touches++ })
	drain := func() {
		f.bus.SwapBuffers()
		f.bus.DispatchAll()
	}

	ball := f.firstBall(t)
	f.ctrl.HandleTouch(ball)
	f.ctrl.HandleTouch(ball)
	drain()
	if touches != 1 {
		t.Fatalf("touches = %d, want 1: cooldown suppresses the repeat", touches)
	}

	for i := 0; i < 5; i++ {
		f.ring.Step(1.0 / 120)
	}
	f.ctrl.HandleTouch(ball)
	drain()
	if touches != 2 {
		t.Fatalf("touches = %d, want 2 after the cooldown elapsed", touches)
	}
}
