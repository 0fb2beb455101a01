package sim

import (
	"testing"

	"go.uber.org/zap"

	"github.com/karfly/ball-satisfaction/internal/core/handle"
	"github.com/karfly/ball-satisfaction/internal/physics"
	"github.com/karfly/ball-satisfaction/internal/render"
)

// captureFeed records feed calls for assertions.
type captureFeed struct {
	created   []render.EntityState
	destroyed []uint64
	frames    []render.Frame
	effects   []render.Effect
}

func (f *captureFeed) EntityCreated(s render.EntityState) { f.created = append(f.created, s) }
func (f *captureFeed) EntityDestroyed(id uint64)          { f.destroyed = append(f.destroyed, id) }
func (f *captureFeed) PublishFrame(fr render.Frame)       { f.frames = append(f.frames, fr) }
func (f *captureFeed) PublishEffect(e render.Effect)      { f.effects = append(f.effects, e) }

// stubEntity satisfies Entity without a physics world behind it.
type stubEntity struct {
	body     physics.BodyID
	steps    int
	disposed int
}

func (e *stubEntity) Kind() Kind           { return KindBall }
func (e *stubEntity) Body() physics.BodyID { return e.body }
func (e *stubEntity) Step(dt float64)      { e.steps++ }
func (e *stubEntity) Dispose()             { e.disposed++ }

func (e *stubEntity) State() render.EntityState {
	return render.EntityState{ID: e.body.Raw(), Class: "ball"}
}

func stubAt(index uint32) *stubEntity {
	return &stubEntity{body: physics.BodyID(handle.New(index, 1))}
}

func TestRegistrySpawnGetRemove(t *testing.T) {
	feed := &captureFeed{}
	reg := NewRegistry(feed, zap.NewNop())

	a, b, c := stubAt(0), stubAt(1), stubAt(2)
	reg.Spawn(a)
	reg.Spawn(b)
	reg.Spawn(c)

	if reg.Len() != 3 {
		t.Fatalf("Len = %d, want 3", reg.Len())
	}
	if got, ok := reg.Get(b.body); !ok || got != Entity(b) {
		t.Fatalf("Get(b) = %v, %v", got, ok)
	}
	if len(feed.created) != 3 {
		t.Fatalf("feed saw %d creations, want 3", len(feed.created))
	}

	reg.Remove(b.body)
	if b.disposed != 1 {
		t.Fatalf("b disposed %d times, want 1", b.disposed)
	}
	if _, ok := reg.Get(b.body); ok {
		t.Fatal("removed entity still resolvable")
	}
	if len(feed.destroyed) != 1 || feed.destroyed[0] != b.body.Raw() {
		t.Fatalf("feed destroyed = %v", feed.destroyed)
	}

	// insertion order survives the splice
	var order []physics.BodyID
	reg.ForEach(func(e Entity) { order = append(order, e.Body()) })
	if len(order) != 2 || order[0] != a.body || order[1] != c.body {
		t.Fatalf("order = %v, want [a c]", order)
	}
	if got, ok := reg.Get(c.body); !ok || got != Entity(c) {
		t.Fatal("reindex after splice lost c")
	}
}

func TestRegistryRemoveIdempotent(t *testing.T) {
	reg := NewRegistry(render.Discard{}, zap.NewNop())
	a := stubAt(0)
	reg.Spawn(a)

	reg.Remove(a.body)
	reg.Remove(a.body)
	reg.Remove(stubAt(9).body)

	if a.disposed != 1 {
		t.Fatalf("disposed %d times, want exactly 1", a.disposed)
	}
	if reg.Len() != 0 {
		t.Fatalf("Len = %d, want 0", reg.Len())
	}
}

func TestRegistryStagedMutationDuringForEach(t *testing.T) {
	reg := NewRegistry(render.Discard{}, zap.NewNop())
	a, b := stubAt(0), stubAt(1)
	late := stubAt(2)
	reg.Spawn(a)
	reg.Spawn(b)

	visited := 0
	reg.ForEach(func(e Entity) {
		visited++
		if visited == 1 {
			reg.Remove(a.body)
			reg.Spawn(late)
		}
	})

	// the pass sees the original two entities only
	if visited != 2 {
		t.Fatalf("visited = %d, want 2", visited)
	}
	if a.disposed != 1 {
		t.Fatalf("a disposed %d times, want 1 after flush", a.disposed)
	}
	if _, ok := reg.Get(late.body); !ok {
		t.Fatal("staged spawn was dropped")
	}
	if reg.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (b + late)", reg.Len())
	}
}

func TestRegistryOnRemovedHook(t *testing.T) {
	reg := NewRegistry(render.Discard{}, zap.NewNop())
	a := stubAt(0)
	reg.Spawn(a)

	var gone []physics.BodyID
	reg.SetOnRemoved(func(e Entity) {
		if e.(*stubEntity).disposed != 1 {
			t.Error("hook ran before dispose")
		}
		gone = append(gone, e.Body())
	})

	reg.Remove(a.body)
	if len(gone) != 1 || gone[0] != a.body {
		t.Fatalf("hook saw %v, want [a]", gone)
	}
}
