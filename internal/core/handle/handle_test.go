package handle

import "testing"

func TestIDPacking(t *testing.T) {
	id := New(7, 3)
	if id.Index() != 7 {
		t.Errorf("Index() = %d, want 7", id.Index())
	}
	if id.Generation() != 3 {
		t.Errorf("Generation() = %d, want 3", id.Generation())
	}
	if id.IsZero() {
		t.Error("IsZero() = true for non-zero ID")
	}
	if !New(0, 0).IsZero() {
		t.Error("IsZero() = false for zero ID")
	}
}

func TestPoolCreateAlive(t *testing.T) {
	p := NewPool()

	a := p.Create()
	b := p.Create()
	if a == b {
		t.Fatalf("Create returned duplicate ID %v", a)
	}
	if a.IsZero() || b.IsZero() {
		t.Error("Create issued the zero ID")
	}
	if !p.Alive(a) || !p.Alive(b) {
		t.Error("fresh IDs should be alive")
	}
	if p.Alive(0) {
		t.Error("zero ID must never be alive")
	}
}

func TestPoolReleaseInvalidates(t *testing.T) {
	p := NewPool()

	a := p.Create()
	p.Release(a)
	if p.Alive(a) {
		t.Error("released ID still alive")
	}

	// Slot index is reused with a bumped generation, so the stale
	// value must stay dead.
	b := p.Create()
	if b.Index() != a.Index() {
		t.Errorf("expected slot reuse, got index %d want %d", b.Index(), a.Index())
	}
	if b.Generation() != a.Generation()+1 {
		t.Errorf("Generation() = %d, want %d", b.Generation(), a.Generation()+1)
	}
	if p.Alive(a) {
		t.Error("stale ID alive after slot reuse")
	}
	if !p.Alive(b) {
		t.Error("reissued ID should be alive")
	}
}

func TestPoolDoubleRelease(t *testing.T) {
	p := NewPool()

	a := p.Create()
	p.Release(a)
	p.Release(a) // stale, must be ignored

	b := p.Create()
	c := p.Create()
	if b == c {
		t.Fatalf("double release corrupted free list: %v issued twice", b)
	}
}

func TestPoolCap(t *testing.T) {
	p := NewPool()
	if p.Cap() != 0 {
		t.Fatalf("Cap() = %d, want 0", p.Cap())
	}
	a := p.Create()
	p.Create()
	p.Release(a)
	p.Create() // reuses a's slot
	if p.Cap() != 2 {
		t.Errorf("Cap() = %d, want 2", p.Cap())
	}
}
