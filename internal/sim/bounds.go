package sim

import (
	"fmt"

	"github.com/karfly/ball-satisfaction/internal/data"
	"github.com/karfly/ball-satisfaction/internal/geom"
	"github.com/karfly/ball-satisfaction/internal/physics"
	"github.com/karfly/ball-satisfaction/internal/render"
)

// Bounds is the out-of-bounds frame: four static sensor boxes enclosing
// the viewport at a configured margin. A ball reaching them is dead; the
// frame never touches the ring, which lives inside the viewport.
type Bounds struct {
	world *physics.World
	body  physics.BodyID
	spec  data.KillSpec
	cols  []physics.ColliderID
	w, h  float64
}

func NewBounds(w *physics.World, spec data.KillSpec, viewW, viewH float64) (*Bounds, error) {
	b := &Bounds{
		world: w,
		body:  w.CreateBody(physics.BodyDef{Type: physics.Static}),
		spec:  spec,
	}
	if err := b.build(viewW, viewH); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bounds) build(viewW, viewH float64) error {
	halfX := viewW/2 + b.spec.Offset
	halfY := viewH/2 + b.spec.Offset
	t := b.spec.Thickness / 2

	sides := []struct {
		offset geom.Vec2
		shape  physics.Shape
	}{
		{geom.V(0, halfY+t), physics.Box(halfX+b.spec.Thickness, t)},  // top
		{geom.V(0, -halfY-t), physics.Box(halfX+b.spec.Thickness, t)}, // bottom
		{geom.V(-halfX-t, 0), physics.Box(t, halfY+b.spec.Thickness)}, // left
		{geom.V(halfX+t, 0), physics.Box(t, halfY+b.spec.Thickness)},  // right
	}
	for _, side := range sides {
		col, err := b.world.CreateCollider(b.body, physics.ColliderDef{
			Shape:        side.shape,
			Offset:       side.offset,
			Sensor:       true,
			ActiveEvents: true,
		})
		if err != nil {
			return fmt.Errorf("kill frame: %w", err)
		}
		b.cols = append(b.cols, col)
	}
	b.w, b.h = viewW, viewH
	return nil
}

// Rebuild replaces the frame's colliders for a new viewport size. The
// caller must re-register the returned colliders with the router.
func (b *Bounds) Rebuild(viewW, viewH float64) error {
	for _, col := range b.cols {
		b.world.RemoveCollider(col)
	}
	b.cols = b.cols[:0]
	return b.build(viewW, viewH)
}

func (b *Bounds) Kind() Kind                      { return KindBounds }
func (b *Bounds) Body() physics.BodyID            { return b.body }
func (b *Bounds) Step(dt float64)                 {}
func (b *Bounds) Colliders() []physics.ColliderID { return b.cols }
func (b *Bounds) Viewport() (w, h float64)        { return b.w, b.h }

func (b *Bounds) State() render.EntityState {
	return render.EntityState{
		ID:    b.body.Raw(),
		Class: "bounds",
		W:     b.w,
		H:     b.h,
	}
}

func (b *Bounds) Dispose() {
	b.world.RemoveBody(b.body)
}
