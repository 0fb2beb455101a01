package sim

import (
	"go.uber.org/zap"

	"github.com/karfly/ball-satisfaction/internal/physics"
	"github.com/karfly/ball-satisfaction/internal/render"
)

// Registry tracks live entities in insertion order, keyed by body handle.
// Structural changes requested during iteration are staged and applied
// when the iteration finishes.
type Registry struct {
	feed render.Feed
	log  *zap.Logger

	order []Entity
	index map[physics.BodyID]int

	iterating     bool
	pendingAdd    []Entity
	pendingRemove []physics.BodyID

	onRemoved func(Entity)
}

func NewRegistry(feed render.Feed, log *zap.Logger) *Registry {
	return &Registry{
		feed:  feed,
		log:   log,
		index: make(map[physics.BodyID]int),
	}
}

// SetOnRemoved installs a hook that fires after an entity's physics
// representation and registry bookkeeping are gone. Trackers keyed by the
// body handle clear themselves here.
func (r *Registry) SetOnRemoved(fn func(Entity)) {
	r.onRemoved = fn
}

// Spawn registers an entity and announces it to the feed. The entity's
// physics representation must already exist.
func (r *Registry) Spawn(e Entity) {
	if r.iterating {
		r.pendingAdd = append(r.pendingAdd, e)
		return
	}
	r.index[e.Body()] = len(r.order)
	r.order = append(r.order, e)
	r.feed.EntityCreated(e.State())
	r.log.Debug("entity spawned",
		zap.String("kind", e.Kind().String()),
		zap.Uint64("body", e.Body().Raw()))
}

// Remove disposes the entity owning the handle. Unknown or already removed
// handles are a no-op: several sensors may independently request removal
// of the same ball.
func (r *Registry) Remove(h physics.BodyID) {
	if r.iterating {
		r.pendingRemove = append(r.pendingRemove, h)
		return
	}
	r.remove(h)
}

func (r *Registry) remove(h physics.BodyID) {
	i, ok := r.index[h]
	if !ok {
		return
	}
	e := r.order[i]

	// physics first, bookkeeping after
	e.Dispose()

	r.order = append(r.order[:i], r.order[i+1:]...)
	delete(r.index, h)
	for j := i; j < len(r.order); j++ {
		r.index[r.order[j].Body()] = j
	}

	r.feed.EntityDestroyed(h.Raw())
	if r.onRemoved != nil {
		r.onRemoved(e)
	}
	r.log.Debug("entity removed",
		zap.String("kind", e.Kind().String()),
		zap.Uint64("body", h.Raw()))
}

// Get resolves a handle to its live entity.
func (r *Registry) Get(h physics.BodyID) (Entity, bool) {
	i, ok := r.index[h]
	if !ok {
		return nil, false
	}
	return r.order[i], true
}

// ForEach visits live entities in insertion order. Spawn and Remove called
// from fn take effect after the loop.
func (r *Registry) ForEach(fn func(Entity)) {
	r.iterating = true
	for _, e := range r.order {
		fn(e)
	}
	r.iterating = false
	r.flushPending()
}

func (r *Registry) flushPending() {
	if len(r.pendingRemove) > 0 {
		removes := r.pendingRemove
		r.pendingRemove = nil
		for _, h := range removes {
			r.remove(h)
		}
	}
	if len(r.pendingAdd) > 0 {
		adds := r.pendingAdd
		r.pendingAdd = nil
		for _, e := range adds {
			r.Spawn(e)
		}
	}
}

func (r *Registry) Len() int {
	return len(r.order)
}
