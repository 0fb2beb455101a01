package sim

import (
	"go.uber.org/zap"

	"github.com/karfly/ball-satisfaction/internal/physics"
)

type trackKey struct {
	owner physics.BodyID
	ball  physics.BodyID
}

// Router turns raw contact events into lifecycle callbacks. It owns the
// sensor ownership maps and the per-(owner, ball) dedup sets; the
// controller owns what the callbacks mean.
//
// Within one batch, escape events are processed before wall touches and
// wall touches before kills, whatever order the engine reported them in.
// Escapes may spawn and kills remove, so a ball escaping and dying in the
// same step is scored before its handle goes stale.
type Router struct {
	world *physics.World
	log   *zap.Logger

	// resolves a body to its live entity; stale handles miss
	lookup func(physics.BodyID) (Entity, bool)

	escapeSensors map[physics.ColliderID]physics.BodyID
	killSensors   map[physics.ColliderID]physics.BodyID
	contacts      map[physics.ColliderID]physics.BodyID

	escapeSeen map[trackKey]struct{}
	killSeen   map[trackKey]struct{}

	onEscape func(*Ball)
	onTouch  func(*Ball)
	onKill   func(*Ball)
}

func NewRouter(world *physics.World, lookup func(physics.BodyID) (Entity, bool), log *zap.Logger) *Router {
	return &Router{
		world:         world,
		log:           log,
		lookup:        lookup,
		escapeSensors: make(map[physics.ColliderID]physics.BodyID),
		killSensors:   make(map[physics.ColliderID]physics.BodyID),
		contacts:      make(map[physics.ColliderID]physics.BodyID),
		escapeSeen:    make(map[trackKey]struct{}),
		killSeen:      make(map[trackKey]struct{}),
	}
}

func (r *Router) SetHandlers(onEscape, onTouch, onKill func(*Ball)) {
	r.onEscape = onEscape
	r.onTouch = onTouch
	r.onKill = onKill
}

func (r *Router) RegisterEscapeSensors(owner physics.BodyID, cols ...physics.ColliderID) {
	for _, c := range cols {
		r.escapeSensors[c] = owner
	}
}

func (r *Router) RegisterKillSensors(owner physics.BodyID, cols ...physics.ColliderID) {
	for _, c := range cols {
		r.killSensors[c] = owner
	}
}

func (r *Router) RegisterContacts(owner physics.BodyID, cols ...physics.ColliderID) {
	for _, c := range cols {
		r.contacts[c] = owner
	}
}

// ForgetKillSensors drops registrations for replaced colliders, e.g. after
// a viewport rebuild.
func (r *Router) ForgetKillSensors(cols []physics.ColliderID) {
	for _, c := range cols {
		delete(r.killSensors, c)
	}
}

// ClearBall forgets every tracking entry for a removed ball. A leaked
// entry would silently eat the first event of a ball that later reuses
// the handle value.
func (r *Router) ClearBall(ball physics.BodyID) {
	for k := range r.escapeSeen {
		if k.ball == ball {
			delete(r.escapeSeen, k)
		}
	}
	for k := range r.killSeen {
		if k.ball == ball {
			delete(r.killSeen, k)
		}
	}
}

// Dispatch routes one batch of contact events. Only event starts are
// acted on; ends only matter to the engine's own pair tracking. Events
// whose handles went stale mid-batch are skipped.
func (r *Router) Dispatch(events []physics.ContactEvent) {
	for _, ev := range events {
		if !ev.Started {
			continue
		}
		if owner, ball, ok := r.resolve(ev, r.escapeSensors); ok {
			key := trackKey{owner, ball.body}
			if _, dup := r.escapeSeen[key]; dup {
				continue
			}
			r.escapeSeen[key] = struct{}{}
			if r.onEscape != nil {
				r.onEscape(ball)
			}
		}
	}
	for _, ev := range events {
		if !ev.Started {
			continue
		}
		if _, ball, ok := r.resolve(ev, r.contacts); ok {
			if r.onTouch != nil {
				r.onTouch(ball)
			}
		}
	}
	for _, ev := range events {
		if !ev.Started {
			continue
		}
		if owner, ball, ok := r.resolve(ev, r.killSensors); ok {
			key := trackKey{owner, ball.body}
			if _, dup := r.killSeen[key]; dup {
				continue
			}
			r.killSeen[key] = struct{}{}
			if r.onKill != nil {
				r.onKill(ball)
			}
		}
	}
}

// resolve matches one event side against an ownership map and the other
// side against a live ball.
func (r *Router) resolve(ev physics.ContactEvent, owners map[physics.ColliderID]physics.BodyID) (physics.BodyID, *Ball, bool) {
	var owner physics.BodyID
	var other physics.ColliderID
	if o, ok := owners[ev.A]; ok {
		owner, other = o, ev.B
	} else if o, ok := owners[ev.B]; ok {
		owner, other = o, ev.A
	} else {
		return 0, nil, false
	}

	body, ok := r.world.ColliderBody(other)
	if !ok {
		// collider removed earlier in this batch
		r.log.Debug("contact event for stale collider", zap.Uint64("collider", other.Raw()))
		return 0, nil, false
	}
	e, ok := r.lookup(body)
	if !ok {
		return 0, nil, false
	}
	ball, ok := e.(*Ball)
	if !ok {
		return 0, nil, false // ring brushing the kill frame etc.
	}
	return owner, ball, true
}
