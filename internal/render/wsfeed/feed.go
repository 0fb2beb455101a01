package wsfeed

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/karfly/ball-satisfaction/internal/render"
)

// envelope is the wire format for feed messages. Exactly one payload field
// is set, selected by Type.
type envelope struct {
	Type   string              `json:"type"` // "created", "destroyed", "frame", "effect"
	Entity *render.EntityState `json:"entity,omitempty"`
	ID     uint64              `json:"id,omitempty"`
	Frame  *render.Frame       `json:"frame,omitempty"`
	Effect *render.Effect      `json:"effect,omitempty"`
}

// Feed bridges the simulation's render stream onto a websocket hub. Publish
// calls never block the simulation loop: when the hub cannot keep up the
// payload is dropped and the drop counter advances.
//
// Feed keeps a catalog of live entities so viewers that connect mid-run
// receive the creation messages they missed.
type Feed struct {
	hub *Hub

	mu      sync.Mutex
	catalog map[uint64]render.EntityState
	order   []uint64 // creation order, for snapshot replay

	dropped atomic.Uint64
}

// NewFeed attaches a feed to hub. It must be called before the hub's Run
// goroutine starts.
func NewFeed(hub *Hub) *Feed {
	f := &Feed{
		hub:     hub,
		catalog: make(map[uint64]render.EntityState),
	}
	hub.snapshot = f.snapshotMessages
	return f
}

func (f *Feed) EntityCreated(e render.EntityState) {
	f.mu.Lock()
	if _, ok := f.catalog[e.ID]; !ok {
		f.order = append(f.order, e.ID)
	}
	f.catalog[e.ID] = e
	f.mu.Unlock()

	f.publish(envelope{Type: "created", Entity: &e})
}

func (f *Feed) EntityDestroyed(id uint64) {
	f.mu.Lock()
	if _, ok := f.catalog[id]; ok {
		delete(f.catalog, id)
		for i, oid := range f.order {
			if oid == id {
				f.order = append(f.order[:i], f.order[i+1:]...)
				break
			}
		}
	}
	f.mu.Unlock()

	f.publish(envelope{Type: "destroyed", ID: id})
}

func (f *Feed) PublishFrame(fr render.Frame) {
	f.publish(envelope{Type: "frame", Frame: &fr})
}

func (f *Feed) PublishEffect(ef render.Effect) {
	f.publish(envelope{Type: "effect", Effect: &ef})
}

func (f *Feed) publish(env envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		return
	}
	if !f.hub.offer(payload) {
		f.dropped.Add(1)
	}
}

// Dropped reports how many payloads were lost to hub backpressure.
func (f *Feed) Dropped() uint64 {
	return f.dropped.Load()
}

// snapshotMessages renders the live entity catalog as creation envelopes in
// original creation order.
func (f *Feed) snapshotMessages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	msgs := make([][]byte, 0, len(f.order))
	for _, id := range f.order {
		e := f.catalog[id]
		payload, err := json.Marshal(envelope{Type: "created", Entity: &e})
		if err != nil {
			continue
		}
		msgs = append(msgs, payload)
	}
	return msgs
}
