package ttyfeed

import (
	"sync"
	"time"

	"github.com/karfly/ball-satisfaction/internal/render"
)

// flashTTL is how long an effect marker stays on screen.
const flashTTL = 300 * time.Millisecond

type flash struct {
	effect render.Effect
	until  time.Time
}

// Feed implements render.Feed as a latest-frame mailbox. The simulation
// loop writes, the viewer's draw ticker reads. Publishes never block and
// intermediate frames the viewer did not get to are simply superseded.
//
// Creation and destruction notifications are dropped: every frame carries
// each entity's full drawable state, so the mailbox needs no catalog.
type Feed struct {
	mu      sync.Mutex
	frame   *render.Frame
	flashes []flash
}

func NewFeed() *Feed {
	return &Feed{}
}

func (f *Feed) EntityCreated(render.EntityState) {}
func (f *Feed) EntityDestroyed(uint64)           {}

func (f *Feed) PublishFrame(fr render.Frame) {
	f.mu.Lock()
	f.frame = &fr
	f.mu.Unlock()
}

func (f *Feed) PublishEffect(ef render.Effect) {
	f.mu.Lock()
	f.flashes = append(f.flashes, flash{effect: ef, until: time.Now().Add(flashTTL)})
	f.mu.Unlock()
}

// Snapshot returns the newest frame (nil before the first step) and the
// effect flashes that are still visible. The returned frame is shared;
// callers only read it.
func (f *Feed) Snapshot() (*render.Frame, []render.Effect) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	live := f.flashes[:0]
	for _, fl := range f.flashes {
		if now.Before(fl.until) {
			live = append(live, fl)
		}
	}
	f.flashes = live

	fx := make([]render.Effect, len(live))
	for i, fl := range live {
		fx[i] = fl.effect
	}
	return f.frame, fx
}
