package render

// EntityState is one entity's drawable state. Creation notifications carry
// the full visual description; per-step frames refresh transforms and reuse
// the rest.
type EntityState struct {
	ID    uint64  `json:"id"`
	Class string  `json:"class"` // "ball", "ring", "bounds"
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Rot   float64 `json:"rot"`

	// ball
	Radius float64 `json:"radius,omitempty"`
	Color  string  `json:"color,omitempty"`

	// ring
	RingRadius float64 `json:"ringRadius,omitempty"`
	Thickness  float64 `json:"thickness,omitempty"`
	GapWidth   float64 `json:"gapWidth,omitempty"`
	GapCenter  float64 `json:"gapCenter,omitempty"`

	// bounds
	W float64 `json:"w,omitempty"`
	H float64 `json:"h,omitempty"`
}

// Stats is the live counter snapshot included with every frame.
type Stats struct {
	Spawned int `json:"spawned"`
	Escaped int `json:"escaped"`
	Killed  int `json:"killed"`
	Live    int `json:"live"`
}

// Frame is one fixed step's complete transform snapshot in entity creation
// order.
type Frame struct {
	Step     uint64        `json:"step"`
	Time     float64       `json:"time"` // simulated seconds since start
	Stats    Stats         `json:"stats"`
	Entities []EntityState `json:"entities"`
}

// Effect is an advisory visual cue. It never affects simulation state.
type Effect struct {
	Kind string  `json:"kind"` // "spawn", "escape", "kill", "touch"
	ID   uint64  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Feed receives the simulation's render stream. Calls arrive from the
// simulation loop goroutine; implementations must not block and must not
// call back into the simulation.
type Feed interface {
	EntityCreated(EntityState)
	EntityDestroyed(id uint64)
	PublishFrame(Frame)
	PublishEffect(Effect)
}

// Discard is a Feed that drops everything. Headless runs use it.
type Discard struct{}

func (Discard) EntityCreated(EntityState) {}
func (Discard) EntityDestroyed(uint64)    {}
func (Discard) PublishFrame(Frame)        {}
func (Discard) PublishEffect(Effect)      {}
