package system

// Phase defines execution ordering within a single fixed step.
type Phase int

const (
	PhaseActuate   Phase = iota // 0: drive kinematic targets (ring spin)
	PhaseIntegrate              // 1: physics step + contact event routing
	PhaseSync                   // 2: publish transform snapshots to feeds
	PhaseObserve                // 3: deliver observer events
)

// System is a unit of per-step work. dt is the fixed step duration in
// seconds and never varies between calls.
type System interface {
	Phase() Phase
	Update(dt float64)
}
