package event

import "github.com/karfly/ball-satisfaction/internal/core/handle"

// Observer events. These are advisory: subscribers (feeds, recorders, effect
// hooks) must not mutate simulation state from a handler. Scoring and ball
// lifecycle run through direct controller calls, not the bus.

type BallSpawned struct {
	Ball  handle.ID
	Step  uint64
	X, Y  float64
	Color string
}

type BallEscaped struct {
	Ball handle.ID
	Step uint64
	X, Y float64
}

type BallKilled struct {
	Ball handle.ID
	Step uint64
	X, Y float64
}

type WallTouched struct {
	Ball handle.ID
	Step uint64
	X, Y float64
}
