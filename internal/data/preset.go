package data

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ArenaSpec describes the spinning ring: geometry, material and spin.
// Angles are radians, counter-clockwise positive, in a y-up world. The gap
// center 3π/2 points at the bottom of the screen.
type ArenaSpec struct {
	Radius          float64 `yaml:"radius"`     // centerline radius of the wall
	Thickness       float64 `yaml:"thickness"`  // radial wall thickness
	Segments        int     `yaml:"segments"`   // wall segment count before gap exclusion
	GapWidth        float64 `yaml:"gap_width"`  // angular width of the opening
	GapCenter       float64 `yaml:"gap_center"` // angular position of the opening
	SpinSpeed       float64 `yaml:"spin_speed"` // rad/s, counter-clockwise positive
	Restitution     float64 `yaml:"restitution"`
	Friction        float64 `yaml:"friction"`
	SensorOffset    float64 `yaml:"sensor_offset"` // escape ring distance beyond the wall
	SensorThickness float64 `yaml:"sensor_thickness"`
	SensorSegments  int     `yaml:"sensor_segments"` // independent of wall segment count
	CornerRadius    float64 `yaml:"corner_radius"`   // gap edge cap radius, 0 disables
}

// BallSpec describes spawned balls. Colors cycle in spawn order.
type BallSpec struct {
	Radius      float64  `yaml:"radius"`
	Restitution float64  `yaml:"restitution"`
	Friction    float64  `yaml:"friction"`
	Density     float64  `yaml:"density"`
	Colors      []string `yaml:"colors"`
}

// SpawnSpec drives the spawn controller. Mode "fixed" uses vx/vy verbatim;
// mode "angle" samples a direction uniformly in [angle_min, angle_max] and
// scales it by speed.
type SpawnSpec struct {
	Initial            int     `yaml:"initial"`
	PerEscape          int     `yaml:"per_escape"`
	MaxBalls           int     `yaml:"max_balls"`
	Trigger            string  `yaml:"trigger"` // "escape" or "touch"
	Mode               string  `yaml:"mode"`    // "fixed" or "angle"
	X                  float64 `yaml:"x"`
	Y                  float64 `yaml:"y"`
	VX                 float64 `yaml:"vx"`
	VY                 float64 `yaml:"vy"`
	Speed              float64 `yaml:"speed"`
	AngleMin           float64 `yaml:"angle_min"`
	AngleMax           float64 `yaml:"angle_max"`
	TouchCooldownSteps int     `yaml:"touch_cooldown_steps"`
}

type WorldSpec struct {
	GravityX float64 `yaml:"gravity_x"`
	GravityY float64 `yaml:"gravity_y"`
}

// KillSpec places the out-of-bounds frame relative to the viewport edges.
type KillSpec struct {
	Offset    float64 `yaml:"offset"`
	Thickness float64 `yaml:"thickness"`
}

// ArenaPreset is one named, complete simulation setup.
type ArenaPreset struct {
	Name  string    `yaml:"name"`
	Arena ArenaSpec `yaml:"arena"`
	Ball  BallSpec  `yaml:"ball"`
	Spawn SpawnSpec `yaml:"spawn"`
	World WorldSpec `yaml:"world"`
	Kill  KillSpec  `yaml:"kill"`
}

type presetListFile struct {
	Arenas []ArenaPreset `yaml:"arenas"`
}

// PresetTable holds all arena presets indexed by name.
type PresetTable struct {
	presets map[string]*ArenaPreset
	names   []string
}

// LoadPresetTable loads arena presets from a YAML file. Every preset is
// validated; a bad preset fails the whole load.
func LoadPresetTable(path string) (*PresetTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read arena presets: %w", err)
	}
	var f presetListFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse arena presets: %w", err)
	}
	t := &PresetTable{presets: make(map[string]*ArenaPreset, len(f.Arenas))}
	for i := range f.Arenas {
		p := &f.Arenas[i]
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", p.Name, err)
		}
		if _, dup := t.presets[p.Name]; dup {
			return nil, fmt.Errorf("duplicate preset name %q", p.Name)
		}
		t.presets[p.Name] = p
		t.names = append(t.names, p.Name)
	}
	return t, nil
}

// Get returns the preset by name, nil if missing.
func (t *PresetTable) Get(name string) *ArenaPreset {
	return t.presets[name]
}

func (t *PresetTable) Count() int {
	return len(t.presets)
}

// Names returns preset names in file order.
func (t *PresetTable) Names() []string {
	return t.names
}

// Validate rejects presets the simulation cannot build.
func (p *ArenaPreset) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("missing name")
	}
	a := &p.Arena
	if a.Radius <= 0 {
		return fmt.Errorf("arena radius must be positive, got %v", a.Radius)
	}
	if a.Thickness <= 0 {
		return fmt.Errorf("arena thickness must be positive, got %v", a.Thickness)
	}
	if a.Segments < 3 {
		return fmt.Errorf("arena needs at least 3 segments, got %d", a.Segments)
	}
	if a.SensorSegments < 3 {
		return fmt.Errorf("arena needs at least 3 sensor segments, got %d", a.SensorSegments)
	}
	if a.GapWidth < 0 || a.GapWidth > 2*math.Pi {
		return fmt.Errorf("gap width must be in [0, 2π], got %v", a.GapWidth)
	}
	if a.SensorOffset <= 0 || a.SensorThickness <= 0 {
		return fmt.Errorf("sensor offset and thickness must be positive")
	}
	if a.CornerRadius < 0 {
		return fmt.Errorf("corner radius must not be negative, got %v", a.CornerRadius)
	}
	if p.Ball.Radius <= 0 {
		return fmt.Errorf("ball radius must be positive, got %v", p.Ball.Radius)
	}
	if p.Ball.Density <= 0 {
		return fmt.Errorf("ball density must be positive, got %v", p.Ball.Density)
	}
	if len(p.Ball.Colors) == 0 {
		return fmt.Errorf("ball needs at least one color")
	}
	s := &p.Spawn
	if s.Initial < 0 || s.PerEscape < 0 {
		return fmt.Errorf("spawn counts must not be negative")
	}
	if s.MaxBalls < 1 {
		return fmt.Errorf("max balls must be at least 1, got %d", s.MaxBalls)
	}
	switch s.Trigger {
	case "", "escape", "touch":
	default:
		return fmt.Errorf("unknown spawn trigger %q", s.Trigger)
	}
	switch s.Mode {
	case "", "fixed", "angle":
	default:
		return fmt.Errorf("unknown spawn mode %q", s.Mode)
	}
	if s.TouchCooldownSteps < 0 {
		return fmt.Errorf("touch cooldown must not be negative, got %d", s.TouchCooldownSteps)
	}
	if p.Kill.Offset < 0 || p.Kill.Thickness <= 0 {
		return fmt.Errorf("kill frame offset must not be negative and thickness must be positive")
	}
	return nil
}
