package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Sim       SimConfig       `toml:"sim"`
	Data      DataConfig      `toml:"data"`
	Override  OverrideConfig  `toml:"override"`
	Feed      FeedConfig      `toml:"feed"`
	Record    RecordConfig    `toml:"record"`
	Scripting ScriptingConfig `toml:"scripting"`
	Logging   LoggingConfig   `toml:"logging"`
}

// Duration decodes TOML strings like "16ms" through time.ParseDuration.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) String() string { return time.Duration(d).String() }

type SimConfig struct {
	Preset      string   `toml:"preset"`
	StepHz      float64  `toml:"step_hz"`
	MaxCatchup  int      `toml:"max_catchup"` // steps per tick before dropping time
	Seed        int64    `toml:"seed"`        // 0 = seed from wall clock at boot
	ViewportW   float64  `toml:"viewport_w"`
	ViewportH   float64  `toml:"viewport_h"`
	TickRate    Duration `toml:"tick_rate"`
	StatusEvery Duration `toml:"status_every"` // 0 = no periodic status log
}

type DataConfig struct {
	ArenaList string `toml:"arena_list"`
}

// OverrideConfig tweaks single preset fields without editing the YAML.
// Nil means keep the preset value.
type OverrideConfig struct {
	SpinSpeed *float64 `toml:"spin_speed"`
	GapWidth  *float64 `toml:"gap_width"`
	GravityY  *float64 `toml:"gravity_y"`
	MaxBalls  *int     `toml:"max_balls"`
	PerEscape *int     `toml:"per_escape"`
}

type FeedConfig struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

type RecordConfig struct {
	Enabled   bool   `toml:"enabled"`
	Driver    string `toml:"driver"` // "sqlite" or "postgres"
	DSN       string `toml:"dsn"`
	BatchSize int    `toml:"batch_size"`
}

type ScriptingConfig struct {
	Script string `toml:"script"` // Lua spawn policy, empty = preset counts
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// Load reads a TOML file over the defaults. A missing file surfaces as a
// wrapped fs.ErrNotExist so callers can fall back to Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		Sim: SimConfig{
			Preset:      "classic",
			StepHz:      120,
			MaxCatchup:  8,
			Seed:        0,
			ViewportW:   800,
			ViewportH:   600,
			TickRate:    Duration(16 * time.Millisecond),
			StatusEvery: Duration(10 * time.Second),
		},
		Data: DataConfig{
			ArenaList: "data/yaml/arena_list.yaml",
		},
		Feed: FeedConfig{
			Enabled: true,
			Bind:    "127.0.0.1:8070",
		},
		Record: RecordConfig{
			Enabled:   false,
			Driver:    "sqlite",
			DSN:       "data/runs.db",
			BatchSize: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
