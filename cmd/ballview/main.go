package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/karfly/ball-satisfaction/internal/config"
	"github.com/karfly/ball-satisfaction/internal/data"
	"github.com/karfly/ball-satisfaction/internal/render/ttyfeed"
	"github.com/karfly/ball-satisfaction/internal/scripting"
	"github.com/karfly/ball-satisfaction/internal/sim"
)

// viewport carries terminal resize extents from the viewer goroutine to
// the simulation loop.
type viewport struct {
	w, h float64
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Config, shared with ballsim
	cfgPath := "config/ballsim.toml"
	if p := os.Getenv("BALLSIM_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Sim.TickRate <= 0 {
		return fmt.Errorf("sim.tick_rate must be positive, got %v", cfg.Sim.TickRate)
	}

	// 2. Logger. The terminal belongs to tcell, so logs go to a file.
	log, err := newFileLogger(cfg.Logging, "ballview.log")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// 3. Resolve the arena preset
	presets, err := data.LoadPresetTable(cfg.Data.ArenaList)
	if err != nil {
		return fmt.Errorf("load arena presets: %w", err)
	}
	base := presets.Get(cfg.Sim.Preset)
	if base == nil {
		return fmt.Errorf("unknown preset %q (have %v)", cfg.Sim.Preset, presets.Names())
	}
	preset := *base
	applyOverrides(&preset, cfg.Override)

	seed := cfg.Sim.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	// 4. Optional Lua spawn policy
	var policy sim.SpawnPolicy
	if cfg.Scripting.Script != "" {
		engine, err := scripting.NewEngine(cfg.Scripting.Script, log)
		if err != nil {
			return fmt.Errorf("spawn policy: %w", err)
		}
		defer engine.Close()
		policy = engine.Policy(preset.Spawn.PerEscape)
	}

	// 5. Terminal screen and feed
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer screen.Fini()

	feed := ttyfeed.NewFeed()
	viewer := ttyfeed.NewViewer(screen, feed, 0, log)

	viewports := make(chan viewport, 4)
	viewer.SetOnViewport(func(w, h float64) {
		select {
		case viewports <- viewport{w, h}:
		default:
		}
	})

	// 6. Simulation sized to the terminal
	cols, rows := screen.Size()
	vw, vh := float64(cols)*ttyfeed.DefaultUnit/2, float64(rows)*ttyfeed.DefaultUnit
	simulation, err := sim.New(sim.Config{
		Preset:     &preset,
		StepHz:     cfg.Sim.StepHz,
		MaxCatchup: cfg.Sim.MaxCatchup,
		Seed:       seed,
		ViewportW:  vw,
		ViewportH:  vh,
		Policy:     policy,
	}, feed, log)
	if err != nil {
		return fmt.Errorf("build simulation: %w", err)
	}
	if err := simulation.SpawnInitial(); err != nil {
		return fmt.Errorf("spawn initial balls: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// tcell swallows Ctrl+C as a key event; SIGTERM still needs a path out.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		simLoop(ctx, simulation, viewports, time.Duration(cfg.Sim.TickRate), log)
	}()

	// 7. The viewer owns the main goroutine until quit
	viewer.Run(ctx)
	cancel()
	wg.Wait()

	steps, stats := simulation.StepCount(), simulation.Stats()
	screen.Fini()
	fmt.Printf("ran %d steps: %d spawned, %d escaped, %d killed, %d live\n",
		steps, stats.Spawned, stats.Escaped, stats.Killed, stats.Live)
	log.Info("viewer session ended",
		zap.Uint64("steps", steps),
		zap.Int("spawned", stats.Spawned),
		zap.Int("escaped", stats.Escaped),
		zap.Int("killed", stats.Killed))
	return nil
}

// simLoop owns the simulation. Viewport changes apply between ticks.
func simLoop(ctx context.Context, simulation *sim.Sim, viewports <-chan viewport, tickRate time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			simulation.Teardown()
			return
		case now := <-ticker.C:
		drain:
			for {
				select {
				case vp := <-viewports:
					if err := simulation.SetViewport(vp.w, vp.h); err != nil {
						log.Warn("viewport rejected", zap.Error(err))
					}
				default:
					break drain
				}
			}
			simulation.Tick(now.Sub(last).Seconds())
			last = now
		}
	}
}

// applyOverrides rewrites single preset fields from the [override] table.
func applyOverrides(p *data.ArenaPreset, o config.OverrideConfig) {
	if o.SpinSpeed != nil {
		p.Arena.SpinSpeed = *o.SpinSpeed
	}
	if o.GapWidth != nil {
		p.Arena.GapWidth = *o.GapWidth
	}
	if o.GravityY != nil {
		p.World.GravityY = *o.GravityY
	}
	if o.MaxBalls != nil {
		p.Spawn.MaxBalls = *o.MaxBalls
	}
	if o.PerEscape != nil {
		p.Spawn.PerEscape = *o.PerEscape
	}
}

func newFileLogger(cfg config.LoggingConfig, path string) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{path}
	zapCfg.ErrorOutputPaths = []string{path}

	return zapCfg.Build()
}
