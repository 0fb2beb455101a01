package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/karfly/ball-satisfaction/internal/config"
	"github.com/karfly/ball-satisfaction/internal/data"
	"github.com/karfly/ball-satisfaction/internal/record"
	"github.com/karfly/ball-satisfaction/internal/render"
	"github.com/karfly/ball-satisfaction/internal/render/wsfeed"
	"github.com/karfly/ball-satisfaction/internal/scripting"
	"github.com/karfly/ball-satisfaction/internal/sim"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(preset string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        ball-satisfaction  v0.1.0          \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m   balls in a spinning ring, with a gap    \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mpreset:\033[0m %s\n\n", preset)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main host logic ────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/ballsim.toml"
	if p := os.Getenv("BALLSIM_CONFIG"); p != "" {
		cfgPath = p
	}
	usingDefaults := false
	cfg, err := config.Load(cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
		usingDefaults = true
	} else if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Sim.TickRate <= 0 {
		return fmt.Errorf("sim.tick_rate must be positive, got %v", cfg.Sim.TickRate)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	if usingDefaults {
		log.Warn("config file missing, using defaults", zap.String("path", cfgPath))
	}

	printBanner(cfg.Sim.Preset)

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
	printOK(fmt.Sprintf("%d arena presets loaded", presets.Count()))

	seed := cfg.Sim.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Optional Lua spawn policy
	var policy sim.SpawnPolicy
	if cfg.Scripting.Script != "" {
		engine, err := scripting.NewEngine(cfg.Scripting.Script, log)
		if err != nil {
			return fmt.Errorf("spawn policy: %w", err)
		}
		defer engine.Close()
		policy = engine.Policy(preset.Spawn.PerEscape)
		printOK(fmt.Sprintf("policy script %s loaded", cfg.Scripting.Script))
	}

	// 5. WebSocket feed
	var (
		feed    render.Feed = render.Discard{}
		wsFeed  *wsfeed.Feed
		hub     *wsfeed.Hub
		feedSrv *wsfeed.Server
	)
	if cfg.Feed.Enabled {
		hub = wsfeed.NewHub(log)
		wsFeed = wsfeed.NewFeed(hub)
		feed = wsFeed
		feedSrv, err = wsfeed.NewServer(cfg.Feed.Bind, hub, log)
		if err != nil {
			return fmt.Errorf("feed server: %w", err)
		}
		go hub.Run(ctx)
		go func() {
			if err := feedSrv.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("feed server stopped", zap.Error(err))
			}
		}()
		printReady(fmt.Sprintf("feed on ws://%s/ws", feedSrv.Addr()))
	}

	// 6. Build the simulation
	simulation, err := sim.New(sim.Config{
		Preset:     &preset,
		StepHz:     cfg.Sim.StepHz,
		MaxCatchup: cfg.Sim.MaxCatchup,
		Seed:       seed,
		ViewportW:  cfg.Sim.ViewportW,
		ViewportH:  cfg.Sim.ViewportH,
		Policy:     policy,
	}, feed, log)
	if err != nil {
		return fmt.Errorf("build simulation: %w", err)
	}

	// 7. Optional run recording
	var rec *record.Recorder
	if cfg.Record.Enabled {
		store, err := record.Open(ctx, cfg.Record.Driver, cfg.Record.DSN, log)
		if err != nil {
			return fmt.Errorf("recording store: %w", err)
		}
		defer store.Close()
		rec = record.NewRecorder(store, cfg.Record.BatchSize, log)
		rec.Attach(simulation.Bus())
		meta := record.RunMeta{Preset: preset.Name, Seed: seed, StepHz: 1 / simulation.StepDur()}
		if err := rec.Begin(ctx, meta); err != nil {
			return fmt.Errorf("begin recording: %w", err)
		}
		printOK(fmt.Sprintf("recording to %s (%s)", cfg.Record.DSN, cfg.Record.Driver))
	}

	// 8. Initial balls
	if err := simulation.SpawnInitial(); err != nil {
		return fmt.Errorf("spawn initial balls: %w", err)
	}

	// 9. Fixed-step loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(cfg.Sim.TickRate))
	defer ticker.Stop()

	statusEvery := 0
	if cfg.Sim.StatusEvery > 0 {
		statusEvery = int(cfg.Sim.StatusEvery / cfg.Sim.TickRate)
	}

	printReady(fmt.Sprintf("loop started (step %g Hz, tick %s)", 1/simulation.StepDur(), cfg.Sim.TickRate))
	fmt.Println()

	last := time.Now()
	statusTicks := 0
	for {
		select {
		case now := <-ticker.C:
			applyViewport(simulation, hub, log)
			simulation.Tick(now.Sub(last).Seconds())
			last = now

			if statusEvery > 0 {
				statusTicks++
				if statusTicks >= statusEvery {
					statusTicks = 0
					logStatus(simulation, wsFeed, log)
				}
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()))
			steps, stats := simulation.StepCount(), simulation.Stats()
			simulation.Teardown()
			if rec != nil {
				if err := rec.Finish(ctx, steps, stats); err != nil {
					log.Error("finish recording", zap.Error(err))
				}
			}
			if feedSrv != nil {
				shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := feedSrv.Shutdown(shutCtx); err != nil {
					log.Warn("feed server shutdown", zap.Error(err))
				}
				shutCancel()
			}
			log.Info("host stopped", zap.Uint64("steps", steps))
			return nil
		}
	}
}

// applyOverrides rewrites single preset fields from the [override] table.
// The result is validated again when the simulation is built.
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

// applyViewport drains pending viewer viewport requests; the last one wins.
func applyViewport(s *sim.Sim, hub *wsfeed.Hub, log *zap.Logger) {
	if hub == nil {
		return
	}
	for {
		select {
		case vp := <-hub.Viewport():
			if err := s.SetViewport(vp.W, vp.H); err != nil {
				log.Warn("viewport rejected", zap.Error(err))
			}
		default:
			return
		}
	}
}

func logStatus(s *sim.Sim, wsFeed *wsfeed.Feed, log *zap.Logger) {
	st := s.Stats()
	fields := []zap.Field{
		zap.Uint64("step", s.StepCount()),
		zap.Int("live", st.Live),
		zap.Int("spawned", st.Spawned),
		zap.Int("escaped", st.Escaped),
		zap.Int("killed", st.Killed),
	}
	if wsFeed != nil {
		fields = append(fields, zap.Uint64("frames_dropped", wsFeed.Dropped()))
	}
	log.Info("simulation status", fields...)
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
