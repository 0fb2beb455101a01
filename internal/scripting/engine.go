package scripting

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/karfly/ball-satisfaction/internal/sim"
)

// Engine wraps a single gopher-lua VM running the spawn policy script.
// Single-goroutine access only (simulation loop).
//
// The script may define two hooks, both optional:
//
//	function on_escape(ctx) return <spawn count> end
//	function on_touch(ctx)  return <spawn count> end
//
// ctx carries trigger, escaped, killed, live, total_spawned and max_balls.
// Whatever a hook returns is still clamped to the remaining ball budget by
// the spawn controller.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads the policy script.
func NewEngine(path string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	if err := vm.DoFile(path); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load policy script: %w", err)
	}

	log.Info("policy script loaded",
		zap.String("file", path),
		zap.Bool("on_escape", e.HasHook("on_escape")),
		zap.Bool("on_touch", e.HasHook("on_touch")))
	return e, nil
}

// HasHook reports whether the script defines the named hook function.
func (e *Engine) HasHook(name string) bool {
	return e.vm.GetGlobal(name).Type() == lua.LTFunction
}

// SpawnCount calls the hook matching the trigger. ok is false when the
// hook is missing or fails, in which case the caller's static count
// applies.
func (e *Engine) SpawnCount(ctx sim.PolicyContext) (count int, ok bool) {
	name := "on_escape"
	if ctx.Trigger == "touch" {
		name = "on_touch"
	}
	fn := e.vm.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return 0, false
	}

	t := e.vm.NewTable()
	t.RawSetString("trigger", lua.LString(ctx.Trigger))
	t.RawSetString("escaped", lua.LNumber(ctx.Escaped))
	t.RawSetString("killed", lua.LNumber(ctx.Killed))
	t.RawSetString("live", lua.LNumber(ctx.Live))
	t.RawSetString("total_spawned", lua.LNumber(ctx.TotalSpawned))
	t.RawSetString("max_balls", lua.LNumber(ctx.MaxBalls))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua spawn hook error", zap.String("func", name), zap.Error(err))
		return 0, false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	n, isNum := result.(lua.LNumber)
	if !isNum {
		e.log.Error("lua spawn hook returned non-number",
			zap.String("func", name),
			zap.String("got", result.Type().String()))
		return 0, false
	}
	return int(n), true
}

// Policy adapts the engine to a sim.SpawnPolicy. Triggers the script does
// not handle fall back to the static per-trigger count.
func (e *Engine) Policy(fallback int) sim.SpawnPolicy {
	return func(ctx sim.PolicyContext) int {
		if n, ok := e.SpawnCount(ctx); ok {
			return n
		}
		return fallback
	}
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
