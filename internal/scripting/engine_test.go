package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/karfly/ball-satisfaction/internal/sim"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.lua")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestEngineSpawnCount(t *testing.T) {
	path := writeScript(t, `
function on_escape(ctx)
    if ctx.live >= 4 then
        return 0
    end
    return ctx.max_balls - ctx.total_spawned
end

function on_touch(ctx)
    return 1
end
`)
	e, err := NewEngine(path, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()

	if !e.HasHook("on_escape") || !e.HasHook("on_touch") {
		t.Fatal("hooks not detected")
	}

	n, ok := e.SpawnCount(sim.PolicyContext{
		Trigger: "escape", Live: 2, TotalSpawned: 3, MaxBalls: 10,
	})
	if !ok || n != 7 {
		t.Fatalf("escape count = %d ok=%v, want 7 true", n, ok)
	}

	n, ok = e.SpawnCount(sim.PolicyContext{
		Trigger: "escape", Live: 5, TotalSpawned: 3, MaxBalls: 10,
	})
	if !ok || n != 0 {
		t.Fatalf("escape count over live cap = %d ok=%v, want 0 true", n, ok)
	}

	n, ok = e.SpawnCount(sim.PolicyContext{Trigger: "touch", MaxBalls: 10})
	if !ok || n != 1 {
		t.Fatalf("touch count = %d ok=%v, want 1 true", n, ok)
	}
}

func TestEngineMissingHook(t *testing.T) {
	path := writeScript(t, `
function on_escape(ctx)
    return 2
end
`)
	e, err := NewEngine(path, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()

	if _, ok := e.SpawnCount(sim.PolicyContext{Trigger: "touch"}); ok {
		t.Fatal("missing on_touch reported ok")
	}
	if e.HasHook("on_touch") {
		t.Fatal("HasHook(on_touch) = true, want false")
	}
}

func TestEngineHookFailuresFallThrough(t *testing.T) {
	path := writeScript(t, `
function on_escape(ctx)
    error("boom")
end

function on_touch(ctx)
    return "many"
end
`)
	e, err := NewEngine(path, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()

	if _, ok := e.SpawnCount(sim.PolicyContext{Trigger: "escape"}); ok {
		t.Fatal("erroring hook reported ok")
	}
	if _, ok := e.SpawnCount(sim.PolicyContext{Trigger: "touch"}); ok {
		t.Fatal("non-number result reported ok")
	}
}

func TestEngineRejectsBrokenScript(t *testing.T) {
	path := writeScript(t, `function on_escape(ctx`)
	if _, err := NewEngine(path, zap.NewNop()); err == nil {
		t.Fatal("expected load error")
	}
}

func TestPolicyFallback(t *testing.T) {
	path := writeScript(t, `
function on_escape(ctx)
    return 5
end
`)
	e, err := NewEngine(path, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()

	p := e.Policy(3)
	if n := p(sim.PolicyContext{Trigger: "escape"}); n != 5 {
		t.Fatalf("escape policy = %d, want 5", n)
	}
	if n := p(sim.PolicyContext{Trigger: "touch"}); n != 3 {
		t.Fatalf("touch policy fallback = %d, want 3", n)
	}
}
