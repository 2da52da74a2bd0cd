package planner

import (
	"testing"

	"github.com/semrel-kernel/semrel/capability"
	"github.com/semrel-kernel/semrel/step"
)

func TestResolveStepOrderDiscoverExcludesInjected(t *testing.T) {
	a := info(0, "a", []step.Step{step.GenerateNotes}, nil, nil)
	b := info(1, "b", []step.Step{step.GenerateNotes}, nil, nil)
	infos := []capability.Info{a, b}

	defs := map[step.Step]Definition{
		step.GenerateNotes: {Kind: DefDiscover},
	}
	injections := []Injection{
		{Plugin: 1, Step: step.GenerateNotes, Position: After},
	}

	order, err := ResolveStepOrder(defs, infos, injections)
	if err != nil {
		t.Fatalf("ResolveStepOrder: %v", err)
	}
	got := order[step.GenerateNotes]
	// b is injected, so Discover only picks up a; the injection then
	// re-adds b at the end — net effect for this test is b appears once,
	// after a, not twice.
	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("order[GenerateNotes] = %v, want [0 1]", got)
	}
}

func TestResolveStepOrderSingletonWrongKind(t *testing.T) {
	a := info(0, "a", []step.Step{step.PreFlight}, nil, nil)
	defs := map[step.Step]Definition{
		step.PreFlight: {Kind: DefSingleton, Names: []string{"a"}},
	}
	if _, err := ResolveStepOrder(defs, []capability.Info{a}, nil); err == nil {
		t.Fatal("expected error: PreFlight is a shared step, not singleton")
	}
}

func TestResolveStepOrderSharedWrongKind(t *testing.T) {
	a := info(0, "a", []step.Step{step.Commit}, nil, nil)
	defs := map[step.Step]Definition{
		step.Commit: {Kind: DefShared, Names: []string{"a"}},
	}
	if _, err := ResolveStepOrder(defs, []capability.Info{a}, nil); err == nil {
		t.Fatal("expected error: Commit is a singleton step, not shared")
	}
}

func TestResolveStepOrderPluginDoesNotImplementStep(t *testing.T) {
	a := info(0, "a", []step.Step{step.PreFlight}, nil, nil)
	defs := map[step.Step]Definition{
		step.GetLastRelease: {Kind: DefSingleton, Names: []string{"a"}},
	}
	if _, err := ResolveStepOrder(defs, []capability.Info{a}, nil); err == nil {
		t.Fatal("expected error: a does not implement GetLastRelease")
	}
}

func TestResolveStepOrderUnknownPluginName(t *testing.T) {
	a := info(0, "a", []step.Step{step.PreFlight}, nil, nil)
	defs := map[step.Step]Definition{
		step.PreFlight: {Kind: DefShared, Names: []string{"missing"}},
	}
	if _, err := ResolveStepOrder(defs, []capability.Info{a}, nil); err == nil {
		t.Fatal("expected error for unknown plugin name")
	}
}

func TestResolveStepOrderInjectionBefore(t *testing.T) {
	a := info(0, "a", []step.Step{step.PreFlight}, nil, nil)
	b := info(1, "injected", []step.Step{step.PreFlight}, nil, nil)
	defs := map[step.Step]Definition{
		step.PreFlight: {Kind: DefShared, Names: []string{"a"}},
	}
	order, err := ResolveStepOrder(defs, []capability.Info{a, b}, []Injection{
		{Plugin: 1, Step: step.PreFlight, Position: Before},
	})
	if err != nil {
		t.Fatalf("ResolveStepOrder: %v", err)
	}
	got := order[step.PreFlight]
	if len(got) != 2 || got[0] != 1 || got[1] != 0 {
		t.Errorf("order[PreFlight] = %v, want [1 0]", got)
	}
}
