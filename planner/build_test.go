package planner

import (
	"encoding/json"
	"testing"

	"github.com/semrel-kernel/semrel/capability"
	"github.com/semrel-kernel/semrel/flow"
	"github.com/semrel-kernel/semrel/step"
)

func info(id capability.PluginID, name string, methods []step.Step, caps []flow.ProvisionCapability, cfg map[string]flow.Value) capability.Info {
	return capability.Info{ID: id, Name: name, Methods: methods, Capabilities: caps, Config: cfg}
}

func actionsOnly(p Plan, kinds ...ActionKind) []Action {
	want := make(map[ActionKind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []Action
	for _, a := range p.Actions {
		if want[a.Kind] {
			out = append(out, a)
		}
	}
	return out
}

// Scenario A — single dependent/provider pair, data already produced.
func TestScenarioA(t *testing.T) {
	dep := info(0, "dep", []step.Step{step.PreFlight}, nil, map[string]flow.Value{
		"dest_key": flow.NewBuilder("source_key").Build(),
	})
	prov := info(1, "prov", []step.Step{step.PreFlight},
		[]flow.ProvisionCapability{{Key: "source_key", Availability: flow.AlwaysAvailable()}}, nil)

	order := StepOrder{step.PreFlight: {0, 1}}
	plan := Build([]capability.Info{dep, prov}, order, false)

	want := []Action{
		{Kind: Get, Plugin: 1, Key: "source_key"},
		{Kind: Set, Plugin: 0, Key: "dest_key", SrcKey: "source_key"},
		{Kind: Call, Plugin: 0, Step: step.PreFlight},
		{Kind: Call, Plugin: 1, Step: step.PreFlight},
	}
	assertActionsEqual(t, plan.Actions, want)
}

// Scenario B — same-step ordering error.
func TestScenarioB(t *testing.T) {
	dep := info(0, "dep", []step.Step{step.PreFlight}, nil, map[string]flow.Value{
		"dest_key": flow.NewBuilder("source_key").Build(),
	})
	prov := info(1, "prov", []step.Step{step.PreFlight},
		[]flow.ProvisionCapability{{Key: "source_key", Availability: flow.AvailableAfter(step.PreFlight)}}, nil)

	order := StepOrder{step.PreFlight: {0, 1}}
	plan := Build([]capability.Info{dep, prov}, order, false)

	if len(plan.Actions) == 0 || plan.Actions[0].Kind != RequireConfigEntry {
		t.Fatalf("expected RequireConfigEntry at front, got %v", plan.Actions)
	}
	front := plan.Actions[0]
	if front.Plugin != 0 || front.Key != "dest_key" {
		t.Errorf("front action = %v, want RequireConfigEntry(0, dest_key)", front)
	}
	calls := actionsOnly(plan, Call)
	if len(calls) != 2 {
		t.Fatalf("expected 2 Calls, got %v", calls)
	}
	if len(plan.Warnings) == 0 {
		t.Error("expected an ordering warning to be logged")
	}
}

// Scenario C — override from config.
func TestScenarioC(t *testing.T) {
	dep := info(0, "dep", []step.Step{step.PreFlight}, nil, map[string]flow.Value{
		"dest_key": flow.Ready("dest_key", "literal"),
	})
	prov := info(1, "prov", []step.Step{step.PreFlight},
		[]flow.ProvisionCapability{{Key: "source_key", Availability: flow.AlwaysAvailable()}}, nil)

	order := StepOrder{step.PreFlight: {0, 1}}
	plan := Build([]capability.Info{dep, prov}, order, false)

	gets := actionsOnly(plan, Get)
	for _, g := range gets {
		if g.Key == "source_key" {
			t.Errorf("did not expect a Get(source_key) when dest_key is overridden by config, got %v", g)
		}
	}
	setValues := actionsOnly(plan, SetValue)
	if len(setValues) != 1 || setValues[0].Plugin != 0 || setValues[0].Key != "dest_key" {
		t.Errorf("setValues = %v, want a single SetValue(0, dest_key, ...)", setValues)
	}
}

// Scenario D — environment-sourced value.
func TestScenarioD(t *testing.T) {
	pub := info(0, "pub", []step.Step{step.Publish}, nil, map[string]flow.Value{
		"token": flow.NewBuilder("API_TOKEN").LoadFromEnv().Build(),
	})
	order := StepOrder{step.Publish: {0}}
	plan := Build([]capability.Info{pub}, order, false)

	envIdx, callIdx := -1, -1
	for i, a := range plan.Actions {
		if a.Kind == RequireEnvValue {
			envIdx = i
		}
		if a.Kind == Call {
			callIdx = i
		}
	}
	if envIdx < 0 {
		t.Fatal("expected a RequireEnvValue action")
	}
	if callIdx < 0 || envIdx > callIdx {
		t.Errorf("RequireEnvValue (idx %d) must precede Call (idx %d)", envIdx, callIdx)
	}
	req := plan.Actions[envIdx]
	if req.Plugin != 0 || req.Key != "token" || req.EnvName != "API_TOKEN" {
		t.Errorf("RequireEnvValue = %v", req)
	}
}

// Scenario E — multi-producer merge.
func TestScenarioE(t *testing.T) {
	a := info(0, "a", []step.Step{step.Prepare},
		[]flow.ProvisionCapability{{Key: "files_to_commit", Availability: flow.AvailableAfter(step.Prepare)}}, nil)
	b := info(1, "b", []step.Step{step.Prepare},
		[]flow.ProvisionCapability{{Key: "files_to_commit", Availability: flow.AvailableAfter(step.Prepare)}}, nil)
	git := info(2, "git", []step.Step{step.Commit}, nil, map[string]flow.Value{
		"files_to_commit": flow.NewBuilder("files_to_commit").Build(),
	})

	order := StepOrder{
		step.Prepare: {0, 1},
		step.Commit:  {2},
	}
	plan := Build([]capability.Info{a, b, git}, order, false)

	gets := actionsOnly(plan, Get)
	if len(gets) != 2 {
		t.Fatalf("expected 2 Get actions, got %v", gets)
	}
	producers := map[capability.PluginID]bool{}
	for _, g := range gets {
		if g.Key != "files_to_commit" {
			t.Errorf("unexpected Get key %q", g.Key)
		}
		producers[g.Plugin] = true
	}
	if !producers[0] || !producers[1] {
		t.Errorf("expected Gets from both producers, got %v", gets)
	}

	sets := actionsOnly(plan, Set)
	if len(sets) != 1 || sets[0].Plugin != 2 || sets[0].SrcKey != "files_to_commit" {
		t.Errorf("sets = %v, want a single Set(git, files_to_commit, files_to_commit)", sets)
	}
}

// Scenario F — dry-run suppression.
func TestScenarioF(t *testing.T) {
	git := info(0, "git", []step.Step{step.Prepare, step.Commit, step.Publish, step.Notify}, nil, nil)
	order := StepOrder{
		step.Prepare: {0},
		step.Commit:  {0},
		step.Publish: {0},
		step.Notify:  {0},
	}
	plan := Build([]capability.Info{git}, order, true)

	for _, a := range plan.Actions {
		if a.Kind == Call && a.Step.IsWet() {
			t.Errorf("dry-run plan contains wet Call: %v", a)
		}
	}
	calls := actionsOnly(plan, Call)
	if len(calls) != 1 || calls[0].Step != step.Prepare {
		t.Errorf("calls = %v, want exactly Call(git, Prepare)", calls)
	}
}

func TestInvariantNoSelfGet(t *testing.T) {
	self := info(0, "self", []step.Step{step.PreFlight},
		[]flow.ProvisionCapability{{Key: "k", Availability: flow.AlwaysAvailable()}},
		map[string]flow.Value{"k": flow.NewBuilder("k").Build()})
	order := StepOrder{step.PreFlight: {0}}
	plan := Build([]capability.Info{self}, order, false)

	for _, a := range plan.Actions {
		if a.Kind == Get && a.Plugin == 0 {
			t.Errorf("plugin should never Get its own key: %v", a)
		}
	}
}

func assertActionsEqual(t *testing.T, got, want []Action) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("len(actions) = %d, want %d\ngot:  %v\nwant: %v", len(got), len(want), got, want)
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.Kind != w.Kind || g.Plugin != w.Plugin || g.Key != w.Key || g.SrcKey != w.SrcKey || g.Step != w.Step {
			t.Errorf("actions[%d] = %v, want %v", i, g, w)
		}
	}
}

func TestNoRawJSONLeaksUnexpectedly(t *testing.T) {
	// SetValue payloads must carry through untouched.
	dep := info(0, "dep", []step.Step{step.PreFlight}, nil, map[string]flow.Value{
		"dest_key": flow.Ready("dest_key", 42),
	})
	order := StepOrder{step.PreFlight: {0}}
	plan := Build([]capability.Info{dep}, order, false)
	sv := actionsOnly(plan, SetValue)
	if len(sv) != 1 {
		t.Fatalf("expected one SetValue, got %v", sv)
	}
	var n int
	if err := json.Unmarshal(sv[0].Literal, &n); err != nil || n != 42 {
		t.Errorf("literal = %s, want 42", sv[0].Literal)
	}
}
