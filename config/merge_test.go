package config

import (
	"encoding/json"
	"testing"

	"github.com/semrel-kernel/semrel/flow"
	"github.com/semrel-kernel/semrel/step"
)

func TestMergeGlobalAppliesOnlyToDeclaredKeys(t *testing.T) {
	defaults := map[string]map[string]flow.Value{
		"git":  {"remote": flow.Ready("remote", "upstream")},
		"semv": {"tag_prefix": flow.Ready("tag_prefix", "v")},
	}
	global := map[string]any{"remote": "origin"}

	merged, err := Merge(defaults, global, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	payload, _ := merged["git"]["remote"].Payload()
	var got string
	json.Unmarshal(payload, &got)
	if got != "origin" {
		t.Errorf("git.remote = %q, want origin", got)
	}
	if _, has := merged["semv"]["remote"]; has {
		t.Error("global key leaked into a plugin that never declared it")
	}
}

func TestMergePerPluginWinsOverGlobal(t *testing.T) {
	defaults := map[string]map[string]flow.Value{
		"git": {"remote": flow.Ready("remote", "upstream")},
	}
	global := map[string]any{"remote": "origin"}
	perPlugin := map[string]map[string]any{"git": {"remote": "fork"}}

	merged, err := Merge(defaults, global, perPlugin)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	payload, _ := merged["git"]["remote"].Payload()
	var got string
	json.Unmarshal(payload, &got)
	if got != "fork" {
		t.Errorf("git.remote = %q, want fork", got)
	}
}

func TestMergeRejectsProtectedOverride(t *testing.T) {
	defaults := map[string]map[string]flow.Value{
		"semv": {"next_version": flow.NewBuilder("next_version").Protected().Value("1.0.0").Build()},
	}
	perPlugin := map[string]map[string]any{"semv": {"next_version": "9.9.9"}}

	if _, err := Merge(defaults, nil, perPlugin); err == nil {
		t.Fatal("expected error overriding a protected value")
	}
}

func TestMergeRejectsUndeclaredKey(t *testing.T) {
	defaults := map[string]map[string]flow.Value{
		"git": {"remote": flow.Ready("remote", "upstream")},
	}
	perPlugin := map[string]map[string]any{"git": {"typo_remote": "origin"}}

	if _, err := Merge(defaults, nil, perPlugin); err == nil {
		t.Fatal("expected error for an undeclared cfg key")
	}
}

func TestMergeFromSpecBuildsProvisionRequest(t *testing.T) {
	defaults := map[string]map[string]flow.Value{
		"publish": {"token": flow.Ready("token", "placeholder")},
	}
	perPlugin := map[string]map[string]any{
		"publish": {"token": "from:required_at=publish:env:NPM_TOKEN"},
	}

	merged, err := Merge(defaults, nil, perPlugin)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	v := merged["publish"]["token"]
	if v.IsReady() {
		t.Fatal("expected an unready provisioned value")
	}
	req, _ := v.Request()
	if !req.FromEnv || req.Key != "NPM_TOKEN" || req.RequiredAt == nil || *req.RequiredAt != step.Publish {
		t.Errorf("request = %+v", req)
	}
}
