package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/semrel-kernel/semrel/planner"
	"github.com/semrel-kernel/semrel/step"
)

func writeTemp(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "releaserc.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if _, ok := err.(*FileNotFoundError); !ok {
		t.Fatalf("err = %v (%T), want *FileNotFoundError", err, err)
	}
}

func TestLoadPluginOrderPreserved(t *testing.T) {
	path := writeTemp(t, `
[plugins]
zeta = "builtin"
alpha = "builtin"
mid = "builtin"
`)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"zeta", "alpha", "mid"}
	if len(f.Plugins) != len(want) {
		t.Fatalf("Plugins = %v, want %v", f.Plugins, want)
	}
	for i, name := range want {
		if f.Plugins[i].Name != name {
			t.Errorf("Plugins[%d].Name = %q, want %q", i, f.Plugins[i].Name, name)
		}
		if f.Plugins[i].Origin != "builtin" {
			t.Errorf("Plugins[%d].Origin = %q, want builtin", i, f.Plugins[i].Origin)
		}
	}
}

func TestLoadPluginTableOrigin(t *testing.T) {
	path := writeTemp(t, `
[plugins.custom]
location = "builtin"
`)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(f.Plugins) != 1 || f.Plugins[0].Name != "custom" || f.Plugins[0].Origin != "builtin" {
		t.Errorf("Plugins = %v", f.Plugins)
	}
}

func TestLoadRejectsUnsupportedOrigin(t *testing.T) {
	path := writeTemp(t, `
[plugins]
remote = "npm"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported plugin origin")
	}
}

func TestLoadSteps(t *testing.T) {
	path := writeTemp(t, `
[steps]
pre_flight = "discover"
commit = "git"
notify = ["slack", "email"]
`)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Steps[step.PreFlight].Kind != planner.DefDiscover {
		t.Errorf("PreFlight kind = %v, want DefDiscover", f.Steps[step.PreFlight].Kind)
	}
	if f.Steps[step.Commit].Kind != planner.DefSingleton || f.Steps[step.Commit].Names[0] != "git" {
		t.Errorf("Commit def = %v", f.Steps[step.Commit])
	}
	notify := f.Steps[step.Notify]
	if notify.Kind != planner.DefShared || len(notify.Names) != 2 || notify.Names[0] != "slack" || notify.Names[1] != "email" {
		t.Errorf("Notify def = %v", notify)
	}
}

func TestLoadUnknownStepName(t *testing.T) {
	path := writeTemp(t, `
[steps]
not_a_step = "git"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown step name")
	}
}

func TestLoadCfgTables(t *testing.T) {
	path := writeTemp(t, `
[cfg]
project_root = "."

[cfg.git]
remote = "origin"
`)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Global["project_root"] != "." {
		t.Errorf("Global = %v", f.Global)
	}
	if f.PerPlugin["git"]["remote"] != "origin" {
		t.Errorf("PerPlugin[git] = %v", f.PerPlugin["git"])
	}
	if _, leaked := f.Global["git"]; leaked {
		t.Error("per-plugin table leaked into Global")
	}
}
