// Package capability collects what each started plugin can do: which
// steps it implements, which dataflow keys it can provision and when, and
// its initial configuration. The planner consumes this collected
// information; nothing here does any scheduling itself.
package capability

import (
	"github.com/semrel-kernel/semrel/flow"
	"github.com/semrel-kernel/semrel/resolver"
	"github.com/semrel-kernel/semrel/step"
)

// PluginID addresses a plugin by its position in the configured plugin
// list. Plugins are never looked up by pointer or reference-counted; the
// whole runtime addresses them by this small integer, avoiding the
// back-reference graph problems a tree of shared plugin objects would
// otherwise create.
type PluginID int

// Info is everything the collector extracts from one started plugin.
type Info struct {
	ID           PluginID
	Name         string
	Methods      []step.Step
	Capabilities []flow.ProvisionCapability
	Config       map[string]flow.Value
}

// Implements reports whether this plugin declared the given step among its
// Methods.
func (i Info) Implements(s step.Step) bool {
	for _, m := range i.Methods {
		if m == s {
			return true
		}
	}
	return false
}

// Collect queries every started plugin once and returns its collected
// Info, in the same order the plugins were configured.
func Collect(plugins []resolver.Started) []Info {
	infos := make([]Info, len(plugins))
	for i, p := range plugins {
		infos[i] = Info{
			ID:           PluginID(i),
			Name:         p.Name,
			Methods:      p.Methods(),
			Capabilities: p.ProvisionCapabilities(),
			Config:       p.GetConfig(),
		}
	}
	return infos
}

// StepsToPlugins builds the global step -> plugin IDs map from each
// plugin's Methods, listing the plugins that implement each step in
// configured order. planner.ResolveStepOrder expands "discover" step
// definitions on its own and does not call this.
func StepsToPlugins(infos []Info) map[step.Step][]PluginID {
	m := make(map[step.Step][]PluginID)
	for _, info := range infos {
		for _, s := range info.Methods {
			m[s] = append(m[s], info.ID)
		}
	}
	return m
}
