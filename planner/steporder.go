package planner

import (
	"fmt"

	"github.com/semrel-kernel/semrel/capability"
	"github.com/semrel-kernel/semrel/step"
)

// StepOrder maps each step to the ordered list of plugins scheduled to run
// during it.
type StepOrder map[step.Step][]capability.PluginID

// DefinitionKind mirrors how a step was declared in releaserc.toml.
type DefinitionKind int

const (
	// DefDiscover schedules every plugin that advertises the step, in
	// declaration order, excluding injected plugins.
	DefDiscover DefinitionKind = iota
	// DefSingleton schedules exactly the one named plugin.
	DefSingleton
	// DefShared schedules the explicit ordered list of named plugins.
	DefShared
)

// Definition is the parsed form of one entry in releaserc.toml's [steps]
// table.
type Definition struct {
	Kind  DefinitionKind
	Names []string // single entry for Singleton
}

// StepMapError reports a configuration error discovered while resolving
// the declarative step map against collected plugin capabilities.
type StepMapError struct {
	Step   step.Step
	Reason string
}

func (e *StepMapError) Error() string {
	return fmt.Sprintf("planner: step %s: %s", e.Step, e.Reason)
}

// InjectionPosition says whether an injected plugin runs before or after
// the configured participants of a step.
type InjectionPosition int

const (
	Before InjectionPosition = iota
	After
)

// Injection is a kernel-supplied addition to a step's plugin list, applied
// outside of releaserc.toml. Injected plugins are first-class participants
// of the step they're injected into, but are never added to a Discover
// expansion of any other step.
type Injection struct {
	Plugin   capability.PluginID
	Step     step.Step
	Position InjectionPosition
}

// ResolveStepOrder turns the declarative step map into a concrete,
// validated StepOrder. defs is the parsed [steps] table; infos is the
// collected Info of every plugin, matched to defs by name. injections lists
// plugins added outside releaserc.toml: Discover excludes them, and each is
// then placed before or after its step's participants.
func ResolveStepOrder(defs map[step.Step]Definition, infos []capability.Info, injections []Injection) (StepOrder, error) {
	byName := make(map[string]capability.Info, len(infos))
	for _, info := range infos {
		byName[info.Name] = info
	}
	injected := make(map[capability.PluginID]bool)
	for _, inj := range injections {
		injected[inj.Plugin] = true
	}

	order := make(StepOrder)

	for _, s := range step.All() {
		def, ok := defs[s]
		if !ok {
			continue // step has no configured participants
		}

		wantKind := step.KindOf(s)

		switch def.Kind {
		case DefSingleton:
			if wantKind != step.Singleton {
				return nil, &StepMapError{Step: s, Reason: "declared as a single plugin name but this step is shared"}
			}
			if len(def.Names) != 1 {
				return nil, &StepMapError{Step: s, Reason: "singleton step must name exactly one plugin"}
			}
			info, ok := byName[def.Names[0]]
			if !ok {
				return nil, &StepMapError{Step: s, Reason: fmt.Sprintf("no plugin named %q", def.Names[0])}
			}
			if !info.Implements(s) {
				return nil, &StepMapError{Step: s, Reason: fmt.Sprintf("plugin %q does not implement this step", info.Name)}
			}
			order[s] = []capability.PluginID{info.ID}

		case DefShared:
			if wantKind != step.Shared {
				return nil, &StepMapError{Step: s, Reason: "declared as an explicit plugin list but this step is a singleton"}
			}
			ids := make([]capability.PluginID, 0, len(def.Names))
			for _, name := range def.Names {
				info, ok := byName[name]
				if !ok {
					return nil, &StepMapError{Step: s, Reason: fmt.Sprintf("no plugin named %q", name)}
				}
				if !info.Implements(s) {
					return nil, &StepMapError{Step: s, Reason: fmt.Sprintf("plugin %q does not implement this step", info.Name)}
				}
				ids = append(ids, info.ID)
			}
			order[s] = ids

		case DefDiscover:
			var ids []capability.PluginID
			for _, info := range infos {
				if injected[info.ID] {
					continue
				}
				if info.Implements(s) {
					ids = append(ids, info.ID)
				}
			}
			order[s] = ids
		}
	}

	for _, inj := range injections {
		switch inj.Position {
		case Before:
			order[inj.Step] = append([]capability.PluginID{inj.Plugin}, order[inj.Step]...)
		case After:
			order[inj.Step] = append(order[inj.Step], inj.Plugin)
		}
	}

	return order, nil
}
