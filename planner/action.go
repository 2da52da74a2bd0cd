// Package planner computes the ordered list of primitive Actions that,
// once executed, satisfy every plugin's data dependencies before each of
// its step calls. It is the dataflow compiler at the center of the kernel.
package planner

import (
	"encoding/json"
	"fmt"

	"github.com/semrel-kernel/semrel/capability"
	"github.com/semrel-kernel/semrel/step"
)

// ActionKind discriminates the variants of Action.
type ActionKind int

const (
	// Call invokes a plugin's callback for a step.
	Call ActionKind = iota
	// Get queries a value from a plugin and inserts it into the Data
	// Manager under Key.
	Get
	// Set takes the Data Manager's current value for SrcKey and pushes it
	// into Plugin under Key.
	Set
	// SetValue pushes a literal, config-sourced payload into Plugin under
	// Key.
	SetValue
	// RequireConfigEntry is a fail-fast marker: Plugin's Key must have
	// been supplied by project configuration, or execution fails before
	// any side effect occurs.
	RequireConfigEntry
	// RequireEnvValue reads EnvName from the process environment and
	// pushes it into Plugin under Key.
	RequireEnvValue
)

func (k ActionKind) String() string {
	switch k {
	case Call:
		return "Call"
	case Get:
		return "Get"
	case Set:
		return "Set"
	case SetValue:
		return "SetValue"
	case RequireConfigEntry:
		return "RequireConfigEntry"
	case RequireEnvValue:
		return "RequireEnvValue"
	default:
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
}

// Action is a single primitive operation emitted by the planner. Which
// fields are meaningful depends on Kind:
//
//	Call:                Plugin, Step
//	Get:                 Plugin, Key (the key to fetch from Plugin)
//	Set:                 Plugin, Key (destination), SrcKey (source)
//	SetValue:            Plugin, Key, Literal
//	RequireConfigEntry:  Plugin, Key
//	RequireEnvValue:     Plugin, Key (destination), EnvName
type Action struct {
	Kind    ActionKind
	Plugin  capability.PluginID
	Step    step.Step
	Key     string
	SrcKey  string
	Literal json.RawMessage
	EnvName string
}

func (a Action) String() string {
	switch a.Kind {
	case Call:
		return fmt.Sprintf("Call(%d, %s)", a.Plugin, a.Step)
	case Get:
		return fmt.Sprintf("Get(%d, %q)", a.Plugin, a.Key)
	case Set:
		return fmt.Sprintf("Set(%d, %q, %q)", a.Plugin, a.Key, a.SrcKey)
	case SetValue:
		return fmt.Sprintf("SetValue(%d, %q, %s)", a.Plugin, a.Key, a.Literal)
	case RequireConfigEntry:
		return fmt.Sprintf("RequireConfigEntry(%d, %q)", a.Plugin, a.Key)
	case RequireEnvValue:
		return fmt.Sprintf("RequireEnvValue(%d, %q, %q)", a.Plugin, a.Key, a.EnvName)
	default:
		return "Action(?)"
	}
}
