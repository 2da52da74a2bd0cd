package resolver

import (
	"fmt"

	"github.com/semrel-kernel/semrel/plugin"
)

// StartError reports that a resolved plugin failed to start.
type StartError struct {
	Name string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("resolver: plugin %q failed to start: %v", e.Name, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// Started is a plugin that has passed its readiness check.
type Started struct {
	plugin.Interface
	Name string
}

// Start validates a resolved plugin by calling its Name method — the act
// of successfully naming itself is the plugin's only readiness contract.
// A plugin whose Name panics (for instance because some lazily-initialized
// internal state was never set up) fails to start rather than crashing the
// kernel.
func Start(p plugin.Interface) (started Started, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StartError{Name: "<unknown>", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	name := p.Name()
	if name == "" {
		return Started{}, &StartError{Name: "<empty>", Err: fmt.Errorf("plugin returned an empty name")}
	}
	return Started{Interface: p, Name: name}, nil
}

// StartAll starts every plugin in order, stopping at the first failure.
func StartAll(plugins []plugin.Interface) ([]Started, error) {
	out := make([]Started, 0, len(plugins))
	for _, p := range plugins {
		s, err := Start(p)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
