// Package resolver turns a plugin declaration from releaserc.toml into a
// started, ready-to-use plugin instance.
package resolver

import (
	"fmt"

	"github.com/semrel-kernel/semrel/plugin"
)

// Identity names a single plugin declaration: where to find it and which
// one to load. Only the "builtin" origin is currently supported — remote
// plugin resolution (e.g. fetching a binary or a cargo-style package) is
// out of scope for this kernel.
type Identity struct {
	Origin string
	Name   string
}

// Constructor builds a fresh instance of a builtin plugin.
type Constructor func() plugin.Interface

var builtins = map[string]Constructor{}

// RegisterBuiltin adds a constructor to the global builtin plugin
// registry. Builtin plugin packages call this from an init function,
// mirroring the teacher's RegisterNativePluginFactory/BuiltinNativePlugins
// registration idiom.
func RegisterBuiltin(name string, ctor Constructor) {
	builtins[name] = ctor
}

// ResolutionError reports that a plugin declaration could not be resolved
// to a loadable instance.
type ResolutionError struct {
	Origin string
	Name   string
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolver: cannot resolve plugin %q (origin %q): %s", e.Name, e.Origin, e.Reason)
}

// Resolve constructs the plugin instance named by id. It fails fast: any
// origin other than "builtin", or a builtin name with no registered
// constructor, is an error — there is no lazy or remote fallback.
func Resolve(id Identity) (plugin.Interface, error) {
	if id.Origin != "builtin" {
		return nil, &ResolutionError{Origin: id.Origin, Name: id.Name, Reason: "only the builtin origin is supported"}
	}
	ctor, ok := builtins[id.Name]
	if !ok {
		return nil, &ResolutionError{Origin: id.Origin, Name: id.Name, Reason: "no builtin plugin registered under this name"}
	}
	return ctor(), nil
}

// ResolveAll resolves every identity in order, stopping at the first
// failure.
func ResolveAll(ids []Identity) ([]plugin.Interface, error) {
	out := make([]plugin.Interface, 0, len(ids))
	for _, id := range ids {
		p, err := Resolve(id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
