package config

import (
	"fmt"

	"github.com/semrel-kernel/semrel/flow"
)

// OverrideError reports a cfg table entry that cannot be applied: the key
// isn't declared by the plugin's own config, or it tries to override a
// protected value.
type OverrideError struct {
	Plugin string
	Key    string
	Reason string
}

func (e *OverrideError) Error() string {
	return fmt.Sprintf("config: plugin %q: cfg key %q: %s", e.Plugin, e.Key, e.Reason)
}

// Merge applies releaserc.toml's [cfg] and [cfg.<plugin>] tables on top of
// each plugin's own default Config, as collected from its GetConfig(). A
// [cfg] key only applies to plugins that already declare that key; a
// [cfg.<plugin>] key must be declared by that plugin too. Per-plugin
// overrides win over the global table. defaults is keyed by plugin name.
func Merge(defaults map[string]map[string]flow.Value, global map[string]any, perPlugin map[string]map[string]any) (map[string]map[string]flow.Value, error) {
	out := make(map[string]map[string]flow.Value, len(defaults))

	for name, def := range defaults {
		merged := make(map[string]flow.Value, len(def))
		for k, v := range def {
			merged[k] = v
		}

		for k, raw := range global {
			if _, declared := def[k]; !declared {
				continue
			}
			v, err := applyOverride(def, k, raw)
			if err != nil {
				return nil, &OverrideError{Plugin: name, Key: k, Reason: err.Error()}
			}
			merged[k] = v
		}

		for k, raw := range perPlugin[name] {
			if _, declared := def[k]; !declared {
				return nil, &OverrideError{Plugin: name, Key: k, Reason: "not declared by this plugin"}
			}
			v, err := applyOverride(def, k, raw)
			if err != nil {
				return nil, &OverrideError{Plugin: name, Key: k, Reason: err.Error()}
			}
			merged[k] = v
		}

		out[name] = merged
	}

	return out, nil
}

func applyOverride(def map[string]flow.Value, key string, raw any) (flow.Value, error) {
	if def[key].Protected() {
		return flow.Value{}, fmt.Errorf("protected, cannot be overridden")
	}

	if s, isString := raw.(string); isString {
		spec, isFrom, err := flow.ParseFromSpec(s)
		if err != nil {
			return flow.Value{}, err
		}
		if isFrom {
			b := flow.NewBuilder(spec.Key)
			if spec.RequiredAt != nil {
				b = b.RequiredAt(*spec.RequiredAt)
			}
			if spec.FromEnv {
				b = b.LoadFromEnv()
			}
			return b.Build(), nil
		}
	}

	return flow.NewBuilder(key).Value(raw).Build(), nil
}
