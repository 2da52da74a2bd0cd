// Package config parses releaserc.toml: the plugin list, the declarative
// step map, and the cfg table with its embedded "from:" mini-language for
// provisioned values.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/semrel-kernel/semrel/planner"
	"github.com/semrel-kernel/semrel/step"
)

// FileNotFoundError reports that the named configuration file does not
// exist.
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("config: file not found: %s", e.Path)
}

// ParseError wraps a TOML syntax or schema error with the file path that
// produced it.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config: failed to parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// PluginDecl is one entry of releaserc.toml's [plugins] table.
type PluginDecl struct {
	Name   string
	Origin string // always "builtin" today; other origins are reserved.
}

// File is the parsed, not-yet-validated contents of releaserc.toml.
// Validating step-kind agreement and resolving provision specs happens
// once plugin capabilities have been collected (see Merge and
// planner.ResolveStepOrder).
type File struct {
	Plugins   []PluginDecl
	Steps     map[step.Step]planner.Definition
	Global    map[string]any
	PerPlugin map[string]map[string]any
}

type rawFile struct {
	Plugins map[string]any `toml:"plugins"`
	Steps   map[string]any `toml:"steps"`
	Cfg     map[string]any `toml:"cfg"`
}

// Load reads and parses the release configuration at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &FileNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var raw rawFile
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	file := &File{
		Steps:     make(map[step.Step]planner.Definition),
		PerPlugin: make(map[string]map[string]any),
	}

	for _, key := range md.Keys() {
		if len(key) == 2 && key[0] == "plugins" {
			origin, err := parseOrigin(raw.Plugins[key[1]])
			if err != nil {
				return nil, &ParseError{Path: path, Err: fmt.Errorf("plugin %q: %w", key[1], err)}
			}
			file.Plugins = append(file.Plugins, PluginDecl{Name: key[1], Origin: origin})
		}
	}

	for name, raw := range raw.Steps {
		s, err := step.Parse(name)
		if err != nil {
			return nil, &ParseError{Path: path, Err: fmt.Errorf("[steps]: %w", err)}
		}
		def, err := parseStepDefinition(raw)
		if err != nil {
			return nil, &ParseError{Path: path, Err: fmt.Errorf("[steps].%s: %w", name, err)}
		}
		file.Steps[s] = def
	}

	file.Global = raw.Cfg
	for name, raw := range raw.Cfg {
		sub, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		file.PerPlugin[name] = sub
	}
	// Per-plugin tables ([cfg.name]) also appear as entries of raw.Cfg
	// keyed by plugin name; strip them back out of Global so a plugin
	// named the same as a global key can't collide.
	for name := range file.PerPlugin {
		delete(file.Global, name)
	}

	return file, nil
}

func parseOrigin(v any) (string, error) {
	switch t := v.(type) {
	case string:
		if t != "builtin" {
			return "", fmt.Errorf("unsupported origin %q", t)
		}
		return "builtin", nil
	case map[string]any:
		loc, ok := t["location"].(string)
		if !ok {
			return "", fmt.Errorf("plugin table missing string \"location\"")
		}
		if loc != "builtin" {
			return "", fmt.Errorf("unsupported origin %q", loc)
		}
		return "builtin", nil
	default:
		return "", fmt.Errorf("plugin declaration must be a string or a table")
	}
}

func parseStepDefinition(v any) (planner.Definition, error) {
	switch t := v.(type) {
	case string:
		if t == "discover" {
			return planner.Definition{Kind: planner.DefDiscover}, nil
		}
		return planner.Definition{Kind: planner.DefSingleton, Names: []string{t}}, nil
	case []any:
		names := make([]string, 0, len(t))
		for _, item := range t {
			name, ok := item.(string)
			if !ok {
				return planner.Definition{}, fmt.Errorf("plugin list must contain only strings")
			}
			names = append(names, name)
		}
		return planner.Definition{Kind: planner.DefShared, Names: names}, nil
	default:
		return planner.Definition{}, fmt.Errorf("step definition must be a string, \"discover\", or a list of plugin names")
	}
}
