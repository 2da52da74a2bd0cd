package flow

import (
	"fmt"
	"strings"

	"github.com/semrel-kernel/semrel/step"
)

// FromSpec is the parsed form of a releaserc.toml config entry written as
// "from:...", redirecting that entry to a provisioned value instead of a
// literal one.
type FromSpec struct {
	Key        string
	RequiredAt *step.Step
	FromEnv    bool
}

const fromPrefix = "from:"

// ParseFromSpec parses the mini-language used by releaserc.toml cfg
// entries:
//
//	from:(required_at=<step>:)?(env:)?<key>
//
// ok is false (with a nil error) if s does not start with "from:" at all,
// meaning it is an ordinary literal value rather than a provision spec.
func ParseFromSpec(s string) (spec FromSpec, ok bool, err error) {
	if !strings.HasPrefix(s, fromPrefix) {
		return FromSpec{}, false, nil
	}
	rest := s[len(fromPrefix):]

	const requiredAtPrefix = "required_at="
	if strings.HasPrefix(rest, requiredAtPrefix) {
		rest = rest[len(requiredAtPrefix):]
		idx := strings.IndexByte(rest, ':')
		if idx < 0 {
			return FromSpec{}, true, fmt.Errorf("flow: malformed from-spec %q: missing ':' after required_at=<step>", s)
		}
		st, perr := step.Parse(rest[:idx])
		if perr != nil {
			return FromSpec{}, true, fmt.Errorf("flow: malformed from-spec %q: %w", s, perr)
		}
		spec.RequiredAt = &st
		rest = rest[idx+1:]
	}

	const envPrefix = "env:"
	if strings.HasPrefix(rest, envPrefix) {
		spec.FromEnv = true
		rest = rest[len(envPrefix):]
	}

	if rest == "" {
		return FromSpec{}, true, fmt.Errorf("flow: malformed from-spec %q: missing key", s)
	}
	spec.Key = rest
	return spec, true, nil
}
