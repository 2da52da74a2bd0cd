package kernel

import "fmt"

// ErrEarlyExit is returned by Run when a plugin step callback requests a
// graceful stop rather than a failure, for instance a release plugin
// deciding there is nothing to release. cmd/semrel recognizes this and
// exits 0.
type ErrEarlyExit struct {
	Reason string
}

func (e *ErrEarlyExit) Error() string {
	if e.Reason == "" {
		return "kernel: early exit requested"
	}
	return "kernel: early exit: " + e.Reason
}

// EnvValueUndefinedError reports that a RequireEnvValue action named an
// environment variable that isn't set in the process environment.
type EnvValueUndefinedError struct {
	EnvName string
}

func (e *EnvValueUndefinedError) Error() string {
	return fmt.Sprintf("kernel: environment variable %q is not set", e.EnvName)
}

// PluginCallError wraps an error returned by a plugin's step callback with
// the plugin name and step that produced it, so cmd/semrel can print an
// actionable message without the caller needing to carry that context
// separately.
type PluginCallError struct {
	Plugin string
	Step   string
	Err    error
}

func (e *PluginCallError) Error() string {
	return fmt.Sprintf("kernel: %s::%s: %v", e.Plugin, e.Step, e.Err)
}

func (e *PluginCallError) Unwrap() error { return e.Err }
