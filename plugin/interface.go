// Package plugin defines the contract every release pipeline plugin
// implements: a uniform set of methods the kernel calls to discover what a
// plugin does, configure it, and run it through the pipeline's steps.
package plugin

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/semrel-kernel/semrel/flow"
	"github.com/semrel-kernel/semrel/step"
)

// ErrStepNotImplemented is returned by a step callback a plugin has not
// overridden. The kernel never calls a callback for a step a plugin did
// not advertise via Methods, so this only fires on a misconfigured Base
// embedding.
var ErrStepNotImplemented = errors.New("plugin: step not implemented")

// Response is the envelope every step callback returns on success: an
// opaque JSON payload plus any non-fatal warnings the plugin wants surfaced
// to the operator.
type Response struct {
	Payload  json.RawMessage
	Warnings []string
}

// Interface is the contract a plugin implements. A plugin embeds Base to
// get sensible defaults for everything it doesn't need to override.
type Interface interface {
	// Name identifies the plugin. Calling Name is also the kernel's
	// readiness check: a plugin that cannot yet answer its own name is not
	// considered started.
	Name() string

	// Methods lists the steps this plugin implements. The kernel only
	// calls the step callback for steps listed here.
	Methods() []step.Step

	// ProvisionCapabilities lists the dataflow keys this plugin can
	// produce, and when during the pipeline each becomes available.
	ProvisionCapabilities() []flow.ProvisionCapability

	// GetConfig returns the plugin's current configuration entries.
	GetConfig() map[string]flow.Value
	// SetConfig replaces the plugin's configuration entries.
	SetConfig(map[string]flow.Value) error

	// GetValue returns the current value for a dataflow key this plugin
	// produces.
	GetValue(key string) (json.RawMessage, error)
	// SetValue overwrites a single configuration entry with a concrete
	// value, as produced by another plugin or the kernel's provisioning.
	SetValue(key string, value json.RawMessage) error

	PreFlight(ctx context.Context) (Response, error)
	GetLastRelease(ctx context.Context) (Response, error)
	DeriveNextVersion(ctx context.Context) (Response, error)
	GenerateNotes(ctx context.Context) (Response, error)
	Prepare(ctx context.Context) (Response, error)
	VerifyRelease(ctx context.Context) (Response, error)
	Commit(ctx context.Context) (Response, error)
	Publish(ctx context.Context) (Response, error)
	Notify(ctx context.Context) (Response, error)
}

// Call invokes the callback for the given step. It panics if s is not one
// of the nine pipeline steps, which would indicate a bug in the kernel
// rather than a plugin or configuration problem.
func Call(ctx context.Context, p Interface, s step.Step) (Response, error) {
	switch s {
	case step.PreFlight:
		return p.PreFlight(ctx)
	case step.GetLastRelease:
		return p.GetLastRelease(ctx)
	case step.DeriveNextVersion:
		return p.DeriveNextVersion(ctx)
	case step.GenerateNotes:
		return p.GenerateNotes(ctx)
	case step.Prepare:
		return p.Prepare(ctx)
	case step.VerifyRelease:
		return p.VerifyRelease(ctx)
	case step.Commit:
		return p.Commit(ctx)
	case step.Publish:
		return p.Publish(ctx)
	case step.Notify:
		return p.Notify(ctx)
	default:
		panic("plugin: unknown step in Call")
	}
}
