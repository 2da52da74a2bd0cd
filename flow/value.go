// Package flow implements the dataflow primitives plugins exchange through
// the kernel: values that are either ready immediately or need the kernel
// to provision them, and the capabilities plugins advertise for producing
// those values.
package flow

import (
	"encoding/json"
	"fmt"

	"github.com/semrel-kernel/semrel/step"
)

// ProvisionRequest describes how an unready Value should be resolved: by
// asking some plugin for the named key, optionally no earlier than a given
// step, optionally by reading an environment variable instead of a plugin.
type ProvisionRequest struct {
	Key        string
	RequiredAt *step.Step
	FromEnv    bool
}

// Value is a single configuration or dataflow entry. It is either Ready,
// carrying a JSON payload, or unready, carrying a ProvisionRequest the
// kernel must satisfy before the owning plugin can use it.
type Value struct {
	ready     bool
	payload   json.RawMessage
	request   ProvisionRequest
	protected bool
}

// IsReady reports whether the value already carries a payload.
func (v Value) IsReady() bool { return v.ready }

// Protected reports whether this value may not be overridden by
// project-level configuration (set by plugins for values they compute
// themselves, such as a derived version).
func (v Value) Protected() bool { return v.protected }

// Payload returns the value's JSON payload. ok is false if the value is not
// ready.
func (v Value) Payload() (json.RawMessage, bool) {
	if !v.ready {
		return nil, false
	}
	return v.payload, true
}

// Request returns the value's provision request. ok is false if the value
// is already ready.
func (v Value) Request() (ProvisionRequest, bool) {
	if v.ready {
		return ProvisionRequest{}, false
	}
	return v.request, true
}

// Builder constructs a Value.
type Builder struct {
	key        string
	protected  bool
	payload    json.RawMessage
	hasPayload bool
	requiredAt *step.Step
	fromEnv    bool
}

// NewBuilder starts building a Value for the given provision key. The key
// is only meaningful if the value ends up unready.
func NewBuilder(key string) *Builder {
	return &Builder{key: key}
}

// Protected marks the built value as not overridable by project config.
func (b *Builder) Protected() *Builder {
	b.protected = true
	return b
}

// Value sets a concrete payload, making the built Value ready.
func (b *Builder) Value(payload any) *Builder {
	raw, err := json.Marshal(payload)
	if err != nil {
		// Values are built from already-decoded config/plugin data; a
		// marshal failure here means the caller passed something that
		// cannot round-trip through JSON, which is a programmer error.
		panic(fmt.Sprintf("flow: cannot marshal value for key %q: %v", b.key, err))
	}
	b.payload = raw
	b.hasPayload = true
	return b
}

// RequiredAt marks the value as not needed until at least the given step.
func (b *Builder) RequiredAt(s step.Step) *Builder {
	b.requiredAt = &s
	return b
}

// LoadFromEnv marks the value as sourced from an environment variable
// rather than another plugin.
func (b *Builder) LoadFromEnv() *Builder {
	b.fromEnv = true
	return b
}

// Build returns the constructed Value.
func (b *Builder) Build() Value {
	if b.hasPayload {
		return Value{ready: true, payload: b.payload, protected: b.protected}
	}
	return Value{
		protected: b.protected,
		request: ProvisionRequest{
			Key:        b.key,
			RequiredAt: b.requiredAt,
			FromEnv:    b.fromEnv,
		},
	}
}

// Ready is a convenience constructor for an already-ready value.
func Ready(key string, payload any) Value {
	return NewBuilder(key).Value(payload).Build()
}

// Availability describes when a plugin is able to produce a value for a
// provision capability: either at any point in the pipeline, or only once
// a given step has run.
type Availability struct {
	Always    bool
	AfterStep step.Step
}

// AlwaysAvailable constructs an Availability with no step dependency.
func AlwaysAvailable() Availability { return Availability{Always: true} }

// AvailableAfter constructs an Availability tied to a step.
func AvailableAfter(s step.Step) Availability { return Availability{AfterStep: s} }

// ProvisionCapability is a (key, availability) pair a plugin advertises: it
// can produce a value for Key once Availability is satisfied.
type ProvisionCapability struct {
	Key          string
	Availability Availability
}
