package plugin

import (
	"context"
	"encoding/json"

	"github.com/semrel-kernel/semrel/flow"
	"github.com/semrel-kernel/semrel/step"
)

// Base provides defaults for every Interface method except Name: empty
// methods, capabilities and config, ErrKeyNotSupported from GetValue and
// SetValue, and ErrStepNotImplemented from every step callback. Concrete
// plugins embed Base, define Name, and override only the other methods they
// need, following the same
// embedding idiom the teacher's own BaseEnginePlugin/BaseNativePlugin use
// for optional interface methods.
type Base struct{}

func (Base) Methods() []step.Step { return nil }

func (Base) ProvisionCapabilities() []flow.ProvisionCapability { return nil }

func (Base) GetConfig() map[string]flow.Value { return nil }

func (Base) SetConfig(map[string]flow.Value) error { return nil }

func (Base) GetValue(string) (json.RawMessage, error) { return nil, flow.ErrKeyNotSupported }

func (Base) SetValue(string, json.RawMessage) error { return flow.ErrKeyNotSupported }

func (Base) PreFlight(context.Context) (Response, error) { return Response{}, ErrStepNotImplemented }

func (Base) GetLastRelease(context.Context) (Response, error) {
	return Response{}, ErrStepNotImplemented
}

func (Base) DeriveNextVersion(context.Context) (Response, error) {
	return Response{}, ErrStepNotImplemented
}

func (Base) GenerateNotes(context.Context) (Response, error) {
	return Response{}, ErrStepNotImplemented
}

func (Base) Prepare(context.Context) (Response, error) { return Response{}, ErrStepNotImplemented }

func (Base) VerifyRelease(context.Context) (Response, error) {
	return Response{}, ErrStepNotImplemented
}

func (Base) Commit(context.Context) (Response, error) { return Response{}, ErrStepNotImplemented }

func (Base) Publish(context.Context) (Response, error) { return Response{}, ErrStepNotImplemented }

func (Base) Notify(context.Context) (Response, error) { return Response{}, ErrStepNotImplemented }

// DefaultSetValue implements the common SetValue behavior: read the
// current config, overwrite the one entry named by key, and write the
// config back. Plugins that store configuration in the map returned by
// GetConfig can use this instead of writing their own SetValue.
func DefaultSetValue(p interface {
	GetConfig() map[string]flow.Value
	SetConfig(map[string]flow.Value) error
}, key string, value json.RawMessage) error {
	cfg := p.GetConfig()
	if _, ok := cfg[key]; !ok {
		return flow.ErrKeyNotSupported
	}
	next := make(map[string]flow.Value, len(cfg))
	for k, v := range cfg {
		next[k] = v
	}
	next[key] = flow.NewBuilder(key).Value(json.RawMessage(value)).Build()
	return p.SetConfig(next)
}
