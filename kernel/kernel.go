// Package kernel executes a planner.Plan: it walks the flat Action list and
// performs the side effect each Action names, against the set of started
// plugins and the dataflow state accumulated in a datamgr.Manager.
package kernel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/semrel-kernel/semrel/capability"
	"github.com/semrel-kernel/semrel/datamgr"
	"github.com/semrel-kernel/semrel/flow"
	"github.com/semrel-kernel/semrel/planner"
	"github.com/semrel-kernel/semrel/plugin"
)

// Executor runs a resolved, started plugin set through a planned Action
// sequence.
type Executor struct {
	plugins []plugin.Interface
	names   []string
	dataMgr *datamgr.Manager
	dryRun  bool
	logger  *slog.Logger
}

// New builds an Executor. plugins and names must be parallel slices
// indexed by capability.PluginID (the order Collect produced); initial
// seeds the data manager with any already-ready project configuration
// values. A nil logger falls back to slog.Default().
func New(plugins []plugin.Interface, names []string, initial map[string]flow.Value, dryRun bool, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		plugins: plugins,
		names:   names,
		dataMgr: datamgr.New(initial),
		dryRun:  dryRun,
		logger:  logger,
	}
}

// Run executes every Action in plan in order, stopping at the first error.
// Every started plugin implementing io.Closer has Close called exactly
// once when Run returns, in reverse start order, regardless of outcome.
func (e *Executor) Run(ctx context.Context, plan planner.Plan) error {
	for _, w := range plan.Warnings {
		e.logger.Warn(w)
	}

	for i := range e.plugins {
		if c, ok := e.plugins[i].(io.Closer); ok {
			defer closeAndLog(c, e.names[i], e.logger)
		}
	}

	if e.dryRun {
		e.logger.Info("dry run: wet steps will be skipped")
	}

	for _, action := range plan.Actions {
		if err := e.apply(ctx, action); err != nil {
			var exit *ErrEarlyExit
			if errors.As(err, &exit) {
				e.logger.Info("early exit", "reason", exit.Reason)
				return err
			}
			return err
		}
	}
	return nil
}

func (e *Executor) apply(ctx context.Context, action planner.Action) error {
	switch action.Kind {
	case planner.Call:
		name := e.names[action.Plugin]
		e.logger.Debug("call", "plugin", name, "step", action.Step.String())
		resp, err := plugin.Call(ctx, e.plugins[action.Plugin], action.Step)
		if err != nil {
			var exit *ErrEarlyExit
			if errors.As(err, &exit) {
				return err
			}
			return &PluginCallError{Plugin: name, Step: action.Step.String(), Err: err}
		}
		for _, w := range resp.Warnings {
			e.logger.Warn(w, "plugin", name, "step", action.Step.String())
		}
		return nil

	case planner.Get:
		name := e.names[action.Plugin]
		payload, err := e.plugins[action.Plugin].GetValue(action.Key)
		if err != nil {
			return &PluginCallError{Plugin: name, Step: "GetValue(" + action.Key + ")", Err: err}
		}
		e.logger.Debug("get", "plugin", name, "key", action.Key)
		e.dataMgr.InsertGlobal(action.Key, flow.Ready(action.Key, payload))
		return nil

	case planner.Set:
		return e.push(action.Plugin, action.Key, func() (flow.Value, error) {
			return e.dataMgr.PrepareValue(action.Key, action.SrcKey)
		})

	case planner.SetValue:
		return e.push(action.Plugin, action.Key, func() (flow.Value, error) {
			return flow.NewBuilder(action.Key).Value(action.Literal).Build(), nil
		})

	case planner.RequireConfigEntry:
		return e.push(action.Plugin, action.Key, func() (flow.Value, error) {
			return e.dataMgr.PrepareValueSameKey(action.Key)
		})

	case planner.RequireEnvValue:
		return e.push(action.Plugin, action.Key, func() (flow.Value, error) {
			raw, ok := os.LookupEnv(action.EnvName)
			if !ok {
				return flow.Value{}, &EnvValueUndefinedError{EnvName: action.EnvName}
			}
			return flow.NewBuilder(action.Key).Value(raw).Build(), nil
		})

	default:
		return nil
	}
}

// push resolves a Value via resolve, then pushes it into the destination
// plugin's SetValue. Every Action kind that ends in a plugin receiving
// data shares this tail.
func (e *Executor) push(dst capability.PluginID, key string, resolve func() (flow.Value, error)) error {
	value, err := resolve()
	if err != nil {
		return err
	}
	name := e.names[dst]
	payload, _ := value.Payload()
	e.logger.Debug("set", "plugin", name, "key", key, "value", string(payload))
	if err := e.plugins[dst].SetValue(key, payload); err != nil {
		return &PluginCallError{Plugin: name, Step: "SetValue(" + key + ")", Err: err}
	}
	return nil
}

func closeAndLog(c io.Closer, name string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Warn("plugin close failed", "plugin", name, "error", err)
	}
}
