// Command semrel runs a configured release pipeline: resolve the
// declared plugins, collect their capabilities, plan the dataflow, and
// execute it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/semrel-kernel/semrel/capability"
	"github.com/semrel-kernel/semrel/config"
	"github.com/semrel-kernel/semrel/flow"
	"github.com/semrel-kernel/semrel/kernel"
	"github.com/semrel-kernel/semrel/planner"
	"github.com/semrel-kernel/semrel/plugin"
	"github.com/semrel-kernel/semrel/resolver"

	_ "github.com/semrel-kernel/semrel/builtin"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		var exit *kernel.ErrEarlyExit
		if errors.As(err, &exit) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "semrel: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("semrel", flag.ContinueOnError)
	dryRun := fs.Bool("dry", false, "plan and log the pipeline without running wet steps")
	configPath := fs.String("config", "./releaserc.toml", "path to releaserc.toml")
	logLevel := fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: semrel [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))

	file, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ids := make([]resolver.Identity, 0, len(file.Plugins))
	for _, decl := range file.Plugins {
		ids = append(ids, resolver.Identity{Origin: decl.Origin, Name: decl.Name})
	}
	resolved, err := resolver.ResolveAll(ids)
	if err != nil {
		return fmt.Errorf("resolving plugins: %w", err)
	}
	started, err := resolver.StartAll(resolved)
	if err != nil {
		return fmt.Errorf("starting plugins: %w", err)
	}

	infos := capability.Collect(started)

	defaults := make(map[string]map[string]flow.Value, len(infos))
	for _, info := range infos {
		defaults[info.Name] = info.Config
	}
	merged, err := config.Merge(defaults, file.Global, file.PerPlugin)
	if err != nil {
		return fmt.Errorf("applying config overrides: %w", err)
	}
	for i, info := range infos {
		cfg := merged[info.Name]
		if err := started[i].SetConfig(cfg); err != nil {
			return fmt.Errorf("applying config to plugin %q: %w", info.Name, err)
		}
		infos[i].Config = cfg
	}

	order, err := planner.ResolveStepOrder(file.Steps, infos, nil)
	if err != nil {
		return fmt.Errorf("resolving step order: %w", err)
	}
	plan := planner.Build(infos, order, *dryRun)

	plugins := make([]plugin.Interface, len(started))
	names := make([]string, len(started))
	for i, s := range started {
		plugins[i] = s.Interface
		names[i] = s.Name
	}

	exec := kernel.New(plugins, names, nil, *dryRun, logger)
	return exec.Run(context.Background(), plan)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
