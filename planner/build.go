package planner

import (
	"sort"

	"github.com/semrel-kernel/semrel/capability"
	"github.com/semrel-kernel/semrel/flow"
	"github.com/semrel-kernel/semrel/step"
)

// Plan is the planner's output: the flat Action sequence to execute, plus
// any non-fatal warnings raised while building it (e.g. an ordering
// problem the kernel will still surface as a hard failure at execution
// time via the RequireConfigEntry it emitted).
type Plan struct {
	Actions  []Action
	Warnings []string
}

// Build computes the Action sequence for one pipeline run. infos is the
// capability collector's output; order is the resolved, injection-applied
// per-step plugin list; dryRun suppresses every wet-step Action.
func Build(infos []capability.Info, order StepOrder, dryRun bool) Plan {
	byID := make(map[capability.PluginID]capability.Info, len(infos))
	for _, info := range infos {
		byID[info.ID] = info
	}

	var actions []Action
	var front []Action
	var warnings []string

	resolved := make(map[capability.PluginID]map[string]bool)
	configEmitted := make(map[capability.PluginID]bool)

	available := make(map[string][]capability.PluginID)
	for _, info := range infos {
		for _, c := range info.Capabilities {
			if c.Availability.Always {
				available[c.Key] = appendUnique(available[c.Key], info.ID)
			}
		}
	}

	for _, s := range step.All() {
		if dryRun && s.IsWet() {
			continue
		}
		scheduled := order[s]
		pos := make(map[capability.PluginID]int, len(scheduled))
		for i, id := range scheduled {
			pos[id] = i
		}

		becameAvailable := cloneAvail(available)

		for _, pid := range scheduled {
			info := byID[pid]
			if resolved[pid] == nil {
				resolved[pid] = make(map[string]bool)
			}

			if !configEmitted[pid] {
				configEmitted[pid] = true
				for _, k := range sortedKeys(info.Config) {
					v := info.Config[k]
					if v.IsReady() {
						payload, _ := v.Payload()
						actions = append(actions, Action{Kind: SetValue, Plugin: pid, Key: k, Literal: payload})
						resolved[pid][k] = true
						continue
					}
					req, _ := v.Request()
					if req.FromEnv {
						actions = append(actions, Action{Kind: RequireEnvValue, Plugin: pid, Key: k, EnvName: req.Key})
						resolved[pid][k] = true
					}
				}
			}

			for _, k := range sortedKeys(info.Config) {
				if resolved[pid][k] {
					continue
				}
				v := info.Config[k]
				req, ok := v.Request()
				if !ok || req.FromEnv {
					continue
				}
				due := req.RequiredAt == nil || *req.RequiredAt <= s
				if !due {
					continue
				}
				src := req.Key

				if producers := filterSelf(becameAvailable[src], pid); len(producers) > 0 {
					for _, prod := range producers {
						actions = append(actions, Action{Kind: Get, Plugin: prod, Key: src})
					}
					actions = append(actions, Action{Kind: Set, Plugin: pid, Key: k, SrcKey: src})
					resolved[pid][k] = true
					continue
				}

				if laterName, laterOK := laterSameStepProducer(infos, pos, pid, src, s); laterOK {
					warnings = append(warnings, "plugin "+info.Name+" requires \""+src+"\" from "+laterName+
						", which is scheduled later in step "+s.String()+"; reorder "+laterName+" before "+info.Name+
						" or supply \""+k+"\" directly in project config")
					front = append(front, Action{Kind: RequireConfigEntry, Plugin: pid, Key: k})
					resolved[pid][k] = true
					continue
				}

				front = append(front, Action{Kind: RequireConfigEntry, Plugin: pid, Key: k})
				resolved[pid][k] = true
			}

			if info.Implements(s) {
				actions = append(actions, Action{Kind: Call, Plugin: pid, Step: s})
			}
			for _, c := range info.Capabilities {
				if !c.Availability.Always && c.Availability.AfterStep == s {
					becameAvailable[c.Key] = appendUnique(becameAvailable[c.Key], pid)
				}
			}
		}

		available = becameAvailable
	}

	return Plan{Actions: append(front, actions...), Warnings: warnings}
}

// laterSameStepProducer reports whether some other plugin scheduled later
// in the same step's list advertises src with AfterStep(s) availability —
// a user ordering error, since that plugin hasn't been Called yet.
func laterSameStepProducer(infos []capability.Info, pos map[capability.PluginID]int, pid capability.PluginID, src string, s step.Step) (string, bool) {
	myPos := pos[pid]
	for _, info := range infos {
		if info.ID == pid {
			continue
		}
		q, scheduledHere := pos[info.ID]
		if !scheduledHere || q <= myPos {
			continue
		}
		for _, c := range info.Capabilities {
			if c.Key == src && !c.Availability.Always && c.Availability.AfterStep == s {
				return info.Name, true
			}
		}
	}
	return "", false
}

func filterSelf(ids []capability.PluginID, self capability.PluginID) []capability.PluginID {
	out := make([]capability.PluginID, 0, len(ids))
	for _, id := range ids {
		if id != self {
			out = append(out, id)
		}
	}
	return out
}

func appendUnique(ids []capability.PluginID, id capability.PluginID) []capability.PluginID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func cloneAvail(m map[string][]capability.PluginID) map[string][]capability.PluginID {
	out := make(map[string][]capability.PluginID, len(m))
	for k, v := range m {
		cp := make([]capability.PluginID, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

func sortedKeys(m map[string]flow.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
