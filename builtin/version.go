// Package builtin ships reference plugins exercising the kernel against a
// real (if minimal) release pipeline: semantic version derivation, a git
// commit/tag/push step, changelog generation, and a webhook notifier.
package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/semrel-kernel/semrel/flow"
	"github.com/semrel-kernel/semrel/plugin"
	"github.com/semrel-kernel/semrel/resolver"
	"github.com/semrel-kernel/semrel/step"
)

func init() {
	resolver.RegisterBuiltin("version", func() plugin.Interface { return NewVersionPlugin() })
}

type bumpKind int

const (
	bumpNone bumpKind = iota
	bumpPatch
	bumpMinor
	bumpMajor
)

// VersionPlugin computes the last released version from git tags and the
// next version from Conventional-Commit-style messages since that tag.
type VersionPlugin struct {
	plugin.Base
	config map[string]flow.Value

	repo        *git.Repository
	lastTagName string
	lastVersion *semver.Version
	nextVersion *semver.Version
}

// NewVersionPlugin constructs a VersionPlugin with its default
// configuration.
func NewVersionPlugin() *VersionPlugin {
	return &VersionPlugin{
		config: map[string]flow.Value{
			"project_root": flow.NewBuilder("project_root").Protected().Value(".").Build(),
			"tag_prefix":   flow.Ready("tag_prefix", "v"),
		},
	}
}

func (p *VersionPlugin) Name() string { return "version" }

func (p *VersionPlugin) Methods() []step.Step {
	return []step.Step{step.GetLastRelease, step.DeriveNextVersion}
}

func (p *VersionPlugin) ProvisionCapabilities() []flow.ProvisionCapability {
	return []flow.ProvisionCapability{
		{Key: "last_version", Availability: flow.AvailableAfter(step.GetLastRelease)},
		{Key: "next_version", Availability: flow.AvailableAfter(step.DeriveNextVersion)},
	}
}

func (p *VersionPlugin) GetConfig() map[string]flow.Value { return p.config }

func (p *VersionPlugin) SetConfig(cfg map[string]flow.Value) error {
	p.config = cfg
	return nil
}

func (p *VersionPlugin) SetValue(key string, value json.RawMessage) error {
	return plugin.DefaultSetValue(p, key, value)
}

func (p *VersionPlugin) GetValue(key string) (json.RawMessage, error) {
	switch key {
	case "last_version":
		if p.lastVersion == nil {
			return json.Marshal("0.0.0")
		}
		return json.Marshal(p.lastVersion.String())
	case "next_version":
		if p.nextVersion == nil {
			return nil, flow.ErrDataNotAvailableYet
		}
		return json.Marshal(p.nextVersion.String())
	default:
		return nil, flow.ErrKeyNotSupported
	}
}

func (p *VersionPlugin) configString(key, fallback string) string {
	payload, ok := p.config[key].Payload()
	if !ok {
		return fallback
	}
	var s string
	if err := json.Unmarshal(payload, &s); err != nil || s == "" {
		return fallback
	}
	return s
}

func (p *VersionPlugin) projectRoot() string { return p.configString("project_root", ".") }
func (p *VersionPlugin) tagPrefix() string   { return p.configString("tag_prefix", "v") }

func (p *VersionPlugin) openRepo() error {
	if p.repo != nil {
		return nil
	}
	repo, err := git.PlainOpen(p.projectRoot())
	if err != nil {
		return fmt.Errorf("builtin: version: opening repository: %w", err)
	}
	p.repo = repo
	return nil
}

func (p *VersionPlugin) GetLastRelease(ctx context.Context) (plugin.Response, error) {
	if err := p.openRepo(); err != nil {
		return plugin.Response{}, err
	}

	tags, err := p.repo.Tags()
	if err != nil {
		return plugin.Response{}, fmt.Errorf("builtin: version: listing tags: %w", err)
	}
	prefix := p.tagPrefix()

	var best *semver.Version
	var bestName string
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		v, err := semver.NewVersion(strings.TrimPrefix(name, prefix))
		if err != nil {
			return nil
		}
		if best == nil || v.GreaterThan(best) {
			best, bestName = v, name
		}
		return nil
	})
	if err != nil {
		return plugin.Response{}, fmt.Errorf("builtin: version: scanning tags: %w", err)
	}

	p.lastVersion, p.lastTagName = best, bestName
	return plugin.Response{}, nil
}

func (p *VersionPlugin) DeriveNextVersion(ctx context.Context) (plugin.Response, error) {
	if err := p.openRepo(); err != nil {
		return plugin.Response{}, err
	}
	head, err := p.repo.Head()
	if err != nil {
		return plugin.Response{}, fmt.Errorf("builtin: version: resolving HEAD: %w", err)
	}

	var stopAt plumbing.Hash
	if p.lastTagName != "" {
		if ref, err := p.repo.Tag(p.lastTagName); err == nil {
			stopAt = ref.Hash()
			if tagObj, err := p.repo.TagObject(ref.Hash()); err == nil {
				stopAt = tagObj.Target
			}
		}
	}

	iter, err := p.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return plugin.Response{}, fmt.Errorf("builtin: version: walking commit log: %w", err)
	}

	bump := bumpNone
	err = iter.ForEach(func(c *object.Commit) error {
		if !stopAt.IsZero() && c.Hash == stopAt {
			return storer.ErrStop
		}
		if b := classifyCommit(c.Message); b > bump {
			bump = b
		}
		return nil
	})
	if err != nil {
		return plugin.Response{}, fmt.Errorf("builtin: version: classifying commits: %w", err)
	}

	p.nextVersion = bumpVersion(p.lastVersion, bump)
	return plugin.Response{}, nil
}

// classifyCommit derives a version bump from a commit message, following
// the same Conventional-Commit type lookup as the original changelog
// generator: a BREAKING CHANGE footer always wins, otherwise the leading
// "feat"/"fix" prefix of the first line decides.
func classifyCommit(message string) bumpKind {
	if strings.Contains(message, "BREAKING CHANGE") {
		return bumpMajor
	}
	first, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	switch {
	case strings.HasPrefix(first, "feat"):
		return bumpMinor
	case strings.HasPrefix(first, "fix"):
		return bumpPatch
	default:
		return bumpNone
	}
}

// bumpVersion applies bump to last, or starts at 0.1.0 if there is no
// prior release. Pre-1.0 releases treat a major bump as a minor one,
// matching semver's own guidance for initial development versions.
func bumpVersion(last *semver.Version, bump bumpKind) *semver.Version {
	if last == nil {
		v := semver.MustParse("0.1.0")
		return v
	}
	var next semver.Version
	switch {
	case bump == bumpMajor && last.Major() > 0:
		next = last.IncMajor()
	case bump == bumpMajor || bump == bumpMinor:
		next = last.IncMinor()
	case bump == bumpPatch:
		next = last.IncPatch()
	default:
		next = *last
	}
	return &next
}
