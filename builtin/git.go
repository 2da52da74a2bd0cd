package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/semrel-kernel/semrel/flow"
	"github.com/semrel-kernel/semrel/plugin"
	"github.com/semrel-kernel/semrel/resolver"
	"github.com/semrel-kernel/semrel/step"
)

func init() {
	resolver.RegisterBuiltin("git", func() plugin.Interface { return NewGitPlugin() })
}

// GitPlugin stages the release manifest, commits it, tags the release, and
// pushes both to the configured remote.
type GitPlugin struct {
	plugin.Base
	config map[string]flow.Value

	repo     *git.Repository
	tagName  string
	prepared bool
}

// NewGitPlugin constructs a GitPlugin with its default configuration.
func NewGitPlugin() *GitPlugin {
	return &GitPlugin{
		config: map[string]flow.Value{
			"project_root": flow.NewBuilder("project_root").Protected().Value(".").Build(),
			"branch":       flow.Ready("branch", "main"),
			"remote":       flow.Ready("remote", "origin"),
			"user_name":    flow.Ready("user_name", "semrel"),
			"user_email":   flow.Ready("user_email", "semrel@localhost"),
			"next_version": flow.NewBuilder("next_version").Protected().RequiredAt(step.Commit).Build(),
			"files_to_commit": flow.NewBuilder("files_to_commit").Protected().
				RequiredAt(step.Commit).Build(),
			"changelog": flow.NewBuilder("changelog").Protected().RequiredAt(step.Commit).Build(),
		},
	}
}

func (p *GitPlugin) Name() string { return "git" }

func (p *GitPlugin) Methods() []step.Step {
	return []step.Step{step.PreFlight, step.Prepare, step.Commit}
}

func (p *GitPlugin) ProvisionCapabilities() []flow.ProvisionCapability {
	return []flow.ProvisionCapability{
		{Key: "files_to_commit", Availability: flow.AvailableAfter(step.Prepare)},
	}
}

func (p *GitPlugin) GetConfig() map[string]flow.Value { return p.config }

func (p *GitPlugin) SetConfig(cfg map[string]flow.Value) error {
	p.config = cfg
	return nil
}

func (p *GitPlugin) SetValue(key string, value json.RawMessage) error {
	return plugin.DefaultSetValue(p, key, value)
}

func (p *GitPlugin) GetValue(key string) (json.RawMessage, error) {
	switch key {
	case "files_to_commit":
		// GitPlugin contributes no files of its own: what it stages at
		// Commit comes from the other producers of files_to_commit. The
		// planner never serves GitPlugin's own files_to_commit input from
		// this capability, since a plugin never Gets a key from itself.
		return json.Marshal([]string{})
	default:
		return nil, flow.ErrKeyNotSupported
	}
}

func (p *GitPlugin) configString(key, fallback string) string {
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

func (p *GitPlugin) projectRoot() string { return p.configString("project_root", ".") }
func (p *GitPlugin) branch() string      { return p.configString("branch", "main") }
func (p *GitPlugin) remote() string      { return p.configString("remote", "origin") }

func (p *GitPlugin) PreFlight(ctx context.Context) (plugin.Response, error) {
	repo, err := git.PlainOpen(p.projectRoot())
	if err != nil {
		return plugin.Response{}, fmt.Errorf("builtin: git: opening repository: %w", err)
	}
	p.repo = repo

	remote, err := repo.Remote(p.remote())
	if err != nil {
		return plugin.Response{Warnings: []string{
			fmt.Sprintf("git remote %q is not configured; publish will fail unless one is added before Commit", p.remote()),
		}}, nil
	}

	var warnings []string
	if len(remote.Config().URLs) > 0 && !strings.HasPrefix(remote.Config().URLs[0], "https://") {
		warnings = append(warnings,
			"git remote is not HTTPS; pushing will rely on local SSH credentials rather than GH_TOKEN")
	}
	return plugin.Response{Warnings: warnings}, nil
}

func (p *GitPlugin) Prepare(ctx context.Context) (plugin.Response, error) {
	p.prepared = true
	return plugin.Response{}, nil
}

func (p *GitPlugin) Commit(ctx context.Context) (plugin.Response, error) {
	if p.repo == nil {
		if err := func() error {
			repo, err := git.PlainOpen(p.projectRoot())
			p.repo = repo
			return err
		}(); err != nil {
			return plugin.Response{}, fmt.Errorf("builtin: git: opening repository: %w", err)
		}
	}

	var nextVersion, changelog string
	var files []string
	if err := unmarshalValue(p.config["next_version"], &nextVersion); err != nil {
		return plugin.Response{}, err
	}
	if err := unmarshalValue(p.config["changelog"], &changelog); err != nil {
		return plugin.Response{}, err
	}
	if err := unmarshalValue(p.config["files_to_commit"], &files); err != nil {
		return plugin.Response{}, err
	}

	worktree, err := p.repo.Worktree()
	if err != nil {
		return plugin.Response{}, fmt.Errorf("builtin: git: opening worktree: %w", err)
	}
	for _, f := range files {
		if _, err := worktree.Add(f); err != nil {
			return plugin.Response{}, fmt.Errorf("builtin: git: staging %q: %w", f, err)
		}
	}

	sig := object.Signature{
		Name:  p.configString("user_name", "semrel"),
		Email: p.configString("user_email", "semrel@localhost"),
		When:  commitTime(),
	}
	message := fmt.Sprintf("chore(release): %s [skip ci]", nextVersion)
	hash, err := worktree.Commit(message, &git.CommitOptions{Author: &sig, Committer: &sig})
	if err != nil {
		return plugin.Response{}, fmt.Errorf("builtin: git: committing: %w", err)
	}

	tagName := fmt.Sprintf("v%s", nextVersion)
	tagMessage := changelog
	if tagMessage == "" {
		tagMessage = message
	}
	if _, err := p.repo.CreateTag(tagName, hash, &git.CreateTagOptions{Tagger: &sig, Message: tagMessage}); err != nil {
		return plugin.Response{}, fmt.Errorf("builtin: git: tagging %s: %w", tagName, err)
	}
	p.tagName = tagName

	if err := p.push(); err != nil {
		return plugin.Response{}, err
	}

	return plugin.Response{}, nil
}

func (p *GitPlugin) push() error {
	remoteName := p.remote()
	remote, err := p.repo.Remote(remoteName)
	if err != nil {
		return fmt.Errorf("builtin: git: no remote %q configured, cannot push", remoteName)
	}

	opts := &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs: []config.RefSpec{
			config.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", p.branch(), p.branch())),
			config.RefSpec(fmt.Sprintf("refs/tags/%s:refs/tags/%s", p.tagName, p.tagName)),
		},
	}

	if len(remote.Config().URLs) > 0 && strings.HasPrefix(remote.Config().URLs[0], "https://") {
		if token, ok := os.LookupEnv("GH_TOKEN"); ok {
			opts.Auth = &http.BasicAuth{Username: "semrel", Password: token}
		}
	}

	if err := p.repo.Push(opts); err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("builtin: git: pushing: %w", err)
	}
	return nil
}

func unmarshalValue(v flow.Value, dst any) error {
	payload, ok := v.Payload()
	if !ok {
		return flow.ErrDataNotAvailableYet
	}
	return json.Unmarshal(payload, dst)
}

func commitTime() time.Time {
	return time.Now()
}
