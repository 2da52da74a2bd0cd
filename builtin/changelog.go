package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

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
	resolver.RegisterBuiltin("changelog", func() plugin.Interface { return NewChangelogPlugin() })
}

// ChangelogPlugin renders release notes by grouping commit subjects since
// the last tag under their Conventional-Commit type.
type ChangelogPlugin struct {
	plugin.Base
	config   map[string]flow.Value
	rendered string
}

// NewChangelogPlugin constructs a ChangelogPlugin with its default
// configuration: it consumes last_version and next_version from whichever
// plugin produces them.
func NewChangelogPlugin() *ChangelogPlugin {
	return &ChangelogPlugin{
		config: map[string]flow.Value{
			"project_root": flow.NewBuilder("project_root").Protected().Value(".").Build(),
			"tag_prefix":   flow.Ready("tag_prefix", "v"),
			"last_version": flow.NewBuilder("last_version").Protected().
				RequiredAt(step.GenerateNotes).Build(),
			"next_version": flow.NewBuilder("next_version").Protected().
				RequiredAt(step.GenerateNotes).Build(),
		},
	}
}

func (p *ChangelogPlugin) Name() string { return "changelog" }

func (p *ChangelogPlugin) Methods() []step.Step {
	return []step.Step{step.GenerateNotes}
}

func (p *ChangelogPlugin) ProvisionCapabilities() []flow.ProvisionCapability {
	return []flow.ProvisionCapability{
		{Key: "changelog", Availability: flow.AvailableAfter(step.GenerateNotes)},
	}
}

func (p *ChangelogPlugin) GetConfig() map[string]flow.Value { return p.config }

func (p *ChangelogPlugin) SetConfig(cfg map[string]flow.Value) error {
	p.config = cfg
	return nil
}

func (p *ChangelogPlugin) SetValue(key string, value json.RawMessage) error {
	return plugin.DefaultSetValue(p, key, value)
}

func (p *ChangelogPlugin) GetValue(key string) (json.RawMessage, error) {
	if key != "changelog" {
		return nil, flow.ErrKeyNotSupported
	}
	if p.rendered == "" {
		return nil, flow.ErrDataNotAvailableYet
	}
	return json.Marshal(p.rendered)
}

func (p *ChangelogPlugin) configString(key, fallback string) string {
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

var changelogTemplate = template.Must(template.New("changelog").Parse(
	`## {{.Version}}
{{- if .Features}}

### Features
{{range .Features}}- {{.}}
{{end -}}
{{- end}}
{{- if .Fixes}}

### Bug Fixes
{{range .Fixes}}- {{.}}
{{end -}}
{{- end}}
{{- if .Other}}

### Other Changes
{{range .Other}}- {{.}}
{{end -}}
{{- end}}
`))

type changelogData struct {
	Version  string
	Features []string
	Fixes    []string
	Other    []string
}

func (p *ChangelogPlugin) GenerateNotes(ctx context.Context) (plugin.Response, error) {
	var lastVersion, nextVersion string
	if err := unmarshalValue(p.config["last_version"], &lastVersion); err != nil {
		return plugin.Response{}, err
	}
	if err := unmarshalValue(p.config["next_version"], &nextVersion); err != nil {
		return plugin.Response{}, err
	}

	repo, err := git.PlainOpen(p.configString("project_root", "."))
	if err != nil {
		return plugin.Response{}, fmt.Errorf("builtin: changelog: opening repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return plugin.Response{}, fmt.Errorf("builtin: changelog: resolving HEAD: %w", err)
	}

	var stopAt plumbing.Hash
	tagName := p.configString("tag_prefix", "v") + lastVersion
	if ref, err := repo.Tag(tagName); err == nil {
		stopAt = ref.Hash()
		if tagObj, err := repo.TagObject(ref.Hash()); err == nil {
			stopAt = tagObj.Target
		}
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return plugin.Response{}, fmt.Errorf("builtin: changelog: walking commit log: %w", err)
	}

	data := changelogData{Version: nextVersion}
	err = iter.ForEach(func(c *object.Commit) error {
		if !stopAt.IsZero() && c.Hash == stopAt {
			return storer.ErrStop
		}
		subject, _, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")
		switch {
		case strings.HasPrefix(subject, "feat"):
			data.Features = append(data.Features, subject)
		case strings.HasPrefix(subject, "fix"):
			data.Fixes = append(data.Fixes, subject)
		default:
			data.Other = append(data.Other, subject)
		}
		return nil
	})
	if err != nil {
		return plugin.Response{}, fmt.Errorf("builtin: changelog: grouping commits: %w", err)
	}

	var b strings.Builder
	if err := changelogTemplate.Execute(&b, data); err != nil {
		return plugin.Response{}, fmt.Errorf("builtin: changelog: rendering: %w", err)
	}
	p.rendered = b.String()

	return plugin.Response{}, nil
}
