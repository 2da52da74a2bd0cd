package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/semrel-kernel/semrel/flow"
	"github.com/semrel-kernel/semrel/plugin"
	"github.com/semrel-kernel/semrel/resolver"
	"github.com/semrel-kernel/semrel/step"
)

func init() {
	resolver.RegisterBuiltin("notify", func() plugin.Interface { return NewNotifyPlugin() })
}

// NotifyPlugin posts a single JSON webhook once the release has been
// published. A missing webhook_url is not an error: notification is opt-in.
type NotifyPlugin struct {
	plugin.Base
	config map[string]flow.Value
	client *http.Client
}

// NewNotifyPlugin constructs a NotifyPlugin with its default configuration.
func NewNotifyPlugin() *NotifyPlugin {
	return &NotifyPlugin{
		config: map[string]flow.Value{
			"webhook_url": flow.Ready("webhook_url", ""),
			"next_version": flow.NewBuilder("next_version").Protected().
				RequiredAt(step.Notify).Build(),
			"changelog": flow.NewBuilder("changelog").Protected().
				RequiredAt(step.Notify).Build(),
		},
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *NotifyPlugin) Name() string { return "notify" }

func (p *NotifyPlugin) Methods() []step.Step { return []step.Step{step.Notify} }

func (p *NotifyPlugin) GetConfig() map[string]flow.Value { return p.config }

func (p *NotifyPlugin) SetConfig(cfg map[string]flow.Value) error {
	p.config = cfg
	return nil
}

func (p *NotifyPlugin) SetValue(key string, value json.RawMessage) error {
	return plugin.DefaultSetValue(p, key, value)
}

func (p *NotifyPlugin) GetValue(key string) (json.RawMessage, error) {
	return nil, flow.ErrKeyNotSupported
}

type notifyPayload struct {
	Version   string `json:"version"`
	Changelog string `json:"changelog"`
}

func (p *NotifyPlugin) Notify(ctx context.Context) (plugin.Response, error) {
	var url string
	if err := unmarshalValue(p.config["webhook_url"], &url); err != nil {
		return plugin.Response{}, err
	}
	if url == "" {
		return plugin.Response{Warnings: []string{"notify: no webhook_url configured, skipping"}}, nil
	}

	var version, changelog string
	if err := unmarshalValue(p.config["next_version"], &version); err != nil {
		return plugin.Response{}, err
	}
	if err := unmarshalValue(p.config["changelog"], &changelog); err != nil {
		return plugin.Response{}, err
	}

	body, err := json.Marshal(notifyPayload{Version: version, Changelog: changelog})
	if err != nil {
		return plugin.Response{}, fmt.Errorf("builtin: notify: encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return plugin.Response{}, fmt.Errorf("builtin: notify: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return plugin.Response{}, fmt.Errorf("builtin: notify: posting webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return plugin.Response{}, fmt.Errorf("builtin: notify: webhook returned status %d", resp.StatusCode)
	}
	return plugin.Response{}, nil
}
