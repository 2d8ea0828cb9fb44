// Package anthropic implements chatcore.Provider on the Claude Messages
// streaming API.
package anthropic

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/inspirepan/chatcore"
	"github.com/inspirepan/chatcore/providers/base"
)

// DefaultMaxTokens is sent when no output limit is configured.
const DefaultMaxTokens = 8192

// ErrNativeToolsUnsupported is returned for requests carrying native tools.
var ErrNativeToolsUnsupported = errors.New("anthropic: native tools not supported")

// Config configures Anthropic Messages API provider.
type Config struct {
	base.Config

	ThinkingEnabled bool
	ThinkingBudget  int
}

// Option is a functional option for this provider.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithTemperature sets the temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = &t }
}

// WithMaxOutputTokens sets the max output tokens.
func WithMaxOutputTokens(n int) Option {
	return func(c *Config) { c.MaxOutputTokens = &n }
}

// WithDebug enables JSONL debug logging to the specified file path.
func WithDebug(path string) Option {
	return func(c *Config) { c.DebugPath = path }
}

// WithExtraHeader adds a custom header to requests.
func WithExtraHeader(key, value string) Option {
	return func(c *Config) {
		if c.ExtraHeaders == nil {
			c.ExtraHeaders = make(map[string]string)
		}
		c.ExtraHeaders[key] = value
	}
}

// WithThinking enables extended thinking with the given token budget.
func WithThinking(budget int) Option {
	return func(c *Config) {
		c.ThinkingEnabled = true
		c.ThinkingBudget = budget
	}
}

// New creates a Provider using Anthropic Messages API.
// It reads ANTHROPIC_API_KEY and ANTHROPIC_BASE_URL from environment if not explicitly set.
func New(model string, opts ...Option) chatcore.Provider {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	base.ApplyEnvDefaults(&cfg.Config, "ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL")

	var clientOpts []option.RequestOption
	if cfg.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	for k, v := range cfg.ExtraHeaders {
		clientOpts = append(clientOpts, option.WithHeader(k, v))
	}
	for k, v := range cfg.ExtraBody {
		clientOpts = append(clientOpts, option.WithJSONSet(k, v))
	}
	return &provider{model: model, cfg: cfg, client: anthropic.NewClient(clientOpts...)}
}

type provider struct {
	model  string
	cfg    Config
	client anthropic.Client
}

func (p *provider) Stream(ctx context.Context, req chatcore.ProviderRequest) (chatcore.ProviderStream, error) {
	if len(req.NativeTools) > 0 {
		return nil, ErrNativeToolsUnsupported
	}
	params := BuildParams(req)
	params.Model = anthropic.Model(p.model)
	params.MaxTokens = DefaultMaxTokens
	if p.cfg.MaxOutputTokens != nil {
		params.MaxTokens = int64(*p.cfg.MaxOutputTokens)
	}
	if p.cfg.Temperature != nil {
		params.Temperature = anthropic.Float(*p.cfg.Temperature)
	}
	if p.cfg.ThinkingEnabled && p.cfg.ThinkingBudget > 0 {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(p.cfg.ThinkingBudget))
		if params.MaxTokens <= int64(p.cfg.ThinkingBudget) {
			params.MaxTokens = int64(p.cfg.ThinkingBudget) + DefaultMaxTokens
		}
	}

	debug, err := base.NewDebugLogger(p.cfg.DebugPath)
	if err != nil {
		return nil, err
	}
	if info, ok := chatcore.StepInfoFrom(ctx); ok {
		debug = debug.WithScope(info.TurnID, info.Step)
	}
	if debug != nil {
		rec := base.NewDebugRecord("request", params)
		rec.Provider = "anthropic"
		rec.Model = p.model
		_ = debug.Log(rec)
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	return newStream(p.model, stream, debug), nil
}
