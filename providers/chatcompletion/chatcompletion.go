// Package chatcompletion implements chatcore.Provider on the OpenAI Chat
// Completions streaming API and on compatible endpoints.
package chatcompletion

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/inspirepan/chatcore"
	"github.com/inspirepan/chatcore/providers/base"
)

// ErrNativeToolsUnsupported is returned for requests carrying native tools
// when the provider has no NativeTools encoder.
var ErrNativeToolsUnsupported = errors.New("chatcompletion: native tools not supported by this endpoint")

// NativeToolEncoder turns native tools into request options.
type NativeToolEncoder func(tools []chatcore.NativeTool) []option.RequestOption

// Config configures an OpenAI Chat Completions provider.
type Config struct {
	base.Config

	// Name labels debug records. Defaults to "chatcompletion".
	Name string
	// Reasoning builds the per-request reasoning handler.
	Reasoning func(model string) ReasoningHandler
	// NativeTools encodes provider-executed tools.
	NativeTools NativeToolEncoder
	// RequestOptions are applied to every request after the client options.
	RequestOptions []option.RequestOption
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

// WithExtraBody adds a custom field to the request body.
func WithExtraBody(key string, value any) Option {
	return func(c *Config) {
		if c.ExtraBody == nil {
			c.ExtraBody = make(map[string]any)
		}
		c.ExtraBody[key] = value
	}
}

// WithName sets the provider label used in debug records.
func WithName(name string) Option {
	return func(c *Config) { c.Name = name }
}

// WithReasoningHandler sets the reasoning handler factory.
func WithReasoningHandler(f func(model string) ReasoningHandler) Option {
	return func(c *Config) { c.Reasoning = f }
}

// WithNativeTools enables native tools through enc.
func WithNativeTools(enc NativeToolEncoder) Option {
	return func(c *Config) { c.NativeTools = enc }
}

// WithRequestOption appends a raw request option.
func WithRequestOption(opt option.RequestOption) Option {
	return func(c *Config) { c.RequestOptions = append(c.RequestOptions, opt) }
}

// New creates a Provider using OpenAI Chat Completions API.
// It reads OPENAI_API_KEY and OPENAI_BASE_URL from environment if not explicitly set.
func New(model string, opts ...Option) chatcore.Provider {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	base.ApplyEnvDefaults(&cfg.Config, "OPENAI_API_KEY", "OPENAI_BASE_URL")
	return NewWithConfig(model, cfg)
}

// NewWithConfig creates a Provider from an already resolved Config.
func NewWithConfig(model string, cfg Config) chatcore.Provider {
	if cfg.Name == "" {
		cfg.Name = "chatcompletion"
	}
	if cfg.Reasoning == nil {
		cfg.Reasoning = func(m string) ReasoningHandler { return NewDefaultReasoningHandler(m) }
	}

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
	clientOpts = append(clientOpts, cfg.RequestOptions...)
	client := openai.NewClient(clientOpts...)
	return &provider{model: model, cfg: cfg, client: client}
}

type provider struct {
	model  string
	cfg    Config
	client openai.Client
}

func (p *provider) Stream(ctx context.Context, req chatcore.ProviderRequest) (chatcore.ProviderStream, error) {
	var reqOpts []option.RequestOption
	if len(req.NativeTools) > 0 {
		if p.cfg.NativeTools == nil {
			return nil, ErrNativeToolsUnsupported
		}
		reqOpts = append(reqOpts, p.cfg.NativeTools(req.NativeTools)...)
	}

	handler := p.cfg.Reasoning(p.model)
	params := BuildMessages(req, handler, p.model)
	params.Model = p.model
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}

	if p.cfg.Temperature != nil {
		params.Temperature = openai.Float(*p.cfg.Temperature)
	}
	if p.cfg.MaxOutputTokens != nil {
		params.MaxTokens = openai.Int(int64(*p.cfg.MaxOutputTokens))
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
		rec.Provider = p.cfg.Name
		rec.Model = p.model
		_ = debug.Log(rec)
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params, reqOpts...)
	return NewStream(p.cfg.Name, p.model, stream, handler, debug), nil
}
