// Package google provides Gemini through its OpenAI-compatible endpoint,
// with native tools and thinking configured per model family.
package google

import (
	"strings"

	"github.com/openai/openai-go/v3/option"

	"github.com/inspirepan/chatcore"
	"github.com/inspirepan/chatcore/providers/base"
	cc "github.com/inspirepan/chatcore/providers/chatcompletion"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// DefaultThinkingBudget is the token budget for Gemini 2.5 models.
const DefaultThinkingBudget = 4096

// Config configures the Gemini provider.
type Config struct {
	base.Config

	// ThinkingBudget overrides the 2.5 family budget. Zero keeps the default.
	ThinkingBudget int
	// DisableThinking sends no thinking configuration.
	DisableThinking bool
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

// WithThinkingBudget sets the thinking budget of 2.5 models.
func WithThinkingBudget(budget int) Option {
	return func(c *Config) { c.ThinkingBudget = budget }
}

// WithoutThinking disables thinking configuration.
func WithoutThinking() Option {
	return func(c *Config) { c.DisableThinking = true }
}

// New creates a Gemini provider.
// It reads GEMINI_API_KEY, then GOOGLE_GENERATIVE_AI_API_KEY and
// GOOGLE_API_KEY, and GEMINI_BASE_URL from environment if not explicitly set.
func New(model string, opts ...Option) chatcore.Provider {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = base.FirstEnv("GEMINI_API_KEY", "GOOGLE_GENERATIVE_AI_API_KEY", "GOOGLE_API_KEY")
	}
	base.ApplyEnvDefaults(&cfg.Config, "", "GEMINI_BASE_URL")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	ccCfg := cc.Config{
		Config:      cfg.Config,
		Name:        "google",
		NativeTools: EncodeNativeTools,
	}
	if !cfg.DisableThinking {
		if thinking := ThinkingConfig(model, cfg.ThinkingBudget); thinking != nil {
			ccCfg.RequestOptions = append(ccCfg.RequestOptions,
				option.WithJSONSet("extra_body", map[string]any{"google": map[string]any{"thinking_config": thinking}}))
		}
	}
	return cc.NewWithConfig(model, ccCfg)
}

// ThinkingConfig returns the thinking configuration for a model family, or
// nil when the model has none: 2.5 models get a token budget, gemini-3
// models a high thinking level.
func ThinkingConfig(model string, budget int) map[string]any {
	if budget <= 0 {
		budget = DefaultThinkingBudget
	}
	switch {
	case strings.Contains(model, "gemini-3"):
		return map[string]any{"thinking_level": "high", "include_thoughts": true}
	case strings.Contains(model, "2.5"):
		return map[string]any{"thinking_budget": budget, "include_thoughts": true}
	}
	return nil
}

// EncodeNativeTools sends provider-executed tools in Gemini's own tool
// shape, replacing any function tool list.
func EncodeNativeTools(tools []chatcore.NativeTool) []option.RequestOption {
	if len(tools) == 0 {
		return nil
	}
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		out = append(out, map[string]any{string(t): map[string]any{}})
	}
	return []option.RequestOption{option.WithJSONSet("tools", out)}
}
