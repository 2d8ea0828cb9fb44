// Package providers selects a model provider by name.
package providers

import (
	"fmt"
	"strings"

	"github.com/inspirepan/chatcore"
	"github.com/inspirepan/chatcore/providers/anthropic"
	cc "github.com/inspirepan/chatcore/providers/chatcompletion"
	"github.com/inspirepan/chatcore/providers/google"
)

const (
	Google    = "google"
	OpenAI    = "openai"
	Anthropic = "anthropic"
)

// Options are the settings shared by every provider. Empty values fall back
// to each provider's environment defaults.
type Options struct {
	APIKey          string
	BaseURL         string
	DebugPath       string
	Temperature     *float64
	MaxOutputTokens *int
	// ThinkingBudget configures Gemini 2.5 and Claude extended thinking.
	ThinkingBudget int
}

// Names lists the supported provider names.
func Names() []string { return []string{Google, OpenAI, Anthropic} }

// New returns the named provider for model.
func New(name, model string, o Options) (chatcore.Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("providers: model is required")
	}
	switch strings.ToLower(name) {
	case Google, "gemini", "":
		opts := []google.Option{google.WithDebug(o.DebugPath)}
		if o.APIKey != "" {
			opts = append(opts, google.WithAPIKey(o.APIKey))
		}
		if o.BaseURL != "" {
			opts = append(opts, google.WithBaseURL(o.BaseURL))
		}
		if o.Temperature != nil {
			opts = append(opts, google.WithTemperature(*o.Temperature))
		}
		if o.MaxOutputTokens != nil {
			opts = append(opts, google.WithMaxOutputTokens(*o.MaxOutputTokens))
		}
		if o.ThinkingBudget > 0 {
			opts = append(opts, google.WithThinkingBudget(o.ThinkingBudget))
		}
		return google.New(model, opts...), nil
	case OpenAI:
		opts := []cc.Option{cc.WithDebug(o.DebugPath), cc.WithName(OpenAI)}
		if o.APIKey != "" {
			opts = append(opts, cc.WithAPIKey(o.APIKey))
		}
		if o.BaseURL != "" {
			opts = append(opts, cc.WithBaseURL(o.BaseURL))
		}
		if o.Temperature != nil {
			opts = append(opts, cc.WithTemperature(*o.Temperature))
		}
		if o.MaxOutputTokens != nil {
			opts = append(opts, cc.WithMaxOutputTokens(*o.MaxOutputTokens))
		}
		return cc.New(model, opts...), nil
	case Anthropic, "claude":
		opts := []anthropic.Option{anthropic.WithDebug(o.DebugPath)}
		if o.APIKey != "" {
			opts = append(opts, anthropic.WithAPIKey(o.APIKey))
		}
		if o.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(o.BaseURL))
		}
		if o.Temperature != nil {
			opts = append(opts, anthropic.WithTemperature(*o.Temperature))
		}
		if o.MaxOutputTokens != nil {
			opts = append(opts, anthropic.WithMaxOutputTokens(*o.MaxOutputTokens))
		}
		if o.ThinkingBudget > 0 {
			opts = append(opts, anthropic.WithThinking(o.ThinkingBudget))
		}
		return anthropic.New(model, opts...), nil
	}
	return nil, fmt.Errorf("providers: unknown provider %q (want one of %s)", name, strings.Join(Names(), ", "))
}
