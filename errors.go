package chatcore

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrNoProvider      = errors.New("chatcore: provider is required")
	ErrToolNotFound    = errors.New("chatcore: tool not found")
	ErrToolTimeout     = errors.New("chatcore: tool execution timed out")
	ErrNoAssistantMsg  = errors.New("chatcore: provider stream finished without assistant message")
	ErrUnknownUpdate   = errors.New("chatcore: unknown provider update")
	ErrMixedToolModes  = errors.New("chatcore: function tools and native tools are mutually exclusive")
	ErrInvalidMaxSteps = errors.New("chatcore: max steps must be positive")
	ErrUnknownRole     = errors.New("chatcore: unknown message role")
)

// ProviderErrorKind classifies provider failures for user-facing reporting.
type ProviderErrorKind string

const (
	ProviderErrRateLimit     ProviderErrorKind = "rate_limit"
	ProviderErrContextLength ProviderErrorKind = "context_length"
	ProviderErrAPIKey        ProviderErrorKind = "api_key"
	ProviderErrOther         ProviderErrorKind = "other"
)

const (
	msgRateLimit     = "Rate limit exceeded. Please wait a moment and try again."
	msgContextLength = "The conversation is too long for this model. Start a new chat or remove some messages."
	msgAPIKey        = "Invalid or missing API key. Check the provider configuration."
)

// ProviderError wraps a failed provider request.
type ProviderError struct {
	Kind ProviderErrorKind
	Err  error
}

func (e *ProviderError) Error() string { return "chatcore: provider request failed: " + e.Err.Error() }

func (e *ProviderError) Unwrap() error { return e.Err }

// Friendly returns the message shown to end users.
func (e *ProviderError) Friendly() string {
	switch e.Kind {
	case ProviderErrRateLimit:
		return msgRateLimit
	case ProviderErrContextLength:
		return msgContextLength
	case ProviderErrAPIKey:
		return msgAPIKey
	default:
		return e.Err.Error()
	}
}

// ClassifyProviderError wraps err in a ProviderError. Errors that already
// carry a classification are returned unchanged.
func ClassifyProviderError(err error) *ProviderError {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	msg := strings.ToLower(err.Error())
	kind := ProviderErrOther
	switch {
	case containsAny(msg, "rate limit", "rate_limit", "status 429", "error 429", "quota", "resource_exhausted", "too many requests"):
		kind = ProviderErrRateLimit
	case containsAny(msg, "context length", "context_length", "maximum context", "too many tokens", "token limit", "input is too long", "prompt is too long"):
		kind = ProviderErrContextLength
	case containsAny(msg, "api key", "api_key", "apikey", "status 401", "error 401", "unauthorized", "unauthenticated", "permission_denied"):
		kind = ProviderErrAPIKey
	}
	return &ProviderError{Kind: kind, Err: err}
}

// ClassifyStatus classifies a failed provider request from its HTTP
// status code, falling back to the error text for ambiguous codes.
func ClassifyStatus(status int, err error) *ProviderError {
	if err == nil {
		return nil
	}
	switch status {
	case http.StatusTooManyRequests:
		return &ProviderError{Kind: ProviderErrRateLimit, Err: err}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &ProviderError{Kind: ProviderErrAPIKey, Err: err}
	case http.StatusRequestEntityTooLarge:
		return &ProviderError{Kind: ProviderErrContextLength, Err: err}
	}
	return ClassifyProviderError(err)
}

// FriendlyError maps any turn error to the text shown to end users.
// Unclassified errors pass through verbatim.
func FriendlyError(err error) string {
	if err == nil {
		return ""
	}
	return ClassifyProviderError(err).Friendly()
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
