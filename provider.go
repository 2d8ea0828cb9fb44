package chatcore

import "context"

// ProviderRequest is the provider-agnostic generation input.
//
// Tools and NativeTools are mutually exclusive: a request carries either
// locally executed function tools or provider-executed native tools.
type ProviderRequest struct {
	SystemPrompt string
	History      []Message
	Tools        []ToolSpec
	NativeTools  []NativeTool
	ToolChoice   ToolChoice
}

// HasTools reports whether any tool is attached to the request.
func (r ProviderRequest) HasTools() bool {
	return len(r.Tools) > 0 || len(r.NativeTools) > 0
}

// ProviderUpdate is one item of a provider stream.
type ProviderUpdate interface {
	providerUpdate()
}

// ProviderDeltaUpdate carries a streaming-only delta.
type ProviderDeltaUpdate struct {
	Delta MessageDelta
}

func (ProviderDeltaUpdate) providerUpdate() {}

// ProviderMessageUpdate carries the completed assistant message.
type ProviderMessageUpdate struct {
	Message AssistantMessage
}

func (ProviderMessageUpdate) providerUpdate() {}

// ProviderStream yields updates until io.EOF. Exactly one
// ProviderMessageUpdate is expected before the stream ends.
type ProviderStream interface {
	Next(ctx context.Context) (ProviderUpdate, error)
	Close() error
}

// Provider is the unified interface implemented by model providers.
type Provider interface {
	Stream(ctx context.Context, req ProviderRequest) (ProviderStream, error)
}
