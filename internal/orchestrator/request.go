package orchestrator

import (
	"github.com/inspirepan/chatcore/mention"
	"github.com/inspirepan/chatcore/uimessage"
)

// ChatRequest is the body of a chat request. Unset toggles take the
// defaults of mention.DefaultToggles.
type ChatRequest struct {
	Messages            []uimessage.Message `json:"messages"`
	Model               string              `json:"model,omitempty"`
	EnableSearch        *bool               `json:"enableSearch,omitempty"`
	EnableURLContext    *bool               `json:"enableUrlContext,omitempty"`
	EnableCodeExecution *bool               `json:"enableCodeExecution,omitempty"`
	// MentionedTools are tool ids picked from the suggestion menu.
	MentionedTools []string `json:"mentionedTools,omitempty"`
	UserID         string   `json:"userId,omitempty"`
}

// Toggles resolves the provider tool switches.
func (r ChatRequest) Toggles() mention.Toggles {
	t := mention.DefaultToggles()
	if r.EnableSearch != nil {
		t.Search = *r.EnableSearch
	}
	if r.EnableURLContext != nil {
		t.URLContext = *r.EnableURLContext
	}
	if r.EnableCodeExecution != nil {
		t.CodeExecution = *r.EnableCodeExecution
	}
	return t
}

// LastUserText returns the text of the most recent user message.
func (r ChatRequest) LastUserText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == uimessage.RoleUser {
			return r.Messages[i].Text()
		}
	}
	return ""
}
