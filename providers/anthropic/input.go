package anthropic

import (
	"github.com/anthropics/anthropic-sdk-go"

	"github.com/inspirepan/chatcore"
)

const emptyToolOutput = "Tool ran without output or errors"

// BuildParams converts a provider request to Messages params, without model
// and token limits. Consecutive tool results share one user turn.
func BuildParams(req chatcore.ProviderRequest) anthropic.MessageNewParams {
	var params anthropic.MessageNewParams
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	var pendingResults []anthropic.ContentBlockParamUnion
	flush := func() {
		if len(pendingResults) > 0 {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}
	for _, msg := range req.History {
		switch m := msg.(type) {
		case chatcore.UserMessage:
			flush()
			params.Messages = append(params.Messages, convertUser(m))
		case *chatcore.UserMessage:
			flush()
			params.Messages = append(params.Messages, convertUser(*m))
		case chatcore.AssistantMessage:
			flush()
			params.Messages = append(params.Messages, convertAssistant(m))
		case *chatcore.AssistantMessage:
			flush()
			params.Messages = append(params.Messages, convertAssistant(*m))
		case chatcore.ToolResultMessage:
			pendingResults = append(pendingResults, convertToolResult(m))
		case *chatcore.ToolResultMessage:
			pendingResults = append(pendingResults, convertToolResult(*m))
		}
	}
	flush()

	for _, spec := range req.Tools {
		params.Tools = append(params.Tools, convertToolSpec(spec))
	}
	if len(params.Tools) > 0 {
		if req.ToolChoice == chatcore.ToolChoiceNone {
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
		} else {
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
		}
	}
	return params
}

func convertUser(m chatcore.UserMessage) anthropic.MessageParam {
	var blocks []anthropic.ContentBlockParamUnion
	for _, part := range m.Parts {
		switch p := part.(type) {
		case chatcore.TextPart:
			if p.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(p.Text))
			}
		case chatcore.ImagePart:
			blocks = append(blocks, anthropic.NewImageBlockBase64(p.MimeType, p.DataB64))
		}
	}
	if len(blocks) == 0 {
		blocks = append(blocks, anthropic.NewTextBlock(" "))
	}
	return anthropic.NewUserMessage(blocks...)
}

func convertAssistant(m chatcore.AssistantMessage) anthropic.MessageParam {
	var blocks []anthropic.ContentBlockParamUnion
	for _, part := range m.Parts {
		switch p := part.(type) {
		case chatcore.ThinkingPart:
			// Unsigned thinking cannot be replayed.
			if p.Signature != "" {
				blocks = append(blocks, anthropic.NewThinkingBlock(p.Signature, p.Thinking))
			}
		case chatcore.TextPart:
			if p.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(p.Text))
			}
		case chatcore.ToolCallPart:
			blocks = append(blocks, anthropic.NewToolUseBlock(p.CallID, rawInput(p.ArgsJSON), p.Name))
		}
	}
	if len(blocks) == 0 {
		blocks = append(blocks, anthropic.NewTextBlock(" "))
	}
	return anthropic.NewAssistantMessage(blocks...)
}

type rawJSON []byte

func (r rawJSON) MarshalJSON() ([]byte, error) { return r, nil }

func rawInput(args []byte) rawJSON {
	if len(args) == 0 {
		return rawJSON("{}")
	}
	return rawJSON(args)
}

func convertToolResult(m chatcore.ToolResultMessage) anthropic.ContentBlockParamUnion {
	content := string(m.Output)
	if content == "" {
		content = chatcore.TextOf(m.Parts)
	}
	if content == "" {
		content = emptyToolOutput
	}
	return anthropic.NewToolResultBlock(m.CallID, content, m.IsError)
}

func convertToolSpec(spec chatcore.ToolSpec) anthropic.ToolUnionParam {
	schema := anthropic.ToolInputSchemaParam{Properties: spec.Parameters["properties"]}
	switch req := spec.Parameters["required"].(type) {
	case []string:
		schema.Required = req
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	tool := anthropic.ToolParam{Name: spec.Name, InputSchema: schema}
	if spec.Description != "" {
		tool.Description = anthropic.String(spec.Description)
	}
	return anthropic.ToolUnionParam{OfTool: &tool}
}
