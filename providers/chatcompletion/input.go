package chatcompletion

import (
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"

	"github.com/inspirepan/chatcore"
)

// emptyToolOutput stands in for a tool result without any content, which
// some endpoints reject.
const emptyToolOutput = "Tool ran without output or errors"

// BuildMessages converts a provider request to chat completion params.
// Native tools are not part of the params; see Config.NativeTools.
func BuildMessages(req chatcore.ProviderRequest, reasoningHandler ReasoningHandler, targetModel string) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{}

	if req.SystemPrompt != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(req.SystemPrompt))
	}

	for _, msg := range req.History {
		switch m := msg.(type) {
		case chatcore.UserMessage:
			params.Messages = append(params.Messages, convertUserMessage(m))
		case *chatcore.UserMessage:
			params.Messages = append(params.Messages, convertUserMessage(*m))
		case chatcore.AssistantMessage:
			params.Messages = append(params.Messages, convertAssistantMessage(m, reasoningHandler, targetModel))
		case *chatcore.AssistantMessage:
			params.Messages = append(params.Messages, convertAssistantMessage(*m, reasoningHandler, targetModel))
		case chatcore.ToolResultMessage:
			params.Messages = append(params.Messages, convertToolResult(m))
		case *chatcore.ToolResultMessage:
			params.Messages = append(params.Messages, convertToolResult(*m))
		}
	}

	for _, tool := range req.Tools {
		params.Tools = append(params.Tools, convertToolSpec(tool))
	}
	if len(params.Tools) > 0 {
		choice := req.ToolChoice
		if choice == "" {
			choice = chatcore.ToolChoiceAuto
		}
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String(string(choice)),
		}
		if choice == chatcore.ToolChoiceAuto {
			params.ParallelToolCalls = openai.Bool(true)
		}
	}
	return params
}

func convertUserMessage(m chatcore.UserMessage) openai.ChatCompletionMessageParamUnion {
	var parts []openai.ChatCompletionContentPartUnionParam
	for _, part := range m.Parts {
		switch p := part.(type) {
		case chatcore.TextPart:
			parts = append(parts, openai.TextContentPart(p.Text))
		case *chatcore.TextPart:
			parts = append(parts, openai.TextContentPart(p.Text))
		case chatcore.ImagePart:
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: p.DataURL()}))
		case *chatcore.ImagePart:
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: p.DataURL()}))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, openai.TextContentPart(""))
	}
	return openai.UserMessage(parts)
}

func convertAssistantMessage(m chatcore.AssistantMessage, handler ReasoningHandler, targetModel string) openai.ChatCompletionMessageParamUnion {
	msg := openai.ChatCompletionAssistantMessageParam{}

	var (
		text      string
		thinking  []chatcore.ThinkingPart
		toolCalls []openai.ChatCompletionMessageToolCallUnionParam
	)
	for _, part := range m.Parts {
		switch p := part.(type) {
		case chatcore.TextPart:
			text += p.Text
		case *chatcore.TextPart:
			text += p.Text
		case chatcore.ThinkingPart:
			thinking = append(thinking, p)
		case *chatcore.ThinkingPart:
			thinking = append(thinking, *p)
		case chatcore.ToolCallPart:
			toolCalls = append(toolCalls, convertToolCallPart(p))
		case *chatcore.ToolCallPart:
			toolCalls = append(toolCalls, convertToolCallPart(*p))
		}
	}

	var degraded string
	if handler != nil && len(thinking) > 0 {
		key, value, d := handler.ConvertThinkingToExtra(thinking, targetModel)
		degraded = d
		if key != "" && value != nil {
			msg.SetExtraFields(map[string]any{key: value})
		}
	}
	if content := degraded + text; content != "" {
		msg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(content)}
	}
	if len(toolCalls) > 0 {
		msg.ToolCalls = toolCalls
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &msg}
}

func convertToolCallPart(p chatcore.ToolCallPart) openai.ChatCompletionMessageToolCallUnionParam {
	args := string(p.ArgsJSON)
	if args == "" {
		args = "{}"
	}
	return openai.ChatCompletionMessageToolCallUnionParam{
		OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
			ID: p.CallID,
			Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
				Name:      p.Name,
				Arguments: args,
			},
		},
	}
}

// convertToolResult prefers the structured output over the text parts.
func convertToolResult(m chatcore.ToolResultMessage) openai.ChatCompletionMessageParamUnion {
	content := string(m.Output)
	if content == "" {
		content = chatcore.TextOf(m.Parts)
	}
	if content == "" {
		content = emptyToolOutput
	}
	return openai.ToolMessage(content, m.CallID)
}

func convertToolSpec(spec chatcore.ToolSpec) openai.ChatCompletionToolUnionParam {
	return openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
		Name:        spec.Name,
		Description: openai.String(spec.Description),
		Parameters:  shared.FunctionParameters(spec.Parameters),
	})
}
