package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/inspirepan/chatcore"
	"github.com/inspirepan/chatcore/invocation"
	"github.com/inspirepan/chatcore/mention"
	"github.com/inspirepan/chatcore/uimessage"
)

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")). // cyan
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")) // magenta

	thinkingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")). // bright black (gray)
			Italic(true)

	toolCallStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("3")). // yellow
			Bold(true)

	toolOutputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("4")) // blue

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")). // red
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")). // green
			Bold(true)
)

const maxOutputPreview = 240

// renderer prints a turn as it streams.
type renderer struct {
	w io.Writer
}

func (r renderer) delta(delta chatcore.MessageDelta) {
	switch d := delta.(type) {
	case chatcore.TextDelta:
		fmt.Fprint(r.w, assistantStyle.Render(d.Delta))
	case chatcore.ToolCallDelta:
		if d.Name != "" {
			fmt.Fprintf(r.w, "\n%s %s\n", toolCallStyle.Render("Tool:"), invocation.ToolTitle(d.Name))
		}
	}
}

// summary prints the reasoning, tool invocations and sources of an
// assistant message.
func (r renderer) summary(msg uimessage.Message) {
	if text, ok := invocation.Reasoning(msg.Parts); ok {
		if text = strings.Join(strings.Fields(text), " "); text != "" {
			fmt.Fprintln(r.w, thinkingStyle.Render("thinking: "+preview(text)))
		}
	}
	for _, inv := range invocation.Normalize(msg.Parts) {
		title := invocation.ToolTitle(inv.ToolName)
		switch inv.State {
		case invocation.StateOutputAvailable:
			fmt.Fprintf(r.w, "%s %s\n", successStyle.Render("✓ "+title), toolOutputStyle.Render(preview(string(inv.Output))))
		case invocation.StateOutputError:
			fmt.Fprintf(r.w, "%s %s\n", errorStyle.Render("✗ "+title), inv.ErrorText)
		default:
			fmt.Fprintf(r.w, "%s %s\n", toolCallStyle.Render("… "+title), inv.State)
		}
	}
	for _, src := range invocation.Sources(msg.Parts) {
		fmt.Fprintf(r.w, "%s %s\n", thinkingStyle.Render("source:"), src.URL)
	}
}

// user echoes a prompt with its mentions listed after the text.
func (r renderer) user(prompt string) {
	line := mention.Strip(prompt)
	if tokens := mention.Parse(prompt); len(tokens) > 0 {
		line += toolCallStyle.Render(" [@" + strings.Join(tokens, " @") + "]")
	}
	fmt.Fprintln(r.w, userStyle.Render("You: ")+line)
}

func (r renderer) err(text string) {
	fmt.Fprintln(r.w, errorStyle.Render("Error: "+text))
}

func (r renderer) info(text string) {
	fmt.Fprintln(r.w, successStyle.Render(text))
}

func preview(s string) string {
	if len(s) <= maxOutputPreview {
		return s
	}
	return s[:maxOutputPreview] + "…"
}
