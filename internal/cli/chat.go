package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/inspirepan/chatcore"
	"github.com/inspirepan/chatcore/internal/orchestrator"
	"github.com/inspirepan/chatcore/mention"
	"github.com/inspirepan/chatcore/registry"
	"github.com/inspirepan/chatcore/uimessage"
)

type chatOptions struct {
	prompt        string
	tools         []string
	search        bool
	urlContext    bool
	codeExecution bool
}

func newChatCmd(a *app) *cobra.Command {
	var opts chatOptions
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the model in the terminal",
		Long: `Chat with the model in the terminal. Mention tools with @name.

Commands: /tools, /add <id>, /remove <id>, /selected, /clear, /quit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.newChatSession(cmd.OutOrStdout(), opts)
			if err != nil {
				return err
			}
			for _, id := range opts.tools {
				sess.sel.Add(id)
			}
			if opts.prompt != "" {
				sess.out.user(opts.prompt)
				return sess.send(a.logCtx, opts.prompt)
			}
			return sess.repl(a.logCtx, cmd.InOrStdin())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.prompt, "prompt", "p", "", "send one message and exit")
	f.StringSliceVarP(&opts.tools, "tool", "t", nil, "tool ids to attach to the first message")
	f.BoolVar(&opts.search, "search", false, "enable provider web search")
	f.BoolVar(&opts.urlContext, "url-context", true, "enable provider URL context")
	f.BoolVar(&opts.codeExecution, "code-execution", true, "enable provider code execution")
	return cmd
}

type chatSession struct {
	svc     *orchestrator.Service
	reg     *registry.Registry
	out     renderer
	opts    chatOptions
	history []uimessage.Message
	sel     mention.Selection
}

func (a *app) newChatSession(w io.Writer, opts chatOptions) (*chatSession, error) {
	reg, err := newRegistry(a.cfg)
	if err != nil {
		return nil, err
	}
	svc, err := orchestrator.New(orchestrator.Config{
		Registry:     reg,
		Providers:    a.providerFactory(a.cfg),
		ProviderName: a.cfg.Provider.Name,
		DefaultModel: a.cfg.Provider.Model,
		SystemPrompt: a.cfg.Chat.SystemPrompt,
		TurnTimeout:  a.cfg.Chat.TurnTimeout,
		ToolTimeout:  a.cfg.Chat.ToolTimeout,
		MaxSteps:     a.cfg.Chat.MaxSteps,
	})
	if err != nil {
		return nil, err
	}
	return &chatSession{svc: svc, reg: reg, out: renderer{w: w}, opts: opts}, nil
}

func (s *chatSession) repl(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for {
		fmt.Fprint(s.out.w, userStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(s.out.w)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := s.command(line); quit {
				return nil
			}
			continue
		}
		if err := s.send(ctx, line); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// command runs a slash command and reports whether the session ends.
func (s *chatSession) command(line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/quit", "/exit":
		return true
	case "/clear":
		s.history = nil
		s.sel.Clear()
		s.out.info("Conversation cleared.")
	case "/tools":
		for _, def := range s.reg.List() {
			fmt.Fprintf(s.out.w, "  @%-16s %s %s\n", def.ID, def.Icon, def.Name)
		}
	case "/add":
		if _, ok := s.reg.Get(arg); !ok {
			s.out.err(fmt.Sprintf("unknown tool %q", arg))
			return false
		}
		s.sel.Add(arg)
		s.out.info("Selected: " + strings.Join(s.sel.IDs(), ", "))
	case "/remove":
		s.sel.Remove(arg)
		s.out.info("Selected: " + strings.Join(s.sel.IDs(), ", "))
	case "/selected":
		s.out.info("Selected: " + strings.Join(s.sel.IDs(), ", "))
	default:
		s.out.err(fmt.Sprintf("unknown command %s", name))
	}
	return false
}

// send runs one turn. The draft selection is consumed by the send.
func (s *chatSession) send(ctx context.Context, text string) error {
	user, err := userMessage(text)
	if err != nil {
		return err
	}
	req := orchestrator.ChatRequest{
		Messages:            append(s.history, user),
		EnableSearch:        &s.opts.search,
		EnableURLContext:    &s.opts.urlContext,
		EnableCodeExecution: &s.opts.codeExecution,
		MentionedTools:      s.sel.IDs(),
	}
	s.sel.Clear()
	s.history = append(s.history, user)

	res, err := s.svc.Run(ctx, req, chatcore.WithOnDelta(s.out.delta))
	fmt.Fprintln(s.out.w)
	if len(res.Messages) > 0 {
		reply := uimessage.NewAssistant(uuid.NewString(), res.Messages)
		s.history = append(s.history, reply)
		s.out.summary(reply)
	}
	if err != nil {
		s.out.err(chatcore.FriendlyError(err))
		return err
	}
	if res.Exhausted {
		s.out.info(fmt.Sprintf("(stopped after %d steps)", res.Steps))
	}
	return nil
}

func userMessage(text string) (uimessage.Message, error) {
	part, err := json.Marshal(map[string]string{"type": "text", "text": text})
	if err != nil {
		return uimessage.Message{}, err
	}
	return uimessage.Message{ID: uuid.NewString(), Role: uimessage.RoleUser, Parts: []json.RawMessage{part}}, nil
}
