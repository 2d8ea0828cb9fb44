// Package orchestrator turns a chat request into a bounded model turn:
// it converts the UI history, resolves tool mentions, selects the tool set
// and runs the turn under a timeout.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"goa.design/clue/log"

	"github.com/inspirepan/chatcore"
	"github.com/inspirepan/chatcore/internal/telemetry"
	"github.com/inspirepan/chatcore/mention"
	"github.com/inspirepan/chatcore/registry"
	"github.com/inspirepan/chatcore/uimessage"
)

var (
	ErrNoMessages = errors.New("orchestrator: messages are required")
	ErrNoRegistry = errors.New("orchestrator: registry is required")
	ErrNoProvider = errors.New("orchestrator: provider factory is required")
)

// ProviderFactory returns the provider serving model.
type ProviderFactory func(model string) (chatcore.Provider, error)

// InstallLister lists the tool ids a user installed.
type InstallLister interface {
	ToolIDs(ctx context.Context, userID string) ([]string, error)
}

// Config wires a Service.
type Config struct {
	Registry     *registry.Registry
	Providers    ProviderFactory
	ProviderName string
	DefaultModel string
	SystemPrompt string

	// Installs restricts mentions to installed tools when RequireInstall
	// is set.
	Installs       InstallLister
	RequireInstall bool

	TurnTimeout time.Duration
	ToolTimeout time.Duration
	// MaxSteps is the step ceiling of tool-enabled turns.
	MaxSteps int

	Turns *telemetry.TurnTracer
}

// Service prepares and runs chat turns.
type Service struct {
	cfg Config
}

// New validates cfg and returns a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Registry == nil {
		return nil, ErrNoRegistry
	}
	if cfg.Providers == nil {
		return nil, ErrNoProvider
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = chatcore.DefaultMaxSteps
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = chatcore.DefaultToolTimeout
	}
	return &Service{cfg: cfg}, nil
}

// Prepared is a turn ready to run.
type Prepared struct {
	Request   chatcore.TurnRequest
	Model     string
	ToolSet   mention.ToolSet
	Mentioned []registry.Serialized
}

// Prepare converts req into a turn request.
func (s *Service) Prepare(ctx context.Context, req ChatRequest) (Prepared, error) {
	if len(req.Messages) == 0 {
		return Prepared{}, ErrNoMessages
	}
	model := req.Model
	if model == "" {
		model = s.cfg.DefaultModel
	}
	provider, err := s.cfg.Providers(model)
	if err != nil {
		return Prepared{}, fmt.Errorf("orchestrator: provider for %q: %w", model, err)
	}

	available, err := s.available(ctx, req.UserID)
	if err != nil {
		return Prepared{}, err
	}
	var sel mention.Selection
	for _, id := range req.MentionedTools {
		sel.Add(id)
	}
	mentioned := mention.Resolve(sel.Tokens(req.LastUserText()), available)
	set := mention.Select(mentioned, req.Toggles())

	system := uimessage.SystemPrompt(req.Messages)
	if system == "" {
		system = s.cfg.SystemPrompt
	}
	maxSteps := 1
	if !set.Empty() {
		maxSteps = s.cfg.MaxSteps
	}

	log.Debug(ctx,
		log.KV{K: "model", V: model},
		log.KV{K: "tool-mode", V: string(set.Mode)},
		log.KV{K: "function-tools", V: set.FunctionTools},
		log.KV{K: "native-tools", V: set.NativeTools},
	)

	return Prepared{
		Request: chatcore.TurnRequest{
			Provider:     provider,
			SystemPrompt: system,
			History:      uimessage.ToModel(req.Messages),
			Tools:        s.cfg.Registry.Tools(set.FunctionTools...),
			NativeTools:  set.NativeTools,
			ToolChoice:   set.ToolChoice(),
			MaxSteps:     maxSteps,
		},
		Model:     model,
		ToolSet:   set,
		Mentioned: mentioned,
	}, nil
}

// available returns the tools a user may mention.
func (s *Service) available(ctx context.Context, userID string) ([]registry.Serialized, error) {
	all := s.cfg.Registry.SerializeAll()
	if !s.cfg.RequireInstall || s.cfg.Installs == nil {
		return all, nil
	}
	ids, err := s.cfg.Installs.ToolIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: installed tools: %w", err)
	}
	return slices.DeleteFunc(all, func(t registry.Serialized) bool {
		return !slices.Contains(ids, t.ID)
	}), nil
}

func (s *Service) options() []chatcore.Option {
	return []chatcore.Option{chatcore.WithToolTimeout(s.cfg.ToolTimeout)}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.TurnTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.TurnTimeout)
}

func (s *Service) startSpan(ctx context.Context, p Prepared) (context.Context, func(*chatcore.TurnResult, error)) {
	return s.cfg.Turns.Start(ctx, telemetry.TurnInfo{
		Provider: s.cfg.ProviderName,
		Model:    p.Model,
		ToolMode: string(p.ToolSet.Mode),
		Tools:    len(p.ToolSet.FunctionTools) + len(p.ToolSet.NativeTools),
	})
}

// Run prepares and runs a turn to completion.
func (s *Service) Run(ctx context.Context, req ChatRequest, opts ...chatcore.Option) (chatcore.TurnResult, error) {
	p, err := s.Prepare(ctx, req)
	if err != nil {
		return chatcore.TurnResult{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ctx, end := s.startSpan(ctx, p)
	res, err := chatcore.Turn(ctx, p.Request, append(s.options(), opts...)...)
	end(&res, err)
	if err != nil {
		log.Error(ctx, err, log.KV{K: "model", V: p.Model}, log.KV{K: "steps", V: res.Steps})
	}
	return res, err
}

// Stream prepares a turn and runs it in the background. Closing the
// returned stream releases the turn timeout and ends its span.
func (s *Service) Stream(ctx context.Context, req ChatRequest, opts ...chatcore.Option) (chatcore.TurnStream, Prepared, error) {
	p, err := s.Prepare(ctx, req)
	if err != nil {
		return nil, Prepared{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	ctx, end := s.startSpan(ctx, p)
	stream, err := chatcore.TurnStreamed(ctx, p.Request, append(s.options(), opts...)...)
	if err != nil {
		end(nil, err)
		cancel()
		return nil, Prepared{}, err
	}
	return &timedStream{TurnStream: stream, ctx: ctx, cancel: cancel, end: end}, p, nil
}

type timedStream struct {
	chatcore.TurnStream
	ctx    context.Context
	cancel context.CancelFunc
	end    func(*chatcore.TurnResult, error)
	once   sync.Once
}

func (s *timedStream) Close() error {
	err := s.TurnStream.Close()
	s.once.Do(func() {
		res, rerr := s.TurnStream.Result()
		s.end(res, rerr)
		if rerr != nil {
			log.Error(s.ctx, rerr, log.KV{K: "steps", V: res.Steps})
		}
		s.cancel()
	})
	return err
}
