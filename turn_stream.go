package chatcore

import (
	"context"
	"errors"
	"io"
	"sync"
)

// TurnStream exposes streaming access to a turn.
type TurnStream interface {
	Next(ctx context.Context) (TurnEvent, error)
	Result() (*TurnResult, error)
	Cancel()
	Close() error
}

type turnStream struct {
	ctx    context.Context
	cancel context.CancelFunc

	events chan TurnEvent

	result    TurnResult
	resultErr error
	done      chan struct{}

	mu   sync.Mutex
	step int
}

// TurnStreamed runs a turn in the background and returns a stream of its
// events. The stream ends with a TurnEventEnd event followed by io.EOF.
func TurnStreamed(parent context.Context, req TurnRequest, opts ...Option) (TurnStream, error) {
	if req.Provider == nil {
		return nil, ErrNoProvider
	}

	ctx, cancel := context.WithCancel(parent)
	s := &turnStream{
		ctx:    ctx,
		cancel: cancel,
		events: make(chan TurnEvent, 16),
		done:   make(chan struct{}),
	}

	go s.run(req, opts)
	return s, nil
}

func (s *turnStream) Next(ctx context.Context) (TurnEvent, error) {
	select {
	case <-ctx.Done():
		return TurnEvent{}, ctx.Err()
	case ev, ok := <-s.events:
		if !ok {
			return TurnEvent{}, io.EOF
		}
		return ev, nil
	}
}

func (s *turnStream) Result() (*TurnResult, error) {
	<-s.done
	return &s.result, s.resultErr
}

func (s *turnStream) Cancel() {
	s.cancel()
}

func (s *turnStream) Close() error {
	s.cancel()
	for range s.events {
	}
	<-s.done
	return nil
}

func (s *turnStream) run(req TurnRequest, opts []Option) {
	defer close(s.done)
	defer close(s.events)

	streamOpts := append(append([]Option{}, opts...),
		WithOnStepStart(func(step int) {
			s.setStep(step)
			s.emit(TurnEvent{Type: TurnEventStepStart, Step: step})
		}),
		WithOnDelta(func(d MessageDelta) {
			s.emit(TurnEvent{Type: TurnEventDelta, Step: s.currentStep(), Delta: d})
		}),
		WithOnMessage(func(m Message) {
			s.emit(TurnEvent{Type: TurnEventMessage, Step: s.currentStep(), Message: m})
		}),
		WithOnStepFinish(func(f StepFinish) {
			s.emit(TurnEvent{Type: TurnEventStepFinish, Step: f.Step, StepFinish: &f})
		}),
	)

	res, err := Turn(s.ctx, req, streamOpts...)
	s.result = res
	s.addError(err)

	// The final event is delivered even after cancellation so consumers can
	// flush the partial result.
	s.events <- TurnEvent{Type: TurnEventEnd, Step: res.Steps, Final: &s.result, Err: err}
}

func (s *turnStream) emit(ev TurnEvent) {
	select {
	case <-s.ctx.Done():
		return
	case s.events <- ev:
	}
}

func (s *turnStream) setStep(step int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step = step
}

func (s *turnStream) currentStep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *turnStream) addError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resultErr == nil {
		s.resultErr = err
		return
	}
	s.resultErr = errors.Join(s.resultErr, err)
}
