package chatcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

func runStep(ctx context.Context, req StepRequest, cfg runConfig, step int) (StepResult, error) {
	if req.Provider == nil {
		return nil, ErrNoProvider
	}
	if len(req.Tools) > 0 && len(req.NativeTools) > 0 {
		return nil, ErrMixedToolModes
	}

	emitter := cfg.stepEmitter

	providerReq := ProviderRequest{
		SystemPrompt: req.SystemPrompt,
		History:      req.History,
		Tools:        collectToolSpecs(req.Tools),
		NativeTools:  req.NativeTools,
		ToolChoice:   req.ToolChoice,
	}
	if providerReq.ToolChoice == "" {
		providerReq.ToolChoice = ToolChoiceNone
		if providerReq.HasTools() {
			providerReq.ToolChoice = ToolChoiceAuto
		}
	}

	info, _ := StepInfoFrom(ctx)
	info.Step = step
	stream, err := req.Provider.Stream(withStepInfo(ctx, info), providerReq)
	if err != nil {
		return nil, providerFailure(ctx, err)
	}
	defer stream.Close()

	var assistantMsg AssistantMessage
	hasAssistantMsg := false

	for {
		up, nextErr := stream.Next(ctx)
		if nextErr != nil && !errors.Is(nextErr, io.EOF) {
			return nil, providerFailure(ctx, nextErr)
		}
		// Some providers may return a final update along with io.EOF.
		msg, ok, err := handleProviderUpdate(up, emitter)
		if err != nil {
			return nil, err
		}
		if ok {
			assistantMsg = msg
			hasAssistantMsg = true
		}
		if nextErr != nil {
			break
		}
	}

	if !hasAssistantMsg {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrNoAssistantMsg
	}

	toolMsgs := executeTools(ctx, assistantMsg.ToolCalls(), req.Tools, cfg.toolTimeout, emitter)

	result := StepResult(append([]Message{assistantMsg}, toolMsgs...))
	cancelled := ctx.Err() != nil
	emitter.delta(StepStatusDelta{Step: step, Cancelled: cancelled})

	if cancelled {
		return result, ctx.Err()
	}
	return result, nil
}

func providerFailure(ctx context.Context, err error) error {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return ctx.Err()
	}
	return ClassifyProviderError(err)
}

func handleProviderUpdate(up ProviderUpdate, emitter stepEmitter) (AssistantMessage, bool, error) {
	switch u := up.(type) {
	case nil:
		return AssistantMessage{}, false, nil
	case ProviderDeltaUpdate:
		if u.Delta != nil {
			emitter.delta(u.Delta)
		}
		return AssistantMessage{}, false, nil
	case ProviderMessageUpdate:
		emitter.message(u.Message)
		return u.Message, true, nil
	default:
		return AssistantMessage{}, false, ErrUnknownUpdate
	}
}

// ParallelTool is implemented by tools that may run concurrently with other
// parallel tools of the same step.
type ParallelTool interface {
	Parallel() bool
}

func isParallel(t Tool) bool {
	p, ok := t.(ParallelTool)
	return ok && p.Parallel()
}

func executeTools(ctx context.Context, calls []ToolCallPart, tools []Tool, timeout time.Duration, emitter stepEmitter) []Message {
	if len(calls) == 0 {
		return nil
	}

	toolMap := map[string]Tool{}
	for _, t := range tools {
		toolMap[t.Spec().Name] = t
	}

	results := make([]ToolResult, len(calls))
	msgs := make([]Message, len(calls))
	completed := make([]bool, len(calls))

	toolCtx, cancelTools := context.WithCancel(ctx)
	defer cancelTools()

	// completions is buffered so tool goroutines never block once the step is cancelled.
	type completion struct {
		idx int
		res ToolResult
	}
	completions := make(chan completion, len(calls))
	parallelIdx := make([]bool, len(calls))

	execOne := func(idx int, call ToolCallPart) {
		res := executeSingleTool(toolCtx, call, toolMap, timeout)
		select {
		case completions <- completion{idx: idx, res: res}:
		default:
		}
	}

	flushInOrder := func(next *int) {
		for *next < len(calls) && completed[*next] {
			idx := *next
			if msgs[idx] != nil {
				*next = *next + 1
				continue
			}
			res := results[idx]
			msg := ToolResultMessage{
				CallID:    res.CallID,
				Name:      res.Name,
				IsError:   res.IsError,
				Parts:     res.Parts,
				Output:    res.Output,
				Timestamp: time.Now().UnixMilli(),
				Details:   res.Details,
			}
			msgs[idx] = msg
			emitter.message(msg)
			emitter.delta(ToolExecDelta{CallID: res.CallID, Name: res.Name, Stage: ToolExecEnd})
			*next = *next + 1
		}
	}

	nextToEmit := 0

	recordCompletion := func(idx int, res ToolResult) {
		if idx < 0 || idx >= len(calls) || completed[idx] {
			return
		}
		results[idx] = res
		completed[idx] = true
		flushInOrder(&nextToEmit)
	}

	// Parallel tools may overlap each other; every other tool runs alone.
	var runningParallel int

	startParallel := func(idx int, call ToolCallPart) {
		runningParallel++
		parallelIdx[idx] = true
		emitter.delta(ToolExecDelta{CallID: call.CallID, Name: call.Name, Stage: ToolExecStart})
		go execOne(idx, call)
	}

	markInterruptedFrom := func(start int) {
		for i := start; i < len(calls); i++ {
			if completed[i] {
				continue
			}
			results[i] = interruptedToolResult(calls[i])
			completed[i] = true
		}
	}

	recvOne := func() bool {
		select {
		case <-ctx.Done():
			cancelTools()
			markInterruptedFrom(0)
			flushInOrder(&nextToEmit)
			return false
		case c := <-completions:
			recordCompletion(c.idx, c.res)
			if parallelIdx[c.idx] {
				runningParallel--
			}
			return true
		}
	}

	for idx, call := range calls {
		if ctx.Err() != nil {
			markInterruptedFrom(idx)
			flushInOrder(&nextToEmit)
			break
		}

		tool, ok := toolMap[call.Name]
		if ok && isParallel(tool) {
			startParallel(idx, call)
			continue
		}

		for runningParallel > 0 {
			if !recvOne() {
				break
			}
		}
		if ctx.Err() != nil {
			recordCompletion(idx, interruptedToolResult(call))
			continue
		}
		emitter.delta(ToolExecDelta{CallID: call.CallID, Name: call.Name, Stage: ToolExecStart})
		recordCompletion(idx, executeSingleTool(toolCtx, call, toolMap, timeout))
	}

	for runningParallel > 0 {
		if !recvOne() {
			break
		}
	}

	// Every tool call gets a result message.
	for i := range calls {
		if !completed[i] {
			recordCompletion(i, interruptedToolResult(calls[i]))
		}
	}

	flushInOrder(&nextToEmit)
	return msgs
}

type stepEmitter struct {
	onDelta   func(MessageDelta)
	onMessage func(Message)
}

func (e stepEmitter) delta(d MessageDelta) {
	if d == nil || e.onDelta == nil {
		return
	}
	e.onDelta(d)
}

func (e stepEmitter) message(m Message) {
	if m == nil || e.onMessage == nil {
		return
	}
	e.onMessage(m)
}

func executeSingleTool(ctx context.Context, call ToolCallPart, toolMap map[string]Tool, timeout time.Duration) ToolResult {
	if ctx.Err() != nil {
		return interruptedToolResult(call)
	}
	tool, ok := toolMap[call.Name]
	if !ok {
		return toolNotFoundResult(call)
	}

	execCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		res ToolResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := tool.Execute(execCtx, call)
		done <- outcome{res: res, err: err}
	}()

	var res ToolResult
	select {
	case o := <-done:
		res = o.res
		if o.err != nil {
			if ctx.Err() != nil {
				return interruptedToolResult(call)
			}
			if errors.Is(o.err, context.DeadlineExceeded) && execCtx.Err() != nil {
				return errorToolResult(call, fmt.Errorf("%w after %s", ErrToolTimeout, timeout))
			}
			return errorToolResult(call, o.err)
		}
	case <-execCtx.Done():
		// The tool ignored its context; abandon it.
		if ctx.Err() != nil {
			return interruptedToolResult(call)
		}
		return errorToolResult(call, fmt.Errorf("%w after %s", ErrToolTimeout, timeout))
	}
	if res.CallID == "" {
		res.CallID = call.CallID
	}
	if res.Name == "" {
		res.Name = call.Name
	}
	return res
}

// FailureOutput is the structured output recorded for a failed tool call.
type FailureOutput struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// FailureResult builds an error ToolResult carrying msg as text and as
// structured output.
func FailureResult(call ToolCallPart, msg string) ToolResult {
	out, _ := json.Marshal(FailureOutput{Error: true, Message: msg})
	return ToolResult{
		CallID:  call.CallID,
		Name:    call.Name,
		IsError: true,
		Parts:   []Part{TextPart{Text: msg}},
		Output:  out,
	}
}

// interruptedToolResult carries no structured output; clients render it as
// an errored invocation.
func interruptedToolResult(call ToolCallPart) ToolResult {
	return ToolResult{
		CallID:  call.CallID,
		Name:    call.Name,
		IsError: true,
		Parts:   []Part{TextPart{Text: "Request interrupted by user for tool use"}},
	}
}

func toolNotFoundResult(call ToolCallPart) ToolResult {
	return FailureResult(call, fmt.Sprintf("%s: %s", ErrToolNotFound.Error(), call.Name))
}

func errorToolResult(call ToolCallPart, err error) ToolResult {
	return FailureResult(call, err.Error())
}
