package chatcore

// TurnEventType represents turn-level lifecycle updates.
type TurnEventType string

const (
	TurnEventStepStart  TurnEventType = "step_start"
	TurnEventDelta      TurnEventType = "delta"
	TurnEventMessage    TurnEventType = "message"
	TurnEventStepFinish TurnEventType = "step_finish"
	TurnEventEnd        TurnEventType = "end"
)

// TurnEvent is one item of a TurnStream.
type TurnEvent struct {
	Type TurnEventType
	Step int

	Delta   MessageDelta
	Message Message

	StepFinish *StepFinish
	Final      *TurnResult
	Err        error
}
