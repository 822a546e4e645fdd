package batch

import (
	"github.com/teranos/xalq/errors"
)

// RowStep is a row's position in the pipeline
type RowStep string

const (
	StepPending        RowStep = "pending"
	StepTypeResolved   RowStep = "type_resolved"
	StepPromptResolved RowStep = "prompt_resolved"
	StepGenerated      RowStep = "generated"
	StepParsed         RowStep = "parsed"
	StepRendered       RowStep = "rendered"
	StepDone           RowStep = "done"
	StepFailed         RowStep = "failed"
)

// pipeline is the only forward path through the steps
var pipeline = []RowStep{
	StepPending,
	StepTypeResolved,
	StepPromptResolved,
	StepGenerated,
	StepParsed,
	StepRendered,
	StepDone,
}

// IsTerminal returns true for Done and Failed
func (s RowStep) IsTerminal() bool {
	return s == StepDone || s == StepFailed
}

// RowState tracks one row through the pipeline
type RowState struct {
	Index int
	Step  RowStep
	// FailedAt is the last step reached before failing
	FailedAt RowStep
	Reason   string
}

// NewRowState returns a pending row
func NewRowState(index int) *RowState {
	return &RowState{Index: index, Step: StepPending}
}

// Advance moves to next. Only the next pipeline step is accepted; Failed is
// reached through Fail.
func (s *RowState) Advance(next RowStep) error {
	if s.Step.IsTerminal() {
		return errors.Newf("row %d: cannot move from terminal step %s to %s", s.Index, s.Step, next)
	}
	for i, step := range pipeline[:len(pipeline)-1] {
		if step == s.Step {
			if pipeline[i+1] != next {
				return errors.Newf("row %d: invalid transition %s -> %s", s.Index, s.Step, next)
			}
			s.Step = next
			return nil
		}
	}
	return errors.Newf("row %d: unknown step %s", s.Index, s.Step)
}

// Fail records the reason and moves to Failed from any non-terminal step
func (s *RowState) Fail(reason string) error {
	if s.Step.IsTerminal() {
		return errors.Newf("row %d: cannot fail from terminal step %s", s.Index, s.Step)
	}
	s.FailedAt = s.Step
	s.Step = StepFailed
	s.Reason = reason
	return nil
}
