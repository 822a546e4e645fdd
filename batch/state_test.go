package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowState_FullPipeline(t *testing.T) {
	s := NewRowState(3)
	for _, step := range pipeline[1:] {
		require.NoError(t, s.Advance(step), "advance to %s", step)
	}
	assert.Equal(t, StepDone, s.Step)
	assert.True(t, s.Step.IsTerminal())
}

func TestRowState_RejectsSkips(t *testing.T) {
	s := NewRowState(0)
	require.Error(t, s.Advance(StepGenerated))
	assert.Equal(t, StepPending, s.Step)

	require.NoError(t, s.Advance(StepTypeResolved))
	require.Error(t, s.Advance(StepTypeResolved), "repeating a step is not a transition")
	require.Error(t, s.Advance(StepPending), "no going back")
}

func TestRowState_FailFromAnyStep(t *testing.T) {
	for i, step := range pipeline[:len(pipeline)-1] {
		s := NewRowState(i)
		s.Step = step

		require.NoError(t, s.Fail("boom"))
		assert.Equal(t, StepFailed, s.Step)
		assert.Equal(t, step, s.FailedAt)
		assert.Equal(t, "boom", s.Reason)
	}
}

func TestRowState_TerminalStepsAreFinal(t *testing.T) {
	done := &RowState{Step: StepDone}
	assert.Error(t, done.Fail("late"))
	assert.Error(t, done.Advance(StepPending))

	failed := NewRowState(1)
	require.NoError(t, failed.Fail("first"))
	assert.Error(t, failed.Fail("second"))
	assert.Error(t, failed.Advance(StepTypeResolved))
	assert.Equal(t, "first", failed.Reason)
}
