package statement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		from    State
		event   Event
		want    State
		wantErr error
	}{
		{Queued, EventStart, Running, nil},
		{Queued, EventFinish, Queued, ErrInvalidTransition},
		{Queued, EventFail, Failed, nil},
		{Queued, EventCancel, Cancelled, nil},
		{Running, EventStart, Running, ErrInvalidTransition},
		{Running, EventFinish, Finished, nil},
		{Running, EventFail, Failed, nil},
		{Running, EventCancel, Cancelled, nil},
		{Finished, EventCancel, Finished, ErrAlreadyTerminal},
		{Finished, EventFail, Finished, ErrAlreadyTerminal},
		{Failed, EventCancel, Failed, ErrAlreadyTerminal},
		{Failed, EventStart, Failed, ErrAlreadyTerminal},
		{Cancelled, EventCancel, Cancelled, ErrAlreadyTerminal},
		{Cancelled, EventFinish, Cancelled, ErrAlreadyTerminal},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.event.String(), func(t *testing.T) {
			got, err := Transition(tt.from, tt.event)
			assert.Equal(t, tt.want, got)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.GreaterOrEqual(t, got.Rank(), tt.from.Rank())
		})
	}
}

func TestTransition_NeverLeavesTerminal(t *testing.T) {
	events := []Event{EventStart, EventFinish, EventFail, EventCancel}
	for _, s := range []State{Finished, Failed, Cancelled} {
		for _, e := range events {
			got, err := Transition(s, e)
			require.ErrorIs(t, err, ErrAlreadyTerminal)
			assert.Equal(t, s, got)
		}
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "QUEUED", Queued.String())
	assert.Equal(t, "RUNNING", Running.String())
	assert.Equal(t, "FINISHED", Finished.String())
	assert.Equal(t, "FAILED", Failed.String())
	assert.Equal(t, "CANCELLED", Cancelled.String())
	assert.Equal(t, "State(9)", State(9).String())

	assert.False(t, Queued.IsTerminal())
	assert.False(t, Running.IsTerminal())
	assert.True(t, Cancelled.IsTerminal())
	assert.Equal(t, Failed.Rank(), Cancelled.Rank())
	assert.Less(t, Queued.Rank(), Running.Rank())
}
