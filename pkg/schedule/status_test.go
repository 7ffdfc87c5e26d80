package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransition(t *testing.T) {
	t.Parallel()

	allowed := []struct{ from, to Status }{
		{StatusPending, StatusProcessing},
		{StatusPending, StatusCancelled},
		{StatusPending, StatusFailed},
		{StatusProcessing, StatusSent},
		{StatusProcessing, StatusPending},
		{StatusProcessing, StatusFailed},
		{StatusProcessing, StatusCancelled},
		{StatusFailed, StatusPending},
	}
	for _, tc := range allowed {
		assert.True(t, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}

	denied := []struct{ from, to Status }{
		{StatusPending, StatusSent},
		{StatusSent, StatusPending},
		{StatusSent, StatusProcessing},
		{StatusCancelled, StatusPending},
		{StatusCancelled, StatusProcessing},
		{StatusFailed, StatusSent},
		{StatusFailed, StatusProcessing},
	}
	for _, tc := range denied {
		assert.False(t, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestEmail_TransitionRejectsIllegal(t *testing.T) {
	t.Parallel()

	rec := &Email{Status: StatusSent}
	err := rec.Transition(StatusPending)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusSent, rec.Status)

	rec = &Email{Status: StatusPending}
	require.NoError(t, rec.Transition(StatusProcessing))
	assert.Equal(t, StatusProcessing, rec.Status)
}

func TestStatus_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, StatusPending.Valid())
	assert.False(t, Status("queued").Valid())
}
