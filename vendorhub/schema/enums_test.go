package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusValidation(t *testing.T) {
	for _, status := range []string{Planned, InProgress, Paused, Completed, Cancelled} {
		assert.NoError(t, CheckValidStatus(status))
	}

	assert.Error(t, CheckValidStatus("archived"))
	assert.Error(t, CheckValidStatus("PLANNED"))
	assert.Error(t, CheckValidStatus(""))
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, Planned, NormalizeStatus(""))
	assert.Equal(t, Paused, NormalizeStatus(Paused))
}

func TestTransitionRules(t *testing.T) {
	assert.True(t, CanTransition(Planned, InProgress))
	assert.True(t, CanTransition(Planned, Cancelled))
	assert.True(t, CanTransition(InProgress, Paused))
	assert.True(t, CanTransition(InProgress, Completed))
	assert.True(t, CanTransition(InProgress, Cancelled))
	assert.True(t, CanTransition(Paused, InProgress))
	assert.True(t, CanTransition(Paused, Cancelled))

	assert.False(t, CanTransition(Planned, Paused))
	assert.False(t, CanTransition(Planned, Completed))
	assert.False(t, CanTransition(Paused, Completed))

	// No state can transition to itself.
	for status := range statusTransitions {
		assert.False(t, CanTransition(status, status))
	}

	// Terminal states allow nothing.
	for _, terminal := range []string{Completed, Cancelled} {
		assert.Empty(t, AllowedTransitions(terminal))
	}

	// The empty stored value behaves as planned.
	assert.True(t, CanTransition("", InProgress))
}
