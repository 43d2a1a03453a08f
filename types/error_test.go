package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Format(t *testing.T) {
	err := NewError(ErrSpecialistNotFound, "unknown specialist").WithSpecialist("ghost_specialist")
	assert.Equal(t, "[SPECIALIST_NOT_FOUND] unknown specialist", err.Error())
	assert.Equal(t, "ghost_specialist", err.Specialist)
}

func TestError_FormatWithCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := NewError(ErrSessionPersistence, "append failed").WithCause(cause)
	assert.Equal(t, "[SESSION_PERSISTENCE] append failed: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestError_IsMatchesCode(t *testing.T) {
	err := NewError(ErrHandoffParse, "To: line missing")
	assert.ErrorIs(t, err, NewError(ErrHandoffParse, "anything"))
	assert.NotErrorIs(t, err, NewError(ErrSpecialistNotFound, "anything"))
}

func TestError_KnownSpecialists(t *testing.T) {
	err := NewError(ErrSpecialistNotFound, "unknown specialist").
		WithKnownSpecialists([]string{"dns_specialist", "azure_specialist"})
	require.Len(t, err.KnownSpecialists, 2)
	assert.Contains(t, err.KnownSpecialists, "dns_specialist")
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, ErrMaxHandoffsExceeded, GetErrorCode(NewError(ErrMaxHandoffsExceeded, "guard tripped")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}

func TestSessionStatus_Terminal(t *testing.T) {
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusMaxHandoffsReached.Terminal())
	assert.True(t, StatusFailed.Terminal())
}
