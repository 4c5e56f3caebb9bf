package faults

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestKindOf_Wrapped(t *testing.T) {
	f := Validation(RuleCapacity, "Cargo (%vkg) exceeds vehicle capacity (%vkg)", 650.0, 500.0)
	require.Equal(t, "Cargo (650kg) exceeds vehicle capacity (500kg)", f.Error())

	wrapped := errors.Wrap(f, "dispatch trip")
	require.Equal(t, KindValidationFailed, KindOf(wrapped))
	require.Equal(t, RuleCapacity, RuleOf(wrapped))
	require.True(t, IsValidation(wrapped))
}

func TestKindOf_PlainError(t *testing.T) {
	require.Equal(t, Kind(""), KindOf(errors.New("boom")))
	require.False(t, IsNotFound(errors.New("boom")))
}

func TestConstructors(t *testing.T) {
	require.True(t, IsNotFound(NotFound("vehicle")))
	require.Equal(t, "vehicle not found", NotFound("vehicle").Error())
	require.True(t, IsBadInput(BadInput("weight is not a number")))
	require.True(t, IsStateConflict(Conflict(RuleTerminalState, "shipment %d is already DELIVERED", 7)))
}
