package scpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateTransitions(t *testing.T) {
	var m stateMgr
	var seen []string
	m.addHandler(func(prev, next State) {
		seen = append(seen, prev.String()+">"+next.String())
	})

	assert.Equal(t, StateDisconnected, m.load())
	require.NoError(t, m.to(StateConnecting))
	require.NoError(t, m.to(StateSynchronized))
	require.NoError(t, m.to(StateServing))
	require.NoError(t, m.to(StateServing), "same state is a no-op")
	require.NoError(t, m.to(StateReconnecting))
	require.NoError(t, m.to(StateConnecting))
	require.NoError(t, m.to(StateDisconnected))
	require.NoError(t, m.to(StateClosed))

	assert.Equal(t, []string{
		"disconnected>connecting",
		"connecting>synchronized",
		"synchronized>serving",
		"serving>reconnecting",
		"reconnecting>connecting",
		"connecting>disconnected",
		"disconnected>closed",
	}, seen)
}

func TestStateInvalidTransitions(t *testing.T) {
	tests := []struct {
		from, to State
	}{
		{StateDisconnected, StateServing},
		{StateConnecting, StateServing},
		{StateServing, StateConnecting},
		{StateClosed, StateConnecting},
		{StateClosed, StateDisconnected},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+">"+tt.to.String(), func(t *testing.T) {
			var m stateMgr
			m.state.Store(uint32(tt.from))
			require.ErrorIs(t, m.to(tt.to), ErrInvalidTransition)
			assert.Equal(t, tt.from, m.load())
		})
	}
}
