package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		from  RunState
		event Event
		want  RunState
	}{
		{StateStopped, EventStart, StateRunning},
		{StateRunning, EventStart, StateRunning},
		{StateRunning, EventStop, StateStopped},
		{StateStopped, EventStop, StateStopped},
		{StateRunning, EventFault, StateStopped},
		{StateRunning, Event(99), StateRunning},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"_"+tt.event.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Transition(tt.from, tt.event))
		})
	}
}

func TestParseRunState(t *testing.T) {
	s, err := ParseRunState("RUNNING")
	assert.NoError(t, err)
	assert.Equal(t, StateRunning, s)

	s, err = ParseRunState("")
	assert.NoError(t, err)
	assert.Equal(t, StateStopped, s)

	_, err = ParseRunState("paused")
	assert.Error(t, err)
}

func TestBlacklist(t *testing.T) {
	b := NewBlacklist("XRPBTC")

	assert.True(t, b.Contains("XRPBTC"))
	assert.False(t, b.Contains("ETHBTC"))

	assert.True(t, b.Add("ETHBTC"))
	assert.False(t, b.Add("ETHBTC"))
	assert.Equal(t, []string{"ETHBTC", "XRPBTC"}, b.List())
}
