package orchestrator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ermakus/freqtrade/internal/domain"
)

func TestState_Snapshot(t *testing.T) {
	s := NewState(domain.StateStopped, domain.NewBlacklist("XRPBTC"))
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	s.recordCycle(at, []string{"ETHBTC", "LTCBTC"}, errors.New("boom"))
	s.Blacklist().Add("ADABTC")

	snap := s.Snapshot()
	assert.Equal(t, "STOPPED", snap.State)
	assert.Equal(t, []string{"ETHBTC", "LTCBTC"}, snap.Whitelist)
	assert.Equal(t, []string{"ADABTC", "XRPBTC"}, snap.Blacklist)
	assert.Equal(t, at, snap.LastCycle)
	assert.Equal(t, "boom", snap.LastError)
}

func TestState_FailedRefreshKeepsWhitelist(t *testing.T) {
	s := NewState(domain.StateRunning, nil)
	s.recordCycle(time.Unix(1, 0), []string{"ETHBTC"}, nil)
	s.recordCycle(time.Unix(2, 0), nil, errors.New("down"))

	snap := s.Snapshot()
	assert.Equal(t, []string{"ETHBTC"}, snap.Whitelist)
	assert.Equal(t, "down", snap.LastError)
}

func TestState_Apply(t *testing.T) {
	s := NewState(domain.StateStopped, nil)
	assert.Equal(t, domain.StateRunning, s.apply(domain.EventStart))
	assert.Equal(t, domain.StateStopped, s.apply(domain.EventFault))
	assert.Equal(t, domain.StateStopped, s.Run())
}
