package orchestrator

import (
	"sync"
	"time"

	"github.com/ermakus/freqtrade/internal/domain"
)

// State is the process-wide bot state: the run state, the runtime blacklist
// and the last cycle summary. The loop is the only writer; readers such as
// the control API take snapshots.
type State struct {
	mu        sync.RWMutex
	run       domain.RunState
	whitelist []string
	lastCycle time.Time
	lastError string

	blacklist *domain.Blacklist
}

// NewState creates the state. A nil blacklist starts empty.
func NewState(initial domain.RunState, blacklist *domain.Blacklist) *State {
	if blacklist == nil {
		blacklist = domain.NewBlacklist()
	}
	return &State{run: initial, blacklist: blacklist}
}

// Run returns the current run state.
func (s *State) Run() domain.RunState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.run
}

// Blacklist returns the runtime blacklist.
func (s *State) Blacklist() *domain.Blacklist { return s.blacklist }

// apply feeds e through the state machine and returns the new state.
func (s *State) apply(e domain.Event) domain.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run = domain.Transition(s.run, e)
	return s.run
}

func (s *State) recordCycle(at time.Time, whitelist []string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCycle = at
	if whitelist != nil {
		s.whitelist = append([]string(nil), whitelist...)
	}
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
}

// Status is a point-in-time view of the bot.
type Status struct {
	State     string    `json:"state"`
	Whitelist []string  `json:"whitelist"`
	Blacklist []string  `json:"blacklist"`
	LastCycle time.Time `json:"last_cycle"`
	LastError string    `json:"last_error,omitempty"`
}

// Snapshot returns the current status.
func (s *State) Snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		State:     s.run.String(),
		Whitelist: append([]string{}, s.whitelist...),
		Blacklist: s.blacklist.List(),
		LastCycle: s.lastCycle,
		LastError: s.lastError,
	}
}
