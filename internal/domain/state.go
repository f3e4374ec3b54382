package domain

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// RunState is the bot-wide run state.
type RunState int

// Run states
const (
	StateStopped RunState = iota
	StateRunning
)

func (s RunState) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	default:
		return "STOPPED"
	}
}

// ParseRunState parses "running" / "stopped" (case-insensitive).
func ParseRunState(s string) (RunState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stopped":
		return StateStopped, nil
	case "running":
		return StateRunning, nil
	default:
		return StateStopped, fmt.Errorf("unknown run state %q", s)
	}
}

// Event drives run state transitions.
type Event int

// Events
const (
	EventStart Event = iota
	EventStop
	EventFault
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventStop:
		return "stop"
	case EventFault:
		return "fault"
	default:
		return "unknown"
	}
}

// Transition is the pure run state machine.
func Transition(s RunState, e Event) RunState {
	switch e {
	case EventStart:
		return StateRunning
	case EventStop, EventFault:
		return StateStopped
	default:
		return s
	}
}

// Blacklist is the runtime set of pairs excluded from new entries.
// Entries are only added; the set lives for the process lifetime.
type Blacklist struct {
	mu    sync.RWMutex
	pairs map[string]struct{}
}

// NewBlacklist creates a blacklist seeded with pairs.
func NewBlacklist(pairs ...string) *Blacklist {
	b := &Blacklist{pairs: make(map[string]struct{}, len(pairs))}
	for _, p := range pairs {
		b.pairs[p] = struct{}{}
	}
	return b
}

// Add inserts a pair. Returns false if it was already present.
func (b *Blacklist) Add(pair string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pairs[pair]; ok {
		return false
	}
	b.pairs[pair] = struct{}{}
	return true
}

// Contains reports whether pair is blacklisted.
func (b *Blacklist) Contains(pair string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.pairs[pair]
	return ok
}

// List returns the pairs sorted.
func (b *Blacklist) List() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.pairs))
	for p := range b.pairs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
