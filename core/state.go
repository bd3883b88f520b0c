package assistant

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	StateIdle State = iota
	StateWakeDetected
	StateAwaitingCommand
	StateProcessing
	// StateSuspended is the manual mute. No wake probe runs while in it.
	StateSuspended
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWakeDetected:
		return "wake_detected"
	case StateAwaitingCommand:
		return "awaiting_command"
	case StateProcessing:
		return "processing"
	case StateSuspended:
		return "suspended"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transition records one effective state change.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// InteractionState holds the single interaction state shared by the
// background listener and foreground callers. Every read and write goes
// through one lock. It does not validate transitions; the owner of the
// current interaction is expected to request only legal moves.
type InteractionState struct {
	mu        sync.Mutex
	current   State
	observers map[int]func(Transition)
	nextID    int

	logger *slog.Logger
}

func NewInteractionState() *InteractionState {
	return &InteractionState{
		current:   StateIdle,
		observers: make(map[int]func(Transition)),
		logger:    logger,
	}
}

func (s *InteractionState) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// IsBusy reports whether anything other than idle listening is going on.
func (s *InteractionState) IsBusy() bool {
	return s.Current() != StateIdle
}

// Transition moves to the given state and returns the previous one. Setting
// the current state again is not a transition and is not reported.
func (s *InteractionState) Transition(to State) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.current
	s.set(to)
	return from
}

// CompareAndTransition moves to the given state only if the current state is
// expected.
func (s *InteractionState) CompareAndTransition(expected, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != expected {
		return false
	}
	s.set(to)
	return true
}

// Observe registers fn to be called for every effective transition, in
// order. fn runs under the state lock and must not call back into the
// state. The returned function removes the observer.
func (s *InteractionState) Observe(fn func(Transition)) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

func (s *InteractionState) set(to State) {
	if s.current == to {
		return
	}

	t := Transition{From: s.current, To: to, At: time.Now()}
	s.current = to
	s.logger.Debug("interaction state changed", "from", t.From.String(), "to", t.To.String())

	for _, observe := range s.observers {
		observe(t)
	}
}
