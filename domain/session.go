package domain

import (
	"fmt"
	"strings"
	"time"
)

// EntryPoint tells how a session started.
type EntryPoint string

const (
	// EntryPointPush sessions were proactively contacted by the helpline.
	EntryPointPush EntryPoint = "PUSH"
	// EntryPointPull sessions were initiated by the user.
	EntryPointPull EntryPoint = "PULL"
)

// EntryPoints lists every entry point in registry order.
var EntryPoints = []EntryPoint{EntryPointPush, EntryPointPull}

// ParseEntryPoint accepts "push"/"pull" in any case.
func ParseEntryPoint(s string) (EntryPoint, error) {
	switch EntryPoint(strings.ToUpper(strings.TrimSpace(s))) {
	case EntryPointPush:
		return EntryPointPush, nil
	case EntryPointPull:
		return EntryPointPull, nil
	}
	return "", fmt.Errorf("unknown entry point %q", s)
}

// Title renders the entry point the way registry keys spell it ("Push", "Pull").
func (e EntryPoint) Title() string {
	if e == EntryPointPush {
		return "Push"
	}
	return "Pull"
}

// SessionState is the explicit position of a session in the routing flow.
type SessionState string

const (
	StateNew                SessionState = "NEW"
	StateAwaitingDisclaimer SessionState = "AWAITING_DISCLAIMER"
	StateAwaitingRegion     SessionState = "AWAITING_REGION"
	StateCleared            SessionState = "CLEARED"
	StateEnded              SessionState = "ENDED"
)

// transitions holds the allowed moves. ENDED is reachable from every state
// and is handled separately.
var transitions = map[SessionState][]SessionState{
	StateNew:                {StateAwaitingDisclaimer, StateCleared},
	StateAwaitingDisclaimer: {StateAwaitingDisclaimer, StateAwaitingRegion, StateCleared},
	StateAwaitingRegion:     {StateAwaitingRegion, StateCleared},
	StateCleared:            {StateCleared},
}

// CanTransition reports whether a session may move from one state to another.
func CanTransition(from, to SessionState) bool {
	if to == StateEnded {
		return from != StateEnded
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Session is the routing state of one user talking through one origin number.
type Session struct {
	UserID         string
	OriginNumber   string
	ContactAddress string
	EntryPoint     EntryPoint
	IsDemo         bool
	State          SessionState

	ConfirmedDisclaimer     bool
	RegionName              string
	RegionSelectionAttempts int

	ActivePodID   string
	ActivePodName string
	// Threads maps every pod handle the session has visited to its thread id.
	Threads map[string]string

	Status           ThreadStatus
	ClaimedBy        string
	VolunteerEngaged bool

	LastMessageAt  time.Time
	SessionStartAt time.Time
}

// Key is the session store key, "{userId}:{originNumber}".
func (s *Session) Key() string {
	return SessionKey(s.UserID, s.OriginNumber)
}

// SessionKey builds the store key for a user on an origin number.
func SessionKey(userID, originNumber string) string {
	return userID + ":" + originNumber
}

// ActiveThreadID returns the thread of the active pod, if any.
func (s *Session) ActiveThreadID() string {
	if s.Threads == nil {
		return ""
	}
	return s.Threads[s.ActivePodID]
}

// IsStale reports a legacy session that never recorded its start time.
func (s *Session) IsStale() bool {
	return s.SessionStartAt.IsZero()
}

// Transition moves the session to the given state.
func (s *Session) Transition(to SessionState) error {
	if !CanTransition(s.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.State, to)
	}
	s.State = to
	return nil
}

// DeriveState recovers the state of records written before the state field
// existed.
func DeriveState(confirmedDisclaimer bool, regionName string) SessionState {
	switch {
	case regionName != "":
		return StateCleared
	case confirmedDisclaimer:
		return StateAwaitingRegion
	default:
		return StateAwaitingDisclaimer
	}
}

// ThreadRef is what a thread's reverse lookup resolves to.
type ThreadRef struct {
	ContactAddress string
	OriginNumber   string
	UserID         string
}

// SessionKey returns the key of the session owning the thread.
func (r ThreadRef) SessionKey() string {
	return SessionKey(r.UserID, r.OriginNumber)
}
