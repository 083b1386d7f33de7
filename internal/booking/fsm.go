// Package booking holds the conversational form state machine and the
// per-chat session store.
package booking

import (
	"sync"
	"time"
)

// State is the current step of a chat's booking conversation.
type State string

const (
	StateIdle            State = "idle"
	StateChoosingDay     State = "choosing_day"
	StateChoosingTime    State = "choosing_time"
	StateChoosingHours   State = "choosing_hours"
	StateGroupName       State = "group_name"
	StateContact         State = "contact"
	StateBookingType     State = "booking_type"
	StateCustomType      State = "custom_type"
	StateComment         State = "comment"
	StateSubscribeDay    State = "subscribe_day"
	StateSubscribeTime   State = "subscribe_time"
	StateCancelDay       State = "cancel_day"
	StateCancelBooking   State = "cancel_booking"
)

// transitions lists the forward edges of the form. Reset to StateIdle is
// allowed from every state and therefore not listed.
var transitions = map[State][]State{
	StateIdle:          {StateChoosingDay, StateSubscribeDay, StateCancelDay},
	StateChoosingDay:   {StateChoosingTime},
	StateChoosingTime:  {StateChoosingHours, StateChoosingDay},
	StateChoosingHours: {StateGroupName, StateChoosingTime},
	StateGroupName:     {StateContact},
	StateContact:       {StateBookingType},
	StateBookingType:   {StateCustomType, StateComment},
	StateCustomType:    {StateComment},
	StateComment:       {StateIdle},
	StateSubscribeDay:  {StateSubscribeTime},
	StateSubscribeTime: {StateIdle},
	StateCancelDay:     {StateCancelBooking},
	StateCancelBooking: {StateIdle},
}

// CanTransition reports whether moving from one state to another is legal.
// Returning to idle is always legal (the reset side channel).
func CanTransition(from, to State) bool {
	if to == StateIdle {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Draft accumulates the booking form fields.
type Draft struct {
	Date        string // YYYY-MM-DD
	StartTime   string // HH:00
	Hours       int
	GroupName   string
	ContactInfo string
	BookingType string
	Comment     string
}

// Session is one chat's conversation state.
type Session struct {
	ChatID    int64
	State     State
	Draft     Draft
	UpdatedAt time.Time

	mu sync.Mutex
}

// To moves the session to the given state if the transition is legal.
func (s *Session) To(state State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !CanTransition(s.State, state) {
		return false
	}
	s.State = state
	s.UpdatedAt = time.Now()
	return true
}

// Current returns the session state.
func (s *Session) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State
}

// Expired reports whether the session has been idle past the timeout.
func (s *Session) Expired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.UpdatedAt) > timeout
}

// Store keeps sessions keyed by chat id. Abandoned conversations are dropped
// on the next access past the TTL or by a periodic Cleanup call.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	timeout  time.Duration
}

// NewStore creates a session store with the given idle timeout.
func NewStore(timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &Store{
		sessions: make(map[int64]*Session),
		timeout:  timeout,
	}
}

// Get returns the chat's session, creating a fresh idle one when absent or
// expired.
func (st *Store) Get(chatID int64) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[chatID]
	if ok && !s.Expired(st.timeout) {
		return s
	}
	s = &Session{ChatID: chatID, State: StateIdle, UpdatedAt: time.Now()}
	st.sessions[chatID] = s
	return s
}

// Reset drops all transient state for a chat and returns a fresh session.
func (st *Store) Reset(chatID int64) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := &Session{ChatID: chatID, State: StateIdle, UpdatedAt: time.Now()}
	st.sessions[chatID] = s
	return s
}

// Cleanup removes expired sessions and reports how many were dropped.
func (st *Store) Cleanup() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, s := range st.sessions {
		if s.Expired(st.timeout) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}
