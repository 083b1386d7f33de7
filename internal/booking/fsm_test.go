package booking

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitions(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
		ok   bool
	}{
		{"start booking", StateIdle, StateChoosingDay, true},
		{"start subscription", StateIdle, StateSubscribeDay, true},
		{"start cancellation", StateIdle, StateCancelDay, true},
		{"day to time", StateChoosingDay, StateChoosingTime, true},
		{"time back to day", StateChoosingTime, StateChoosingDay, true},
		{"hours to group", StateChoosingHours, StateGroupName, true},
		{"type to custom", StateBookingType, StateCustomType, true},
		{"type straight to comment", StateBookingType, StateComment, true},
		{"reset from anywhere", StateGroupName, StateIdle, true},
		{"skip a step", StateChoosingDay, StateChoosingHours, false},
		{"jump flows", StateChoosingTime, StateSubscribeTime, false},
		{"comment back to contact", StateComment, StateContact, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to))
		})
	}
}

func TestSessionTo(t *testing.T) {
	s := &Session{ChatID: 1, State: StateIdle, UpdatedAt: time.Now()}

	require.True(t, s.To(StateChoosingDay))
	require.True(t, s.To(StateChoosingTime))
	assert.Equal(t, StateChoosingTime, s.Current())

	// Illegal move leaves state unchanged.
	assert.False(t, s.To(StateComment))
	assert.Equal(t, StateChoosingTime, s.Current())

	assert.True(t, s.To(StateIdle))
}

func TestStoreExpiry(t *testing.T) {
	st := NewStore(50 * time.Millisecond)

	s := st.Get(42)
	require.True(t, s.To(StateChoosingDay))
	assert.Same(t, s, st.Get(42))

	time.Sleep(60 * time.Millisecond)

	// Expired session is replaced by a fresh idle one.
	fresh := st.Get(42)
	assert.NotSame(t, s, fresh)
	assert.Equal(t, StateIdle, fresh.Current())
}

func TestStoreCleanup(t *testing.T) {
	st := NewStore(50 * time.Millisecond)
	st.Get(1)
	st.Get(2)

	time.Sleep(60 * time.Millisecond)
	st.Get(3)

	assert.Equal(t, 2, st.Cleanup())
	assert.Equal(t, StateIdle, st.Get(3).Current())
}

func TestStoreReset(t *testing.T) {
	st := NewStore(time.Minute)
	s := st.Get(7)
	require.True(t, s.To(StateChoosingDay))
	s.Draft.Date = "2026-09-01"

	fresh := st.Reset(7)
	assert.Equal(t, StateIdle, fresh.Current())
	assert.Empty(t, fresh.Draft.Date)
}

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name string
		text string
		err  error
	}{
		{"plain name", "Звуки Му", nil},
		{"with digits", "Репетиция 12", nil},
		{"empty", "", ErrEmptyInput},
		{"spaces only", "   ", ErrEmptyInput},
		{"semicolon", "group; drop", ErrForbiddenChars},
		{"quote", `the "band"`, ErrForbiddenChars},
		{"apostrophe", "rock'n'roll", ErrForbiddenChars},
		{"slash", "ac/dc", ErrForbiddenChars},
		{"backslash", `a\b`, ErrForbiddenChars},
		{"asterisk", "star*", ErrForbiddenChars},
		{"command", "/start", ErrForbiddenChars},
		{"padded command", "  /cancel", ErrForbiddenChars},
		{"too long", strings.Repeat("ж", 101), ErrInputTooLong},
		{"at limit", strings.Repeat("ж", 100), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInput(tt.text, 100)
			if tt.err == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}
