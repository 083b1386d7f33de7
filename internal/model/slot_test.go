package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubscribers(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []int64
	}{
		{"empty", "", nil},
		{"single", "42", []int64{42}},
		{"many", "42,7,100", []int64{42, 7, 100}},
		{"spaces and blanks", " 42 , ,7,", []int64{42, 7}},
		{"duplicates collapse", "42,42,7", []int64{42, 7}},
		{"garbage skipped", "42,abc,7", []int64{42, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSubscribers(tt.raw))
		})
	}
}

func TestJoinSubscribersSortedStable(t *testing.T) {
	assert.Equal(t, "", JoinSubscribers(nil))
	assert.Equal(t, "7,42,100", JoinSubscribers([]int64{100, 7, 42}))
	// Round trip through the storage column.
	assert.Equal(t, []int64{7, 42}, ParseSubscribers(JoinSubscribers([]int64{42, 7})))
}

func TestHourWord(t *testing.T) {
	tests := []struct {
		hours int
		want  string
	}{
		{1, "час"},
		{2, "часа"},
		{4, "часа"},
		{5, "часов"},
		{11, "часов"},
		{12, "часов"},
		{14, "часов"},
		{21, "час"},
		{22, "часа"},
		{25, "часов"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HourWord(tt.hours), "hours=%d", tt.hours)
	}
}

func TestFormatDateHuman(t *testing.T) {
	// 2026-09-01 is a Tuesday.
	assert.Equal(t, "01.09 ВТ", FormatDateHuman("2026-09-01"))
	// Garbage comes back as is.
	assert.Equal(t, "not-a-date", FormatDateHuman("not-a-date"))
}

func TestParseHumanDate(t *testing.T) {
	now := time.Date(2026, 9, 15, 12, 0, 0, 0, time.Local)

	got, err := ParseHumanDate("20.09 ВС", now)
	require.NoError(t, err)
	assert.Equal(t, "2026-09-20", got)

	// Bare date without a weekday suffix.
	got, err = ParseHumanDate("20.09", now)
	require.NoError(t, err)
	assert.Equal(t, "2026-09-20", got)

	// A date earlier in the year rolls to the next one.
	got, err = ParseHumanDate("02.01", now)
	require.NoError(t, err)
	assert.Equal(t, "2027-01-02", got)

	// Today stays today.
	got, err = ParseHumanDate("15.09", now)
	require.NoError(t, err)
	assert.Equal(t, "2026-09-15", got)

	_, err = ParseHumanDate("", now)
	assert.Error(t, err)
	_, err = ParseHumanDate("завтра", now)
	assert.Error(t, err)
}

func TestBookingTimeRange(t *testing.T) {
	b := Booking{
		StartTime: time.Date(2026, 9, 1, 18, 0, 0, 0, time.Local),
		EndTime:   time.Date(2026, 9, 1, 21, 0, 0, 0, time.Local),
	}
	assert.Equal(t, "18:00–21:00", b.TimeRange())
	assert.Equal(t, 3, b.Hours())
}

func TestStatusOccupied(t *testing.T) {
	assert.False(t, StatusFree.Occupied())
	assert.True(t, StatusPending.Occupied())
	assert.True(t, StatusConfirmed.Occupied())
}

func TestSlotStartsAt(t *testing.T) {
	s := Slot{Date: "2026-09-01", Time: "18:00"}
	start, err := s.StartsAt()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 1, 18, 0, 0, 0, time.Local), start)
}
