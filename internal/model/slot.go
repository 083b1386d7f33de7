// Package model contains the slot and booking data structures shared by the bots.
package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Status is the lifecycle stage of a slot.
type Status int

const (
	StatusFree      Status = 0
	StatusPending   Status = 1
	StatusConfirmed Status = 2
)

// String returns a human-readable status label.
func (s Status) String() string {
	switch s {
	case StatusFree:
		return "free"
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Occupied reports whether the slot counts against a day's availability.
func (s Status) Occupied() bool {
	return s != StatusFree
}

// Layout constants for the date/time columns.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Slot is one hour-granularity bookable unit identified by (date, time).
type Slot struct {
	ID          int64
	Date        string // YYYY-MM-DD
	Time        string // HH:00
	Status      Status
	UserID      int64 // 0 when free
	GroupName   string
	CreatedBy   int64
	BookingType string
	Comment     string
	ContactInfo string
	Subscribers []int64
}

// StartsAt returns the slot's wall-clock start.
func (s *Slot) StartsAt() (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+TimeLayout, s.Date+" "+s.Time, time.Local)
}

// HasSubscriber reports whether userID is already in the subscriber set.
func (s *Slot) HasSubscriber(userID int64) bool {
	for _, id := range s.Subscribers {
		if id == userID {
			return true
		}
	}
	return false
}

// ParseSubscribers decodes the comma-joined subscriber column.
// Blank and malformed entries are skipped.
func ParseSubscribers(raw string) []int64 {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	seen := make(map[int64]struct{}, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// JoinSubscribers encodes a subscriber set back into the storage column.
// Output is sorted so the column is stable across rewrites.
func JoinSubscribers(ids []int64) string {
	if len(ids) == 0 {
		return ""
	}
	sorted := make([]int64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// Booking is a maximal run of contiguous same-owner slots. It is derived on
// read by the grouping engine and never persisted.
type Booking struct {
	IDs         []int64
	StartTime   time.Time
	EndTime     time.Time
	Date        string // date of the first slot, YYYY-MM-DD
	UserID      int64
	GroupName   string
	BookingType string
	Comment     string
	ContactInfo string
	Status      Status
}

// Hours returns the booking length in whole hours.
func (b *Booking) Hours() int {
	return int(b.EndTime.Sub(b.StartTime) / time.Hour)
}

// TimeRange formats the booking as "15:04–18:04".
func (b *Booking) TimeRange() string {
	return b.StartTime.Format(TimeLayout) + "–" + b.EndTime.Format(TimeLayout)
}

var weekdayShort = [...]string{"ВС", "ПН", "ВТ", "СР", "ЧТ", "ПТ", "СБ"}

// FormatDateHuman renders "02.01 ПН" from a storage date.
func FormatDateHuman(dateStr string) string {
	d, err := time.Parse(DateLayout, dateStr)
	if err != nil {
		return dateStr
	}
	return fmt.Sprintf("%s %s", d.Format("02.01"), weekdayShort[int(d.Weekday())])
}

// ParseHumanDate converts "02.01 ПН" (or bare "02.01") back to a storage date,
// resolving the year against now. Dates that already passed this year roll to
// the next year.
func ParseHumanDate(text string, now time.Time) (string, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", fmt.Errorf("empty date")
	}
	d, err := time.ParseInLocation("02.01", fields[0], now.Location())
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", text, err)
	}
	candidate := time.Date(now.Year(), d.Month(), d.Day(), 0, 0, 0, 0, now.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if candidate.Before(today) {
		candidate = candidate.AddDate(1, 0, 0)
	}
	return candidate.Format(DateLayout), nil
}

// HourWord returns the Russian plural for N hours.
func HourWord(hours int) string {
	if hours%100 >= 11 && hours%100 <= 14 {
		return "часов"
	}
	switch hours % 10 {
	case 1:
		return "час"
	case 2, 3, 4:
		return "часа"
	default:
		return "часов"
	}
}
