// Package schedule computes availability views and merges contiguous slots
// into logical bookings.
package schedule

import (
	"time"

	"repbaza/internal/model"
)

// OccupiedLabel replaces group names for non-privileged viewers.
const OccupiedLabel = "Занято"

// Group merges chronologically sorted slots into maximal contiguous runs.
// A slot extends the open run when its owner and group name match and its
// start equals the run's current end; the end advances one hour per absorbed
// slot, so runs roll past midnight naturally. Free slots never join a run.
func Group(slots []model.Slot) []model.Booking {
	var groups []model.Booking
	var open *model.Booking

	for i := range slots {
		s := &slots[i]
		if s.Status == model.StatusFree {
			continue
		}
		start, err := s.StartsAt()
		if err != nil {
			continue
		}

		if open != nil &&
			s.CreatedBy == open.UserID &&
			s.GroupName == open.GroupName &&
			start.Equal(open.EndTime) {
			open.EndTime = open.EndTime.Add(time.Hour)
			open.IDs = append(open.IDs, s.ID)
			continue
		}

		if open != nil {
			groups = append(groups, *open)
		}
		open = &model.Booking{
			IDs:         []int64{s.ID},
			StartTime:   start,
			EndTime:     start.Add(time.Hour),
			Date:        s.Date,
			UserID:      s.CreatedBy,
			GroupName:   s.GroupName,
			BookingType: s.BookingType,
			Comment:     s.Comment,
			ContactInfo: s.ContactInfo,
			Status:      s.Status,
		}
	}
	if open != nil {
		groups = append(groups, *open)
	}
	return groups
}

// GroupForDate groups slots (which should span the adjacent days as well)
// and keeps only the runs that start on the given date, so a run crossing
// midnight is attributed to its first day and never duplicated.
func GroupForDate(slots []model.Slot, date string) []model.Booking {
	var out []model.Booking
	for _, g := range Group(slots) {
		if g.StartTime.Format(model.DateLayout) == date {
			out = append(out, g)
		}
	}
	return out
}

// AdjacentDates returns the day before and after a storage date.
func AdjacentDates(date string) (prev, next string, err error) {
	d, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return "", "", err
	}
	return d.AddDate(0, 0, -1).Format(model.DateLayout),
		d.AddDate(0, 0, 1).Format(model.DateLayout), nil
}

// Entry is one row of a day view.
type Entry struct {
	Time     string
	Status   model.Status
	Occupied bool
	Label    string // group name for admins, OccupiedLabel otherwise
}

// DayView maps a day's slots to display entries, masking group names for
// non-privileged viewers.
func DayView(slots []model.Slot, privileged bool) []Entry {
	entries := make([]Entry, 0, len(slots))
	for _, s := range slots {
		e := Entry{Time: s.Time, Status: s.Status, Occupied: s.Status.Occupied()}
		if e.Occupied {
			if privileged {
				e.Label = s.GroupName
			} else {
				e.Label = OccupiedLabel
			}
		}
		entries = append(entries, e)
	}
	return entries
}

// FreeTimes returns the free slot times of a day, skipping hours already in
// the past when the day is today.
func FreeTimes(slots []model.Slot, now time.Time) []string {
	today := now.Format(model.DateLayout)
	var times []string
	for _, s := range slots {
		if s.Status != model.StatusFree {
			continue
		}
		if s.Date == today {
			if start, err := s.StartsAt(); err == nil && start.Before(now) {
				continue
			}
		}
		times = append(times, s.Time)
	}
	return times
}
