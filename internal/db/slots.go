package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"repbaza/internal/metrics"
	"repbaza/internal/model"
)

// BookingRequest describes an N-hour booking starting at date/start.
type BookingRequest struct {
	Date        string // YYYY-MM-DD
	StartTime   string // HH:00
	Hours       int
	UserID      int64
	GroupName   string
	BookingType string
	Comment     string
	ContactInfo string
}

// rangeKeys expands the request into the (date, time) pairs it occupies,
// rolling past midnight onto the next calendar date.
func (r *BookingRequest) rangeKeys() ([][2]string, error) {
	day, err := time.Parse(model.DateLayout, r.Date)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", r.Date, err)
	}
	start, err := time.Parse(model.TimeLayout, r.StartTime)
	if err != nil {
		return nil, fmt.Errorf("parse time %q: %w", r.StartTime, err)
	}
	keys := make([][2]string, 0, r.Hours)
	for i := 0; i < r.Hours; i++ {
		h := start.Hour() + i
		d := day.AddDate(0, 0, h/24)
		keys = append(keys, [2]string{d.Format(model.DateLayout), fmt.Sprintf("%02d:00", h%24)})
	}
	return keys, nil
}

const slotColumns = `id, date, time, status, user_id, group_name, created_by,
	booking_type, comment, contact_info, subscribed_users`

func scanSlot(scanner interface{ Scan(...any) error }) (*model.Slot, error) {
	var s model.Slot
	var status int
	var userID, createdBy sql.NullInt64
	var groupName, bookingType, comment, contactInfo, subs sql.NullString
	err := scanner.Scan(
		&s.ID, &s.Date, &s.Time, &status, &userID, &groupName, &createdBy,
		&bookingType, &comment, &contactInfo, &subs,
	)
	if err != nil {
		return nil, err
	}
	s.Status = model.Status(status)
	s.UserID = userID.Int64
	s.CreatedBy = createdBy.Int64
	s.GroupName = groupName.String
	s.BookingType = bookingType.String
	s.Comment = comment.String
	s.ContactInfo = contactInfo.String
	s.Subscribers = model.ParseSubscribers(subs.String)
	return &s, nil
}

func collectSlots(rows *sql.Rows) ([]model.Slot, error) {
	defer rows.Close()
	var slots []model.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *s)
	}
	return slots, rows.Err()
}

// SlotsForDay returns all slots of a date in chronological order.
func (db *DB) SlotsForDay(ctx context.Context, date string) ([]model.Slot, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE date = ? ORDER BY time`, date)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

// SlotsForDates returns slots for the given dates, optionally filtered by
// status, ordered by date then time. Used by the grouping engine which needs
// the adjacent days to keep cross-midnight runs intact.
func (db *DB) SlotsForDates(ctx context.Context, dates []string, statuses []model.Status) ([]model.Slot, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	query := `SELECT ` + slotColumns + ` FROM slots WHERE date IN (` + placeholders(len(dates)) + `)`
	args := make([]any, 0, len(dates)+len(statuses))
	for _, d := range dates {
		args = append(args, d)
	}
	if len(statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(statuses)) + `)`
		for _, st := range statuses {
			args = append(args, int(st))
		}
	}
	query += ` ORDER BY date, time`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

// SlotsByIDs re-reads slot rows by id, ordered chronologically.
func (db *DB) SlotsByIDs(ctx context.Context, ids []int64) ([]model.Slot, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE id IN (`+placeholders(len(ids))+`) ORDER BY date, time`,
		int64Args(ids)...)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

// SlotAt returns the slot at (date, time) or ErrNotFound.
func (db *DB) SlotAt(ctx context.Context, date, timeStr string) (*model.Slot, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE date = ? AND time = ?`, date, timeStr)
	s, err := scanSlot(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// PendingSlots returns every slot awaiting admin confirmation.
func (db *DB) PendingSlots(ctx context.Context) ([]model.Slot, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE status = ? ORDER BY date, time`,
		int(model.StatusPending))
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

// ConfirmedStartingAt returns confirmed slots at an exact (date, time), used
// by the reminder job.
func (db *DB) ConfirmedStartingAt(ctx context.Context, date, timeStr string) ([]model.Slot, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE status = ? AND date = ? AND time = ?`,
		int(model.StatusConfirmed), date, timeStr)
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

// FreeDays returns dates within the horizon that still accept bookings.
// A day is offered while its occupied-slot count stays below the day's total.
// For today only slots still bookable count: an hour already underway is out,
// matching the time picker, so a day never shows up with nothing to choose.
func (db *DB) FreeDays(ctx context.Context, now time.Time, horizonDays int) ([]string, error) {
	var days []string
	today := now.Format(model.DateLayout)
	cutoff := now.Hour()
	if now.Minute() > 0 || now.Second() > 0 || now.Nanosecond() > 0 {
		cutoff++
	}
	// "24:00" sorts above every slot time, leaving today with zero capacity.
	nowHour := fmt.Sprintf("%02d:00", cutoff)

	for i := 0; i < horizonDays; i++ {
		date := now.AddDate(0, 0, i).Format(model.DateLayout)

		var occupied, total int
		var err error
		if date == today {
			err = db.QueryRowContext(ctx,
				`SELECT COUNT(*), (SELECT COUNT(*) FROM slots WHERE date = ?1 AND time >= ?2)
				 FROM slots WHERE date = ?1 AND time >= ?2 AND status != 0`,
				date, nowHour,
			).Scan(&occupied, &total)
		} else {
			err = db.QueryRowContext(ctx,
				`SELECT COUNT(*), (SELECT COUNT(*) FROM slots WHERE date = ?1)
				 FROM slots WHERE date = ?1 AND status != 0`,
				date,
			).Scan(&occupied, &total)
		}
		if err != nil {
			return nil, err
		}
		if total > 0 && occupied < total {
			days = append(days, date)
		}
	}
	return days, nil
}

// BookRange marks an N-hour run as pending with the request's metadata.
// Every slot in the range must be free; any conflict aborts the whole write
// with ErrSlotConflict and zero mutation.
func (db *DB) BookRange(ctx context.Context, req *BookingRequest) ([]int64, error) {
	keys, err := req.rangeKeys()
	if err != nil {
		return nil, err
	}

	var ids []int64
	err = db.withTx(ctx, func(tx *sql.Tx) error {
		ids = ids[:0]
		for _, k := range keys {
			var id int64
			var status int
			err := tx.QueryRowContext(ctx,
				`SELECT id, status FROM slots WHERE date = ? AND time = ?`, k[0], k[1],
			).Scan(&id, &status)
			if err == sql.ErrNoRows {
				return fmt.Errorf("%w: slot %s %s does not exist", ErrSlotConflict, k[0], k[1])
			}
			if err != nil {
				return err
			}
			if model.Status(status) != model.StatusFree {
				return fmt.Errorf("%w: %s %s", ErrSlotConflict, k[0], k[1])
			}
			ids = append(ids, id)
		}

		for _, id := range ids {
			_, err := tx.ExecContext(ctx,
				`UPDATE slots SET status = ?, user_id = ?, group_name = ?, created_by = ?,
					booking_type = ?, comment = ?, contact_info = ?
				 WHERE id = ?`,
				int(model.StatusPending), req.UserID, req.GroupName, req.UserID,
				req.BookingType, req.Comment, req.ContactInfo, id,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ConfirmSlots flips pending slots to confirmed. Returns the number of rows
// actually changed so repeated callbacks surface as no-ops.
func (db *DB) ConfirmSlots(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := db.ExecContext(ctx,
		`UPDATE slots SET status = ? WHERE status = ? AND id IN (`+placeholders(len(ids))+`)`,
		append([]any{int(model.StatusConfirmed), int(model.StatusPending)}, int64Args(ids)...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReleaseSlots clears booking metadata and returns slots to free.
// Subscribers are preserved so a later freeing still reaches them.
func (db *DB) ReleaseSlots(ctx context.Context, ids []int64) (int64, error) {
	return db.clearSlots(ctx, ids, false)
}

// ClearSlots fully resets slots, subscribers included. Used after a cancel
// once the subscriber fan-out has been delivered.
func (db *DB) ClearSlots(ctx context.Context, ids []int64) (int64, error) {
	return db.clearSlots(ctx, ids, true)
}

func (db *DB) clearSlots(ctx context.Context, ids []int64, dropSubscribers bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `UPDATE slots SET status = 0, user_id = NULL, group_name = NULL,
		created_by = NULL, booking_type = NULL, comment = NULL, contact_info = NULL`
	if dropSubscribers {
		query += `, subscribed_users = NULL`
	}
	query += ` WHERE status != 0 AND id IN (` + placeholders(len(ids)) + `)`
	res, err := db.ExecContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AddSubscriber registers a user's interest in an occupied slot. The
// subscriber column keeps set semantics: adding twice is a no-op.
func (db *DB) AddSubscriber(ctx context.Context, date, timeStr string, userID int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var subs sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT subscribed_users FROM slots WHERE date = ? AND time = ?`, date, timeStr,
		).Scan(&subs)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		ids := model.ParseSubscribers(subs.String)
		for _, id := range ids {
			if id == userID {
				return nil
			}
		}
		ids = append(ids, userID)
		_, err = tx.ExecContext(ctx,
			`UPDATE slots SET subscribed_users = ? WHERE date = ? AND time = ?`,
			model.JoinSubscribers(ids), date, timeStr)
		return err
	})
}

// EnsureHorizon materializes hourly slots up to horizonDays ahead and purges
// rows older than retentionDays. Existing rows are left untouched.
func (db *DB) EnsureHorizon(ctx context.Context, now time.Time, horizonDays, retentionDays int) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		cutoff := now.AddDate(0, 0, -retentionDays).Format(model.DateLayout)
		res, err := tx.ExecContext(ctx, `DELETE FROM slots WHERE date < ?`, cutoff)
		if err != nil {
			return err
		}
		if purged, err := res.RowsAffected(); err == nil && purged > 0 {
			metrics.AddSlotsPurged(purged)
		}

		for i := 0; i < horizonDays; i++ {
			date := now.AddDate(0, 0, i).Format(model.DateLayout)
			for hour := 0; hour < 24; hour++ {
				_, err := tx.ExecContext(ctx,
					`INSERT OR IGNORE INTO slots (date, time, status) VALUES (?, ?, 0)`,
					date, fmt.Sprintf("%02d:00", hour))
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// BookedDaysWithin returns distinct upcoming dates that carry pending or
// confirmed slots, used by the cancellation flow's day picker.
func (db *DB) BookedDaysWithin(ctx context.Context, now time.Time, createdBy int64) ([]string, error) {
	query := `SELECT DISTINCT date FROM slots WHERE status IN (1, 2) AND date >= ?`
	args := []any{now.Format(model.DateLayout)}
	if createdBy != 0 {
		query += ` AND created_by = ?`
		args = append(args, createdBy)
	}
	query += ` ORDER BY date`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var days []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// DatesAhead returns the first n distinct dates present in the store,
// the renderer's column source.
func (db *DB) DatesAhead(ctx context.Context, now time.Time, n int) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT DISTINCT date FROM slots WHERE date >= ? ORDER BY date LIMIT ?`,
		now.Format(model.DateLayout), n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}
