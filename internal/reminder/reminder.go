// Package reminder notifies users ahead of their confirmed bookings.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"repbaza/internal/db"
	"repbaza/internal/metrics"
	"repbaza/internal/model"
)

// sentTTL keeps dedup markers long enough to outlive every lead window.
const sentTTL = 48 * time.Hour

// Notifier delivers the reminder text.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string)
}

// Service scans for confirmed bookings starting one lead window from now
// and reminds their owners. A Redis marker per slot and lead makes the scan
// safe to rerun.
type Service struct {
	db       *db.DB
	notifier Notifier
	ledger   *redis.Client
	leads    []time.Duration
	interval time.Duration
}

// New creates the reminder service. Leads are the advance windows, e.g.
// 2h and 24h.
func New(database *db.DB, notifier Notifier, ledger *redis.Client, leads []time.Duration) *Service {
	if len(leads) == 0 {
		leads = []time.Duration{2 * time.Hour, 24 * time.Hour}
	}
	return &Service{
		db:       database,
		notifier: notifier,
		ledger:   ledger,
		leads:    leads,
		interval: 10 * time.Minute,
	}
}

// Run checks immediately, then on every tick until the context is done.
func (s *Service) Run(ctx context.Context) {
	s.CheckNow(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckNow(ctx)
		}
	}
}

// CheckNow runs one pass over all lead windows.
func (s *Service) CheckNow(ctx context.Context) {
	now := time.Now()
	for _, lead := range s.leads {
		if err := s.checkLead(ctx, now, lead); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Dur("lead", lead).Msg("reminder pass failed")
		}
	}
}

func (s *Service) checkLead(ctx context.Context, now time.Time, lead time.Duration) error {
	log := zerolog.Ctx(ctx)
	target := now.Add(lead).Truncate(time.Hour)
	date := target.Format(model.DateLayout)
	hour := target.Format(model.TimeLayout)

	slots, err := s.db.ConfirmedStartingAt(ctx, date, hour)
	if err != nil {
		return fmt.Errorf("load confirmed slots: %w", err)
	}

	for _, slot := range slots {
		// A slot in the middle of a longer booking gets no reminder of its
		// own; the first hour already covered it.
		cont, err := s.isContinuation(ctx, slot, target)
		if err != nil {
			return err
		}
		if cont {
			continue
		}

		leadLabel := fmt.Sprintf("%dh", int(lead.Hours()))
		key := fmt.Sprintf("reminder:%d:%s", slot.ID, leadLabel)
		acquired, err := s.ledger.SetNX(ctx, key, "1", sentTTL).Result()
		if err != nil {
			return fmt.Errorf("mark reminder sent: %w", err)
		}
		if !acquired {
			continue
		}

		end, err := s.bookingEnd(ctx, slot, target)
		if err != nil {
			return err
		}

		s.notifier.Send(ctx, slot.UserID, reminderText(slot, target, end))
		metrics.IncReminderSent(leadLabel)
		log.Info().
			Int64("slot_id", slot.ID).
			Int64("user_id", slot.UserID).
			Str("lead", leadLabel).
			Msg("reminder sent")
	}
	return nil
}

// isContinuation reports whether the hour before this slot belongs to the
// same booking.
func (s *Service) isContinuation(ctx context.Context, slot model.Slot, start time.Time) (bool, error) {
	prev := start.Add(-time.Hour)
	prevSlot, err := s.db.SlotAt(ctx, prev.Format(model.DateLayout), prev.Format(model.TimeLayout))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return prevSlot.Status.Occupied() &&
		prevSlot.GroupName == slot.GroupName &&
		prevSlot.CreatedBy == slot.CreatedBy, nil
}

// bookingEnd walks forward over contiguous occupied slots of the same
// booking to find when it ends.
func (s *Service) bookingEnd(ctx context.Context, slot model.Slot, start time.Time) (time.Time, error) {
	end := start.Add(time.Hour)
	for {
		next, err := s.db.SlotAt(ctx, end.Format(model.DateLayout), end.Format(model.TimeLayout))
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return end, nil
			}
			return end, err
		}
		if !next.Status.Occupied() || next.GroupName != slot.GroupName || next.CreatedBy != slot.CreatedBy {
			return end, nil
		}
		end = end.Add(time.Hour)
	}
}

func reminderText(slot model.Slot, start, end time.Time) string {
	return fmt.Sprintf(
		"Напоминание: у вас бронь %s с %s до %s (группа «%s»).",
		model.FormatDateHuman(slot.Date),
		start.Format(model.TimeLayout),
		end.Format(model.TimeLayout),
		slot.GroupName,
	)
}
