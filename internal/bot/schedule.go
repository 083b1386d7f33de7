package bot

import (
	"bytes"
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"repbaza/internal/model"
	"repbaza/internal/render"
	"repbaza/internal/schedule"
)

// gridDays is how many days the schedule photo covers.
const gridDays = 14

// sendSchedulePhoto renders the two-week grid and sends it as a photo.
// Admins see group names and the pending/confirmed split.
func (b *Bot) sendSchedulePhoto(ctx context.Context, chatID, userID int64) {
	l := zerolog.Ctx(ctx)
	privileged := b.cfg.IsAdmin(userID)

	days, err := b.scheduleDays(ctx, privileged)
	if err != nil {
		l.Error().Err(err).Msg("failed to load schedule days")
		b.reply(chatID, "Не удалось построить расписание. Попробуйте позже.")
		return
	}
	if len(days) == 0 {
		b.reply(chatID, "Расписание пока пустое.")
		return
	}

	img, err := b.renderer.Grid(days, privileged)
	if err != nil {
		l.Error().Err(err).Msg("failed to render schedule grid")
		b.reply(chatID, "Не удалось построить расписание. Попробуйте позже.")
		return
	}
	var buf bytes.Buffer
	if err := b.renderer.EncodePNG(&buf, img); err != nil {
		l.Error().Err(err).Msg("failed to encode schedule grid")
		b.reply(chatID, "Не удалось построить расписание. Попробуйте позже.")
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{
		Name:  "schedule_grid.png",
		Bytes: buf.Bytes(),
	})
	photo.Caption = "Расписание на ближайшие дни:"
	if _, err := b.tg.Send(photo); err != nil {
		l.Error().Err(err).Msg("failed to send schedule photo")
	}
}

func (b *Bot) scheduleDays(ctx context.Context, privileged bool) ([]render.Day, error) {
	dates, err := b.db.DatesAhead(ctx, time.Now(), gridDays)
	if err != nil {
		return nil, err
	}
	days := make([]render.Day, 0, len(dates))
	for _, date := range dates {
		slots, err := b.db.SlotsForDay(ctx, date)
		if err != nil {
			return nil, err
		}
		days = append(days, render.Day{
			Date:    date,
			Entries: schedule.DayView(slots, privileged),
		})
	}
	return days, nil
}

func occupiedTimes(slots []model.Slot) []string {
	var times []string
	for _, s := range slots {
		if s.Status.Occupied() {
			times = append(times, s.Time)
		}
	}
	return times
}
