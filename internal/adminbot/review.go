package adminbot

import (
	"bytes"
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"repbaza/internal/callback"
	"repbaza/internal/export"
	"repbaza/internal/metrics"
	"repbaza/internal/model"
	"repbaza/internal/schedule"
)

// exportDays is the horizon of the upcoming list and the Excel workbook.
const exportDays = 14

func formatBookingInfo(g *model.Booking) string {
	return fmt.Sprintf(
		"Дата: %s\nВремя: %s\nГруппа: %s\nТип: %s\nКонтакт: %s\nКомментарий: %s",
		model.FormatDateHuman(g.Date), g.TimeRange(), g.GroupName, g.BookingType, g.ContactInfo, g.Comment,
	)
}

// sendPendingList shows every unconfirmed run with confirm/reject buttons.
func (b *Bot) sendPendingList(ctx context.Context, chatID int64) {
	slots, err := b.db.PendingSlots(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to load pending slots")
		b.reply(chatID, "Ошибка получения заявок.")
		return
	}
	groups := schedule.Group(slots)
	if len(groups) == 0 {
		b.reply(chatID, "Нет неподтвержденных броней.")
		b.sendMenu(chatID)
		return
	}

	for i := range groups {
		g := &groups[i]
		msg := tgbotapi.NewMessage(chatID, formatBookingInfo(g))
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Подтвердить",
					callback.Format(callback.ActionConfirm, g.IDs, g.UserID)),
				tgbotapi.NewInlineKeyboardButtonData("❌ Отклонить",
					callback.Format(callback.ActionReject, g.IDs, g.UserID)),
			),
		)
		_, _ = b.tg.Send(msg)
	}
	b.sendContinueKeyboard(chatID)
}

// sendUpcomingList shows the next two weeks of occupied runs; confirmed
// ones carry a cancel button.
func (b *Bot) sendUpcomingList(ctx context.Context, chatID int64) {
	dates, err := b.db.DatesAhead(ctx, time.Now(), exportDays)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to load dates")
		b.reply(chatID, "Ошибка получения расписания.")
		return
	}
	slots, err := b.db.SlotsForDates(ctx, dates, []model.Status{model.StatusPending, model.StatusConfirmed})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to load slots")
		b.reply(chatID, "Ошибка получения расписания.")
		return
	}
	groups := schedule.Group(slots)
	if len(groups) == 0 {
		b.reply(chatID, "Предстоящих броней нет.")
		b.sendMenu(chatID)
		return
	}

	for i := range groups {
		g := &groups[i]
		text := fmt.Sprintf("%s [%s]", formatBookingInfo(g), g.Status)
		msg := tgbotapi.NewMessage(chatID, text)
		if g.Status == model.StatusConfirmed {
			msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
				tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData("🚫 Отменить бронь",
						callback.Format(callback.ActionCancel, g.IDs, g.UserID)),
				),
			)
		}
		_, _ = b.tg.Send(msg)
	}
	b.sendContinueKeyboard(chatID)
}

func (b *Bot) sendContinueKeyboard(chatID int64) {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnPending)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnBackMenu)),
	)
	kb.ResizeKeyboard = true
	msg := tgbotapi.NewMessage(chatID, "Выберите действие:")
	msg.ReplyMarkup = kb
	_, _ = b.tg.Send(msg)
}

// sendExport builds the two-week workbook and sends it as a document.
func (b *Bot) sendExport(ctx context.Context, chatID int64) {
	l := zerolog.Ctx(ctx)

	dates, err := b.db.DatesAhead(ctx, time.Now(), exportDays)
	if err != nil || len(dates) == 0 {
		l.Error().Err(err).Msg("failed to load dates for export")
		b.reply(chatID, "Не удалось сформировать выгрузку.")
		return
	}
	byDate := make(map[string][]model.Booking, len(dates))
	for _, date := range dates {
		prev, next, err := schedule.AdjacentDates(date)
		if err != nil {
			continue
		}
		slots, err := b.db.SlotsForDates(ctx, []string{prev, date, next},
			[]model.Status{model.StatusPending, model.StatusConfirmed})
		if err != nil {
			l.Error().Err(err).Str("date", date).Msg("failed to load slots for export")
			b.reply(chatID, "Не удалось сформировать выгрузку.")
			return
		}
		byDate[date] = schedule.GroupForDate(slots, date)
	}

	wb, err := export.Schedule(dates, byDate)
	if err != nil {
		l.Error().Err(err).Msg("failed to build workbook")
		b.reply(chatID, "Не удалось сформировать выгрузку.")
		return
	}
	defer wb.Close()

	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		l.Error().Err(err).Msg("failed to serialize workbook")
		b.reply(chatID, "Не удалось сформировать выгрузку.")
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  "schedule.xlsx",
		Bytes: buf.Bytes(),
	})
	doc.Caption = "Брони на ближайшие две недели"
	if _, err := b.tg.Send(doc); err != nil {
		l.Error().Err(err).Msg("failed to send workbook")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq == nil || cq.Message == nil {
		return
	}
	l := zerolog.Ctx(ctx)

	if !b.cfg.IsAdmin(cq.From.ID) {
		b.answerCallback(cq.ID, "❌ У вас нет прав для выполнения этой операции.")
		return
	}
	d, err := callback.Parse(cq.Data)
	if err != nil {
		b.answerCallback(cq.ID, "Ошибка обработки запроса.")
		return
	}

	switch d.Action {
	case callback.ActionConfirm:
		b.confirm(ctx, cq, d)
	case callback.ActionReject:
		b.reject(ctx, cq, d)
	case callback.ActionCancel:
		b.cancel(ctx, cq, d)
	}

	l.Info().
		Str("action", d.Action).
		Ints64("slot_ids", d.SlotIDs).
		Int64("admin_id", cq.From.ID).
		Msg("admin decision handled")
}

// loadActionable re-reads the slots behind a callback and filters the runs
// that already started or were processed, so stale buttons become no-ops.
func (b *Bot) loadActionable(ctx context.Context, cq *tgbotapi.CallbackQuery, ids []int64, want model.Status) []model.Slot {
	slots, err := b.db.SlotsByIDs(ctx, ids)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to load slots for decision")
		b.answerCallback(cq.ID, "Ошибка обработки запроса.")
		return nil
	}
	var live []model.Slot
	for _, s := range slots {
		if s.Status == want {
			live = append(live, s)
		}
	}
	if len(live) == 0 {
		b.answerCallback(cq.ID, "Бронь уже обработана.")
		b.clearInlineKeyboard(cq)
		return nil
	}
	if start, err := live[0].StartsAt(); err == nil && start.Before(time.Now()) {
		b.answerCallback(cq.ID, "Бронь уже в прошлом.")
		b.clearInlineKeyboard(cq)
		return nil
	}
	return live
}

func (b *Bot) confirm(ctx context.Context, cq *tgbotapi.CallbackQuery, d *callback.Decision) {
	live := b.loadActionable(ctx, cq, d.SlotIDs, model.StatusPending)
	if live == nil {
		return
	}
	affected, err := b.db.ConfirmSlots(ctx, d.SlotIDs)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to confirm slots")
		b.answerCallback(cq.ID, "Не удалось подтвердить бронь.")
		return
	}
	if affected == 0 {
		b.answerCallback(cq.ID, "Бронь уже обработана.")
		b.clearInlineKeyboard(cq)
		return
	}
	metrics.IncAdminDecision("confirm")

	first := live[0]
	b.userNotify.Send(ctx, d.UserID, fmt.Sprintf(
		"Ваша бронь подтверждена, ожидаем вас на репетиционной базе %s с %s.",
		model.FormatDateHuman(first.Date), first.Time,
	))
	b.answerCallback(cq.ID, "Бронь подтверждена.")
	b.finishDecision(cq)
}

func (b *Bot) reject(ctx context.Context, cq *tgbotapi.CallbackQuery, d *callback.Decision) {
	live := b.loadActionable(ctx, cq, d.SlotIDs, model.StatusPending)
	if live == nil {
		return
	}
	// Subscribers stay on the slot: the time is free again and they may
	// still want it.
	if _, err := b.db.ReleaseSlots(ctx, d.SlotIDs); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to release slots")
		b.answerCallback(cq.ID, "Не удалось отклонить бронь.")
		return
	}
	metrics.IncAdminDecision("reject")

	b.userNotify.Send(ctx, d.UserID,
		"Ваша бронь отклонена. Приносим извинения за неудобства. Предлагаем выбрать другое время.")
	b.answerCallback(cq.ID, "Бронь отклонена.")
	b.finishDecision(cq)
}

func (b *Bot) cancel(ctx context.Context, cq *tgbotapi.CallbackQuery, d *callback.Decision) {
	live := b.loadActionable(ctx, cq, d.SlotIDs, model.StatusConfirmed)
	if live == nil {
		return
	}

	first := live[0]
	var times []string
	subscribers := make(map[int64]struct{})
	for _, s := range live {
		times = append(times, s.Time)
		for _, id := range s.Subscribers {
			subscribers[id] = struct{}{}
		}
	}

	if _, err := b.db.ClearSlots(ctx, d.SlotIDs); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to clear slots")
		b.answerCallback(cq.ID, "Не удалось отменить бронь.")
		return
	}
	metrics.IncAdminDecision("cancel")

	// The range end is exclusive: one hour past the last slot's start.
	start, end := times[0], times[len(times)-1]
	if lastStart, err := live[len(live)-1].StartsAt(); err == nil {
		end = lastStart.Add(time.Hour).Format(model.TimeLayout)
	}
	b.userNotify.Send(ctx, d.UserID, fmt.Sprintf(
		"❌ К сожалению, мы были вынуждены отменить вашу бронь для группы «%s»\n%s с %s по %s.\nПриносим свои извинения за доставленные неудобства.",
		first.GroupName, model.FormatDateHuman(first.Date), start, end,
	))

	if len(subscribers) > 0 {
		ids := make([]int64, 0, len(subscribers))
		for id := range subscribers {
			ids = append(ids, id)
		}
		b.userNotify.Broadcast(ctx, ids, fmt.Sprintf(
			"🔔 У нас освободилось время!\n%s:\n%s",
			model.FormatDateHuman(first.Date), joinLines(times),
		))
	}

	b.answerCallback(cq.ID, "Бронь отменена.")
	b.finishDecision(cq)
}

func joinLines(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += "\n"
		}
		out += s
	}
	return out
}

func (b *Bot) finishDecision(cq *tgbotapi.CallbackQuery) {
	b.clearInlineKeyboard(cq)
	msg := tgbotapi.NewMessage(cq.Message.Chat.ID, "Продолжить работу?")
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnPending)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnBackMenu)),
	)
	kb.ResizeKeyboard = true
	msg.ReplyMarkup = kb
	_, _ = b.tg.Send(msg)
}

func (b *Bot) answerCallback(id, text string) {
	_, _ = b.tg.Request(tgbotapi.NewCallback(id, text))
}

func (b *Bot) clearInlineKeyboard(cq *tgbotapi.CallbackQuery) {
	edit := tgbotapi.NewEditMessageReplyMarkup(cq.Message.Chat.ID, cq.Message.MessageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	_, _ = b.tg.Request(edit)
}
