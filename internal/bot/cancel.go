package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"repbaza/internal/booking"
	"repbaza/internal/callback"
	"repbaza/internal/model"
	"repbaza/internal/schedule"
)

func (b *Bot) startCancellation(ctx context.Context, chatID, userID int64) {
	sess := b.sessions.Reset(chatID)

	createdBy := userID
	if b.cfg.IsAdmin(userID) {
		createdBy = 0 // admins may cancel anyone's booking
	}
	days, err := b.db.BookedDaysWithin(ctx, time.Now(), createdBy)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to load booked days")
		b.reply(chatID, "Не удалось загрузить брони. Попробуйте позже.")
		return
	}
	if len(days) == 0 {
		b.reply(chatID, "У вас нет активных броней.")
		b.sendMainMenu(chatID)
		return
	}
	sess.To(booking.StateCancelDay)
	b.replyWithKeyboard(chatID, "Выберите день для отмены брони:", dateKeyboard(days))
}

// cancellableBookings lists the day's runs the user may cancel, including
// runs that roll in from the adjacent days.
func (b *Bot) cancellableBookings(ctx context.Context, date string, userID int64) ([]model.Booking, error) {
	prev, next, err := schedule.AdjacentDates(date)
	if err != nil {
		return nil, err
	}
	slots, err := b.db.SlotsForDates(ctx, []string{prev, date, next},
		[]model.Status{model.StatusPending, model.StatusConfirmed})
	if err != nil {
		return nil, err
	}
	groups := schedule.GroupForDate(slots, date)
	if b.cfg.IsAdmin(userID) {
		return groups, nil
	}
	var own []model.Booking
	for _, g := range groups {
		if g.UserID == userID {
			own = append(own, g)
		}
	}
	return own, nil
}

func bookingLabel(g *model.Booking) string {
	return fmt.Sprintf("%s, %s", g.TimeRange(), g.GroupName)
}

func (b *Bot) handleCancelDay(ctx context.Context, sess *booking.Session, userID int64, text string) {
	date, err := model.ParseHumanDate(text, time.Now())
	if err != nil {
		b.reply(sess.ChatID, "Неверный формат. Попробуйте снова.")
		return
	}
	groups, err := b.cancellableBookings(ctx, date, userID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to load bookings for cancellation")
		b.reply(sess.ChatID, "Не удалось загрузить брони. Попробуйте позже.")
		return
	}
	if len(groups) == 0 {
		b.reply(sess.ChatID, "На этот день броней нет. Выберите другой.")
		return
	}

	sess.Draft.Date = date
	sess.To(booking.StateCancelBooking)

	var rows [][]tgbotapi.KeyboardButton
	for i := range groups {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(bookingLabel(&groups[i]))))
	}
	rows = append(rows,
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnOtherDay)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnMainMenu)),
	)
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	b.replyWithKeyboard(sess.ChatID, "Выберите бронь для отмены:", kb)
}

func (b *Bot) handleCancelChoice(ctx context.Context, sess *booking.Session, userID int64, text string) {
	if text == btnOtherDay {
		b.startCancellation(ctx, sess.ChatID, userID)
		return
	}
	groups, err := b.cancellableBookings(ctx, sess.Draft.Date, userID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to load bookings for cancellation")
		b.reply(sess.ChatID, "Не удалось загрузить брони. Попробуйте позже.")
		return
	}
	for i := range groups {
		g := &groups[i]
		if bookingLabel(g) != text {
			continue
		}
		// The booking stays untouched until an admin approves; only the
		// request travels to the admin chats.
		b.sendCancelRequestToAdmins(ctx, g, userID)
		b.reply(sess.ChatID, "Запрос на отмену отправлен администратору.")
		sess.To(booking.StateIdle)
		b.sendMainMenu(sess.ChatID)
		return
	}
	b.reply(sess.ChatID, "Бронь не найдена. Выберите из списка.")
}

func (b *Bot) sendCancelRequestToAdmins(ctx context.Context, g *model.Booking, requestedBy int64) {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚫 Подтвердить отмену",
				callback.Format(callback.ActionCancel, g.IDs, g.UserID)),
		),
	)
	text := fmt.Sprintf(
		"🔔 Запрос на отмену брони!\nДата: %s\nВремя: %s\nГруппа: %s\nЗапросил: id %d",
		model.FormatDateHuman(g.Date), g.TimeRange(), g.GroupName, requestedBy,
	)
	for _, adminID := range b.cfg.Admins {
		msg := tgbotapi.NewMessage(adminID, text)
		msg.ReplyMarkup = markup
		_, _ = b.tg.Send(msg)
	}
	zerolog.Ctx(ctx).Info().
		Ints64("slot_ids", g.IDs).
		Int64("user_id", g.UserID).
		Int64("requested_by", requestedBy).
		Msg("cancellation request sent to admins")
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq == nil || cq.Message == nil {
		return
	}
	l := zerolog.Ctx(ctx)

	d, err := callback.Parse(cq.Data)
	if err != nil || d.Action != callback.ActionCancel {
		b.answerCallback(cq.ID, "Ошибка обработки запроса.")
		return
	}
	// Cancellation mutates state, so the button only works for admins even
	// when the booking owner somehow gets hold of the payload.
	if !b.cfg.IsAdmin(cq.From.ID) {
		b.answerCallback(cq.ID, "Отмена брони доступна только администратору.")
		return
	}

	slots, err := b.db.SlotsByIDs(ctx, d.SlotIDs)
	if err != nil {
		l.Error().Err(err).Msg("failed to load slots for cancellation")
		b.answerCallback(cq.ID, "Ошибка обработки запроса.")
		return
	}

	var occupied []model.Slot
	for _, s := range slots {
		if s.Status.Occupied() {
			occupied = append(occupied, s)
		}
	}
	if len(occupied) == 0 {
		b.answerCallback(cq.ID, "Бронь уже отменена.")
		b.clearInlineKeyboard(cq)
		return
	}
	if start, err := occupied[0].StartsAt(); err == nil && start.Before(time.Now()) {
		b.answerCallback(cq.ID, "Бронь уже началась, отмена невозможна.")
		return
	}

	freed := collectFreedTimes(occupied)
	subscribers := collectSubscribers(occupied)

	if _, err := b.db.ClearSlots(ctx, d.SlotIDs); err != nil {
		l.Error().Err(err).Msg("failed to clear slots")
		b.answerCallback(cq.ID, "Не удалось отменить бронь.")
		return
	}
	l.Info().
		Ints64("slot_ids", d.SlotIDs).
		Int64("user_id", d.UserID).
		Int64("admin_id", cq.From.ID).
		Msg("cancellation approved")

	b.answerCallback(cq.ID, "Бронь отменена.")
	b.clearInlineKeyboard(cq)
	b.notifier.Send(ctx, d.UserID, fmt.Sprintf(
		"Ваша бронь %s %s — «%s» отменена.",
		model.FormatDateHuman(occupied[0].Date), occupied[0].Time, occupied[0].GroupName,
	))
	b.notifySubscribersFreed(ctx, occupied[0].Date, freed, subscribers)
	b.notifier.Broadcast(ctx, b.cfg.Admins, fmt.Sprintf(
		"Бронь отменена: %s, %s — «%s».",
		model.FormatDateHuman(occupied[0].Date), occupied[0].Time, occupied[0].GroupName,
	))
}

func (b *Bot) answerCallback(id, text string) {
	_, _ = b.tg.Request(tgbotapi.NewCallback(id, text))
}

func (b *Bot) clearInlineKeyboard(cq *tgbotapi.CallbackQuery) {
	edit := tgbotapi.NewEditMessageReplyMarkup(cq.Message.Chat.ID, cq.Message.MessageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	_, _ = b.tg.Request(edit)
}

func collectFreedTimes(slots []model.Slot) []string {
	times := make([]string, 0, len(slots))
	for _, s := range slots {
		times = append(times, s.Time)
	}
	sort.Strings(times)
	return times
}

func collectSubscribers(slots []model.Slot) []int64 {
	seen := make(map[int64]struct{})
	var subs []int64
	for _, s := range slots {
		for _, id := range s.Subscribers {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				subs = append(subs, id)
			}
		}
	}
	return subs
}

// notifySubscribersFreed tells everyone waiting for these slots that the
// time opened up.
func (b *Bot) notifySubscribersFreed(ctx context.Context, date string, times []string, subscribers []int64) {
	if len(subscribers) == 0 || len(times) == 0 {
		return
	}
	text := fmt.Sprintf("🔔 У нас освободилось время!\n%s:\n%s",
		model.FormatDateHuman(date), strings.Join(times, "\n"))
	b.notifier.Broadcast(ctx, subscribers, text)
}

func (b *Bot) startSubscription(ctx context.Context, chatID int64) {
	sess := b.sessions.Reset(chatID)
	days, err := b.db.BookedDaysWithin(ctx, time.Now(), 0)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to load booked days")
		b.reply(chatID, "Не удалось загрузить занятые дни. Попробуйте позже.")
		return
	}
	if len(days) == 0 {
		b.reply(chatID, "Занятых дней нет — всё время свободно.")
		b.sendMainMenu(chatID)
		return
	}
	sess.To(booking.StateSubscribeDay)
	b.replyWithKeyboard(chatID, "Выберите день, за которым следить:", dateKeyboard(days))
}

func (b *Bot) handleSubscribeDay(ctx context.Context, sess *booking.Session, text string) {
	date, err := model.ParseHumanDate(text, time.Now())
	if err != nil {
		b.reply(sess.ChatID, "Неверный формат. Попробуйте снова.")
		return
	}
	slots, err := b.db.SlotsForDay(ctx, date)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to load day slots")
		b.reply(sess.ChatID, "Не удалось загрузить расписание. Попробуйте позже.")
		return
	}
	times := occupiedTimes(slots)
	if len(times) == 0 {
		b.reply(sess.ChatID, "На этот день всё свободно. Выберите другой.")
		return
	}

	sess.Draft.Date = date
	sess.To(booking.StateSubscribeTime)

	var rows [][]tgbotapi.KeyboardButton
	var row []tgbotapi.KeyboardButton
	for _, t := range times {
		row = append(row, tgbotapi.NewKeyboardButton(t))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnMainMenu)))
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	b.replyWithKeyboard(sess.ChatID, "Выберите время:", kb)
}

func (b *Bot) handleSubscribeTime(ctx context.Context, sess *booking.Session, userID int64, text string) {
	if err := b.db.AddSubscriber(ctx, sess.Draft.Date, text, userID); err != nil {
		b.reply(sess.ChatID, "Не удалось оформить подписку. Выберите время из списка.")
		return
	}
	zerolog.Ctx(ctx).Info().
		Int64("user_id", userID).
		Str("date", sess.Draft.Date).
		Str("time", text).
		Msg("slot subscription added")
	b.reply(sess.ChatID, "Готово! Мы сообщим, если это время освободится.")
	b.sendMainMenu(sess.ChatID)
}
