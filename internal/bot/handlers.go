package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"repbaza/internal/booking"
	"repbaza/internal/db"
	"repbaza/internal/metrics"
	"repbaza/internal/model"
	"repbaza/internal/schedule"
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.From == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	chatID := msg.Chat.ID

	switch text {
	case "/start":
		b.sendMainMenu(chatID)
		return
	case btnMainMenu:
		b.sendMainMenu(chatID)
		return
	case btnBook, btnBookAnother:
		b.startBooking(ctx, chatID)
		return
	case btnSchedule:
		b.sendSchedulePhoto(ctx, chatID, msg.From.ID)
		b.sendMainMenu(chatID)
		return
	case btnCancel:
		b.startCancellation(ctx, chatID, msg.From.ID)
		return
	case btnSubscribe:
		b.startSubscription(ctx, chatID)
		return
	}

	sess := b.sessions.Get(chatID)
	switch sess.Current() {
	case booking.StateChoosingDay:
		b.handleDayChoice(ctx, sess, text)
	case booking.StateChoosingTime:
		b.handleTimeChoice(ctx, sess, text)
	case booking.StateChoosingHours:
		b.handleHoursChoice(ctx, sess, text)
	case booking.StateGroupName:
		b.handleGroupName(ctx, sess, text)
	case booking.StateContact:
		b.handleContact(ctx, sess, text)
	case booking.StateBookingType:
		b.handleBookingType(ctx, sess, text)
	case booking.StateCustomType:
		b.handleCustomType(ctx, sess, text)
	case booking.StateComment:
		b.handleComment(ctx, sess, msg)
	case booking.StateSubscribeDay:
		b.handleSubscribeDay(ctx, sess, text)
	case booking.StateSubscribeTime:
		b.handleSubscribeTime(ctx, sess, msg.From.ID, text)
	case booking.StateCancelDay:
		b.handleCancelDay(ctx, sess, msg.From.ID, text)
	case booking.StateCancelBooking:
		b.handleCancelChoice(ctx, sess, msg.From.ID, text)
	default:
		b.sendMainMenu(chatID)
	}
}

// dateKeyboard lays date buttons out three per row with a way back home.
func dateKeyboard(dates []string, extra ...string) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	var row []tgbotapi.KeyboardButton
	for _, d := range dates {
		row = append(row, tgbotapi.NewKeyboardButton(model.FormatDateHuman(d)))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	for _, label := range extra {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(label)))
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnMainMenu)))
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}

func (b *Bot) startBooking(ctx context.Context, chatID int64) {
	sess := b.sessions.Reset(chatID)
	days, err := b.db.FreeDays(ctx, time.Now(), b.cfg.Booking.HorizonDays)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to load free days")
		b.reply(chatID, "Не удалось загрузить свободные дни. Попробуйте позже.")
		return
	}
	if len(days) == 0 {
		b.reply(chatID, "Все дни заняты.")
		b.sendMainMenu(chatID)
		return
	}
	sess.To(booking.StateChoosingDay)
	b.replyWithKeyboard(chatID, "Свободные дни:", dateKeyboard(days))
}

func (b *Bot) handleDayChoice(ctx context.Context, sess *booking.Session, text string) {
	date, err := model.ParseHumanDate(text, time.Now())
	if err != nil {
		b.reply(sess.ChatID, "Неверный формат. Попробуйте снова.")
		return
	}
	slots, err := b.db.SlotsForDay(ctx, date)
	if err != nil || len(slots) == 0 {
		b.reply(sess.ChatID, "День недоступен. Попробуйте другой.")
		return
	}

	free := schedule.FreeTimes(slots, time.Now())
	if len(free) == 0 {
		b.reply(sess.ChatID, "На этот день свободного времени нет. Выберите другой.")
		return
	}

	sess.Draft.Date = date
	sess.To(booking.StateChoosingTime)

	b.reply(sess.ChatID, b.daySummary(date, slots))

	var rows [][]tgbotapi.KeyboardButton
	var row []tgbotapi.KeyboardButton
	for _, t := range free {
		row = append(row, tgbotapi.NewKeyboardButton(t))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnOtherDay)))
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	b.replyWithKeyboard(sess.ChatID, "Выберите время:", kb)
}

func (b *Bot) daySummary(date string, slots []model.Slot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Расписание на %s:\n", model.FormatDateHuman(date))
	for _, e := range schedule.DayView(slots, false) {
		if e.Occupied {
			fmt.Fprintf(&sb, "%s — %s\n", e.Time, e.Label)
		} else {
			fmt.Fprintf(&sb, "%s —\n", e.Time)
		}
	}
	return sb.String()
}

func (b *Bot) handleTimeChoice(ctx context.Context, sess *booking.Session, text string) {
	if text == btnOtherDay {
		sess.To(booking.StateChoosingDay)
		b.startBooking(ctx, sess.ChatID)
		return
	}

	slot, err := b.db.SlotAt(ctx, sess.Draft.Date, text)
	if err != nil || slot.Status != model.StatusFree {
		b.reply(sess.ChatID, "Время занято или недоступно. Попробуйте снова.")
		return
	}

	maxHours := b.contiguousFreeHours(ctx, sess.Draft.Date, text)
	if maxHours > b.cfg.Booking.MaxHours {
		maxHours = b.cfg.Booking.MaxHours
	}

	sess.Draft.StartTime = text
	sess.To(booking.StateChoosingHours)

	var rows [][]tgbotapi.KeyboardButton
	var row []tgbotapi.KeyboardButton
	for h := 1; h <= maxHours; h++ {
		row = append(row, tgbotapi.NewKeyboardButton(fmt.Sprintf("%d %s", h, model.HourWord(h))))
		if len(row) == 4 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	b.replyWithKeyboard(sess.ChatID, "На сколько часов бронируем?", kb)
}

// contiguousFreeHours counts free hourly slots starting at the chosen time,
// rolling into the next day past midnight.
func (b *Bot) contiguousFreeHours(ctx context.Context, date, startTime string) int {
	start, err := time.Parse(model.DateLayout+" "+model.TimeLayout, date+" "+startTime)
	if err != nil {
		return 1
	}
	hours := 0
	cur := start
	for {
		slot, err := b.db.SlotAt(ctx, cur.Format(model.DateLayout), cur.Format(model.TimeLayout))
		if err != nil || slot.Status != model.StatusFree {
			break
		}
		hours++
		if hours >= b.cfg.Booking.MaxHours {
			break
		}
		cur = cur.Add(time.Hour)
	}
	if hours == 0 {
		hours = 1
	}
	return hours
}

func (b *Bot) handleHoursChoice(_ context.Context, sess *booking.Session, text string) {
	var hours int
	if _, err := fmt.Sscanf(text, "%d", &hours); err != nil || hours < 1 || hours > b.cfg.Booking.MaxHours {
		b.reply(sess.ChatID, "Выберите количество часов кнопкой.")
		return
	}
	sess.Draft.Hours = hours
	sess.To(booking.StateGroupName)
	b.replyWithKeyboard(sess.ChatID, "Введите название группы:", tgbotapi.NewRemoveKeyboard(true))
}

func (b *Bot) handleGroupName(_ context.Context, sess *booking.Session, text string) {
	if err := booking.ValidateInput(text, b.cfg.Booking.MaxInputLength); err != nil {
		b.reply(sess.ChatID, "Некорректное название. Попробуйте снова.")
		return
	}
	sess.Draft.GroupName = strings.TrimSpace(text)
	sess.To(booking.StateContact)
	b.reply(sess.ChatID, "Введите контакт для связи (телефон или @username):")
}

func (b *Bot) handleContact(_ context.Context, sess *booking.Session, text string) {
	if err := booking.ValidateInput(text, b.cfg.Booking.MaxInputLength); err != nil {
		b.reply(sess.ChatID, "Некорректный контакт. Попробуйте снова.")
		return
	}
	sess.Draft.ContactInfo = strings.TrimSpace(text)
	sess.To(booking.StateBookingType)

	var rows [][]tgbotapi.KeyboardButton
	for _, bt := range bookingTypes {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(bt)))
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	b.replyWithKeyboard(sess.ChatID, "Выберите тип брони:", kb)
}

func (b *Bot) handleBookingType(_ context.Context, sess *booking.Session, text string) {
	if text == btnTypeOther {
		sess.To(booking.StateCustomType)
		b.replyWithKeyboard(sess.ChatID, "Введите тип брони:", tgbotapi.NewRemoveKeyboard(true))
		return
	}
	valid := false
	for _, bt := range bookingTypes {
		if text == bt {
			valid = true
			break
		}
	}
	if !valid {
		b.reply(sess.ChatID, "Выберите тип брони кнопкой.")
		return
	}
	sess.Draft.BookingType = text
	sess.To(booking.StateComment)
	b.sendCommentPrompt(sess.ChatID)
}

func (b *Bot) handleCustomType(_ context.Context, sess *booking.Session, text string) {
	if err := booking.ValidateInput(text, b.cfg.Booking.MaxInputLength); err != nil {
		b.reply(sess.ChatID, "Некорректный тип. Попробуйте снова.")
		return
	}
	sess.Draft.BookingType = strings.TrimSpace(text)
	sess.To(booking.StateComment)
	b.sendCommentPrompt(sess.ChatID)
}

func (b *Bot) sendCommentPrompt(chatID int64) {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnSkip)),
	)
	kb.ResizeKeyboard = true
	b.replyWithKeyboard(chatID, "Введите комментарий или нажмите 'Ок' для пропуска:", kb)
}

func (b *Bot) handleComment(ctx context.Context, sess *booking.Session, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	comment := ""
	if text != btnSkip {
		if err := booking.ValidateInput(text, b.cfg.Booking.MaxInputLength); err != nil {
			b.reply(sess.ChatID, "Некорректный комментарий. Попробуйте снова.")
			return
		}
		comment = text
	}
	sess.Draft.Comment = comment
	b.commitBooking(ctx, sess, msg.From)
}

func (b *Bot) commitBooking(ctx context.Context, sess *booking.Session, from *tgbotapi.User) {
	l := zerolog.Ctx(ctx)
	d := sess.Draft

	ids, err := b.db.BookRange(ctx, &db.BookingRequest{
		Date:        d.Date,
		StartTime:   d.StartTime,
		Hours:       d.Hours,
		UserID:      from.ID,
		GroupName:   d.GroupName,
		BookingType: d.BookingType,
		Comment:     d.Comment,
		ContactInfo: d.ContactInfo,
	})
	if err != nil {
		if errors.Is(err, db.ErrSlotConflict) {
			b.reply(sess.ChatID, "Выбранное время уже занято. Начните заново.")
			b.startBooking(ctx, sess.ChatID)
			return
		}
		l.Error().Err(err).Msg("failed to book slots")
		b.reply(sess.ChatID, "Не удалось создать бронь. Попробуйте позже.")
		return
	}
	metrics.IncBookingCreated(d.BookingType)
	l.Info().
		Ints64("slot_ids", ids).
		Int64("user_id", from.ID).
		Str("date", d.Date).
		Str("time", d.StartTime).
		Int("hours", d.Hours).
		Msg("booking created")

	b.reply(sess.ChatID, fmt.Sprintf(
		"Вы забронировали: %s %s на %d %s — «%s». Бронь ожидает подтверждения администратора.",
		model.FormatDateHuman(d.Date), d.StartTime, d.Hours, model.HourWord(d.Hours), d.GroupName,
	))
	b.notifyAdminsNewBooking(ctx, &d, from)

	sess.To(booking.StateIdle)
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnBookAnother)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnMainMenu)),
	)
	kb.ResizeKeyboard = true
	b.replyWithKeyboard(sess.ChatID, "Что дальше?", kb)
}

func (b *Bot) notifyAdminsNewBooking(ctx context.Context, d *booking.Draft, from *tgbotapi.User) {
	note := fmt.Sprintf(
		"🔔 Новая бронь!\nДата: %s\nВремя: %s, %d %s\nГруппа: %s\nТип: %s\nКонтакт: %s\nКомментарий: %s\nСоздатель: %s (id %d)",
		d.Date, d.StartTime, d.Hours, model.HourWord(d.Hours),
		d.GroupName, d.BookingType, d.ContactInfo, d.Comment,
		from.FirstName, from.ID,
	)
	b.notifier.Broadcast(ctx, b.cfg.Admins, note)
}
