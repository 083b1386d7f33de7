// Package bot implements the user-facing booking bot.
package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"repbaza/internal/booking"
	"repbaza/internal/config"
	"repbaza/internal/db"
	"repbaza/internal/notify"
	"repbaza/internal/render"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}

// Menu and flow button labels.
const (
	btnBook        = "Забронировать время"
	btnSchedule    = "Посмотреть расписание"
	btnCancel      = "Отменить бронь"
	btnSubscribe   = "Подписаться на освобождение"
	btnOtherDay    = "Выбрать другой день"
	btnMainMenu    = "На главную"
	btnBookAnother = "Забронировать другое время"
	btnSkip        = "Ок"
	btnTypeOther   = "Другое"
)

var bookingTypes = []string{"Репетиция", "Запись", btnTypeOther}

// Bot runs the booking conversation over long polling.
type Bot struct {
	cfg      *config.Config
	db       *db.DB
	tg       telegramClient
	sessions *booking.Store
	notifier *notify.Notifier
	renderer *render.Renderer
	logger   *zerolog.Logger
}

// New connects to Telegram and builds the bot.
func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, err
	}
	api.Debug = cfg.Telegram.Debug
	return NewWithTelegramClient(&realTelegramClient{api: api}, cfg, database, logger)
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(tg telegramClient, cfg *config.Config, database *db.DB, logger *zerolog.Logger) (*Bot, error) {
	renderer, err := render.NewRenderer()
	if err != nil {
		return nil, err
	}
	return &Bot{
		cfg:      cfg,
		db:       database,
		tg:       tg,
		sessions: booking.NewStore(0),
		notifier: notify.New(tg, 25),
		renderer: renderer,
		logger:   logger,
	}, nil
}

// Start polls updates until the context is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("booking bot authorized")

	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			requestID := uuid.New().String()
			l := b.logger.With().Str("request_id", requestID).Logger()
			b.handleUpdate(l.WithContext(ctx), &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	if update.CallbackQuery != nil {
		l.Debug().
			Int64("user_id", update.CallbackQuery.From.ID).
			Str("data", update.CallbackQuery.Data).
			Msg("handling callback query")
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message != nil {
		l.Debug().
			Int64("user_id", update.Message.From.ID).
			Str("text", update.Message.Text).
			Msg("handling message")
		b.handleMessage(ctx, update.Message)
	}
}

var mainMenu = tgbotapi.NewReplyKeyboard(
	tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnBook)),
	tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnSchedule)),
	tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancel)),
	tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnSubscribe)),
)

func (b *Bot) sendMainMenu(chatID int64) {
	b.sessions.Reset(chatID)
	msg := tgbotapi.NewMessage(chatID, "Выберите действие:")
	msg.ReplyMarkup = mainMenu
	_, _ = b.tg.Send(msg)
}

func (b *Bot) reply(chatID int64, text string) {
	_, _ = b.tg.Send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) replyWithKeyboard(chatID int64, text string, kb any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	_, _ = b.tg.Send(msg)
}
