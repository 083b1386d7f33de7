// Package adminbot implements the review bot where admins confirm, reject
// and cancel bookings.
package adminbot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"repbaza/internal/config"
	"repbaza/internal/db"
	"repbaza/internal/notify"
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

const (
	btnPending  = "Просмотреть неподтвержденные брони"
	btnUpcoming = "Предстоящие брони"
	btnExport   = "Выгрузка в Excel"
	btnBackMenu = "Вернуться в меню"
)

// Bot serves the admin review loop. Replies go through its own Telegram
// account; messages to booking owners go through the user bot's account.
type Bot struct {
	cfg        *config.Config
	db         *db.DB
	tg         telegramClient
	userNotify *notify.Notifier
	logger     *zerolog.Logger
}

// New connects both bot accounts.
func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) (*Bot, error) {
	adminAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.AdminBotToken)
	if err != nil {
		return nil, err
	}
	adminAPI.Debug = cfg.Telegram.Debug
	userAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, err
	}
	return NewWithClients(&realTelegramClient{api: adminAPI}, &realTelegramClient{api: userAPI}, cfg, database, logger), nil
}

// NewWithClients allows injecting mocked Telegram clients for tests.
func NewWithClients(adminTG, userTG telegramClient, cfg *config.Config, database *db.DB, logger *zerolog.Logger) *Bot {
	return &Bot{
		cfg:        cfg,
		db:         database,
		tg:         adminTG,
		userNotify: notify.New(userTG, 25),
		logger:     logger,
	}
}

// Start polls updates until the context is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("admin bot authorized")

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
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message != nil {
		b.handleMessage(ctx, update.Message)
	}
}

var adminMenu = tgbotapi.NewReplyKeyboard(
	tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnPending)),
	tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnUpcoming)),
	tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnExport)),
)

func (b *Bot) sendMenu(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "Админ-меню:")
	msg.ReplyMarkup = adminMenu
	_, _ = b.tg.Send(msg)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.From == nil {
		return
	}
	if !b.cfg.IsAdmin(msg.From.ID) {
		b.reply(msg.Chat.ID, "❌ У вас нет прав для использования этого бота.")
		return
	}

	switch msg.Text {
	case "/start", btnBackMenu:
		b.sendMenu(msg.Chat.ID)
	case btnPending:
		b.sendPendingList(ctx, msg.Chat.ID)
	case btnUpcoming:
		b.sendUpcomingList(ctx, msg.Chat.ID)
	case btnExport:
		b.sendExport(ctx, msg.Chat.ID)
	default:
		b.sendMenu(msg.Chat.ID)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	_, _ = b.tg.Send(tgbotapi.NewMessage(chatID, text))
}
