// Package notify sends best-effort Telegram messages with a global rate
// limit. Delivery failures are logged and counted, never propagated.
package notify

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"repbaza/internal/metrics"
)

// TelegramSender is the subset of the bot API used for outbound messages.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier wraps a Telegram sender with a token-bucket limiter so bursts of
// fan-out messages stay under the Bot API flood limits.
type Notifier struct {
	sender  TelegramSender
	limiter *rate.Limiter
}

// New creates a Notifier sending at most perSecond messages per second.
func New(sender TelegramSender, perSecond float64) *Notifier {
	if perSecond <= 0 {
		perSecond = 25
	}
	return &Notifier{
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Send delivers a message to the chat. Errors are swallowed after logging;
// a notification must never fail the operation that triggered it.
func (n *Notifier) Send(ctx context.Context, chatID int64, text string) {
	n.SendMessage(ctx, tgbotapi.NewMessage(chatID, text))
}

// SendMessage delivers an arbitrary prepared message config.
func (n *Notifier) SendMessage(ctx context.Context, msg tgbotapi.MessageConfig) {
	log := zerolog.Ctx(ctx)

	if err := n.limiter.Wait(ctx); err != nil {
		log.Warn().Err(err).Int64("chat_id", msg.ChatID).Msg("notification dropped: limiter wait")
		metrics.IncNotifyFailure()
		return
	}
	if _, err := n.sender.Send(msg); err != nil {
		log.Warn().Err(err).Int64("chat_id", msg.ChatID).Msg("failed to send notification")
		metrics.IncNotifyFailure()
		return
	}
	log.Debug().Int64("chat_id", msg.ChatID).Msg("notification sent")
}

// Broadcast sends the same text to every chat in ids, deduplicating ids.
func (n *Notifier) Broadcast(ctx context.Context, ids []int64, text string) {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		n.Send(ctx, id, text)
	}
}
