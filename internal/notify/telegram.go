package notify

import (
	"complaintflow/backend/internal/localization"
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// messageSender is the slice of *tgbotapi.BotAPI used here.
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts notifications into the moderators' chat.
type TelegramNotifier struct {
	bot       messageSender
	ChatID    int64
	Language  string
	Localizer *localization.Localizer
	logger    *zap.Logger
}

func NewTelegramNotifier(token string, chatID int64, lang string, loc *localization.Localizer, logger *zap.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	bot.Debug = false
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("telegram bot authorized", zap.String("account", bot.Self.UserName))
	return newTelegramNotifier(bot, chatID, lang, loc, logger), nil
}

func newTelegramNotifier(bot messageSender, chatID int64, lang string, loc *localization.Localizer, logger *zap.Logger) *TelegramNotifier {
	if lang == "" {
		lang = localization.DefaultLanguage
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramNotifier{bot: bot, ChatID: chatID, Language: lang, Localizer: loc, logger: logger}
}

func (t *TelegramNotifier) Notify(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.ChatID, t.render(n))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send for complaint %d: %w", n.ComplaintID, err)
	}
	t.logger.Debug("telegram notification sent",
		zap.Int64("complaint_id", n.ComplaintID), zap.String("kind", string(n.Kind)))
	return nil
}

func (t *TelegramNotifier) render(n Notification) string {
	switch n.Kind {
	case KindBlocked:
		return t.Localizer.Format(t.Language, "notify.blocked", n.ComplaintID, n.Reason)
	case KindRedirected:
		var executorID int64
		if n.ExecutorID != nil {
			executorID = *n.ExecutorID
		}
		status := t.Localizer.Format(t.Language, "notify.status", n.Status)
		if n.Reason != "" {
			status = n.Reason + "\n" + status
		}
		return t.Localizer.Format(t.Language, "notify.redirected", n.ComplaintID, executorID, status)
	default:
		return t.Localizer.Format(t.Language, "notify.unknown_kind", n.ComplaintID, n.Reason)
	}
}
