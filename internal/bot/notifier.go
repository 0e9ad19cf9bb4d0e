package bot

import (
	"context"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"agent-scheduler/internal/repository"
)

// Notifier delivers task outcome notices over Telegram. It only sends;
// interactive commands belong to the surrounding dashboard, not here.
type Notifier struct {
	api      *tgbotapi.BotAPI
	userRepo *repository.UserRepository
	log      zerolog.Logger
}

func NewNotifier(token string, userRepo *repository.UserRepository, log zerolog.Logger) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	log.Info().Str("account", api.Self.UserName).Msg("notifier authorized")
	return &Notifier{api: api, userRepo: userRepo, log: log}, nil
}

// Notify sends a formatted message to the user's Telegram chat. The error
// return is informational; callers treat delivery as best-effort.
func (n *Notifier) Notify(ctx context.Context, userID uint, title, message string) error {
	user, err := n.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve notification target: %w", err)
	}

	text := fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(title), html.EscapeString(message))
	msg := tgbotapi.NewMessage(user.TelegramID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	n.log.Debug().Uint("user_id", userID).Int64("chat_id", user.TelegramID).Msg("notification sent")
	return nil
}

// LogNotifier is the fallback when no Telegram token is configured: notices
// go to the log and nowhere else.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, userID uint, title, message string) error {
	n.Log.Info().Uint("user_id", userID).Str("title", title).Str("message", message).
		Msg("notification (telegram disabled)")
	return nil
}
