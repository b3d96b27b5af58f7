package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/flashblaze/drinky-bot/internal/alarm"
)

// Notifier renders alarm notifications as Telegram messages.
type Notifier struct {
	bot BotAPI
}

var _ alarm.Notifier = (*Notifier)(nil)

// NewNotifier creates a Notifier sending through bot.
func NewNotifier(bot BotAPI) *Notifier {
	return &Notifier{bot: bot}
}

// Notify sends a reminder with quick-log buttons, or a congratulation.
func (n *Notifier) Notify(_ context.Context, chatID int64, note alarm.Notification) error {
	var msg tgbotapi.MessageConfig
	switch note.Kind {
	case alarm.NotifyGoalReached:
		msg = tgbotapi.NewMessage(chatID, congratsText(note))
	default:
		msg = tgbotapi.NewMessage(chatID, reminderText(note))
		if len(note.QuickLogML) > 0 {
			msg.ReplyMarkup = amountKeyboard(note.QuickLogML)
		}
	}
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	_, err := n.bot.Send(msg)
	return err
}
