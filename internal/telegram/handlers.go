package telegram

import (
	"context"
	"errors"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/flashblaze/drinky-bot/internal/alarm"
	"github.com/flashblaze/drinky-bot/internal/domain"
	"github.com/flashblaze/drinky-bot/internal/store"
	"github.com/flashblaze/drinky-bot/internal/tracker"
)

// --- Generic helpers ---

func (r *Router) sendText(chatID int64, text string) {
	if _, err := r.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.log.Warn("send failed", zap.Error(err), zap.Int64("chatID", chatID))
	}
}

func (r *Router) sendMarkdown(chatID int64, text string) {
	r.sendWithMarkup(chatID, text, tgbotapi.ModeMarkdownV2, nil)
}

func (r *Router) sendWithMarkup(chatID int64, text, parseMode string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("send failed", zap.Error(err), zap.Int64("chatID", chatID))
	}
}

// editMarkdown replaces a menu message in place.
func (r *Router) editMarkdown(chatID int64, msgID int, text string, markup tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, text, markup)
	edit.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := r.bot.Request(edit); err != nil {
		r.log.Warn("edit failed", zap.Error(err), zap.Int64("chatID", chatID))
	}
}

func (r *Router) answerCallback(id, text string) error {
	_, err := r.bot.Request(tgbotapi.NewCallback(id, text))
	return err
}

// fail logs err and tells the user what went wrong in terms they can act on.
func (r *Router) fail(chatID int64, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInterval):
		r.sendText(chatID, "Invalid interval. It must be between 10 minutes and 24 hours.")
		return
	case errors.Is(err, domain.ErrInvalidTimezone):
		r.sendText(chatID, "Invalid timezone. Example: Europe/Berlin")
		return
	case errors.Is(err, domain.ErrInvalidAmount):
		r.sendText(chatID, "Please enter a valid amount in ml.")
		return
	case errors.Is(err, store.ErrNotFound):
		r.sendText(chatID, "User not found. Send /start first.")
		return
	case errors.Is(err, alarm.ErrTimerCommit):
		r.log.Error(op+" failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Your settings were saved, but the next reminder could not be scheduled. Please try again.")
		return
	}
	r.log.Error(op+" failed", zap.Error(err), zap.Int64("chatID", chatID))
	r.sendText(chatID, genericErrText)
}

// --- Core commands ---

func (r *Router) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	p := tracker.Profile{ChatID: msg.Chat.ID}
	if from := msg.From; from != nil {
		p.Username = from.UserName
		p.FirstName = from.FirstName
		p.LastName = from.LastName
		p.LanguageCode = from.LanguageCode
	}
	u, _, err := r.svc.Register(ctx, p)
	if err != nil {
		r.log.Error("register failed", zap.Error(err))
		r.sendText(p.ChatID, "Profile initialization error. Please try again later.")
		return
	}
	r.sendWithMarkup(p.ChatID, welcomeText(u), "", mainMenuKeyboard(r.dev))
}

func (r *Router) handleLog(ctx context.Context, chatID int64, args string) {
	if args == "" {
		r.sendMarkdown(chatID, logPromptMD)
		return
	}
	amount, err := domain.ParseAmount(args)
	if err != nil {
		r.sendText(chatID, "Please enter a valid amount in ml. Amount must be between 1 and 10000 ml.")
		return
	}
	if _, err := r.svc.LogIntake(ctx, chatID, amount); err != nil {
		r.fail(chatID, "log intake", err)
		return
	}
	r.sendText(chatID, "💧 Logged "+strconv.Itoa(amount)+" ml")
}

func (r *Router) handleGoal(ctx context.Context, chatID int64, args string) {
	if args == "" {
		u, err := r.svc.EnsureUser(ctx, chatID)
		if err != nil {
			r.fail(chatID, "get goal", err)
			return
		}
		r.sendMarkdown(chatID, goalText(u.GoalML))
		return
	}
	goal, err := domain.ParseGoal(args)
	if err != nil {
		r.sendText(chatID, "Please enter a valid goal in ml. Goal must be between 0 and 10000 ml.")
		return
	}
	if err := r.svc.SetGoal(ctx, chatID, goal); err != nil {
		r.fail(chatID, "set goal", err)
		return
	}
	r.sendText(chatID, "Goal set to "+strconv.Itoa(goal)+" ml")
}

func (r *Router) handleStats(ctx context.Context, chatID int64) {
	st, err := r.svc.Today(ctx, chatID)
	if err != nil {
		r.fail(chatID, "stats", err)
		return
	}
	r.sendMarkdown(chatID, statsText(st))
}

// --- Reminder settings ---

func (r *Router) handleSettings(ctx context.Context, chatID int64) {
	u, err := r.svc.EnsureUser(ctx, chatID)
	if err != nil {
		r.fail(chatID, "settings", err)
		return
	}
	r.sendWithMarkup(chatID, settingsText(u), tgbotapi.ModeMarkdownV2, settingsKeyboard(u.ReminderEnabled))
}

func (r *Router) handleToggle(ctx context.Context, chatID int64, msgID int) {
	u, err := r.svc.ToggleReminders(ctx, chatID)
	if err != nil {
		r.fail(chatID, "toggle reminders", err)
		return
	}
	if u.ReminderEnabled {
		r.sendText(chatID, "✅ Reminders enabled")
	} else {
		r.sendText(chatID, "❌ Reminders disabled")
	}
	r.editMarkdown(chatID, msgID, settingsText(u), settingsKeyboard(u.ReminderEnabled))
}

func (r *Router) showIntervalMenu(ctx context.Context, chatID int64, msgID int) {
	u, err := r.svc.EnsureUser(ctx, chatID)
	if err != nil {
		r.fail(chatID, "interval menu", err)
		return
	}
	r.editMarkdown(chatID, msgID, intervalMenuText(u), intervalKeyboard(u.ReminderIntervalMin))
}

func (r *Router) handleIntervalPreset(ctx context.Context, chatID int64, msgID int, val string) {
	mins, err := strconv.Atoi(val)
	if err != nil {
		return
	}
	u, err := r.svc.UpdateReminderSettings(ctx, chatID, domain.ReminderSettingsUpdate{IntervalMin: &mins})
	if err != nil {
		r.fail(chatID, "update interval", err)
		return
	}
	r.sendText(chatID, "✅ Interval set to "+domain.FormatMinutes(mins))
	r.editMarkdown(chatID, msgID, settingsText(u), settingsKeyboard(u.ReminderEnabled))
}

// applyInterval handles free-form intervals like "45m" or "1h30m".
func (r *Router) applyInterval(ctx context.Context, chatID int64, text string) {
	d, err := domain.ParseDurationHuman(text)
	if err != nil {
		r.sendText(chatID, "Invalid interval. Examples: 45m, 1h, 1h30m (between 10m and 24h).")
		return
	}
	mins := int(d.Minutes())
	if _, err := r.svc.UpdateReminderSettings(ctx, chatID, domain.ReminderSettingsUpdate{IntervalMin: &mins}); err != nil {
		r.fail(chatID, "update interval", err)
		return
	}
	r.sendText(chatID, "✅ Interval set to "+domain.FormatMinutes(mins))
}

func (r *Router) showTZMenu(ctx context.Context, chatID int64, msgID int) {
	u, err := r.svc.EnsureUser(ctx, chatID)
	if err != nil {
		r.fail(chatID, "timezone menu", err)
		return
	}
	r.editMarkdown(chatID, msgID, timezoneMenuText(u), timezoneKeyboard(u.ReminderTZ))
}

func (r *Router) handleTZPreset(ctx context.Context, chatID int64, msgID int, code string) {
	p, ok := presetZone(code)
	if !ok {
		return
	}
	u, err := r.svc.UpdateReminderSettings(ctx, chatID, domain.ReminderSettingsUpdate{TZ: &p.zone})
	if err != nil {
		r.fail(chatID, "update timezone", err)
		return
	}
	r.sendText(chatID, "✅ Timezone set to "+p.label)
	r.editMarkdown(chatID, msgID, settingsText(u), settingsKeyboard(u.ReminderEnabled))
}

// applyTZ handles a typed IANA timezone name.
func (r *Router) applyTZ(ctx context.Context, chatID int64, text string) {
	u, err := r.svc.UpdateReminderSettings(ctx, chatID, domain.ReminderSettingsUpdate{TZ: &text})
	if err != nil {
		r.fail(chatID, "update timezone", err)
		return
	}
	r.sendText(chatID, "✅ Timezone set to "+u.ReminderTZ)
}

func (r *Router) handleLocation(ctx context.Context, chatID int64, loc *tgbotapi.Location) {
	tz, err := r.geo.Lookup(loc.Latitude, loc.Longitude)
	if err != nil {
		r.log.Warn("timezone lookup failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendWithMarkup(chatID, "Could not detect a timezone for this location. Pick one in /settings.", "",
			tgbotapi.NewRemoveKeyboard(true))
		return
	}
	if _, err := r.svc.UpdateReminderSettings(ctx, chatID, domain.ReminderSettingsUpdate{TZ: &tz}); err != nil {
		r.fail(chatID, "update timezone", err)
		return
	}
	r.sendWithMarkup(chatID, "✅ Timezone set to "+tz, "", tgbotapi.NewRemoveKeyboard(true))
}

// --- Free-form dispatcher (for all "Custom" inputs) ---

func (r *Router) handleFreeForm(ctx context.Context, chatID int64, text string) {
	switch r.takePending(chatID) {
	case pendingInterval:
		r.applyInterval(ctx, chatID, text)
	case pendingTZ:
		r.applyTZ(ctx, chatID, text)
	default:
		// No pending flow: ignore free-form message
	}
}

// --- Next alarm / admin ---

func (r *Router) handleNextAlarm(ctx context.Context, chatID int64) {
	at, u, err := r.svc.NextWake(ctx, chatID)
	if err != nil {
		r.fail(chatID, "next alarm", err)
		return
	}
	switch {
	case at != nil:
		r.sendText(chatID, nextAlarmText(*at, u.ReminderTZ))
	case !u.ReminderEnabled:
		r.sendText(chatID, disabledText)
	default:
		r.sendText(chatID, noTimerText)
	}
}

func (r *Router) handleDeleteUser(ctx context.Context, chatID int64) {
	if err := r.svc.DeleteUser(ctx, chatID); err != nil {
		r.fail(chatID, "delete user", err)
		return
	}
	r.takePending(chatID)
	r.sendText(chatID, userDeletedText)
}
