package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/flashblaze/drinky-bot/internal/domain"
	"github.com/flashblaze/drinky-bot/internal/geotz"
	"github.com/flashblaze/drinky-bot/internal/tracker"
)

// BotAPI is the part of *tgbotapi.BotAPI the router uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Service is the per-user application layer. tracker.Service implements it.
type Service interface {
	Register(ctx context.Context, p tracker.Profile) (*domain.User, bool, error)
	EnsureUser(ctx context.Context, chatID int64) (*domain.User, error)
	LogIntake(ctx context.Context, chatID int64, amountML int) (*domain.IntakeLog, error)
	SetGoal(ctx context.Context, chatID int64, goalML int) error
	Today(ctx context.Context, chatID int64) (tracker.Stats, error)
	UpdateReminderSettings(ctx context.Context, chatID int64, upd domain.ReminderSettingsUpdate) (*domain.User, error)
	ToggleReminders(ctx context.Context, chatID int64) (*domain.User, error)
	NextWake(ctx context.Context, chatID int64) (*time.Time, *domain.User, error)
	DeleteUser(ctx context.Context, chatID int64) error
}

// Pending state keys used in conversational flows.
const (
	pendingInterval = "await_interval_text"
	pendingTZ       = "await_tz_text"
)

// Router wires Telegram updates to handlers and holds minimal in-memory state.
type Router struct {
	bot   BotAPI
	log   *zap.Logger
	svc   Service
	geo   geotz.Resolver
	dev   bool
	state map[int64]string // chatID -> pending state
	mu    sync.RWMutex
}

// NewRouter creates a new Telegram router. dev enables the delete-user button.
func NewRouter(bot BotAPI, log *zap.Logger, svc Service, geo geotz.Resolver, dev bool) *Router {
	return &Router{
		bot:   bot,
		log:   log,
		svc:   svc,
		geo:   geo,
		dev:   dev,
		state: make(map[int64]string),
	}
}

// setPending sets a pending state for a chat (non-persistent, in-memory).
func (r *Router) setPending(chatID int64, s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[chatID] = s
}

// takePending returns and clears the pending state for a chat.
func (r *Router) takePending(chatID int64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.state[chatID]
	delete(r.state, chatID)
	return s
}

// RegisterCommands publishes the command list shown in Telegram's menu.
func (r *Router) RegisterCommands() error {
	_, err := r.bot.Request(tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Register and show the main menu"},
		tgbotapi.BotCommand{Command: "log", Description: "Log water intake: /log 250"},
		tgbotapi.BotCommand{Command: "goal", Description: "Show or set your daily goal: /goal 2000"},
		tgbotapi.BotCommand{Command: "stats", Description: "Show today's water intake"},
		tgbotapi.BotCommand{Command: "settings", Description: "Configure reminders"},
		tgbotapi.BotCommand{Command: "interval", Description: "Set reminder interval: /interval 45m"},
		tgbotapi.BotCommand{Command: "timezone", Description: "Set timezone: /timezone Europe/Berlin"},
		tgbotapi.BotCommand{Command: "next", Description: "Show the next reminder"},
	))
	return err
}

// HandleUpdate routes a single update to appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		r.handleMessage(ctx, upd.Message)
		return
	}
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (r *Router) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if msg.Location != nil {
		r.handleLocation(ctx, chatID, msg.Location)
		return
	}
	if !msg.IsCommand() {
		r.handleFreeForm(ctx, chatID, strings.TrimSpace(msg.Text))
		return
	}

	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		r.handleStart(ctx, msg)
	case "log":
		r.handleLog(ctx, chatID, args)
	case "goal":
		r.handleGoal(ctx, chatID, args)
	case "stats":
		r.handleStats(ctx, chatID)
	case "settings", "reminder":
		r.handleSettings(ctx, chatID)
	case "interval":
		if args == "" {
			r.setPending(chatID, pendingInterval)
			r.sendText(chatID, askIntervalText)
			return
		}
		r.applyInterval(ctx, chatID, args)
	case "timezone":
		if args == "" {
			r.setPending(chatID, pendingTZ)
			r.sendText(chatID, askTZText)
			return
		}
		r.applyTZ(ctx, chatID, args)
	case "next":
		r.handleNextAlarm(ctx, chatID)
	default:
		// Unknown command: ignore silently
	}
}

func (r *Router) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil {
		_ = r.answerCallback(cb.ID, "")
		return
	}
	chatID := cb.Message.Chat.ID
	msgID := cb.Message.MessageID
	data := cb.Data
	_ = r.answerCallback(cb.ID, "")

	switch {
	case data == cbLogWater:
		r.sendWithMarkup(chatID, chooseAmountText, "", amountKeyboard(domain.QuickLogAmounts))
	case strings.HasPrefix(data, cbLogWaterPrefix):
		r.handleLog(ctx, chatID, strings.TrimPrefix(data, cbLogWaterPrefix))
	case data == cbStats:
		r.handleStats(ctx, chatID)
	case data == cbGoal:
		r.handleGoal(ctx, chatID, "")
	case data == cbReminderStatus:
		r.handleSettings(ctx, chatID)
	case data == cbReminderToggle:
		r.handleToggle(ctx, chatID, msgID)
	case data == cbIntervalMenu:
		r.showIntervalMenu(ctx, chatID, msgID)
	case data == cbIntervalCustom:
		r.setPending(chatID, pendingInterval)
		r.sendText(chatID, askIntervalText)
	case strings.HasPrefix(data, cbIntervalPrefix):
		r.handleIntervalPreset(ctx, chatID, msgID, strings.TrimPrefix(data, cbIntervalPrefix))
	case data == cbTZMenu:
		r.showTZMenu(ctx, chatID, msgID)
	case data == cbTZLocation:
		r.sendWithMarkup(chatID, askLocationText, "", locationKeyboard())
	case data == cbTZCustom:
		r.setPending(chatID, pendingTZ)
		r.sendText(chatID, askTZText)
	case strings.HasPrefix(data, cbTZPrefix):
		r.handleTZPreset(ctx, chatID, msgID, strings.TrimPrefix(data, cbTZPrefix))
	case data == cbNextAlarm:
		r.handleNextAlarm(ctx, chatID)
	case data == cbDeleteUser && r.dev:
		r.handleDeleteUser(ctx, chatID)
	default:
		// Unknown callback: ignore silently
	}
}
