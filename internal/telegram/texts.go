package telegram

import (
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/flashblaze/drinky-bot/internal/alarm"
	"github.com/flashblaze/drinky-bot/internal/domain"
	"github.com/flashblaze/drinky-bot/internal/tracker"
)

// UI texts in English. Constants ending in MD are MarkdownV2.
const (
	logPromptMD      = "Please enter the amount of water you drank in ml\\. Example: /log 250"
	chooseAmountText = "💧 Choose amount"
	askLocationText  = "📍 Share your location and I will set your timezone from it."
	askIntervalText  = "Enter interval, e.g.: 45m, 1h, 1h30m (between 10m and 24h)"
	askTZText        = "Enter timezone (e.g., Europe/Berlin):"
	noTimerText      = "No reminder is scheduled right now."
	disabledText     = "Reminders are disabled. Turn them on in /settings."
	userDeletedText  = "🗑 Your data has been deleted. Send /start to begin again."
	genericErrText   = "Something went wrong. Please try again later."
)

// Callback data.
const (
	cbLogWater       = "log_water"
	cbLogWaterPrefix = "log_water_"
	cbStats          = "stats"
	cbGoal           = "goal"
	cbReminderStatus = "reminder_status"
	cbReminderToggle = "reminder_toggle"
	cbIntervalMenu   = "reminder_interval_menu"
	cbIntervalCustom = "reminder_interval_custom"
	cbIntervalPrefix = "reminder_interval_"
	cbTZMenu         = "reminder_timezone_menu"
	cbTZLocation     = "reminder_timezone_location"
	cbTZCustom       = "reminder_timezone_custom"
	cbTZPrefix       = "reminder_timezone_"
	cbNextAlarm      = "get_next_alarm"
	cbDeleteUser     = "delete_user"
)

var intervalPresets = []int{30, 60, 120, 180}

type tzPreset struct {
	code  string
	label string
	zone  string
}

var timezonePresets = []tzPreset{
	{"UTC", "UTC", "UTC"},
	{"EST", "EST (UTC-5)", "America/New_York"},
	{"PST", "PST (UTC-8)", "America/Los_Angeles"},
	{"GMT", "GMT (UTC+0)", "Europe/London"},
	{"IST", "IST (UTC+5:30)", "Asia/Kolkata"},
	{"JST", "JST (UTC+9)", "Asia/Tokyo"},
}

func presetZone(code string) (tzPreset, bool) {
	for _, p := range timezonePresets {
		if p.code == code {
			return p, true
		}
	}
	return tzPreset{}, false
}

func md(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, s)
}

func welcomeText(u *domain.User) string {
	name := u.DisplayName()
	if name == "" {
		return "👋 Welcome to Drinky"
	}
	return "👋 Welcome to Drinky, " + name
}

func statsText(st tracker.Stats) string {
	s := fmt.Sprintf("You've drank *%d ml* today\\.\nYour goal is to drink *%d ml* every day\\.", st.ConsumedML, st.GoalML)
	if st.GoalMet() {
		s += "\n\n🎉 Goal reached\\!"
	}
	return s
}

func goalText(goalML int) string {
	return fmt.Sprintf("Your current goal is *%d ml*\\.\nPlease enter your goal in ml\\. Example: /goal 1000", goalML)
}

func settingsText(u *domain.User) string {
	status := "❌ Disabled"
	if u.ReminderEnabled {
		status = "✅ Enabled"
	}
	return fmt.Sprintf("🔔 *Reminder Settings*\n\n"+
		"Status: %s\n"+
		"Interval: %s\n"+
		"Timezone: %s\n\n"+
		"Reminders run from 06:00 local time, none between midnight and 06:00\\.\n"+
		"Use the buttons below to configure your reminders\\.",
		status, md(domain.FormatMinutes(u.ReminderIntervalMin)), md(u.ReminderTZ))
}

func intervalMenuText(u *domain.User) string {
	return "⏱️ *Select Reminder Interval*\n\nChoose how often you want to be reminded\\.\nCurrent: *" +
		md(domain.FormatMinutes(u.ReminderIntervalMin)) + "*"
}

func timezoneMenuText(u *domain.User) string {
	return "🌍 *Select Timezone*\n\nChoose your timezone or share your location\\.\nCurrent: *" + md(u.ReminderTZ) + "*"
}

func nextAlarmText(at time.Time, tz string) string {
	s, err := domain.LocalizeTime(at, tz)
	if err != nil {
		s, _ = domain.LocalizeTime(at, "UTC")
		tz = "UTC"
	}
	return fmt.Sprintf("⏰ Next alarm: %s (%s)", s, tz)
}

func reminderText(n alarm.Notification) string {
	if n.GoalML <= 0 {
		return fmt.Sprintf("💧 *Time to drink water\\!*\n\nYou've had *%d ml* today\\.", n.ConsumedML)
	}
	return fmt.Sprintf("💧 *Time to drink water\\!*\n\nYou've had *%d ml* of *%d ml* today\\.\nTap an amount below to log it\\.",
		n.ConsumedML, n.GoalML)
}

func congratsText(n alarm.Notification) string {
	return fmt.Sprintf("🎉 *Congratulations\\!*\n\nYou've reached your daily goal of *%d ml* with *%d ml* today\\.\n"+
		"Reminders resume tomorrow at 06:00\\.", n.GoalML, n.ConsumedML)
}

// --- Keyboards ---

func mainMenuKeyboard(dev bool) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("💧 Log Water", cbLogWater)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🎯 Goal", cbGoal)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📊 Today's stats", cbStats)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔔 Reminders", cbReminderStatus)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⏰ Next alarm", cbNextAlarm)),
	}
	if dev {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete user", cbDeleteUser),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// amountKeyboard lays out quick-log buttons two per row.
func amountKeyboard(amounts []int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, ml := range amounts {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			strconv.Itoa(ml)+" ml", cbLogWaterPrefix+strconv.Itoa(ml)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func settingsKeyboard(enabled bool) tgbotapi.InlineKeyboardMarkup {
	toggle := "✅ Enable"
	if enabled {
		toggle = "❌ Disable"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(toggle, cbReminderToggle)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⏱️ Interval", cbIntervalMenu)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🌍 Timezone", cbTZMenu)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⏰ Next alarm", cbNextAlarm)),
	)
}

func selected(label string, on bool) string {
	if on {
		return "✓ " + label
	}
	return label
}

func intervalKeyboard(cur int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, mins := range intervalPresets {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			selected(domain.FormatMinutes(mins), mins == cur), cbIntervalPrefix+strconv.Itoa(mins)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", cbIntervalCustom)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("◀️ Back", cbReminderStatus)),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func timezoneKeyboard(cur string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, p := range timezonePresets {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(selected(p.label, p.zone == cur), cbTZPrefix+p.code))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📍 Use my location", cbTZLocation),
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", cbTZCustom),
		),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("◀️ Back", cbReminderStatus)),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func locationKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonLocation("📍 Share location")),
	)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	return kb
}
