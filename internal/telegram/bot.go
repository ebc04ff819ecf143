package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"SRTrack/internal/attendance"
	"SRTrack/internal/registration"

	"github.com/inconshreveable/log15/v3"
)

const (
	callbackClockIn       = "clock_in"
	callbackClockOut      = "clock_out"
	callbackStartRegister = "start_register"
	callbackCompanyPrefix = "reg_company_"

	msgTryAgain      = "⚠️ Something went wrong. Please try again in a moment."
	msgNotRegistered = "❌ You are not registered. Please register first using /register"
	msgAlreadyDone   = "✅ Already done. This request was processed earlier."
)

type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID string) error
}

type Attendance interface {
	ClockIn(ctx context.Context, telegramUserID int64, token string) (*attendance.Result, error)
	ClockOut(ctx context.Context, telegramUserID int64, token string) (*attendance.Result, error)
	GetStatus(ctx context.Context, telegramUserID int64) (*attendance.StatusReport, error)
	Trainee(ctx context.Context, telegramUserID int64) (*attendance.Trainee, error)
}

type Registration interface {
	Start(ctx context.Context, telegramUserID int64) (registration.Step, error)
	InProgress(ctx context.Context, telegramUserID int64) (bool, error)
	Advance(ctx context.Context, telegramUserID int64, text string) (registration.Step, error)
	SelectCompany(ctx context.Context, telegramUserID int64, company string) (*attendance.Trainee, error)
}

// Bot turns Telegram updates into engine and wizard calls.
type Bot struct {
	api        Messenger
	attendance Attendance
	wizard     Registration
	loc        *time.Location
	zone       string
	log        log15.Logger
}

func NewBot(api Messenger, att Attendance, wizard Registration, loc *time.Location, zone string, log log15.Logger) *Bot {
	if zone == "" {
		zone = "SGT"
	}
	return &Bot{api: api, attendance: att, wizard: wizard, loc: loc, zone: zone, log: log}
}

// HandleUpdate processes one update. A non-nil error means the update hit an
// infrastructure failure and may be redelivered; every other outcome has
// already been answered in the chat.
func (b *Bot) HandleUpdate(ctx context.Context, u Update) error {
	token := strconv.FormatInt(u.UpdateID, 10)

	switch {
	case u.CallbackQuery != nil:
		return b.handleCallback(ctx, u.CallbackQuery, token)
	case u.Message != nil && u.Message.From != nil:
		return b.handleMessage(ctx, u.Message)
	}
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, m *Message) error {
	chatID, userID := m.Chat.ID, m.From.ID
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return nil
	}

	switch command(text) {
	case "/start":
		return b.handleStart(ctx, chatID, userID)
	case "/register":
		return b.startRegistration(ctx, chatID, userID)
	case "/status":
		return b.handleStatus(ctx, chatID, userID)
	case "":
		return b.handleRegistrationText(ctx, chatID, userID, text)
	}
	return nil
}

func (b *Bot) handleCallback(ctx context.Context, q *CallbackQuery, token string) error {
	if err := b.api.AnswerCallbackQuery(ctx, q.ID); err != nil {
		b.log.Warn("Failed to answer callback query", "callback", q.ID, "err", err)
	}
	if q.Message == nil {
		return nil
	}
	chatID, userID := q.Message.Chat.ID, q.From.ID

	switch {
	case q.Data == callbackClockIn:
		return b.handleClockIn(ctx, chatID, userID, token)
	case q.Data == callbackClockOut:
		return b.handleClockOut(ctx, chatID, userID, token)
	case q.Data == callbackStartRegister:
		return b.startRegistration(ctx, chatID, userID)
	case strings.HasPrefix(q.Data, callbackCompanyPrefix):
		return b.selectCompany(ctx, chatID, userID, strings.TrimPrefix(q.Data, callbackCompanyPrefix))
	}
	b.log.Debug("Ignoring unknown callback", "data", q.Data)
	return nil
}

func (b *Bot) handleStart(ctx context.Context, chatID, userID int64) error {
	_, err := b.attendance.Trainee(ctx, userID)
	if errors.Is(err, attendance.ErrNotRegistered) {
		b.reply(ctx, chatID, "👋 Welcome to SRTrack!\n\nYou are not registered yet. Please register using /register",
			keyboard(InlineKeyboardButton{Text: "📝 Register", CallbackData: callbackStartRegister}))
		return nil
	}
	if err != nil {
		return b.failure(ctx, chatID, "start", err)
	}
	return b.handleStatus(ctx, chatID, userID)
}

func (b *Bot) handleStatus(ctx context.Context, chatID, userID int64) error {
	report, err := b.attendance.GetStatus(ctx, userID)
	if err != nil {
		return b.attendanceError(ctx, chatID, "status", err)
	}

	if report.Status == attendance.StatusIn && report.Session != nil {
		b.reply(ctx, chatID, fmt.Sprintf("📊 Current Status: IN\n\nClock In: %s", b.clockTime(report.Session.ClockIn)), clockOutKeyboard())
		return nil
	}
	b.reply(ctx, chatID, "📊 Current Status: OUT\n\nYou are not currently clocked in.", clockInKeyboard())
	return nil
}

func (b *Bot) handleClockIn(ctx context.Context, chatID, userID int64, token string) error {
	res, err := b.attendance.ClockIn(ctx, userID, token)
	if err != nil {
		return b.attendanceError(ctx, chatID, "clock in", err)
	}
	b.reply(ctx, chatID, fmt.Sprintf("✅ Clocked in successfully!\n\nTime: %s", b.clockTime(res.Session.ClockIn)), clockOutKeyboard())
	return nil
}

func (b *Bot) handleClockOut(ctx context.Context, chatID, userID int64, token string) error {
	res, err := b.attendance.ClockOut(ctx, userID, token)
	if err != nil {
		return b.attendanceError(ctx, chatID, "clock out", err)
	}

	text := fmt.Sprintf("✅ Clocked out successfully!\n\nClock In: %s", b.clockTime(res.Session.ClockIn))
	if res.Session.ClockOut != nil {
		text += fmt.Sprintf("\nClock Out: %s", b.clockTime(*res.Session.ClockOut))
	}
	b.reply(ctx, chatID, text, clockInKeyboard())
	return nil
}

func (b *Bot) startRegistration(ctx context.Context, chatID, userID int64) error {
	step, err := b.wizard.Start(ctx, userID)
	if errors.Is(err, registration.ErrAlreadyRegistered) {
		b.reply(ctx, chatID, "You are already registered! Use /start to access the main menu.", nil)
		return nil
	}
	if err != nil {
		return b.failure(ctx, chatID, "register", err)
	}
	b.prompt(ctx, chatID, step, "📝 Registration\n\nPlease provide your details:\n\n")
	return nil
}

func (b *Bot) handleRegistrationText(ctx context.Context, chatID, userID int64, text string) error {
	active, err := b.wizard.InProgress(ctx, userID)
	if err != nil {
		return b.failure(ctx, chatID, "registration", err)
	}
	if !active {
		return nil
	}

	step, err := b.wizard.Advance(ctx, userID, text)
	switch {
	case errors.Is(err, registration.ErrInvalidInput):
		if step == registration.StepCompany {
			b.prompt(ctx, chatID, step, "Please use the buttons below.\n\n")
			return nil
		}
		b.prompt(ctx, chatID, step, "❌ That doesn't look right. ")
		return nil
	case errors.Is(err, registration.ErrNumberTaken):
		b.prompt(ctx, chatID, step, "❌ "+err.Error()+".\n\n")
		return nil
	case errors.Is(err, registration.ErrNotInProgress):
		b.reply(ctx, chatID, "Your registration has expired. Please start again with /register", nil)
		return nil
	case err != nil:
		return b.failure(ctx, chatID, "registration", err)
	}
	b.prompt(ctx, chatID, step, "")
	return nil
}

func (b *Bot) selectCompany(ctx context.Context, chatID, userID int64, company string) error {
	trainee, err := b.wizard.SelectCompany(ctx, userID, company)
	switch {
	case errors.Is(err, registration.ErrNotInProgress):
		b.reply(ctx, chatID, "No registration in progress. Start one with /register", nil)
		return nil
	case errors.Is(err, registration.ErrInvalidInput):
		b.prompt(ctx, chatID, registration.StepCompany, "❌ Unknown company.\n\n")
		return nil
	case errors.Is(err, registration.ErrAlreadyRegistered), errors.Is(err, registration.ErrNumberTaken):
		b.reply(ctx, chatID, fmt.Sprintf("❌ Registration failed: %s\n\nPlease try again with /register", err), nil)
		return nil
	case err != nil:
		return b.failure(ctx, chatID, "registration", err)
	}

	b.reply(ctx, chatID, fmt.Sprintf("✅ Registration successful!\n\nRank: %s\nName: %s\nNumber: %s\nCompany: %s\n\nYou can now use the clock in/out buttons.",
		trainee.Rank, trainee.FullName, trainee.IdentificationNumber, trainee.Company),
		keyboard(
			InlineKeyboardButton{Text: "🟢 Clock In", CallbackData: callbackClockIn},
			InlineKeyboardButton{Text: "🔴 Clock Out", CallbackData: callbackClockOut},
		))
	return nil
}

func (b *Bot) prompt(ctx context.Context, chatID int64, step registration.Step, prefix string) {
	switch step {
	case registration.StepRank:
		b.reply(ctx, chatID, prefix+"1. Rank (e.g., PVT, CPL, SGT):", nil)
	case registration.StepName:
		b.reply(ctx, chatID, prefix+"2. Full Name:", nil)
	case registration.StepNumber:
		b.reply(ctx, chatID, prefix+"3. Identification Number:", nil)
	case registration.StepCompany:
		buttons := make([]InlineKeyboardButton, 0, len(attendance.Companies))
		for _, c := range attendance.Companies {
			buttons = append(buttons, InlineKeyboardButton{Text: string(c), CallbackData: callbackCompanyPrefix + string(c)})
		}
		b.reply(ctx, chatID, prefix+"4. Company:\n\nPlease select your company:", keyboard(buttons...))
	}
}

// attendanceError answers an engine failure. Only infrastructure failures
// are returned.
func (b *Bot) attendanceError(ctx context.Context, chatID int64, action string, err error) error {
	switch attendance.KindOf(err) {
	case attendance.KindReplay:
		b.reply(ctx, chatID, msgAlreadyDone, nil)
		return nil
	case attendance.KindValidation:
		if errors.Is(err, attendance.ErrNotRegistered) {
			b.reply(ctx, chatID, msgNotRegistered, nil)
			return nil
		}
		b.reply(ctx, chatID, "❌ "+capitalize(err.Error()), nil)
		return nil
	}
	return b.failure(ctx, chatID, action, err)
}

func (b *Bot) failure(ctx context.Context, chatID int64, action string, err error) error {
	b.log.Error("Update failed", "action", action, "chat", chatID, "err", err)
	b.reply(ctx, chatID, msgTryAgain, nil)
	return fmt.Errorf("%s: %w", action, err)
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) {
	if err := b.api.SendMessage(ctx, chatID, text, markup); err != nil {
		b.log.Warn("Failed to send reply", "chat", chatID, "err", err)
	}
}

func (b *Bot) clockTime(t time.Time) string {
	return t.In(b.loc).Format("15:04:05") + " " + b.zone
}

// command returns the bot command of text without any @botname suffix, or
// "" when text is not a command.
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0]
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}

func keyboard(buttons ...InlineKeyboardButton) *InlineKeyboardMarkup {
	rows := make([][]InlineKeyboardButton, 0, len(buttons))
	for _, btn := range buttons {
		rows = append(rows, []InlineKeyboardButton{btn})
	}
	return &InlineKeyboardMarkup{InlineKeyboard: rows}
}

func clockInKeyboard() *InlineKeyboardMarkup {
	return keyboard(InlineKeyboardButton{Text: "🟢 Clock In", CallbackData: callbackClockIn})
}

func clockOutKeyboard() *InlineKeyboardMarkup {
	return keyboard(InlineKeyboardButton{Text: "🔴 Clock Out", CallbackData: callbackClockOut})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
