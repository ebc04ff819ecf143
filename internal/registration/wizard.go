package registration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"SRTrack/internal/attendance"
	"SRTrack/utils"

	"github.com/go-playground/validator/v10"
	"github.com/inconshreveable/log15/v3"
)

type Step string

const (
	StepRank     Step = "collecting_rank"
	StepName     Step = "collecting_name"
	StepNumber   Step = "collecting_number"
	StepCompany  Step = "collecting_company"
	StepComplete Step = "complete"
)

var (
	ErrAlreadyRegistered = errors.New("you are already registered")
	ErrNumberTaken       = errors.New("this identification number is already registered")
	ErrNotInProgress     = errors.New("no registration in progress")
	ErrInvalidInput      = errors.New("invalid input")
)

type StateStore interface {
	Get(ctx context.Context, telegramUserID int64) (*utils.RegistrationState, error)
	Save(ctx context.Context, telegramUserID int64, state utils.RegistrationState) error
	Delete(ctx context.Context, telegramUserID int64) error
}

type Trainees interface {
	TraineeByTelegramID(ctx context.Context, telegramUserID int64) (*attendance.Trainee, error)
	IdentificationNumberTaken(ctx context.Context, number string) (bool, error)
	CreateTrainee(ctx context.Context, t *attendance.Trainee) error
}

var fieldRules = map[Step]string{
	StepRank:   "required,max=100",
	StepName:   "required,max=255",
	StepNumber: "required,max=50",
}

var dataKeys = map[Step]string{
	StepRank:   "rank",
	StepName:   "full_name",
	StepNumber: "identification_number",
}

var nextStep = map[Step]Step{
	StepRank:   StepName,
	StepName:   StepNumber,
	StepNumber: StepCompany,
}

// Wizard walks a Telegram user through registration. Progress lives in the
// StateStore, so any instance can pick up the next message.
type Wizard struct {
	states   StateStore
	trainees Trainees
	validate *validator.Validate
	now      func() time.Time
	ttl      time.Duration
	log      log15.Logger
}

func NewWizard(states StateStore, trainees Trainees, ttl time.Duration, log log15.Logger) *Wizard {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Wizard{
		states:   states,
		trainees: trainees,
		validate: validator.New(),
		now:      time.Now,
		ttl:      ttl,
		log:      log,
	}
}

// Start begins (or restarts) registration and returns the first step.
func (w *Wizard) Start(ctx context.Context, telegramUserID int64) (Step, error) {
	registered, err := w.registered(ctx, telegramUserID)
	if err != nil {
		return "", err
	}
	if registered {
		return "", ErrAlreadyRegistered
	}

	state := utils.RegistrationState{Step: string(StepRank), Data: map[string]string{}}
	if err := w.save(ctx, telegramUserID, state); err != nil {
		return "", err
	}
	w.log.Info("Registration started", "telegram_user", telegramUserID)
	return StepRank, nil
}

// InProgress reports whether a free-text message belongs to a registration.
func (w *Wizard) InProgress(ctx context.Context, telegramUserID int64) (bool, error) {
	state, err := w.load(ctx, telegramUserID)
	if errors.Is(err, ErrNotInProgress) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return Step(state.Step) != StepComplete, nil
}

// Advance stores a free-text answer and returns the step that comes next.
// The company step only accepts a button choice through SelectCompany.
func (w *Wizard) Advance(ctx context.Context, telegramUserID int64, text string) (Step, error) {
	state, err := w.load(ctx, telegramUserID)
	if err != nil {
		return "", err
	}

	step := Step(state.Step)
	rule, ok := fieldRules[step]
	if !ok {
		return step, ErrInvalidInput
	}

	value := Sanitize(text)
	if err := w.validate.Var(value, rule); err != nil {
		return step, fmt.Errorf("%w: %s", ErrInvalidInput, dataKeys[step])
	}

	if step == StepNumber {
		taken, err := w.trainees.IdentificationNumberTaken(ctx, value)
		if err != nil {
			return step, fmt.Errorf("Advance: identification number lookup: %w", err)
		}
		if taken {
			return step, ErrNumberTaken
		}
	}

	if state.Data == nil {
		state.Data = map[string]string{}
	}
	state.Data[dataKeys[step]] = value
	state.Step = string(nextStep[step])
	if err := w.save(ctx, telegramUserID, *state); err != nil {
		return step, err
	}
	return Step(state.Step), nil
}

// SelectCompany finishes registration. The state is cleared whether or not
// the trainee could be created, matching a fresh /register on failure.
func (w *Wizard) SelectCompany(ctx context.Context, telegramUserID int64, company string) (*attendance.Trainee, error) {
	state, err := w.load(ctx, telegramUserID)
	if err != nil {
		return nil, err
	}
	if Step(state.Step) != StepCompany {
		return nil, ErrNotInProgress
	}

	c, err := attendance.ParseCompany(company)
	if err != nil {
		return nil, fmt.Errorf("%w: company", ErrInvalidInput)
	}

	trainee := &attendance.Trainee{
		TelegramUserID:       telegramUserID,
		Rank:                 state.Data["rank"],
		FullName:             state.Data["full_name"],
		IdentificationNumber: state.Data["identification_number"],
		Company:              c,
		Active:               true,
	}

	err = w.register(ctx, trainee)
	if delErr := w.states.Delete(ctx, telegramUserID); delErr != nil {
		w.log.Warn("Failed to clear registration state", "telegram_user", telegramUserID, "err", delErr)
	}
	if err != nil {
		return nil, err
	}

	w.log.Info("Trainee registered", "trainee", trainee.ID, "company", trainee.Company)
	return trainee, nil
}

func (w *Wizard) register(ctx context.Context, t *attendance.Trainee) error {
	registered, err := w.registered(ctx, t.TelegramUserID)
	if err != nil {
		return err
	}
	if registered {
		return ErrAlreadyRegistered
	}

	taken, err := w.trainees.IdentificationNumberTaken(ctx, t.IdentificationNumber)
	if err != nil {
		return fmt.Errorf("register: identification number lookup: %w", err)
	}
	if taken {
		return ErrNumberTaken
	}

	err = w.trainees.CreateTrainee(ctx, t)
	if errors.Is(err, attendance.ErrDuplicateRecord) {
		// Lost a race with a concurrent registration.
		if registered, _ := w.registered(ctx, t.TelegramUserID); registered {
			return ErrAlreadyRegistered
		}
		return ErrNumberTaken
	}
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

func (w *Wizard) registered(ctx context.Context, telegramUserID int64) (bool, error) {
	_, err := w.trainees.TraineeByTelegramID(ctx, telegramUserID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, attendance.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("trainee lookup: %w", err)
	}
}

func (w *Wizard) load(ctx context.Context, telegramUserID int64) (*utils.RegistrationState, error) {
	state, err := w.states.Get(ctx, telegramUserID)
	if errors.Is(err, utils.ErrNoState) {
		return nil, ErrNotInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("load registration state: %w", err)
	}
	if !state.ExpiresAt.IsZero() && !w.now().Before(state.ExpiresAt) {
		return nil, ErrNotInProgress
	}
	return state, nil
}

func (w *Wizard) save(ctx context.Context, telegramUserID int64, state utils.RegistrationState) error {
	state.ExpiresAt = w.now().Add(w.ttl)
	if err := w.states.Save(ctx, telegramUserID, state); err != nil {
		return fmt.Errorf("save registration state: %w", err)
	}
	return nil
}

// Sanitize trims input and strips angle brackets.
func Sanitize(input string) string {
	return strings.TrimSpace(strings.NewReplacer("<", "", ">", "").Replace(input))
}
