package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hylla/daybox/internal/domain"
)

// RolloverState is the engine's dialog state.
type RolloverState int

// RolloverIdle and related constants define the engine states.
const (
	RolloverIdle RolloverState = iota
	RolloverAwaitingChoice
)

// String implements fmt.Stringer.
func (s RolloverState) String() string {
	if s == RolloverAwaitingChoice {
		return "awaiting-choice"
	}
	return "idle"
}

// DecisionKind classifies the result of one boundary check.
type DecisionKind int

// DecisionNone and related constants define check results.
const (
	DecisionNone DecisionKind = iota
	DecisionPending
	DecisionKept
)

// RolloverDecision is the result of Check.
type RolloverDecision struct {
	Kind DecisionKind
	// Weekday and Path describe the day-specific schedule awaiting a choice.
	Weekday time.Weekday
	Path    string
	Date    domain.Date
	// Outcome is set when the keep path already ran synchronously.
	Outcome RolloverOutcome
}

// RolloverOutcome describes what a completed rollover did.
type RolloverOutcome struct {
	Date     domain.Date
	Reloaded bool
	Path     string
	Created  int
	Recenter bool
	Status   string
}

// RolloverConfig holds configuration for the rollover engine.
type RolloverConfig struct {
	AutoCenter bool
	// RecordLastSchedule persists the accepted schedule path as last used.
	RecordLastSchedule func(path string) error
	Logger             Logger
}

type pendingChoice struct {
	weekday time.Weekday
	path    string
	date    domain.Date
}

// RolloverEngine detects logical-day boundary crossings and swaps or keeps the schedule.
type RolloverEngine struct {
	svc       *Service
	loader    ScheduleLoader
	board     *Board
	cfg       RolloverConfig
	logger    Logger
	state     RolloverState
	pending   pendingChoice
	lastCheck time.Time
}

// NewRolloverEngine constructs a new value for this package.
func NewRolloverEngine(svc *Service, loader ScheduleLoader, board *Board, cfg RolloverConfig) *RolloverEngine {
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	return &RolloverEngine{
		svc:    svc,
		loader: loader,
		board:  board,
		cfg:    cfg,
		logger: logger,
	}
}

// Board returns the live board the engine mutates.
func (e *RolloverEngine) Board() *Board {
	return e.board
}

// State returns the current dialog state.
func (e *RolloverEngine) State() RolloverState {
	return e.state
}

// DialogActive reports whether a schedule choice is outstanding; periodic work should be skipped while set.
func (e *RolloverEngine) DialogActive() bool {
	return e.state == RolloverAwaitingChoice
}

// Prime records now as the previous check without evaluating a crossing.
func (e *RolloverEngine) Prime(now time.Time) {
	e.lastCheck = now
}

// boundaryCrossed reports whether the day start hour was passed between prev and now.
func boundaryCrossed(prev, now time.Time, dayStartHour int) bool {
	if prev.IsZero() || !now.After(prev) {
		return false
	}
	if domain.DateOf(prev) == domain.DateOf(now) {
		return prev.Hour() < dayStartHour && now.Hour() >= dayStartHour
	}
	return now.Hour() >= dayStartHour
}

// Check evaluates one tick. While a choice is pending it returns DecisionPending without
// re-evaluating. Crossing without a day-specific schedule runs the keep path synchronously.
func (e *RolloverEngine) Check(ctx context.Context, now time.Time) RolloverDecision {
	if e.state == RolloverAwaitingChoice {
		return RolloverDecision{Kind: DecisionPending, Weekday: e.pending.weekday, Path: e.pending.path, Date: e.pending.date}
	}
	prev := e.lastCheck
	e.lastCheck = now
	if !boundaryCrossed(prev, now, e.svc.DayStartHour()) {
		return RolloverDecision{Kind: DecisionNone}
	}

	date := e.svc.LogicalDate(now)
	weekday := date.Weekday()
	e.logger.Info("logical day boundary crossed", "date", date.String(), "weekday", weekday.String())
	if e.loader != nil {
		if path, ok := e.loader.DaySchedulePath(weekday); ok {
			e.state = RolloverAwaitingChoice
			e.pending = pendingChoice{weekday: weekday, path: path, date: date}
			e.logger.Info("day-specific schedule found; awaiting choice", "weekday", weekday.String(), "path", path)
			return RolloverDecision{Kind: DecisionPending, Weekday: weekday, Path: path, Date: date}
		}
	}
	outcome := e.keep(ctx, date, "no day-specific schedule")
	return RolloverDecision{Kind: DecisionKept, Date: date, Outcome: outcome}
}

// Resolve completes a pending choice. Accept loads the day-specific schedule; a load
// failure is logged and handled like a decline.
func (e *RolloverEngine) Resolve(ctx context.Context, accept bool) (RolloverOutcome, error) {
	if e.state != RolloverAwaitingChoice {
		return RolloverOutcome{}, ErrNoPendingRollover
	}
	pending := e.pending
	e.state = RolloverIdle
	e.pending = pendingChoice{}

	if !accept {
		e.logger.Info("day-specific schedule declined", "path", pending.path)
		return e.keep(ctx, pending.date, "kept current schedule"), nil
	}
	outcome, err := e.reload(ctx, pending)
	if err != nil {
		e.logger.Error("day-specific schedule load failed; keeping current schedule", "path", pending.path, "err", err)
		return e.keep(ctx, pending.date, "schedule load failed, kept current"), nil
	}
	return outcome, nil
}

// Tick runs Check and, when a choice is needed, asks confirmer and resolves it.
func (e *RolloverEngine) Tick(ctx context.Context, now time.Time, confirmer Confirmer) RolloverOutcome {
	decision := e.Check(ctx, now)
	switch decision.Kind {
	case DecisionKept:
		return decision.Outcome
	case DecisionPending:
		accept := false
		if confirmer != nil {
			accept = confirmer.ConfirmScheduleSwap(decision.Weekday, decision.Path)
		}
		outcome, err := e.Resolve(ctx, accept)
		if err != nil {
			e.logger.Error("rollover resolve failed", "err", err)
		}
		return outcome
	default:
		return RolloverOutcome{}
	}
}

func (e *RolloverEngine) reload(ctx context.Context, pending pendingChoice) (RolloverOutcome, error) {
	created, err := loadDay(ctx, e.svc, e.loader, e.board, pending.path, pending.date, e.logger)
	if err != nil {
		return RolloverOutcome{}, err
	}
	path := e.board.Path()
	if e.cfg.RecordLastSchedule != nil {
		if err := e.cfg.RecordLastSchedule(path); err != nil {
			e.logger.Warn("last schedule path not persisted", "path", path, "err", err)
		}
	}
	e.logger.Info("day-specific schedule loaded", "path", path, "activities", e.board.Schedule().Len(), "created", created)
	return e.finish(RolloverOutcome{
		Date:     pending.date,
		Reloaded: true,
		Path:     path,
		Created:  created,
	}, fmt.Sprintf("%s schedule loaded", pending.weekday)), nil
}

// OpenDay loads the schedule at path (empty means the loader default) for date and
// returns a board whose flags mirror the ledger.
func OpenDay(ctx context.Context, svc *Service, loader ScheduleLoader, path string, date domain.Date) (*Board, error) {
	board := NewBoard(domain.NewSchedule(nil), "")
	if _, err := loadDay(ctx, svc, loader, board, path, date, svc.logger); err != nil {
		return nil, err
	}
	return board, nil
}

// loadDay swaps board to the schedule at path: identities are resolved and registered,
// date's rows are seeded and flags hydrated. Registration and seeding failures are logged only.
func loadDay(ctx context.Context, svc *Service, loader ScheduleLoader, board *Board, path string, date domain.Date, logger Logger) (int, error) {
	schedule, resolved, err := loader.Load(path)
	if err != nil {
		return 0, err
	}
	for _, dup := range schedule.DuplicateTaskNames() {
		logger.Warn("duplicate task names in activity", "activity_id", dup.ActivityID, "tasks", dup.TaskNames)
	}
	legacy := hasBareTasks(schedule)
	schedule = svc.ResolveTaskIdentities(ctx, schedule)
	schedule, err = svc.RegisterScheduleTasks(ctx, schedule)
	switch {
	case err != nil:
		logger.Warn("some tasks could not be registered", "path", resolved, "err", err)
	case legacy:
		// Written once so the file carries the ids its history is keyed on.
		if err := loader.Save(resolved, schedule); err != nil {
			logger.Warn("migrated task uuids not written back", "path", resolved, "err", err)
		} else {
			logger.Info("schedule migrated to task uuids", "path", resolved)
		}
	}
	board.Replace(schedule, resolved)
	created, err := svc.EnsureDailyEntries(ctx, schedule, date)
	if err != nil {
		logger.Warn("daily entries not seeded", "date", date.String(), "err", err)
	}
	board.Hydrate(svc.DoneStates(ctx, date))
	return created, nil
}

func hasBareTasks(schedule domain.Schedule) bool {
	for _, activity := range schedule.Activities() {
		for _, task := range activity.Tasks {
			if !task.HasIdentity() {
				return true
			}
		}
	}
	return false
}

// keep retains the schedule, seeds the new day and clears in-memory flags. The ledger
// rows themselves are never marked here.
func (e *RolloverEngine) keep(ctx context.Context, date domain.Date, reason string) RolloverOutcome {
	e.board.ResetDone()
	created, err := e.svc.EnsureDailyEntries(ctx, e.board.Schedule(), date)
	if err != nil {
		e.logger.Warn("daily entries not seeded after rollover", "date", date.String(), "err", err)
	}
	e.logger.Info("rollover kept current schedule", "date", date.String(), "reason", reason, "created", created)
	return e.finish(RolloverOutcome{
		Date:    date,
		Path:    e.board.Path(),
		Created: created,
	}, reason)
}

func (e *RolloverEngine) finish(outcome RolloverOutcome, reason string) RolloverOutcome {
	outcome.Recenter = e.cfg.AutoCenter
	done, total := e.board.Progress()
	name := filepath.Base(outcome.Path)
	if outcome.Path == "" {
		name = "no schedule"
	}
	outcome.Status = fmt.Sprintf("new day %s: %s (%s, %d/%d done)", outcome.Date, reason, name, done, total)
	return outcome
}
