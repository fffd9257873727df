package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hylla/daybox/internal/domain"
)

type fakeLoader struct {
	schedules map[string]domain.Schedule
	dayPaths  map[time.Weekday]string
	err       error
	saveErr   error
	loads     []string
	saves     []string
}

func (f *fakeLoader) Load(path string) (domain.Schedule, string, error) {
	f.loads = append(f.loads, path)
	if f.err != nil {
		return domain.Schedule{}, "", f.err
	}
	schedule, ok := f.schedules[path]
	if !ok {
		return domain.Schedule{}, "", errors.New("no such schedule")
	}
	return schedule, path, nil
}

func (f *fakeLoader) DaySchedulePath(weekday time.Weekday) (string, bool) {
	path, ok := f.dayPaths[weekday]
	return path, ok
}

func (f *fakeLoader) Save(path string, schedule domain.Schedule) error {
	f.saves = append(f.saves, path)
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.schedules == nil {
		f.schedules = map[string]domain.Schedule{}
	}
	f.schedules[path] = schedule
	return nil
}

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 2, day, hour, minute, 0, 0, time.UTC)
}

func saturdaySchedule(t *testing.T) domain.Schedule {
	t.Helper()
	gym, err := domain.NewActivity(domain.ActivityInput{
		ID: "gym", Name: "Gym", Start: "10:00", End: "11:00",
		Tasks: []domain.Task{{Name: "Squats"}},
	})
	if err != nil {
		t.Fatalf("NewActivity() error = %v", err)
	}
	return domain.NewSchedule([]domain.Activity{gym})
}

type rolloverFixture struct {
	repo     *fakeRepo
	svc      *Service
	loader   *fakeLoader
	board    *Board
	engine   *RolloverEngine
	recorded []string
}

func newRolloverFixture(t *testing.T) *rolloverFixture {
	t.Helper()
	ctx := context.Background()
	f := &rolloverFixture{repo: newFakeRepo()}
	f.svc = newTestService(t, f.repo)
	schedule, err := f.svc.RegisterScheduleTasks(ctx, testSchedule(t))
	if err != nil {
		t.Fatalf("RegisterScheduleTasks() error = %v", err)
	}
	f.board = NewBoard(schedule, "/schedules/default_settings.yaml")
	f.loader = &fakeLoader{
		schedules: map[string]domain.Schedule{"/schedules/Saturday_settings.yaml": saturdaySchedule(t)},
		dayPaths:  map[time.Weekday]string{},
	}
	f.engine = NewRolloverEngine(f.svc, f.loader, f.board, RolloverConfig{
		AutoCenter: true,
		RecordLastSchedule: func(path string) error {
			f.recorded = append(f.recorded, path)
			return nil
		},
	})
	return f
}

func TestBoundaryCrossed(t *testing.T) {
	cases := []struct {
		name     string
		prev     time.Time
		now      time.Time
		dayStart int
		want     bool
	}{
		{name: "first check", prev: time.Time{}, now: at(21, 6, 1), dayStart: 6, want: false},
		{name: "crosses day start", prev: at(21, 5, 59), now: at(21, 6, 1), dayStart: 6, want: true},
		{name: "after day start", prev: at(21, 6, 1), now: at(21, 6, 2), dayStart: 6, want: false},
		{name: "midnight before day start", prev: at(20, 23, 59), now: at(21, 0, 1), dayStart: 6, want: false},
		{name: "slept past day start", prev: at(20, 23, 0), now: at(21, 7, 0), dayStart: 6, want: true},
		{name: "midnight day start", prev: at(20, 23, 59), now: at(21, 0, 1), dayStart: 0, want: true},
		{name: "clock moved back", prev: at(21, 6, 1), now: at(21, 5, 59), dayStart: 6, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := boundaryCrossed(tc.prev, tc.now, tc.dayStart); got != tc.want {
				t.Fatalf("boundaryCrossed() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRolloverKeepsScheduleWithoutDaySpecificFile(t *testing.T) {
	ctx := context.Background()
	f := newRolloverFixture(t)
	stretch := f.board.Schedule().Activities()[0].Tasks[0]
	if err := f.board.SetDone("morning", 0, true); err != nil {
		t.Fatalf("SetDone() error = %v", err)
	}

	f.engine.Prime(at(21, 5, 59))
	decision := f.engine.Check(ctx, at(21, 6, 1))
	if decision.Kind != DecisionKept {
		t.Fatalf("expected keep decision, got %#v", decision)
	}
	outcome := decision.Outcome
	if outcome.Reloaded || !outcome.Recenter || outcome.Created != 3 {
		t.Fatalf("unexpected outcome %#v", outcome)
	}
	if outcome.Date != domain.NewDate(2026, 2, 21) {
		t.Fatalf("expected new logical date 2026-02-21, got %s", outcome.Date)
	}
	if f.board.Done("morning", 0) {
		t.Fatal("expected in-memory flags reset")
	}
	states := f.svc.DoneStates(ctx, outcome.Date)
	if done, ok := states[stretch.UUID]; !ok || done {
		t.Fatalf("expected open ledger row for new day, got %#v", states)
	}
	if len(f.loader.loads) != 0 {
		t.Fatalf("expected no schedule load, got %v", f.loader.loads)
	}

	if next := f.engine.Check(ctx, at(21, 6, 2)); next.Kind != DecisionNone {
		t.Fatalf("expected single crossing, got %#v", next)
	}
}

func TestRolloverAcceptLoadsDaySpecificSchedule(t *testing.T) {
	ctx := context.Background()
	f := newRolloverFixture(t)
	f.loader.dayPaths[time.Saturday] = "/schedules/Saturday_settings.yaml"

	f.engine.Prime(at(21, 5, 59))
	decision := f.engine.Check(ctx, at(21, 6, 1))
	if decision.Kind != DecisionPending || decision.Weekday != time.Saturday {
		t.Fatalf("expected pending Saturday choice, got %#v", decision)
	}
	if !f.engine.DialogActive() || f.engine.State() != RolloverAwaitingChoice {
		t.Fatal("expected dialog active")
	}
	if again := f.engine.Check(ctx, at(21, 6, 5)); again.Kind != DecisionPending {
		t.Fatalf("expected pending while dialog open, got %#v", again)
	}

	outcome, err := f.engine.Resolve(ctx, true)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !outcome.Reloaded || outcome.Path != "/schedules/Saturday_settings.yaml" || outcome.Created != 1 {
		t.Fatalf("unexpected outcome %#v", outcome)
	}
	if f.engine.DialogActive() {
		t.Fatal("expected dialog closed after resolve")
	}
	if f.board.Path() != outcome.Path {
		t.Fatalf("expected board path updated, got %q", f.board.Path())
	}
	gym, ok := f.board.Schedule().Activity("gym")
	if !ok || !gym.Tasks[0].HasIdentity() {
		t.Fatalf("expected registered gym task, got %#v", gym)
	}
	if _, ok := f.repo.identities[gym.Tasks[0].UUID]; !ok {
		t.Fatal("expected new task identity persisted")
	}
	if len(f.recorded) != 1 || f.recorded[0] != outcome.Path {
		t.Fatalf("expected last schedule recorded, got %v", f.recorded)
	}
	if _, err := f.engine.Resolve(ctx, true); !errors.Is(err, ErrNoPendingRollover) {
		t.Fatalf("expected ErrNoPendingRollover, got %v", err)
	}
}

func TestRolloverDeclineKeepsSchedule(t *testing.T) {
	ctx := context.Background()
	f := newRolloverFixture(t)
	f.loader.dayPaths[time.Saturday] = "/schedules/Saturday_settings.yaml"

	f.engine.Prime(at(21, 5, 59))
	outcome := f.engine.Tick(ctx, at(21, 6, 1), ConfirmFunc(func(time.Weekday, string) bool { return false }))
	if outcome.Reloaded {
		t.Fatalf("expected decline to keep schedule, got %#v", outcome)
	}
	if f.board.Path() != "/schedules/default_settings.yaml" {
		t.Fatalf("unexpected board path %q", f.board.Path())
	}
	if outcome.Created != 3 {
		t.Fatalf("expected entries ensured once for the new day, got %d", outcome.Created)
	}
	if len(f.recorded) != 0 || len(f.loader.loads) != 0 {
		t.Fatal("expected no load and no record on decline")
	}
}

func TestRolloverLoadFailureFallsBackToKeep(t *testing.T) {
	ctx := context.Background()
	f := newRolloverFixture(t)
	f.loader.dayPaths[time.Saturday] = "/schedules/Saturday_settings.yaml"
	f.loader.err = errors.New("bad yaml")

	f.engine.Prime(at(21, 5, 59))
	outcome := f.engine.Tick(ctx, at(21, 6, 1), ConfirmFunc(func(time.Weekday, string) bool { return true }))
	if outcome.Reloaded {
		t.Fatalf("expected keep after load failure, got %#v", outcome)
	}
	if _, ok := f.board.Schedule().Activity("morning"); !ok {
		t.Fatal("expected original schedule kept")
	}
	if f.engine.DialogActive() {
		t.Fatal("expected dialog closed")
	}
}

func TestOpenDayRegistersSeedsAndHydrates(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(t, repo)
	loader := &fakeLoader{schedules: map[string]domain.Schedule{"": saturdaySchedule(t)}}
	date := domain.NewDate(2026, 2, 21)

	board, err := OpenDay(ctx, svc, loader, "", date)
	if err != nil {
		t.Fatalf("OpenDay() error = %v", err)
	}
	squats, ok := board.Task("gym", 0)
	if !ok || !squats.HasIdentity() {
		t.Fatalf("expected registered squats task, got %#v", squats)
	}
	if !svc.MarkTask(ctx, squats.UUID, date, true) {
		t.Fatal("expected seeded ledger row")
	}

	if len(loader.saves) != 1 {
		t.Fatalf("expected bare tasks written back once, got %v", loader.saves)
	}
	saved, _ := loader.schedules[""].Activity("gym")
	if saved.Tasks[0].UUID != squats.UUID {
		t.Fatalf("expected saved file to carry %q, got %#v", squats.UUID, saved.Tasks)
	}

	reopened, err := OpenDay(ctx, svc, loader, "", date)
	if err != nil {
		t.Fatalf("OpenDay() second error = %v", err)
	}
	if len(loader.saves) != 1 {
		t.Fatalf("expected migrated file not to be rewritten, got %v", loader.saves)
	}
	again, _ := reopened.Task("gym", 0)
	if again.UUID != squats.UUID {
		t.Fatalf("expected stable uuid, got %q want %q", again.UUID, squats.UUID)
	}
	if !reopened.Done("gym", 0) {
		t.Fatal("expected done flag hydrated from the ledger")
	}

	loader.err = errors.New("boom")
	if _, err := OpenDay(ctx, svc, loader, "", date); err == nil {
		t.Fatal("expected load error")
	}
}
