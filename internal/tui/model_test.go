package tui

import (
	"context"
	"errors"
	"image/color"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/hylla/daybox/internal/app"
	"github.com/hylla/daybox/internal/domain"
)

type markCall struct {
	taskUUID string
	date     domain.Date
	done     bool
}

type fakeService struct {
	marks     []markCall
	markOK    bool
	queries   []app.StatisticsQuery
	report    string
	reportErr error
}

func (f *fakeService) LogicalDate(now time.Time) domain.Date {
	date, _ := domain.LogicalDate(now, 6)
	return date
}

func (f *fakeService) MarkTask(_ context.Context, taskUUID string, date domain.Date, done bool) bool {
	f.marks = append(f.marks, markCall{taskUUID: taskUUID, date: date, done: done})
	return f.markOK
}

func (f *fakeService) StatisticsReport(_ context.Context, q app.StatisticsQuery) (string, error) {
	f.queries = append(f.queries, q)
	return f.report, f.reportErr
}

type fakeRollover struct {
	board     *app.Board
	decisions []app.RolloverDecision
	checks    int
	resolved  []bool
	outcome   app.RolloverOutcome
}

func (f *fakeRollover) Board() *app.Board {
	return f.board
}

func (f *fakeRollover) Check(context.Context, time.Time) app.RolloverDecision {
	f.checks++
	if len(f.decisions) == 0 {
		return app.RolloverDecision{Kind: app.DecisionNone}
	}
	d := f.decisions[0]
	f.decisions = f.decisions[1:]
	return d
}

func (f *fakeRollover) Resolve(_ context.Context, accept bool) (app.RolloverOutcome, error) {
	f.resolved = append(f.resolved, accept)
	return f.outcome, nil
}

type fakeNotifications struct {
	enabled bool
	checks  []domain.Schedule
	resets  int
}

func (f *fakeNotifications) Reset() { f.resets++ }

func (f *fakeNotifications) Enabled() bool     { return f.enabled }
func (f *fakeNotifications) SetEnabled(v bool) { f.enabled = v }
func (f *fakeNotifications) Check(_ context.Context, _ time.Time, s domain.Schedule) {
	f.checks = append(f.checks, s)
}

func mustActivity(t *testing.T, id, name, start, end string, tasks ...domain.Task) domain.Activity {
	t.Helper()
	a, err := domain.NewActivity(domain.ActivityInput{ID: id, Name: name, Start: start, End: end, Tasks: tasks})
	if err != nil {
		t.Fatalf("NewActivity(%s) error = %v", id, err)
	}
	return a
}

func testBoard(t *testing.T) *app.Board {
	t.Helper()
	return app.NewBoard(domain.NewSchedule([]domain.Activity{
		mustActivity(t, "morning", "Morning routine", "08:00", "09:00",
			domain.Task{Name: "Stretch", UUID: "u-stretch"},
			domain.Task{Name: "Journal", UUID: "u-journal"},
		),
		mustActivity(t, "focus", "Focus", "09:00", "12:00",
			domain.Task{Name: "Deep work", UUID: "u-deep"},
		),
		mustActivity(t, "lunch", "Lunch", "12:00", "13:00"),
	}), "/schedules/default_settings.yaml")
}

func fixedClock(h, m int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, 2, 21, h, m, 0, 0, time.UTC)
	}
}

func newTestModel(t *testing.T, svc *fakeService, ro *fakeRollover, opts ...Option) Model {
	t.Helper()
	if ro.board == nil {
		ro.board = testBoard(t)
	}
	opts = append([]Option{WithClock(fixedClock(8, 30))}, opts...)
	return NewModel(svc, ro, opts...)
}

func TestNewModelCentersOnCurrentActivity(t *testing.T) {
	m := newTestModel(t, &fakeService{}, &fakeRollover{}, WithClock(fixedClock(9, 15)))
	if m.selectedActivity != 1 || m.selectedTask != 0 {
		t.Fatalf("expected focus selected, got %d/%d", m.selectedActivity, m.selectedTask)
	}
	between := newTestModel(t, &fakeService{}, &fakeRollover{}, WithClock(fixedClock(7, 0)))
	if between.selectedActivity != 0 {
		t.Fatalf("expected next activity selected before the day starts, got %d", between.selectedActivity)
	}
}

func TestModelToggleTaskMarksLedger(t *testing.T) {
	svc := &fakeService{markOK: true}
	ro := &fakeRollover{}
	m := newTestModel(t, svc, ro)

	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeySpace, Text: " "})
	if !ro.board.Done("morning", 1) {
		t.Fatal("expected journal flagged done")
	}
	if len(svc.marks) != 1 {
		t.Fatalf("expected one ledger mark, got %#v", svc.marks)
	}
	got := svc.marks[0]
	if got.taskUUID != "u-journal" || !got.done || got.date != domain.NewDate(2026, 2, 21) {
		t.Fatalf("unexpected mark %#v", got)
	}
	if !strings.Contains(m.status, "Journal") {
		t.Fatalf("unexpected status %q", m.status)
	}

	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeySpace, Text: " "})
	if ro.board.Done("morning", 1) || svc.marks[1].done {
		t.Fatal("expected second toggle to reopen the task")
	}
}

func TestModelToggleRevertsWhenLedgerWriteFails(t *testing.T) {
	svc := &fakeService{markOK: false}
	ro := &fakeRollover{}
	m := newTestModel(t, svc, ro)

	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeySpace, Text: " "})
	if ro.board.Done("morning", 0) {
		t.Fatal("expected flag reverted after failed write")
	}
	if m.status != "could not save task state" {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestModelNavigationCrossesActivities(t *testing.T) {
	m := newTestModel(t, &fakeService{}, &fakeRollover{})
	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, keyRune('j'))
	if m.selectedActivity != 1 || m.selectedTask != 0 {
		t.Fatalf("expected focus/0, got %d/%d", m.selectedActivity, m.selectedTask)
	}
	m = applyMsg(t, m, keyRune('k'))
	if m.selectedActivity != 0 || m.selectedTask != 1 {
		t.Fatalf("expected morning/1, got %d/%d", m.selectedActivity, m.selectedTask)
	}
	m = applyMsg(t, m, keyRune('l'))
	m = applyMsg(t, m, keyRune('l'))
	m = applyMsg(t, m, keyRune('l'))
	if m.selectedActivity != 2 {
		t.Fatalf("expected last activity, got %d", m.selectedActivity)
	}
	m = applyMsg(t, m, keyRune('c'))
	if m.selectedActivity != 0 || m.status != "re-centered" {
		t.Fatalf("expected re-center on morning, got %d (%q)", m.selectedActivity, m.status)
	}
}

func TestModelRolloverPromptSkipsTicksUntilAnswered(t *testing.T) {
	ro := &fakeRollover{
		decisions: []app.RolloverDecision{{
			Kind:    app.DecisionPending,
			Weekday: time.Saturday,
			Path:    "/schedules/Saturday_settings.yaml",
			Date:    domain.NewDate(2026, 2, 21),
		}},
		outcome: app.RolloverOutcome{Reloaded: true, Recenter: true, Status: "new day 2026-02-21: Saturday schedule loaded"},
	}
	m := newTestModel(t, &fakeService{}, ro)

	updated, cmd := m.Update(tickMsg(time.Time{}))
	m = updated.(Model)
	if cmd == nil {
		t.Fatal("expected tick to be rescheduled")
	}
	if m.prompt == nil || m.prompt.weekday != time.Saturday {
		t.Fatalf("expected rollover prompt, got %#v", m.prompt)
	}
	updated, cmd = m.Update(tickMsg(time.Time{}))
	m = updated.(Model)
	if ro.checks != 1 {
		t.Fatalf("expected ticks skipped while prompt open, got %d checks", ro.checks)
	}
	if cmd == nil {
		t.Fatal("expected tick rescheduled while prompt open")
	}

	m = applyMsg(t, m, keyRune('j'))
	if m.prompt == nil || len(ro.resolved) != 0 {
		t.Fatal("expected unrelated keys ignored while prompt open")
	}
	m = applyMsg(t, m, keyRune('y'))
	if m.prompt != nil {
		t.Fatal("expected prompt closed")
	}
	if len(ro.resolved) != 1 || !ro.resolved[0] {
		t.Fatalf("expected accept, got %#v", ro.resolved)
	}
	if m.status != ro.outcome.Status {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestModelRolloverPromptDecline(t *testing.T) {
	ro := &fakeRollover{
		decisions: []app.RolloverDecision{{Kind: app.DecisionPending, Weekday: time.Monday, Path: "/s/Monday_settings.yaml"}},
		outcome:   app.RolloverOutcome{Status: "kept"},
	}
	m := newTestModel(t, &fakeService{}, ro)
	updated, _ := m.Update(tickMsg(time.Time{}))
	m = updated.(Model)
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if len(ro.resolved) != 1 || ro.resolved[0] {
		t.Fatalf("expected decline, got %#v", ro.resolved)
	}
	if m.prompt != nil || m.status != "kept" {
		t.Fatalf("unexpected state prompt=%v status=%q", m.prompt, m.status)
	}
}

func TestModelKeptRolloverRecenters(t *testing.T) {
	ro := &fakeRollover{decisions: []app.RolloverDecision{{
		Kind:    app.DecisionKept,
		Outcome: app.RolloverOutcome{Recenter: true, Status: "new day: kept"},
	}}}
	m := newTestModel(t, &fakeService{}, ro)
	m.selectedActivity = 2
	updated, _ := m.Update(tickMsg(time.Time{}))
	m = updated.(Model)
	if m.selectedActivity != 0 || m.status != "new day: kept" {
		t.Fatalf("expected recenter after rollover, got %d (%q)", m.selectedActivity, m.status)
	}
}

func TestModelStatisticsView(t *testing.T) {
	svc := &fakeService{report: "# Statistics\n\n## Stretch\n"}
	var copied string
	m := newTestModel(t, svc, &fakeRollover{},
		WithStatsConfig(StatsConfig{Grouping: app.GroupingDay, Limit: 7}),
		WithClipboard(func(s string) error {
			copied = s
			return nil
		}),
	)

	m = applyMsg(t, m, keyRune('s'))
	if m.view != viewStats || m.stats.report != svc.report {
		t.Fatalf("expected stats view with report, got view=%d report=%q", m.view, m.stats.report)
	}
	if got := svc.queries[0]; got.Grouping != app.GroupingDay || got.Limit != 7 || got.Through != domain.NewDate(2026, 2, 21) {
		t.Fatalf("unexpected query %#v", got)
	}

	m = applyMsg(t, m, keyRune('g'))
	m = applyMsg(t, m, keyRune('w'))
	last := svc.queries[len(svc.queries)-1]
	if last.Grouping != app.GroupingWeek || !last.IgnoreWeekends {
		t.Fatalf("unexpected query after grouping and weekend toggle %#v", last)
	}

	m = applyMsg(t, m, keyRune('y'))
	if copied != svc.report || m.status != "report copied to clipboard" {
		t.Fatalf("expected report copied, got %q (%q)", copied, m.status)
	}

	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.view != viewTimeline {
		t.Fatal("expected esc to return to the timeline")
	}
}

func TestModelStatisticsErrors(t *testing.T) {
	svc := &fakeService{reportErr: errors.New("db locked")}
	m := newTestModel(t, svc, &fakeRollover{}, WithClipboard(func(string) error {
		t.Fatal("clipboard must not be used without a report")
		return nil
	}))
	m = applyMsg(t, m, keyRune('s'))
	if m.stats.err == nil || !strings.Contains(m.status, "db locked") {
		t.Fatalf("expected statistics error surfaced, got %q", m.status)
	}
	m = applyMsg(t, m, keyRune('y'))
	if m.status != "nothing to copy" {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestModelNotificationsCheckedPerTick(t *testing.T) {
	notes := &fakeNotifications{enabled: true}
	var saved []bool
	m := newTestModel(t, &fakeService{}, &fakeRollover{},
		WithNotifications(notes),
		WithSaveNotificationsCallback(func(v bool) error {
			saved = append(saved, v)
			return nil
		}),
	)

	cmd := m.notifyCmd(fixedClock(8, 59)())
	if cmd == nil {
		t.Fatal("expected notification command")
	}
	cmd()
	if len(notes.checks) != 1 || notes.checks[0].Len() != 3 {
		t.Fatalf("expected one check with the live schedule, got %#v", notes.checks)
	}

	m = applyMsg(t, m, keyRune('n'))
	if notes.enabled || m.status != "notifications off" {
		t.Fatalf("expected notifications off, got %v (%q)", notes.enabled, m.status)
	}
	if len(saved) != 1 || saved[0] {
		t.Fatalf("expected disabled state saved, got %#v", saved)
	}
	if m.notifyCmd(fixedClock(9, 0)()) != nil {
		t.Fatal("expected no notification command while disabled")
	}
}

type fakeTimelapse struct {
	speed  float64
	resets int
}

func (f *fakeTimelapse) Speed() float64 { return f.speed }
func (f *fakeTimelapse) SetSpeed(v float64) error {
	if v <= 0 || v > 1000 {
		return errors.New("timelapse speed must be in (0, 1000]")
	}
	f.speed = v
	return nil
}
func (f *fakeTimelapse) Reset() {
	f.speed = 1
	f.resets++
}

func TestModelTimelapseKeys(t *testing.T) {
	clock := &fakeTimelapse{speed: 1}
	notes := &fakeNotifications{enabled: true}
	m := newTestModel(t, &fakeService{}, &fakeRollover{}, WithTimelapse(clock), WithNotifications(notes))

	m = applyMsg(t, m, keyRune(']'))
	m = applyMsg(t, m, keyRune(']'))
	if clock.speed != 4 || m.status != "timelapse x4" {
		t.Fatalf("expected x4, got %g (%q)", clock.speed, m.status)
	}
	m = applyMsg(t, m, keyRune('['))
	if clock.speed != 2 {
		t.Fatalf("expected x2, got %g", clock.speed)
	}
	clock.speed = 800
	m = applyMsg(t, m, keyRune(']'))
	if clock.speed != 800 || !strings.Contains(m.status, "timelapse speed") {
		t.Fatalf("expected rejected speed to keep x800, got %g (%q)", clock.speed, m.status)
	}

	m = applyMsg(t, m, keyRune('0'))
	if clock.resets != 1 || notes.resets != 1 || m.status != "real time" {
		t.Fatalf("expected clock and notification reset, got %d/%d (%q)", clock.resets, notes.resets, m.status)
	}
}

func TestModelViewRendersTimeline(t *testing.T) {
	ro := &fakeRollover{}
	m := newTestModel(t, &fakeService{}, ro)
	if err := ro.board.SetDone("morning", 0, true); err != nil {
		t.Fatalf("SetDone() error = %v", err)
	}
	m = applyMsg(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	v := m.View()
	if v.Content == nil || !v.AltScreen {
		t.Fatal("expected alt-screen view content")
	}

	var accent, muted, dim color.Color = lipgloss.Color("62"), lipgloss.Color("241"), lipgloss.Color("239")
	timeline := m.renderTimeline(fixedClock(8, 30)(), accent, muted, dim)
	for _, want := range []string{"Morning routine", "[x] Stretch", "[ ] Journal", "Deep work", "▶"} {
		if !strings.Contains(timeline, want) {
			t.Fatalf("expected timeline to contain %q:\n%s", want, timeline)
		}
	}
}

func TestWindowBoundsCentersSelection(t *testing.T) {
	cases := []struct {
		total, selected, size, start, end int
	}{
		{total: 5, selected: 4, size: 10, start: 0, end: 5},
		{total: 20, selected: 10, size: 6, start: 7, end: 13},
		{total: 20, selected: 1, size: 6, start: 0, end: 6},
		{total: 20, selected: 19, size: 6, start: 14, end: 20},
	}
	for _, tc := range cases {
		start, end := windowBounds(tc.total, tc.selected, tc.size)
		if start != tc.start || end != tc.end {
			t.Fatalf("windowBounds(%d,%d,%d) = %d,%d want %d,%d", tc.total, tc.selected, tc.size, start, end, tc.start, tc.end)
		}
	}
}

func applyMsg(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, cmd := m.Update(msg)
	out, ok := updated.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", updated)
	}
	return applyCmd(t, out, cmd)
}

func applyCmd(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	out := m
	currentCmd := cmd
	for i := 0; i < 6 && currentCmd != nil; i++ {
		msg := currentCmd()
		updated, nextCmd := out.Update(msg)
		casted, ok := updated.(Model)
		if !ok {
			t.Fatalf("expected Model, got %T", updated)
		}
		out = casted
		currentCmd = nextCmd
	}
	return out
}

func keyRune(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}
