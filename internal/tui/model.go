package tui

import (
	"context"
	"fmt"
	"image/color"
	"path/filepath"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"

	"github.com/hylla/daybox/internal/app"
	"github.com/hylla/daybox/internal/domain"
)

// Service is the slice of the application service the TUI needs.
type Service interface {
	LogicalDate(time.Time) domain.Date
	MarkTask(ctx context.Context, taskUUID string, date domain.Date, done bool) bool
	StatisticsReport(context.Context, app.StatisticsQuery) (string, error)
}

// Rollover owns the live board and the new-day decision.
type Rollover interface {
	Board() *app.Board
	Check(context.Context, time.Time) app.RolloverDecision
	Resolve(ctx context.Context, accept bool) (app.RolloverOutcome, error)
}

// Notifications is checked once per tick outside the update loop.
type Notifications interface {
	Enabled() bool
	SetEnabled(bool)
	Check(context.Context, time.Time, domain.Schedule)
	Reset()
}

// Timelapse is the simulated clock control surface.
type Timelapse interface {
	Speed() float64
	SetSpeed(float64) error
	Reset()
}

// viewMode selects the screen.
type viewMode int

const (
	viewTimeline viewMode = iota
	viewStats
)

// defaultTickInterval is the refresh period when none is configured.
const defaultTickInterval = time.Second

// rolloverPrompt is the open "load the new day's schedule?" modal.
type rolloverPrompt struct {
	weekday time.Weekday
	path    string
	date    domain.Date
}

type statsState struct {
	grouping       app.Grouping
	ignoreWeekends bool
	limit          int
	report         string
	loading        bool
	err            error
}

// Model is the day timeline plus the statistics view.
type Model struct {
	svc           Service
	rollover      Rollover
	notifications Notifications
	timelapse     Timelapse

	now          func() time.Time
	tickInterval time.Duration
	autoCenter   bool

	ready  bool
	width  int
	height int
	status string

	help help.Model
	keys keyMap

	view             viewMode
	selectedActivity int
	selectedTask     int
	currentID        string

	prompt *rolloverPrompt

	stats    statsState
	renderer *markdownRenderer

	copyToClipboard   func(string) error
	saveNotifications func(bool) error
}

// tickMsg drives the periodic refresh.
type tickMsg time.Time

type markedMsg struct {
	activityID string
	index      int
	taskUUID   string
	done       bool
	ok         bool
}

type statsLoadedMsg struct {
	report string
	err    error
}

type copiedMsg struct {
	err error
}

type notificationsSavedMsg struct {
	enabled bool
	err     error
}

// NewModel constructs the TUI over svc and the rollover engine.
func NewModel(svc Service, rollover Rollover, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	stats := DefaultStatsConfig()
	m := Model{
		svc:             svc,
		rollover:        rollover,
		now:             time.Now,
		tickInterval:    defaultTickInterval,
		autoCenter:      true,
		status:          "ready",
		help:            h,
		keys:            newKeyMap(),
		renderer:        &markdownRenderer{},
		copyToClipboard: clipboard.WriteAll,
		stats: statsState{
			grouping:       stats.Grouping,
			ignoreWeekends: stats.IgnoreWeekends,
			limit:          stats.Limit,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	m.recenter(m.now())
	return m
}

func (m Model) Init() tea.Cmd {
	return m.scheduleTick()
}

func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m.handleTick()

	case markedMsg:
		if msg.ok {
			return m, nil
		}
		if task, ok := m.board().Task(msg.activityID, msg.index); ok && task.UUID == msg.taskUUID {
			_ = m.board().SetDone(msg.activityID, msg.index, !msg.done)
		}
		m.status = "could not save task state"
		return m, nil

	case statsLoadedMsg:
		m.stats.loading = false
		m.stats.err = msg.err
		if msg.err != nil {
			m.status = "statistics failed: " + msg.err.Error()
			return m, nil
		}
		m.stats.report = msg.report
		m.status = "statistics updated"
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.status = "copy failed: " + msg.err.Error()
		} else {
			m.status = "report copied to clipboard"
		}
		return m, nil

	case notificationsSavedMsg:
		if msg.err != nil {
			m.status = "notifications toggled, not saved: " + msg.err.Error()
		}
		return m, nil

	case tea.KeyPressMsg:
		if m.prompt != nil {
			return m.handlePromptKey(msg)
		}
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		if key.Matches(msg, m.keys.toggleHelp) {
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
		if m.view == viewStats {
			return m.handleStatsKey(msg)
		}
		return m.handleTimelineKey(msg)
	}
	return m, nil
}

// handleTick advances rollover and notifications; both are skipped while the modal is open.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	now := m.now()
	next := m.scheduleTick()
	if m.rollover == nil {
		return m, next
	}
	if m.prompt != nil {
		return m, next
	}

	ctx := context.Background()
	decision := m.rollover.Check(ctx, now)
	switch decision.Kind {
	case app.DecisionPending:
		m.prompt = &rolloverPrompt{weekday: decision.Weekday, path: decision.Path, date: decision.Date}
		m.status = fmt.Sprintf("new day %s: choose a schedule", decision.Date)
		return m, next
	case app.DecisionKept:
		m.applyOutcome(decision.Outcome, now)
	}

	if current, ok := m.board().Schedule().CurrentActivity(domain.ClockTimeOf(now)); ok && current.ID != m.currentID {
		m.currentID = current.ID
		if m.autoCenter {
			m.recenter(now)
		}
	}
	if cmd := m.notifyCmd(now); cmd != nil {
		return m, tea.Batch(next, cmd)
	}
	return m, next
}

// notifyCmd runs one notification check off the update loop.
func (m Model) notifyCmd(now time.Time) tea.Cmd {
	if m.notifications == nil || !m.notifications.Enabled() {
		return nil
	}
	notifications := m.notifications
	schedule := m.board().Schedule()
	return func() tea.Msg {
		notifications.Check(context.Background(), now, schedule)
		return nil
	}
}

func (m *Model) applyOutcome(outcome app.RolloverOutcome, now time.Time) {
	m.status = outcome.Status
	if outcome.Recenter {
		m.recenter(now)
	} else {
		m.clampSelection()
	}
}

func (m Model) handlePromptKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	var accept bool
	switch {
	case key.Matches(msg, m.keys.accept):
		accept = true
	case key.Matches(msg, m.keys.decline):
		accept = false
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	default:
		return m, nil
	}
	m.prompt = nil
	outcome, err := m.rollover.Resolve(context.Background(), accept)
	if err != nil {
		m.status = "rollover: " + err.Error()
		return m, nil
	}
	m.applyOutcome(outcome, m.now())
	return m, nil
}

func (m Model) handleTimelineKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	activities := m.board().Schedule().Activities()
	switch {
	case msg.String() == "esc":
		m.help.ShowAll = false
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.moveTask(activities, 1)
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		m.moveTask(activities, -1)
		return m, nil
	case key.Matches(msg, m.keys.nextActivity):
		if m.selectedActivity < len(activities)-1 {
			m.selectedActivity++
			m.selectedTask = 0
		}
		return m, nil
	case key.Matches(msg, m.keys.prevActivity):
		if m.selectedActivity > 0 {
			m.selectedActivity--
			m.selectedTask = 0
		}
		return m, nil
	case key.Matches(msg, m.keys.recenter):
		m.recenter(m.now())
		m.status = "re-centered"
		return m, nil
	case key.Matches(msg, m.keys.toggleTask):
		return m.toggleSelectedTask(activities)
	case key.Matches(msg, m.keys.stats):
		m.view = viewStats
		cmd := m.loadStats()
		return m, cmd
	case key.Matches(msg, m.keys.notifications):
		return m.toggleNotifications()
	case key.Matches(msg, m.keys.faster):
		return m.scaleSpeed(2)
	case key.Matches(msg, m.keys.slower):
		return m.scaleSpeed(0.5)
	case key.Matches(msg, m.keys.realTime):
		return m.resetClock()
	}
	return m, nil
}

func (m Model) scaleSpeed(factor float64) (tea.Model, tea.Cmd) {
	if m.timelapse == nil {
		return m, nil
	}
	speed := m.timelapse.Speed() * factor
	if err := m.timelapse.SetSpeed(speed); err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.status = fmt.Sprintf("timelapse x%g", speed)
	return m, nil
}

// resetClock returns to real time. Notification dedupe is cleared since the clock may jump back.
func (m Model) resetClock() (tea.Model, tea.Cmd) {
	if m.timelapse == nil {
		return m, nil
	}
	m.timelapse.Reset()
	if m.notifications != nil {
		m.notifications.Reset()
	}
	m.recenter(m.now())
	m.status = "real time"
	return m, nil
}

func (m Model) handleStatsKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.stats):
		m.view = viewTimeline
		m.status = "ready"
		return m, nil
	case key.Matches(msg, m.keys.grouping):
		m.stats.grouping = m.stats.grouping.Next()
		cmd := m.loadStats()
		return m, cmd
	case key.Matches(msg, m.keys.weekends):
		m.stats.ignoreWeekends = !m.stats.ignoreWeekends
		cmd := m.loadStats()
		return m, cmd
	case key.Matches(msg, m.keys.copyReport):
		if strings.TrimSpace(m.stats.report) == "" {
			m.status = "nothing to copy"
			return m, nil
		}
		report, write := m.stats.report, m.copyToClipboard
		return m, func() tea.Msg {
			return copiedMsg{err: write(report)}
		}
	}
	return m, nil
}

// moveTask walks the task cursor across activity boundaries.
func (m *Model) moveTask(activities []domain.Activity, delta int) {
	if len(activities) == 0 {
		return
	}
	m.clampSelection()
	tasks := len(activities[m.selectedActivity].Tasks)
	next := m.selectedTask + delta
	switch {
	case next >= 0 && next < tasks:
		m.selectedTask = next
	case next >= tasks && m.selectedActivity < len(activities)-1:
		m.selectedActivity++
		m.selectedTask = 0
	case next < 0 && m.selectedActivity > 0:
		m.selectedActivity--
		m.selectedTask = max(0, len(activities[m.selectedActivity].Tasks)-1)
	}
}

// toggleSelectedTask flips the flag immediately and persists it in the background.
func (m Model) toggleSelectedTask(activities []domain.Activity) (tea.Model, tea.Cmd) {
	if len(activities) == 0 {
		m.status = "no schedule loaded"
		return m, nil
	}
	m.clampSelection()
	activity := activities[m.selectedActivity]
	task, ok := m.board().Task(activity.ID, m.selectedTask)
	if !ok {
		m.status = "no task selected"
		return m, nil
	}
	done := !m.board().Done(activity.ID, m.selectedTask)
	if err := m.board().SetDone(activity.ID, m.selectedTask, done); err != nil {
		m.status = err.Error()
		return m, nil
	}
	if done {
		m.status = fmt.Sprintf("done: %s", task.Name)
	} else {
		m.status = fmt.Sprintf("reopened: %s", task.Name)
	}
	if !task.HasIdentity() {
		m.status += " (not tracked)"
		return m, nil
	}
	svc := m.svc
	date := svc.LogicalDate(m.now())
	idx := m.selectedTask
	return m, func() tea.Msg {
		ok := svc.MarkTask(context.Background(), task.UUID, date, done)
		return markedMsg{activityID: activity.ID, index: idx, taskUUID: task.UUID, done: done, ok: ok}
	}
}

func (m Model) toggleNotifications() (tea.Model, tea.Cmd) {
	if m.notifications == nil {
		m.status = "notifications unavailable"
		return m, nil
	}
	enabled := !m.notifications.Enabled()
	m.notifications.SetEnabled(enabled)
	if enabled {
		m.status = "notifications on"
	} else {
		m.status = "notifications off"
	}
	if m.saveNotifications == nil {
		return m, nil
	}
	save := m.saveNotifications
	return m, func() tea.Msg {
		return notificationsSavedMsg{enabled: enabled, err: save(enabled)}
	}
}

func (m *Model) loadStats() tea.Cmd {
	m.stats.loading = true
	m.status = "loading statistics..."
	svc := m.svc
	q := app.StatisticsQuery{
		Grouping:       m.stats.grouping,
		IgnoreWeekends: m.stats.ignoreWeekends,
		Limit:          m.stats.limit,
		Through:        svc.LogicalDate(m.now()),
	}
	return func() tea.Msg {
		report, err := svc.StatisticsReport(context.Background(), q)
		return statsLoadedMsg{report: report, err: err}
	}
}

// recenter moves the cursor to the current activity, or the next one when between blocks.
func (m *Model) recenter(now time.Time) {
	schedule := m.board().Schedule()
	activities := schedule.Activities()
	clock := domain.ClockTimeOf(now)
	target, ok := schedule.CurrentActivity(clock)
	if !ok {
		target, ok = schedule.NextActivity(clock)
	}
	m.selectedActivity = 0
	m.selectedTask = 0
	if !ok {
		return
	}
	for i, activity := range activities {
		if activity.ID == target.ID {
			m.selectedActivity = i
			return
		}
	}
}

func (m *Model) clampSelection() {
	activities := m.board().Schedule().Activities()
	if len(activities) == 0 {
		m.selectedActivity, m.selectedTask = 0, 0
		return
	}
	m.selectedActivity = clamp(m.selectedActivity, 0, len(activities)-1)
	m.selectedTask = clamp(m.selectedTask, 0, max(0, len(activities[m.selectedActivity].Tasks)-1))
}

func (m Model) board() *app.Board {
	if m.rollover == nil || m.rollover.Board() == nil {
		return app.NewBoard(domain.NewSchedule(nil), "")
	}
	return m.rollover.Board()
}

func (m Model) View() tea.View {
	if !m.ready {
		v := tea.NewView("loading...")
		v.AltScreen = true
		return v
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	now := m.now()
	board := m.board()
	done, total := board.Progress()
	header := titleStyle.Render("daybox") + "  " + now.Format("Mon 2006-01-02 15:04:05")
	header += statusStyle.Render(fmt.Sprintf("  day %s", m.svc.LogicalDate(now)))
	header += statusStyle.Render(fmt.Sprintf("  %d/%d done", done, total))
	if path := board.Path(); path != "" {
		header += statusStyle.Render("  " + filepath.Base(path))
	}
	if m.notifications != nil && !m.notifications.Enabled() {
		header += statusStyle.Render("  notifications off")
	}

	var body string
	var helpKeys help.KeyMap = m.keys
	switch m.view {
	case viewStats:
		body = m.renderStats(accent, muted)
		helpKeys = statsHelp{keys: m.keys}
	default:
		body = m.renderTimeline(now, accent, muted, dim)
	}

	sections := []string{header, "", body}
	if strings.TrimSpace(m.status) != "" && m.status != "ready" {
		sections = append(sections, "", statusStyle.Render(m.status))
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(helpKeys))
	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	fullContent := content + "\n" + helpLine

	if m.prompt != nil {
		overlayHeight := lipgloss.Height(fullContent)
		if m.height > 0 {
			overlayHeight = m.height
		}
		fullContent = overlayOnContent(fullContent, m.renderPrompt(accent, muted), max(1, m.width), max(1, overlayHeight))
	}

	v := tea.NewView(fullContent)
	v.AltScreen = true
	return v
}

// renderTimeline lists activities with their checklists, keeping the cursor line centered.
func (m Model) renderTimeline(now time.Time, accent, muted, dim color.Color) string {
	activities := m.board().Schedule().Activities()
	if len(activities) == 0 {
		return lipgloss.NewStyle().Foreground(muted).Render("No activities scheduled.")
	}
	clock := domain.ClockTimeOf(now)
	currentStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	finishedStyle := lipgloss.NewStyle().Foreground(dim).Strikethrough(true)
	upcomingStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	taskStyle := lipgloss.NewStyle().Foreground(muted)
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)

	lines := make([]string, 0, len(activities)*3)
	cursor := 0
	for i, activity := range activities {
		marker, style := "  ", upcomingStyle
		switch {
		case activity.IsActiveAt(clock):
			marker, style = "▶ ", currentStyle
		case activity.IsFinishedAt(clock):
			style = finishedStyle
		}
		label := fmt.Sprintf("%s–%s  %s", activity.Start, activity.End, activity.Name)
		if i == m.selectedActivity && len(activity.Tasks) == 0 {
			cursor = len(lines)
			label = selectedStyle.Render(label)
		} else {
			label = style.Render(label)
		}
		lines = append(lines, marker+label)
		for j, task := range activity.Tasks {
			check := "[ ]"
			if m.board().Done(activity.ID, j) {
				check = "[x]"
			}
			row := fmt.Sprintf("    %s %s", check, truncate(task.Name, max(8, m.width-10)))
			if i == m.selectedActivity && j == m.selectedTask {
				cursor = len(lines)
				row = selectedStyle.Render(row)
			} else {
				row = taskStyle.Render(row)
			}
			lines = append(lines, row)
		}
	}

	windowSize := len(lines)
	if m.height > 0 {
		windowSize = max(1, m.height-8)
	}
	start, end := windowBounds(len(lines), cursor, windowSize)
	return strings.Join(lines[start:end], "\n")
}

func (m Model) renderStats(accent, muted color.Color) string {
	title := lipgloss.NewStyle().Bold(true).Foreground(accent).Render(fmt.Sprintf("Statistics · %s", m.stats.grouping))
	if m.stats.ignoreWeekends {
		title += lipgloss.NewStyle().Foreground(muted).Render("  weekends excluded")
	}
	switch {
	case m.stats.loading && m.stats.report == "":
		return title + "\n\nloading..."
	case m.stats.err != nil && m.stats.report == "":
		return title + "\n\n" + m.stats.err.Error()
	}
	return title + "\n\n" + m.renderer.render(m.stats.report, max(0, m.width-4))
}

func (m Model) renderPrompt(accent, muted color.Color) string {
	p := m.prompt
	body := strings.Join([]string{
		lipgloss.NewStyle().Bold(true).Foreground(accent).Render("New day: " + p.weekday.String()),
		"",
		fmt.Sprintf("Load %s for %s?", filepath.Base(p.path), p.date),
		"",
		lipgloss.NewStyle().Foreground(muted).Render("y load • n/esc keep current schedule"),
	}, "\n")
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(1, 2).
		Render(body)
}

func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// windowBounds returns an inclusive-exclusive list window that keeps selected centered when possible.
func windowBounds(total, selected, windowSize int) (int, int) {
	if total <= 0 || windowSize <= 0 {
		return 0, 0
	}
	if total <= windowSize {
		return 0, total
	}
	selected = clamp(selected, 0, total-1)
	start := max(0, selected-windowSize/2)
	end := start + windowSize
	if end > total {
		end = total
		start = max(0, end-windowSize)
	}
	return start, end
}

// fitLines pads or cuts content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent centers overlay over base on a width x height canvas.
func overlayOnContent(base, overlay string, width, height int) string {
	if width <= 0 || height <= 0 {
		if strings.TrimSpace(overlay) == "" {
			return base
		}
		return overlay + "\n\n" + base
	}
	base = fitLines(base, height)
	canvas := lipgloss.NewCanvas(width, height)
	centered := lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlay)
	canvas.Compose(lipgloss.NewLayer(base).X(0).Y(0).Z(0))
	canvas.Compose(lipgloss.NewLayer(centered).X(0).Y(0).Z(10))
	return canvas.Render()
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	if limit == 1 {
		return string(rs[:1])
	}
	return string(rs[:limit-1]) + "…"
}
