package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hylla/daybox/internal/domain"
)

// DefaultAdvanceWarning is how long before an activity starts the warning goes out.
const DefaultAdvanceWarning = 30 * time.Second

// NotificationConfig holds configuration for notification checks.
type NotificationConfig struct {
	Enabled        bool
	AdvanceWarning time.Duration
	// OnActivityChange runs whenever the current activity name changes.
	OnActivityChange func(domain.Activity)
	Logger           Logger
}

// NotificationService sends the advance warning and the activity start push messages.
// It is safe for concurrent use. Checks are serialized and a check older than the last
// one processed is dropped, so ticks that reach the lock out of order cannot replay.
type NotificationService struct {
	mu           sync.Mutex
	enabled      atomic.Bool
	notifier     Notifier
	cfg          NotificationConfig
	logger       Logger
	lastActivity string
	warnedNext   string
	lastCheck    time.Time
}

// NewNotificationService constructs a new value for this package.
func NewNotificationService(notifier Notifier, cfg NotificationConfig) *NotificationService {
	if cfg.AdvanceWarning <= 0 {
		cfg.AdvanceWarning = DefaultAdvanceWarning
	}
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	n := &NotificationService{notifier: notifier, cfg: cfg, logger: logger}
	n.enabled.Store(cfg.Enabled)
	return n
}

// Enabled reports whether notifications are sent.
func (n *NotificationService) Enabled() bool {
	return n.enabled.Load()
}

// SetEnabled toggles notifications; disabling clears all dedupe state.
func (n *NotificationService) SetEnabled(enabled bool) {
	n.enabled.Store(enabled)
	if !enabled {
		n.mu.Lock()
		defer n.mu.Unlock()
		n.resetLocked()
	}
	n.logger.Info("notifications toggled", "enabled", enabled)
}

// Reset forgets the dedupe state and the last check instant. Call it when the clock
// is moved backwards.
func (n *NotificationService) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resetLocked()
}

func (n *NotificationService) resetLocked() {
	n.lastActivity = ""
	n.warnedNext = ""
	n.lastCheck = time.Time{}
}

// Check sends due notifications for the schedule at now.
func (n *NotificationService) Check(ctx context.Context, now time.Time, schedule domain.Schedule) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.enabled.Load() {
		return
	}
	if now.Before(n.lastCheck) {
		n.logger.Debug("stale notification check dropped", "at", now, "last", n.lastCheck)
		return
	}
	n.lastCheck = now
	n.checkAdvance(ctx, now, schedule)
	n.checkActivityChange(ctx, now, schedule)
}

func (n *NotificationService) checkAdvance(ctx context.Context, now time.Time, schedule domain.Schedule) {
	next, start, ok := schedule.NextStart(now)
	if !ok {
		n.warnedNext = ""
		return
	}
	until := start.Sub(now)
	if until < 0 || until > n.cfg.AdvanceWarning {
		n.warnedNext = ""
		return
	}
	if n.warnedNext == next.Name {
		return
	}
	n.warnedNext = next.Name
	_ = n.send(ctx, Notification{
		Title:   fmt.Sprintf("%d seconds to start %s", int(n.cfg.AdvanceWarning.Seconds()), next.Name),
		Body:    fmt.Sprintf("%s starts at %s", next.Name, next.Start),
		Delayed: true,
	})
}

func (n *NotificationService) checkActivityChange(ctx context.Context, now time.Time, schedule domain.Schedule) {
	current, ok := schedule.CurrentActivity(domain.ClockTimeOf(now))
	if !ok {
		n.lastActivity = ""
		return
	}
	if current.Name == n.lastActivity {
		return
	}
	n.lastActivity = current.Name
	if n.cfg.OnActivityChange != nil {
		n.cfg.OnActivityChange(current)
	}
	_ = n.send(ctx, Notification{Title: current.Name, Body: numberedLines(current.Description)})
}

// SendCustom sends an ad-hoc message when notifications are enabled.
func (n *NotificationService) SendCustom(ctx context.Context, title, message string, delayed bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.enabled.Load() {
		return ErrNotifyDisabled
	}
	return n.send(ctx, Notification{Title: title, Body: message, Delayed: delayed})
}

// send delivers msg. Failures are logged here; scheduled checks ignore the returned error.
func (n *NotificationService) send(ctx context.Context, msg Notification) error {
	if n.notifier == nil {
		n.logger.Debug("notification dropped: no transport", "title", msg.Title)
		return ErrNoTransport
	}
	if err := n.notifier.Notify(ctx, msg); err != nil {
		n.logger.Warn("notification send failed", "title", msg.Title, "err", err)
		return err
	}
	n.logger.Info("notification sent", "title", msg.Title, "delayed", msg.Delayed)
	return nil
}

func numberedLines(lines []string) string {
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		out = append(out, fmt.Sprintf("%d. %s", i+1, line))
	}
	return strings.Join(out, "\n")
}
