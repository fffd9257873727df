package tui

import (
	"time"

	"github.com/hylla/daybox/internal/app"
)

// StatsConfig is the initial shape of the statistics view.
type StatsConfig struct {
	Grouping       app.Grouping
	IgnoreWeekends bool
	Limit          int
}

type Option func(*Model)

func DefaultStatsConfig() StatsConfig {
	return StatsConfig{Grouping: app.GroupingDay, Limit: 14}
}

// WithClock sets the time source; the simulated clock plugs in here.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

func WithTickInterval(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.tickInterval = d
		}
	}
}

func WithAutoCenter(enabled bool) Option {
	return func(m *Model) {
		m.autoCenter = enabled
	}
}

func WithStatsConfig(cfg StatsConfig) Option {
	return func(m *Model) {
		if _, err := app.ParseGrouping(string(cfg.Grouping)); err == nil {
			m.stats.grouping = cfg.Grouping
		}
		if cfg.Limit > 0 {
			m.stats.limit = cfg.Limit
		}
		m.stats.ignoreWeekends = cfg.IgnoreWeekends
	}
}

// WithNotifications enables the per-tick notification check.
func WithNotifications(n Notifications) Option {
	return func(m *Model) {
		m.notifications = n
	}
}

// WithClipboard replaces the clipboard writer used by the copy-report key.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyToClipboard = write
		}
	}
}

func WithKeyConfig(cfg KeyConfig) Option {
	return func(m *Model) {
		m.keys.applyConfig(cfg)
	}
}

// WithSaveNotificationsCallback persists the notifications toggle.
func WithSaveNotificationsCallback(save func(bool) error) Option {
	return func(m *Model) {
		m.saveNotifications = save
	}
}

// WithTimelapse enables the speed and real-time keys.
func WithTimelapse(t Timelapse) Option {
	return func(m *Model) {
		m.timelapse = t
	}
}
