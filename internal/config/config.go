package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/hylla/daybox/internal/app"
	"github.com/hylla/daybox/internal/domain"
)

// Config is the daybox config.toml.
type Config struct {
	Database      DatabaseConfig      `toml:"database"`
	Day           DayConfig           `toml:"day"`
	Timeline      TimelineConfig      `toml:"timeline"`
	Schedule      ScheduleConfig      `toml:"schedule"`
	Notifications NotificationsConfig `toml:"notifications"`
	Statistics    StatisticsConfig    `toml:"statistics"`
	Logging       LoggingConfig       `toml:"logging"`
	Keys          KeyConfig           `toml:"keys"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// DayConfig controls the logical calendar and the refresh loop.
type DayConfig struct {
	StartHour      int `toml:"start_hour"`
	TickIntervalMS int `toml:"tick_interval_ms"`
}

type TimelineConfig struct {
	AutoCenter bool `toml:"auto_center"`
}

// ScheduleConfig locates schedule files. LastUsed is rewritten by the rollover engine.
type ScheduleConfig struct {
	Dir         string `toml:"dir"`
	DefaultFile string `toml:"default_file"`
	LastUsed    string `toml:"last_used"`
}

// NotificationsConfig configures the Gotify transport. An empty token falls back to the keyring.
type NotificationsConfig struct {
	Enabled               bool   `toml:"enabled"`
	URL                   string `toml:"url"`
	Token                 string `toml:"token"`
	AdvanceWarningSeconds int    `toml:"advance_warning_seconds"`
	Priority              int    `toml:"priority"`
	DelayedPriority       int    `toml:"delayed_priority"`
	RatePerMinute         int    `toml:"rate_per_minute"`
}

type StatisticsConfig struct {
	Grouping       string `toml:"grouping"`
	IgnoreWeekends bool   `toml:"ignore_weekends"`
	Limit          int    `toml:"limit"`
}

// LoggingConfig controls runtime log level and the dev-mode log file.
type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// KeyConfig overrides TUI bindings with one key name each, such as "space" or "ctrl+s". Blank keeps the default.
type KeyConfig struct {
	ToggleTask    string `toml:"toggle_task"`
	Stats         string `toml:"stats"`
	Recenter      string `toml:"recenter"`
	Notifications string `toml:"notifications"`
}

// Default returns the config used when no file exists.
func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{Path: dbPath},
		Day: DayConfig{
			StartHour:      6,
			TickIntervalMS: 1000,
		},
		Timeline: TimelineConfig{AutoCenter: true},
		Schedule: ScheduleConfig{
			DefaultFile: "default_settings.yaml",
		},
		Notifications: NotificationsConfig{
			Enabled:               true,
			AdvanceWarningSeconds: int(app.DefaultAdvanceWarning / time.Second),
			Priority:              5,
			DelayedPriority:       8,
			RatePerMinute:         30,
		},
		Statistics: StatisticsConfig{
			Grouping: string(app.GroupingDay),
			Limit:    14,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".daybox/log",
			},
		},
	}
}

// Load reads path over defaults. A missing or empty file yields the defaults unchanged.
func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	c.Database.Path = strings.TrimSpace(c.Database.Path)
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if err := domain.ValidateDayStartHour(c.Day.StartHour); err != nil {
		return fmt.Errorf("invalid day.start_hour: %w", err)
	}
	if c.Day.TickIntervalMS < 50 {
		return fmt.Errorf("invalid day.tick_interval_ms: %d", c.Day.TickIntervalMS)
	}
	if strings.TrimSpace(c.Schedule.DefaultFile) == "" {
		return errors.New("schedule.default_file is required")
	}
	if c.Notifications.AdvanceWarningSeconds < 0 {
		return fmt.Errorf("invalid notifications.advance_warning_seconds: %d", c.Notifications.AdvanceWarningSeconds)
	}
	if c.Notifications.RatePerMinute < 0 {
		return fmt.Errorf("invalid notifications.rate_per_minute: %d", c.Notifications.RatePerMinute)
	}
	if c.Notifications.Enabled && strings.TrimSpace(c.Notifications.URL) != "" {
		if !strings.HasPrefix(c.Notifications.URL, "http://") && !strings.HasPrefix(c.Notifications.URL, "https://") {
			return fmt.Errorf("invalid notifications.url: %q", c.Notifications.URL)
		}
	}
	if _, err := app.ParseGrouping(c.Statistics.Grouping); err != nil {
		return fmt.Errorf("invalid statistics.grouping: %q", c.Statistics.Grouping)
	}
	if c.Statistics.Limit < 1 {
		return fmt.Errorf("invalid statistics.limit: %d", c.Statistics.Limit)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	return nil
}

// TickInterval returns the refresh period.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.Day.TickIntervalMS) * time.Millisecond
}

// AdvanceWarning returns the notification lead time.
func (c Config) AdvanceWarning() time.Duration {
	return time.Duration(c.Notifications.AdvanceWarningSeconds) * time.Second
}

// ScheduleDir returns the configured schedule dir, or fallback when unset.
func (c Config) ScheduleDir(fallback string) string {
	if dir := strings.TrimSpace(c.Schedule.Dir); dir != "" {
		return dir
	}
	return fallback
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return nil
}

// UpsertLastSchedule sets schedule.last_used in the file at path and leaves every other key as written.
func UpsertLastSchedule(path, schedulePath string) error {
	return upsertKey(path, "schedule", "last_used", strings.TrimSpace(schedulePath))
}

// UpsertNotificationsEnabled sets notifications.enabled in the file at path.
func UpsertNotificationsEnabled(path string, enabled bool) error {
	return upsertKey(path, "notifications", "enabled", enabled)
}

func upsertKey(path, section, key string, value any) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("config path is required")
	}
	doc := map[string]any{}
	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("read config: %w", err)
	case len(content) > 0:
		if err := toml.Unmarshal(content, &doc); err != nil {
			return fmt.Errorf("decode toml: %w", err)
		}
	}

	table, ok := doc[section].(map[string]any)
	if !ok {
		table = map[string]any{}
	}
	table[key] = value
	doc[section] = table

	encoded, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	if err := EnsureConfigDir(path); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
