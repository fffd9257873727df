package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hylla/daybox/internal/adapters/credential"
	"github.com/hylla/daybox/internal/adapters/notify/gotify"
	"github.com/hylla/daybox/internal/adapters/schedule/yamlfile"
	"github.com/hylla/daybox/internal/adapters/storage/sqlite"
	"github.com/hylla/daybox/internal/app"
	"github.com/hylla/daybox/internal/config"
	"github.com/hylla/daybox/internal/domain"
	"github.com/hylla/daybox/internal/platform"
	"github.com/hylla/daybox/internal/simclock"
	"github.com/hylla/daybox/internal/tui"
)

var version = "dev"

// program is the part of tea.Program run() needs.
type program interface {
	Run() (tea.Model, error)
}

var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// tokenStore keeps the Gotify token outside config.toml.
type tokenStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

var openCredentials = func(appName, dir string) (tokenStore, error) {
	return credential.Open(appName, dir)
}

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath     string
	dbPath         string
	appName        string
	devMode        bool
	simTime        string
	speed          float64
	noNotification bool
	schedulePath   string

	stdout io.Writer
	stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	loadDotEnv(os.Stderr)
	err := fang.Execute(ctx, newRootCommand(os.Stdout, os.Stderr), fang.WithVersion(version))
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// run executes one command line without fang's styled error output.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	root.SilenceUsage = true
	root.SilenceErrors = true
	return root.ExecuteContext(ctx)
}

// loadDotEnv reads ./.env without overriding variables that are already set.
func loadDotEnv(stderr io.Writer) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintf(stderr, "warning: load .env: %v\n", err)
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	opts := &rootOptions{stdout: stdout, stderr: stderr}

	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("DAYBOX_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	defaultApp := platform.DefaultAppName
	if envApp := strings.TrimSpace(os.Getenv("DAYBOX_APP_NAME")); envApp != "" {
		defaultApp = envApp
	}

	root := &cobra.Command{
		Use:     "daybox",
		Short:   "Timebox your day and keep task streaks",
		Long:    "daybox shows today's schedule as a timeline, tracks task completion per day and reports statistics and streaks.",
		Version: version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), opts)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.appName, "app", defaultApp, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")
	flags.StringVar(&opts.simTime, "time", "", "simulated start time: HH:MM, \"YYYY-MM-DD HH:MM\" or RFC 3339")
	flags.Float64Var(&opts.speed, "timelapse-speed", simclock.DefaultSpeed, "simulated clock speed, in (0, 1000]")
	flags.BoolVar(&opts.noNotification, "no-notification", false, "do not send push notifications")
	flags.StringVar(&opts.schedulePath, "schedule", "", "schedule file to open instead of today's")

	root.AddCommand(
		newPathsCommand(opts),
		newStatsCommand(opts),
		newStreakCommand(opts),
		newMarkCommand(opts),
		newCheckCommand(opts),
		newWatchCommand(opts),
		newTokenCommand(opts),
		newActivityCommand(opts),
		newNotifyCommand(opts),
	)
	return root
}

// runtime is the wiring shared by every command that touches config, storage or the clock.
type runtime struct {
	opts       *rootOptions
	paths      platform.Paths
	configPath string
	cfg        config.Config
	logger     *runtimeLogger
	clock      *simclock.Clock
	loader     *yamlfile.Loader
	repo       *sqlite.Repository
	svc        *app.Service
}

func resolvePaths(opts *rootOptions) (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{
		AppName: opts.appName,
		DevMode: opts.devMode,
	})
}

// openRuntime resolves paths and config, builds the logger and clock and, when withStore
// is set, opens sqlite and the application service.
func openRuntime(opts *rootOptions, command string, withStore bool) (*runtime, error) {
	paths, err := resolvePaths(opts)
	if err != nil {
		return nil, err
	}

	configPath := strings.TrimSpace(opts.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("DAYBOX_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath := strings.TrimSpace(opts.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("DAYBOX_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}

	logger, err := newRuntimeLogger(opts.stderr, opts.appName, opts.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if command == "tui" {
		logger.SetConsoleEnabled(false)
	}
	logger.Info("startup configuration resolved", "app", opts.appName, "dev_mode", opts.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	start, err := simclock.ParseStart(opts.simTime, time.Now())
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	clock, err := simclock.New(opts.speed, start, nil)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	if clock.Simulating() {
		info := clock.Info()
		logger.Info("simulated clock active", "start", info.SimStart.Format(time.RFC3339), "speed", info.Speed)
	}

	rt := &runtime{
		opts:       opts,
		paths:      paths,
		configPath: configPath,
		cfg:        cfg,
		logger:     logger,
		clock:      clock,
		loader:     yamlfile.New(cfg.ScheduleDir(paths.ScheduleDir), cfg.Schedule.DefaultFile),
	}
	if !withStore {
		return rt, nil
	}

	logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		_ = logger.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	svc, err := app.NewService(repo, uuid.NewString, clock.Now, app.ServiceConfig{
		DayStartHour: cfg.Day.StartHour,
		Logger:       logger,
	})
	if err != nil {
		_ = repo.Close()
		_ = logger.Close()
		return nil, fmt.Errorf("configure service: %w", err)
	}
	rt.repo = repo
	rt.svc = svc
	logger.Info("sqlite repository ready", "db_path", cfg.Database.Path, "day_start_hour", cfg.Day.StartHour)
	return rt, nil
}

func (rt *runtime) Close() {
	if rt == nil {
		return
	}
	if rt.repo != nil {
		if err := rt.repo.Close(); err != nil {
			rt.logger.Warn("sqlite close failed", "db_path", rt.cfg.Database.Path, "err", err)
		}
	}
	if err := rt.logger.Close(); err != nil && rt.logger.ConsoleEnabled() {
		_, _ = fmt.Fprintf(rt.opts.stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// startupSchedulePath picks --schedule, then today's weekday file, then the default file,
// then the last schedule the rollover engine loaded.
func (rt *runtime) startupSchedulePath(weekday time.Weekday) string {
	if path := strings.TrimSpace(rt.opts.schedulePath); path != "" {
		return path
	}
	if path := rt.loader.ResolvePath(weekday); fileExists(path) {
		return path
	}
	if last := strings.TrimSpace(rt.cfg.Schedule.LastUsed); last != "" && fileExists(last) {
		rt.logger.Info("default schedule missing; using last loaded schedule", "path", last)
		return last
	}
	return ""
}

// openDay loads today's board and the rollover engine watching it. A missing default
// schedule yields an empty day.
func (rt *runtime) openDay(ctx context.Context) (*app.RolloverEngine, error) {
	date := rt.svc.Today()
	path := rt.startupSchedulePath(date.Weekday())
	board, err := app.OpenDay(ctx, rt.svc, rt.loader, path, date)
	switch {
	case err != nil && path == "" && errors.Is(err, fs.ErrNotExist):
		rt.logger.Warn("default schedule missing; starting with an empty day", "path", rt.loader.DefaultPath())
		board = app.NewBoard(domain.NewSchedule(nil), "")
	case err != nil:
		return nil, fmt.Errorf("open schedule: %w", err)
	}
	done, total := board.Progress()
	rt.logger.Info("schedule opened", "path", board.Path(), "date", date.String(), "done", done, "total", total)

	engine := app.NewRolloverEngine(rt.svc, rt.loader, board, app.RolloverConfig{
		AutoCenter: rt.cfg.Timeline.AutoCenter,
		RecordLastSchedule: func(path string) error {
			return config.UpsertLastSchedule(rt.configPath, path)
		},
		Logger: rt.logger,
	})
	engine.Prime(rt.clock.Now())
	return engine, nil
}

// newNotifications builds the notification service; without a Gotify url or token it only logs.
func (rt *runtime) newNotifications() *app.NotificationService {
	n := rt.cfg.Notifications
	var notifier app.Notifier
	if url := strings.TrimSpace(n.URL); url != "" {
		token := strings.TrimSpace(n.Token)
		if token == "" {
			token = rt.keyringToken()
		}
		client, err := gotify.New(gotify.Config{
			URL:             url,
			Token:           token,
			Priority:        n.Priority,
			DelayedPriority: n.DelayedPriority,
			RatePerMinute:   float64(n.RatePerMinute),
		})
		if err != nil {
			rt.logger.Warn("gotify transport disabled", "url", url, "err", err)
		} else {
			notifier = client
		}
	}
	return app.NewNotificationService(notifier, app.NotificationConfig{
		Enabled:        n.Enabled && !rt.opts.noNotification,
		AdvanceWarning: rt.cfg.AdvanceWarning(),
		OnActivityChange: func(activity domain.Activity) {
			rt.logger.Info("activity started", "activity_id", activity.ID, "name", activity.Name, "start", activity.Start.String())
		},
		Logger: rt.logger,
	})
}

func (rt *runtime) keyringToken() string {
	store, err := openCredentials(rt.opts.appName, rt.paths.KeyringDir)
	if err != nil {
		rt.logger.Warn("keyring unavailable", "err", err)
		return ""
	}
	token, err := store.Get(credential.GotifyTokenKey)
	if err != nil {
		rt.logger.Warn("gotify token lookup failed", "err", err)
		return ""
	}
	return token
}

func runTUI(ctx context.Context, opts *rootOptions) error {
	rt, err := openRuntime(opts, "tui", true)
	if err != nil {
		return err
	}
	defer rt.Close()

	engine, err := rt.openDay(ctx)
	if err != nil {
		return err
	}
	notifications := rt.newNotifications()
	grouping, _ := app.ParseGrouping(rt.cfg.Statistics.Grouping)

	m := tui.NewModel(rt.svc, engine,
		tui.WithClock(rt.clock.Now),
		tui.WithTickInterval(rt.cfg.TickInterval()),
		tui.WithAutoCenter(rt.cfg.Timeline.AutoCenter),
		tui.WithTimelapse(rt.clock),
		tui.WithStatsConfig(tui.StatsConfig{
			Grouping:       grouping,
			IgnoreWeekends: rt.cfg.Statistics.IgnoreWeekends,
			Limit:          rt.cfg.Statistics.Limit,
		}),
		tui.WithNotifications(notifications),
		tui.WithKeyConfig(tui.KeyConfig{
			ToggleTask:    rt.cfg.Keys.ToggleTask,
			Stats:         rt.cfg.Keys.Stats,
			Recenter:      rt.cfg.Keys.Recenter,
			Notifications: rt.cfg.Keys.Notifications,
		}),
		tui.WithSaveNotificationsCallback(func(enabled bool) error {
			rt.logger.Info("notifications toggle persisted", "enabled", enabled, "config_path", rt.configPath)
			return config.UpsertNotificationsEnabled(rt.configPath, enabled)
		}),
	)
	rt.logger.Info("starting tui program loop")
	if _, err := programFactory(m).Run(); err != nil {
		rt.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	rt.logger.Info("command flow complete", "command", "tui")
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// parseBoolEnv reports the parsed value and whether name held a valid bool.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
