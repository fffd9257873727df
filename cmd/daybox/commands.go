package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/hylla/daybox/internal/adapters/credential"
	"github.com/hylla/daybox/internal/app"
	"github.com/hylla/daybox/internal/domain"
	"github.com/hylla/daybox/internal/tui"
)

// confirmFactory asks a yes/no question on the terminal.
var confirmFactory = func(title, description string) (bool, error) {
	var accept bool
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Load").
		Negative("Keep").
		Value(&accept).
		Run()
	return accept, err
}

// secretPrompt reads a secret without echo.
var secretPrompt = func(title string) (string, error) {
	var value string
	err := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&value).
		Run()
	return value, err
}

func newPathsCommand(opts *rootOptions) *cobra.Command {
	var create bool
	cmd := &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data, schedule and database paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(opts, "paths", false)
			if err != nil {
				return err
			}
			defer rt.Close()
			if create {
				if err := rt.paths.EnsureDirs(); err != nil {
					return err
				}
				rt.logger.Info("runtime directories created", "config_dir", filepath.Dir(rt.paths.ConfigPath), "schedule_dir", rt.paths.ScheduleDir)
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "config: %s\n", rt.configPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", rt.paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", rt.cfg.Database.Path)
			_, _ = fmt.Fprintf(out, "schedules: %s\n", rt.loader.Dir)
			_, _ = fmt.Fprintf(out, "default_schedule: %s\n", rt.loader.DefaultPath())
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			return nil
		},
	}
	cmd.Flags().BoolVar(&create, "create", false, "create the config, schedule and data directories")
	return cmd
}

type statsOptions struct {
	grouping       string
	limit          int
	ignoreWeekends bool
	render         bool
	width          int
	through        string
}

func newStatsCommand(opts *rootOptions) *cobra.Command {
	var so statsOptions
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print task completion statistics and streaks as markdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(opts, "stats", true)
			if err != nil {
				return err
			}
			defer rt.Close()

			q := app.StatisticsQuery{
				Grouping:       app.Grouping(rt.cfg.Statistics.Grouping),
				IgnoreWeekends: rt.cfg.Statistics.IgnoreWeekends,
				Limit:          rt.cfg.Statistics.Limit,
			}
			if cmd.Flags().Changed("grouping") {
				g, err := app.ParseGrouping(so.grouping)
				if err != nil {
					return err
				}
				q.Grouping = g
			}
			if cmd.Flags().Changed("limit") {
				q.Limit = so.limit
			}
			if cmd.Flags().Changed("ignore-weekends") {
				q.IgnoreWeekends = so.ignoreWeekends
			}
			if so.through != "" {
				through, err := domain.ParseDate(so.through)
				if err != nil {
					return fmt.Errorf("parse --date: %w", err)
				}
				q.Through = through
			}

			report, err := rt.svc.StatisticsReport(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("build statistics report: %w", err)
			}
			if so.render {
				rendered, err := tui.RenderReport(report, so.width)
				if err != nil {
					return fmt.Errorf("render statistics report: %w", err)
				}
				report = rendered
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(report, "\n"))
			rt.logger.Info("command flow complete", "command", "stats", "grouping", q.Grouping)
			return err
		},
	}
	cmd.Flags().StringVar(&so.grouping, "grouping", "", "bucket size: Day, Week, Month or Year")
	cmd.Flags().IntVar(&so.limit, "limit", 0, "number of points per task")
	cmd.Flags().BoolVar(&so.ignoreWeekends, "ignore-weekends", false, "exclude Saturday and Sunday")
	cmd.Flags().BoolVar(&so.render, "render", false, "render markdown for the terminal")
	cmd.Flags().IntVar(&so.width, "width", 80, "wrap width used with --render")
	cmd.Flags().StringVar(&so.through, "date", "", "newest logical date to include (YYYY-MM-DD)")
	return cmd
}

func newStreakCommand(opts *rootOptions) *cobra.Command {
	var through string
	cmd := &cobra.Command{
		Use:   "streak",
		Short: "Print the current streak of every tracked task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(opts, "streak", true)
			if err != nil {
				return err
			}
			defer rt.Close()

			ref := rt.svc.Today()
			if through != "" {
				ref, err = domain.ParseDate(through)
				if err != nil {
					return fmt.Errorf("parse --date: %w", err)
				}
			}
			identities, err := rt.svc.ListTaskIdentities(cmd.Context())
			if err != nil {
				return err
			}
			if len(identities) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no tracked tasks yet")
				return err
			}
			slices.SortFunc(identities, func(a, b domain.TaskIdentity) int {
				if c := strings.Compare(a.ActivityID, b.ActivityID); c != 0 {
					return c
				}
				return strings.Compare(a.TaskName, b.TaskName)
			})
			rows := make([][]string, 0, len(identities))
			for _, identity := range identities {
				streak := rt.svc.GetStreak(cmd.Context(), identity.TaskUUID, ref)
				rows = append(rows, []string{identity.ActivityID, identity.TaskName, fmt.Sprintf("%d", streak)})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderStreakTable(rows))
			return err
		},
	}
	cmd.Flags().StringVar(&through, "date", "", "reference logical date (YYYY-MM-DD)")
	return cmd
}

// renderStreakTable lays out activity/task/streak rows.
func renderStreakTable(rows [][]string) string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ACTIVITY", "TASK", "STREAK").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		}).
		String()
}

func newMarkCommand(opts *rootOptions) *cobra.Command {
	var (
		undone bool
		onDate string
	)
	cmd := &cobra.Command{
		Use:   "mark <activity-id> <task>",
		Short: "Mark a task done (or undone) for a logical date",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(opts, "mark", true)
			if err != nil {
				return err
			}
			defer rt.Close()

			date := rt.svc.Today()
			if onDate != "" {
				date, err = domain.ParseDate(onDate)
				if err != nil {
					return fmt.Errorf("parse --date: %w", err)
				}
			}
			taskUUID, err := markTask(cmd.Context(), rt.svc, args[0], args[1], date, !undone)
			if err != nil {
				return err
			}
			state := "done"
			if undone {
				state = "not done"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s / %s marked %s on %s (%s)\n", args[0], args[1], state, date, taskUUID)
			return err
		},
	}
	cmd.Flags().BoolVar(&undone, "undone", false, "clear the done flag instead")
	cmd.Flags().StringVar(&onDate, "date", "", "logical date to mark (YYYY-MM-DD, default today)")
	return cmd
}

// markTask resolves the task uuid and sets its flag, creating the registry row and ledger row when absent.
func markTask(ctx context.Context, svc *app.Service, activityID, taskName string, date domain.Date, done bool) (string, error) {
	taskUUID, err := svc.LookupTaskIdentity(ctx, activityID, taskName)
	if err != nil && !errors.Is(err, app.ErrNotFound) {
		return "", err
	}
	if err == nil && svc.MarkTask(ctx, taskUUID, date, done) {
		return taskUUID, nil
	}
	taskUUID, err = svc.AddEntry(ctx, activityID, taskName, taskUUID, date)
	if err != nil {
		return "", fmt.Errorf("add ledger entry: %w", err)
	}
	if !svc.MarkTask(ctx, taskUUID, date, done) {
		return "", fmt.Errorf("mark %s / %s: %w", activityID, taskName, app.ErrPersistence)
	}
	return taskUUID, nil
}

func newCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [schedule]",
		Short: "Validate a schedule file and summarize it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(opts, "check", false)
			if err != nil {
				return err
			}
			defer rt.Close()

			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			schedule, resolved, err := rt.loader.Load(path)
			if err != nil {
				return err
			}
			return writeScheduleSummary(cmd.OutOrStdout(), schedule, resolved)
		},
	}
}

func writeScheduleSummary(out io.Writer, schedule domain.Schedule, path string) error {
	if _, err := fmt.Fprintf(out, "%s: %d activities, %d tasks\n", path, schedule.Len(), schedule.TaskCount()); err != nil {
		return err
	}
	for _, activity := range schedule.Activities() {
		if _, err := fmt.Fprintf(out, "  %s-%s  %s (%s) tasks=%d\n", activity.Start, activity.End, activity.Name, activity.ID, len(activity.Tasks)); err != nil {
			return err
		}
	}
	for _, dup := range schedule.DuplicateTaskNames() {
		if _, err := fmt.Fprintf(out, "warning: %s repeats task names: %s\n", dup.ActivityName, strings.Join(dup.TaskNames, ", ")); err != nil {
			return err
		}
	}
	return nil
}

type watchOptions struct {
	once   bool
	accept string
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var wo watchOptions
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run day rollover and notifications without the TUI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			confirmer, err := watchConfirmer(wo.accept)
			if err != nil {
				return err
			}
			rt, err := openRuntime(opts, "watch", true)
			if err != nil {
				return err
			}
			defer rt.Close()
			return runWatch(cmd.Context(), rt, confirmer, wo.once, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&wo.once, "once", false, "run a single tick and exit")
	cmd.Flags().StringVar(&wo.accept, "accept", "ask", "day-specific schedule choice: ask, yes or no")
	return cmd
}

func watchConfirmer(mode string) (app.Confirmer, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "ask":
		return app.ConfirmFunc(func(weekday time.Weekday, path string) bool {
			accept, err := confirmFactory(
				fmt.Sprintf("Load the %s schedule?", weekday),
				fmt.Sprintf("A new day started and %s exists.", path),
			)
			return err == nil && accept
		}), nil
	case "yes", "y", "true":
		return app.ConfirmFunc(func(time.Weekday, string) bool { return true }), nil
	case "no", "n", "false":
		return app.ConfirmFunc(func(time.Weekday, string) bool { return false }), nil
	default:
		return nil, fmt.Errorf("invalid --accept %q: want ask, yes or no", mode)
	}
}

// runWatch drives the rollover engine and notifications on the configured tick until ctx ends.
func runWatch(ctx context.Context, rt *runtime, confirmer app.Confirmer, once bool, out io.Writer) error {
	engine, err := rt.openDay(ctx)
	if err != nil {
		return err
	}
	notifications := rt.newNotifications()
	board := engine.Board()
	_, _ = fmt.Fprintf(out, "watching %s (%s)\n", board.Path(), rt.svc.Today())

	tick := func() {
		now := rt.clock.Now()
		outcome := engine.Tick(ctx, now, confirmer)
		if outcome.Status != "" {
			_, _ = fmt.Fprintf(out, "%s: %s\n", outcome.Date, outcome.Status)
		}
		notifications.Check(ctx, now, board.Schedule())
	}
	tick()
	if once {
		return nil
	}

	tickLoop(ctx, rt.cfg.TickInterval(), tick)
	rt.logger.Info("command flow complete", "command", "watch")
	return nil
}

// tickLoop calls tick every interval until ctx ends. The next tick is armed only after
// the previous one returns, so a slow prompt or send never queues catch-up ticks.
func tickLoop(ctx context.Context, interval time.Duration, tick func()) {
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			tick()
			timer.Reset(interval)
		}
	}
}

func newTokenCommand(opts *rootOptions) *cobra.Command {
	token := &cobra.Command{
		Use:   "token",
		Short: "Manage the Gotify application token in the system keyring",
	}
	token.AddCommand(
		&cobra.Command{
			Use:   "set [value]",
			Short: "Store the Gotify token (prompts when no value is given)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				value := ""
				if len(args) == 1 {
					value = args[0]
				} else {
					var err error
					if value, err = secretPrompt("Gotify application token"); err != nil {
						return fmt.Errorf("read token: %w", err)
					}
				}
				store, err := openTokenStore(opts)
				if err != nil {
					return err
				}
				if err := store.Set(credential.GotifyTokenKey, value); err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "gotify token stored")
				return err
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove the stored Gotify token",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, err := openTokenStore(opts)
				if err != nil {
					return err
				}
				if err := store.Delete(credential.GotifyTokenKey); err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "gotify token cleared")
				return err
			},
		},
	)
	return token
}

func openTokenStore(opts *rootOptions) (tokenStore, error) {
	paths, err := resolvePaths(opts)
	if err != nil {
		return nil, err
	}
	store, err := openCredentials(opts.appName, paths.KeyringDir)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return store, nil
}
