package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hylla/daybox/internal/app"
	"github.com/hylla/daybox/internal/domain"
)

// editTarget is the file schedule edits apply to: --schedule, else the file today opens.
func (rt *runtime) editTarget() string {
	if path := strings.TrimSpace(rt.opts.schedulePath); path != "" {
		return path
	}
	return rt.loader.ResolvePath(rt.svc.Today().Weekday())
}

func newActivityCommand(opts *rootOptions) *cobra.Command {
	activity := &cobra.Command{
		Use:   "activity",
		Short: "Edit the activities of a schedule file",
	}
	activity.AddCommand(newActivityAddCommand(opts), newActivityMoveCommand(opts), newActivityRemoveCommand(opts))
	return activity
}

func newActivityAddCommand(opts *rootOptions) *cobra.Command {
	var (
		id          string
		description []string
		tasks       []string
	)
	cmd := &cobra.Command{
		Use:   "add <name> <start> <end>",
		Short: "Add an activity; it must fit the logical day and overlap nothing",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(opts, "activity add", true)
			if err != nil {
				return err
			}
			defer rt.Close()

			if strings.TrimSpace(id) == "" {
				id = uuid.NewString()
			}
			in := domain.ActivityInput{ID: id, Name: args[0], Start: args[1], End: args[2], Description: description}
			for _, name := range tasks {
				in.Tasks = append(in.Tasks, domain.Task{Name: name})
			}
			activity, err := domain.NewActivity(in)
			if err != nil {
				return err
			}
			path, err := app.AddActivity(cmd.Context(), rt.svc, rt.loader, rt.editTarget(), activity)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s) %s-%s to %s\n", activity.Name, activity.ID, activity.Start, activity.End, path)
			return err
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "activity id (default: generated)")
	cmd.Flags().StringArrayVar(&description, "description", nil, "description line (repeatable)")
	cmd.Flags().StringArrayVar(&tasks, "task", nil, "task name (repeatable)")
	return cmd
}

func newActivityMoveCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "move <activity-id> <HH:MM>",
		Short: "Move an activity to a new start time, keeping its duration",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := domain.ParseClockTime(args[1])
			if err != nil {
				return err
			}
			rt, err := openRuntime(opts, "activity move", true)
			if err != nil {
				return err
			}
			defer rt.Close()

			moved, path, err := app.MoveActivity(cmd.Context(), rt.svc, rt.loader, rt.editTarget(), args[0], start)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "moved %s to %s-%s in %s\n", moved.Name, moved.Start, moved.End, path)
			return err
		},
	}
}

func newActivityRemoveCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <activity-id>",
		Short: "Remove an activity; its task history is kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(opts, "activity remove", true)
			if err != nil {
				return err
			}
			defer rt.Close()

			path, err := app.RemoveActivity(cmd.Context(), rt.svc, rt.loader, rt.editTarget(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %s from %s\n", args[0], path)
			return err
		},
	}
}

func newNotifyCommand(opts *rootOptions) *cobra.Command {
	var delayed bool
	cmd := &cobra.Command{
		Use:   "notify <title> [message]",
		Short: "Send a one-off push notification through Gotify",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(opts, "notify", false)
			if err != nil {
				return err
			}
			defer rt.Close()

			message := ""
			if len(args) == 2 {
				message = args[1]
			}
			if err := rt.newNotifications().SendCustom(cmd.Context(), args[0], message, delayed); err != nil {
				return fmt.Errorf("notify: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "sent %q\n", args[0])
			return err
		},
	}
	cmd.Flags().BoolVar(&delayed, "delayed", false, "use the delayed priority")
	return cmd
}
