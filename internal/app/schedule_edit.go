package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/hylla/daybox/internal/domain"
)

// EditSchedule loads the schedule at path, applies edit, registers every task and saves
// the result with the stored uuids. A missing file starts from an empty schedule.
// It returns the saved schedule and the resolved path.
func EditSchedule(ctx context.Context, svc *Service, loader ScheduleLoader, path string, edit func(*domain.Schedule) error) (domain.Schedule, string, error) {
	schedule, resolved, err := loader.Load(path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && resolved != "":
		svc.logger.Info("schedule file missing; starting a new one", "path", resolved)
		schedule = domain.NewSchedule(nil)
	default:
		return domain.Schedule{}, resolved, err
	}

	if err := edit(&schedule); err != nil {
		return domain.Schedule{}, resolved, err
	}
	saved, err := SaveSchedule(ctx, svc, loader, resolved, schedule)
	if err != nil {
		return domain.Schedule{}, resolved, err
	}
	return saved, resolved, nil
}

// SaveSchedule persists identities for every task and then writes the schedule, so the
// file and the registry agree on each task's uuid. Nothing is written when registration fails.
func SaveSchedule(ctx context.Context, svc *Service, loader ScheduleLoader, path string, schedule domain.Schedule) (domain.Schedule, error) {
	schedule = svc.ResolveTaskIdentities(ctx, schedule)
	registered, err := svc.RegisterScheduleTasks(ctx, schedule)
	if err != nil {
		return domain.Schedule{}, err
	}
	if err := loader.Save(path, registered); err != nil {
		svc.logger.Error("schedule save failed", "path", path, "err", err)
		return domain.Schedule{}, fmt.Errorf("save schedule %s: %w", path, err)
	}
	svc.logger.Info("schedule saved", "path", path, "activities", registered.Len(), "tasks", registered.TaskCount())
	return registered, nil
}

// MoveActivity shifts activity id to start in the file at path, keeping its duration.
func MoveActivity(ctx context.Context, svc *Service, loader ScheduleLoader, path, id string, start domain.ClockTime) (domain.Activity, string, error) {
	var moved domain.Activity
	_, resolved, err := EditSchedule(ctx, svc, loader, path, func(s *domain.Schedule) error {
		var err error
		moved, err = s.Move(id, start, svc.DayStartHour())
		return err
	})
	return moved, resolved, err
}

// AddActivity places a new activity in the file at path.
func AddActivity(ctx context.Context, svc *Service, loader ScheduleLoader, path string, activity domain.Activity) (string, error) {
	_, resolved, err := EditSchedule(ctx, svc, loader, path, func(s *domain.Schedule) error {
		return s.Place(activity, svc.DayStartHour())
	})
	return resolved, err
}

// RemoveActivity deletes activity id from the file at path. Its tasks keep their
// registry rows and history.
func RemoveActivity(ctx context.Context, svc *Service, loader ScheduleLoader, path, id string) (string, error) {
	_, resolved, err := EditSchedule(ctx, svc, loader, path, func(s *domain.Schedule) error {
		if !s.Remove(id) {
			return fmt.Errorf("%w: %s", domain.ErrActivityNotFound, id)
		}
		return nil
	})
	return resolved, err
}
