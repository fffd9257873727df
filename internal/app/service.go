package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/daybox/internal/domain"
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	DayStartHour int
	Logger       Logger
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service owns the task identity registry, the completion ledger and the statistics built on them.
type Service struct {
	repo         Repository
	idGen        IDGenerator
	clock        Clock
	logger       Logger
	dayStartHour int
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) (*Service, error) {
	if err := domain.ValidateDayStartHour(cfg.DayStartHour); err != nil {
		return nil, err
	}
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	return &Service{
		repo:         repo,
		idGen:        idGen,
		clock:        clock,
		logger:       logger,
		dayStartHour: cfg.DayStartHour,
	}, nil
}

// DayStartHour returns the configured logical day start.
func (s *Service) DayStartHour() int {
	return s.dayStartHour
}

// Now returns the service clock reading.
func (s *Service) Now() time.Time {
	return s.clock()
}

// LogicalDate returns the planning day now belongs to.
func (s *Service) LogicalDate(now time.Time) domain.Date {
	// dayStartHour is validated in NewService.
	date, _ := domain.LogicalDate(now, s.dayStartHour)
	return date
}

// Today returns the logical date of the service clock.
func (s *Service) Today() domain.Date {
	return s.LogicalDate(s.clock())
}

// persistenceErr tags storage failures so callers can tell them apart from validation errors.
func persistenceErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// GetOrCreateTaskIdentity returns the registered uuid for (activityID, taskName), registering one when missing.
func (s *Service) GetOrCreateTaskIdentity(ctx context.Context, activityID, taskName, preferredUUID string) (string, error) {
	activityID = strings.TrimSpace(activityID)
	taskName = strings.TrimSpace(taskName)
	preferredUUID = strings.TrimSpace(preferredUUID)
	if activityID == "" {
		return "", domain.ErrInvalidID
	}
	if taskName == "" {
		return "", domain.ErrInvalidTaskName
	}

	existing, err := s.repo.GetTaskIdentity(ctx, activityID, taskName)
	switch {
	case err == nil:
		if preferredUUID != "" && preferredUUID != existing.TaskUUID {
			s.logger.Warn("task identity mismatch; keeping stored uuid",
				"activity_id", activityID, "task", taskName, "stored_uuid", existing.TaskUUID, "preferred_uuid", preferredUUID)
		}
		return existing.TaskUUID, nil
	case !errors.Is(err, ErrNotFound):
		s.logger.Error("task identity lookup failed", "activity_id", activityID, "task", taskName, "err", err)
		return "", persistenceErr("lookup task identity", err)
	}

	if preferredUUID != "" {
		// A renamed task keeps its handle; the uuid stays authoritative over the name.
		if renamed, err := s.repo.GetTaskIdentityByUUID(ctx, preferredUUID); err == nil {
			if err := s.repo.RenameTaskIdentity(ctx, preferredUUID, activityID, taskName); err != nil {
				s.logger.Error("task identity rename failed", "task_uuid", preferredUUID, "task", taskName, "err", err)
				return "", persistenceErr("rename task identity", err)
			}
			s.logger.Info("task identity renamed",
				"task_uuid", preferredUUID, "from_activity_id", renamed.ActivityID, "from_task", renamed.TaskName,
				"activity_id", activityID, "task", taskName)
			return preferredUUID, nil
		} else if !errors.Is(err, ErrNotFound) {
			s.logger.Error("task identity lookup failed", "task_uuid", preferredUUID, "err", err)
			return "", persistenceErr("lookup task identity", err)
		}
	}

	taskUUID := preferredUUID
	if taskUUID == "" {
		taskUUID = s.idGen()
	}
	identity, err := domain.NewTaskIdentity(taskUUID, activityID, taskName, s.clock())
	if err != nil {
		return "", err
	}
	if err := s.repo.CreateTaskIdentity(ctx, identity); err != nil {
		s.logger.Error("task identity create failed", "activity_id", activityID, "task", taskName, "err", err)
		return "", persistenceErr("create task identity", err)
	}
	s.logger.Debug("task identity registered", "activity_id", activityID, "task", taskName, "task_uuid", taskUUID)
	return taskUUID, nil
}

// LookupTaskIdentity returns the uuid registered for (activityID, taskName) or ErrNotFound.
func (s *Service) LookupTaskIdentity(ctx context.Context, activityID, taskName string) (string, error) {
	identity, err := s.repo.GetTaskIdentity(ctx, strings.TrimSpace(activityID), strings.TrimSpace(taskName))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Error("task identity not registered", "activity_id", activityID, "task", taskName)
			return "", ErrNotFound
		}
		s.logger.Error("task identity lookup failed", "activity_id", activityID, "task", taskName, "err", err)
		return "", persistenceErr("lookup task identity", err)
	}
	return identity.TaskUUID, nil
}

// ListTaskIdentities returns every registry row ordered by task name.
func (s *Service) ListTaskIdentities(ctx context.Context) ([]domain.TaskIdentity, error) {
	identities, err := s.repo.ListTaskIdentities(ctx)
	if err != nil {
		s.logger.Error("task identity list failed", "err", err)
		return nil, persistenceErr("list task identities", err)
	}
	return identities, nil
}

// registeredUUID resolves a task's registered handle, preferring its uuid over the name.
func (s *Service) registeredUUID(ctx context.Context, activityID string, task domain.Task) (string, bool, error) {
	if task.HasIdentity() {
		identity, err := s.repo.GetTaskIdentityByUUID(ctx, task.UUID)
		if err == nil {
			return identity.TaskUUID, true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", false, err
		}
	}
	identity, err := s.repo.GetTaskIdentity(ctx, activityID, task.Name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return identity.TaskUUID, true, nil
}

// EnsureDailyEntries seeds one open ledger row per registered task for date.
// Tasks that were never registered are skipped.
func (s *Service) EnsureDailyEntries(ctx context.Context, schedule domain.Schedule, date domain.Date) (int, error) {
	now := s.clock()
	entries := make([]domain.LedgerEntry, 0, schedule.TaskCount())
	seen := map[string]struct{}{}
	for _, activity := range schedule.Activities() {
		for _, task := range activity.Tasks {
			taskUUID, ok, err := s.registeredUUID(ctx, activity.ID, task)
			if err != nil {
				s.logger.Error("ensure daily entries: identity lookup failed; skipping task",
					"activity_id", activity.ID, "task", task.Name, "err", err)
				continue
			}
			if !ok {
				s.logger.Debug("ensure daily entries: task not registered; skipping",
					"activity_id", activity.ID, "task", task.Name)
				continue
			}
			if _, dup := seen[taskUUID]; dup {
				continue
			}
			seen[taskUUID] = struct{}{}
			entry, err := domain.NewLedgerEntry(taskUUID, date, now)
			if err != nil {
				return 0, err
			}
			entries = append(entries, entry)
		}
	}
	if len(entries) == 0 {
		return 0, nil
	}
	created, err := s.repo.InsertLedgerEntries(ctx, entries)
	if err != nil {
		s.logger.Error("ensure daily entries failed", "date", date.String(), "err", err)
		return 0, persistenceErr("ensure daily entries", err)
	}
	s.logger.Info("daily ledger entries ensured", "date", date.String(), "created", created, "candidates", len(entries))
	return created, nil
}

// MarkTask updates the done flag of an existing ledger row and reports success.
func (s *Service) MarkTask(ctx context.Context, taskUUID string, date domain.Date, done bool) bool {
	err := s.repo.UpdateLedgerEntry(ctx, strings.TrimSpace(taskUUID), date, done, s.clock())
	switch {
	case err == nil:
		s.logger.Debug("task marked", "task_uuid", taskUUID, "date", date.String(), "done", done)
		return true
	case errors.Is(err, ErrNotFound):
		s.logger.Error("task mark failed: no ledger row", "task_uuid", taskUUID, "date", date.String())
		return false
	default:
		s.logger.Error("task mark failed", "task_uuid", taskUUID, "date", date.String(), "err", err)
		return false
	}
}

// AddEntry registers the task if needed and creates its ledger row for date when absent.
func (s *Service) AddEntry(ctx context.Context, activityID, taskName, preferredUUID string, date domain.Date) (string, error) {
	taskUUID, err := s.GetOrCreateTaskIdentity(ctx, activityID, taskName, preferredUUID)
	if err != nil {
		return "", err
	}
	entry, err := domain.NewLedgerEntry(taskUUID, date, s.clock())
	if err != nil {
		return "", err
	}
	created, err := s.repo.InsertLedgerEntries(ctx, []domain.LedgerEntry{entry})
	if err != nil {
		s.logger.Error("add ledger entry failed", "task_uuid", taskUUID, "date", date.String(), "err", err)
		return "", persistenceErr("add ledger entry", err)
	}
	if created > 0 {
		s.logger.Info("ledger entry added", "task_uuid", taskUUID, "task", taskName, "date", date.String())
	}
	return taskUUID, nil
}

// DoneStates returns task uuid -> done for one logical date. Storage failures yield an empty map.
func (s *Service) DoneStates(ctx context.Context, date domain.Date) map[string]bool {
	entries, err := s.repo.ListLedgerEntriesByDate(ctx, date)
	if err != nil {
		s.logger.Error("done states load failed", "date", date.String(), "err", err)
		return map[string]bool{}
	}
	out := make(map[string]bool, len(entries))
	for _, entry := range entries {
		out[entry.TaskUUID] = entry.Done
	}
	return out
}

// ResolveTaskIdentities gives every task without a uuid the handle registered for
// (activity id, name), or a freshly minted one. Nothing is persisted.
func (s *Service) ResolveTaskIdentities(ctx context.Context, schedule domain.Schedule) domain.Schedule {
	activities := schedule.Activities()
	for ai := range activities {
		for ti, task := range activities[ai].Tasks {
			if task.HasIdentity() {
				continue
			}
			identity, err := s.repo.GetTaskIdentity(ctx, activities[ai].ID, task.Name)
			switch {
			case err == nil:
				activities[ai].Tasks[ti].UUID = identity.TaskUUID
				continue
			case !errors.Is(err, ErrNotFound):
				s.logger.Warn("legacy task lookup failed; minting new uuid",
					"activity_id", activities[ai].ID, "task", task.Name, "err", err)
			}
			activities[ai].Tasks[ti].UUID = s.idGen()
		}
	}
	return domain.NewSchedule(activities)
}

// RegisterScheduleTasks persists identities for every task of schedule and returns the
// schedule carrying the stored uuids. Failed tasks keep their in-memory uuid.
func (s *Service) RegisterScheduleTasks(ctx context.Context, schedule domain.Schedule) (domain.Schedule, error) {
	activities := schedule.Activities()
	var errs []error
	for ai := range activities {
		for ti, task := range activities[ai].Tasks {
			taskUUID, err := s.GetOrCreateTaskIdentity(ctx, activities[ai].ID, task.Name, task.UUID)
			if err != nil {
				errs = append(errs, fmt.Errorf("register %s/%s: %w", activities[ai].Name, task.Name, err))
				continue
			}
			activities[ai].Tasks[ti].UUID = taskUUID
		}
	}
	return domain.NewSchedule(activities), errors.Join(errs...)
}
