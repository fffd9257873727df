package app

import (
	"context"
	"time"

	"github.com/hylla/daybox/internal/domain"
)

// Repository persists the task identity registry and the completion ledger.
type Repository interface {
	GetTaskIdentity(ctx context.Context, activityID, taskName string) (domain.TaskIdentity, error)
	GetTaskIdentityByUUID(ctx context.Context, taskUUID string) (domain.TaskIdentity, error)
	CreateTaskIdentity(context.Context, domain.TaskIdentity) error
	// RenameTaskIdentity moves an existing uuid to a new (activityID, taskName) pair.
	RenameTaskIdentity(ctx context.Context, taskUUID, activityID, taskName string) error
	ListTaskIdentities(context.Context) ([]domain.TaskIdentity, error)

	// InsertLedgerEntries creates the rows that do not exist yet inside one
	// transaction and returns how many were created.
	InsertLedgerEntries(context.Context, []domain.LedgerEntry) (int, error)
	UpdateLedgerEntry(ctx context.Context, taskUUID string, date domain.Date, done bool, at time.Time) error
	ListLedgerEntriesByDate(context.Context, domain.Date) ([]domain.LedgerEntry, error)
	// ListLedgerEntriesForTask returns rows dated on or before through, oldest first.
	ListLedgerEntriesForTask(ctx context.Context, taskUUID string, through domain.Date) ([]domain.LedgerEntry, error)
}

// ScheduleLoader reads and writes schedule files.
type ScheduleLoader interface {
	// Load reads the schedule at path; an empty path resolves the default file.
	// The resolved path is returned even when reading fails.
	Load(path string) (domain.Schedule, string, error)
	// DaySchedulePath reports the weekday-specific schedule file when one exists.
	DaySchedulePath(weekday time.Weekday) (string, bool)
	Save(path string, schedule domain.Schedule) error
}

// Confirmer answers the modal "load the new day's schedule?" question.
type Confirmer interface {
	ConfirmScheduleSwap(weekday time.Weekday, path string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(weekday time.Weekday, path string) bool

// ConfirmScheduleSwap implements Confirmer.
func (f ConfirmFunc) ConfirmScheduleSwap(weekday time.Weekday, path string) bool {
	return f(weekday, path)
}

// Notification is one push message.
type Notification struct {
	Title   string
	Body    string
	Delayed bool
}

// Notifier delivers notifications to an external transport.
type Notifier interface {
	Notify(context.Context, Notification) error
}
