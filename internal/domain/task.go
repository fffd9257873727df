package domain

import (
	"strings"
	"time"
)

// Task is one checklist item of an activity. UUID is the stable handle used for history.
type Task struct {
	Name string
	UUID string
}

// NewTask constructs a task; uuid may be empty for tasks that have not been resolved yet.
func NewTask(name, uuid string) (Task, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Task{}, ErrInvalidTaskName
	}
	return Task{Name: name, UUID: strings.TrimSpace(uuid)}, nil
}

// HasIdentity reports whether the task carries a stable handle.
func (t Task) HasIdentity() bool {
	return strings.TrimSpace(t.UUID) != ""
}

// TaskIdentity is one registry row binding (activity id, task name) to a task uuid.
type TaskIdentity struct {
	TaskUUID   string
	ActivityID string
	TaskName   string
	CreatedAt  time.Time
}

// NewTaskIdentity constructs a registry row.
func NewTaskIdentity(taskUUID, activityID, taskName string, now time.Time) (TaskIdentity, error) {
	taskUUID = strings.TrimSpace(taskUUID)
	activityID = strings.TrimSpace(activityID)
	taskName = strings.TrimSpace(taskName)
	if taskUUID == "" || activityID == "" {
		return TaskIdentity{}, ErrInvalidID
	}
	if taskName == "" {
		return TaskIdentity{}, ErrInvalidTaskName
	}
	return TaskIdentity{
		TaskUUID:   taskUUID,
		ActivityID: activityID,
		TaskName:   taskName,
		CreatedAt:  now.UTC(),
	}, nil
}

// LedgerEntry is the completion record of one task on one logical date.
type LedgerEntry struct {
	TaskUUID  string
	Date      Date
	Done      bool
	UpdatedAt time.Time
}

// NewLedgerEntry constructs an open (not done) ledger row.
func NewLedgerEntry(taskUUID string, date Date, now time.Time) (LedgerEntry, error) {
	taskUUID = strings.TrimSpace(taskUUID)
	if taskUUID == "" {
		return LedgerEntry{}, ErrInvalidID
	}
	if date.IsZero() {
		return LedgerEntry{}, ErrInvalidDate
	}
	return LedgerEntry{
		TaskUUID:  taskUUID,
		Date:      date,
		UpdatedAt: now.UTC(),
	}, nil
}
