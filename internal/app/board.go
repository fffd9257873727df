package app

import (
	"fmt"

	"github.com/hylla/daybox/internal/domain"
)

// Board is the live day: the active schedule, where it came from, and the in-memory
// completion flag of every task. Flags are always sized to each activity's task list.
type Board struct {
	schedule domain.Schedule
	path     string
	done     map[string][]bool
}

// NewBoard constructs a board with every task open.
func NewBoard(schedule domain.Schedule, path string) *Board {
	b := &Board{}
	b.Replace(schedule, path)
	return b
}

// Schedule returns the active schedule.
func (b *Board) Schedule() domain.Schedule {
	return b.schedule
}

// Path returns the file the active schedule was loaded from.
func (b *Board) Path() string {
	return b.path
}

// Replace swaps the whole schedule and clears every flag.
func (b *Board) Replace(schedule domain.Schedule, path string) {
	b.schedule = schedule
	b.path = path
	b.done = make(map[string][]bool, schedule.Len())
	for _, activity := range schedule.Activities() {
		b.done[activity.ID] = make([]bool, len(activity.Tasks))
	}
}

// Task returns the task at idx of activityID.
func (b *Board) Task(activityID string, idx int) (domain.Task, bool) {
	activity, ok := b.schedule.Activity(activityID)
	if !ok || idx < 0 || idx >= len(activity.Tasks) {
		return domain.Task{}, false
	}
	return activity.Tasks[idx], true
}

// Done reports the flag of one task.
func (b *Board) Done(activityID string, idx int) bool {
	flags := b.done[activityID]
	if idx < 0 || idx >= len(flags) {
		return false
	}
	return flags[idx]
}

// SetDone updates the flag of one task.
func (b *Board) SetDone(activityID string, idx int, done bool) error {
	flags, ok := b.done[activityID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrActivityNotFound, activityID)
	}
	if idx < 0 || idx >= len(flags) {
		return fmt.Errorf("task index %d out of range for activity %s", idx, activityID)
	}
	flags[idx] = done
	return nil
}

// ResetDone clears every flag without touching persisted history.
func (b *Board) ResetDone() {
	for id, flags := range b.done {
		b.done[id] = make([]bool, len(flags))
	}
}

// Hydrate applies task uuid -> done states; tasks missing from states are left as they are.
func (b *Board) Hydrate(states map[string]bool) {
	for _, activity := range b.schedule.Activities() {
		flags := b.done[activity.ID]
		for i, task := range activity.Tasks {
			if done, ok := states[task.UUID]; ok && task.HasIdentity() {
				flags[i] = done
			}
		}
	}
}

// Progress returns completed and total task counts.
func (b *Board) Progress() (int, int) {
	done, total := 0, 0
	for _, flags := range b.done {
		for _, flag := range flags {
			total++
			if flag {
				done++
			}
		}
	}
	return done, total
}
