package domain

import (
	"slices"
	"strings"
)

// Activity is one scheduled block of the day.
type Activity struct {
	ID          string
	Name        string
	Start       ClockTime
	End         ClockTime
	Description []string
	Tasks       []Task
}

// ActivityInput holds input values for NewActivity.
type ActivityInput struct {
	ID          string
	Name        string
	Start       string
	End         string
	Description []string
	Tasks       []Task
}

// NewActivity validates input and constructs an activity.
func NewActivity(in ActivityInput) (Activity, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return Activity{}, ErrInvalidID
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Activity{}, ErrInvalidName
	}
	start, err := ParseClockTime(in.Start)
	if err != nil {
		return Activity{}, err
	}
	end, err := ParseClockTime(in.End)
	if err != nil {
		return Activity{}, err
	}
	tasks := make([]Task, 0, len(in.Tasks))
	for _, task := range in.Tasks {
		normalized, err := NewTask(task.Name, task.UUID)
		if err != nil {
			return Activity{}, err
		}
		tasks = append(tasks, normalized)
	}
	return Activity{
		ID:          id,
		Name:        name,
		Start:       start,
		End:         end,
		Description: slices.Clone(in.Description),
		Tasks:       tasks,
	}, nil
}

// CrossesMidnight reports whether the activity ends on the next calendar day.
func (a Activity) CrossesMidnight() bool {
	return a.End.Before(a.Start)
}

// IsActiveAt reports whether t falls inside the activity.
func (a Activity) IsActiveAt(t ClockTime) bool {
	if a.CrossesMidnight() {
		return !t.Before(a.Start) || t.Before(a.End)
	}
	return !t.Before(a.Start) && t.Before(a.End)
}

// IsFinishedAt reports whether the activity is over at t.
// A midnight-crossing activity is finished only in the gap between its end and its next start.
func (a Activity) IsFinishedAt(t ClockTime) bool {
	if a.CrossesMidnight() {
		return !t.Before(a.End) && t.Before(a.Start)
	}
	return !t.Before(a.End)
}

// DurationMinutes returns the length of the activity, wrapping past midnight.
func (a Activity) DurationMinutes() int {
	d := a.End.Minutes() - a.Start.Minutes()
	if d < 0 {
		d += minutesPerDay
	}
	return d
}

// TaskNames returns the task names in order.
func (a Activity) TaskNames() []string {
	out := make([]string, 0, len(a.Tasks))
	for _, task := range a.Tasks {
		out = append(out, task.Name)
	}
	return out
}

// Clone deep-copies slices so callers can mutate the result freely.
func (a Activity) Clone() Activity {
	a.Description = slices.Clone(a.Description)
	a.Tasks = slices.Clone(a.Tasks)
	return a
}
