package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ErrScheduleConflict is wrapped by ConflictError.
var ErrScheduleConflict = errors.New("schedule conflict")

// ConflictError lists the activities a proposed placement overlaps with.
type ConflictError struct {
	Names []string
}

// Error implements error.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with %s", ErrScheduleConflict, strings.Join(e.Names, ", "))
}

// Unwrap lets errors.Is match ErrScheduleConflict.
func (e *ConflictError) Unwrap() error {
	return ErrScheduleConflict
}

// DuplicateTasks reports repeated task names inside one activity.
type DuplicateTasks struct {
	ActivityID   string
	ActivityName string
	TaskNames    []string
}

// Schedule is the ordered day plan. Activities are kept sorted by start time.
type Schedule struct {
	activities []Activity
}

// NewSchedule copies and sorts activities by start time.
func NewSchedule(activities []Activity) Schedule {
	out := make([]Activity, 0, len(activities))
	for _, a := range activities {
		out = append(out, a.Clone())
	}
	s := Schedule{activities: out}
	s.sort()
	return s
}

func (s *Schedule) sort() {
	slices.SortStableFunc(s.activities, func(a, b Activity) int {
		return a.Start.Minutes() - b.Start.Minutes()
	})
}

// Activities returns a deep copy of the ordered activities.
func (s Schedule) Activities() []Activity {
	out := make([]Activity, 0, len(s.activities))
	for _, a := range s.activities {
		out = append(out, a.Clone())
	}
	return out
}

func (s Schedule) Len() int {
	return len(s.activities)
}

// TaskCount returns the number of tasks across all activities.
func (s Schedule) TaskCount() int {
	total := 0
	for _, a := range s.activities {
		total += len(a.Tasks)
	}
	return total
}

// Activity returns the activity with id.
func (s Schedule) Activity(id string) (Activity, bool) {
	idx := s.indexOf(id)
	if idx < 0 {
		return Activity{}, false
	}
	return s.activities[idx].Clone(), true
}

func (s Schedule) indexOf(id string) int {
	return slices.IndexFunc(s.activities, func(a Activity) bool { return a.ID == id })
}

// Add inserts an activity and keeps start-time order.
func (s *Schedule) Add(a Activity) {
	s.activities = append(s.activities, a.Clone())
	s.sort()
}

// Remove deletes the activity with id and reports whether it existed.
func (s *Schedule) Remove(id string) bool {
	idx := s.indexOf(id)
	if idx < 0 {
		return false
	}
	s.activities = slices.Delete(s.activities, idx, idx+1)
	return true
}

// Replace swaps the activity sharing a's id.
func (s *Schedule) Replace(a Activity) error {
	idx := s.indexOf(a.ID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrActivityNotFound, a.ID)
	}
	s.activities[idx] = a.Clone()
	s.sort()
	return nil
}

// CurrentActivity returns the first activity active at t.
func (s Schedule) CurrentActivity(t ClockTime) (Activity, bool) {
	for _, a := range s.activities {
		if a.IsActiveAt(t) {
			return a.Clone(), true
		}
	}
	return Activity{}, false
}

// NextActivity returns the first activity starting strictly after t.
func (s Schedule) NextActivity(t ClockTime) (Activity, bool) {
	for _, a := range s.activities {
		if t.Before(a.Start) {
			return a.Clone(), true
		}
	}
	return Activity{}, false
}

// NextStart resolves the next activity and the instant it starts, wrapping to
// tomorrow's first activity when nothing is left today.
func (s Schedule) NextStart(now time.Time) (Activity, time.Time, bool) {
	if len(s.activities) == 0 {
		return Activity{}, time.Time{}, false
	}
	today := DateOf(now)
	if next, ok := s.NextActivity(ClockTimeOf(now)); ok {
		return next, next.Start.On(today, now.Location()), true
	}
	first := s.activities[0].Clone()
	return first, first.Start.On(today.AddDays(1), now.Location()), true
}

// DuplicateTaskNames lists activities that repeat a task name.
func (s Schedule) DuplicateTaskNames() []DuplicateTasks {
	out := make([]DuplicateTasks, 0)
	for _, a := range s.activities {
		seen := map[string]struct{}{}
		var dups []string
		for _, task := range a.Tasks {
			name := strings.TrimSpace(task.Name)
			if _, ok := seen[name]; ok {
				if !slices.Contains(dups, name) {
					dups = append(dups, name)
				}
				continue
			}
			seen[name] = struct{}{}
		}
		if len(dups) > 0 {
			out = append(out, DuplicateTasks{ActivityID: a.ID, ActivityName: a.Name, TaskNames: dups})
		}
	}
	return out
}

// minutesFromDayStart offsets a clock time so the logical day starts at zero.
func minutesFromDayStart(t ClockTime, dayStartHour int) int {
	hour := t.Hour
	if hour < dayStartHour {
		hour += 24
	}
	return (hour-dayStartHour)*60 + t.Minute
}

// FitsDay reports whether [start, end) lies inside a single logical day beginning at dayStartHour.
func FitsDay(start, end ClockTime, dayStartHour int) bool {
	startOffset := minutesFromDayStart(start, dayStartHour)
	endOffset := minutesFromDayStart(end, dayStartHour)
	if endOffset == 0 {
		endOffset = minutesPerDay
	}
	if startOffset < 0 || startOffset >= minutesPerDay {
		return false
	}
	if endOffset > minutesPerDay {
		return false
	}
	return endOffset > startOffset
}

// normalizedSpan returns [start, end) in minutes relative to the day start, unrolling midnight.
func normalizedSpan(start, end ClockTime, dayStartHour int) (int, int) {
	dayStart := dayStartHour * 60
	s, e := start.Minutes(), end.Minutes()
	if e <= s {
		e += minutesPerDay
	}
	if s < dayStart {
		s += minutesPerDay
	}
	if e < dayStart {
		e += minutesPerDay
	}
	if e <= s {
		e += minutesPerDay
	}
	return s, e
}

// Conflicts returns the activities other than excludeID that overlap [start, end).
func (s Schedule) Conflicts(excludeID string, start, end ClockTime, dayStartHour int) []Activity {
	ns, ne := normalizedSpan(start, end, dayStartHour)
	out := make([]Activity, 0)
	for _, a := range s.activities {
		if a.ID == excludeID {
			continue
		}
		as, ae := normalizedSpan(a.Start, a.End, dayStartHour)
		if ns < ae && as < ne {
			out = append(out, a.Clone())
		}
	}
	return out
}

// CheckPlacement validates [start, end) for activity id: it must fit one logical day
// and must not overlap any other activity.
func (s Schedule) CheckPlacement(id string, start, end ClockTime, dayStartHour int) error {
	if err := ValidateDayStartHour(dayStartHour); err != nil {
		return err
	}
	if !FitsDay(start, end, dayStartHour) {
		return ErrCrossesDayBoundary
	}
	if conflicts := s.Conflicts(id, start, end, dayStartHour); len(conflicts) > 0 {
		names := make([]string, 0, len(conflicts))
		for _, c := range conflicts {
			names = append(names, c.Name)
		}
		return &ConflictError{Names: names}
	}
	return nil
}

// Move shifts an activity to newStart keeping its duration.
func (s *Schedule) Move(id string, newStart ClockTime, dayStartHour int) (Activity, error) {
	if err := ValidateDayStartHour(dayStartHour); err != nil {
		return Activity{}, err
	}
	moved, ok := s.Activity(id)
	if !ok {
		return Activity{}, fmt.Errorf("%w: %s", ErrActivityNotFound, id)
	}
	newEnd := ClockTimeFromMinutes(newStart.Minutes() + moved.DurationMinutes())
	if err := s.CheckPlacement(id, newStart, newEnd, dayStartHour); err != nil {
		return Activity{}, err
	}
	moved.Start = newStart
	moved.End = newEnd
	if err := s.Replace(moved); err != nil {
		return Activity{}, err
	}
	return moved.Clone(), nil
}

// Place adds a new activity after checking its id is free and its span is placeable.
func (s *Schedule) Place(a Activity, dayStartHour int) error {
	if _, exists := s.Activity(a.ID); exists {
		return fmt.Errorf("%w: %s", ErrDuplicateActivity, a.ID)
	}
	if err := s.CheckPlacement(a.ID, a.Start, a.End, dayStartHour); err != nil {
		return err
	}
	s.Add(a)
	return nil
}
