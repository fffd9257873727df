package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/hylla/daybox/internal/domain"
)

type missingLoader struct {
	fakeLoader
}

func (m *missingLoader) Load(path string) (domain.Schedule, string, error) {
	if schedule, ok := m.schedules[path]; ok {
		return schedule, path, nil
	}
	return domain.Schedule{}, path, fmt.Errorf("read schedule %s: %w", path, fs.ErrNotExist)
}

func mustClock(t *testing.T, raw string) domain.ClockTime {
	t.Helper()
	ct, err := domain.ParseClockTime(raw)
	if err != nil {
		t.Fatalf("ParseClockTime(%q) error = %v", raw, err)
	}
	return ct
}

func TestMoveActivitySavesAndRegisters(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(t, repo)
	loader := &fakeLoader{schedules: map[string]domain.Schedule{"day.yaml": testSchedule(t)}}

	moved, path, err := MoveActivity(ctx, svc, loader, "day.yaml", "morning", mustClock(t, "14:00"))
	if err != nil {
		t.Fatalf("MoveActivity() error = %v", err)
	}
	if path != "day.yaml" || moved.Start.String() != "14:00" || moved.End.String() != "15:00" {
		t.Fatalf("unexpected move result %s %#v", path, moved)
	}
	if len(loader.saves) != 1 {
		t.Fatalf("expected one save, got %v", loader.saves)
	}
	saved := loader.schedules["day.yaml"]
	for _, activity := range saved.Activities() {
		for _, task := range activity.Tasks {
			if !task.HasIdentity() {
				t.Fatalf("expected saved task %q to carry a uuid", task.Name)
			}
			if got, err := svc.LookupTaskIdentity(ctx, activity.ID, task.Name); err != nil || got != task.UUID {
				t.Fatalf("expected registry to match saved uuid for %s, got %q (%v)", task.Name, got, err)
			}
		}
	}

	if _, _, err := MoveActivity(ctx, svc, loader, "day.yaml", "morning", mustClock(t, "10:00")); !errors.Is(err, domain.ErrScheduleConflict) {
		t.Fatalf("expected conflict moving into focus, got %v", err)
	}
	if len(loader.saves) != 1 {
		t.Fatalf("expected rejected move not to save, got %v", loader.saves)
	}
}

func TestAddAndRemoveActivity(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newFakeRepo())
	loader := &missingLoader{fakeLoader: fakeLoader{schedules: map[string]domain.Schedule{}}}

	walk, err := domain.NewActivity(domain.ActivityInput{
		ID: "walk", Name: "Walk", Start: "18:00", End: "19:00",
		Tasks: []domain.Task{{Name: "Podcast"}},
	})
	if err != nil {
		t.Fatalf("NewActivity() error = %v", err)
	}
	if _, err := AddActivity(ctx, svc, loader, "new.yaml", walk); err != nil {
		t.Fatalf("AddActivity() error = %v", err)
	}
	saved := loader.schedules["new.yaml"]
	if saved.Len() != 1 {
		t.Fatalf("expected new file with one activity, got %d", saved.Len())
	}
	if _, err := svc.LookupTaskIdentity(ctx, "walk", "Podcast"); err != nil {
		t.Fatalf("expected added task registered, got %v", err)
	}
	if _, err := AddActivity(ctx, svc, loader, "new.yaml", walk); !errors.Is(err, domain.ErrDuplicateActivity) {
		t.Fatalf("expected ErrDuplicateActivity, got %v", err)
	}

	if _, err := RemoveActivity(ctx, svc, loader, "new.yaml", "walk"); err != nil {
		t.Fatalf("RemoveActivity() error = %v", err)
	}
	if loader.schedules["new.yaml"].Len() != 0 {
		t.Fatal("expected activity removed from the saved file")
	}
	if _, err := RemoveActivity(ctx, svc, loader, "new.yaml", "walk"); !errors.Is(err, domain.ErrActivityNotFound) {
		t.Fatalf("expected ErrActivityNotFound, got %v", err)
	}
}

func TestSaveScheduleSkipsWriteWhenRegistrationFails(t *testing.T) {
	boom := errors.New("disk gone")
	svc := newTestService(t, failingRepo{fakeRepo: newFakeRepo(), err: boom})
	loader := &fakeLoader{}
	if _, err := SaveSchedule(context.Background(), svc, loader, "day.yaml", testSchedule(t)); !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if len(loader.saves) != 0 {
		t.Fatalf("expected no write, got %v", loader.saves)
	}
}
