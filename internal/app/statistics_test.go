package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hylla/daybox/internal/domain"
)

func TestParseGroupingAndNext(t *testing.T) {
	got, err := ParseGrouping(" week ")
	if err != nil {
		t.Fatalf("ParseGrouping() error = %v", err)
	}
	if got != GroupingWeek {
		t.Fatalf("ParseGrouping() = %q, want Week", got)
	}
	if _, err := ParseGrouping("fortnight"); !errors.Is(err, ErrInvalidGrouping) {
		t.Fatalf("expected ErrInvalidGrouping, got %v", err)
	}
	order := []Grouping{GroupingDay, GroupingWeek, GroupingMonth, GroupingYear, GroupingDay}
	for i := 0; i < len(order)-1; i++ {
		if next := order[i].Next(); next != order[i+1] {
			t.Fatalf("%s.Next() = %s, want %s", order[i], next, order[i+1])
		}
	}
}

func TestGetStatisticsValidation(t *testing.T) {
	svc := newTestService(t, newFakeRepo())
	ctx := context.Background()
	if _, err := svc.GetStatistics(ctx, StatisticsQuery{Grouping: "Hour", Limit: 1}); !errors.Is(err, ErrInvalidGrouping) {
		t.Fatalf("expected ErrInvalidGrouping, got %v", err)
	}
	if _, err := svc.GetStatistics(ctx, StatisticsQuery{Grouping: GroupingDay, Limit: 0}); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("expected ErrInvalidLimit, got %v", err)
	}
}

func TestGetStatisticsByDay(t *testing.T) {
	repo := newFakeRepo()
	repo.seed("t1", domain.NewDate(2026, 2, 18), true)
	repo.seed("t1", domain.NewDate(2026, 2, 19), false)
	repo.seed("t1", domain.NewDate(2026, 2, 20), true)
	repo.seed("t1", domain.NewDate(2026, 2, 22), true)
	svc := newTestService(t, repo)

	stats, err := svc.GetStatistics(context.Background(), StatisticsQuery{
		TaskUUIDs: []string{"t1", "t1", "missing"},
		Grouping:  GroupingDay,
		Limit:     2,
	})
	if err != nil {
		t.Fatalf("GetStatistics() error = %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected deduped result keys, got %#v", stats)
	}
	if got := stats["missing"]; got == nil || len(got) != 0 {
		t.Fatalf("expected empty series for unknown task, got %#v", got)
	}
	points := stats["t1"]
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	// 02-22 is after today's logical date and is excluded.
	if points[0].Label != "02-20" || !points[0].Done() {
		t.Fatalf("unexpected newest point %#v", points[0])
	}
	if points[1].Label != "02-19" || points[1].Done() || points[1].Rate != 0 {
		t.Fatalf("unexpected second point %#v", points[1])
	}
}

func TestGetStatisticsByWeekIgnoringWeekends(t *testing.T) {
	repo := newFakeRepo()
	repo.seed("t1", domain.NewDate(2026, 2, 11), true)  // Wed
	repo.seed("t1", domain.NewDate(2026, 2, 14), false) // Sat
	repo.seed("t1", domain.NewDate(2026, 2, 16), true)  // Mon
	repo.seed("t1", domain.NewDate(2026, 2, 17), false) // Tue
	repo.seed("t1", domain.NewDate(2026, 2, 21), true)  // Sat
	svc := newTestService(t, repo)

	stats, err := svc.GetStatistics(context.Background(), StatisticsQuery{
		TaskUUIDs:      []string{"t1"},
		Grouping:       GroupingWeek,
		IgnoreWeekends: true,
		Limit:          5,
	})
	if err != nil {
		t.Fatalf("GetStatistics() error = %v", err)
	}
	points := stats["t1"]
	if len(points) != 2 {
		t.Fatalf("expected 2 weekly points, got %#v", points)
	}
	if points[0].Label != "02-16 - 02-22" || points[0].Completed != 1 || points[0].Total != 2 || points[0].Rate != 0.5 {
		t.Fatalf("unexpected current week %#v", points[0])
	}
	if points[0].Start != domain.NewDate(2026, 2, 16) || points[0].End != domain.NewDate(2026, 2, 22) {
		t.Fatalf("unexpected week bounds %s..%s", points[0].Start, points[0].End)
	}
	if points[1].Completed != 1 || points[1].Total != 1 {
		t.Fatalf("expected weekend row dropped from previous week, got %#v", points[1])
	}

	withWeekends, err := svc.GetStatistics(context.Background(), StatisticsQuery{
		TaskUUIDs: []string{"t1"},
		Grouping:  GroupingWeek,
		Limit:     1,
	})
	if err != nil {
		t.Fatalf("GetStatistics() error = %v", err)
	}
	if got := withWeekends["t1"]; len(got) != 1 || got[0].Completed != 2 || got[0].Total != 3 {
		t.Fatalf("expected limit 1 with weekend rows counted, got %#v", got)
	}
}

func TestGetStatisticsByMonthAndYear(t *testing.T) {
	repo := newFakeRepo()
	repo.seed("t1", domain.NewDate(2025, 12, 30), true)
	repo.seed("t1", domain.NewDate(2026, 1, 5), false)
	repo.seed("t1", domain.NewDate(2026, 2, 2), true)
	repo.seed("t1", domain.NewDate(2026, 2, 3), true)
	svc := newTestService(t, repo)
	ctx := context.Background()

	months, err := svc.GetStatistics(ctx, StatisticsQuery{TaskUUIDs: []string{"t1"}, Grouping: GroupingMonth, Limit: 12})
	if err != nil {
		t.Fatalf("GetStatistics() error = %v", err)
	}
	labels := make([]string, 0)
	for _, p := range months["t1"] {
		labels = append(labels, p.Label)
	}
	if strings.Join(labels, ",") != "2026-02,2026-01,2025-12" {
		t.Fatalf("unexpected month labels %v", labels)
	}
	if feb := months["t1"][0]; feb.End != domain.NewDate(2026, 2, 28) || feb.Rate != 1 {
		t.Fatalf("unexpected february point %#v", feb)
	}

	years, err := svc.GetStatistics(ctx, StatisticsQuery{TaskUUIDs: []string{"t1"}, Grouping: GroupingYear, Limit: 12})
	if err != nil {
		t.Fatalf("GetStatistics() error = %v", err)
	}
	got := years["t1"]
	if len(got) != 2 || got[0].Label != "2026" || got[0].Completed != 2 || got[0].Total != 3 {
		t.Fatalf("unexpected year points %#v", got)
	}
}

func TestGetStatisticsStorageFailureYieldsEmptySeries(t *testing.T) {
	svc := newTestService(t, failingRepo{fakeRepo: newFakeRepo(), err: errors.New("boom")})
	stats, err := svc.GetStatistics(context.Background(), StatisticsQuery{TaskUUIDs: []string{"t1"}, Grouping: GroupingDay, Limit: 3})
	if err != nil {
		t.Fatalf("GetStatistics() error = %v", err)
	}
	if got, ok := stats["t1"]; !ok || len(got) != 0 {
		t.Fatalf("expected empty series, got %#v", stats)
	}
}

func TestComputeStreak(t *testing.T) {
	ref := domain.NewDate(2026, 2, 21)
	d := func(back int) domain.Date { return ref.AddDays(-back) }
	cases := []struct {
		name string
		done map[domain.Date]bool
		want int
	}{
		{name: "empty", done: map[domain.Date]bool{}, want: 0},
		{name: "open today skipped", done: map[domain.Date]bool{d(0): false, d(1): true, d(2): true, d(3): true}, want: 3},
		{name: "done today counted", done: map[domain.Date]bool{d(0): true, d(1): true}, want: 2},
		{name: "missing day skipped", done: map[domain.Date]bool{d(1): true, d(3): true, d(4): true}, want: 3},
		{name: "explicit miss breaks", done: map[domain.Date]bool{d(1): true, d(2): false, d(3): true}, want: 1},
		{name: "yesterday missed", done: map[domain.Date]bool{d(0): false, d(1): false, d(2): true}, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := computeStreak(tc.done, ref); got != tc.want {
				t.Fatalf("computeStreak() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestGetStreakIgnoresFutureRows(t *testing.T) {
	repo := newFakeRepo()
	today := domain.NewDate(2026, 2, 21)
	repo.seed("t1", today.AddDays(-2), true)
	repo.seed("t1", today.AddDays(-1), true)
	repo.seed("t1", today, false)
	repo.seed("t1", today.AddDays(1), false)
	svc := newTestService(t, repo)
	if got := svc.Streak(context.Background(), "t1"); got != 2 {
		t.Fatalf("Streak() = %d, want 2", got)
	}
	if got := svc.GetStreak(context.Background(), "t1", today.AddDays(-1)); got != 2 {
		t.Fatalf("GetStreak(yesterday) = %d, want 2", got)
	}
}

func TestStatisticsReport(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := newTestService(t, repo)
	day := domain.NewDate(2026, 2, 20)
	taskUUID, err := svc.AddEntry(ctx, "morning", "Stretch", "", day)
	if err != nil {
		t.Fatalf("AddEntry() error = %v", err)
	}
	svc.MarkTask(ctx, taskUUID, day, true)

	out, err := svc.StatisticsReport(ctx, StatisticsQuery{Grouping: GroupingDay, Limit: 7})
	if err != nil {
		t.Fatalf("StatisticsReport() error = %v", err)
	}
	for _, want := range []string{"# Statistics (Day, through 2026-02-21)", "## Stretch", "streak **1**", "| 02-20 | ✓ |"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected report to contain %q, got\n%s", want, out)
		}
	}
}
