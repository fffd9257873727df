package app

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/hylla/daybox/internal/domain"
)

// Grouping selects the statistics bucket size.
type Grouping string

// GroupingDay and related constants define the supported bucket sizes.
const (
	GroupingDay   Grouping = "Day"
	GroupingWeek  Grouping = "Week"
	GroupingMonth Grouping = "Month"
	GroupingYear  Grouping = "Year"
)

// maxStreakDays bounds the backwards streak walk.
const maxStreakDays = 3650

var groupings = []Grouping{GroupingDay, GroupingWeek, GroupingMonth, GroupingYear}

// ParseGrouping parses a grouping name case-insensitively.
func ParseGrouping(raw string) (Grouping, error) {
	for _, g := range groupings {
		if strings.EqualFold(strings.TrimSpace(raw), string(g)) {
			return g, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidGrouping, raw)
}

// Next cycles Day -> Week -> Month -> Year -> Day.
func (g Grouping) Next() Grouping {
	idx := slices.Index(groupings, g)
	return groupings[(idx+1)%len(groupings)]
}

// StatisticsQuery selects tasks and shapes the returned series.
type StatisticsQuery struct {
	TaskUUIDs      []string
	Grouping       Grouping
	IgnoreWeekends bool
	Limit          int
	// Through is the newest logical date considered; zero means today.
	Through domain.Date
}

// DataPoint is one day or one aggregated bucket of a task's history.
type DataPoint struct {
	Start     domain.Date
	End       domain.Date
	Completed int
	// Total counts only days that have a ledger row.
	Total int
	Rate  float64
	Label string
}

// Done reports whether every tracked day in the point was completed.
func (p DataPoint) Done() bool {
	return p.Total > 0 && p.Completed == p.Total
}

// GetStatistics returns task uuid -> data points, most recent first.
// A task whose history cannot be read maps to an empty series.
func (s *Service) GetStatistics(ctx context.Context, q StatisticsQuery) (map[string][]DataPoint, error) {
	if _, err := ParseGrouping(string(q.Grouping)); err != nil {
		return nil, err
	}
	if q.Limit < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, q.Limit)
	}
	through := q.Through
	if through.IsZero() {
		through = s.Today()
	}

	out := make(map[string][]DataPoint, len(q.TaskUUIDs))
	for _, taskUUID := range q.TaskUUIDs {
		taskUUID = strings.TrimSpace(taskUUID)
		if taskUUID == "" {
			continue
		}
		if _, ok := out[taskUUID]; ok {
			continue
		}
		entries, err := s.repo.ListLedgerEntriesForTask(ctx, taskUUID, through)
		if err != nil {
			s.logger.Error("statistics load failed", "task_uuid", taskUUID, "err", err)
			out[taskUUID] = []DataPoint{}
			continue
		}
		out[taskUUID] = aggregate(entries, q.Grouping, q.IgnoreWeekends, q.Limit)
	}
	return out, nil
}

// aggregate groups ascending ledger rows into newest-first points capped at limit.
func aggregate(entries []domain.LedgerEntry, grouping Grouping, ignoreWeekends bool, limit int) []DataPoint {
	rows := make([]domain.LedgerEntry, 0, len(entries))
	for _, entry := range entries {
		if ignoreWeekends && entry.Date.IsWeekend() {
			continue
		}
		rows = append(rows, entry)
	}
	slices.SortFunc(rows, func(a, b domain.LedgerEntry) int {
		return b.Date.Time().Compare(a.Date.Time())
	})

	if grouping == GroupingDay {
		points := make([]DataPoint, 0, min(limit, len(rows)))
		for _, row := range rows {
			if len(points) == limit {
				break
			}
			completed := 0
			if row.Done {
				completed = 1
			}
			points = append(points, DataPoint{
				Start:     row.Date,
				End:       row.Date,
				Completed: completed,
				Total:     1,
				Rate:      float64(completed),
				Label:     row.Date.Time().Format("01-02"),
			})
		}
		return points
	}

	points := make([]DataPoint, 0)
	for _, row := range rows {
		start := bucketStart(row.Date, grouping)
		if n := len(points); n == 0 || points[n-1].Start != start {
			if len(points) == limit {
				break
			}
			end := bucketEnd(start, grouping)
			points = append(points, DataPoint{Start: start, End: end, Label: bucketLabel(start, end, grouping)})
		}
		p := &points[len(points)-1]
		p.Total++
		if row.Done {
			p.Completed++
		}
	}
	for i := range points {
		points[i].Rate = float64(points[i].Completed) / float64(points[i].Total)
	}
	return points
}

func bucketStart(d domain.Date, grouping Grouping) domain.Date {
	switch grouping {
	case GroupingWeek:
		return d.WeekStart()
	case GroupingMonth:
		return d.MonthStart()
	default:
		return d.YearStart()
	}
}

func bucketEnd(start domain.Date, grouping Grouping) domain.Date {
	switch grouping {
	case GroupingWeek:
		return start.AddDays(6)
	case GroupingMonth:
		return domain.NewDate(start.Year, start.Month+1, 0)
	default:
		return domain.NewDate(start.Year, 12, 31)
	}
}

func bucketLabel(start, end domain.Date, grouping Grouping) string {
	switch grouping {
	case GroupingWeek:
		return start.Time().Format("01-02") + " - " + end.Time().Format("01-02")
	case GroupingMonth:
		return start.Time().Format("2006-01")
	default:
		return start.Time().Format("2006")
	}
}

// GetStreak counts consecutive completed days walking back from ref.
// A still-open ref day is skipped, a day without a row is skipped, and an explicit
// not-done row ends the streak.
func (s *Service) GetStreak(ctx context.Context, taskUUID string, ref domain.Date) int {
	entries, err := s.repo.ListLedgerEntriesForTask(ctx, strings.TrimSpace(taskUUID), ref)
	if err != nil {
		s.logger.Error("streak load failed", "task_uuid", taskUUID, "err", err)
		return 0
	}
	done := make(map[domain.Date]bool, len(entries))
	for _, entry := range entries {
		done[entry.Date] = entry.Done
	}
	return computeStreak(done, ref)
}

// Streak is GetStreak with today's logical date as the reference.
func (s *Service) Streak(ctx context.Context, taskUUID string) int {
	return s.GetStreak(ctx, taskUUID, s.Today())
}

func computeStreak(done map[domain.Date]bool, ref domain.Date) int {
	if len(done) == 0 {
		return 0
	}
	earliest := ref
	for d := range done {
		if d.Before(earliest) {
			earliest = d
		}
	}

	day := ref
	if v, ok := done[ref]; ok && !v {
		day = ref.AddDays(-1)
	}
	streak := 0
	for i := 0; i < maxStreakDays && !day.Before(earliest); i++ {
		if v, ok := done[day]; ok {
			if !v {
				break
			}
			streak++
		}
		day = day.AddDays(-1)
	}
	return streak
}
