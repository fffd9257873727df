package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// StatisticsReport renders statistics and streaks for the query as markdown.
// Task labels come from the identity registry.
func (s *Service) StatisticsReport(ctx context.Context, q StatisticsQuery) (string, error) {
	identities, err := s.ListTaskIdentities(ctx)
	if err != nil {
		return "", err
	}
	labels := make(map[string]string, len(identities))
	activities := make(map[string]string, len(identities))
	for _, identity := range identities {
		labels[identity.TaskUUID] = identity.TaskName
		activities[identity.TaskUUID] = identity.ActivityID
	}
	if len(q.TaskUUIDs) == 0 {
		for _, identity := range identities {
			q.TaskUUIDs = append(q.TaskUUIDs, identity.TaskUUID)
		}
	}
	stats, err := s.GetStatistics(ctx, q)
	if err != nil {
		return "", err
	}
	through := q.Through
	if through.IsZero() {
		through = s.Today()
	}

	uuids := make([]string, 0, len(stats))
	for taskUUID := range stats {
		uuids = append(uuids, taskUUID)
	}
	slices.SortFunc(uuids, func(a, b string) int {
		if c := strings.Compare(labels[a], labels[b]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})

	var b strings.Builder
	fmt.Fprintf(&b, "# Statistics (%s, through %s)\n\n", q.Grouping, through)
	if q.IgnoreWeekends {
		b.WriteString("_Weekends excluded._\n\n")
	}
	if len(uuids) == 0 {
		b.WriteString("No tracked tasks yet.\n")
		return b.String(), nil
	}
	for _, taskUUID := range uuids {
		name := labels[taskUUID]
		if name == "" {
			name = taskUUID
		}
		fmt.Fprintf(&b, "## %s\n\n", name)
		if activity := activities[taskUUID]; activity != "" {
			fmt.Fprintf(&b, "Activity `%s` · streak **%d**\n\n", activity, s.GetStreak(ctx, taskUUID, through))
		}
		points := stats[taskUUID]
		if len(points) == 0 {
			b.WriteString("_No history._\n\n")
			continue
		}
		if q.Grouping == GroupingDay {
			b.WriteString("| Day | Done |\n|---|---|\n")
			for _, p := range points {
				mark := "✗"
				if p.Done() {
					mark = "✓"
				}
				fmt.Fprintf(&b, "| %s | %s |\n", p.Label, mark)
			}
		} else {
			b.WriteString("| Period | Done | Tracked | Rate |\n|---|---|---|---|\n")
			for _, p := range points {
				fmt.Fprintf(&b, "| %s | %d | %d | %.0f%% |\n", p.Label, p.Completed, p.Total, p.Rate*100)
			}
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}
