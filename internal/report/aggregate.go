package report

import (
	"sort"

	"breakwatch/internal/model"
)

// UserEvents is one user's slice of the filtered event stream, in the
// order the events occurred.
type UserEvents struct {
	UserID string
	Events []model.NormalizedEvent
}

// GroupByUser splits a sorted event stream per user, keeping users in
// first-appearance order so the final sort's stable tie-break is
// deterministic.
func GroupByUser(events []model.NormalizedEvent) []UserEvents {
	index := make(map[string]int)
	groups := make([]UserEvents, 0)
	for _, ev := range events {
		i, ok := index[ev.UserID]
		if !ok {
			i = len(groups)
			index[ev.UserID] = i
			groups = append(groups, UserEvents{UserID: ev.UserID})
		}
		groups[i].Events = append(groups[i].Events, ev)
	}
	return groups
}

// Aggregate pairs each user's events, totals the paired durations and
// keeps users whose total meets the threshold or who have at least one
// violation. Results are ordered by total time away descending, then
// violation count descending; remaining ties keep grouping order.
func Aggregate(groups []UserEvents, thresholdMinutes int, areaLabel string) ([]model.UserReport, int) {
	thresholdMs := int64(thresholdMinutes) * 60_000
	users := make([]model.UserReport, 0, len(groups))
	unpaired := 0
	for _, g := range groups {
		res := PairSessions(g.Events, areaLabel)
		unpaired += res.UnpairedOut

		var totalMs int64
		for _, p := range res.Pairs {
			totalMs += p.DurationMs
		}
		if totalMs < thresholdMs && len(res.Violations) == 0 {
			continue
		}
		name, site := userIdentity(g.Events)
		users = append(users, model.UserReport{
			UserID:             g.UserID,
			UserName:           name,
			SiteName:           site,
			TotalDurationMs:    totalMs,
			TotalDurationLabel: FormatDurationMs(totalMs),
			Pairs:              res.Pairs,
			Violations:         res.Violations,
		})
	}
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].TotalDurationMs != users[j].TotalDurationMs {
			return users[i].TotalDurationMs > users[j].TotalDurationMs
		}
		return len(users[i].Violations) > len(users[j].Violations)
	})
	return users, unpaired
}

func userIdentity(events []model.NormalizedEvent) (name, site string) {
	if len(events) == 0 {
		return "Unknown User", "Unknown Site"
	}
	return events[0].UserName, events[0].SiteName
}
