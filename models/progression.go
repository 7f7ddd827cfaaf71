package models

import "sort"

// FirstOccurrences reduces a session's raw event sequence to the canonical
// progression view: the earliest event per stage. It takes the minimum
// timestamp per stage group rather than trusting arrival order, so late or
// out-of-order delivery cannot corrupt the view.
func FirstOccurrences(events []FunnelEvent) map[Stage]FunnelEvent {
	first := make(map[Stage]FunnelEvent)
	for _, ev := range events {
		existing, seen := first[ev.Stage]
		if !seen || ev.OccurredAt.Before(existing.OccurredAt) {
			first[ev.Stage] = ev
		}
	}
	return first
}

// ProgressionOrder lists the first-occurrence events sorted by timestamp
// ascending, the order the visitor actually moved through the funnel.
func ProgressionOrder(first map[Stage]FunnelEvent) []FunnelEvent {
	ordered := make([]FunnelEvent, 0, len(first))
	for _, ev := range first {
		ordered = append(ordered, ev)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].OccurredAt.Equal(ordered[j].OccurredAt) {
			return ordered[i].OccurredAt.Before(ordered[j].OccurredAt)
		}
		return ordered[i].Stage < ordered[j].Stage
	})
	return ordered
}
