package models

import "time"

// Experiment is a named, time-bounded A/B test owning two or more weighted
// variants. The engine treats it as a read-only snapshot: assignment is
// frozen at write time, so later weight edits only affect new sessions.
type Experiment struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	StartAt  time.Time `json:"startAt"`
	EndAt    time.Time `json:"endAt"`
	Variants []Variant `json:"variants"`
}

// Variant is one arm of an experiment. Weight is relative; weights across
// an experiment's variants need not sum to 100.
type Variant struct {
	ID           string `json:"id"`
	ExperimentID string `json:"experimentId"`
	Name         string `json:"name"`
	Weight       int    `json:"weight"`
}

// Active reports whether the experiment accepts assignments at the given
// time: the time falls within its window and it has at least one variant.
func (e *Experiment) Active(now time.Time) bool {
	if len(e.Variants) == 0 {
		return false
	}
	return !now.Before(e.StartAt) && now.Before(e.EndAt)
}

// TotalWeight is the modulus for proportional bucketing.
func (e *Experiment) TotalWeight() int {
	total := 0
	for _, v := range e.Variants {
		total += v.Weight
	}
	return total
}
