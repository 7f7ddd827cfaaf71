package models

import "time"

// Stage is a named checkpoint in a visitor's journey. The set is closed;
// stage names outside it are rejected before any write.
type Stage string

const (
	StageLanding    Stage = "landing"
	StageView       Stage = "view"
	StageCTAClick   Stage = "cta_click"
	StageSignup     Stage = "signup"
	StageFirstCard  Stage = "first_card"
	StageUpgrade    Stage = "upgrade"
	StageConversion Stage = "conversion"
)

// DefaultFunnel is the ordered progression used for drop-off reporting.
var DefaultFunnel = []Stage{StageLanding, StageSignup, StageFirstCard, StageUpgrade}

var knownStages = map[Stage]bool{
	StageLanding:    true,
	StageView:       true,
	StageCTAClick:   true,
	StageSignup:     true,
	StageFirstCard:  true,
	StageUpgrade:    true,
	StageConversion: true,
}

func ValidStage(s Stage) bool {
	return knownStages[s]
}

// FunnelEvent is one immutable fact in the append-only event log.
// SessionID and UserID may be empty: an identity webhook that matches no
// session still logs its signup event with no session reference.
type FunnelEvent struct {
	EventID        string    `json:"eventId"`
	SessionID      string    `json:"sessionId"`
	UserID         string    `json:"userId,omitempty"`
	Stage          Stage     `json:"stage"`
	OccurredAt     time.Time `json:"occurredAt"`
	LandingPageID  string    `json:"landingPageId,omitempty"`
	CTAID          string    `json:"ctaId,omitempty"`
	DurationMs     int64     `json:"durationMs,omitempty"`
	ScrollDepthPct float64   `json:"scrollDepthPercent,omitempty"`
}
