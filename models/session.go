package models

import "time"

// Session is one visitor's tracked browsing context, keyed by a stable
// opaque id. Derived and assigned fields are written at most once; repeat
// submissions only advance LastSeenAt.
type Session struct {
	SessionID            string    `json:"sessionId"`
	CreatedAt            time.Time `json:"createdAt"`
	LastSeenAt           time.Time `json:"lastSeenAt"`
	ReferrerURL          *string   `json:"referrerUrl,omitempty"`
	ReferrerDomain       *string   `json:"referrerDomain,omitempty"`
	UTMSource            *string   `json:"utmSource,omitempty"`
	UTMCampaign          *string   `json:"utmCampaign,omitempty"`
	UTMMedium            *string   `json:"utmMedium,omitempty"`
	BrowserFingerprint   *string   `json:"browserFingerprint,omitempty"`
	UserID               *string   `json:"userId,omitempty"`
	AssignedExperimentID *string   `json:"assignedExperimentId,omitempty"`
	AssignedVariantID    *string   `json:"assignedVariantId,omitempty"`
}

// SessionAttributes carries the acquisition metadata a client submits on
// first contact. All fields are optional; they are stored verbatim.
type SessionAttributes struct {
	ReferrerURL        string `json:"referrer,omitempty"`
	UTMSource          string `json:"utmSource,omitempty"`
	UTMCampaign        string `json:"utmCampaign,omitempty"`
	UTMMedium          string `json:"utmMedium,omitempty"`
	BrowserFingerprint string `json:"browserFingerprint,omitempty"`
}

// LinkResult reports the outcome of an identity-linkage attempt.
type LinkResult string

const (
	// LinkLinked means the session's user_id was set by this call.
	LinkLinked LinkResult = "linked"
	// LinkAlreadyLinked means the session already had a user_id; the first
	// linkage wins and the new one is dropped without error.
	LinkAlreadyLinked LinkResult = "already-linked"
	// LinkNoSession means no session matched the correlation key. The call
	// still succeeds; the caller records the funnel event with no session.
	LinkNoSession LinkResult = "no-session-found"
)
