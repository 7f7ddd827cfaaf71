package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"funneltrack/api/models"
	"funneltrack/api/store"
)

type TrackHandlers struct {
	Funnel *store.FunnelStore
}

func NewTrackHandlers(funnel *store.FunnelStore) *TrackHandlers {
	return &TrackHandlers{
		Funnel: funnel,
	}
}

type pageViewRequest struct {
	SessionID      string  `json:"session_id" binding:"required"`
	LandingPageID  string  `json:"landing_page_id" binding:"required"`
	DurationMs     int64   `json:"duration_ms,omitempty"`
	ScrollDepthPct float64 `json:"scroll_depth_percent,omitempty"`
}

// TrackPageView records a view-stage funnel event with page metadata.
// Repeat views of the same page are valid; the log is append-only.
func (h *TrackHandlers) TrackPageView(c *gin.Context) {
	var req pageViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ev := models.FunnelEvent{
		EventID:        uuid.New().String(),
		SessionID:      req.SessionID,
		Stage:          models.StageView,
		OccurredAt:     time.Now().UTC(),
		LandingPageID:  req.LandingPageID,
		DurationMs:     req.DurationMs,
		ScrollDepthPct: req.ScrollDepthPct,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	if err := h.Funnel.RecordStage(ctx, ev); err != nil {
		log.Printf("Error recording page view for session %s: %v", req.SessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record page view"})
		return
	}
	c.JSON(http.StatusCreated, ev)
}

type stageEventRequest struct {
	SessionID string     `json:"session_id" binding:"required"`
	Stage     string     `json:"stage" binding:"required"`
	CTAID     string     `json:"cta_id,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// TrackStage records an arbitrary funnel-stage event. Unknown stage names
// are a caller error, rejected before anything is written.
func (h *TrackHandlers) TrackStage(c *gin.Context) {
	var req stageEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	stage := models.Stage(req.Stage)
	if !models.ValidStage(stage) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown stage name", "stage": req.Stage})
		return
	}

	occurredAt := time.Now().UTC()
	if req.Timestamp != nil {
		occurredAt = req.Timestamp.UTC()
	}

	ev := models.FunnelEvent{
		EventID:    uuid.New().String(),
		SessionID:  req.SessionID,
		Stage:      stage,
		OccurredAt: occurredAt,
		CTAID:      req.CTAID,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	if err := h.Funnel.RecordStage(ctx, ev); err != nil {
		if errors.Is(err, models.ErrInvalidStage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown stage name", "stage": req.Stage})
			return
		}
		log.Printf("Error recording stage %s for session %s: %v", req.Stage, req.SessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record funnel event"})
		return
	}
	c.JSON(http.StatusCreated, ev)
}

// SessionProgression returns the first-occurrence-per-stage view for one
// session, in the order the visitor actually moved through the funnel. A
// session's own events are few, so the reduction runs on the raw sequence.
func (h *TrackHandlers) SessionProgression(c *gin.Context) {
	sessionID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	events, err := h.Funnel.StagesForSession(ctx, sessionID)
	if err != nil {
		log.Printf("Error getting progression for session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve session progression"})
		return
	}
	c.JSON(http.StatusOK, models.ProgressionOrder(models.FirstOccurrences(events)))
}

// UserProgression resolves the same view keyed by linked user id, pushed
// down to the store since a user's events can span many sessions.
func (h *TrackHandlers) UserProgression(c *gin.Context) {
	userID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	first, err := h.Funnel.FirstOccurrencePerStage(ctx, userID, true)
	if err != nil {
		log.Printf("Error getting progression for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user progression"})
		return
	}
	c.JSON(http.StatusOK, models.ProgressionOrder(first))
}

// SessionStages returns a session's raw event sequence ordered by time.
func (h *TrackHandlers) SessionStages(c *gin.Context) {
	sessionID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	events, err := h.Funnel.StagesForSession(ctx, sessionID)
	if err != nil {
		log.Printf("Error getting stages for session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve session events"})
		return
	}
	if events == nil {
		events = []models.FunnelEvent{}
	}
	c.JSON(http.StatusOK, events)
}
