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
	"funneltrack/api/utils"
)

type SessionHandlers struct {
	Sessions    *store.SessionStore
	Experiments *store.ExperimentStore
	Funnel      *store.FunnelStore
}

func NewSessionHandlers(sessions *store.SessionStore, experiments *store.ExperimentStore, funnel *store.FunnelStore) *SessionHandlers {
	return &SessionHandlers{
		Sessions:    sessions,
		Experiments: experiments,
		Funnel:      funnel,
	}
}

type createSessionRequest struct {
	SessionID string `json:"session_id"`
	models.SessionAttributes
	LandingPageID string `json:"landing_page_id,omitempty"`
}

// CreateSession creates or touches a session. First contact answers 201
// and, in the same request, runs variant assignment against every active
// experiment and records the landing funnel event; a repeat contact
// answers 200 having moved nothing but last_seen_at.
func (h *SessionHandlers) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.SessionID == "" {
		req.SessionID = utils.NewSessionID()
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	session, created, err := h.Sessions.CreateOrTouchSession(ctx, req.SessionID, req.SessionAttributes)
	if err != nil {
		log.Printf("Error creating/touching session %s: %v", req.SessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record session"})
		return
	}

	if created {
		now := time.Now().UTC()
		h.assignActiveExperiments(ctx, session, now)

		landing := models.FunnelEvent{
			EventID:       uuid.New().String(),
			SessionID:     session.SessionID,
			Stage:         models.StageLanding,
			OccurredAt:    now,
			LandingPageID: req.LandingPageID,
		}
		if err := h.Funnel.RecordStage(ctx, landing); err != nil {
			// The session row is already durable; a lost landing event is
			// an analytics gap, not a failed request.
			log.Printf("Error recording landing event for session %s: %v", session.SessionID, err)
		}

		c.JSON(http.StatusCreated, session)
		return
	}
	c.JSON(http.StatusOK, session)
}

// assignActiveExperiments freezes one variant per active experiment for a
// freshly created session. Assignment never runs again for this session,
// so later experiment edits cannot move it.
func (h *SessionHandlers) assignActiveExperiments(ctx context.Context, session *models.Session, now time.Time) {
	experiments, err := h.Experiments.ActiveExperiments(ctx, now)
	if err != nil {
		log.Printf("Error loading active experiments for session %s: %v", session.SessionID, err)
		return
	}

	for _, exp := range experiments {
		variantID, ok, err := h.Experiments.AssignVariant(ctx, session.SessionID, exp, now)
		if err != nil {
			log.Printf("Error assigning variant for session %s in experiment %s: %v", session.SessionID, exp.ID, err)
			continue
		}
		if !ok {
			continue
		}
		if err := h.Sessions.SetAssignedVariant(ctx, session.SessionID, exp.ID, variantID); err != nil {
			log.Printf("Error mirroring assignment onto session %s: %v", session.SessionID, err)
			continue
		}
		if session.AssignedVariantID == nil {
			expID, vID := exp.ID, variantID
			session.AssignedExperimentID = &expID
			session.AssignedVariantID = &vID
		}
	}
}

// GetSession is the direct entity lookup; unknown sessions are 404, unlike
// metrics queries which degrade to empty results.
func (h *SessionHandlers) GetSession(c *gin.Context) {
	sessionID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	session, err := h.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		log.Printf("Error getting session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve session"})
		return
	}
	c.JSON(http.StatusOK, session)
}
