package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"funneltrack/api/models"
	"funneltrack/api/store"
)

type WebhookHandlers struct {
	Sessions *store.SessionStore
	Funnel   *store.FunnelStore
}

func NewWebhookHandlers(sessions *store.SessionStore, funnel *store.FunnelStore) *WebhookHandlers {
	return &WebhookHandlers{
		Sessions: sessions,
		Funnel:   funnel,
	}
}

type identityWebhookRequest struct {
	UserID             string `json:"user_id" binding:"required"`
	BrowserFingerprint string `json:"browser_fingerprint" binding:"required"`
}

// IdentityWebhook links a signed-up user to the session carrying their
// browser fingerprint, then records the signup funnel event no matter how
// the linkage went: a webhook with no matching session still logs the
// signup with no session reference.
func (h *WebhookHandlers) IdentityWebhook(c *gin.Context) {
	var req identityWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	result, session, err := h.Sessions.LinkUserToSession(ctx, req.BrowserFingerprint, req.UserID)
	if err != nil {
		log.Printf("Error linking user %s by fingerprint: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process identity webhook"})
		return
	}

	signup := models.FunnelEvent{
		EventID:    uuid.New().String(),
		UserID:     req.UserID,
		Stage:      models.StageSignup,
		OccurredAt: time.Now().UTC(),
	}
	if session != nil {
		signup.SessionID = session.SessionID
	}
	if err := h.Funnel.RecordStage(ctx, signup); err != nil {
		log.Printf("Error recording signup event for user %s: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record signup event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"link_result": result})
}
