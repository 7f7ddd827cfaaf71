package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// Validation rejections happen before any store call, so a handler with no
// wired store exercises them directly.

func postJSON(t *testing.T, handler gin.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST(path, handler)

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTrackStageRejectsUnknownStage(t *testing.T) {
	h := NewTrackHandlers(nil)
	w := postJSON(t, h.TrackStage, "/track/stage",
		`{"session_id": "s1", "stage": "checkout"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Unknown stage name")
	assert.Contains(t, w.Body.String(), "checkout")
}

func TestTrackStageRequiresSessionID(t *testing.T) {
	h := NewTrackHandlers(nil)
	w := postJSON(t, h.TrackStage, "/track/stage", `{"stage": "signup"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrackStageRejectsMalformedBody(t *testing.T) {
	h := NewTrackHandlers(nil)
	w := postJSON(t, h.TrackStage, "/track/stage", `{"session_id": `)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrackPageViewRequiresLandingPage(t *testing.T) {
	h := NewTrackHandlers(nil)
	w := postJSON(t, h.TrackPageView, "/track/pageview", `{"session_id": "s1"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIdentityWebhookRequiresFingerprint(t *testing.T) {
	h := NewWebhookHandlers(nil, nil)
	w := postJSON(t, h.IdentityWebhook, "/webhooks/identity", `{"user_id": "u1"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
