package server

import (
	"net/http"
	"time"

	"github.com/ashita-ai/kansoku/internal/auth"
	"github.com/ashita-ai/kansoku/internal/model"
)

// tokenRequest is the body of POST /auth/token.
type tokenRequest struct {
	Viewer string `json:"viewer"`
	APIKey string `json:"api_key"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      auth.Role `json:"role"`
}

// HandleAuthToken handles POST /auth/token: it exchanges the shared API
// key for a viewer token. Exchange needs both a configured key hash and a
// private signing key.
func (h *Handlers) HandleAuthToken(w http.ResponseWriter, r *http.Request) {
	if h.apiKey == nil || h.jwtMgr == nil || !h.jwtMgr.CanIssue() {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "token exchange is disabled")
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	if req.Viewer == "" || req.APIKey == "" {
		auth.DummyVerify()
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "viewer and api_key are required")
		return
	}
	if !h.apiKey.Verify(req.APIKey) {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid credentials")
		return
	}

	token, exp, err := h.jwtMgr.IssueToken(req.Viewer, auth.RoleViewer, 0)
	if err != nil {
		h.logger.Error("auth: issue token", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to issue token")
		return
	}
	writeJSON(w, r, http.StatusOK, tokenResponse{Token: token, ExpiresAt: exp, Role: auth.RoleViewer})
}
