package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ringforge/callgate/pkg/auth"
	"github.com/ringforge/callgate/pkg/httputil"
)

// AuthHandlers handles session HTTP requests
type AuthHandlers struct {
	sessions *auth.SessionStore
	ttl      time.Duration
}

// NewAuthHandlers creates a new AuthHandlers
func NewAuthHandlers(sessions *auth.SessionStore, ttl time.Duration) *AuthHandlers {
	return &AuthHandlers{
		sessions: sessions,
		ttl:      ttl,
	}
}

// RegisterRoutes registers auth routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/handshake", h.handshake).Methods("POST")
	router.HandleFunc("/auth/sessions/{token}", h.revoke).Methods("DELETE")
}

type handshakeRequest struct {
	AccountID string `json:"account_id"`
}

type handshakeResponse struct {
	Token     string    `json:"token"`
	AccountID string    `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *AuthHandlers) handshake(w http.ResponseWriter, r *http.Request) {
	var req handshakeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.AccountID == "" {
		httputil.WriteBadRequest(w, "account_id is required")
		return
	}

	token, err := h.sessions.Handshake(r.Context(), req.AccountID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, handshakeResponse{
		Token:     token,
		AccountID: req.AccountID,
		ExpiresAt: time.Now().Add(h.ttl),
	})
}

func (h *AuthHandlers) revoke(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Revoke(r.Context(), mux.Vars(r)["token"]); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}
