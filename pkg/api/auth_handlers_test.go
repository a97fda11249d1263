package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringforge/callgate/pkg/auth"
	"github.com/ringforge/callgate/pkg/storage/postgres"
)

func newAuthRouter(t *testing.T) (*mux.Router, *auth.SessionStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := postgres.NewRedisClient(postgres.RedisConfig{
		URL: "redis://" + mr.Addr(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	sessions := auth.NewSessionStore(client, time.Hour)
	router := mux.NewRouter()
	NewAuthHandlers(sessions, time.Hour).RegisterRoutes(router)
	return router, sessions
}

func TestHandshakeHandler(t *testing.T) {
	router, sessions := newAuthRouter(t)

	body := bytes.NewBufferString(`{"account_id":"acct_123"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/handshake", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Token     string `json:"token"`
		AccountID string `json:"account_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "acct_123", resp.AccountID)

	accountID, err := sessions.Resolve(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "acct_123", accountID)
}

func TestHandshakeHandler_MissingAccount(t *testing.T) {
	router, _ := newAuthRouter(t)

	body := bytes.NewBufferString(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/handshake", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRevokeSessionHandler(t *testing.T) {
	router, sessions := newAuthRouter(t)

	token, err := sessions.Handshake(context.Background(), "acct_123")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/auth/sessions/"+token, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err = sessions.Resolve(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}
