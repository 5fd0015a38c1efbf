package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MegaGrindStone/study-buddy/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookReply(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = io.WriteString(w, "Here is a *study plan*.")
	}))
	defer srv.Close()

	reply, err := services.NewWebhook(srv.URL, srv.Client()).Reply(context.Background(), "sid", "plan my week")
	require.NoError(t, err)

	assert.Equal(t, "Here is a *study plan*.", reply)
	assert.Equal(t, map[string]any{
		"sessionId": "sid",
		"action":    "sendMessage",
		"chatInput": "plan my week",
	}, raw)
}

func TestWebhookStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "workflow not active", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := services.NewWebhook(srv.URL, nil).Reply(context.Background(), "sid", "hi")

	var statusErr *services.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "workflow not active")
}
