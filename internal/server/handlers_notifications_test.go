package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationsListNewestFirstForOwner(t *testing.T) {
	env := newTestEnv(t)
	owner := testID()
	env.seedDoc(t, collectionNotifications, "n-old", map[string]any{
		"uid": owner, "type": "check_in", "message": "older", "created_at": "2026-03-01T10:00:00.000000000Z", "acknowledged": false,
	})
	env.seedDoc(t, collectionNotifications, "n-new", map[string]any{
		"uid": owner, "type": "check_in", "message": "newer", "created_at": "2026-03-05T10:00:00.000000000Z", "acknowledged": false,
	})
	env.seedDoc(t, collectionNotifications, "n-foreign", map[string]any{
		"uid": testID(), "type": "check_in", "message": "not yours", "created_at": "2026-03-06T10:00:00.000000000Z", "acknowledged": false,
	})

	rec := performRequest(t, env.router, http.MethodGet, "/api/v1/notifications", signToken(t, owner, nil), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	notifications := decodeJSONMap(t, rec)["notifications"].([]any)
	require.Len(t, notifications, 2)
	assert.Equal(t, "n-new", notifications[0].(map[string]any)["id"])
	assert.Equal(t, "n-old", notifications[1].(map[string]any)["id"])
}

func TestAcknowledgeNotificationChecksOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner := testID()
	env.seedDoc(t, collectionNotifications, "n-1", map[string]any{
		"uid": owner, "type": "check_in", "message": "hi", "created_at": "2026-03-01T10:00:00.000000000Z", "acknowledged": false,
	})

	rec := performRequest(t, env.router, http.MethodPost, "/api/v1/notifications/n-1/acknowledge", signToken(t, testID(), nil), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Notification not found", decodeJSONMap(t, rec)["message"])

	doc, err := env.store.Get(context.Background(), collectionNotifications, "n-1")
	require.NoError(t, err)
	assert.False(t, doc.Bool("acknowledged"))

	rec = performRequest(t, env.router, http.MethodPost, "/api/v1/notifications/missing/acknowledge", signToken(t, owner, nil), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Notification not found", decodeJSONMap(t, rec)["message"])

	rec = performRequest(t, env.router, http.MethodPost, "/api/v1/notifications/n-1/acknowledge", signToken(t, owner, nil), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Notification acknowledged", decodeJSONMap(t, rec)["message"])

	doc, err = env.store.Get(context.Background(), collectionNotifications, "n-1")
	require.NoError(t, err)
	assert.True(t, doc.Bool("acknowledged"))
}
