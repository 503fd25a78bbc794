package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anchor/backend/internal/docstore"
)

const notificationCheckIn = "check_in"

// createNotification stores a notification record. Delivery happens elsewhere.
func (a *App) createNotification(ctx context.Context, uid, kind, message string) error {
	_, err := a.store.Add(ctx, collectionNotifications, map[string]any{
		"uid":          uid,
		"type":         kind,
		"message":      message,
		"created_at":   docstore.Timestamp(a.now()),
		"acknowledged": false,
	})
	return err
}

func (a *App) listNotifications(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	docs, err := a.store.Query(c.Request.Context(), collectionNotifications, docstore.Query{
		Filters: []docstore.Filter{docstore.Where("uid", docstore.OpEqual, user.ID)},
		OrderBy: []docstore.Order{{Field: "created_at", Direction: docstore.Descending}},
	})
	if err != nil {
		a.logger.Error("list notifications", zap.String("uid", user.ID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to load notifications")
		return
	}

	notifications := make([]gin.H, 0, len(docs))
	for _, doc := range docs {
		notifications = append(notifications, documentJSON(doc))
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// acknowledgeNotification answers missing and foreign notifications alike.
func (a *App) acknowledgeNotification(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	notificationID := strings.TrimSpace(c.Param("notification_id"))
	doc, err := a.store.Get(ctx, collectionNotifications, notificationID)
	if errors.Is(err, docstore.ErrNotFound) || (err == nil && doc.String("uid") != user.ID) {
		c.JSON(http.StatusOK, gin.H{"message": "Notification not found"})
		return
	}
	if err == nil {
		err = a.store.Update(ctx, collectionNotifications, notificationID, map[string]any{"acknowledged": true})
	}
	if err != nil {
		a.logger.Error("acknowledge notification", zap.String("uid", user.ID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to acknowledge notification")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification acknowledged"})
}
