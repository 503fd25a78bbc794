package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anchor/backend/internal/docstore"
	"anchor/backend/internal/journal"
)

const checkInMessage = "It sounded like today was heavy. Your safety plan and grounding steps are here whenever you need them."

type createJournalRequest struct {
	Title     *string `json:"title"`
	Content   string  `json:"content"`
	SessionID *string `json:"session_id"`
}

func (a *App) createJournal(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var payload createJournalRequest
	if !mustJSON(c, &payload) {
		return
	}
	if strings.TrimSpace(payload.Content) == "" {
		writeError(c, http.StatusBadRequest, "content is required")
		return
	}

	ctx := c.Request.Context()
	record := a.enricher.Enrich(ctx, payload.Content)

	entry := journal.NewEntry(
		docstore.NewID(),
		user.ID,
		derefString(payload.SessionID),
		derefString(payload.Title),
		payload.Content,
		a.now(),
		record,
	)
	if err := a.journals.Create(ctx, entry); err != nil {
		a.logger.Error("save journal entry", zap.String("uid", user.ID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to save journal entry")
		return
	}
	a.digests.invalidate(user.ID)

	if entry.Flagged {
		if err := a.createNotification(ctx, user.ID, notificationCheckIn, checkInMessage); err != nil {
			a.logger.Warn("write check-in notification", zap.String("uid", user.ID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, entry)
}

func (a *App) listJournals(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	entries, err := a.journals.ListEntries(c.Request.Context(), user.ID)
	if err != nil {
		a.logger.Error("list journal entries", zap.String("uid", user.ID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to load journals")
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (a *App) listSessions(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	sessions, err := a.journals.ListSessions(c.Request.Context(), user.ID)
	if err != nil {
		a.logger.Error("list journal sessions", zap.String("uid", user.ID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to load sessions")
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (a *App) getSessionMessages(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	sessionID := strings.TrimSpace(c.Param("session_id"))
	entries, err := a.journals.SessionMessages(c.Request.Context(), user.ID, sessionID)
	if err != nil {
		a.logger.Error(
			"load session messages",
			zap.String("uid", user.ID),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		writeError(c, http.StatusInternalServerError, "Failed to load session")
		return
	}
	c.JSON(http.StatusOK, entries)
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
