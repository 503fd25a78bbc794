package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anchor/backend/internal/journal"
)

func (a *App) getDashboardOverview(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	entries, err := a.journals.ListEntries(c.Request.Context(), user.ID)
	if err != nil {
		a.logger.Error("load dashboard entries", zap.String("uid", user.ID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}
	c.JSON(http.StatusOK, journal.Overview(entries))
}

// getWrapped serves the 30-day digest. Digests are cached per owner until the
// TTL expires or the owner writes a new entry; insufficient-data answers are not
// cached. A digest whose build overlapped a new entry is served but not cached.
func (a *App) getWrapped(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if cached, found := a.digests.get(user.ID); found {
		c.JSON(http.StatusOK, cached)
		return
	}

	generation := a.digests.generation(user.ID)
	ctx := c.Request.Context()
	now := a.now()
	entries, err := a.journals.EntriesSince(ctx, user.ID, now.Add(-journal.WrappedWindow))
	if err != nil {
		a.logger.Error("load wrapped entries", zap.String("uid", user.ID), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to build wrapped digest")
		return
	}

	result := journal.Wrapped(entries, now, journal.WrappedWindow)
	if result.Insufficient != nil {
		c.JSON(http.StatusOK, result.Insufficient)
		return
	}

	digest := *result.Digest
	digest.AttachSummary(ctx, a.reflector)
	a.digests.store(user.ID, generation, digest)
	c.JSON(http.StatusOK, digest)
}

func (a *App) getWrappedDemo(c *gin.Context) {
	c.JSON(http.StatusOK, journal.WrappedDemo())
}
