package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anchor/backend/internal/docstore"
	"anchor/backend/internal/enrichment"
)

const (
	moderationAutoApproved = "auto_approved"
	communityListLimit     = 50
)

type submitStoryRequest struct {
	Story string   `json:"story" binding:"required"`
	Tags  []string `json:"tags"`
}

func (a *App) listCommunityStories(c *gin.Context) {
	docs, err := a.store.Query(c.Request.Context(), collectionCommunityStories, docstore.Query{
		Filters: []docstore.Filter{docstore.Where("moderation_status", docstore.OpEqual, moderationAutoApproved)},
		OrderBy: []docstore.Order{{Field: "created_at", Direction: docstore.Descending}},
		Limit:   communityListLimit,
	})
	if err != nil {
		a.logger.Error("list community stories", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to load stories")
		return
	}

	stories := make([]gin.H, 0, len(docs))
	for _, doc := range docs {
		stories = append(stories, documentJSON(doc))
	}
	c.JSON(http.StatusOK, gin.H{"stories": stories})
}

// submitCommunityStory moderates the story before anything is stored; flagged
// stories are rejected outright.
func (a *App) submitCommunityStory(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}

	var payload submitStoryRequest
	if !mustJSON(c, &payload) {
		return
	}
	story := strings.TrimSpace(payload.Story)
	if story == "" {
		writeError(c, http.StatusBadRequest, "story is required")
		return
	}
	tags := payload.Tags
	if tags == nil {
		tags = []string{}
	}

	ctx := c.Request.Context()
	safety := enrichment.FallbackSafety()
	if a.safety != nil {
		safety = a.safety.Classify(ctx, story)
	}
	if safety.Flagged {
		writeError(c, http.StatusForbidden, "This story cannot be posted due to safety concerns.")
		return
	}
	categories := safety.Categories
	if categories == nil {
		categories = map[string]int{}
	}

	storyID, err := a.store.Add(ctx, collectionCommunityStories, map[string]any{
		"story":             story,
		"tags":              tags,
		"created_at":        docstore.Timestamp(a.now()),
		"likes":             0,
		"saved":             0,
		"risk_score":        safety.RiskScore,
		"categories":        categories,
		"moderation_status": moderationAutoApproved,
	})
	if err != nil {
		a.logger.Error("save community story", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to post story")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Story posted successfully",
		"story_id":   storyID,
		"risk_score": safety.RiskScore,
	})
}

func (a *App) likeCommunityStory(c *gin.Context) {
	a.bumpStoryCounter(c, "likes", "Story liked")
}

func (a *App) saveCommunityStory(c *gin.Context) {
	a.bumpStoryCounter(c, "saved", "Story saved")
}

func (a *App) bumpStoryCounter(c *gin.Context, field, message string) {
	if _, ok := requireUser(c); !ok {
		return
	}

	storyID := strings.TrimSpace(c.Param("story_id"))
	err := a.store.Increment(c.Request.Context(), collectionCommunityStories, storyID, field, 1)
	if errors.Is(err, docstore.ErrNotFound) {
		writeError(c, http.StatusNotFound, "Story not found")
		return
	}
	if err != nil {
		a.logger.Error("update community story", zap.String("story_id", storyID), zap.String("field", field), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Failed to update story")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  message,
		"story_id": storyID,
	})
}
