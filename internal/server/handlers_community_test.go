package server

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anchor/backend/internal/enrichment"
)

func TestSubmitStoryStoresModeratedStory(t *testing.T) {
	env := newTestEnv(t)
	token := signToken(t, testID(), nil)

	rec := performRequest(t, env.router, http.MethodPost, "/api/v1/community/stories", token, map[string]any{
		"story": "  Six months ago I could not get out of bed. Today I went hiking.  ",
		"tags":  []string{"recovery"},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeJSONMap(t, rec)
	assert.Equal(t, "Story posted successfully", body["message"])
	storyID, _ := body["story_id"].(string)
	require.NotEmpty(t, storyID)
	assert.InDelta(t, 0.1, body["risk_score"], 1e-9)
	assert.Equal(t, []string{"Six months ago I could not get out of bed. Today I went hiking."}, env.safety.texts)

	doc, err := env.store.Get(context.Background(), collectionCommunityStories, storyID)
	require.NoError(t, err)
	assert.Equal(t, "auto_approved", doc.String("moderation_status"))
	assert.Equal(t, []string{"recovery"}, doc.Strings("tags"))
	assert.Zero(t, doc.Float("likes"))
	assert.Zero(t, doc.Float("saved"))
}

func TestSubmitStoryBlocksFlaggedContent(t *testing.T) {
	env := newTestEnv(t)
	env.safety.result = enrichment.SafetyResult{RiskScore: 0.75, Flagged: true, Categories: map[string]int{"SelfHarm": 3}}

	rec := performRequest(t, env.router, http.MethodPost, "/api/v1/community/stories", signToken(t, testID(), nil), map[string]any{
		"story": "something harmful",
	}, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "This story cannot be posted due to safety concerns.", responseDetail(t, rec))

	rec = performRequest(t, env.router, http.MethodGet, "/api/v1/community/stories", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeJSONMap(t, rec)["stories"])
}

func TestSubmitStoryRequiresStory(t *testing.T) {
	env := newTestEnv(t)
	rec := performRequest(t, env.router, http.MethodPost, "/api/v1/community/stories", signToken(t, testID(), nil), map[string]any{
		"tags": []string{"empty"},
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.safety.texts)
}

func TestListStoriesNewestFirstApprovedOnlyCapped(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 55; i++ {
		env.seedDoc(t, collectionCommunityStories, fmt.Sprintf("story-%02d", i), map[string]any{
			"story":             fmt.Sprintf("story %d", i),
			"created_at":        fmt.Sprintf("2026-03-%02dT10:00:00.000000000Z", 1+i%17),
			"moderation_status": "auto_approved",
			"likes":             0,
		})
	}
	env.seedDoc(t, collectionCommunityStories, "pending", map[string]any{
		"story":             "waiting for review",
		"created_at":        "2026-03-30T10:00:00.000000000Z",
		"moderation_status": "pending",
	})

	rec := performRequest(t, env.router, http.MethodGet, "/api/v1/community/stories", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	stories := decodeJSONMap(t, rec)["stories"].([]any)
	require.Len(t, stories, 50)
	previous := "9999"
	for _, raw := range stories {
		story := raw.(map[string]any)
		assert.NotEqual(t, "pending", story["id"])
		createdAt := story["created_at"].(string)
		assert.LessOrEqual(t, createdAt, previous)
		previous = createdAt
	}
}

func TestLikeAndSaveIncrementCounters(t *testing.T) {
	env := newTestEnv(t)
	token := signToken(t, testID(), nil)
	env.seedDoc(t, collectionCommunityStories, "story-1", map[string]any{
		"story":             "hello",
		"moderation_status": "auto_approved",
		"likes":             0,
		"saved":             0,
	})

	for i := 0; i < 2; i++ {
		rec := performRequest(t, env.router, http.MethodPost, "/api/v1/community/stories/story-1/like", token, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Story liked", decodeJSONMap(t, rec)["message"])
	}
	rec := performRequest(t, env.router, http.MethodPost, "/api/v1/community/stories/story-1/save", token, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "story-1", decodeJSONMap(t, rec)["story_id"])

	doc, err := env.store.Get(context.Background(), collectionCommunityStories, "story-1")
	require.NoError(t, err)
	assert.Equal(t, 2.0, doc.Float("likes"))
	assert.Equal(t, 1.0, doc.Float("saved"))

	rec = performRequest(t, env.router, http.MethodPost, "/api/v1/community/stories/missing/like", token, nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Story not found", responseDetail(t, rec))
}
