package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMemory(t *testing.T, docs map[string]map[string]any) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	for id, fields := range docs {
		require.NoError(t, store.Set(context.Background(), "journals", id, fields))
	}
	return store
}

func TestMemoryStoreQueryFiltersAndOrders(t *testing.T) {
	store := seedMemory(t, map[string]map[string]any{
		"a": {"uid": "u1", "created_at": "2026-01-02T00:00:00.000000000Z"},
		"b": {"uid": "u1", "created_at": "2026-01-03T00:00:00.000000000Z"},
		"c": {"uid": "u2", "created_at": "2026-01-04T00:00:00.000000000Z"},
		"d": {"uid": "u1"},
	})

	docs, err := store.Query(context.Background(), "journals", Query{
		Filters: []Filter{Where("uid", OpEqual, "u1")},
		OrderBy: []Order{{Field: "created_at", Direction: Descending}},
	})
	require.NoError(t, err)
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"b", "a", "d"}, ids)
}

func TestMemoryStoreRangeFilterSkipsMissingAndMismatchedTypes(t *testing.T) {
	store := seedMemory(t, map[string]map[string]any{
		"old":    {"uid": "u1", "created_at": "2025-12-01T00:00:00.000000000Z"},
		"new":    {"uid": "u1", "created_at": "2026-01-10T00:00:00.000000000Z"},
		"broken": {"uid": "u1", "created_at": 42},
		"none":   {"uid": "u1"},
	})

	docs, err := store.Query(context.Background(), "journals", Query{
		Filters: []Filter{
			Where("uid", OpEqual, "u1"),
			Where("created_at", OpGreaterOrEqual, Timestamp(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))),
		},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "new", docs[0].ID)
}

func TestMemoryStoreQueryLimitAndUnsupportedOperator(t *testing.T) {
	store := seedMemory(t, map[string]map[string]any{
		"a": {"n": 1}, "b": {"n": 2}, "c": {"n": 3},
	})
	docs, err := store.Query(context.Background(), "journals", Query{
		OrderBy: []Order{{Field: "n", Direction: Descending}},
		Limit:   2,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "c", docs[0].ID)

	_, err = store.Query(context.Background(), "journals", Query{Filters: []Filter{{Field: "n", Op: "!="}}})
	require.Error(t, err)
}

func TestMemoryStoreGetReturnsIsolatedCopy(t *testing.T) {
	store := seedMemory(t, map[string]map[string]any{"a": {"themes": []string{"x"}}})

	doc, err := store.Get(context.Background(), "journals", "a")
	require.NoError(t, err)
	doc.Fields["themes"] = "mutated"

	again, err := store.Get(context.Background(), "journals", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, again.Strings("themes"))

	_, err = store.Get(context.Background(), "journals", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreUpdateAndIncrement(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	id, err := store.Add(ctx, "community_stories", map[string]any{"content": "hi", "likes": 0})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, store.Increment(ctx, "community_stories", id, "likes", 1))
	require.NoError(t, store.Increment(ctx, "community_stories", id, "likes", 1))
	require.NoError(t, store.Increment(ctx, "community_stories", id, "saves", 1))
	require.NoError(t, store.Update(ctx, "community_stories", id, map[string]any{"content": "edited"}))

	doc, err := store.Get(ctx, "community_stories", id)
	require.NoError(t, err)
	assert.Equal(t, 2.0, doc.Float("likes"))
	assert.Equal(t, 1.0, doc.Float("saves"))
	assert.Equal(t, "edited", doc.String("content"))

	assert.ErrorIs(t, store.Update(ctx, "community_stories", "missing", map[string]any{"a": 1}), ErrNotFound)
	assert.ErrorIs(t, store.Increment(ctx, "community_stories", "missing", "likes", 1), ErrNotFound)
}

func TestTimestampRoundTripAndOrdering(t *testing.T) {
	early := time.Date(2026, 3, 1, 9, 0, 0, 5, time.UTC)
	late := early.Add(time.Second)
	assert.Less(t, Timestamp(early), Timestamp(late))

	parsed, ok := ParseTimestamp(Timestamp(early))
	require.True(t, ok)
	assert.True(t, parsed.Equal(early))

	for _, raw := range []any{"2026-03-01T09:00:00Z", "2026-03-01T09:00:00.123456", "2026-03-01", early} {
		_, ok := ParseTimestamp(raw)
		assert.True(t, ok, "%v", raw)
	}
	for _, raw := range []any{nil, "", "yesterday", 12, time.Time{}} {
		_, ok := ParseTimestamp(raw)
		assert.False(t, ok, "%v", raw)
	}
}
