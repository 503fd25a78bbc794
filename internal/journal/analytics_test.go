package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anchor/backend/internal/enrichment"
)

func fullRecord() enrichment.Record {
	return enrichment.Record{
		Sentiment:        enrichment.SentimentNeutral,
		SentimentScores:  enrichment.SentimentScores{Positive: 0.33, Neutral: 0.34, Negative: 0.33},
		KeyPhrases:       []string{"walk"},
		RiskScore:        0.1,
		Categories:       map[string]int{},
		Reflection:       "r",
		Themes:           []string{"reflection"},
		FollowUpQuestion: "q?",
	}
}

func scored(id string, created time.Time, positive, negative float64) Entry {
	return Entry{
		ID:              id,
		Session:         ModernSession{ID: id},
		CreatedAt:       created,
		SentimentScores: enrichment.SentimentScores{Positive: positive, Neutral: 1 - positive - negative, Negative: negative},
	}
}

func TestMoodScore(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 85.0, MoodScore(enrichment.SentimentScores{Positive: 0.8, Negative: 0.1}))
	assert.Equal(t, 50.0, MoodScore(enrichment.SentimentScores{Positive: 0.4, Negative: 0.4}))
	assert.Equal(t, 50.0, MoodScore(enrichment.SentimentScores{}))
	assert.Equal(t, 0.0, MoodScore(enrichment.SentimentScores{Negative: 1}))
	assert.Equal(t, 100.0, MoodScore(enrichment.SentimentScores{Positive: 1}))
	assert.Equal(t, 66.67, MoodScore(enrichment.SentimentScores{Positive: 0.33334, Negative: 0}))
}

func TestMoodLabelBoundaries(t *testing.T) {
	t.Parallel()

	cases := map[int]string{
		0: "Struggling", 30: "Struggling", 31: "Heavy", 50: "Heavy", 51: "Steady",
		70: "Steady", 71: "Positive", 85: "Positive", 86: "Thriving", 100: "Thriving",
	}
	for score, want := range cases {
		assert.Equal(t, want, MoodLabel(score), "score %d", score)
	}
}

func TestOverviewEmpty(t *testing.T) {
	t.Parallel()

	got := Overview(nil)
	assert.Zero(t, got.TotalJournals)
	assert.Nil(t, got.LastJournalAt)
	assert.Nil(t, got.AverageSentiment)
	assert.Empty(t, got.MoodTrend)
	assert.NotNil(t, got.TopThemes)
	assert.False(t, got.RiskAlert)
}

func TestOverview(t *testing.T) {
	t.Parallel()

	first := scored("a", at(0), 0.8, 0.1)
	first.KeyPhrases = []string{"school", "friends"}
	first.Themes = []string{"hope", "pressure"}
	second := scored("b", at(1), 0.4, 0.4)
	second.KeyPhrases = []string{"friends", "sleep"}
	second.Themes = []string{"pressure"}
	second.Flagged = true
	third := scored("c", at(2), 0.1, 0.8)
	third.KeyPhrases = []string{"sleep", "exam", "rain", "walk", "tea"}

	got := Overview([]Entry{first, second, third})
	assert.Equal(t, 3, got.TotalJournals)
	require.NotNil(t, got.LastJournalAt)
	assert.True(t, got.LastJournalAt.Equal(at(2)))
	require.NotNil(t, got.AverageSentiment)
	assert.Equal(t, 50.0, *got.AverageSentiment)
	assert.Equal(t, []float64{85, 50, 15}, []float64{got.MoodTrend[0].Score, got.MoodTrend[1].Score, got.MoodTrend[2].Score})
	assert.True(t, got.RiskAlert)
	assert.Equal(t, []string{"friends", "sleep", "school", "exam", "rain"}, got.TopKeywords)
	assert.Equal(t, []string{"pressure", "hope"}, got.TopThemes)
}

func TestWrappedInsufficientData(t *testing.T) {
	t.Parallel()

	now := at(24 * 40)
	entries := []Entry{
		scored("old", now.Add(-31*24*time.Hour), 0.5, 0.1),
		scored("a", now.Add(-2*time.Hour), 0.5, 0.1),
		scored("b", now.Add(-1*time.Hour), 0.5, 0.1),
		{ID: "untimed"},
	}
	got := Wrapped(entries, now, WrappedWindow)
	assert.Nil(t, got.Digest)
	require.NotNil(t, got.Insufficient)
	assert.Equal(t, 3, got.Insufficient.Required)
	assert.Equal(t, 2, got.Insufficient.Current)
	assert.Equal(t, "Not enough check-ins yet for your Anchor Wrapped.", got.Insufficient.Message)
}

func TestWrappedDigest(t *testing.T) {
	t.Parallel()

	// 2026-03-10 is a Tuesday.
	day1 := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	now := day2.Add(12 * time.Hour)

	a := scored("a", day1, 0.8, 0.1)
	a.Themes = []string{"hope"}
	b := scored("b", day1.Add(2*time.Hour), 0.4, 0.4)
	b.Themes = []string{"pressure", "hope"}
	b.RiskScore = 0.75
	c := scored("c", day2, 0.1, 0.8)
	c.Themes = []string{"pressure", "rest", "care"}
	c.RiskScore = 0.456

	got := Wrapped([]Entry{a, b, c}, now, 0)
	require.Nil(t, got.Insufficient)
	d := got.Digest
	require.NotNil(t, d)

	assert.Equal(t, "Last 30 Days", d.Period)
	assert.Equal(t, WrappedStats{TotalJournals: 3, ActiveDays: 2}, d.Stats)
	assert.Equal(t, []DailyMood{{Date: "2026-03-10", Score: 67}, {Date: "2026-03-11", Score: 15}}, d.Mood.Trend)
	assert.Equal(t, 41, d.Mood.AverageScore)
	assert.Equal(t, "Heavy", d.Mood.Label)
	assert.Equal(t, []string{"hope", "pressure", "rest"}, d.Emotions.TopThemes)
	assert.Equal(t, WrappedSafety{HighRiskEntries: 1, MaxRiskScore: 0.75}, d.Safety)
	assert.Equal(t, 2, d.Highlights.LongestStreak)
	assert.Equal(t, "Tuesday", d.Highlights.MostActiveDay)
	assert.Nil(t, d.AISummary)
}

func TestMostActiveWeekdayTieBreak(t *testing.T) {
	t.Parallel()

	counts := map[time.Weekday]int{time.Sunday: 2, time.Wednesday: 2, time.Friday: 1}
	assert.Equal(t, "Wednesday", mostActiveWeekday(counts))
	assert.Equal(t, "Monday", mostActiveWeekday(map[time.Weekday]int{}))
}

func TestLongestStreak(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, LongestStreak(nil))
	assert.Equal(t, 1, LongestStreak([]string{"2026-01-01"}))
	assert.Equal(t, 1, LongestStreak([]string{"2026-01-01", "2026-01-03"}))
	assert.Equal(t, 3, LongestStreak([]string{"2026-01-01", "2026-01-02", "2026-01-04", "2026-01-05", "2026-01-06"}))
	assert.Equal(t, 2, LongestStreak([]string{"2025-12-31", "2026-01-01"}))
}

type stubReflector struct {
	reflection enrichment.Reflection
	prompt     string
}

func (s *stubReflector) Reflect(_ context.Context, text string) enrichment.Reflection {
	s.prompt = text
	return s.reflection
}

func TestAttachSummary(t *testing.T) {
	t.Parallel()

	digest := WrappedDemo()
	digest.AISummary = nil
	reflector := &stubReflector{reflection: enrichment.Reflection{Reflection: "A steady month.", Themes: []string{"steadiness"}}}
	digest.AttachSummary(context.Background(), reflector)

	require.NotNil(t, digest.AISummary)
	assert.Equal(t, WrappedSummary{Title: "steadiness", Narrative: "A steady month."}, *digest.AISummary)
	assert.Contains(t, reflector.prompt, "Journals written: 18")
	assert.Contains(t, reflector.prompt, "resilience, stress, hope")

	reflector.reflection = enrichment.Reflection{Reflection: "No themes."}
	digest.AttachSummary(context.Background(), reflector)
	assert.Equal(t, "Your month", digest.AISummary.Title)
}
