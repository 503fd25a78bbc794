package journal

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"anchor/backend/internal/enrichment"
)

const (
	WrappedWindow     = 30 * 24 * time.Hour
	WrappedMinEntries = 3
	WrappedPeriod     = "Last 30 Days"

	overviewTopN = 5
	wrappedTopN  = 3

	insufficientDataMessage = "Not enough check-ins yet for your Anchor Wrapped."
	defaultSummaryTitle     = "Your month"
	dateLayout              = "2006-01-02"
)

// MoodScore maps the positive-negative differential from [-1,1] onto [0,100],
// rounded to two decimals.
func MoodScore(scores enrichment.SentimentScores) float64 {
	return round2((scores.Positive - scores.Negative + 1) * 50)
}

func MoodLabel(score int) string {
	switch {
	case score <= 30:
		return "Struggling"
	case score <= 50:
		return "Heavy"
	case score <= 70:
		return "Steady"
	case score <= 85:
		return "Positive"
	default:
		return "Thriving"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

type MoodPoint struct {
	Date  string  `json:"date"`
	Score float64 `json:"score"`
}

type OverviewResult struct {
	TotalJournals    int         `json:"total_journals"`
	LastJournalAt    *time.Time  `json:"last_journal_at"`
	AverageSentiment *float64    `json:"average_sentiment"`
	MoodTrend        []MoodPoint `json:"mood_trend"`
	RiskAlert        bool        `json:"risk_alert"`
	TopKeywords      []string    `json:"top_keywords"`
	TopThemes        []string    `json:"top_themes"`
}

// Overview summarizes the owner's full history. Entries are expected oldest first.
func Overview(entries []Entry) OverviewResult {
	result := OverviewResult{
		TotalJournals: len(entries),
		MoodTrend:     []MoodPoint{},
		TopKeywords:   []string{},
		TopThemes:     []string{},
	}
	if len(entries) == 0 {
		return result
	}

	keywords := newCounter()
	themes := newCounter()
	sum := 0.0
	for _, entry := range entries {
		score := entry.MoodScore()
		sum += score
		point := MoodPoint{Score: score}
		if entry.HasTimestamp() {
			point.Date = entry.CreatedAt.Format(time.RFC3339)
		}
		result.MoodTrend = append(result.MoodTrend, point)
		if entry.Flagged {
			result.RiskAlert = true
		}
		keywords.addAll(entry.KeyPhrases)
		themes.addAll(entry.Themes)
	}

	average := round2(sum / float64(len(entries)))
	result.AverageSentiment = &average
	if last := entries[len(entries)-1]; last.HasTimestamp() {
		lastAt := last.CreatedAt
		result.LastJournalAt = &lastAt
	}
	result.TopKeywords = keywords.top(overviewTopN)
	result.TopThemes = themes.top(overviewTopN)
	return result
}

type DailyMood struct {
	Date  string `json:"date"`
	Score int    `json:"score"`
}

type WrappedStats struct {
	TotalJournals int `json:"total_journals"`
	ActiveDays    int `json:"active_days"`
}

type WrappedMood struct {
	AverageScore int         `json:"average_score"`
	Label        string      `json:"label"`
	Trend        []DailyMood `json:"trend"`
}

type WrappedEmotions struct {
	TopThemes []string `json:"top_themes"`
}

type WrappedSafety struct {
	HighRiskEntries int     `json:"high_risk_entries"`
	MaxRiskScore    float64 `json:"max_risk_score"`
}

type WrappedHighlights struct {
	MostActiveDay string `json:"most_active_day"`
	LongestStreak int    `json:"longest_streak"`
}

type WrappedSummary struct {
	Title     string `json:"title"`
	Narrative string `json:"narrative"`
}

type WrappedDigest struct {
	Demo       bool              `json:"demo,omitempty"`
	Period     string            `json:"period"`
	Stats      WrappedStats      `json:"stats"`
	Mood       WrappedMood       `json:"mood"`
	Emotions   WrappedEmotions   `json:"emotions"`
	Safety     WrappedSafety     `json:"safety"`
	Highlights WrappedHighlights `json:"highlights"`
	AISummary  *WrappedSummary   `json:"ai_summary,omitempty"`
}

// InsufficientData is returned instead of a digest when the window has too few entries.
type InsufficientData struct {
	Message  string `json:"message"`
	Required int    `json:"required"`
	Current  int    `json:"current"`
}

type WrappedResult struct {
	Digest       *WrappedDigest
	Insufficient *InsufficientData
}

// Wrapped builds the digest for entries created within window before now. Days
// are UTC calendar dates.
func Wrapped(entries []Entry, now time.Time, window time.Duration) WrappedResult {
	if window <= 0 {
		window = WrappedWindow
	}
	start := now.Add(-window)
	inWindow := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.HasTimestamp() && !entry.CreatedAt.Before(start) {
			inWindow = append(inWindow, entry)
		}
	}
	if len(inWindow) < WrappedMinEntries {
		return WrappedResult{Insufficient: &InsufficientData{
			Message:  insufficientDataMessage,
			Required: WrappedMinEntries,
			Current:  len(inWindow),
		}}
	}

	daily := make(map[string][]float64)
	weekdays := make(map[time.Weekday]int)
	themes := newCounter()
	safety := WrappedSafety{}
	maxRisk := 0.0
	for _, entry := range inWindow {
		created := entry.CreatedAt.UTC()
		day := created.Format(dateLayout)
		daily[day] = append(daily[day], entry.MoodScore())
		weekdays[created.Weekday()]++
		themes.addAll(entry.Themes)
		if entry.RiskScore >= enrichment.FlagThreshold {
			safety.HighRiskEntries++
		}
		if entry.RiskScore > maxRisk {
			maxRisk = entry.RiskScore
		}
	}
	safety.MaxRiskScore = round2(maxRisk)

	days := make([]string, 0, len(daily))
	for day := range daily {
		days = append(days, day)
	}
	sort.Strings(days)

	trend := make([]DailyMood, 0, len(days))
	dayMeans := make([]float64, 0, len(days))
	for _, day := range days {
		score := int(mean(daily[day]))
		trend = append(trend, DailyMood{Date: day, Score: score})
		dayMeans = append(dayMeans, float64(score))
	}
	average := int(mean(dayMeans))

	return WrappedResult{Digest: &WrappedDigest{
		Period: WrappedPeriod,
		Stats: WrappedStats{
			TotalJournals: len(inWindow),
			ActiveDays:    len(days),
		},
		Mood: WrappedMood{
			AverageScore: average,
			Label:        MoodLabel(average),
			Trend:        trend,
		},
		Emotions: WrappedEmotions{TopThemes: themes.top(wrappedTopN)},
		Safety:   safety,
		Highlights: WrappedHighlights{
			MostActiveDay: mostActiveWeekday(weekdays),
			LongestStreak: LongestStreak(days),
		},
	}}
}

// LongestStreak counts the longest run of consecutive calendar dates in sorted,
// distinct YYYY-MM-DD dates.
func LongestStreak(days []string) int {
	if len(days) == 0 {
		return 0
	}
	longest, current := 1, 1
	var previous time.Time
	for i, raw := range days {
		day, err := time.Parse(dateLayout, raw)
		if err != nil {
			continue
		}
		if i > 0 && day.Sub(previous) == 24*time.Hour {
			current++
		} else {
			current = 1
		}
		if current > longest {
			longest = current
		}
		previous = day
	}
	return longest
}

var weekdayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

func mostActiveWeekday(counts map[time.Weekday]int) string {
	best := weekdayOrder[0]
	bestCount := -1
	for _, day := range weekdayOrder {
		if counts[day] > bestCount {
			best, bestCount = day, counts[day]
		}
	}
	return best.String()
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// AttachSummary asks the reflector for a narrative about the digest. The first
// theme of the reflection becomes the title.
func (d *WrappedDigest) AttachSummary(ctx context.Context, reflector enrichment.Reflector) {
	if d == nil || reflector == nil {
		return
	}
	reflection := reflector.Reflect(ctx, d.summaryPrompt())
	title := defaultSummaryTitle
	if len(reflection.Themes) > 0 && strings.TrimSpace(reflection.Themes[0]) != "" {
		title = strings.TrimSpace(reflection.Themes[0])
	}
	d.AISummary = &WrappedSummary{Title: title, Narrative: reflection.Reflection}
}

func (d *WrappedDigest) summaryPrompt() string {
	themes := "none yet"
	if len(d.Emotions.TopThemes) > 0 {
		themes = strings.Join(d.Emotions.TopThemes, ", ")
	}
	return fmt.Sprintf(`Create a warm, encouraging monthly reflection.

Context:
- Journals written: %d
- Active days: %d
- Average mood score: %d (%s)
- Top emotional themes: %s
- High intensity moments: %d
- Most active day: %s, longest streak: %d days

Rules:
- No diagnosis
- No clinical language
- Gentle, human tone
- 3-4 sentences max`,
		d.Stats.TotalJournals,
		d.Stats.ActiveDays,
		d.Mood.AverageScore,
		d.Mood.Label,
		themes,
		d.Safety.HighRiskEntries,
		d.Highlights.MostActiveDay,
		d.Highlights.LongestStreak,
	)
}

// WrappedDemo is a fixed digest for previews; it reads no user data.
func WrappedDemo() WrappedDigest {
	return WrappedDigest{
		Demo:   true,
		Period: WrappedPeriod,
		Stats:  WrappedStats{TotalJournals: 18, ActiveDays: 11},
		Mood: WrappedMood{
			AverageScore: 68,
			Label:        "Steady",
			Trend: []DailyMood{
				{Date: "2025-12-01", Score: 42},
				{Date: "2025-12-04", Score: 48},
				{Date: "2025-12-07", Score: 55},
				{Date: "2025-12-10", Score: 60},
				{Date: "2025-12-14", Score: 64},
				{Date: "2025-12-18", Score: 70},
				{Date: "2025-12-22", Score: 74},
				{Date: "2025-12-26", Score: 80},
			},
		},
		Emotions:   WrappedEmotions{TopThemes: []string{"resilience", "stress", "hope"}},
		Safety:     WrappedSafety{HighRiskEntries: 2, MaxRiskScore: 0.62},
		Highlights: WrappedHighlights{MostActiveDay: "Wednesday", LongestStreak: 4},
		AISummary: &WrappedSummary{
			Title: "A Month of Quiet Strength",
			Narrative: "This month shows moments of emotional weight, but also steady progress. " +
				"You returned to journaling even on difficult days, which reflects resilience. " +
				"Over time, your reflections became calmer and more hopeful, a sign of growth " +
				"even when things were not easy.",
		},
	}
}

// counter tallies strings, remembering first-seen order for ties.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) addAll(values []string) {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, seen := c.counts[v]; !seen {
			c.order = append(c.order, v)
		}
		c.counts[v]++
	}
}

func (c *counter) top(n int) []string {
	ranked := append([]string(nil), c.order...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return c.counts[ranked[i]] > c.counts[ranked[j]]
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	if ranked == nil {
		return []string{}
	}
	return ranked
}
