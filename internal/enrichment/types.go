// Package enrichment turns raw journal text into an enriched record by combining a
// content-safety classifier, a sentiment/key-phrase analyzer and a reflection
// generator that fails over across generative models.
//
// None of the components return errors to their callers. Upstream failures
// degrade to fixed fallback values so a journal entry can always be saved.
package enrichment

import "context"

const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"

	// FlagThreshold is the normalized risk score at which content is flagged.
	FlagThreshold = 0.5
)

type SafetyResult struct {
	RiskScore  float64        `json:"risk_score"`
	Flagged    bool           `json:"flagged"`
	Categories map[string]int `json:"categories"`
}

type SentimentScores struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

type SentimentResult struct {
	Sentiment  string          `json:"sentiment"`
	Scores     SentimentScores `json:"sentiment_scores"`
	KeyPhrases []string        `json:"key_phrases"`
}

type Reflection struct {
	Reflection       string   `json:"reflection"`
	Themes           []string `json:"themes"`
	FollowUpQuestion string   `json:"follow_up_question"`
}

// Record is the merged output of one enrichment run.
type Record struct {
	Sentiment        string
	SentimentScores  SentimentScores
	KeyPhrases       []string
	RiskScore        float64
	Flagged          bool
	Categories       map[string]int
	Reflection       string
	Themes           []string
	FollowUpQuestion string
}

type SafetyClassifier interface {
	Classify(ctx context.Context, text string) SafetyResult
}

type SentimentAnalyzer interface {
	Analyze(ctx context.Context, text string) SentimentResult
}

type Reflector interface {
	Reflect(ctx context.Context, text string) Reflection
}

func FallbackSafety() SafetyResult {
	return SafetyResult{RiskScore: 0.1, Flagged: false, Categories: map[string]int{}}
}

func FallbackSentiment() SentimentResult {
	return SentimentResult{
		Sentiment:  SentimentNeutral,
		Scores:     SentimentScores{Positive: 0.33, Neutral: 0.34, Negative: 0.33},
		KeyPhrases: []string{},
	}
}

const (
	fallbackReflectionText = "You took time to reflect on your experience, which shows self-awareness and emotional strength."
	fallbackTheme          = "reflection"
	fallbackFollowUp       = "What is one moment from today you would like to understand a little better?"
)

func FallbackReflection() Reflection {
	return Reflection{
		Reflection:       fallbackReflectionText,
		Themes:           []string{fallbackTheme},
		FollowUpQuestion: fallbackFollowUp,
	}
}

// DominantSentiment returns the label with the highest score. Exact ties resolve
// in the order positive, neutral, negative.
func DominantSentiment(scores SentimentScores) string {
	label := SentimentPositive
	best := scores.Positive
	if scores.Neutral > best {
		label, best = SentimentNeutral, scores.Neutral
	}
	if scores.Negative > best {
		label = SentimentNegative
	}
	return label
}

// NormalizeSeverity maps the provider's 0-4 severity scale onto [0,1].
func NormalizeSeverity(severity int) float64 {
	if severity <= 0 {
		return 0
	}
	score := float64(severity) / 4
	if score > 1 {
		return 1
	}
	return score
}
