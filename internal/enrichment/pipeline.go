package enrichment

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pipeline fans a journal entry out to the three adapters and merges their results.
type Pipeline struct {
	safety    SafetyClassifier
	sentiment SentimentAnalyzer
	reflector Reflector
	metrics   *Metrics
}

func NewPipeline(safety SafetyClassifier, sentiment SentimentAnalyzer, reflector Reflector, metrics *Metrics) *Pipeline {
	return &Pipeline{
		safety:    safety,
		sentiment: sentiment,
		reflector: reflector,
		metrics:   metrics,
	}
}

// Reflector exposes the reflection chain for callers that need a reflection
// without a full enrichment, such as digest summaries.
func (p *Pipeline) Reflector() Reflector {
	return p.reflector
}

// Enrich never fails: every adapter degrades to its own fallback.
func (p *Pipeline) Enrich(ctx context.Context, text string) Record {
	started := time.Now()
	defer p.metrics.observeEnrich(started)

	safety := FallbackSafety()
	sentiment := FallbackSentiment()
	reflection := FallbackReflection()

	var g errgroup.Group
	if p.safety != nil {
		g.Go(func() error {
			safety = p.safety.Classify(ctx, text)
			return nil
		})
	}
	if p.sentiment != nil {
		g.Go(func() error {
			sentiment = p.sentiment.Analyze(ctx, text)
			return nil
		})
	}
	if p.reflector != nil {
		g.Go(func() error {
			reflection = p.reflector.Reflect(ctx, text)
			return nil
		})
	}
	_ = g.Wait()

	return merge(safety, sentiment, reflection)
}

func merge(safety SafetyResult, sentiment SentimentResult, reflection Reflection) Record {
	categories := safety.Categories
	if categories == nil {
		categories = map[string]int{}
	}
	keyPhrases := sentiment.KeyPhrases
	if keyPhrases == nil {
		keyPhrases = []string{}
	}
	if sentiment.Sentiment == "" {
		sentiment.Sentiment = DominantSentiment(sentiment.Scores)
	}
	fallback := FallbackReflection()
	if reflection.Reflection == "" {
		reflection.Reflection = fallback.Reflection
	}
	if len(reflection.Themes) == 0 {
		reflection.Themes = fallback.Themes
	}
	if reflection.FollowUpQuestion == "" {
		reflection.FollowUpQuestion = fallback.FollowUpQuestion
	}
	risk := clampUnit(safety.RiskScore)
	return Record{
		Sentiment:        sentiment.Sentiment,
		SentimentScores:  clampScores(sentiment.Scores),
		KeyPhrases:       keyPhrases,
		RiskScore:        risk,
		Flagged:          risk >= FlagThreshold,
		Categories:       categories,
		Reflection:       reflection.Reflection,
		Themes:           reflection.Themes,
		FollowUpQuestion: reflection.FollowUpQuestion,
	}
}

func clampScores(s SentimentScores) SentimentScores {
	return SentimentScores{
		Positive: clampUnit(s.Positive),
		Neutral:  clampUnit(s.Neutral),
		Negative: clampUnit(s.Negative),
	}
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0 || v != v:
		return 0
	case v > 1:
		return 1
	}
	return v
}
