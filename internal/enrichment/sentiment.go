package enrichment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AzureLanguage runs sentiment analysis and key-phrase extraction with Azure AI
// Language. Both calls must succeed; otherwise the neutral fallback is returned.
type AzureLanguage struct {
	client   azureClient
	language string
	logger   *zap.Logger
	metrics  *Metrics
}

func NewAzureLanguage(opts AzureOptions) *AzureLanguage {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AzureLanguage{
		client:   newAzureClient(opts.Endpoint, opts.Key, opts.Timeout, opts.HTTPClient),
		language: "en",
		logger:   logger.Named("language"),
		metrics:  opts.Metrics,
	}
}

type analyzeTextResponse struct {
	Kind    string `json:"kind"`
	Results struct {
		Documents []struct {
			ID               string           `json:"id"`
			ConfidenceScores *SentimentScores `json:"confidenceScores"`
			KeyPhrases       []string         `json:"keyPhrases"`
		} `json:"documents"`
		Errors []struct {
			ID    string `json:"id"`
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		} `json:"errors"`
	} `json:"results"`
}

func (a *AzureLanguage) Analyze(ctx context.Context, text string) SentimentResult {
	var sentiment, phrases analyzeTextResponse

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.analyze(gctx, "SentimentAnalysis", text, &sentiment)
	})
	g.Go(func() error {
		return a.analyze(gctx, "KeyPhraseExtraction", text, &phrases)
	})
	err := g.Wait()
	if err == nil && sentiment.Results.Documents[0].ConfidenceScores == nil {
		err = errors.New("sentiment document has no confidenceScores")
	}
	if err != nil {
		a.logger.Warn("language analysis unavailable, using fallback", zap.Error(err))
		a.metrics.fallback("sentiment")
		return FallbackSentiment()
	}

	scores := *sentiment.Results.Documents[0].ConfidenceScores
	keyPhrases := phrases.Results.Documents[0].KeyPhrases
	if keyPhrases == nil {
		keyPhrases = []string{}
	}
	return SentimentResult{
		Sentiment:  DominantSentiment(scores),
		Scores:     scores,
		KeyPhrases: keyPhrases,
	}
}

func (a *AzureLanguage) analyze(ctx context.Context, kind, text string, out *analyzeTextResponse) error {
	payload := map[string]any{
		"kind": kind,
		"analysisInput": map[string]any{
			"documents": []map[string]string{
				{"id": "1", "language": a.language, "text": text},
			},
		},
	}
	if err := a.client.postJSON(ctx, "/language/:analyze-text", languageAPIVersion, payload, out); err != nil {
		return err
	}
	if len(out.Results.Errors) > 0 {
		first := out.Results.Errors[0]
		return fmt.Errorf("%s document error %s: %s", kind, first.Error.Code, first.Error.Message)
	}
	if len(out.Results.Documents) == 0 {
		return fmt.Errorf("%s returned no documents", kind)
	}
	return nil
}
