package enrichment

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AzureContentSafety classifies text with Azure AI Content Safety.
type AzureContentSafety struct {
	client  azureClient
	logger  *zap.Logger
	metrics *Metrics
}

type AzureOptions struct {
	Endpoint string
	Key      string
	Timeout  time.Duration
	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
	Logger     *zap.Logger
	Metrics    *Metrics
}

func NewAzureContentSafety(opts AzureOptions) *AzureContentSafety {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AzureContentSafety{
		client:  newAzureClient(opts.Endpoint, opts.Key, opts.Timeout, opts.HTTPClient),
		logger:  logger.Named("content_safety"),
		metrics: opts.Metrics,
	}
}

type contentSafetyResponse struct {
	CategoriesAnalysis []struct {
		Category string `json:"category"`
		Severity *int   `json:"severity"`
	} `json:"categoriesAnalysis"`
}

func (a *AzureContentSafety) Classify(ctx context.Context, text string) SafetyResult {
	var resp contentSafetyResponse
	err := a.client.postJSON(ctx, "/contentsafety/text:analyze", contentSafetyAPIVersion, map[string]any{
		"text": text,
	}, &resp)
	if err == nil && resp.CategoriesAnalysis == nil {
		err = errors.New("response has no categoriesAnalysis")
	}
	if err != nil {
		a.logger.Warn("content safety unavailable, using fallback", zap.Error(err))
		a.metrics.fallback("safety")
		return FallbackSafety()
	}

	maxSeverity := 0
	categories := make(map[string]int, len(resp.CategoriesAnalysis))
	for _, item := range resp.CategoriesAnalysis {
		category := strings.TrimSpace(item.Category)
		if category == "" {
			continue
		}
		severity := 0
		if item.Severity != nil {
			severity = *item.Severity
		}
		categories[category] = severity
		if severity > maxSeverity {
			maxSeverity = severity
		}
	}
	score := NormalizeSeverity(maxSeverity)
	return SafetyResult{
		RiskScore:  score,
		Flagged:    score >= FlagThreshold,
		Categories: categories,
	}
}
