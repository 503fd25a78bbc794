package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// OpenAIModel calls an OpenAI model through the Responses API with a strict JSON
// schema for the reflection payload.
type OpenAIModel struct {
	name            string
	client          openai.Client
	limiter         *rate.Limiter
	maxOutputTokens int64
}

func NewOpenAIModel(name, apiKey, baseURL string, limiter *rate.Limiter, opts ...openaioption.RequestOption) *OpenAIModel {
	clientOpts := []openaioption.RequestOption{
		openaioption.WithAPIKey(apiKey),
		openaioption.WithMaxRetries(0),
	}
	if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
		clientOpts = append(clientOpts, openaioption.WithBaseURL(strings.TrimRight(trimmed, "/")+"/"))
	}
	clientOpts = append(clientOpts, opts...)
	return &OpenAIModel{
		name:            strings.TrimSpace(name),
		client:          openai.NewClient(clientOpts...),
		limiter:         limiter,
		maxOutputTokens: 1200,
	}
}

func (m *OpenAIModel) Name() string { return m.name }

func (m *OpenAIModel) Generate(ctx context.Context, instruction, text string) (string, error) {
	if err := waitLimiter(ctx, m.limiter); err != nil {
		return "", err
	}
	params := responses.ResponseNewParams{
		Model:           m.name,
		MaxOutputTokens: openai.Int(m.maxOutputTokens),
		Instructions:    openai.String(instruction),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(text, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        "JournalReflection",
					Schema:      reflectionSchema,
					Strict:      openai.Bool(true),
					Description: openai.String("Narrative reflection JSON"),
					Type:        "json_schema",
				},
			},
		},
	}
	resp, err := m.client.Responses.New(ctx, params)
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(resp.OutputText())
	if out == "" {
		return "", errors.New("openai response has no output text")
	}
	return out, nil
}

// MockModel returns a deterministic reflection for local development.
type MockModel struct {
	Model string
}

func (m MockModel) Name() string {
	if strings.TrimSpace(m.Model) == "" {
		return "mock-reflection"
	}
	return m.Model
}

func (m MockModel) Generate(_ context.Context, _ string, text string) (string, error) {
	lowered := strings.ToLower(text)
	themes := make([]string, 0, 3)
	reflection := "Something in this moment asked for your attention, and you stayed with it long enough to write it down."
	question := "What helped you notice this moment when it happened?"

	if strings.Contains(lowered, "tired") || strings.Contains(lowered, "exhausted") || strings.Contains(lowered, "sleep") {
		themes = append(themes, "exhaustion")
		reflection = "The tiredness seems to have followed you through the day, and still you made room to put it into words."
	}
	if strings.Contains(lowered, "work") || strings.Contains(lowered, "deadline") || strings.Contains(lowered, "exam") {
		themes = append(themes, "pressure")
		question = "When the pressure eased even a little, what did you do differently?"
	}
	if strings.Contains(lowered, "friend") || strings.Contains(lowered, "family") || strings.Contains(lowered, "mom") {
		themes = append(themes, "connection")
	}
	if len(themes) == 0 {
		themes = append(themes, "reflection")
	}

	quoted := func(s string) string { return fmt.Sprintf("%q", s) }
	quotedThemes := make([]string, 0, len(themes))
	for _, theme := range themes {
		quotedThemes = append(quotedThemes, quoted(theme))
	}
	return fmt.Sprintf(
		`{"reflection": %s, "themes": [%s], "follow_up_question": %s}`,
		quoted(reflection),
		strings.Join(quotedThemes, ", "),
		quoted(question),
	), nil
}

type ModelCredentials struct {
	GeminiAPIKey  string
	GeminiBaseURL string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// BuildModels turns "provider:model" entries into candidates, in order. Entries whose
// provider has no credentials are skipped with a warning. RatePerMinute <= 0
// disables throttling.
func BuildModels(_ context.Context, specs []string, creds ModelCredentials, ratePerMinute int, logger *zap.Logger) ([]Model, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	models := make([]Model, 0, len(specs))
	for _, spec := range specs {
		provider, name, ok := strings.Cut(strings.TrimSpace(spec), ":")
		provider = strings.ToLower(strings.TrimSpace(provider))
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid reflection model %q: want provider:model", spec)
		}

		switch provider {
		case ProviderGemini:
			if strings.TrimSpace(creds.GeminiAPIKey) == "" {
				logger.Warn("skipping gemini model, GEMINI_API_KEY is not configured", zap.String("model", name))
				continue
			}
			models = append(models, NewGeminiModel(name, creds.GeminiAPIKey, creds.GeminiBaseURL, newLimiter(ratePerMinute), nil))
		case ProviderOpenAI:
			if strings.TrimSpace(creds.OpenAIAPIKey) == "" {
				logger.Warn("skipping openai model, OPENAI_API_KEY is not configured", zap.String("model", name))
				continue
			}
			models = append(models, NewOpenAIModel(name, creds.OpenAIAPIKey, creds.OpenAIBaseURL, newLimiter(ratePerMinute)))
		case ProviderMock:
			models = append(models, MockModel{Model: name})
		default:
			return nil, fmt.Errorf("unknown reflection provider %q", provider)
		}
	}
	return models, nil
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	burst := perMinute / 5
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}

func waitLimiter(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}
