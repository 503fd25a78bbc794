package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiModel calls a Gemini or Gemma model through the Generative Language
// REST endpoint models/{model}:generateContent.
type GeminiModel struct {
	name       string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// NewGeminiModel accepts names with or without the "models/" prefix. A nil
// httpClient uses http.DefaultClient; the chain bounds each call with its own
// timeout.
func NewGeminiModel(name, apiKey, baseURL string, limiter *rate.Limiter, httpClient *http.Client) *GeminiModel {
	name = strings.TrimSpace(name)
	if !strings.HasPrefix(name, "models/") {
		name = "models/" + name
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GeminiModel{
		name:       name,
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    limiter,
	}
}

func (m *GeminiModel) Name() string { return m.name }

func (m *GeminiModel) Generate(ctx context.Context, instruction, text string) (string, error) {
	if err := waitLimiter(ctx, m.limiter); err != nil {
		return "", err
	}

	// Gemma models reject system instructions and JSON mode, so the instruction
	// travels in the prompt and the output is parsed leniently.
	payload := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: instruction + "\n\nJournal:\n" + text}},
		}},
	}
	if !strings.Contains(m.name, "gemma") {
		payload.GenerationConfig = &geminiGenerationConfig{ResponseMIMEType: "application/json"}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/"+m.name+":generateContent", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return "", fmt.Errorf("gemini %s: %w", m.name, err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var decoded geminiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if reason := decoded.PromptFeedback.BlockReason; reason != "" {
		return "", fmt.Errorf("gemini blocked the prompt: %s", reason)
	}

	var b strings.Builder
	if len(decoded.Candidates) > 0 {
		for _, part := range decoded.Candidates[0].Content.Parts {
			b.WriteString(part.Text)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", errors.New("gemini response has no text")
	}
	return out, nil
}
