package enrichment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	errEmptyOutput = errors.New("model output is empty")
	errNotObject   = errors.New("model output is not a JSON object")
)

type reflectionPayload struct {
	Reflection       string   `json:"reflection" jsonschema:"required"`
	Themes           []string `json:"themes" jsonschema:"required"`
	FollowUpQuestion string   `json:"follow_up_question" jsonschema:"required"`
}

// parseReflection decodes raw model output into a Reflection. Any JSON object
// counts as a successful parse; missing or blank fields take their fallback values.
func parseReflection(raw string) (Reflection, error) {
	cleaned := stripCodeFence(raw)
	if cleaned == "" {
		return Reflection{}, errEmptyOutput
	}

	payload, err := decodeReflectionObject(cleaned)
	if err != nil {
		start := strings.IndexByte(cleaned, '{')
		end := strings.LastIndexByte(cleaned, '}')
		if start == -1 || end <= start {
			return Reflection{}, fmt.Errorf("no JSON object in model output (len=%d): %w", len(cleaned), err)
		}
		payload, err = decodeReflectionObject(cleaned[start : end+1])
		if err != nil {
			return Reflection{}, fmt.Errorf("unmarshal reflection: %w", err)
		}
	}

	out := Reflection{
		Reflection:       strings.TrimSpace(payload.Reflection),
		Themes:           cleanThemes(payload.Themes),
		FollowUpQuestion: strings.TrimSpace(payload.FollowUpQuestion),
	}
	if out.Reflection == "" {
		out.Reflection = fallbackReflectionText
	}
	if len(out.Themes) == 0 {
		out.Themes = []string{fallbackTheme}
	}
	if out.FollowUpQuestion == "" {
		out.FollowUpQuestion = fallbackFollowUp
	}
	return out, nil
}

// decodeReflectionObject rejects JSON that is not an object, including a bare null.
func decodeReflectionObject(raw string) (reflectionPayload, error) {
	var payload reflectionPayload
	if !strings.HasPrefix(raw, "{") {
		return payload, errNotObject
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if newline := strings.IndexByte(s, '\n'); newline >= 0 {
		lang := strings.TrimSpace(s[:newline])
		if lang == "" || !strings.ContainsAny(lang, "{[\"") {
			s = s[newline+1:]
		}
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func cleanThemes(themes []string) []string {
	out := make([]string, 0, len(themes))
	for _, theme := range themes {
		if trimmed := strings.TrimSpace(theme); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
