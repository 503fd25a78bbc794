// Package journal holds the journal entry model, session reconciliation over
// entries written before and after session ids existed, and the analytics
// derived from enriched entries.
package journal

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"anchor/backend/internal/docstore"
	"anchor/backend/internal/enrichment"
)

const (
	Collection = "journals"

	titleRuneLimit = 40
)

var placeholderTitles = map[string]struct{}{
	"untitled":         {},
	"new conversation": {},
	"new session":      {},
	"new entry":        {},
	"new journal":      {},
}

// SessionRef records how an entry belongs to a session.
type SessionRef interface {
	sessionRef()
}

// LegacySession marks an entry stored before session ids existed. Its session key
// is its own entry id.
type LegacySession struct{}

// ModernSession carries a stored session id.
type ModernSession struct {
	ID string
}

func (LegacySession) sessionRef() {}
func (ModernSession) sessionRef() {}

type Entry struct {
	ID               string
	OwnerID          string
	Session          SessionRef
	Title            string
	Content          string
	CreatedAt        time.Time
	Sentiment        string
	SentimentScores  enrichment.SentimentScores
	KeyPhrases       []string
	RiskScore        float64
	Flagged          bool
	Reflection       string
	Themes           []string
	FollowUpQuestion string
}

// NewEntry builds a fully enriched entry. An empty sessionID starts a new session
// anchored on the entry itself.
func NewEntry(id, ownerID, sessionID, title, content string, createdAt time.Time, record enrichment.Record) Entry {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = id
	}
	return Entry{
		ID:               id,
		OwnerID:          ownerID,
		Session:          ModernSession{ID: sessionID},
		Title:            strings.TrimSpace(title),
		Content:          content,
		CreatedAt:        createdAt.UTC(),
		Sentiment:        record.Sentiment,
		SentimentScores:  record.SentimentScores,
		KeyPhrases:       record.KeyPhrases,
		RiskScore:        record.RiskScore,
		Flagged:          record.Flagged,
		Reflection:       record.Reflection,
		Themes:           record.Themes,
		FollowUpQuestion: record.FollowUpQuestion,
	}
}

// SessionKey is the stored session id for modern entries and the entry id for
// legacy ones.
func (e Entry) SessionKey() string {
	switch ref := e.Session.(type) {
	case ModernSession:
		return ref.ID
	default:
		return e.ID
	}
}

func (e Entry) IsLegacy() bool {
	_, modern := e.Session.(ModernSession)
	return !modern
}

func (e Entry) HasTimestamp() bool {
	return !e.CreatedAt.IsZero()
}

// DisplayTitle returns the stored title, or the first 40 characters of content as
// stored when the title is empty or a placeholder.
func (e Entry) DisplayTitle() string {
	title := strings.TrimSpace(e.Title)
	if title != "" && !isPlaceholderTitle(title) {
		return title
	}
	return leadingRunes(e.Content, titleRuneLimit)
}

func (e Entry) MoodScore() float64 {
	return MoodScore(e.SentimentScores)
}

func isPlaceholderTitle(title string) bool {
	_, ok := placeholderTitles[strings.ToLower(strings.TrimSpace(title))]
	return ok
}

func leadingRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

// EntryFromDocument decodes a stored journal document. Fields missing from older
// documents decode to zero values.
func EntryFromDocument(doc docstore.Document) Entry {
	entry := Entry{
		ID:               doc.ID,
		OwnerID:          doc.String("uid"),
		Session:          LegacySession{},
		Title:            doc.String("title"),
		Content:          doc.String("content"),
		Sentiment:        doc.String("sentiment"),
		KeyPhrases:       doc.Strings("key_phrases"),
		RiskScore:        doc.Float("risk_score"),
		Flagged:          doc.Bool("flagged"),
		Reflection:       doc.String("reflection"),
		Themes:           doc.Strings("themes"),
		FollowUpQuestion: doc.String("follow_up_question"),
	}
	if sessionID := strings.TrimSpace(doc.String("session_id")); sessionID != "" {
		entry.Session = ModernSession{ID: sessionID}
	}
	if createdAt, ok := docstore.ParseTimestamp(doc.Fields["created_at"]); ok {
		entry.CreatedAt = createdAt
	}
	if scores := doc.Map("sentiment_scores"); scores != nil {
		entry.SentimentScores = enrichment.SentimentScores{
			Positive: floatField(scores["positive"]),
			Neutral:  floatField(scores["neutral"]),
			Negative: floatField(scores["negative"]),
		}
	}
	return entry
}

func floatField(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// Fields renders the entry for storage. Legacy entries are written without a
// session_id so their shape is preserved on rewrite.
func (e Entry) Fields() map[string]any {
	fields := map[string]any{
		"uid":       e.OwnerID,
		"title":     nullableString(e.Title),
		"content":   e.Content,
		"sentiment": e.Sentiment,
		"sentiment_scores": map[string]any{
			"positive": e.SentimentScores.Positive,
			"neutral":  e.SentimentScores.Neutral,
			"negative": e.SentimentScores.Negative,
		},
		"key_phrases":        nonNilStrings(e.KeyPhrases),
		"risk_score":         e.RiskScore,
		"flagged":            e.Flagged,
		"reflection":         e.Reflection,
		"themes":             nonNilStrings(e.Themes),
		"follow_up_question": e.FollowUpQuestion,
	}
	if ref, ok := e.Session.(ModernSession); ok {
		fields["session_id"] = ref.ID
	}
	if e.HasTimestamp() {
		fields["created_at"] = docstore.Timestamp(e.CreatedAt)
	}
	return fields
}

type entryJSON struct {
	ID               string                     `json:"id"`
	SessionID        string                     `json:"session_id"`
	Title            *string                    `json:"title"`
	DisplayTitle     string                     `json:"display_title"`
	Content          string                     `json:"content"`
	CreatedAt        *time.Time                 `json:"created_at"`
	Sentiment        string                     `json:"sentiment"`
	SentimentScores  enrichment.SentimentScores `json:"sentiment_scores"`
	KeyPhrases       []string                   `json:"key_phrases"`
	RiskScore        float64                    `json:"risk_score"`
	Flagged          bool                       `json:"flagged"`
	Reflection       string                     `json:"reflection"`
	Themes           []string                   `json:"themes"`
	FollowUpQuestion string                     `json:"follow_up_question"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	out := entryJSON{
		ID:               e.ID,
		SessionID:        e.SessionKey(),
		DisplayTitle:     e.DisplayTitle(),
		Content:          e.Content,
		Sentiment:        e.Sentiment,
		SentimentScores:  e.SentimentScores,
		KeyPhrases:       nonNilStrings(e.KeyPhrases),
		RiskScore:        e.RiskScore,
		Flagged:          e.Flagged,
		Reflection:       e.Reflection,
		Themes:           nonNilStrings(e.Themes),
		FollowUpQuestion: e.FollowUpQuestion,
	}
	if e.Title != "" {
		title := e.Title
		out.Title = &title
	}
	if e.HasTimestamp() {
		createdAt := e.CreatedAt
		out.CreatedAt = &createdAt
	}
	return json.Marshal(out)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
