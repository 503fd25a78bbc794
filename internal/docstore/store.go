// Package docstore is a small document-database abstraction: named collections of
// JSON documents addressed by id, with equality/range filters and ordering.
//
// Field values are JSON-shaped (string, float64, bool, nil, []any, map[string]any).
// Timestamps are stored as fixed-width UTC strings produced by Timestamp so that
// lexicographic order equals chronological order in every backend.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("document not found")

type Op string

const (
	OpEqual          Op = "=="
	OpGreaterOrEqual Op = ">="
	OpLess           Op = "<"
)

type Direction int

const (
	Ascending Direction = iota
	Descending
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

type Order struct {
	Field     string
	Direction Direction
}

type Query struct {
	Filters []Filter
	OrderBy []Order
	Limit   int
}

func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

type Document struct {
	ID     string
	Fields map[string]any
}

// Store is implemented by PostgresStore and MemoryStore.
type Store interface {
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Set overwrites the whole document, creating it when absent.
	Set(ctx context.Context, collection, id string, fields map[string]any) error
	// Update merges top-level fields into an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Add(ctx context.Context, collection string, fields map[string]any) (string, error)
	Increment(ctx context.Context, collection, id, field string, delta int64) error
}

func NewID() string {
	return uuid.NewString()
}

const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Timestamp renders t in the canonical stored form.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp accepts the canonical form plus RFC 3339 values written by older clients.
func ParseTimestamp(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return v.UTC(), true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return time.Time{}, false
		}
		for _, layout := range []string{timestampLayout, time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02"} {
			if parsed, err := time.Parse(layout, trimmed); err == nil {
				return parsed.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func (d Document) String(key string) string {
	s, _ := d.Fields[key].(string)
	return s
}

func (d Document) Float(key string) float64 {
	switch v := d.Fields[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

func (d Document) Bool(key string) bool {
	b, _ := d.Fields[key].(bool)
	return b
}

func (d Document) Has(key string) bool {
	v, ok := d.Fields[key]
	return ok && v != nil
}

func (d Document) Strings(key string) []string {
	switch v := d.Fields[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (d Document) Map(key string) map[string]any {
	m, _ := d.Fields[key].(map[string]any)
	return m
}

// normalizeFields round-trips through JSON so every backend hands back the same value shapes.
func normalizeFields(fields map[string]any) (map[string]any, error) {
	if fields == nil {
		return map[string]any{}, nil
	}
	encoded, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return decodeFields(encoded)
}

func decodeFields(raw []byte) (map[string]any, error) {
	result := map[string]any{}
	if len(raw) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	if result == nil {
		result = map[string]any{}
	}
	return result, nil
}
