package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps documents in process memory. It is used by tests and by
// STORE_BACKEND=memory for local development.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: map[string]map[string]map[string]any{}}
}

func (m *MemoryStore) Query(_ context.Context, collection string, q Query) ([]Document, error) {
	for _, f := range q.Filters {
		if f.Op != OpEqual && f.Op != OpGreaterOrEqual && f.Op != OpLess {
			return nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}

	m.mu.RLock()
	docs := make([]Document, 0)
	for id, fields := range m.collections[collection] {
		if !matchesAll(fields, q.Filters) {
			continue
		}
		docs = append(docs, Document{ID: id, Fields: cloneFields(fields)})
	}
	m.mu.RUnlock()

	sort.SliceStable(docs, func(i, j int) bool {
		for _, o := range q.OrderBy {
			cmp := compareValues(docs[i].Fields[o.Field], docs[j].Fields[o.Field])
			if cmp == 0 {
				continue
			}
			if o.Direction == Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return docs[i].ID < docs[j].ID
	})
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

func (m *MemoryStore) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fields, ok := m.collections[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Fields: cloneFields(fields)}, nil
}

func (m *MemoryStore) Set(_ context.Context, collection, id string, fields map[string]any) error {
	normalized, err := normalizeFields(fields)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collectionLocked(collection)[id] = normalized
	return nil
}

func (m *MemoryStore) Update(_ context.Context, collection, id string, fields map[string]any) error {
	normalized, err := normalizeFields(fields)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	for key, value := range normalized {
		existing[key] = value
	}
	return nil
}

func (m *MemoryStore) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := NewID()
	if err := m.Set(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (m *MemoryStore) Increment(_ context.Context, collection, id, field string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	current, _ := existing[field].(float64)
	existing[field] = current + float64(delta)
	return nil
}

func (m *MemoryStore) collectionLocked(collection string) map[string]map[string]any {
	docs, ok := m.collections[collection]
	if !ok {
		docs = map[string]map[string]any{}
		m.collections[collection] = docs
	}
	return docs
}

func cloneFields(fields map[string]any) map[string]any {
	encoded, err := json.Marshal(fields)
	if err != nil {
		return map[string]any{}
	}
	cloned, err := decodeFields(encoded)
	if err != nil {
		return map[string]any{}
	}
	return cloned
}

func matchesAll(fields map[string]any, filters []Filter) bool {
	for _, f := range filters {
		value, present := fields[f.Field]
		if !present {
			return false
		}
		want, err := normalizeValue(f.Value)
		if err != nil {
			return false
		}
		switch f.Op {
		case OpEqual:
			if !reflect.DeepEqual(value, want) {
				return false
			}
		case OpGreaterOrEqual:
			if !sameKind(value, want) || compareValues(value, want) < 0 {
				return false
			}
		case OpLess:
			if !sameKind(value, want) || compareValues(value, want) >= 0 {
				return false
			}
		}
	}
	return true
}

func normalizeValue(v any) (any, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func sameKind(a, b any) bool {
	return typeRank(a) == typeRank(b)
}

// typeRank orders mixed-type values: null, bool, number, string, everything else.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}

func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case string:
		return strings.Compare(av, b.(string))
	}
	return 0
}
