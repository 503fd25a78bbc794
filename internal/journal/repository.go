package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"anchor/backend/internal/docstore"
)

type Repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// Create persists a fully enriched entry in a single write.
func (r *Repository) Create(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		return errors.New("entry id is required")
	}
	if err := r.store.Set(ctx, Collection, entry.ID, entry.Fields()); err != nil {
		return fmt.Errorf("save journal entry: %w", err)
	}
	return nil
}

// ListEntries returns every entry of the owner, oldest first.
func (r *Repository) ListEntries(ctx context.Context, ownerID string) ([]Entry, error) {
	entries, err := r.query(ctx, docstore.Query{
		Filters: []docstore.Filter{docstore.Where("uid", docstore.OpEqual, ownerID)},
	})
	if err != nil {
		return nil, err
	}
	SortChronological(entries)
	return entries, nil
}

// EntriesSince returns the owner's entries created at or after since, oldest first.
func (r *Repository) EntriesSince(ctx context.Context, ownerID string, since time.Time) ([]Entry, error) {
	entries, err := r.query(ctx, docstore.Query{
		Filters: []docstore.Filter{
			docstore.Where("uid", docstore.OpEqual, ownerID),
			docstore.Where("created_at", docstore.OpGreaterOrEqual, docstore.Timestamp(since)),
		},
	})
	if err != nil {
		return nil, err
	}
	SortChronological(entries)
	return entries, nil
}

func (r *Repository) ListSessions(ctx context.Context, ownerID string) ([]Session, error) {
	entries, err := r.ListEntries(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return ReconcileSessions(entries), nil
}

// SessionMessages returns the entries of one session, oldest first. The session
// id is also looked up as an entry id: a legacy entry with that id anchors the
// session and is merged in when the owner matches. Unknown or foreign sessions
// yield an empty slice.
func (r *Repository) SessionMessages(ctx context.Context, ownerID, sessionID string) ([]Entry, error) {
	entries, err := r.query(ctx, docstore.Query{
		Filters: []docstore.Filter{
			docstore.Where("uid", docstore.OpEqual, ownerID),
			docstore.Where("session_id", docstore.OpEqual, sessionID),
		},
	})
	if err != nil {
		return nil, err
	}

	anchor, err := r.legacyAnchor(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	if anchor != nil && !containsEntry(entries, anchor.ID) {
		entries = append(entries, *anchor)
	}

	SortChronological(entries)
	return entries, nil
}

// legacyAnchor returns the owner's legacy entry whose id is sessionID, if any.
func (r *Repository) legacyAnchor(ctx context.Context, ownerID, sessionID string) (*Entry, error) {
	doc, err := r.store.Get(ctx, Collection, sessionID)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("load legacy session %s: %w", sessionID, err)
	}

	entry := EntryFromDocument(doc)
	if entry.OwnerID != ownerID {
		return nil, nil
	}
	switch entry.Session.(type) {
	case LegacySession:
		return &entry, nil
	default:
		return nil, nil
	}
}

func containsEntry(entries []Entry, id string) bool {
	for _, entry := range entries {
		if entry.ID == id {
			return true
		}
	}
	return false
}

func (r *Repository) query(ctx context.Context, q docstore.Query) ([]Entry, error) {
	docs, err := r.store.Query(ctx, Collection, q)
	if err != nil {
		return nil, fmt.Errorf("query journal entries: %w", err)
	}
	entries := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, EntryFromDocument(doc))
	}
	return entries, nil
}
