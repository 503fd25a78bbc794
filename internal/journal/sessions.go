package journal

import (
	"encoding/json"
	"sort"
	"time"
)

// Session is a derived group of entries sharing a session key.
type Session struct {
	SessionID      string
	Title          string
	AnchorTime     time.Time
	EntryCount     int
	LastActivityAt time.Time

	anchorID string
}

func (s Session) HasAnchor() bool {
	return !s.AnchorTime.IsZero()
}

// ReconcileSessions groups entries by session key. The anchor is the earliest
// entry of the group and supplies the title; equal timestamps resolve to the
// smaller entry id so the result does not depend on input order. Sessions are
// ordered by anchor time, newest first, with untimed sessions last.
func ReconcileSessions(entries []Entry) []Session {
	byKey := make(map[string]*Session)
	order := make([]string, 0)

	for _, entry := range entries {
		key := entry.SessionKey()
		session, ok := byKey[key]
		if !ok {
			session = &Session{
				SessionID:      key,
				Title:          entry.DisplayTitle(),
				AnchorTime:     entry.CreatedAt,
				LastActivityAt: entry.CreatedAt,
				anchorID:       entry.ID,
			}
			byKey[key] = session
			order = append(order, key)
		} else if anchorsBefore(entry, session) {
			session.AnchorTime = entry.CreatedAt
			session.Title = entry.DisplayTitle()
			session.anchorID = entry.ID
		}
		session.EntryCount++
		if entry.CreatedAt.After(session.LastActivityAt) {
			session.LastActivityAt = entry.CreatedAt
		}
	}

	sessions := make([]Session, 0, len(order))
	for _, key := range order {
		sessions = append(sessions, *byKey[key])
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if a.HasAnchor() != b.HasAnchor() {
			return a.HasAnchor()
		}
		if !a.AnchorTime.Equal(b.AnchorTime) {
			return a.AnchorTime.After(b.AnchorTime)
		}
		return a.SessionID < b.SessionID
	})
	return sessions
}

// anchorsBefore reports whether entry should replace the current anchor. Untimed
// entries only anchor a session that has no timed entry.
func anchorsBefore(entry Entry, session *Session) bool {
	switch {
	case !entry.HasTimestamp():
		return !session.HasAnchor() && entry.ID < session.anchorID
	case !session.HasAnchor():
		return true
	case entry.CreatedAt.Before(session.AnchorTime):
		return true
	case entry.CreatedAt.Equal(session.AnchorTime):
		return entry.ID < session.anchorID
	}
	return false
}

// SortChronological orders entries oldest first. Untimed entries sort first and
// ties resolve by id.
func SortChronological(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.HasTimestamp() != b.HasTimestamp() {
			return !a.HasTimestamp()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

type sessionJSON struct {
	SessionID      string     `json:"session_id"`
	Title          string     `json:"title"`
	CreatedAt      *time.Time `json:"created_at"`
	EntryCount     int        `json:"entry_count"`
	LastActivityAt *time.Time `json:"last_activity_at"`
}

func (s Session) MarshalJSON() ([]byte, error) {
	out := sessionJSON{
		SessionID:  s.SessionID,
		Title:      s.Title,
		EntryCount: s.EntryCount,
	}
	if s.HasAnchor() {
		anchor := s.AnchorTime
		out.CreatedAt = &anchor
	}
	if !s.LastActivityAt.IsZero() {
		last := s.LastActivityAt
		out.LastActivityAt = &last
	}
	return json.Marshal(out)
}
