// Package sessionstore keeps chat transcripts for the lifetime of a session.
package sessionstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yanqian/offlineqa/internal/domain/conversation"
)

type session struct {
	messages  []conversation.Message
	expiresAt time.Time
}

// MemoryStore is an in-memory conversation store for single-process use.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]session
	trending map[string]int64
	displays map[string]string
}

// NewMemoryStore constructs a store backed by process memory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]session),
		trending: make(map[string]int64),
		displays: make(map[string]string),
	}
}

// Append implements conversation.Store.
func (s *MemoryStore) Append(_ context.Context, sessionID string, msgs []conversation.Message, ttl time.Duration, maxMessages int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.sessions[sessionID]
	if hasExpired(current.expiresAt) {
		current = session{}
	}
	all := append(append([]conversation.Message(nil), current.messages...), msgs...)
	if maxMessages > 0 && len(all) > maxMessages {
		all = all[len(all)-maxMessages:]
	}
	exp := time.Time{}
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	s.sessions[sessionID] = session{messages: all, expiresAt: exp}
	return nil
}

// Messages implements conversation.Store.
func (s *MemoryStore) Messages(_ context.Context, sessionID string) ([]conversation.Message, bool, error) {
	s.mu.RLock()
	current, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if hasExpired(current.expiresAt) {
		if current, ok = s.evictExpired(sessionID); !ok {
			return nil, false, nil
		}
	}
	out := make([]conversation.Message, len(current.messages))
	copy(out, current.messages)
	return out, true, nil
}

// evictExpired re-reads the session under the write lock and deletes it only
// if it is still expired. A session refreshed by a concurrent Append survives.
func (s *MemoryStore) evictExpired(sessionID string) (session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[sessionID]
	if !ok {
		return session{}, false
	}
	if hasExpired(current.expiresAt) {
		delete(s.sessions, sessionID)
		return session{}, false
	}
	return current, true
}

// Delete implements conversation.Store.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

// IncrementQuery bumps the counter for a canonical query and records a display string.
func (s *MemoryStore) IncrementQuery(_ context.Context, canonical, display string) error {
	if canonical == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trending[canonical]++
	if _, exists := s.displays[canonical]; !exists {
		s.displays[canonical] = display
	}
	return nil
}

// TopQueries returns the most frequent canonical queries.
func (s *MemoryStore) TopQueries(_ context.Context, limit int) ([]conversation.TrendingQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = len(s.trending)
	}
	items := make([]conversation.TrendingQuery, 0, len(s.trending))
	for canonical, count := range s.trending {
		display := s.displays[canonical]
		if display == "" {
			display = canonical
		}
		items = append(items, conversation.TrendingQuery{Query: display, Count: count})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count == items[j].Count {
			return items[i].Query < items[j].Query
		}
		return items[i].Count > items[j].Count
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func hasExpired(ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	return ts.Before(time.Now())
}

var _ conversation.Store = (*MemoryStore)(nil)
