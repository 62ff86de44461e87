package negotiation

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory session store for demo/development mode.
type MemoryStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
	}
}

func cloneSession(s *Session) *Session {
	cp := *s
	cp.Offers = make([]*Offer, len(s.Offers))
	for i, o := range s.Offers {
		oc := *o
		cp.Offers[i] = &oc
	}
	return &cp
}

func (m *MemoryStore) CreateSession(_ context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = cloneSession(session)
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (m *MemoryStore) UpdateSession(_ context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; !ok {
		return ErrSessionNotFound
	}
	m.sessions[session.ID] = cloneSession(session)
	return nil
}

func (m *MemoryStore) AppendOffer(_ context.Context, offer *Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[offer.SessionID]
	if !ok {
		return ErrSessionNotFound
	}
	oc := *offer
	s.Offers = append(s.Offers, &oc)
	return nil
}

func (m *MemoryStore) ListByAgent(_ context.Context, agentID string, limit int) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Session
	for _, s := range m.sessions {
		if s.BuyerID == agentID || s.SellerID == agentID {
			result = append(result, cloneSession(s))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) ListStale(_ context.Context, before time.Time, limit int) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Session
	for _, s := range m.sessions {
		if s.Status == StatusOpen && s.LastOfferAt.Before(before) {
			result = append(result, cloneSession(s))
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

var _ Store = (*MemoryStore)(nil)
