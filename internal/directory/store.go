package directory

import (
	"context"
	"sort"
	"sync"
	"time"
)

// -----------------------------------------------------------------------------
// Store Interface (swap implementations later)
// -----------------------------------------------------------------------------

// Store defines the persistence interface for the directory
type Store interface {
	CreateAgent(ctx context.Context, profile *AgentProfile) error
	GetAgent(ctx context.Context, agentID string) (*AgentProfile, error)
	UpdateAgent(ctx context.Context, profile *AgentProfile) error
	ListAgents(ctx context.Context) ([]*AgentProfile, error)

	// Reputation mutations - the only writers of trust_score and
	// total_transactions anywhere in the system.
	SetTrustScore(ctx context.Context, agentID string, score float64) error
	BumpTransactions(ctx context.Context, agentID string, delta int64, scoreAdjust float64) error
}

// -----------------------------------------------------------------------------
// In-Memory Store (demo/development mode, swap to Postgres in production)
// -----------------------------------------------------------------------------

// MemoryStore is a thread-safe in-memory implementation
type MemoryStore struct {
	mu     sync.RWMutex
	agents map[string]*AgentProfile // agent_id -> profile
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{agents: make(map[string]*AgentProfile)}
}

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) CreateAgent(_ context.Context, profile *AgentProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := cloneProfile(profile)
	m.agents[profile.AgentID] = cp
	return nil
}

func (m *MemoryStore) GetAgent(_ context.Context, agentID string) (*AgentProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.agents[agentID]
	if !ok {
		return nil, ErrAgentNotFound
	}
	return cloneProfile(p), nil
}

func (m *MemoryStore) UpdateAgent(_ context.Context, profile *AgentProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.agents[profile.AgentID]; !ok {
		return ErrAgentNotFound
	}
	m.agents[profile.AgentID] = cloneProfile(profile)
	return nil
}

func (m *MemoryStore) ListAgents(_ context.Context) ([]*AgentProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*AgentProfile, 0, len(m.agents))
	for _, p := range m.agents {
		result = append(result, cloneProfile(p))
	}

	// Deterministic order for listings; discovery ranking happens client-side.
	sort.Slice(result, func(i, j int) bool {
		return result[i].AgentID < result[j].AgentID
	})
	return result, nil
}

func (m *MemoryStore) SetTrustScore(_ context.Context, agentID string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.agents[agentID]
	if !ok {
		return ErrAgentNotFound
	}
	p.TrustScore = clampScore(score)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) BumpTransactions(_ context.Context, agentID string, delta int64, scoreAdjust float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.agents[agentID]
	if !ok {
		return ErrAgentNotFound
	}
	p.TotalTransactions += delta
	if p.TotalTransactions < 0 {
		p.TotalTransactions = 0
	}
	p.TrustScore = clampScore(p.TrustScore + scoreAdjust)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 5 {
		return 5
	}
	return s
}

func cloneProfile(p *AgentProfile) *AgentProfile {
	cp := *p
	cp.Capabilities = append([]string(nil), p.Capabilities...)
	return &cp
}
