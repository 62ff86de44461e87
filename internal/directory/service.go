package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/amorce/marketplace/internal/security"
	"github.com/amorce/marketplace/internal/validation"
)

// Reputation nudges applied when transactions are recorded. The directory
// owns these numbers; agents cannot influence them directly.
const (
	completedScoreAdjust = 0.01
	failedScoreAdjust    = -0.05
	initialTrustScore    = 3.0
)

// Service implements directory business logic.
type Service struct {
	store Store
}

// NewService creates a new directory service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Register creates or updates an agent profile. It is idempotent on
// agent_id: re-registering updates mutable metadata (name, capabilities,
// endpoint) without touching identity or reputation fields.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AgentProfile, bool, error) {
	if err := validateRegistration(req); err != nil {
		return nil, false, err
	}
	// The endpoint is fetched server-side later, so it must not point into
	// our own network. Applies to both first registration and updates.
	if req.Endpoint != "" {
		if err := security.ValidateEndpointURL(req.Endpoint); err != nil {
			return nil, false, fmt.Errorf("%w: endpoint: %v", ErrInvalidProfile, err)
		}
	}

	now := time.Now().UTC()

	existing, err := s.store.GetAgent(ctx, req.AgentID)
	if err == nil {
		// Identity fields are pinned at first registration.
		if existing.PublicKey != req.PublicKey {
			return nil, false, fmt.Errorf("%w: public_key", ErrImmutableField)
		}
		if req.Metadata.Role != "" && req.Metadata.Role != existing.Role {
			return nil, false, fmt.Errorf("%w: role", ErrImmutableField)
		}

		existing.Name = validation.SanitizeString(req.Metadata.Name, 200)
		existing.Capabilities = normalizeCapabilities(req.Metadata.Capabilities)
		existing.Endpoint = validation.SanitizeString(req.Endpoint, 500)
		existing.UpdatedAt = now
		if err := s.store.UpdateAgent(ctx, existing); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != ErrAgentNotFound {
		return nil, false, err
	}

	profile := &AgentProfile{
		AgentID:      req.AgentID,
		PublicKey:    req.PublicKey,
		Role:         req.Metadata.Role,
		Name:         validation.SanitizeString(req.Metadata.Name, 200),
		Capabilities: normalizeCapabilities(req.Metadata.Capabilities),
		Endpoint:     validation.SanitizeString(req.Endpoint, 500),
		TrustScore:   initialTrustScore,
		Status:       "active",
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateAgent(ctx, profile); err != nil {
		return nil, false, err
	}
	return profile, true, nil
}

// Get returns a single agent profile.
func (s *Service) Get(ctx context.Context, agentID string) (*AgentProfile, error) {
	return s.store.GetAgent(ctx, agentID)
}

// List returns all registered agents.
func (s *Service) List(ctx context.Context) ([]*AgentProfile, error) {
	return s.store.ListAgents(ctx)
}

// RecordTransaction updates both parties' reputation after a trade.
// Completed trades bump the count and nudge the score up; failed trades
// still count but pull the score down.
func (s *Service) RecordTransaction(ctx context.Context, agentID string, req RecordTransactionRequest) error {
	adjust := completedScoreAdjust
	if req.Outcome == "failed" {
		adjust = failedScoreAdjust
	}

	if err := s.store.BumpTransactions(ctx, agentID, 1, adjust); err != nil {
		return err
	}
	if req.CounterpartyID != "" && req.CounterpartyID != agentID {
		if err := s.store.BumpTransactions(ctx, req.CounterpartyID, 1, adjust); err != nil {
			return err
		}
	}
	return nil
}

// SetTrust overwrites an agent's trust score. Admin-only; used for seeding
// demo data and manual corrections.
func (s *Service) SetTrust(ctx context.Context, agentID string, score float64) error {
	if !validation.IsValidTrustScore(score) {
		return fmt.Errorf("%w: trust_score %v out of range", ErrInvalidProfile, score)
	}
	return s.store.SetTrustScore(ctx, agentID, score)
}

func validateRegistration(req RegisterRequest) error {
	if !validation.IsValidAgentID(req.AgentID) {
		return fmt.Errorf("%w: agent_id %q", ErrInvalidProfile, req.AgentID)
	}
	if !validation.IsValidHex(req.PublicKey) || len(req.PublicKey) != 64 {
		return fmt.Errorf("%w: public_key must be 32 bytes of hex", ErrInvalidProfile)
	}
	switch req.Metadata.Role {
	case RoleBuyer, RoleSeller, "":
	default:
		return fmt.Errorf("%w: role %q", ErrInvalidProfile, req.Metadata.Role)
	}
	for _, tag := range req.Metadata.Capabilities {
		if !validation.IsValidCapability(tag) {
			return fmt.Errorf("%w: %q", ErrInvalidCapability, tag)
		}
	}
	return nil
}

func normalizeCapabilities(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}
