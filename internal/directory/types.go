// Package directory implements the trust directory: agent registration,
// lookup, and the reputation bookkeeping the rest of the marketplace reads.
// Trust scores and transaction counts are mutated only here - agents never
// self-report them.
package directory

import (
	"errors"
	"time"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	ErrAgentNotFound   = errors.New("directory: agent not found")
	ErrInvalidProfile  = errors.New("directory: invalid profile")
	ErrImmutableField  = errors.New("directory: identity fields cannot change after registration")
	ErrInvalidCapability = errors.New("directory: invalid capability tag")
)

// -----------------------------------------------------------------------------
// Core Types
// -----------------------------------------------------------------------------

// Role classifies which side of a trade an agent plays.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// AgentProfile is a registered agent's public record.
type AgentProfile struct {
	// Identity - immutable after registration
	AgentID   string `json:"agent_id"`
	PublicKey string `json:"public_key"` // hex-encoded ed25519 verification key
	Role      Role   `json:"role"`

	// Mutable metadata - updated on re-registration
	Name         string   `json:"name,omitempty"`
	Capabilities []string `json:"capabilities"`
	Endpoint     string   `json:"endpoint,omitempty"`

	// Reputation - mutated only by the directory
	TrustScore        float64 `json:"trust_score"`        // 0.0-5.0
	TotalTransactions int64   `json:"total_transactions"` // non-negative

	Status       string    `json:"status"` // "active"
	RegisteredAt time.Time `json:"registered_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasCapability reports whether the profile advertises the given tag.
func (p *AgentProfile) HasCapability(tag string) bool {
	for _, c := range p.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Wire Types
// -----------------------------------------------------------------------------

// ProfileMetadata is the metadata block of a registration request.
type ProfileMetadata struct {
	Name         string   `json:"name"`
	Role         Role     `json:"role"`
	Capabilities []string `json:"capabilities"`
}

// RegisterRequest is the payload for POST /api/v1/agents.
// Re-registering an existing agent_id updates mutable metadata only.
type RegisterRequest struct {
	AgentID   string          `json:"agent_id" binding:"required"`
	PublicKey string          `json:"public_key" binding:"required"`
	Endpoint  string          `json:"endpoint"`
	Metadata  ProfileMetadata `json:"metadata"`
}

// RegisterResponse confirms a registration.
type RegisterResponse struct {
	AgentID string `json:"agent_id"`
	Status  string `json:"status"`  // "registered" or "updated"
	Created bool   `json:"created"` // false when an existing entry was updated
}

// ListResponse is the payload of GET /api/v1/agents.
type ListResponse struct {
	Count  int             `json:"count"`
	Agents []*AgentProfile `json:"agents"`
}

// RecordTransactionRequest reports a completed trade so the directory can
// update both parties' reputation.
type RecordTransactionRequest struct {
	CounterpartyID string `json:"counterparty_id" binding:"required"`
	Amount         string `json:"amount"`
	Outcome        string `json:"outcome"` // "completed" or "failed"
	Reference      string `json:"reference,omitempty"`
}

// SetTrustRequest is the admin payload for seeding or correcting a score.
type SetTrustRequest struct {
	TrustScore float64 `json:"trust_score"`
}
