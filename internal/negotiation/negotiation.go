// Package negotiation implements the trust-gated negotiation protocol.
//
// Flow:
//  1. A buyer opens a session against a discovered seller with its constraints
//  2. Each side submits signed, strictly sequenced offers
//  3. The evaluator decides accept / counter / reject on every incoming offer;
//     counters are synthesized and resubmitted on the respondent's behalf
//  4. Accept pauses at the human approval gates (confirm sale, authorize payment)
//  5. An approved deal produces a double-signed receipt via receipts.Service
//
// A session's offer log is append-only and strictly serialized; sequence
// numbers increase across the whole log regardless of which side submitted.
package negotiation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amorce/marketplace/internal/identity"
	"github.com/amorce/marketplace/internal/idgen"
	"github.com/amorce/marketplace/internal/money"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session is not open")
	ErrOutOfOrder      = errors.New("offer sequence number out of order")
	ErrBadSignature    = errors.New("offer signature verification failed")
	ErrNotParticipant  = errors.New("agent is not a party to this session")
	ErrNotYourTurn     = errors.New("not this agent's turn")
	ErrInvalidOffer    = errors.New("invalid offer")
	ErrInvalidSession  = errors.New("invalid session parameters")
	ErrNoSigner        = errors.New("no signing identity registered for agent")
)

// Status represents the state of a negotiation session.
type Status string

const (
	StatusOpen     Status = "open"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Offer is one priced move in a session. The signature covers the canonical
// encoding of every field except the signature itself.
type Offer struct {
	OfferID        string       `json:"offer_id"`
	SessionID      string       `json:"session_id"`
	FromAgent      string       `json:"from_agent"`
	ToAgent        string       `json:"to_agent"`
	Price          money.Amount `json:"price"`
	SequenceNumber int          `json:"sequence_number"` // starts at 1, strictly increasing per session
	Reasoning      string       `json:"reasoning,omitempty"`
	Signature      string       `json:"signature"` // hex ed25519
	CreatedAt      time.Time    `json:"created_at"`
}

// Constraints are the private terms each side negotiates within. The buyer
// side uses MaxBudget; the seller side uses MinPrice, MinProfit, and
// CostBasis. Neither side sees the other's numbers.
type Constraints struct {
	MaxBudget money.Amount `json:"max_budget"`
	MinPrice  money.Amount `json:"min_price"`
	MinProfit money.Amount `json:"min_profit"`
	CostBasis money.Amount `json:"cost_basis"`
	Item      string       `json:"item_description"`
}

// Session is one buyer-seller negotiation. Offers are append-only;
// terminal sessions are read-only.
type Session struct {
	ID            string      `json:"id"`
	BuyerID       string      `json:"buyer_id"`
	SellerID      string      `json:"seller_id"`
	Constraints   Constraints `json:"constraints"`
	Status        Status      `json:"status"`
	Reason        string      `json:"reason,omitempty"` // set on rejected/expired
	Offers        []*Offer    `json:"offers"`
	Turn          string      `json:"turn"` // agent id whose move is next
	TransactionID string      `json:"transaction_id,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	LastOfferAt   time.Time   `json:"last_offer_at"`
}

// IsTerminal returns true if the session is in a final state.
func (s *Session) IsTerminal() bool {
	switch s.Status {
	case StatusAccepted, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// LastSequence returns the highest sequence number in the offer log, 0 when
// the log is empty.
func (s *Session) LastSequence() int {
	if len(s.Offers) == 0 {
		return 0
	}
	return s.Offers[len(s.Offers)-1].SequenceNumber
}

// Counterparty returns the other side of the session.
func (s *Session) Counterparty(agentID string) (string, error) {
	switch agentID {
	case s.BuyerID:
		return s.SellerID, nil
	case s.SellerID:
		return s.BuyerID, nil
	}
	return "", ErrNotParticipant
}

// OpenSessionRequest contains the parameters for opening a session.
type OpenSessionRequest struct {
	BuyerID     string      `json:"buyer_id" binding:"required"`
	SellerID    string      `json:"seller_id" binding:"required"`
	Constraints Constraints `json:"constraints"`
}

// Store persists negotiation data.
type Store interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	UpdateSession(ctx context.Context, session *Session) error
	AppendOffer(ctx context.Context, offer *Offer) error
	ListByAgent(ctx context.Context, agentID string, limit int) ([]*Session, error)
	ListStale(ctx context.Context, before time.Time, limit int) ([]*Session, error)
}

// offerPayload is the canonical struct an offer signature covers.
// Field order must be deterministic (JSON marshalling of struct is by field order).
type offerPayload struct {
	FromAgent      string `json:"from_agent"`
	Price          string `json:"price"`
	Reasoning      string `json:"reasoning"`
	SequenceNumber int    `json:"sequence_number"`
	SessionID      string `json:"session_id"`
	ToAgent        string `json:"to_agent"`
}

// CanonicalOfferPayload returns the byte string an offer signature covers.
func CanonicalOfferPayload(o *Offer) ([]byte, error) {
	payload := offerPayload{
		FromAgent:      o.FromAgent,
		Price:          o.Price.String(),
		Reasoning:      o.Reasoning,
		SequenceNumber: o.SequenceNumber,
		SessionID:      o.SessionID,
		ToAgent:        o.ToAgent,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal payload: %v", ErrInvalidOffer, err)
	}
	return data, nil
}

// SignOffer attaches the sender's signature over the canonical payload.
func SignOffer(o *Offer, id *identity.Identity) error {
	data, err := CanonicalOfferPayload(o)
	if err != nil {
		return err
	}
	sig, err := id.SignHex(data)
	if err != nil {
		return err
	}
	o.Signature = sig
	return nil
}

// VerifyOffer checks the offer signature against a hex public key.
func VerifyOffer(o *Offer, pubHex string) bool {
	if o.Signature == "" {
		return false
	}
	data, err := CanonicalOfferPayload(o)
	if err != nil {
		return false
	}
	return identity.VerifyHex(pubHex, data, o.Signature)
}

// NewOffer builds an unsigned offer.
func NewOffer(sessionID, from, to string, price money.Amount, sequence int, reasoning string) *Offer {
	return &Offer{
		OfferID:        idgen.WithPrefix("offer_"),
		SessionID:      sessionID,
		FromAgent:      from,
		ToAgent:        to,
		Price:          price,
		SequenceNumber: sequence,
		Reasoning:      reasoning,
		CreatedAt:      time.Now().UTC(),
	}
}

// OfferFromWire reconstructs a client-submitted offer, parsing the decimal
// price and assigning a fresh offer id. The signature is carried as-is and
// verified on submission.
func OfferFromWire(sessionID, from, to, price string, sequence int, reasoning, signature string) (*Offer, error) {
	p, err := money.Parse(price)
	if err != nil {
		return nil, fmt.Errorf("%w: price: %v", ErrInvalidOffer, err)
	}
	o := NewOffer(sessionID, from, to, p, sequence, reasoning)
	o.Signature = signature
	return o, nil
}
