// Package agent binds a signing identity, negotiation constraints, a human
// approval policy, and a directory client into buyer and seller personas.
//
// The negotiation service is deliberately persona-agnostic; everything that
// makes an agent "a cautious shopper with a $500 ceiling" or "a reseller who
// will not go below cost plus margin" lives here.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/amorce/marketplace/internal/approval"
	"github.com/amorce/marketplace/internal/dirclient"
	"github.com/amorce/marketplace/internal/directory"
	"github.com/amorce/marketplace/internal/identity"
	"github.com/amorce/marketplace/internal/money"
	"github.com/amorce/marketplace/internal/negotiation"
	"github.com/amorce/marketplace/internal/reasoning"
)

var (
	ErrNoSellers     = errors.New("agent: no sellers matched the query")
	ErrInvalidConfig = errors.New("agent: invalid configuration")
)

// openingDiscount is how far under budget a buyer's first offer lands.
var openingDiscount = money.MustParse("50.00")

// Directory is the slice of the directory client the personas use.
type Directory interface {
	Register(ctx context.Context, req directory.RegisterRequest) (*directory.RegisterResponse, error)
	Lookup(ctx context.Context, agentID string) (*directory.AgentProfile, error)
	Discover(ctx context.Context, q dirclient.Query) ([]*directory.AgentProfile, error)
}

// BuyerConfig describes a buyer persona.
type BuyerConfig struct {
	Name           string
	Endpoint       string
	MaxBudget      money.Amount
	MinSellerTrust float64
	Capabilities   []string
	HITLActions    []string // actions requiring human approval, e.g. authorize_payment
}

// Buyer is a purchasing persona. It discovers sellers through the directory
// and keeps its spending ceiling out of the wire protocol.
type Buyer struct {
	id       *identity.Identity
	cfg      BuyerConfig
	dir      Directory
	gate     *approval.Gate
	reasoner reasoning.Provider
}

// NewBuyer builds a buyer persona around an existing identity.
func NewBuyer(id *identity.Identity, cfg BuyerConfig, dir Directory, decider approval.Decider) (*Buyer, error) {
	if id == nil {
		return nil, fmt.Errorf("%w: identity is required", ErrInvalidConfig)
	}
	if !cfg.MaxBudget.IsPositive() {
		return nil, fmt.Errorf("%w: max budget must be positive", ErrInvalidConfig)
	}
	return &Buyer{
		id:       id,
		cfg:      cfg,
		dir:      dir,
		gate:     approval.NewGate(decider, cfg.HITLActions),
		reasoner: reasoning.NewStaticProvider(),
	}, nil
}

// WithReasoner replaces the default static reasoning provider.
func (b *Buyer) WithReasoner(p reasoning.Provider) *Buyer {
	b.reasoner = p
	return b
}

func (b *Buyer) AgentID() string            { return b.id.AgentID() }
func (b *Buyer) Identity() *identity.Identity { return b.id }
func (b *Buyer) Gate() *approval.Gate       { return b.gate }
func (b *Buyer) MaxBudget() money.Amount    { return b.cfg.MaxBudget }

// Register publishes the buyer's public profile to the trust directory.
func (b *Buyer) Register(ctx context.Context) (*directory.RegisterResponse, error) {
	return b.dir.Register(ctx, directory.RegisterRequest{
		AgentID:   b.id.AgentID(),
		PublicKey: b.id.PublicKeyHex(),
		Endpoint:  b.cfg.Endpoint,
		Metadata: directory.ProfileMetadata{
			Name:         b.cfg.Name,
			Role:         directory.RoleBuyer,
			Capabilities: b.cfg.Capabilities,
		},
	})
}

// FindSeller discovers the best-ranked seller for a capability, honoring the
// buyer's minimum trust threshold. Reputation ranking is the directory
// client's; this just takes the top match.
func (b *Buyer) FindSeller(ctx context.Context, capability string) (*directory.AgentProfile, error) {
	sellers, err := b.dir.Discover(ctx, dirclient.Query{
		Capability: capability,
		Role:       directory.RoleSeller,
		MinTrust:   b.cfg.MinSellerTrust,
	})
	if err != nil {
		return nil, err
	}
	if len(sellers) == 0 {
		return nil, ErrNoSellers
	}
	return sellers[0], nil
}

// OpeningOffer is the buyer's first bid: a fixed amount under budget, or the
// full budget when the discount would not leave a positive price.
func (b *Buyer) OpeningOffer() money.Amount {
	opening := b.cfg.MaxBudget - openingDiscount
	if !opening.IsPositive() {
		return b.cfg.MaxBudget
	}
	return opening
}

// Open builds and signs the buyer's opening offer for a session, with the
// justification coming from the buyer's reasoning provider.
func (b *Buyer) Open(ctx context.Context, session *negotiation.Session) (*negotiation.Offer, error) {
	price := b.OpeningOffer()
	why, err := b.reasoner.Explain(ctx, reasoning.Decision{
		Role:       "buyer",
		Verdict:    reasoning.VerdictOpen,
		Item:       session.Constraints.Item,
		OfferPrice: price,
	})
	if err != nil {
		return nil, fmt.Errorf("agent: reasoning failed: %w", err)
	}
	offer := negotiation.NewOffer(session.ID, b.AgentID(), session.SellerID, price, 1, why)
	if err := negotiation.SignOffer(offer, b.id); err != nil {
		return nil, err
	}
	return offer, nil
}

// SellerConfig describes a seller persona.
type SellerConfig struct {
	Name         string
	Endpoint     string
	Item         string       // what is being sold
	MinPrice     money.Amount // listed floor, offers below it are countered
	MinProfit    money.Amount // required margin over cost
	CostBasis    money.Amount // what the seller paid
	Capabilities []string
	HITLActions  []string // e.g. confirm_sale, issue_refund
}

// Seller is a selling persona. Its floor, margin, and cost basis stay
// private; only counters and verdicts reach the counterparty.
type Seller struct {
	id   *identity.Identity
	cfg  SellerConfig
	dir  Directory
	gate *approval.Gate
}

// NewSeller builds a seller persona around an existing identity.
func NewSeller(id *identity.Identity, cfg SellerConfig, dir Directory, decider approval.Decider) (*Seller, error) {
	if id == nil {
		return nil, fmt.Errorf("%w: identity is required", ErrInvalidConfig)
	}
	if !cfg.MinPrice.IsPositive() {
		return nil, fmt.Errorf("%w: min price must be positive", ErrInvalidConfig)
	}
	if cfg.CostBasis < 0 || cfg.MinProfit < 0 {
		return nil, fmt.Errorf("%w: cost basis and min profit must not be negative", ErrInvalidConfig)
	}
	return &Seller{
		id:   id,
		cfg:  cfg,
		dir:  dir,
		gate: approval.NewGate(decider, cfg.HITLActions),
	}, nil
}

func (s *Seller) AgentID() string              { return s.id.AgentID() }
func (s *Seller) Identity() *identity.Identity { return s.id }
func (s *Seller) Gate() *approval.Gate         { return s.gate }
func (s *Seller) Item() string                 { return s.cfg.Item }

// Register publishes the seller's public profile to the trust directory.
func (s *Seller) Register(ctx context.Context) (*directory.RegisterResponse, error) {
	return s.dir.Register(ctx, directory.RegisterRequest{
		AgentID:   s.id.AgentID(),
		PublicKey: s.id.PublicKeyHex(),
		Endpoint:  s.cfg.Endpoint,
		Metadata: directory.ProfileMetadata{
			Name:         s.cfg.Name,
			Role:         directory.RoleSeller,
			Capabilities: s.cfg.Capabilities,
		},
	})
}

// SessionRequest combines both personas' private constraints into the open
// request for a negotiation hosted in this process.
func SessionRequest(b *Buyer, s *Seller) negotiation.OpenSessionRequest {
	return negotiation.OpenSessionRequest{
		BuyerID:  b.AgentID(),
		SellerID: s.AgentID(),
		Constraints: negotiation.Constraints{
			MaxBudget: b.cfg.MaxBudget,
			MinPrice:  s.cfg.MinPrice,
			MinProfit: s.cfg.MinProfit,
			CostBasis: s.cfg.CostBasis,
			Item:      s.cfg.Item,
		},
	}
}

// Bind registers both identities with the negotiation service's signer
// registry and installs each persona's approval gate.
func Bind(svc *negotiation.Service, signers *negotiation.SignerRegistry, b *Buyer, s *Seller) {
	signers.Register(b.Identity())
	signers.Register(s.Identity())
	svc.WithGates(b.Gate(), s.Gate())
}
