package receipts

import (
	"context"
	"fmt"

	"github.com/amorce/marketplace/internal/metrics"
)

// KeyLookup resolves an agent id to its hex-encoded ed25519 public key.
// Wired to the trust directory so receipts verify against registered keys,
// not keys the receipt itself claims.
type KeyLookup func(ctx context.Context, agentID string) (string, error)

// Service implements receipt business logic.
type Service struct {
	store Store
	keys  KeyLookup
}

// NewService creates a new receipt service.
func NewService(store Store, keys KeyLookup) *Service {
	return &Service{store: store, keys: keys}
}

// Issue verifies both signatures against directory keys and persists the
// receipt. Unsigned or mis-signed receipts are never stored.
func (s *Service) Issue(ctx context.Context, r *Receipt) error {
	if r.BuyerID == "" || r.SellerID == "" || !r.FinalPrice.IsPositive() {
		return ErrInvalidReceipt
	}

	buyerKey, err := s.keys(ctx, r.BuyerID)
	if err != nil {
		return fmt.Errorf("receipts: resolve buyer key: %w", err)
	}
	sellerKey, err := s.keys(ctx, r.SellerID)
	if err != nil {
		return fmt.Errorf("receipts: resolve seller key: %w", err)
	}

	if err := Verify(r, buyerKey, sellerKey); err != nil {
		metrics.SignatureFailuresTotal.WithLabelValues("receipt").Inc()
		return err
	}

	hash, err := PayloadHashHex(r)
	if err != nil {
		return err
	}
	r.PayloadHash = hash

	if err := s.store.Create(ctx, r); err != nil {
		return err
	}
	metrics.ReceiptsIssuedTotal.Inc()
	return nil
}

// Get returns a receipt by transaction id.
func (s *Service) Get(ctx context.Context, transactionID string) (*Receipt, error) {
	return s.store.Get(ctx, transactionID)
}

// ListByAgent returns receipts where the agent is either buyer or seller.
func (s *Service) ListByAgent(ctx context.Context, agentID string, limit int) ([]*Receipt, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListByAgent(ctx, agentID, limit)
}

// ListBySession returns receipts for a negotiation session.
func (s *Service) ListBySession(ctx context.Context, sessionID string) ([]*Receipt, error) {
	return s.store.ListBySession(ctx, sessionID)
}

// VerifyStored re-checks a stored receipt's signatures against the current
// directory keys.
func (s *Service) VerifyStored(ctx context.Context, transactionID string) (*VerifyResponse, error) {
	r, err := s.store.Get(ctx, transactionID)
	if err != nil {
		return &VerifyResponse{
			Valid:         false,
			TransactionID: transactionID,
			Error:         ErrReceiptNotFound.Error(),
		}, nil
	}

	buyerKey, err := s.keys(ctx, r.BuyerID)
	if err != nil {
		return nil, fmt.Errorf("receipts: resolve buyer key: %w", err)
	}
	sellerKey, err := s.keys(ctx, r.SellerID)
	if err != nil {
		return nil, fmt.Errorf("receipts: resolve seller key: %w", err)
	}

	resp := &VerifyResponse{TransactionID: transactionID}
	if err := Verify(r, buyerKey, sellerKey); err != nil {
		resp.Error = err.Error()
		return resp, nil
	}
	resp.Valid = true
	return resp, nil
}
