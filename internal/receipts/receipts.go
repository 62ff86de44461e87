// Package receipts produces double-signed proof of agreement.
//
// Every accepted negotiation ends in a receipt carrying both parties'
// ed25519 signatures over the same canonical payload. Either party, or any
// third party holding the public keys, can verify it independently. A receipt
// with one signature proves nothing; verification requires both.
package receipts

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amorce/marketplace/internal/identity"
	"github.com/amorce/marketplace/internal/idgen"
	"github.com/amorce/marketplace/internal/money"
)

var (
	ErrReceiptNotFound  = errors.New("receipts: not found")
	ErrMissingSignature = errors.New("receipts: both signatures required")
	ErrBadSignature     = errors.New("receipts: signature verification failed")
	ErrInvalidReceipt   = errors.New("receipts: invalid receipt")
)

// Receipt is a double-signed record of an agreed trade.
type Receipt struct {
	TransactionID   string       `json:"transaction_id"`
	SessionID       string       `json:"session_id,omitempty"` // bookkeeping, not part of the signed payload
	BuyerID         string       `json:"buyer_id"`
	SellerID        string       `json:"seller_id"`
	FinalPrice      money.Amount `json:"final_price"`
	ItemDescription string       `json:"item_description"`
	Timestamp       time.Time    `json:"timestamp"`
	BuyerSignature  string       `json:"buyer_signature"`  // hex ed25519 over the canonical payload
	SellerSignature string       `json:"seller_signature"` // hex ed25519 over the canonical payload
	PayloadHash     string       `json:"payload_hash"`     // SHA-256 of the canonical payload
	CreatedAt       time.Time    `json:"created_at"`
}

// VerifyResponse is the result of receipt verification.
type VerifyResponse struct {
	Valid         bool   `json:"valid"`
	TransactionID string `json:"transaction_id"`
	Error         string `json:"error,omitempty"`
}

// Store persists receipts.
type Store interface {
	Create(ctx context.Context, receipt *Receipt) error
	Get(ctx context.Context, transactionID string) (*Receipt, error)
	ListByAgent(ctx context.Context, agentID string, limit int) ([]*Receipt, error)
	ListBySession(ctx context.Context, sessionID string) ([]*Receipt, error)
}

// receiptPayload is the canonical struct both parties sign.
// Field order must be deterministic (JSON marshalling of struct is by field order).
type receiptPayload struct {
	BuyerID         string `json:"buyer_id"`
	FinalPrice      string `json:"final_price"`
	ItemDescription string `json:"item_description"`
	SellerID        string `json:"seller_id"`
	Timestamp       string `json:"timestamp"`
	TransactionID   string `json:"transaction_id"`
}

// Build creates an unsigned receipt for an agreed trade.
func Build(sessionID, buyerID, sellerID string, finalPrice money.Amount, item string) *Receipt {
	now := time.Now().UTC()
	return &Receipt{
		TransactionID:   idgen.WithPrefix("tx_"),
		SessionID:       sessionID,
		BuyerID:         buyerID,
		SellerID:        sellerID,
		FinalPrice:      finalPrice,
		ItemDescription: item,
		Timestamp:       now,
		CreatedAt:       now,
	}
}

// CanonicalPayload returns the byte string both parties sign.
func CanonicalPayload(r *Receipt) ([]byte, error) {
	payload := receiptPayload{
		BuyerID:         r.BuyerID,
		FinalPrice:      r.FinalPrice.String(),
		ItemDescription: r.ItemDescription,
		SellerID:        r.SellerID,
		Timestamp:       r.Timestamp.UTC().Format(time.RFC3339Nano),
		TransactionID:   r.TransactionID,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal payload: %v", ErrInvalidReceipt, err)
	}
	return data, nil
}

// SignAsBuyer attaches the buyer's signature over the canonical payload.
func (r *Receipt) SignAsBuyer(id *identity.Identity) error {
	sig, err := signPayload(r, id)
	if err != nil {
		return err
	}
	r.BuyerSignature = sig
	return nil
}

// SignAsSeller attaches the seller's signature over the canonical payload.
func (r *Receipt) SignAsSeller(id *identity.Identity) error {
	sig, err := signPayload(r, id)
	if err != nil {
		return err
	}
	r.SellerSignature = sig
	return nil
}

func signPayload(r *Receipt, id *identity.Identity) (string, error) {
	data, err := CanonicalPayload(r)
	if err != nil {
		return "", err
	}
	return id.SignHex(data)
}

// Verify checks both signatures against the given public keys. A receipt is
// valid only when buyer and seller signatures both verify.
func Verify(r *Receipt, buyerPubHex, sellerPubHex string) error {
	if r.BuyerSignature == "" || r.SellerSignature == "" {
		return ErrMissingSignature
	}
	data, err := CanonicalPayload(r)
	if err != nil {
		return err
	}
	if !identity.VerifyHex(buyerPubHex, data, r.BuyerSignature) {
		return fmt.Errorf("%w: buyer signature", ErrBadSignature)
	}
	if !identity.VerifyHex(sellerPubHex, data, r.SellerSignature) {
		return fmt.Errorf("%w: seller signature", ErrBadSignature)
	}
	return nil
}

// PayloadHashHex returns the SHA-256 of the canonical payload as hex.
func PayloadHashHex(r *Receipt) (string, error) {
	data, err := CanonicalPayload(r)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), nil
}
