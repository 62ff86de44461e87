// Package identity provides per-agent ed25519 signing identities.
//
// Each agent owns exactly one identity for the lifetime of the process. The
// private key never leaves this package; everything else in the marketplace
// handles only public keys and detached signatures.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrKeyDestroyed = errors.New("identity: signing key destroyed")
	ErrInvalidSeed  = errors.New("identity: seed must be 32 bytes")
)

// Identity holds one agent's ed25519 key pair.
type Identity struct {
	agentID string
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
}

// New generates a fresh identity for the given agent ID.
func New(agentID string) (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: key generation failed: %w", err)
	}
	return &Identity{agentID: agentID, priv: priv, pub: pub}, nil
}

// FromSeed derives a deterministic identity from a 32-byte seed.
// Used by tests and demos that need stable keys across runs.
func FromSeed(agentID string, seed []byte) (*Identity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, ErrInvalidSeed
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Identity{
		agentID: agentID,
		priv:    priv,
		pub:     priv.Public().(ed25519.PublicKey),
	}, nil
}

// AgentID returns the agent this identity belongs to.
func (id *Identity) AgentID() string { return id.agentID }

// PublicKey returns a copy of the verification key.
func (id *Identity) PublicKey() []byte {
	out := make([]byte, len(id.pub))
	copy(out, id.pub)
	return out
}

// PublicKeyHex returns the verification key as lowercase hex, the format
// the trust directory stores and serves.
func (id *Identity) PublicKeyHex() string {
	return hex.EncodeToString(id.pub)
}

// Sign signs the payload. It fails only if the key has been destroyed;
// callers treat that as fatal, not retryable.
func (id *Identity) Sign(payload []byte) ([]byte, error) {
	if id.priv == nil {
		return nil, ErrKeyDestroyed
	}
	return ed25519.Sign(id.priv, payload), nil
}

// SignHex signs the payload and returns the signature as hex.
func (id *Identity) SignHex(payload []byte) (string, error) {
	sig, err := id.Sign(payload)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig), nil
}

// Destroy zeroizes the private key. Subsequent Sign calls fail.
func (id *Identity) Destroy() {
	for i := range id.priv {
		id.priv[i] = 0
	}
	id.priv = nil
}

// Verify reports whether sig is a valid signature over payload by the holder
// of pub. It is a pure function usable by any third party: malformed keys or
// signatures return false, never an error or panic.
func Verify(pub, payload, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), payload, sig)
}

// VerifyHex is Verify over hex-encoded key and signature, the wire format
// offers and receipts carry.
func VerifyHex(pubHex string, payload []byte, sigHex string) bool {
	pub, err := hex.DecodeString(pubHex)
	if err != nil {
		return false
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	return Verify(pub, payload, sig)
}
