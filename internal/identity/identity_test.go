package identity

import (
	"bytes"
	"errors"
	"testing"
)

func TestSignVerify(t *testing.T) {
	id, err := New("agent_sarah_test")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	payload := []byte(`{"price":"450.00"}`)
	sig, err := id.Sign(payload)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if !Verify(id.PublicKey(), payload, sig) {
		t.Error("expected signature to verify")
	}
}

func TestVerify_FlippedByteFails(t *testing.T) {
	id, _ := New("agent_test")
	payload := []byte("the agreed terms")
	sig, _ := id.Sign(payload)

	tampered := bytes.Clone(payload)
	tampered[0] ^= 0x01
	if Verify(id.PublicKey(), tampered, sig) {
		t.Error("tampered payload must not verify")
	}

	badSig := bytes.Clone(sig)
	badSig[0] ^= 0x01
	if Verify(id.PublicKey(), payload, badSig) {
		t.Error("tampered signature must not verify")
	}
}

func TestVerify_WrongKeyFails(t *testing.T) {
	a, _ := New("agent_a")
	b, _ := New("agent_b")
	payload := []byte("payload")
	sig, _ := a.Sign(payload)

	if Verify(b.PublicKey(), payload, sig) {
		t.Error("signature must not verify under a different key")
	}
}

func TestVerify_MalformedInputsReturnFalse(t *testing.T) {
	id, _ := New("agent_test")
	payload := []byte("payload")
	sig, _ := id.Sign(payload)

	if Verify([]byte("short"), payload, sig) {
		t.Error("short public key must not verify")
	}
	if Verify(id.PublicKey(), payload, []byte("short")) {
		t.Error("short signature must not verify")
	}
	if Verify(nil, nil, nil) {
		t.Error("nil inputs must not verify")
	}
}

func TestVerifyHex(t *testing.T) {
	id, _ := New("agent_test")
	payload := []byte("payload")
	sigHex, err := id.SignHex(payload)
	if err != nil {
		t.Fatalf("SignHex failed: %v", err)
	}

	if !VerifyHex(id.PublicKeyHex(), payload, sigHex) {
		t.Error("hex round trip should verify")
	}
	if VerifyHex("not-hex", payload, sigHex) {
		t.Error("invalid hex key must not verify")
	}
	if VerifyHex(id.PublicKeyHex(), payload, "zz") {
		t.Error("invalid hex signature must not verify")
	}
}

func TestFromSeed_Deterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, 32)
	a, err := FromSeed("agent_a", seed)
	if err != nil {
		t.Fatalf("FromSeed failed: %v", err)
	}
	b, _ := FromSeed("agent_a", seed)

	if a.PublicKeyHex() != b.PublicKeyHex() {
		t.Error("same seed must yield same public key")
	}

	if _, err := FromSeed("agent_b", []byte("too short")); !errors.Is(err, ErrInvalidSeed) {
		t.Errorf("expected ErrInvalidSeed, got %v", err)
	}
}

func TestSign_AfterDestroy(t *testing.T) {
	id, _ := New("agent_test")
	id.Destroy()

	if _, err := id.Sign([]byte("payload")); !errors.Is(err, ErrKeyDestroyed) {
		t.Errorf("expected ErrKeyDestroyed, got %v", err)
	}
}
