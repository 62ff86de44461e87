package main

import (
	"context"
	"testing"

	"github.com/amorce/marketplace/internal/dirclient"
	"github.com/amorce/marketplace/internal/directory"
)

func registerSeller(t *testing.T, svc *directory.Service, agentID, pubKey string, trust float64) {
	t.Helper()
	_, _, err := svc.Register(context.Background(), directory.RegisterRequest{
		AgentID:   agentID,
		PublicKey: pubKey,
		Metadata: directory.ProfileMetadata{
			Role:         directory.RoleSeller,
			Capabilities: []string{"sell_electronics"},
		},
	})
	if err != nil {
		t.Fatalf("register %s: %v", agentID, err)
	}
	if err := svc.SetTrust(context.Background(), agentID, trust); err != nil {
		t.Fatalf("set trust %s: %v", agentID, err)
	}
}

func TestLocalDirectory_DiscoverRanksLikeHTTPClient(t *testing.T) {
	svc := directory.NewService(directory.NewMemoryStore())
	dir := &localDirectory{svc: svc}

	key := func(b byte) string {
		out := make([]byte, 64)
		for i := range out {
			out[i] = b
		}
		return string(out)
	}
	registerSeller(t, svc, "agent_zara_9e2f4c6d", key('a'), 4.2)
	registerSeller(t, svc, "agent_henri_7d3e1a5b", key('b'), 4.8)
	registerSeller(t, svc, "agent_ada_1c5d7e9f", key('c'), 4.8)

	got, err := dir.Discover(context.Background(), dirclient.Query{
		Capability: "sell_electronics",
		Role:       directory.RoleSeller,
	})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 sellers, got %d", len(got))
	}

	// Trust descending, ties broken by agent id ascending.
	want := []string{"agent_ada_1c5d7e9f", "agent_henri_7d3e1a5b", "agent_zara_9e2f4c6d"}
	for i, id := range want {
		if got[i].AgentID != id {
			t.Errorf("rank %d: expected %s, got %s", i, id, got[i].AgentID)
		}
	}
}

func TestLocalDirectory_DiscoverHonorsMinTrust(t *testing.T) {
	svc := directory.NewService(directory.NewMemoryStore())
	dir := &localDirectory{svc: svc}

	key := func(b byte) string {
		out := make([]byte, 64)
		for i := range out {
			out[i] = b
		}
		return string(out)
	}
	registerSeller(t, svc, "agent_lowtrust_1a2b3c4d", key('d'), 3.9)

	got, err := dir.Discover(context.Background(), dirclient.Query{
		Capability: "sell_electronics",
		Role:       directory.RoleSeller,
		MinTrust:   4.5,
	})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no sellers below min trust, got %d", len(got))
	}
}
