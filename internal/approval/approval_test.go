package approval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestGate_UngatedActionPassesThrough(t *testing.T) {
	gate := NewGate(AutoDenier{}, []string{"confirm_sale"})

	dec, err := gate.Request(context.Background(), "sess_1", "agent_henri_7d3e1a5b", "check_inventory", nil)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if !dec.Approved {
		t.Error("ungated action must pass without a human")
	}
}

func TestGate_GatedActionUsesDecider(t *testing.T) {
	gate := NewGate(AutoApprover{}, []string{"confirm_sale"})

	dec, err := gate.Request(context.Background(), "sess_1", "agent_henri_7d3e1a5b", "confirm_sale", nil)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if !dec.Approved {
		t.Error("expected approval from AutoApprover")
	}
}

func TestGate_DenialAbortsAction(t *testing.T) {
	gate := NewGate(AutoDenier{Reason: "price looks wrong"}, []string{"authorize_payment"})

	dec, err := gate.Request(context.Background(), "sess_1", "agent_sarah_4f8a9b2c", "authorize_payment", nil)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if dec.Approved {
		t.Fatal("expected denial")
	}
	if dec.Reason != "price looks wrong" {
		t.Errorf("expected denial reason preserved, got %q", dec.Reason)
	}
}

func TestGate_Requires(t *testing.T) {
	gate := NewGate(AutoApprover{}, []string{"confirm_sale", "issue_refund"})

	if !gate.Requires("confirm_sale") {
		t.Error("expected confirm_sale to be gated")
	}
	if gate.Requires("share_address") {
		t.Error("share_address must not be gated for this set")
	}
}

func TestManualDecider_ResolveApproves(t *testing.T) {
	decider := NewManualDecider()
	gate := NewGate(decider, []string{"confirm_sale"})

	type result struct {
		dec Decision
		err error
	}
	done := make(chan result, 1)
	go func() {
		dec, err := gate.Request(context.Background(), "sess_1", "agent_henri_7d3e1a5b", "confirm_sale",
			map[string]any{"final_price": "450.00"})
		done <- result{dec, err}
	}()

	// Wait for the request to show up in the queue.
	var pending []*Request
	deadline := time.Now().Add(2 * time.Second)
	for {
		pending = decider.Pending()
		if len(pending) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("request never became pending")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if pending[0].Action != "confirm_sale" {
		t.Errorf("expected confirm_sale, got %s", pending[0].Action)
	}
	if err := decider.Resolve(pending[0].RequestID, true, "looks good"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	r := <-done
	if r.err != nil {
		t.Fatalf("Request failed: %v", r.err)
	}
	if !r.dec.Approved {
		t.Error("expected approval")
	}

	// Resolved requests are discarded, not kept.
	if len(decider.Pending()) != 0 {
		t.Error("expected empty pending queue after resolve")
	}
	if err := decider.Resolve(pending[0].RequestID, true, ""); !errors.Is(err, ErrUnknownRequest) {
		t.Errorf("expected ErrUnknownRequest for double resolve, got %v", err)
	}
}

func TestManualDecider_CancelledContextRejects(t *testing.T) {
	decider := NewManualDecider()
	gate := NewGate(decider, []string{"authorize_payment"})

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	var dec Decision
	var err error
	go func() {
		defer wg.Done()
		dec, err = gate.Request(ctx, "sess_1", "agent_sarah_4f8a9b2c", "authorize_payment", nil)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(decider.Pending()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("request never became pending")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	wg.Wait()

	if err == nil {
		t.Fatal("expected context error")
	}
	if dec.Approved {
		t.Error("cancelled request must not be approved")
	}
	if dec.Reason != "cancelled" {
		t.Errorf("expected cancelled reason, got %q", dec.Reason)
	}
}

func TestManualDecider_PendingOrderedOldestFirst(t *testing.T) {
	decider := NewManualDecider()

	reqs := []*Request{
		{RequestID: "appr_b", CreatedAt: time.Now().Add(-time.Minute)},
		{RequestID: "appr_a", CreatedAt: time.Now().Add(-2 * time.Minute)},
	}
	for _, r := range reqs {
		go decider.Decide(context.Background(), r) //nolint:errcheck
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(decider.Pending()) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("requests never became pending")
		}
		time.Sleep(5 * time.Millisecond)
	}

	pending := decider.Pending()
	if pending[0].RequestID != "appr_a" {
		t.Errorf("expected oldest request first, got %s", pending[0].RequestID)
	}

	for _, r := range pending {
		_ = decider.Resolve(r.RequestID, false, "test cleanup")
	}
}
