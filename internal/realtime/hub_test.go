package realtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/amorce/marketplace/internal/money"
)

func testHub() *Hub {
	return NewHub(slog.Default())
}

// ---------------------------------------------------------------------------
// shouldSend tests
// ---------------------------------------------------------------------------

func TestShouldSend_AllEvents(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{AllEvents: true}}

	event := &Event{Type: EventOfferSubmitted, Timestamp: time.Now()}
	if !h.shouldSend(client, event) {
		t.Error("AllEvents client should receive all events")
	}
}

func TestShouldSend_EventTypeFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		EventTypes: []EventType{EventOfferSubmitted, EventReceiptIssued},
	}}

	offerEvent := &Event{Type: EventOfferSubmitted}
	receiptEvent := &Event{Type: EventReceiptIssued}
	openedEvent := &Event{Type: EventSessionOpened}

	if !h.shouldSend(client, offerEvent) {
		t.Error("Should receive offer events")
	}
	if !h.shouldSend(client, receiptEvent) {
		t.Error("Should receive receipt events")
	}
	if h.shouldSend(client, openedEvent) {
		t.Error("Should NOT receive session_opened events")
	}
}

func TestShouldSend_AgentFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		AgentIDs: []string{"agent_sarah_4f8a9b2c"},
	}}

	matchingBuyer := &Event{
		Type: EventSessionOpened,
		Data: map[string]interface{}{"buyer_id": "agent_sarah_4f8a9b2c", "seller_id": "agent_henri_7d3e1a5b"},
	}
	notMatching := &Event{
		Type: EventSessionOpened,
		Data: map[string]interface{}{"buyer_id": "agent_marco_2b9c8d1e", "seller_id": "agent_henri_7d3e1a5b"},
	}
	matchingFrom := &Event{
		Type: EventOfferSubmitted,
		Data: map[string]interface{}{"from_agent": "agent_sarah_4f8a9b2c"},
	}
	matchingRegistered := &Event{
		Type: EventAgentRegistered,
		Data: map[string]interface{}{"agent_id": "agent_sarah_4f8a9b2c"},
	}

	if !h.shouldSend(client, matchingBuyer) {
		t.Error("Should match on buyer_id")
	}
	if h.shouldSend(client, notMatching) {
		t.Error("Should NOT match unrelated agents")
	}
	if !h.shouldSend(client, matchingFrom) {
		t.Error("Should match on from_agent")
	}
	if !h.shouldSend(client, matchingRegistered) {
		t.Error("Should match on agent_id")
	}
}

func TestShouldSend_SessionFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		SessionIDs: []string{"sess_abc123"},
	}}

	matching := &Event{
		Type: EventOfferSubmitted,
		Data: map[string]interface{}{"session_id": "sess_abc123"},
	}
	notMatching := &Event{
		Type: EventOfferSubmitted,
		Data: map[string]interface{}{"session_id": "sess_xyz789"},
	}

	if !h.shouldSend(client, matching) {
		t.Error("Should match on session_id")
	}
	if h.shouldSend(client, notMatching) {
		t.Error("Should NOT match other sessions")
	}
}

func TestShouldSend_MinPriceFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		MinPrice: 100.0,
	}}

	large := &Event{
		Type: EventOfferSubmitted,
		Data: map[string]interface{}{"price": "450.00"},
	}
	small := &Event{
		Type: EventOfferSubmitted,
		Data: map[string]interface{}{"price": "25.00"},
	}
	opened := &Event{
		Type: EventSessionOpened,
		Data: map[string]interface{}{"session_id": "sess_abc"},
	}

	if !h.shouldSend(client, large) {
		t.Error("Should receive large offer")
	}
	if h.shouldSend(client, small) {
		t.Error("Should NOT receive small offer")
	}
	if !h.shouldSend(client, opened) {
		t.Error("MinPrice filter should only apply to offer events")
	}
}

func TestShouldSend_EmptySubscription(t *testing.T) {
	h := testHub()

	// No filters, not AllEvents
	client := &Client{sub: Subscription{}}

	event := &Event{Type: EventOfferSubmitted}
	if !h.shouldSend(client, event) {
		t.Error("Empty subscription (no filters) should receive events")
	}
}

func TestShouldSend_NonMapData(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		AgentIDs: []string{"agent_sarah_4f8a9b2c"},
	}}

	event := &Event{
		Type: EventSessionExpired,
		Data: "string data not a map",
	}

	// Agent filter skips non-map data (can't extract ids), so event passes through
	if !h.shouldSend(client, event) {
		t.Error("Non-map data should pass through when agent filter can't extract ids")
	}
}

// ---------------------------------------------------------------------------
// Hub lifecycle tests
// ---------------------------------------------------------------------------

func TestHub_Stats_Initial(t *testing.T) {
	h := testHub()

	stats := h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients, got %v", stats["connectedClients"])
	}
	if stats["totalEvents"].(int64) != 0 {
		t.Errorf("Expected 0 total events, got %v", stats["totalEvents"])
	}
}

func TestHub_BroadcastAndStats(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	h.Broadcast(&Event{Type: EventOfferSubmitted, Timestamp: time.Now()})
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["totalEvents"].(int64) != 1 {
		t.Errorf("Expected 1 total event, got %v", stats["totalEvents"])
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["connectedClients"].(int) != 1 {
		t.Errorf("Expected 1 connected client, got %v", stats["connectedClients"])
	}
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak 1, got %v", stats["peakClients"])
	}

	h.unregister <- client
	time.Sleep(50 * time.Millisecond)

	stats = h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients after unregister, got %v", stats["connectedClients"])
	}
	// Peak should still be 1
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak still 1, got %v", stats["peakClients"])
	}
}

func TestHub_BroadcastToClient(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	h.BroadcastOffer("sess_abc123", "agent_sarah_4f8a9b2c", money.MustParse("450.00"), 1, "opening offer")

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for broadcast")
	}
}

func TestHub_SessionClosedEventTypes(t *testing.T) {
	h := testHub()

	cases := []struct {
		status string
		want   EventType
	}{
		{"accepted", EventSessionAccepted},
		{"rejected", EventSessionRejected},
		{"expired", EventSessionExpired},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}
	h.register <- client
	time.Sleep(50 * time.Millisecond)

	for _, tc := range cases {
		h.BroadcastSessionClosed("sess_abc", "agent_b", "agent_s", tc.status, "")
		select {
		case msg := <-client.send:
			if len(msg) == 0 {
				t.Errorf("%s: expected non-empty message", tc.status)
			}
		case <-time.After(time.Second):
			t.Errorf("%s: timeout waiting for broadcast", tc.status)
		}
	}
}

func TestHub_ContextCancellation(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
		// Hub stopped
	case <-time.After(2 * time.Second):
		t.Error("Hub did not stop after context cancellation")
	}
}

func TestHub_FilteredBroadcast(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// Client only wants receipts
	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{EventTypes: []EventType{EventReceiptIssued}},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	// Send an offer event (should be filtered out)
	h.Broadcast(&Event{Type: EventOfferSubmitted, Timestamp: time.Now()})
	time.Sleep(100 * time.Millisecond)

	select {
	case <-client.send:
		t.Error("Client should NOT receive offer event")
	default:
		// Good - filtered out
	}

	// Send a receipt event (should be received)
	h.BroadcastReceipt("tx_abc", "sess_abc", "agent_b", "agent_s", money.MustParse("500.00"))

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Client should receive receipt event")
	}
}
