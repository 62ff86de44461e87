// Package approval implements the human-in-the-loop gate.
//
// Certain actions (confirming a sale, authorizing a payment) must not run on
// agent judgment alone. The gate blocks the calling goroutine until a human
// decider resolves the request or the context is cancelled. A request is
// held in memory only while pending; once resolved it is discarded.
package approval

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/amorce/marketplace/internal/idgen"
	"github.com/amorce/marketplace/internal/metrics"
)

var ErrUnknownRequest = errors.New("approval: unknown or already resolved request")

// Status of an approval request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Request is a pending ask for a human decision.
type Request struct {
	RequestID string         `json:"request_id"`
	SessionID string         `json:"session_id"`
	AgentID   string         `json:"agent_id"`
	Action    string         `json:"action"` // e.g. "confirm_sale", "authorize_payment"
	Details   map[string]any `json:"details,omitempty"`
	Status    Status         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// Decision is the human's answer.
type Decision struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

// Decider resolves approval requests. Implementations block until a decision
// exists or ctx is done.
type Decider interface {
	Decide(ctx context.Context, req *Request) (Decision, error)
}

// Gate routes gated actions through a decider. Actions not in the required
// set pass straight through without a human.
type Gate struct {
	decider  Decider
	required map[string]bool
}

// NewGate creates a gate requiring human approval for the given actions.
func NewGate(decider Decider, requiredActions []string) *Gate {
	required := make(map[string]bool, len(requiredActions))
	for _, a := range requiredActions {
		required[a] = true
	}
	return &Gate{decider: decider, required: required}
}

// Requires reports whether the action needs human approval.
func (g *Gate) Requires(action string) bool {
	return g.required[action]
}

// Request asks for approval of an action. Ungated actions are approved
// immediately. Gated actions block until the decider answers; a cancelled
// context counts as a rejection.
func (g *Gate) Request(ctx context.Context, sessionID, agentID, action string, details map[string]any) (Decision, error) {
	if !g.required[action] {
		return Decision{Approved: true, Reason: "not_gated"}, nil
	}

	req := &Request{
		RequestID: idgen.WithPrefix("appr_"),
		SessionID: sessionID,
		AgentID:   agentID,
		Action:    action,
		Details:   details,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	metrics.PendingApprovals.Inc()
	defer metrics.PendingApprovals.Dec()

	dec, err := g.decider.Decide(ctx, req)
	if err != nil {
		metrics.ApprovalsTotal.WithLabelValues(action, "cancelled").Inc()
		return Decision{Approved: false, Reason: "cancelled"}, err
	}

	result := "rejected"
	if dec.Approved {
		result = "approved"
	}
	metrics.ApprovalsTotal.WithLabelValues(action, result).Inc()
	return dec, nil
}

// AutoApprover approves everything. Demo and test use only.
type AutoApprover struct{}

func (AutoApprover) Decide(_ context.Context, _ *Request) (Decision, error) {
	return Decision{Approved: true, Reason: "auto_approved"}, nil
}

// AutoDenier rejects everything with a fixed reason.
type AutoDenier struct {
	Reason string
}

func (d AutoDenier) Decide(_ context.Context, _ *Request) (Decision, error) {
	reason := d.Reason
	if reason == "" {
		reason = "denied"
	}
	return Decision{Approved: false, Reason: reason}, nil
}

type pendingRequest struct {
	req *Request
	ch  chan Decision
}

// ManualDecider queues requests for a real human. Decide blocks until
// Resolve is called for the request id or the context is cancelled.
type ManualDecider struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest
}

// NewManualDecider creates an empty decider.
func NewManualDecider() *ManualDecider {
	return &ManualDecider{pending: make(map[string]*pendingRequest)}
}

// Decide parks the request until Resolve answers it.
func (d *ManualDecider) Decide(ctx context.Context, req *Request) (Decision, error) {
	p := &pendingRequest{req: req, ch: make(chan Decision, 1)}

	d.mu.Lock()
	d.pending[req.RequestID] = p
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.pending, req.RequestID)
		d.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return Decision{Approved: false, Reason: "cancelled"}, ctx.Err()
	case dec := <-p.ch:
		return dec, nil
	}
}

// Pending lists requests still waiting on a decision, oldest first.
func (d *ManualDecider) Pending() []*Request {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*Request, 0, len(d.pending))
	for _, p := range d.pending {
		out = append(out, p.req)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Resolve answers a pending request.
func (d *ManualDecider) Resolve(requestID string, approved bool, reason string) error {
	d.mu.Lock()
	p, ok := d.pending[requestID]
	if ok {
		delete(d.pending, requestID)
	}
	d.mu.Unlock()

	if !ok {
		return ErrUnknownRequest
	}
	p.ch <- Decision{Approved: approved, Reason: reason}
	return nil
}
