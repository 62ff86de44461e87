package negotiation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/amorce/marketplace/internal/approval"
	"github.com/amorce/marketplace/internal/directory"
	"github.com/amorce/marketplace/internal/identity"
	"github.com/amorce/marketplace/internal/idgen"
	"github.com/amorce/marketplace/internal/logging"
	"github.com/amorce/marketplace/internal/metrics"
	"github.com/amorce/marketplace/internal/money"
	"github.com/amorce/marketplace/internal/reasoning"
	"github.com/amorce/marketplace/internal/receipts"
	"github.com/amorce/marketplace/internal/syncutil"
	"github.com/amorce/marketplace/internal/traces"
)

// ErrApprovalDenied is returned when a human rejects a gated commit action.
// The session stays accepted; only the receipt is withheld.
var ErrApprovalDenied = errors.New("approval denied")

// ProfileDirectory resolves agent ids to their registered profiles. Keys and
// trust scores are re-fetched on every turn, never cached across turns.
type ProfileDirectory interface {
	Lookup(ctx context.Context, agentID string) (*directory.AgentProfile, error)
}

// TradeRecorder reports finished trades back to the trust directory.
type TradeRecorder interface {
	RecordTransaction(ctx context.Context, agentID string, req directory.RecordTransactionRequest) error
}

// Notifier receives negotiation lifecycle events, typically a websocket hub.
// Calls must not block; delivery is best-effort.
type Notifier interface {
	BroadcastSessionOpened(sessionID, buyerID, sellerID, item string)
	BroadcastOffer(sessionID, fromAgent string, price money.Amount, sequence int, reasoning string)
	BroadcastSessionClosed(sessionID, buyerID, sellerID, status, reason string)
	BroadcastReceipt(transactionID, sessionID, buyerID, sellerID string, finalPrice money.Amount)
}

// SignerRegistry holds the signing identities of locally hosted agents so the
// service can sign synthesized counter-offers and receipts on their behalf.
type SignerRegistry struct {
	mu  sync.RWMutex
	ids map[string]*identity.Identity
}

// NewSignerRegistry creates an empty registry.
func NewSignerRegistry() *SignerRegistry {
	return &SignerRegistry{ids: make(map[string]*identity.Identity)}
}

// Register adds an identity. Re-registering replaces the previous one.
func (r *SignerRegistry) Register(id *identity.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[id.AgentID()] = id
}

// Get returns the identity for an agent id.
func (r *SignerRegistry) Get(agentID string) (*identity.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.ids[agentID]
	return id, ok
}

// Service drives negotiation sessions.
type Service struct {
	store    Store
	profiles ProfileDirectory
	signers  *SignerRegistry
	locks    *syncutil.ContextShardedMutex

	receipts   *receipts.Service
	buyerGate  *approval.Gate
	sellerGate *approval.Gate
	reasoner   reasoning.Provider
	trades     TradeRecorder
	notifier   Notifier

	markup  money.Amount
	penalty TrustPenalty
	timeout time.Duration
}

// NewService creates a new negotiation service. markup is the fixed amount a
// seller adds to its minimum price when countering a lowball offer.
func NewService(store Store, profiles ProfileDirectory, signers *SignerRegistry, markup money.Amount) *Service {
	return &Service{
		store:    store,
		profiles: profiles,
		signers:  signers,
		locks:    syncutil.NewContextShardedMutex(),
		reasoner: reasoning.NewStaticProvider(),
		markup:   markup,
	}
}

// WithNotifier broadcasts lifecycle events to a realtime feed.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// WithReceipts enables receipt issuance on approved deals.
func (s *Service) WithReceipts(r *receipts.Service) *Service {
	s.receipts = r
	return s
}

// WithGates sets the human approval gates for the buyer and seller commit
// actions.
func (s *Service) WithGates(buyer, seller *approval.Gate) *Service {
	s.buyerGate = buyer
	s.sellerGate = seller
	return s
}

// WithReasoner replaces the default static justification provider.
func (s *Service) WithReasoner(p reasoning.Provider) *Service {
	s.reasoner = p
	return s
}

// WithTrustPenalty sets the margin widening applied against low-trust
// counterparties.
func (s *Service) WithTrustPenalty(p TrustPenalty) *Service {
	s.penalty = p
	return s
}

// WithTradeRecorder enables reporting finished trades to the directory.
func (s *Service) WithTradeRecorder(t TradeRecorder) *Service {
	s.trades = t
	return s
}

// WithTimeout sets the inactivity window after which CheckExpired closes a
// session.
func (s *Service) WithTimeout(d time.Duration) *Service {
	s.timeout = d
	return s
}

// Open creates a new session. The buyer moves first.
func (s *Service) Open(ctx context.Context, req OpenSessionRequest) (*Session, error) {
	ctx, span := traces.StartSpan(ctx, "negotiation.Open",
		traces.AgentID(req.BuyerID),
	)
	defer span.End()

	if req.BuyerID == "" || req.SellerID == "" || req.BuyerID == req.SellerID {
		return nil, ErrInvalidSession
	}
	if !req.Constraints.MaxBudget.IsPositive() {
		return nil, fmt.Errorf("%w: buyer max_budget must be positive", ErrInvalidSession)
	}

	// Both parties must be registered before a session can open.
	if _, err := s.profiles.Lookup(ctx, req.BuyerID); err != nil {
		return nil, fmt.Errorf("%w: buyer: %v", ErrInvalidSession, err)
	}
	if _, err := s.profiles.Lookup(ctx, req.SellerID); err != nil {
		return nil, fmt.Errorf("%w: seller: %v", ErrInvalidSession, err)
	}

	now := time.Now().UTC()
	session := &Session{
		ID:          idgen.WithPrefix("sess_"),
		BuyerID:     req.BuyerID,
		SellerID:    req.SellerID,
		Constraints: req.Constraints,
		Status:      StatusOpen,
		Turn:        req.BuyerID,
		CreatedAt:   now,
		UpdatedAt:   now,
		LastOfferAt: now,
	}

	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	metrics.ActiveSessions.Inc()
	if s.notifier != nil {
		s.notifier.BroadcastSessionOpened(session.ID, session.BuyerID, session.SellerID, session.Constraints.Item)
	}
	logging.L(ctx).Info("session opened",
		"session_id", session.ID,
		"buyer_id", session.BuyerID,
		"seller_id", session.SellerID,
	)
	return session, nil
}

// Get returns a session by id.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.store.GetSession(ctx, id)
}

// ListByAgent returns sessions where the agent is buyer or seller.
func (s *Service) ListByAgent(ctx context.Context, agentID string, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListByAgent(ctx, agentID, limit)
}

// SubmitOffer appends a signed offer to the session and runs the receiving
// side's evaluation. Counters are synthesized and resubmitted internally so
// the whole exchange resolves in one call. Submissions for the same session
// are strictly serialized.
func (s *Service) SubmitOffer(ctx context.Context, offer *Offer) (*Session, error) {
	if offer == nil || offer.SessionID == "" {
		return nil, ErrInvalidOffer
	}

	ctx, span := traces.StartSpan(ctx, "negotiation.SubmitOffer",
		traces.SessionID(offer.SessionID),
		traces.AgentID(offer.FromAgent),
		traces.Price(offer.Price.String()),
		traces.Sequence(offer.SequenceNumber),
	)
	defer span.End()

	unlock, err := s.locks.LockContext(ctx, offer.SessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.store.GetSession(ctx, offer.SessionID)
	if err != nil {
		return nil, err
	}
	return s.submitLocked(ctx, session, offer)
}

// submitLocked validates, appends, and evaluates one offer. Caller holds the
// session lock.
func (s *Service) submitLocked(ctx context.Context, session *Session, offer *Offer) (*Session, error) {
	if session.IsTerminal() {
		return nil, ErrSessionClosed
	}

	to, err := session.Counterparty(offer.FromAgent)
	if err != nil {
		return nil, err
	}
	if offer.ToAgent != to {
		return nil, fmt.Errorf("%w: to_agent must be the counterparty", ErrInvalidOffer)
	}
	if offer.FromAgent != session.Turn {
		return nil, ErrNotYourTurn
	}
	if !offer.Price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be positive", ErrInvalidOffer)
	}
	if offer.SequenceNumber <= session.LastSequence() {
		return nil, ErrOutOfOrder
	}

	// Keys come from the directory on every turn, never from the offer.
	sender, err := s.profiles.Lookup(ctx, offer.FromAgent)
	if err != nil {
		return nil, fmt.Errorf("resolve sender profile: %w", err)
	}
	if !VerifyOffer(offer, sender.PublicKey) {
		metrics.SignatureFailuresTotal.WithLabelValues("offer").Inc()
		return nil, ErrBadSignature
	}

	now := time.Now().UTC()
	if offer.OfferID == "" {
		offer.OfferID = idgen.WithPrefix("offer_")
	}
	if offer.CreatedAt.IsZero() {
		offer.CreatedAt = now
	}

	if err := s.store.AppendOffer(ctx, offer); err != nil {
		return nil, fmt.Errorf("failed to append offer: %w", err)
	}
	session.Offers = append(session.Offers, offer)
	session.Turn = to
	session.LastOfferAt = now
	session.UpdatedAt = now
	if err := s.store.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	if s.notifier != nil {
		s.notifier.BroadcastOffer(session.ID, offer.FromAgent, offer.Price, offer.SequenceNumber, offer.Reasoning)
	}
	logging.L(ctx).Info("offer submitted",
		"session_id", session.ID,
		"from", offer.FromAgent,
		"price", offer.Price.String(),
		"sequence", offer.SequenceNumber,
	)

	decision := s.evaluate(session, offer, sender.TrustScore)
	metrics.OffersTotal.WithLabelValues(string(decision.Verdict)).Inc()

	trace.SpanFromContext(ctx).SetAttributes(traces.Verdict(string(decision.Verdict)))

	switch decision.Verdict {
	case VerdictAccept:
		return s.acceptLocked(ctx, session, offer, sender.TrustScore)

	case VerdictCounter:
		counter, err := s.synthesizeCounter(ctx, session, offer, decision)
		if err != nil {
			return nil, err
		}
		return s.submitLocked(ctx, session, counter)

	case VerdictReject:
		s.close(ctx, session, StatusRejected, decision.Reason)
		return session, nil
	}
	return nil, fmt.Errorf("unknown verdict %q", decision.Verdict)
}

// evaluate runs the receiving party's evaluator against the incoming offer.
// senderTrust is the sender's directory trust score, advisory only.
func (s *Service) evaluate(session *Session, offer *Offer, senderTrust float64) Decision {
	if offer.ToAgent == session.SellerID {
		terms := SellerTerms{
			MinPrice:  session.Constraints.MinPrice,
			MinProfit: session.Constraints.MinProfit,
			CostBasis: session.Constraints.CostBasis,
			Markup:    s.markup,
		}
		return EvaluateAsSeller(offer.Price, terms, senderTrust, s.penalty)
	}
	return EvaluateAsBuyer(offer.Price, session.Constraints.MaxBudget)
}

// synthesizeCounter builds and signs the respondent's counter-offer.
func (s *Service) synthesizeCounter(ctx context.Context, session *Session, incoming *Offer, decision Decision) (*Offer, error) {
	role := "seller"
	if incoming.ToAgent == session.BuyerID {
		role = "buyer"
	}
	text, err := s.reasoner.Explain(ctx, reasoning.Decision{
		Role:         role,
		Verdict:      reasoning.VerdictCounter,
		Item:         session.Constraints.Item,
		OfferPrice:   incoming.Price,
		CounterPrice: decision.CounterPrice,
		Reason:       decision.Reason,
	})
	if err != nil {
		text = ""
	}

	counter := NewOffer(session.ID, incoming.ToAgent, incoming.FromAgent,
		decision.CounterPrice, session.LastSequence()+1, text)

	signer, ok := s.signers.Get(incoming.ToAgent)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSigner, incoming.ToAgent)
	}
	if err := SignOffer(counter, signer); err != nil {
		return nil, fmt.Errorf("sign counter offer: %w", err)
	}
	return counter, nil
}

// acceptLocked moves the session to accepted, walks both approval gates, and
// issues the double-signed receipt. A denied gate leaves the session accepted
// with no receipt.
func (s *Service) acceptLocked(ctx context.Context, session *Session, accepted *Offer, senderTrust float64) (*Session, error) {
	s.close(ctx, session, StatusAccepted, "")

	summary := map[string]any{
		"final_price":        accepted.Price.String(),
		"item_description":   session.Constraints.Item,
		"counterparty_trust": senderTrust,
	}

	if s.sellerGate != nil {
		dec, err := s.sellerGate.Request(ctx, session.ID, session.SellerID, "confirm_sale", summary)
		if err != nil {
			return session, err
		}
		if !dec.Approved {
			logging.L(ctx).Warn("sale confirmation denied",
				"session_id", session.ID, "reason", dec.Reason)
			return session, fmt.Errorf("%w: confirm_sale: %s", ErrApprovalDenied, dec.Reason)
		}
	}

	if s.buyerGate != nil {
		dec, err := s.buyerGate.Request(ctx, session.ID, session.BuyerID, "authorize_payment", summary)
		if err != nil {
			return session, err
		}
		if !dec.Approved {
			logging.L(ctx).Warn("payment authorization denied",
				"session_id", session.ID, "reason", dec.Reason)
			return session, fmt.Errorf("%w: authorize_payment: %s", ErrApprovalDenied, dec.Reason)
		}
	}

	if s.receipts == nil {
		return session, nil
	}

	ctx, receiptSpan := traces.StartSpan(ctx, "negotiation.IssueReceipt",
		traces.SessionID(session.ID),
	)
	defer receiptSpan.End()

	receipt, err := s.buildReceipt(session, accepted)
	if err != nil {
		return session, err
	}
	if err := s.receipts.Issue(ctx, receipt); err != nil {
		return session, fmt.Errorf("issue receipt: %w", err)
	}
	receiptSpan.SetAttributes(traces.TransactionID(receipt.TransactionID))
	if s.notifier != nil {
		s.notifier.BroadcastReceipt(receipt.TransactionID, session.ID, session.BuyerID, session.SellerID, accepted.Price)
	}

	session.TransactionID = receipt.TransactionID
	session.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateSession(ctx, session); err != nil {
		return session, fmt.Errorf("failed to update session: %w", err)
	}

	s.recordTrade(ctx, session, accepted.Price)
	logging.L(ctx).Info("deal closed",
		"session_id", session.ID,
		"transaction_id", receipt.TransactionID,
		"final_price", accepted.Price.String(),
	)
	return session, nil
}

func (s *Service) buildReceipt(session *Session, accepted *Offer) (*receipts.Receipt, error) {
	receipt := receipts.Build(session.ID, session.BuyerID, session.SellerID,
		accepted.Price, session.Constraints.Item)

	buyer, ok := s.signers.Get(session.BuyerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSigner, session.BuyerID)
	}
	seller, ok := s.signers.Get(session.SellerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSigner, session.SellerID)
	}

	if err := receipt.SignAsBuyer(buyer); err != nil {
		return nil, err
	}
	if err := receipt.SignAsSeller(seller); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (s *Service) recordTrade(ctx context.Context, session *Session, price money.Amount) {
	if s.trades == nil {
		return
	}
	err := s.trades.RecordTransaction(ctx, session.SellerID, directory.RecordTransactionRequest{
		CounterpartyID: session.BuyerID,
		Amount:         price.String(),
		Outcome:        "completed",
		Reference:      session.ID,
	})
	if err != nil {
		logging.L(ctx).Warn("failed to record trade", "session_id", session.ID, "error", err)
	}
}

// close moves an open session to a terminal state and records metrics.
// Caller holds the session lock.
func (s *Service) close(ctx context.Context, session *Session, status Status, reason string) {
	session.Status = status
	session.Reason = reason
	session.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateSession(ctx, session); err != nil {
		logging.L(ctx).Error("failed to close session", "session_id", session.ID, "error", err)
	}
	metrics.ActiveSessions.Dec()
	metrics.SessionsTotal.WithLabelValues(string(status)).Inc()
	metrics.NegotiationDuration.Observe(time.Since(session.CreatedAt).Seconds())
	if s.notifier != nil {
		s.notifier.BroadcastSessionClosed(session.ID, session.BuyerID, session.SellerID, string(status), reason)
	}
}

// Expire moves an open session to expired. Idempotent: an already terminal
// session is returned unchanged.
func (s *Service) Expire(ctx context.Context, sessionID, reason string) (*Session, error) {
	unlock, err := s.locks.LockContext(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsTerminal() {
		return session, nil
	}

	s.close(ctx, session, StatusExpired, reason)
	logging.L(ctx).Info("session expired", "session_id", session.ID, "reason", reason)
	return session, nil
}

// Cancel externally closes an open session. Mapped to the expired state.
func (s *Service) Cancel(ctx context.Context, sessionID string) (*Session, error) {
	return s.Expire(ctx, sessionID, "cancelled")
}

// CheckExpired closes sessions with no offer activity inside the timeout
// window. Called periodically by the timer.
func (s *Service) CheckExpired(ctx context.Context) {
	if s.timeout <= 0 {
		return
	}

	stale, err := s.store.ListStale(ctx, time.Now().UTC().Add(-s.timeout), 100)
	if err != nil {
		logging.L(ctx).Error("failed to list stale sessions", "error", err)
		return
	}
	for _, session := range stale {
		if _, err := s.Expire(ctx, session.ID, "timeout"); err != nil {
			logging.L(ctx).Error("failed to expire session", "session_id", session.ID, "error", err)
		}
	}
}
