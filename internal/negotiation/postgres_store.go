package negotiation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amorce/marketplace/internal/money"
)

// PostgresStore persists sessions and offers in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed session store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the negotiation tables and indexes.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS negotiation_sessions (
			id             VARCHAR(64) PRIMARY KEY,
			buyer_id       VARCHAR(72) NOT NULL,
			seller_id      VARCHAR(72) NOT NULL,
			constraints    JSONB NOT NULL,
			status         VARCHAR(16) NOT NULL CHECK (status IN ('open','accepted','rejected','expired')),
			reason         TEXT,
			turn           VARCHAR(72) NOT NULL,
			transaction_id VARCHAR(64),
			created_at     TIMESTAMPTZ NOT NULL,
			updated_at     TIMESTAMPTZ NOT NULL,
			last_offer_at  TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_buyer_id ON negotiation_sessions (buyer_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_sessions_seller_id ON negotiation_sessions (seller_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_sessions_stale ON negotiation_sessions (status, last_offer_at);

		CREATE TABLE IF NOT EXISTS negotiation_offers (
			offer_id        VARCHAR(64) PRIMARY KEY,
			session_id      VARCHAR(64) NOT NULL REFERENCES negotiation_sessions(id),
			from_agent      VARCHAR(72) NOT NULL,
			to_agent        VARCHAR(72) NOT NULL,
			price           NUMERIC(20,2) NOT NULL CHECK (price > 0),
			sequence_number INT NOT NULL CHECK (sequence_number >= 1),
			reasoning       TEXT,
			signature       VARCHAR(128) NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL,
			UNIQUE (session_id, sequence_number)
		);
		CREATE INDEX IF NOT EXISTS idx_offers_session_id ON negotiation_offers (session_id, sequence_number);
	`)
	return err
}

func (p *PostgresStore) CreateSession(ctx context.Context, s *Session) error {
	constraints, err := json.Marshal(s.Constraints)
	if err != nil {
		return fmt.Errorf("marshal constraints: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO negotiation_sessions (
			id, buyer_id, seller_id, constraints, status, reason,
			turn, transaction_id, created_at, updated_at, last_offer_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.BuyerID, s.SellerID, constraints, string(s.Status), nullString(s.Reason),
		s.Turn, nullString(s.TransactionID), s.CreatedAt, s.UpdatedAt, s.LastOfferAt,
	)
	return err
}

func (p *PostgresStore) GetSession(ctx context.Context, id string) (*Session, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, seller_id, constraints, status, reason,
		       turn, transaction_id, created_at, updated_at, last_offer_at
		FROM negotiation_sessions WHERE id = $1`, id)

	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	offers, err := p.listOffers(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Offers = offers
	return s, nil
}

func (p *PostgresStore) UpdateSession(ctx context.Context, s *Session) error {
	constraints, err := json.Marshal(s.Constraints)
	if err != nil {
		return fmt.Errorf("marshal constraints: %w", err)
	}

	res, err := p.db.ExecContext(ctx, `
		UPDATE negotiation_sessions
		SET constraints = $2, status = $3, reason = $4, turn = $5,
		    transaction_id = $6, updated_at = $7, last_offer_at = $8
		WHERE id = $1`,
		s.ID, constraints, string(s.Status), nullString(s.Reason), s.Turn,
		nullString(s.TransactionID), s.UpdatedAt, s.LastOfferAt,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *PostgresStore) AppendOffer(ctx context.Context, o *Offer) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO negotiation_offers (
			offer_id, session_id, from_agent, to_agent,
			price, sequence_number, reasoning, signature, created_at
		) VALUES ($1, $2, $3, $4, $5::NUMERIC(20,2), $6, $7, $8, $9)`,
		o.OfferID, o.SessionID, o.FromAgent, o.ToAgent,
		o.Price.String(), o.SequenceNumber, nullString(o.Reasoning), o.Signature, o.CreatedAt,
	)
	return err
}

func (p *PostgresStore) ListByAgent(ctx context.Context, agentID string, limit int) ([]*Session, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, buyer_id, seller_id, constraints, status, reason,
		       turn, transaction_id, created_at, updated_at, last_offer_at
		FROM negotiation_sessions
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return p.scanSessionsWithOffers(ctx, rows)
}

func (p *PostgresStore) ListStale(ctx context.Context, before time.Time, limit int) ([]*Session, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, buyer_id, seller_id, constraints, status, reason,
		       turn, transaction_id, created_at, updated_at, last_offer_at
		FROM negotiation_sessions
		WHERE status = 'open' AND last_offer_at < $1
		ORDER BY last_offer_at ASC
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return p.scanSessionsWithOffers(ctx, rows)
}

func (p *PostgresStore) listOffers(ctx context.Context, sessionID string) ([]*Offer, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT offer_id, session_id, from_agent, to_agent,
		       price, sequence_number, reasoning, signature, created_at
		FROM negotiation_offers
		WHERE session_id = $1
		ORDER BY sequence_number ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var offers []*Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

func (p *PostgresStore) scanSessionsWithOffers(ctx context.Context, rows *sql.Rows) ([]*Session, error) {
	var result []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, s := range result {
		offers, err := p.listOffers(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		s.Offers = offers
	}
	return result, nil
}

// --- scanners ---

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(sc scanner) (*Session, error) {
	s := &Session{}
	var (
		constraints   []byte
		status        string
		reason        sql.NullString
		transactionID sql.NullString
	)

	err := sc.Scan(
		&s.ID, &s.BuyerID, &s.SellerID, &constraints, &status, &reason,
		&s.Turn, &transactionID, &s.CreatedAt, &s.UpdatedAt, &s.LastOfferAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(constraints, &s.Constraints); err != nil {
		return nil, fmt.Errorf("unmarshal constraints: %w", err)
	}
	s.Status = Status(status)
	s.Reason = reason.String
	s.TransactionID = transactionID.String
	return s, nil
}

func scanOffer(sc scanner) (*Offer, error) {
	o := &Offer{}
	var (
		price     string
		reasoning sql.NullString
	)

	err := sc.Scan(
		&o.OfferID, &o.SessionID, &o.FromAgent, &o.ToAgent,
		&price, &o.SequenceNumber, &reasoning, &o.Signature, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Price, err = money.Parse(price)
	if err != nil {
		return nil, err
	}
	o.Reasoning = reasoning.String
	return o, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ Store = (*PostgresStore)(nil)
