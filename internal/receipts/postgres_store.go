package receipts

import (
	"context"
	"database/sql"

	"github.com/amorce/marketplace/internal/money"
)

// PostgresStore persists receipts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed receipt store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the receipts table and indexes.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS receipts (
			transaction_id   VARCHAR(64) PRIMARY KEY,
			session_id       VARCHAR(64),
			buyer_id         VARCHAR(72) NOT NULL,
			seller_id        VARCHAR(72) NOT NULL,
			final_price      NUMERIC(20,2) NOT NULL CHECK (final_price > 0),
			item_description TEXT NOT NULL,
			agreed_at        TIMESTAMPTZ NOT NULL,
			buyer_signature  VARCHAR(128) NOT NULL,
			seller_signature VARCHAR(128) NOT NULL,
			payload_hash     VARCHAR(64) NOT NULL,
			created_at       TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_receipts_buyer_id ON receipts (buyer_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_receipts_seller_id ON receipts (seller_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_receipts_session_id ON receipts (session_id);
	`)
	return err
}

func (p *PostgresStore) Create(ctx context.Context, r *Receipt) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO receipts (
			transaction_id, session_id, buyer_id, seller_id,
			final_price, item_description, agreed_at,
			buyer_signature, seller_signature, payload_hash, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5::NUMERIC(20,2), $6, $7,
			$8, $9, $10, $11
		)`,
		r.TransactionID, nullString(r.SessionID), r.BuyerID, r.SellerID,
		r.FinalPrice.String(), r.ItemDescription, r.Timestamp,
		r.BuyerSignature, r.SellerSignature, r.PayloadHash, r.CreatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, transactionID string) (*Receipt, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT transaction_id, session_id, buyer_id, seller_id,
		       final_price, item_description, agreed_at,
		       buyer_signature, seller_signature, payload_hash, created_at
		FROM receipts WHERE transaction_id = $1`, transactionID)

	r, err := scanReceipt(row)
	if err == sql.ErrNoRows {
		return nil, ErrReceiptNotFound
	}
	return r, err
}

func (p *PostgresStore) ListByAgent(ctx context.Context, agentID string, limit int) ([]*Receipt, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT transaction_id, session_id, buyer_id, seller_id,
		       final_price, item_description, agreed_at,
		       buyer_signature, seller_signature, payload_hash, created_at
		FROM receipts
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanReceipts(rows)
}

func (p *PostgresStore) ListBySession(ctx context.Context, sessionID string) ([]*Receipt, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT transaction_id, session_id, buyer_id, seller_id,
		       final_price, item_description, agreed_at,
		       buyer_signature, seller_signature, payload_hash, created_at
		FROM receipts
		WHERE session_id = $1
		ORDER BY created_at DESC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanReceipts(rows)
}

// --- scanners ---

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReceipt(sc scanner) (*Receipt, error) {
	r := &Receipt{}
	var (
		sessionID sql.NullString
		price     string
	)

	err := sc.Scan(
		&r.TransactionID, &sessionID, &r.BuyerID, &r.SellerID,
		&price, &r.ItemDescription, &r.Timestamp,
		&r.BuyerSignature, &r.SellerSignature, &r.PayloadHash, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.SessionID = sessionID.String
	r.FinalPrice, err = money.Parse(price)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func scanReceipts(rows *sql.Rows) ([]*Receipt, error) {
	var result []*Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ Store = (*PostgresStore)(nil)
