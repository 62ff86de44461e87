package directory

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

// PostgresStore persists agent profiles in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed directory store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Compile-time interface check
var _ Store = (*PostgresStore)(nil)

// Migrate creates the agents table and indexes.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS agents (
			agent_id           VARCHAR(72) PRIMARY KEY,
			public_key         VARCHAR(64) NOT NULL,
			role               VARCHAR(10) NOT NULL CHECK (role IN ('buyer','seller','')),
			name               VARCHAR(200),
			capabilities       TEXT[] NOT NULL DEFAULT '{}',
			endpoint           VARCHAR(500),
			trust_score        DOUBLE PRECISION NOT NULL DEFAULT 3.0 CHECK (trust_score BETWEEN 0 AND 5),
			total_transactions BIGINT NOT NULL DEFAULT 0 CHECK (total_transactions >= 0),
			status             VARCHAR(20) NOT NULL DEFAULT 'active',
			registered_at      TIMESTAMPTZ NOT NULL,
			updated_at         TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_agents_capabilities ON agents USING GIN (capabilities);
		CREATE INDEX IF NOT EXISTS idx_agents_trust ON agents (trust_score DESC, total_transactions DESC);
	`)
	return err
}

func (p *PostgresStore) CreateAgent(ctx context.Context, a *AgentProfile) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO agents (
			agent_id, public_key, role, name, capabilities, endpoint,
			trust_score, total_transactions, status, registered_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (agent_id) DO UPDATE SET
			name = EXCLUDED.name,
			capabilities = EXCLUDED.capabilities,
			endpoint = EXCLUDED.endpoint,
			updated_at = EXCLUDED.updated_at`,
		a.AgentID, a.PublicKey, string(a.Role), nullString(a.Name), pq.Array(a.Capabilities),
		nullString(a.Endpoint), a.TrustScore, a.TotalTransactions, a.Status,
		a.RegisteredAt, a.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) GetAgent(ctx context.Context, agentID string) (*AgentProfile, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT agent_id, public_key, role, name, capabilities, endpoint,
		       trust_score, total_transactions, status, registered_at, updated_at
		FROM agents WHERE agent_id = $1`, agentID)

	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, ErrAgentNotFound
	}
	return a, err
}

func (p *PostgresStore) UpdateAgent(ctx context.Context, a *AgentProfile) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE agents SET
			name = $2, capabilities = $3, endpoint = $4, updated_at = $5
		WHERE agent_id = $1`,
		a.AgentID, nullString(a.Name), pq.Array(a.Capabilities), nullString(a.Endpoint), a.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAgentNotFound
	}
	return nil
}

func (p *PostgresStore) ListAgents(ctx context.Context) ([]*AgentProfile, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT agent_id, public_key, role, name, capabilities, endpoint,
		       trust_score, total_transactions, status, registered_at, updated_at
		FROM agents
		ORDER BY agent_id ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*AgentProfile
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (p *PostgresStore) SetTrustScore(ctx context.Context, agentID string, score float64) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE agents SET
			trust_score = LEAST(5, GREATEST(0, $2::DOUBLE PRECISION)),
			updated_at = NOW()
		WHERE agent_id = $1`, agentID, score)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *PostgresStore) BumpTransactions(ctx context.Context, agentID string, delta int64, scoreAdjust float64) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE agents SET
			total_transactions = GREATEST(0, total_transactions + $2),
			trust_score = LEAST(5, GREATEST(0, trust_score + $3)),
			updated_at = NOW()
		WHERE agent_id = $1`, agentID, delta, scoreAdjust)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// --- scanners ---

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAgent(sc scanner) (*AgentProfile, error) {
	a := &AgentProfile{}
	var (
		role     string
		name     sql.NullString
		endpoint sql.NullString
		caps     pq.StringArray
	)

	err := sc.Scan(
		&a.AgentID, &a.PublicKey, &role, &name, &caps, &endpoint,
		&a.TrustScore, &a.TotalTransactions, &a.Status, &a.RegisteredAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Role = Role(role)
	a.Name = name.String
	a.Endpoint = endpoint.String
	a.Capabilities = []string(caps)
	return a, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAgentNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
