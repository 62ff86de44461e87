// Package dirclient is the HTTP client agents use to talk to the trust
// directory: registration, lookup, and capability-based discovery. Discovery
// filtering and ranking happen client-side; the directory only serves the
// full agent list.
package dirclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/amorce/marketplace/internal/circuitbreaker"
	"github.com/amorce/marketplace/internal/directory"
	"github.com/amorce/marketplace/internal/retry"
)

var (
	ErrUnauthorized = errors.New("dirclient: admin key rejected")
	ErrNotFound     = errors.New("dirclient: agent not found")
	ErrInvalid      = errors.New("dirclient: directory rejected the request")
	ErrUnreachable  = errors.New("dirclient: directory unreachable")
	ErrCircuitOpen  = errors.New("dirclient: directory circuit open")
)

const (
	defaultTimeout  = 10 * time.Second
	defaultAttempts = 3
	defaultBackoff  = 200 * time.Millisecond

	// breakerKey is the single circuit key; the client talks to one directory.
	breakerKey       = "directory"
	breakerThreshold = 5
	breakerOpenFor   = 30 * time.Second
)

// Client is a pure HTTP client for the trust directory API.
type Client struct {
	baseURL    string
	adminKey   string
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
}

// New creates a directory client. adminKey may be empty for read-only use.
func New(baseURL, adminKey string) *Client {
	return &Client{
		baseURL:  baseURL,
		adminKey: adminKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		breaker: circuitbreaker.New(breakerThreshold, breakerOpenFor),
	}
}

// Query narrows a Discover call. Zero values match everything.
type Query struct {
	Capability string
	Role       directory.Role
	MinTrust   float64
}

// Register registers or re-registers an agent profile.
func (c *Client) Register(ctx context.Context, req directory.RegisterRequest) (*directory.RegisterResponse, error) {
	var resp directory.RegisterResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/agents", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Lookup fetches a single agent profile by id.
func (c *Client) Lookup(ctx context.Context, agentID string) (*directory.AgentProfile, error) {
	var profile directory.AgentProfile
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/agents/"+agentID, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Discover lists agents matching the query, ranked by trust score descending,
// then transaction count descending, then agent id. Returns an empty slice
// when nothing matches.
func (c *Client) Discover(ctx context.Context, q Query) ([]*directory.AgentProfile, error) {
	var list directory.ListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/agents", nil, &list); err != nil {
		return nil, err
	}

	matched := make([]*directory.AgentProfile, 0, len(list.Agents))
	for _, p := range list.Agents {
		if q.Role != "" && p.Role != q.Role {
			continue
		}
		if q.Capability != "" && !p.HasCapability(q.Capability) {
			continue
		}
		if p.TrustScore < q.MinTrust {
			continue
		}
		matched = append(matched, p)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].TrustScore != matched[j].TrustScore {
			return matched[i].TrustScore > matched[j].TrustScore
		}
		if matched[i].TotalTransactions != matched[j].TotalTransactions {
			return matched[i].TotalTransactions > matched[j].TotalTransactions
		}
		return matched[i].AgentID < matched[j].AgentID
	})
	return matched, nil
}

// RecordTransaction reports a trade outcome so the directory updates both
// parties' reputation.
func (c *Client) RecordTransaction(ctx context.Context, agentID string, req directory.RecordTransactionRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/api/v1/agents/"+agentID+"/transactions", req, nil)
}

// SetTrust overwrites an agent's trust score. Admin-only; used to seed demo
// reputations.
func (c *Client) SetTrust(ctx context.Context, agentID string, score float64) error {
	return c.doJSON(ctx, http.MethodPut, "/api/v1/agents/"+agentID+"/trust",
		directory.SetTrustRequest{TrustScore: score}, nil)
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doJSON performs a request with retries on network errors and 5xx responses.
// 4xx responses are permanent and map onto the package error values.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("dirclient: marshal request: %w", err)
		}
	}

	if !c.breaker.Allow(breakerKey) {
		return ErrCircuitOpen
	}

	err := retry.Do(ctx, defaultAttempts, defaultBackoff, func() error {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return retry.Permanent(fmt.Errorf("%w: %v", ErrInvalid, err))
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.adminKey != "" {
			req.Header.Set("X-Admin-Key", c.adminKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: read response: %v", ErrUnreachable, err)
		}

		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: directory returned %d", ErrUnreachable, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return retry.Permanent(statusError(resp.StatusCode, respBody))
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return retry.Permanent(fmt.Errorf("%w: decode response: %v", ErrInvalid, err))
			}
		}
		return nil
	})
	// Only transport-level failures count against the circuit; 4xx responses
	// mean the directory is up and disagreeing.
	if errors.Is(err, ErrUnreachable) {
		c.breaker.RecordFailure(breakerKey)
	} else {
		c.breaker.RecordSuccess(breakerKey)
	}
	return err
}

func statusError(code int, body []byte) error {
	var apiErr apiError
	msg := string(body)
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		msg = apiErr.Message
	}

	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	default:
		return fmt.Errorf("%w (%d): %s", ErrInvalid, code, msg)
	}
}
