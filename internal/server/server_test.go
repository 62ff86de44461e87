package server

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amorce/marketplace/internal/config"
	"github.com/amorce/marketplace/internal/money"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal config for testing (in-memory storage)
func testConfig() *config.Config {
	return &config.Config{
		Port:               "0",
		Env:                "development",
		LogLevel:           "error",
		DirectoryURL:       "http://localhost:8080",
		DirectoryAdminKey:  "test-admin-key",
		SessionTimeout:     time.Minute,
		CounterMarkup:      money.MustParse("50.00"),
		TrustPenaltyMargin: money.MustParse("25.00"),
		LowTrustFloor:      4.5,
		BuyerHITLActions:   []string{"authorize_payment"},
		SellerHITLActions:  []string{"confirm_sale"},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return s
}

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if resp["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp["status"])
	}
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/live", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/ready", nil)
	s.router.ServeHTTP(w, req)

	// Server hasn't called Run() so ready is false
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 (not ready), got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Route registration tests
// ---------------------------------------------------------------------------

func TestCoreRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := s.router.Routes()
	expected := []string{
		"GET:/health",
		"GET:/health/live",
		"GET:/health/ready",
		"GET:/metrics",
		"GET:/ws",
		"POST:/api/v1/agents",
		"GET:/api/v1/agents/:id",
		"PUT:/api/v1/agents/:id/trust",
		"POST:/api/v1/sessions",
		"GET:/api/v1/sessions/:id",
		"POST:/api/v1/sessions/:id/offers",
		"POST:/api/v1/sessions/:id/cancel",
		"GET:/api/v1/receipts/:id/verify",
		"GET:/api/v1/approvals",
		"POST:/api/v1/approvals/:id",
	}

	routeSet := make(map[string]bool)
	for _, route := range routes {
		routeSet[route.Method+":"+route.Path] = true
	}

	for _, e := range expected {
		if !routeSet[e] {
			t.Errorf("Core route %s not registered", e)
		}
	}
}

// ---------------------------------------------------------------------------
// Agent registration tests
// ---------------------------------------------------------------------------

func registerBody(t *testing.T, agentID, role string) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	return fmt.Sprintf(
		`{"agent_id":%q,"public_key":%q,"endpoint":"http://localhost:9000","metadata":{"name":"Test","role":%q,"capabilities":["sell_electronics"]}}`,
		agentID, hex.EncodeToString(pub), role,
	)
}

func TestAgentRegistration(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/agents", strings.NewReader(registerBody(t, "henri-electronics", "seller")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Key", "test-admin-key")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["status"] != "registered" {
		t.Errorf("Expected status 'registered', got %v", resp["status"])
	}

	// Profile is publicly readable
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/v1/agents/henri-electronics", nil)
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for profile lookup, got %d", w.Code)
	}
}

func TestAgentRegistrationRequiresAdminKey(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/agents", strings.NewReader(registerBody(t, "rogue-agent", "buyer")))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without admin key, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Request ID middleware
// ---------------------------------------------------------------------------

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	s.router.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID response header")
	}

	// Existing request IDs pass through
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	s.router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "upstream-id" {
		t.Errorf("Expected upstream request ID to pass through, got %q", got)
	}
}

// ---------------------------------------------------------------------------
// 404 test
// ---------------------------------------------------------------------------

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
