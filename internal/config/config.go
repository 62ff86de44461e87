// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/amorce/marketplace/internal/money"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Trust directory
	DirectoryURL      string // Base URL of the trust directory service
	DirectoryAdminKey string // X-Admin-Key for directory writes

	// Negotiation policy
	SessionTimeout     time.Duration // Inactivity window before a session expires
	CounterMarkup      money.Amount  // Added to min_price when countering a lowball offer
	TrustPenaltyMargin money.Amount  // Added to required profit for low-trust counterparties
	LowTrustFloor      float64       // Trust score below which the penalty margin applies

	// HITL policy: comma-separated action names requiring human approval
	BuyerHITLActions  []string
	SellerHITLActions []string

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint for traces (empty = disabled)

	// Security
	RateLimitRPS int
}

const (
	DefaultPort               = "8080"
	DefaultEnv                = "development"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
	DefaultDirectoryURL       = "http://localhost:8080"
	DefaultSessionTimeout     = 5 * time.Minute
	DefaultCounterMarkup      = "50.00"
	DefaultTrustPenaltyMargin = "25.00"
	DefaultLowTrustFloor      = 4.5
	DefaultRateLimit          = 100
	DefaultBuyerHITL          = "authorize_payment,share_address"
	DefaultSellerHITL         = "confirm_sale,issue_refund"
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	markup, err := money.Parse(getEnv("COUNTER_MARKUP", DefaultCounterMarkup))
	if err != nil {
		return nil, fmt.Errorf("invalid COUNTER_MARKUP: %w", err)
	}
	penalty, err := money.Parse(getEnv("TRUST_PENALTY_MARGIN", DefaultTrustPenaltyMargin))
	if err != nil {
		return nil, fmt.Errorf("invalid TRUST_PENALTY_MARGIN: %w", err)
	}
	timeout, err := time.ParseDuration(getEnv("SESSION_TIMEOUT", DefaultSessionTimeout.String()))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Port:               getEnv("PORT", DefaultPort),
		Env:                getEnv("ENV", DefaultEnv),
		LogLevel:           getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:          getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:        os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		DirectoryURL:       getEnv("TRUST_DIRECTORY_URL", DefaultDirectoryURL),
		DirectoryAdminKey:  os.Getenv("DIRECTORY_ADMIN_KEY"),
		SessionTimeout:     timeout,
		CounterMarkup:      markup,
		TrustPenaltyMargin: penalty,
		LowTrustFloor:      getEnvFloat("LOW_TRUST_FLOOR", DefaultLowTrustFloor),
		BuyerHITLActions:   splitList(getEnv("BUYER_HITL_ACTIONS", DefaultBuyerHITL)),
		SellerHITLActions:  splitList(getEnv("SELLER_HITL_ACTIONS", DefaultSellerHITL)),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		RateLimitRPS:       int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.DirectoryURL == "" {
		return fmt.Errorf("TRUST_DIRECTORY_URL is required")
	}
	if c.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive")
	}
	if !c.CounterMarkup.IsPositive() {
		return fmt.Errorf("COUNTER_MARKUP must be positive")
	}
	if c.TrustPenaltyMargin < 0 {
		return fmt.Errorf("TRUST_PENALTY_MARGIN must not be negative")
	}
	if c.LowTrustFloor < 0 || c.LowTrustFloor > 5 {
		return fmt.Errorf("LOW_TRUST_FLOOR must be between 0 and 5")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
