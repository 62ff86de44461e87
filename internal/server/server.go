// Package server wires the trust directory, negotiation engine, receipts
// and approval queue into a single HTTP server.
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/amorce/marketplace/internal/approval"
	"github.com/amorce/marketplace/internal/config"
	"github.com/amorce/marketplace/internal/directory"
	"github.com/amorce/marketplace/internal/health"
	"github.com/amorce/marketplace/internal/logging"
	"github.com/amorce/marketplace/internal/metrics"
	"github.com/amorce/marketplace/internal/negotiation"
	"github.com/amorce/marketplace/internal/ratelimit"
	"github.com/amorce/marketplace/internal/realtime"
	"github.com/amorce/marketplace/internal/receipts"
	"github.com/amorce/marketplace/internal/security"
	"github.com/amorce/marketplace/internal/traces"
	"github.com/amorce/marketplace/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg       *config.Config
	directory *directory.Service
	sessions  *negotiation.Service
	receipts  *receipts.Service
	signers   *negotiation.SignerRegistry
	decider   *approval.ManualDecider

	sessionTimer *negotiation.Timer
	realtimeHub  *realtime.Hub
	rateLimiter  *ratelimit.Limiter
	healthChecks *health.Registry

	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run
	stopTracing  func(context.Context) error

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:          cfg,
		logger:       logging.New(cfg.LogLevel, cfg.LogFormat),
		healthChecks: health.NewRegistry(),
	}

	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	var (
		agentStore   directory.Store
		sessionStore negotiation.Store
		receiptStore receipts.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		agents := directory.NewPostgresStore(db)
		if err := agents.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate agent store: %w", err)
		}
		agentStore = agents

		sess := negotiation.NewPostgresStore(db)
		if err := sess.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate session store: %w", err)
		}
		sessionStore = sess

		rcpt := receipts.NewPostgresStore(db)
		if err := rcpt.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate receipt store: %w", err)
		}
		receiptStore = rcpt

		s.healthChecks.Register("database", func(ctx context.Context) health.Status {
			st := health.Status{Name: "database", Healthy: true}
			if err := db.PingContext(ctx); err != nil {
				st.Healthy = false
				st.Detail = err.Error()
			}
			return st
		})
	} else {
		agentStore = directory.NewMemoryStore()
		sessionStore = negotiation.NewMemoryStore()
		receiptStore = receipts.NewMemoryStore()
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	// Trust directory
	s.directory = directory.NewService(agentStore)

	// Receipts look up signing keys through the directory so a revoked or
	// re-registered key invalidates old signatures consistently.
	s.receipts = receipts.NewService(receiptStore, func(ctx context.Context, agentID string) (string, error) {
		profile, err := s.directory.Get(ctx, agentID)
		if err != nil {
			return "", err
		}
		return profile.PublicKey, nil
	})

	// Human approval queue shared by both gates. Buyers and sellers gate
	// different actions but resolve through the same pending list.
	s.decider = approval.NewManualDecider()
	buyerGate := approval.NewGate(s.decider, cfg.BuyerHITLActions)
	sellerGate := approval.NewGate(s.decider, cfg.SellerHITLActions)

	// Realtime hub for WebSocket streaming
	s.realtimeHub = realtime.NewHub(s.logger)

	// Negotiation engine
	s.signers = negotiation.NewSignerRegistry()
	s.sessions = negotiation.NewService(sessionStore, &directoryProfiles{s.directory}, s.signers, cfg.CounterMarkup).
		WithReceipts(s.receipts).
		WithGates(buyerGate, sellerGate).
		WithTrustPenalty(negotiation.TrustPenalty{
			Margin:        cfg.TrustPenaltyMargin,
			LowTrustFloor: cfg.LowTrustFloor,
		}).
		WithTradeRecorder(s.directory).
		WithTimeout(cfg.SessionTimeout).
		WithNotifier(s.realtimeHub)
	s.sessionTimer = negotiation.NewTimer(s.sessions, s.logger)

	s.healthChecks.Register("realtime", func(ctx context.Context) health.Status {
		stats := s.realtimeHub.Stats()
		return health.Status{
			Name:    "realtime",
			Healthy: true,
			Detail:  fmt.Sprintf("%v clients", stats["connectedClients"]),
		}
	})

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// directoryProfiles adapts the directory service to the negotiation engine's
// profile lookups.
type directoryProfiles struct {
	svc *directory.Service
}

func (d *directoryProfiles) Lookup(ctx context.Context, agentID string) (*directory.AgentProfile, error) {
	return d.svc.Get(ctx, agentID)
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	rlCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPS > 0 {
		rlCfg.RequestsPerMinute = s.cfg.RateLimitRPS * 60
		rlCfg.BurstSize = s.cfg.RateLimitRPS * 2
	}
	s.rateLimiter = ratelimit.New(rlCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithLogger(c.Request.Context(), s.logger.With("request_id", requestID))
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// API info
	s.router.GET("/api", s.infoHandler)

	// WebSocket for real-time streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	// V1 API group
	v1 := s.router.Group("/api/v1")

	directory.NewHandler(s.directory, s.cfg.DirectoryAdminKey).RegisterRoutes(v1)
	negotiation.NewHandler(s.sessions).RegisterRoutes(v1)
	receipts.NewHandler(s.receipts).RegisterRoutes(v1)
	approval.NewHandler(s.decider).RegisterRoutes(v1)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.healthChecks.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"version":   "0.1.0",
		"checks":    statuses,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "marketplace",
		"version": "0.1.0",
		"endpoints": gin.H{
			"agents":    "/api/v1/agents",
			"sessions":  "/api/v1/sessions",
			"receipts":  "/api/v1/receipts",
			"approvals": "/api/v1/approvals",
			"websocket": "/ws",
		},
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the server and blocks until shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	stopTracing, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	s.stopTracing = stopTracing

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"env", s.cfg.Env,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Start session expiry timer
	go s.sessionTimer.Start(runCtx)

	// Sample DB pool stats into Prometheus
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, timer, stats)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	// Stop session expiry timer
	if s.sessionTimer != nil {
		s.sessionTimer.Stop()
		s.logger.Info("session timer stopped")
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Flush pending trace spans
	if s.stopTracing != nil {
		if err := s.stopTracing(ctx); err != nil {
			s.logger.Error("trace shutdown error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Sessions returns the negotiation service, used by the demo runner.
func (s *Server) Sessions() *negotiation.Service {
	return s.sessions
}

// Signers returns the in-process signing key registry.
func (s *Server) Signers() *negotiation.SignerRegistry {
	return s.signers
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
