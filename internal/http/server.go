// Package http serves the JSON API of the billing service.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"immo/internal/log"
	"immo/internal/metrics"
	"immo/internal/middleware/ratelimit"
	"immo/internal/middleware/security"
	"immo/internal/middleware/trace"
	"immo/internal/services"
)

// Deps are the services behind the API. Ready is optional and checked by
// /readyz.
type Deps struct {
	Statements *services.StatementService
	Portfolio  *services.PortfolioService
	Overview   *services.OverviewService
	Ready      func(ctx context.Context) error
	Logger     *log.Logger
	RateLimit  ratelimit.Config
}

type Server struct {
	http.Server
	statements *services.StatementService
	portfolio  *services.PortfolioService
	overview   *services.OverviewService
	ready      func(ctx context.Context) error
	logger     *log.Logger
	started    time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		statements:       deps.Statements,
		portfolio:        deps.Portfolio,
		overview:         deps.Overview,
		ready:            deps.Ready,
		logger:           logger,
		started:          time.Now(),
		rateLimiter:      ratelimit.NewLimiter(deps.RateLimit),
		securityDetector: security.NewDetector(),
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, ratelimit.IsWrite, s.onRateLimited)

	// trace must stay outermost so it sees the route pattern set by mux.
	s.Handler = s.traceMiddleware.Middleware(headers.Middleware(limit(s.detect(mux))))
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/properties", s.handleListProperties)
	mux.HandleFunc("POST /api/properties", s.handleCreateProperty)
	mux.HandleFunc("GET /api/properties/{id}", s.handleGetProperty)
	mux.HandleFunc("PUT /api/properties/{id}", s.handleUpdateProperty)
	mux.HandleFunc("DELETE /api/properties/{id}", s.handleDeleteProperty)
	mux.HandleFunc("GET /api/properties/{id}/overview", s.handlePropertyOverview)

	mux.HandleFunc("GET /api/tenants", s.handleListTenants)
	mux.HandleFunc("POST /api/tenants", s.handleCreateTenant)
	mux.HandleFunc("GET /api/tenants/{id}", s.handleGetTenant)
	mux.HandleFunc("PUT /api/tenants/{id}", s.handleUpdateTenant)
	mux.HandleFunc("DELETE /api/tenants/{id}", s.handleDeleteTenant)
	mux.HandleFunc("POST /api/tenants/{id}/status", s.handleTenantStatus)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("PUT /api/categories/{id}", s.handleSaveCategory)

	mux.HandleFunc("GET /api/maintenance", s.handleListTasks)
	mux.HandleFunc("POST /api/maintenance", s.handleCreateTask)
	mux.HandleFunc("PUT /api/maintenance/{id}", s.handleUpdateTask)
	mux.HandleFunc("POST /api/maintenance/{id}/status", s.handleTaskStatus)

	mux.HandleFunc("POST /api/billing/preview", s.handleBillingPreview)
	mux.HandleFunc("POST /api/billing/run", s.handleBillingRun)

	mux.HandleFunc("GET /api/statements", s.handleListStatements)
	mux.HandleFunc("GET /api/statements/export.csv", s.handleExportCSV)
	mux.HandleFunc("GET /api/statements/{id}", s.handleGetStatement)
	mux.HandleFunc("POST /api/statements/{id}/status", s.handleStatementStatus)
	mux.HandleFunc("GET /api/statements/{id}/export.xlsx", s.handleExportXLSX)

	mux.HandleFunc("GET /api/overview", s.handlePortfolioOverview)
}

// detect logs suspicious requests. They are served normally; blocking is
// left to the reverse proxy.
func (s *Server) detect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.securityDetector.DetectSuspiciousRequest(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.UserAgent())
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, please try again later"})
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
