package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	applog "gastos/internal/log"
	"gastos/internal/services"
)

// Server exposes the ledger as a JSON API for the dashboard and bot
// collaborators.
type Server struct {
	http.Server
	cards    *services.CardService
	balances *services.BalanceService
	alerts   *services.AlertService

	rateLimiter  *rateLimiter
	metrics      *securityMetrics
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, cards *services.CardService, balances *services.BalanceService, alerts *services.AlertService) *Server {
	mux := http.NewServeMux()
	logger := applog.New(applog.Config{Component: applog.ComponentHTTP})

	var handler http.Handler = mux
	handler = applog.RequestLogger(logger)(handler)
	handler = applog.Middleware(logger)(handler)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		cards:       cards,
		balances:    balances,
		alerts:      alerts,
		rateLimiter: newRateLimiter(),
		metrics:     &securityMetrics{},
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /api/accounts", s.protect(s.handleListAccounts))
	mux.HandleFunc("GET /api/accounts/{id}/statement", s.protect(s.handleStatement))
	mux.HandleFunc("GET /api/accounts/{id}/balance", s.protect(s.handleBalance))
	mux.HandleFunc("GET /api/accounts/{id}/installments", s.protect(s.handleInstallments))
	mux.HandleFunc("GET /api/balances", s.protect(s.handleBalances))
	mux.HandleFunc("GET /api/overview", s.protect(s.handleOverview))
	mux.HandleFunc("GET /api/alerts", s.protect(s.handleAlerts))

	mux.HandleFunc("POST /api/purchases", s.protect(s.handleCreatePurchase))
	mux.HandleFunc("DELETE /api/purchases/{id}", s.protect(s.handleDeletePurchase))
	mux.HandleFunc("POST /api/payments", s.protect(s.handleCreatePayment))
	mux.HandleFunc("DELETE /api/payments/{id}", s.protect(s.handleDeletePayment))
	mux.HandleFunc("POST /api/movements", s.protect(s.handleCreateMovement))

	return s
}

// protect adds security headers and rate limiting. Request logging is
// handled by the logging middleware wrapping the whole mux.
func (s *Server) protect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)

		// Writes are rate limited per client; reads stay cheap through the
		// statement cache.
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP, s.metrics) {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
				applog.FieldClientIP, clientIP, applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next(w, r)
	}
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
