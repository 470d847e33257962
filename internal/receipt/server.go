package receipt

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/zombor/receipt-insight/internal/metrics"
)

// Server handles HTTP requests for receipts
type Server struct {
	service        *Service
	basicAuth      BasicAuth
	corsOrigin     string
	limiter        *rate.Limiter
	metrics        metrics.Recorder
	metricsHandler http.Handler
	mux            *http.ServeMux
	httpServer     *http.Server
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// ServerConfig holds the optional parts of a Server
type ServerConfig struct {
	BasicAuth BasicAuth
	// CORSOrigin defaults to "*"
	CORSOrigin string
	// Limiter throttles the endpoints that call the language model; nil disables it
	Limiter *rate.Limiter
	Metrics metrics.Recorder
	// MetricsHandler serves GET /metrics when set
	MetricsHandler http.Handler
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, cfg ServerConfig) *Server {
	return NewServerWithMux(service, cfg, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, cfg ServerConfig, mux *http.ServeMux) *Server {
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	s := &Server{
		service:        service,
		basicAuth:      cfg.BasicAuth,
		corsOrigin:     cfg.CORSOrigin,
		limiter:        cfg.Limiter,
		metrics:        cfg.Metrics,
		metricsHandler: cfg.MetricsHandler,
		mux:            mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.basicAuth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.basicAuth.Password)) == 1
	return userOK && passOK
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Receipt Insight"`)
			writeError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// rateLimit rejects requests once the LLM budget is spent
func (s *Server) rateLimit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.metrics.RateLimited(route)
			slog.Warn("Rate limit exceeded", "route", route, "remote", r.RemoteAddr)
			w.Header().Set("Retry-After", "1")
			writeError(w, "Too many requests, please slow down", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// rateLimitMisses applies the LLM budget only when the receipt still needs extracting
func (s *Server) rateLimitMisses(route string, next http.HandlerFunc) http.HandlerFunc {
	limited := s.rateLimit(route, next)
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && s.service.HasInsight(r.Context(), r.PathValue("id")) {
			next(w, r)
			return
		}
		limited(w, r)
	}
}

// setCORSHeaders sets CORS headers on a response
func (s *Server) setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metricsHandler != nil {
		s.mux.Handle("GET /metrics", s.metricsHandler)
	}

	s.mux.HandleFunc("GET /api/receipts/{id}/file", s.requireAuth(s.handleGetReceiptFile))
	s.mux.HandleFunc("GET /api/receipts/{id}/insight", s.requireAuth(s.rateLimitMisses("insight", s.handleGetInsight)))
	s.mux.HandleFunc("GET /api/receipts/{id}/breakdown", s.requireAuth(s.rateLimitMisses("breakdown", s.handleGetBreakdown)))
	s.mux.HandleFunc("DELETE /api/receipts/{id}", s.requireAuth(s.handleDeleteReceipt))
	s.mux.HandleFunc("GET /api/receipts", s.requireAuth(s.handleListReceipts))
	s.mux.HandleFunc("POST /api/receipts", s.requireAuth(s.handleUploadReceipt))

	s.mux.HandleFunc("GET /api/breakdown", s.requireAuth(s.handleHistoryBreakdown))
	s.mux.HandleFunc("POST /api/ask", s.requireAuth(s.rateLimit("ask", s.handleAsk)))
	s.mux.HandleFunc("POST /api/categorize", s.requireAuth(s.rateLimit("categorize", s.handleCategorize)))
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.corsMiddleware(s.mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting server", "address", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(s.mux).ServeHTTP(w, r)
}
