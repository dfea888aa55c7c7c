// Package server provides the TubeDigest web page and JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/jonathan/tubedigest/internal/config"
	"github.com/jonathan/tubedigest/internal/controller"
	"github.com/jonathan/tubedigest/internal/gateway"
	"github.com/jonathan/tubedigest/internal/logging"
	"github.com/jonathan/tubedigest/internal/server/middleware"
	"github.com/jonathan/tubedigest/internal/server/ratelimit"
	"github.com/jonathan/tubedigest/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	sessions    *Sessions
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	page        *template.Template
	log         logging.Logger
	sessionTTL  time.Duration
}

// Config holds server configuration
type Config struct {
	Port        int
	Session     *config.SessionConfig
	RateLimit   *ratelimit.Config
	SessionIdle time.Duration
}

// New creates a new server instance. History for every session lives in kv.
func New(cfg Config, gw gateway.Summarizer, kv storage.KV, log logging.Logger) (*Server, error) {
	if gw == nil {
		return nil, errors.New("server: summarizer is required")
	}
	if kv == nil {
		return nil, errors.New("server: storage is required")
	}
	if cfg.Session == nil {
		return nil, errors.New("server: session config is required")
	}
	if log == nil {
		log = logging.NewNop()
	}

	page, err := parsePage()
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}

	s := &Server{
		sessions:    NewSessions(gw, kv, log, cfg.SessionIdle),
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		jwtService:  NewJWTService(cfg.Session),
		page:        page,
		log:         log,
		sessionTTL:  cfg.Session.TTL,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second, // long enough for a summary
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the full middleware-wrapped router.
func (s *Server) Handler() http.Handler {
	session := middleware.Session(s.jwtService.AsTokenService(), s.sessionTTL)
	withSession := func(h http.HandlerFunc) http.Handler { return session(h) }

	mux := http.NewServeMux()

	// Page
	mux.Handle("GET /{$}", withSession(s.handleIndex))
	mux.Handle("POST /summarize", withSession(s.handleSubmitForm))
	mux.Handle("POST /history/view", withSession(s.handleViewHistory))
	mux.Handle("POST /history/clear", withSession(s.handleClearHistory))

	// JSON API
	mux.Handle("POST /api/summarize", withSession(s.handleAPISummarize))
	mux.Handle("POST /api/summarize/stream", withSession(s.handleAPISummarizeStream))
	mux.Handle("GET /api/history", withSession(s.handleAPIHistory))
	mux.Handle("DELETE /api/history", withSession(s.handleAPIClearHistory))

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.withRateLimit(middleware.Logging(s.log)(s.withCORS(mux)))
}

// Start listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	evictCtx, stopEvict := context.WithCancel(ctx)
	defer stopEvict()
	go s.sessions.run(evictCtx, 10*time.Minute)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", logging.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.Close()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.Close()
	s.log.Info("server stopped")
	return nil
}

// Close stops background work. Storage is owned by the caller.
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}

// controllerFor returns the page controller for the request's session.
func (s *Server) controllerFor(r *http.Request) (*controller.Controller, error) {
	id, err := middleware.GetSessionID(r)
	if err != nil {
		return nil, err
	}
	return s.sessions.Get(r.Context(), id), nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", middleware.TokenHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, clientID, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn("failed to encode JSON response", logging.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// extractClientID extracts the client identifier from the request.
// It uses the IP address from RemoteAddr; X-Forwarded-For is not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	// Get IP from RemoteAddr (format: "IP:port")
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, clientID string, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = secs
		w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
	}

	s.log.Warn("rate limit exceeded",
		logging.String("client", clientID),
		logging.Int("limit", info.Limit),
		logging.Duration("retry_after", info.RetryAfter))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
