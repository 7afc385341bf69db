package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ladybugml/ladybug-bot/internal/github"
	"github.com/ladybugml/ladybug-bot/internal/ranking"
	"github.com/ladybugml/ladybug-bot/internal/server/middleware"
	"github.com/ladybugml/ladybug-bot/internal/server/ratelimit"
	"github.com/ladybugml/ladybug-bot/internal/triage"
)

// DefaultTriageTimeout bounds one asynchronous run. It leaves room for a
// ranking or initialization call running to ranking.DefaultTimeout plus the
// attachment fetch and GitHub calls around it.
const DefaultTriageTimeout = ranking.DefaultTimeout + 5*time.Minute

// Triager runs triage for an issue event.
type Triager interface {
	Handle(ctx context.Context, ev triage.Event) triage.Report
}

// Initializer prepares the ranking backend for a repository the App was
// just installed on.
type Initializer interface {
	InitializeRepository(ctx context.Context, repo github.RepoRef) error
}

// Server represents the HTTP server
type Server struct {
	httpServer    *http.Server
	handler       http.Handler
	triager       Triager
	initializer   Initializer
	commenter     triage.Commenter
	logger        *zap.Logger
	rateLimiter   *ratelimit.Limiter
	triageTimeout time.Duration

	// inflight tracks triage runs started by webhook deliveries.
	inflight sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	Port          int
	WebhookSecret string
	Triager       Triager
	// Initializer is optional; without it installation events are ignored.
	Initializer   Initializer
	Commenter     triage.Commenter
	Logger        *zap.Logger
	// RateLimit defaults to ratelimit.LoadConfig().
	RateLimit     *ratelimit.Config
	TriageTimeout time.Duration
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Triager == nil {
		return nil, errors.New("server requires a triager")
	}
	if cfg.Commenter == nil {
		return nil, errors.New("server requires a commenter")
	}

	s := &Server{
		triager:       cfg.Triager,
		initializer:   cfg.Initializer,
		commenter:     cfg.Commenter,
		logger:        cfg.Logger,
		triageTimeout: cfg.TriageTimeout,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.triageTimeout <= 0 {
		s.triageTimeout = DefaultTriageTimeout
	}

	rateCfg := cfg.RateLimit
	if rateCfg == nil {
		rateCfg = ratelimit.LoadConfig()
	}
	s.rateLimiter = ratelimit.NewLimiter(rateCfg)

	mux := http.NewServeMux()
	mux.Handle("POST /webhook", middleware.SignatureMiddleware(cfg.WebhookSecret)(http.HandlerFunc(s.handleWebhook)))
	mux.HandleFunc("POST /post-message", s.handlePostMessage)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.handler = s.withRateLimit(s.withLogging(mux))
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the server's routes wrapped in middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens for requests until SIGINT or SIGTERM, then shuts down.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops accepting requests and waits for in-flight triage runs
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.rateLimiter.Stop()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("server stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("triage runs still in flight: %w", ctx.Err())
	}
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
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

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.String("event", r.Header.Get("X-GitHub-Event")),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response with the status HTTPStatus
// assigns to err.
func (s *Server) errorResponse(w http.ResponseWriter, err error) {
	s.jsonResponse(w, HTTPStatus(err), map[string]string{"error": err.Error()})
}

// extractClientID extracts the client identifier from the request.
// X-Forwarded-For is not trusted; the bot is expected to sit directly
// behind GitHub's delivery service or a proxy that rewrites RemoteAddr.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
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
		seconds := int(info.RetryAfter.Seconds())
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	s.logger.Warn("rate limit exceeded",
		zap.String("client", clientID),
		zap.Int("limit", info.Limit),
		zap.Time("reset", info.ResetTime),
	)

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
