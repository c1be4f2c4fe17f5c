package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"tally/internal/auth"
	"tally/internal/cache"
	"tally/internal/events"
	applog "tally/internal/log"
	"tally/internal/middleware/ratelimit"
	"tally/internal/middleware/security"
	"tally/internal/middleware/trace"
	"tally/internal/storage"
)

// EventPublisher emits expense mutation events. Publishing is best-effort:
// a nil publisher disables it and publish failures never fail the request.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, id, userID int64, action events.Action) error
}

// Config holds the server knobs that come from configuration.
type Config struct {
	Addr         string
	BcryptCost   int
	RateLimitRPM int
}

type Server struct {
	http.Server

	repo      *storage.SQLiteRepository
	tokens    *auth.TokenIssuer
	publisher EventPublisher
	logger    *applog.Logger

	bcryptCost int

	limiter      *ratelimit.Limiter
	tokenCache   *cache.LRUCache[int64]
	cacheMgr     *cache.Manager
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, repo *storage.SQLiteRepository, tokens *auth.TokenIssuer, publisher EventPublisher, logger *applog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		repo:       repo,
		tokens:     tokens,
		publisher:  publisher,
		logger:     logger.WithComponent(applog.ComponentHTTP),
		bcryptCost: cfg.BcryptCost,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitRPM,
		}),
		// Every authenticated request carries a token, so verified results
		// are cached until the token itself expires.
		tokenCache: cache.NewLRUCache[int64](1024, tokens.TTL()),
		cacheMgr:   cache.NewManager(),
	}
	s.cacheMgr.Register(s.tokenCache)
	s.cacheMgr.StartCleanup(5 * time.Minute)

	// The credential endpoints are the only ones worth brute-forcing, so
	// rate limiting applies there and nowhere else.
	limited := s.limiter.Middleware(trace.ExtractClientIP, s.onRateLimited)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("POST /register", limited(http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST /login", limited(http.HandlerFunc(s.handleLogin)))

	mux.HandleFunc("POST /add-expense", s.requireAuth(s.handleAddExpense))
	mux.HandleFunc("GET /expenses", s.requireAuth(s.handleListExpenses))
	mux.HandleFunc("GET /expenses/{id}", s.requireAuth(s.handleGetExpense))
	mux.HandleFunc("PUT /expenses/{id}", s.requireAuth(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /expenses/{id}", s.requireAuth(s.handleDeleteExpense))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	traced := trace.NewMiddleware(trace.ExtractClientIP)

	s.Server = http.Server{
		Addr:    cfg.Addr,
		Handler: traced.Middleware(headers.Middleware(mux)),
	}

	return s
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, trace.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", "60")
	respondError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		if s.cacheMgr != nil {
			s.cacheMgr.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// publishEvent emits a mutation event when a publisher is wired. Failures
// are logged and swallowed: the write already committed.
func (s *Server) publishEvent(ctx context.Context, id, userID int64, action events.Action) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, id, userID, action); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish expense event",
			applog.FieldExpenseID, id,
			applog.FieldAction, string(action),
			applog.FieldError, err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "Readiness check failed", applog.FieldError, err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
