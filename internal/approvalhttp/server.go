// Package approvalhttp is the HTTP approval surface: the endpoints a
// signer's wallet or browser hits to join a pending command's approval
// flow and record a decision. Routing and middleware composition follow
// gateway/routes/router.go's chi.Router pattern; JWT session handling
// follows gateway/middleware/auth.go's Authenticator; rate limiting
// follows gateway/middleware/ratelimit.go's RateLimiter.
package approvalhttp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dwagent/internal/metrics"
	"dwagent/internal/repo"
)

// Config wires a Server's dependencies and tunables.
type Config struct {
	Repo    *repo.Repository
	Metrics *metrics.Registry
	Logger  *slog.Logger

	// SessionSecret signs the short-lived JWT issued by finish-join and
	// checked by decision: a join exchanges a wallet signature for a
	// short-lived session used by the decision call.
	SessionSecret []byte
	SessionTTL    time.Duration

	// DecisionRateLimit bounds POST /decision calls per signer address.
	DecisionRateLimit RateLimit

	Now func() time.Time
}

// Server holds the C9 endpoints' shared state: a single-use join token
// store and the JWT/rate-limit middleware built from Config.
type Server struct {
	cfg     Config
	tokens  *joinTokenStore
	session *sessionIssuer
	limiter *RateLimiter
}

func New(cfg Config) *Server {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Server{
		cfg:     cfg,
		tokens:  newJoinTokenStore(),
		session: &sessionIssuer{secret: cfg.SessionSecret, ttl: cfg.SessionTTL, now: cfg.Now},
		limiter: NewRateLimiter(cfg.DecisionRateLimit, cfg.Now),
	}
}

func (s *Server) logger() *slog.Logger {
	if s.cfg.Logger != nil {
		return s.cfg.Logger
	}
	return slog.Default()
}

func (s *Server) now() time.Time {
	return s.cfg.Now()
}

// Router builds the chi.Router serving every C9 endpoint.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if s.cfg.Metrics != nil {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/approve/{docID}/{cmdID}", func(sr chi.Router) {
		sr.Post("/start-join", s.handleStartJoin)
		sr.Post("/finish-join", s.handleFinishJoin)
		sr.With(s.requireSession, s.limiter.Middleware).Post("/decision", s.handleDecision)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
