// Package admin exposes the operator control surface (supplemented
// feature): pause/resume the executor, abort a not-yet-terminal command,
// and report a snapshot of orchestrator health, the same three
// operations services/payoutd/admin.go exposes over its own
// http.ServeMux, bearer-token gated the way payoutd/auth.go gates its
// AdminServer.
package admin

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dwagent/internal/executor"
	"dwagent/internal/repo"
)

// Authenticator checks a static bearer token on every admin request: a
// single operator credential is sufficient for this internal surface,
// unlike the per-signer approval flow.
type Authenticator struct {
	token string
}

func NewAuthenticator(token string) (*Authenticator, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("admin: bearer token is required")
	}
	return &Authenticator{token: token}, nil
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.authenticate(r) {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) authenticate(r *http.Request) bool {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	presented := strings.TrimPrefix(header, prefix)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(a.token)) == 1
}

// Server wraps an *http.ServeMux exposing /pause, /resume, /abort, and
// /status for one running engine instance.
type Server struct {
	repo     *repo.Repository
	executor *executor.Executor
	auth     *Authenticator
	mux      *http.ServeMux
	now      func() time.Time
}

func NewServer(r *repo.Repository, exec *executor.Executor, auth *Authenticator) *Server {
	s := &Server{repo: r, executor: exec, auth: auth, mux: http.NewServeMux(), now: time.Now}
	s.mux.Handle("/pause", s.requireAuth(http.HandlerFunc(s.handlePause)))
	s.mux.Handle("/resume", s.requireAuth(http.HandlerFunc(s.handleResume)))
	s.mux.Handle("/abort", s.requireAuth(http.HandlerFunc(s.handleAbort)))
	s.mux.Handle("/status", s.requireAuth(http.HandlerFunc(s.handleStatus)))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	if s.auth == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "authentication unavailable", http.StatusInternalServerError)
		})
	}
	return s.auth.Middleware(next)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.executor.Pause()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.executor.Resume()
	w.WriteHeader(http.StatusNoContent)
}

type abortRequest struct {
	DocID  string `json:"doc_id"`
	CmdID  string `json:"cmd_id"`
	Reason string `json:"reason"`
}

// handleAbort moves a RAW, PENDING_APPROVAL or APPROVED command straight
// to REJECTED, trying each of those statuses in turn since the caller may
// not know which one the command is currently sitting in. An EXECUTING
// command is not aborted.
func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req abortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.DocID == "" || req.CmdID == "" {
		http.Error(w, "doc_id and cmd_id are required", http.StatusBadRequest)
		return
	}

	now := s.now().UnixMilli()
	aborted := false
	for _, from := range []string{repo.StatusRaw, repo.StatusPendingApproval, repo.StatusApproved} {
		won, err := s.repo.CompareAndSwapStatus(req.DocID, req.CmdID, from, repo.StatusRejected, now)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if won {
			aborted = true
			break
		}
	}
	if !aborted {
		http.Error(w, "command is not in an abortable state", http.StatusConflict)
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "aborted by operator"
	}
	if err := s.repo.UpdateCommandFields(req.DocID, req.CmdID, map[string]interface{}{"error_text": reason}, now); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statusResponse struct {
	Paused bool `json:"paused"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statusResponse{Paused: s.executor.Paused()})
}
