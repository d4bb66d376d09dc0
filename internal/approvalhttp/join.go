package approvalhttp

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"dwagent/internal/chainclient"
	"dwagent/internal/repo"
)

const joinTokenTTL = 5 * time.Minute

// joinChallenge is the message a wallet must sign to prove control of a
// signer address before it can submit a decision; a join exchanges a
// wallet signature for a short-lived session.
type joinChallenge struct {
	DocID     string
	CmdID     string
	Nonce     string
	ExpiresAt time.Time
}

func (c joinChallenge) message() []byte {
	return []byte(fmt.Sprintf("dwagent approval join\ndoc=%s\ncmd=%s\nnonce=%s", c.DocID, c.CmdID, c.Nonce))
}

// joinTokenStore tracks outstanding start-join challenges in process
// memory; like executor.go's retry-attempt map, this state is allowed to
// reset on restart since a dropped challenge only costs the caller a
// fresh start-join.
type joinTokenStore struct {
	mu      sync.Mutex
	entries map[string]joinChallenge
}

func newJoinTokenStore() *joinTokenStore {
	return &joinTokenStore{entries: make(map[string]joinChallenge)}
}

func (s *joinTokenStore) create(docID, cmdID string, now time.Time) (string, joinChallenge, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", joinChallenge{}, fmt.Errorf("approvalhttp: generate join token: %w", err)
	}
	token := hex.EncodeToString(buf[:])

	var nonceBuf [12]byte
	if _, err := rand.Read(nonceBuf[:]); err != nil {
		return "", joinChallenge{}, fmt.Errorf("approvalhttp: generate nonce: %w", err)
	}
	challenge := joinChallenge{
		DocID:     docID,
		CmdID:     cmdID,
		Nonce:     hex.EncodeToString(nonceBuf[:]),
		ExpiresAt: now.Add(joinTokenTTL),
	}

	s.mu.Lock()
	s.entries[token] = challenge
	s.mu.Unlock()
	return token, challenge, nil
}

// consume returns the challenge for token and removes it: single use.
func (s *joinTokenStore) consume(token string, now time.Time) (joinChallenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.entries[token]
	if !ok {
		return joinChallenge{}, false
	}
	delete(s.entries, token)
	if now.After(c.ExpiresAt) {
		return joinChallenge{}, false
	}
	return c, true
}

func routeDocAndCmd(r *http.Request) (string, string) {
	return chi.URLParam(r, "docID"), chi.URLParam(r, "cmdID")
}

type startJoinResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// handleStartJoin issues a fresh signing challenge for one document's
// pending command, after confirming the command is still awaiting a
// decision.
func (s *Server) handleStartJoin(w http.ResponseWriter, r *http.Request) {
	docID, cmdID := routeDocAndCmd(r)
	cmd, err := s.cfg.Repo.GetCommand(docID, cmdID)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "command not found")
		return
	}
	if cmd.Status != repo.StatusPendingApproval {
		writeJSONError(w, http.StatusConflict, "command is not awaiting approval")
		return
	}

	token, challenge, err := s.tokens.create(docID, cmdID, s.now())
	if err != nil {
		s.logger().Error("approvalhttp: start-join failed", "doc_id", docID, "cmd_id", cmdID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "could not start join")
		return
	}
	writeJSON(w, http.StatusOK, startJoinResponse{Token: token, Message: string(challenge.message())})
}

type finishJoinRequest struct {
	Token     string `json:"token"`
	Signer    string `json:"signer"`
	Signature string `json:"signature"` // hex-encoded 65-byte recoverable signature
}

type finishJoinResponse struct {
	Signer string `json:"signer"`
	Weight int64  `json:"weight"`
}

// handleFinishJoin recovers the signer address from the wallet signature
// over the start-join challenge, confirms it is a registered signer for
// the document, and mints a short-lived session cookie scoped to this
// document/command pair. Attested state-channel session keys bypass this
// per-request signature and are checked against repo.SessionKey instead.
func (s *Server) handleFinishJoin(w http.ResponseWriter, r *http.Request) {
	docID, cmdID := routeDocAndCmd(r)

	var req finishJoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	challenge, ok := s.tokens.consume(req.Token, s.now())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "join token expired or unknown")
		return
	}
	if challenge.DocID != docID || challenge.CmdID != cmdID {
		writeJSONError(w, http.StatusBadRequest, "join token scoped to a different command")
		return
	}

	signer, err := s.verifySignerOrAttested(docID, req, challenge.message())
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, err.Error())
		return
	}

	sig, err := s.cfg.Repo.GetSigner(docID, signer)
	if err != nil {
		writeJSONError(w, http.StatusForbidden, "address is not a registered signer for this document")
		return
	}

	token, err := s.session.issue(docID, cmdID, signer)
	if err != nil {
		s.logger().Error("approvalhttp: issue session failed", "doc_id", docID, "cmd_id", cmdID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "could not issue session")
		return
	}
	setSessionCookie(w, token, s.cfg.SessionTTL)
	writeJSON(w, http.StatusOK, finishJoinResponse{Signer: sig.Address, Weight: sig.Weight})
}

// verifySignerOrAttested recovers req.Signer from req.Signature over the
// join challenge (basic mode). If the claimed signer instead has a
// delegated session key on file (attested mode, e.g. a state-channel
// signer whose wallet already trusted a session key out of band), a
// matching delegated public key stands in for a fresh signature.
func (s *Server) verifySignerOrAttested(docID string, req finishJoinRequest, msg []byte) (string, error) {
	if req.Signature != "" {
		sigBytes, err := hexDecode(req.Signature)
		if err != nil {
			return "", fmt.Errorf("malformed signature encoding")
		}
		recovered, err := chainclient.RecoverSigner(msg, sigBytes)
		if err != nil {
			return "", fmt.Errorf("signature verification failed")
		}
		return recovered, nil
	}

	if req.Signer == "" {
		return "", fmt.Errorf("signer or signature required")
	}
	if _, err := s.cfg.Repo.GetSessionKey(docID, req.Signer); err != nil {
		return "", fmt.Errorf("no delegated session key on file for signer")
	}
	return req.Signer, nil
}

func hexDecode(s string) ([]byte, error) {
	return hex.DecodeString(trimHexPrefix(s))
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
