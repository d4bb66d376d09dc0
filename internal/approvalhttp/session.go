package approvalhttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const contextKeySigner contextKey = "approvalhttp.signer"

// sessionClaims is the JWT payload minted by finish-join: it proves a
// wallet controls signerAddress for one document's approval flow, the
// same "signed token stands in for a raw signature" pattern
// gateway/middleware/auth.go's Authenticator validates on every request.
type sessionClaims struct {
	jwt.RegisteredClaims
	DocID  string `json:"doc_id"`
	CmdID  string `json:"cmd_id"`
	Signer string `json:"signer"`
}

type sessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func (s *sessionIssuer) issue(docID, cmdID, signer string) (string, error) {
	now := s.now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		DocID:  docID,
		CmdID:  cmdID,
		Signer: signer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *sessionIssuer) parse(tokenString string) (sessionClaims, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("approvalhttp: unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return sessionClaims{}, fmt.Errorf("approvalhttp: parse session token: %w", err)
	}
	return claims, nil
}

const sessionCookieName = "dw_approval_session"

func setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

// requireSession validates the session cookie or bearer token minted by
// finish-join and checks it matches the {docID}/{cmdID} in the URL before
// letting a decision request through.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := sessionTokenFromRequest(r)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "missing session")
			return
		}
		claims, err := s.session.parse(tokenString)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "invalid session")
			return
		}
		docID, cmdID := routeDocAndCmd(r)
		if claims.DocID != docID || claims.CmdID != cmdID {
			writeJSONError(w, http.StatusForbidden, "session scoped to a different command")
			return
		}
		ctx := context.WithValue(r.Context(), contextKeySigner, claims.Signer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionTokenFromRequest(r *http.Request) (string, error) {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	if bearer := r.Header.Get("Authorization"); strings.HasPrefix(bearer, "Bearer ") {
		return strings.TrimPrefix(bearer, "Bearer "), nil
	}
	return "", errors.New("approvalhttp: no session token present")
}

func signerFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(contextKeySigner).(string)
	return v, ok && v != ""
}
