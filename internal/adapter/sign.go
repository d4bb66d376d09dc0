package adapter

import (
	"crypto/hmac"
	"crypto/sha256"
	"net/http"
	"sort"
	"strings"
)

// Header names for the HMAC-signed JSON-RPC envelope the HTTP adapter
// speaks, matching the signing scheme gateway/auth.Authenticator verifies
// on the document-table service side.
const (
	headerAPIKey    = "X-Api-Key"
	headerTimestamp = "X-Timestamp"
	headerNonce     = "X-Nonce"
	headerSignature = "X-Signature"
)

// canonicalRequestPath normalises a request's path and query ordering so
// both sides of the signature agree regardless of query parameter order.
func canonicalRequestPath(r *http.Request) string {
	path := r.URL.Path
	if path == "" {
		path = "/"
	}
	if r.URL.RawQuery != "" {
		path += "?" + canonicalQuery(r.URL.RawQuery)
	}
	return path
}

func canonicalQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	sort.Strings(parts)
	return strings.Join(parts, "&")
}

// computeSignature builds the HMAC-SHA256 signature bytes for a request's
// timestamp, nonce, method, path and body, in that order.
func computeSignature(secret, timestamp, nonce, method, path string, body []byte) []byte {
	payload := strings.Join([]string{timestamp, nonce, strings.ToUpper(method), path, string(body)}, "\n")
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
