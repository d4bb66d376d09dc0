package chainclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"dwagent/internal/money"
)

// StateChannel implements StateChannelClient against an off-chain
// message-passing service's JSON-RPC endpoint. Session state here mirrors
// the monotonic-version app-state progression the node's escrow milestone
// engine uses for staged releases.
type StateChannel struct {
	url        string
	httpClient *http.Client
	nextID     atomic.Int64
}

// NewStateChannel constructs a state-channel JSON-RPC client.
func NewStateChannel(endpoint string) (*StateChannel, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("chainclient: state channel endpoint required")
	}
	return &StateChannel{
		url:        trimmed,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (s *StateChannel) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	id := s.nextID.Add(1)
	buf, err := json.Marshal(suiRPCRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var rpcResp suiRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("chainclient: decode state channel response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("chainclient: state channel rpc error %d %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out == nil || len(rpcResp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(rpcResp.Result, out)
}

// OpenSession opens a new multi-signer session with initial allocations.
func (s *StateChannel) OpenSession(ctx context.Context, signers []string, allocations map[string]money.Amount) (string, error) {
	wireAllocations := make(map[string]string, len(allocations))
	for k, v := range allocations {
		wireAllocations[k] = v.String()
	}
	var wire struct {
		SessionID string `json:"sessionId"`
	}
	if err := s.call(ctx, "channel_openSession", []interface{}{signers, wireAllocations}, &wire); err != nil {
		return "", fmt.Errorf("chainclient: open session: %w", err)
	}
	return wire.SessionID, nil
}

// SubmitAppState advances a session's application state under quorum signatures.
func (s *StateChannel) SubmitAppState(ctx context.Context, sessionID string, version int64, intent string, payload []byte, quorumSigs [][]byte) (int64, error) {
	var wire struct {
		Version int64 `json:"version"`
	}
	if err := s.call(ctx, "channel_submitAppState", []interface{}{sessionID, version, intent, payload, quorumSigs}, &wire); err != nil {
		return 0, fmt.Errorf("chainclient: submit app state: %w", err)
	}
	return wire.Version, nil
}

// SendOffChain records an off-chain value transfer within an open session.
func (s *StateChannel) SendOffChain(ctx context.Context, sessionID, to string, amount money.Amount) (int64, error) {
	var wire struct {
		Version int64 `json:"version"`
	}
	if err := s.call(ctx, "channel_sendOffChain", []interface{}{sessionID, to, amount.String()}, &wire); err != nil {
		return 0, fmt.Errorf("chainclient: send off-chain: %w", err)
	}
	return wire.Version, nil
}

// CloseSession finalises a session and settles its net allocations on-chain.
func (s *StateChannel) CloseSession(ctx context.Context, sessionID string) (string, error) {
	var wire struct {
		SettlementRef string `json:"settlementRef"`
	}
	if err := s.call(ctx, "channel_closeSession", []interface{}{sessionID}, &wire); err != nil {
		return "", fmt.Errorf("chainclient: close session: %w", err)
	}
	return wire.SettlementRef, nil
}

// AuthRequest requests an authentication challenge for a session peer.
func (s *StateChannel) AuthRequest(ctx context.Context, sessionID string) ([]byte, error) {
	var wire struct {
		Challenge []byte `json:"challenge"`
	}
	if err := s.call(ctx, "channel_authRequest", []interface{}{sessionID}, &wire); err != nil {
		return nil, fmt.Errorf("chainclient: auth request: %w", err)
	}
	return wire.Challenge, nil
}

// AuthVerify verifies a challenge response for a session peer.
func (s *StateChannel) AuthVerify(ctx context.Context, sessionID string, response []byte) (bool, error) {
	var wire struct {
		Verified bool `json:"verified"`
	}
	if err := s.call(ctx, "channel_authVerify", []interface{}{sessionID, response}, &wire); err != nil {
		return false, fmt.Errorf("chainclient: auth verify: %w", err)
	}
	return wire.Verified, nil
}

var _ StateChannelClient = (*StateChannel)(nil)
