package chainclient

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"dwagent/internal/keyvault"
	"dwagent/internal/money"
)

const suiCoinDecimals = 9

// SuiSigner resolves a document's Sui ed25519 signing key.
type SuiSigner interface {
	SuiPrivateKey(ctx context.Context, key KeyHandle) (ed25519.PrivateKey, error)
}

// VaultSuiSigner resolves Sui signing keys from encrypted DocumentSecrets
// rows, mirroring VaultSigner's EVM counterpart.
type VaultSuiSigner struct {
	Vault  *keyvault.Vault
	Lookup func(ctx context.Context, docID, chain string) (ciphertext string, err error)
}

// SuiPrivateKey decrypts a document's Sui signing key.
func (s *VaultSuiSigner) SuiPrivateKey(ctx context.Context, key KeyHandle) (ed25519.PrivateKey, error) {
	ciphertext, err := s.Lookup(ctx, key.DocID, key.Chain)
	if err != nil {
		return nil, fmt.Errorf("chainclient: lookup sui signing key: %w", err)
	}
	raw, err := s.Vault.Open(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("chainclient: unseal sui signing key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("chainclient: malformed sui private key")
	}
	return ed25519.PrivateKey(raw), nil
}

// Sui implements SuiClient against a Sui JSON-RPC endpoint, following the
// same request/response envelope the node's own swaprpc client uses for
// the stablecoin gateway.
type Sui struct {
	url        string
	httpClient *http.Client
	signer     SuiSigner
	nextID     atomic.Int64
	coinType   string
}

// NewSui constructs a Sui JSON-RPC client.
func NewSui(endpoint string, signer SuiSigner, coinType string) (*Sui, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("chainclient: sui endpoint required")
	}
	return &Sui{
		url:        trimmed,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		signer:     signer,
		coinType:   coinType,
	}, nil
}

type suiRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type suiRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type suiRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *suiRPCError    `json:"error"`
}

func (s *Sui) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
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
		return fmt.Errorf("chainclient: decode sui response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("chainclient: sui rpc error %d %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out == nil || len(rpcResp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(rpcResp.Result, out)
}

// TransferCoin submits a paySui transfer of the given amount and returns the transaction digest.
func (s *Sui) TransferCoin(ctx context.Context, key KeyHandle, to string, amount money.Amount) (string, error) {
	priv, err := s.signer.SuiPrivateKey(ctx, key)
	if err != nil {
		return "", err
	}
	units, err := amount.ScaleToUnits(suiCoinDecimals)
	if err != nil {
		return "", fmt.Errorf("chainclient: scale sui amount: %w", err)
	}
	sender := suiAddressFromPublicKey(priv.Public().(ed25519.PublicKey))

	var txBytesB64 string
	if err := s.call(ctx, "unsafe_paySui", []interface{}{
		sender, []string{}, []string{to}, []string{units.String()}, sender, "10000000",
	}, &txBytesB64); err != nil {
		return "", fmt.Errorf("chainclient: build sui transfer: %w", err)
	}

	sig := ed25519.Sign(priv, []byte(txBytesB64))
	var result struct {
		Digest string `json:"digest"`
	}
	if err := s.call(ctx, "sui_executeTransactionBlock", []interface{}{
		txBytesB64, []string{encodeSuiSignature(sig, priv.Public().(ed25519.PublicKey))},
	}, &result); err != nil {
		return "", fmt.Errorf("chainclient: submit sui transfer: %w", err)
	}
	return result.Digest, nil
}

// GetBalances returns the native SUI balance plus any tracked stablecoin balances.
func (s *Sui) GetBalances(ctx context.Context, address string) (Balances, error) {
	var native struct {
		TotalBalance string `json:"totalBalance"`
	}
	if err := s.call(ctx, "suix_getBalance", []interface{}{address}, &native); err != nil {
		return Balances{}, fmt.Errorf("chainclient: fetch sui balance: %w", err)
	}
	nativeUnits, _ := strconv.ParseInt(strings.TrimSpace(native.TotalBalance), 10, 64)

	out := Balances{Native: money.FromUnits(bigFromInt64(nativeUnits), suiCoinDecimals), StableCoins: map[string]money.Amount{}}
	if s.coinType != "" {
		var coin struct {
			TotalBalance string `json:"totalBalance"`
		}
		if err := s.call(ctx, "suix_getBalance", []interface{}{address, s.coinType}, &coin); err == nil {
			units, _ := strconv.ParseInt(strings.TrimSpace(coin.TotalBalance), 10, 64)
			out.StableCoins[s.coinType] = money.FromUnits(bigFromInt64(units), suiCoinDecimals)
		}
	}
	return out, nil
}

var _ SuiClient = (*Sui)(nil)
