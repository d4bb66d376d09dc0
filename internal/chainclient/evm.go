package chainclient

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	geth "github.com/ethereum/go-ethereum"
	gethcommon "github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"

	"dwagent/internal/keyvault"
	"dwagent/internal/money"
)

// Signer resolves a document's EVM wallet key material, mirroring the
// core's "keyHandle" abstraction: callers never see raw key bytes
// outside the vault.
type Signer interface {
	EvmPrivateKey(ctx context.Context, key KeyHandle) (*ecdsa.PrivateKey, error)
}

// VaultSigner resolves signing keys from encrypted DocumentSecrets rows
// via a keyvault.Vault.
type VaultSigner struct {
	Vault   *keyvault.Vault
	Lookup  func(ctx context.Context, docID, chain string) (ciphertext string, err error)
}

// EvmPrivateKey decrypts and parses a document's EVM signing key.
func (s *VaultSigner) EvmPrivateKey(ctx context.Context, key KeyHandle) (*ecdsa.PrivateKey, error) {
	ciphertext, err := s.Lookup(ctx, key.DocID, key.Chain)
	if err != nil {
		return nil, fmt.Errorf("chainclient: lookup signing key: %w", err)
	}
	raw, err := s.Vault.Open(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("chainclient: unseal signing key: %w", err)
	}
	priv, err := gethcrypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("chainclient: parse signing key: %w", err)
	}
	return priv, nil
}

const evmStableDecimals = 6

// Evm implements EvmClient against a live JSON-RPC endpoint via
// go-ethereum's ethclient, following the dial/receipt pattern used
// elsewhere in the node's oracle attester service.
type Evm struct {
	client *ethclient.Client
	signer Signer
	stable gethcommon.Address // ERC-20 stablecoin contract address
}

// NewEvm dials an EVM RPC endpoint and wires it to a key Signer.
func NewEvm(endpoint string, signer Signer, stableContract string) (*Evm, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("chainclient: evm endpoint required")
	}
	client, err := ethclient.Dial(trimmed)
	if err != nil {
		return nil, fmt.Errorf("chainclient: dial evm endpoint: %w", err)
	}
	return &Evm{
		client: client,
		signer: signer,
		stable: gethcommon.HexToAddress(stableContract),
	}, nil
}

// erc20TransferSelector is the 4-byte selector for transfer(address,uint256).
var erc20TransferSelector = gethcrypto.Keccak256([]byte("transfer(address,uint256)"))[:4]

func encodeERC20Transfer(to gethcommon.Address, amount *uint256.Int) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, erc20TransferSelector...)
	data = append(data, gethcommon.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, amount.Bytes32()[:]...)
	return data
}

func (e *Evm) sign(ctx context.Context, key KeyHandle, tx *gethtypes.Transaction) (*gethtypes.Transaction, error) {
	priv, err := e.signer.EvmPrivateKey(ctx, key)
	if err != nil {
		return nil, err
	}
	chainID, err := e.client.NetworkID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chainclient: fetch chain id: %w", err)
	}
	signed, err := gethtypes.SignTx(tx, gethtypes.NewLondonSigner(chainID), priv)
	if err != nil {
		return nil, fmt.Errorf("chainclient: sign transaction: %w", err)
	}
	return signed, nil
}

func (e *Evm) nonceAndGas(ctx context.Context, from gethcommon.Address) (uint64, *big.Int, error) {
	nonce, err := e.client.PendingNonceAt(ctx, from)
	if err != nil {
		return 0, nil, fmt.Errorf("chainclient: fetch nonce: %w", err)
	}
	gasPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("chainclient: suggest gas price: %w", err)
	}
	return nonce, gasPrice, nil
}

// TransferStable sends an ERC-20 stablecoin transfer.
func (e *Evm) TransferStable(ctx context.Context, key KeyHandle, to string, amount money.Amount) (string, error) {
	priv, err := e.signer.EvmPrivateKey(ctx, key)
	if err != nil {
		return "", err
	}
	from := gethcrypto.PubkeyToAddress(priv.PublicKey)
	units, err := amount.ScaleToUint256(evmStableDecimals)
	if err != nil {
		return "", fmt.Errorf("chainclient: scale amount: %w", err)
	}
	nonce, gasPrice, err := e.nonceAndGas(ctx, from)
	if err != nil {
		return "", err
	}
	data := encodeERC20Transfer(gethcommon.HexToAddress(to), units)
	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &e.stable,
		Value:    big.NewInt(0),
		Gas:      100000,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := e.sign(ctx, key, tx)
	if err != nil {
		return "", err
	}
	if err := e.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("chainclient: submit transaction: %w", err)
	}
	return signed.Hash().Hex(), nil
}

// GetBalances returns native and stablecoin balances for an address.
func (e *Evm) GetBalances(ctx context.Context, address string) (Balances, error) {
	addr := gethcommon.HexToAddress(address)
	native, err := e.client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return Balances{}, fmt.Errorf("chainclient: fetch native balance: %w", err)
	}
	callMsg := balanceOfCallMsg(addr, e.stable)
	raw, err := e.client.CallContract(ctx, callMsg, nil)
	if err != nil {
		return Balances{}, fmt.Errorf("chainclient: fetch stable balance: %w", err)
	}
	stable := new(big.Int).SetBytes(raw)
	return Balances{
		Native: money.FromUnits(native, 18),
		Stable: money.FromUnits(stable, evmStableDecimals),
	}, nil
}

// SendTransaction submits an arbitrary signed transaction.
func (e *Evm) SendTransaction(ctx context.Context, key KeyHandle, req TxRequest) (string, error) {
	priv, err := e.signer.EvmPrivateKey(ctx, key)
	if err != nil {
		return "", err
	}
	from := gethcrypto.PubkeyToAddress(priv.PublicKey)
	nonce, gasPrice, err := e.nonceAndGas(ctx, from)
	if err != nil {
		return "", err
	}
	value, err := req.Value.ScaleToUnits(18)
	if err != nil {
		return "", fmt.Errorf("chainclient: scale value: %w", err)
	}
	to := gethcommon.HexToAddress(req.To)
	gasLimit := req.GasLimit
	if gasLimit == 0 {
		gasLimit = 21000
	}
	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     req.Data,
	})
	signed, err := e.sign(ctx, key, tx)
	if err != nil {
		return "", err
	}
	if err := e.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("chainclient: submit transaction: %w", err)
	}
	return signed.Hash().Hex(), nil
}

// SignMessage signs an arbitrary message with the document's EVM key
// using the standard Ethereum personal-message prefix.
func (e *Evm) SignMessage(ctx context.Context, key KeyHandle, msg []byte) ([]byte, error) {
	priv, err := e.signer.EvmPrivateKey(ctx, key)
	if err != nil {
		return nil, err
	}
	prefixed := []byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg))
	hash := gethcrypto.Keccak256(prefixed)
	sig, err := gethcrypto.Sign(hash, priv)
	if err != nil {
		return nil, fmt.Errorf("chainclient: sign message: %w", err)
	}
	return sig, nil
}

// RecoverSigner recovers the address that produced sig over msg, used by
// the HTTP approval surface to authenticate a wallet-signed decision.
func RecoverSigner(msg, sig []byte) (string, error) {
	if len(sig) != 65 {
		return "", fmt.Errorf("chainclient: signature must be 65 bytes")
	}
	prefixed := []byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg))
	hash := gethcrypto.Keccak256(prefixed)
	pub, err := gethcrypto.SigToPub(hash, sig)
	if err != nil {
		return "", fmt.Errorf("chainclient: recover signer: %w", err)
	}
	return gethcrypto.PubkeyToAddress(*pub).Hex(), nil
}

func balanceOfCallMsg(owner, token gethcommon.Address) geth.CallMsg {
	selector := gethcrypto.Keccak256([]byte("balanceOf(address)"))[:4]
	data := append(append([]byte{}, selector...), gethcommon.LeftPadBytes(owner.Bytes(), 32)...)
	return geth.CallMsg{To: &token, Data: data}
}

var _ EvmClient = (*Evm)(nil)
