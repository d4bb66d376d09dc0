package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"dwagent/internal/command"
	"dwagent/internal/repo"
)

// ErrSessionKeyExpired is returned (wrapped in a ClassifiedError) when a
// document bound to a state channel has no live session key for one of
// the signers who approved the command being executed, or the key on
// file has expired. Execution aborts rather than proceeding without a
// fresh attestation from every approver.
var ErrSessionKeyExpired = errors.New("executor: session key expired or missing")

// enforceStateChannelGate is the §4.6 state-channel gate: a document
// bound to a live session must have every approving signer re-attest to
// the command before it is allowed to execute, and the attestation is
// submitted on-chain via SubmitAppState to advance the session version.
// A document with no bound session is unaffected; SESSION_CREATE itself
// is exempt, since it is what establishes the session in the first
// place.
func (e *Executor) enforceStateChannelGate(ctx context.Context, row repo.CommandRow, cmd command.Command) error {
	if cmd.Tag() == "SESSION_CREATE" {
		return nil
	}
	sess, err := e.Repo.GetStateChannelSession(row.DocID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		return transientf("state channel gate: load session: %v", err)
	}
	if sess.Status != repo.SessionStatusActive {
		return nil
	}

	signers, err := e.Repo.ApprovingSigners(row.DocID, row.ID)
	if err != nil {
		return transientf("state channel gate: load approving signers: %v", err)
	}
	if len(signers) == 0 {
		return permanentf("state channel gate: %v: no approving signers on file", ErrSessionKeyExpired)
	}
	sort.Strings(signers)

	quorumSigs := make([][]byte, 0, len(signers))
	payload := attestationPayload(row.DocID, row.ID, sess.Version+1)
	for _, signer := range signers {
		sig, err := e.attest(ctx, row.DocID, signer, payload)
		if err != nil {
			if errors.Is(err, ErrSessionKeyExpired) {
				return permanentf("state channel gate: %v: signer %s", ErrSessionKeyExpired, signer)
			}
			return transientf("state channel gate: attest signer %s: %v", signer, err)
		}
		quorumSigs = append(quorumSigs, sig)
	}

	if e.StateChannel == nil {
		return permanentf("state channel gate: no state channel client configured")
	}
	newVersion, err := e.StateChannel.SubmitAppState(ctx, sess.SessionID, sess.Version, row.ID, payload, quorumSigs)
	if err != nil {
		return transientf("state channel gate: submit app state: %v", err)
	}
	sess.Version = newVersion
	if err := e.Repo.UpsertStateChannelSession(sess); err != nil {
		return transientf("state channel gate: persist advanced session: %v", err)
	}
	return nil
}

// attestationPayload is the message every approving signer's session key
// signs: binding the document, the command, and the session version the
// attestation advances to, so a replayed or stale signature cannot be
// reused against a later version.
func attestationPayload(docID, cmdID string, nextVersion int64) []byte {
	return []byte(fmt.Sprintf("%s:%s:%d", docID, cmdID, nextVersion))
}

// attest decrypts a signer's delegated session key and signs payload with
// it, mirroring VaultSigner.EvmPrivateKey's decrypt-then-use pattern. A
// missing or expired key is reported as ErrSessionKeyExpired.
func (e *Executor) attest(ctx context.Context, docID, signer string, payload []byte) ([]byte, error) {
	if e.Vault == nil {
		return nil, fmt.Errorf("%w: no vault configured", ErrSessionKeyExpired)
	}
	key, err := e.Repo.GetSessionKey(docID, signer)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: no session key on file", ErrSessionKeyExpired)
		}
		return nil, err
	}
	if key.ExpiresAt <= e.now().UnixMilli() {
		return nil, fmt.Errorf("%w: key expired at %d", ErrSessionKeyExpired, key.ExpiresAt)
	}
	raw, err := e.Vault.Open(string(key.EncryptedPrivate))
	if err != nil {
		return nil, fmt.Errorf("executor: unseal session key: %w", err)
	}
	priv, err := gethcrypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("executor: parse session key: %w", err)
	}
	sig, err := gethcrypto.Sign(gethcrypto.Keccak256(payload), priv)
	if err != nil {
		return nil, fmt.Errorf("executor: sign attestation: %w", err)
	}
	return sig, nil
}
