package chainclient

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"math/big"
)

// suiFlagEd25519 is the signature-scheme flag Sui prefixes to ed25519
// public keys and signatures.
const suiFlagEd25519 = byte(0x00)

func suiAddressFromPublicKey(pub ed25519.PublicKey) string {
	buf := append([]byte{suiFlagEd25519}, pub...)
	sum := sha256.Sum256(buf)
	return "0x" + hex.EncodeToString(sum[:])
}

func encodeSuiSignature(sig []byte, pub ed25519.PublicKey) string {
	buf := make([]byte, 0, 1+len(sig)+len(pub))
	buf = append(buf, suiFlagEd25519)
	buf = append(buf, sig...)
	buf = append(buf, pub...)
	return base64.StdEncoding.EncodeToString(buf)
}

func bigFromInt64(v int64) *big.Int {
	return big.NewInt(v)
}
