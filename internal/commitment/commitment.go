// Package commitment implements the hash scheme that hides a bettor's choice
// until the reveal phase. The digest binds the market, the bettor, the choice,
// a caller-supplied nonce and the staked amount, so a commitment cannot be
// replayed across markets, bettors or amounts.
package commitment

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Hash is a 32-byte commitment digest
type Hash [32]byte

// preimageSize is the fixed layout:
// market_id (8, big-endian) | bettor (16) | choice (1) | nonce (8, big-endian) | amount (8, big-endian)
const preimageSize = 8 + 16 + 1 + 8 + 8

// Compute derives the commitment digest from the full preimage
func Compute(marketID uint64, bettor uuid.UUID, choice uint8, nonce uint64, amount int64) Hash {
	var buf [preimageSize]byte
	binary.BigEndian.PutUint64(buf[0:8], marketID)
	copy(buf[8:24], bettor[:])
	buf[24] = choice
	binary.BigEndian.PutUint64(buf[25:33], nonce)
	binary.BigEndian.PutUint64(buf[33:41], uint64(amount))
	return sha256.Sum256(buf[:])
}

// Verify checks a stored commitment against a revealed preimage in constant time
func (h Hash) Verify(marketID uint64, bettor uuid.UUID, choice uint8, nonce uint64, amount int64) bool {
	expected := Compute(marketID, bettor, choice, nonce, amount)
	return subtle.ConstantTimeCompare(h[:], expected[:]) == 1
}

// IsZero reports whether the hash is unset
func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Parse decodes a 64-character hex digest
func Parse(s string) (Hash, error) {
	var h Hash
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid commitment hex: %w", err)
	}
	if len(raw) != len(h) {
		return h, fmt.Errorf("invalid commitment length: got %d bytes, want %d", len(raw), len(h))
	}
	copy(h[:], raw)
	return h, nil
}

// MarshalText implements encoding.TextMarshaler for JSON payloads
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
