package state

import (
	"github.com/google/uuid"
)

// Platform holds process-wide admin state. There is a single instance per
// engine, created at initialization and injected into every operation.
type Platform struct {
	Owner        uuid.UUID // Full admin rights
	Oracle       uuid.UUID // Resolution rights only
	FeeRecipient uuid.UUID
	FeePct       int64 // 0..MaxFeePct, whole percent of the losing pool
	MinBet       int64 // Default bounds applied when a market passes zero
	MaxBet       int64
	Paused       bool

	// Running totals, single writer (ledger and settlement paths only)
	TotalMarkets       int64
	TotalBets          int64
	TotalVolume        int64 // Committed stake
	TotalFeesCollected int64

	Version int64
}

// NewPlatform creates the platform state with the initial oracle identity.
// The fee recipient defaults to the owner.
func NewPlatform(owner, oracle uuid.UUID) *Platform {
	return &Platform{
		Owner:        owner,
		Oracle:       oracle,
		FeeRecipient: owner,
		FeePct:       DefaultFeePct,
		MinBet:       DefaultMinBet,
		MaxBet:       DefaultMaxBet,
	}
}

// EffectiveLimits resolves per-market bounds, zero deferring to defaults
func (p *Platform) EffectiveLimits(minBet, maxBet int64) (int64, int64) {
	if minBet == 0 {
		minBet = p.MinBet
	}
	if maxBet == 0 {
		maxBet = p.MaxBet
	}
	return minBet, maxBet
}

// CanonicalBytes returns deterministic serialization for hashing
func (p *Platform) CanonicalBytes() []byte {
	buf := make([]byte, 0, 112)

	buf = append(buf, p.Owner[:]...)
	buf = append(buf, p.Oracle[:]...)
	buf = append(buf, p.FeeRecipient[:]...)
	buf = appendInt64LE(buf, p.FeePct)
	buf = appendInt64LE(buf, p.MinBet)
	buf = appendInt64LE(buf, p.MaxBet)
	if p.Paused {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendInt64LE(buf, p.TotalMarkets)
	buf = appendInt64LE(buf, p.TotalBets)
	buf = appendInt64LE(buf, p.TotalVolume)
	buf = appendInt64LE(buf, p.TotalFeesCollected)

	return buf
}
