package state

import (
	"github.com/google/uuid"
)

// Choice identifies one side of a binary market.
// Codes are stable for external consumers.
type Choice uint8

const (
	ChoiceNone Choice = 0
	ChoiceA    Choice = 1
	ChoiceB    Choice = 2
	ChoiceDraw Choice = 3
)

func (c Choice) String() string {
	switch c {
	case ChoiceA:
		return "A"
	case ChoiceB:
		return "B"
	case ChoiceDraw:
		return "Draw"
	default:
		return "None"
	}
}

// Opposite returns the losing side for a winning side
func (c Choice) Opposite() Choice {
	switch c {
	case ChoiceA:
		return ChoiceB
	case ChoiceB:
		return ChoiceA
	default:
		return ChoiceNone
	}
}

// IsSide reports whether the choice is a bettable side
func (c Choice) IsSide() bool {
	return c == ChoiceA || c == ChoiceB
}

// MarketStatus tracks the market lifecycle.
// Codes are stable for external consumers; Distributed is the
// post-settlement sub-state of Resolved.
type MarketStatus int32

const (
	MarketStatusActive        MarketStatus = 0
	MarketStatusBettingClosed MarketStatus = 1
	MarketStatusResolved      MarketStatus = 2
	MarketStatusDistributed   MarketStatus = 3
	MarketStatusCancelled     MarketStatus = 4
)

func (s MarketStatus) String() string {
	switch s {
	case MarketStatusActive:
		return "Active"
	case MarketStatusBettingClosed:
		return "BettingClosed"
	case MarketStatusResolved:
		return "Resolved"
	case MarketStatusDistributed:
		return "Distributed"
	case MarketStatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// CanTransitionTo validates lifecycle transitions
func (s MarketStatus) CanTransitionTo(next MarketStatus) bool {
	validTransitions := map[MarketStatus][]MarketStatus{
		MarketStatusActive: {
			MarketStatusBettingClosed,
			MarketStatusCancelled,
		},
		MarketStatusBettingClosed: {
			MarketStatusResolved,
			MarketStatusCancelled,
		},
		MarketStatusResolved: {
			MarketStatusDistributed,
		},
	}

	allowed, ok := validTransitions[s]
	if !ok {
		return false
	}

	for _, allowedStatus := range allowed {
		if next == allowedStatus {
			return true
		}
	}

	return false
}

// Market represents one binary-outcome wager with its own timeline and pools
type Market struct {
	ID              uint64
	Topic           string
	PartyA          string
	PartyB          string
	Creator         uuid.UUID
	PartyRewardPct  int64     // Cut of the losing pool, 0..MaxPartyRewardPct
	PartyRewardDest uuid.UUID // Explicit beneficiary, required at creation
	BettingEndTime  int64     // Epoch microseconds
	RevealEndTime   int64     // BettingEndTime + RevealWindow
	MinBet          int64     // Effective bound (platform default applied at creation)
	MaxBet          int64
	Status          MarketStatus
	Winner          Choice // ChoiceNone until resolved

	// Incrementally maintained counters (never rescanned)
	PoolA      int64 // Revealed stake on side A
	PoolB      int64 // Revealed stake on side B
	BetCount   int64 // Live committed records (cancels subtract)
	Volume     int64 // Revealed stake total
	BettorsA   int64 // Distinct bettors revealed on side A
	BettorsB   int64 // Distinct bettors revealed on side B
	EscrowHeld int64 // Face value currently held for this market

	CreatedAt   int64
	CancelAfter int64 // BettingEndTime - CancellationGrace; commits lock in after this
	ResolvedAt  int64
	Version     int64 // Bumped on every mutation
}

// RevealedPool returns the aggregate revealed stake
func (m *Market) RevealedPool() int64 {
	return m.PoolA + m.PoolB
}

// PoolFor returns the revealed stake on one side
func (m *Market) PoolFor(side Choice) int64 {
	switch side {
	case ChoiceA:
		return m.PoolA
	case ChoiceB:
		return m.PoolB
	default:
		return 0
	}
}

// IsTerminal reports whether no further lifecycle transitions exist
func (m *Market) IsTerminal() bool {
	return m.Status == MarketStatusDistributed || m.Status == MarketStatusCancelled
}

// CanonicalBytes returns deterministic serialization for hashing
func (m *Market) CanonicalBytes() []byte {
	buf := make([]byte, 0, 192)

	buf = appendUint64LE(buf, m.ID)

	buf = append(buf, byte(len(m.Topic)))
	buf = append(buf, []byte(m.Topic)...)
	buf = append(buf, byte(len(m.PartyA)))
	buf = append(buf, []byte(m.PartyA)...)
	buf = append(buf, byte(len(m.PartyB)))
	buf = append(buf, []byte(m.PartyB)...)

	buf = append(buf, m.Creator[:]...)
	buf = append(buf, m.PartyRewardDest[:]...)

	buf = appendInt64LE(buf, m.PartyRewardPct)
	buf = appendInt64LE(buf, m.BettingEndTime)
	buf = appendInt64LE(buf, m.RevealEndTime)
	buf = appendInt64LE(buf, m.MinBet)
	buf = appendInt64LE(buf, m.MaxBet)

	buf = append(buf, byte(m.Status))
	buf = append(buf, byte(m.Winner))

	buf = appendInt64LE(buf, m.PoolA)
	buf = appendInt64LE(buf, m.PoolB)
	buf = appendInt64LE(buf, m.BetCount)
	buf = appendInt64LE(buf, m.Volume)
	buf = appendInt64LE(buf, m.BettorsA)
	buf = appendInt64LE(buf, m.BettorsB)
	buf = appendInt64LE(buf, m.EscrowHeld)

	return buf
}

func appendInt64LE(buf []byte, v int64) []byte {
	return appendUint64LE(buf, uint64(v))
}

func appendUint64LE(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}
