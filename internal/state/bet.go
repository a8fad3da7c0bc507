package state

import (
	"github.com/AgoraXchange/agora-contract/internal/commitment"
	"github.com/google/uuid"
)

// BetState tracks the one-way lifecycle of a single bet record.
// At most one of Revealed, Cancelled, Refunded is ever reached.
type BetState int32

const (
	BetStateCommitted BetState = iota
	BetStateRevealed
	BetStateCancelled
	BetStateRefunded
)

func (bs BetState) String() string {
	switch bs {
	case BetStateCommitted:
		return "Committed"
	case BetStateRevealed:
		return "Revealed"
	case BetStateCancelled:
		return "Cancelled"
	case BetStateRefunded:
		return "Refunded"
	default:
		return "Unknown"
	}
}

// CanTransitionTo validates record state transitions
func (bs BetState) CanTransitionTo(next BetState) bool {
	if bs != BetStateCommitted {
		return false
	}
	return next == BetStateRevealed || next == BetStateCancelled || next == BetStateRefunded
}

// BetRecord is one committed wager. Records are append-only: they are never
// deleted, only transitioned, preserving full audit history.
type BetRecord struct {
	Index      uint64 // Stable arena index within the market
	MarketID   uint64
	Bettor     uuid.UUID
	Commitment commitment.Hash
	Amount     int64 // Value deposited at commit time, immutable
	Choice     Choice
	State      BetState
	CommittedAt int64 // Epoch microseconds
	RevealedAt  int64
	Claimed     bool // Entitlement drawn down after settlement/cancellation
	Version     int64
}

// HoldsFunds reports whether the record's stake is still escrowed
func (b *BetRecord) HoldsFunds() bool {
	switch b.State {
	case BetStateCommitted:
		return true
	case BetStateRevealed:
		return !b.Claimed
	default:
		return false
	}
}

// CanonicalBytes returns deterministic serialization for hashing
func (b *BetRecord) CanonicalBytes() []byte {
	buf := make([]byte, 0, 96)

	buf = appendUint64LE(buf, b.Index)
	buf = appendUint64LE(buf, b.MarketID)
	buf = append(buf, b.Bettor[:]...)
	buf = append(buf, b.Commitment[:]...)
	buf = appendInt64LE(buf, b.Amount)
	buf = append(buf, byte(b.Choice))
	buf = append(buf, byte(b.State))
	if b.Claimed {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	return buf
}
