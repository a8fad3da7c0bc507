package state

import (
	"bytes"
	"sort"

	"github.com/google/uuid"
)

// Settlement is the locked snapshot produced by a single distribution run.
// Individual winner payouts are computed and recorded here, then pulled by
// claims; the snapshot is never recomputed.
type Settlement struct {
	MarketID          uint64
	Winner            Choice
	WinPool           int64
	LosePool          int64
	FeeAmount         int64 // Pushed to the fee recipient at distribution
	PartyRewardAmount int64 // Pushed to the market's party-reward destination
	ResidualAmount    int64 // Truncation dust, swept with the fee
	Entitlements      map[uuid.UUID]int64 // Claimable per bettor, zeroed on claim
	TotalEntitlement  int64
	ClaimedTotal      int64
	DistributedAt     int64
}

// Entitlement returns the unclaimed amount for a bettor
func (s *Settlement) Entitlement(bettor uuid.UUID) int64 {
	return s.Entitlements[bettor]
}

// ZeroEntitlement records claim intent strictly before any value transfer.
// Returns the amount owed; a second call returns zero.
func (s *Settlement) ZeroEntitlement(bettor uuid.UUID) int64 {
	amount := s.Entitlements[bettor]
	if amount > 0 {
		s.Entitlements[bettor] = 0
		s.ClaimedTotal += amount
	}
	return amount
}

// RestoreEntitlement puts back an entitlement after a failed transfer
func (s *Settlement) RestoreEntitlement(bettor uuid.UUID, amount int64) {
	s.Entitlements[bettor] = amount
	s.ClaimedTotal -= amount
}

// CanonicalBytes returns deterministic serialization for hashing.
// Entitlements are serialized in bettor byte order.
func (s *Settlement) CanonicalBytes() []byte {
	buf := make([]byte, 0, 128+len(s.Entitlements)*24)

	buf = appendUint64LE(buf, s.MarketID)
	buf = append(buf, byte(s.Winner))
	buf = appendInt64LE(buf, s.WinPool)
	buf = appendInt64LE(buf, s.LosePool)
	buf = appendInt64LE(buf, s.FeeAmount)
	buf = appendInt64LE(buf, s.PartyRewardAmount)
	buf = appendInt64LE(buf, s.ResidualAmount)
	buf = appendInt64LE(buf, s.TotalEntitlement)
	buf = appendInt64LE(buf, s.ClaimedTotal)

	bettors := make([]uuid.UUID, 0, len(s.Entitlements))
	for bettor := range s.Entitlements {
		bettors = append(bettors, bettor)
	}
	sort.Slice(bettors, func(i, j int) bool {
		return bytes.Compare(bettors[i][:], bettors[j][:]) < 0
	})

	for _, bettor := range bettors {
		buf = append(buf, bettor[:]...)
		buf = appendInt64LE(buf, s.Entitlements[bettor])
	}

	return buf
}

// SettlementBook holds one settlement per distributed market
type SettlementBook struct {
	settlements map[uint64]*Settlement
}

func NewSettlementBook() *SettlementBook {
	return &SettlementBook{
		settlements: make(map[uint64]*Settlement),
	}
}

// Get returns the settlement for a market or nil
func (sb *SettlementBook) Get(marketID uint64) *Settlement {
	return sb.settlements[marketID]
}

// Put stores a settlement; a market settles at most once
func (sb *SettlementBook) Put(s *Settlement) {
	sb.settlements[s.MarketID] = s
}

// All returns every settlement keyed by market id (for snapshots)
func (sb *SettlementBook) All() map[uint64]*Settlement {
	return sb.settlements
}

// Restore re-inserts a settlement during snapshot restore
func (sb *SettlementBook) Restore(s *Settlement) {
	sb.settlements[s.MarketID] = s
}
