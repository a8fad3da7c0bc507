package core

import (
	"github.com/AgoraXchange/agora-contract/internal/ledger"
	"github.com/AgoraXchange/agora-contract/internal/state"
)

// SnapshotState captures the core's full in-memory state at one sequence.
// On warm restart the latest snapshot is loaded, then events past its
// sequence are replayed.
type SnapshotState struct {
	Sequence        int64
	StateHash       [32]byte
	ClockMicros     int64
	Balances        map[ledger.AccountKey]int64
	Markets         []*state.Market
	Bets            []*state.BetRecord
	Settlements     []*state.Settlement
	Platform        *state.Platform
	IdempotencyKeys []string
}

// RestoreFromSnapshot restores the core's in-memory state from a snapshot
func (c *BettingCore) RestoreFromSnapshot(snap *SnapshotState) {
	c.sequence = snap.Sequence + 1 // Next sequence to assign

	c.hasher.SetPrevHash(snap.StateHash)
	c.clockGuard.Restore(snap.ClockMicros)

	for key, balance := range snap.Balances {
		c.balanceTracker.SetBalance(key, balance)
	}

	for _, m := range snap.Markets {
		c.markets.Restore(m)
	}

	// Records must arrive in index order per market; snapshot creation
	// preserves arena order
	for _, b := range snap.Bets {
		c.bets.Restore(b)
	}

	for _, s := range snap.Settlements {
		c.settlements.Restore(s)
	}

	if snap.Platform != nil {
		c.platform = snap.Platform
	}

	c.journalGen.SetSequence(snap.Sequence)
}

// WarmLRU loads recent idempotency keys into the LRU cache, avoiding
// cold-path DB lookups for recently processed commands.
func (c *BettingCore) WarmLRU(keys []string) {
	c.idempotency.lru.WarmFromKeys(keys)
}

// CreateSnapshotState captures the current in-memory state for persistence
func (c *BettingCore) CreateSnapshotState() *SnapshotState {
	markets := make([]*state.Market, 0, c.markets.Count())
	bets := make([]*state.BetRecord, 0)
	for id, m := range c.markets.All() {
		markets = append(markets, m)
		bets = append(bets, c.bets.MarketRecords(id)...)
	}

	settlements := make([]*state.Settlement, 0, len(c.settlements.All()))
	for _, s := range c.settlements.All() {
		settlements = append(settlements, s)
	}

	return &SnapshotState{
		Sequence:        c.sequence - 1, // Last processed sequence
		StateHash:       c.hasher.GetPrevHash(),
		ClockMicros:     c.clockGuard.Now(),
		Balances:        c.balanceTracker.Snapshot(),
		Markets:         markets,
		Bets:            bets,
		Settlements:     settlements,
		Platform:        c.platform,
		IdempotencyKeys: c.idempotency.lru.GetAllKeys(),
	}
}
