package ledger

import (
	"fmt"
)

// BalanceTracker maintains in-memory account balances
type BalanceTracker struct {
	balances map[AccountKey]int64
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{
		balances: make(map[AccountKey]int64),
	}
}

// ApplyJournal applies a single journal entry to balances
func (bt *BalanceTracker) ApplyJournal(j Journal) {
	bt.balances[j.DebitAccount] += j.Amount
	bt.balances[j.CreditAccount] -= j.Amount
}

// ApplyBatch applies all journals in a batch
func (bt *BalanceTracker) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	for _, j := range batch.Journals {
		bt.ApplyJournal(j)
	}

	return nil
}

// GetBalance returns the current balance for an account
func (bt *BalanceTracker) GetBalance(key AccountKey) int64 {
	return bt.balances[key]
}

// GetMarketEscrow returns the funds currently held for a market
func (bt *BalanceTracker) GetMarketEscrow(marketID uint64, assetID AssetID) int64 {
	return bt.GetBalance(NewMarketAccountKey(marketID, SubTypeEscrow, assetID))
}

// ValidateSufficientEscrow checks if a market holds enough to pay out
func (bt *BalanceTracker) ValidateSufficientEscrow(marketID uint64, assetID AssetID, required int64) error {
	escrow := bt.GetMarketEscrow(marketID, assetID)
	if escrow < required {
		return fmt.Errorf("insufficient escrow for market %d: have=%d, need=%d", marketID, escrow, required)
	}
	return nil
}

// ValidateEscrowNonNegative checks a market's escrow balance is >= 0
func (bt *BalanceTracker) ValidateEscrowNonNegative(marketID uint64, assetID AssetID) error {
	return bt.ValidateNonNegative(NewMarketAccountKey(marketID, SubTypeEscrow, assetID))
}

// ComputeGlobalBalance sums all account balances (should be 0 for zero-sum ledger)
func (bt *BalanceTracker) ComputeGlobalBalance() map[AssetID]int64 {
	totals := make(map[AssetID]int64)

	for key, balance := range bt.balances {
		totals[key.AssetID] += balance
	}

	return totals
}

// ValidateNonNegative checks that a specific account balance is >= 0
func (bt *BalanceTracker) ValidateNonNegative(key AccountKey) error {
	balance := bt.GetBalance(key)
	if balance < 0 {
		return fmt.Errorf("account %s has negative balance: %d", key.AccountPath(), balance)
	}
	return nil
}

// SetBalance sets an account balance directly (used on snapshot restore)
func (bt *BalanceTracker) SetBalance(key AccountKey, balance int64) {
	bt.balances[key] = balance
}

// Snapshot returns a copy of all balances (for state hashing)
func (bt *BalanceTracker) Snapshot() map[AccountKey]int64 {
	snapshot := make(map[AccountKey]int64, len(bt.balances))
	for k, v := range bt.balances {
		snapshot[k] = v
	}
	return snapshot
}
