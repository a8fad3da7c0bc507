package ledger

import (
	"fmt"
)

// InvariantValidator checks ledger invariants
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{
		tracker: tracker,
	}
}

// ValidateBatchBalance verifies batch is balanced
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ValidateEscrowNonNegative checks a market never pays out more than it holds
func (v *InvariantValidator) ValidateEscrowNonNegative(marketID uint64, assetID AssetID) error {
	return v.tracker.ValidateEscrowNonNegative(marketID, assetID)
}

// ValidateEscrowCleared verifies a market's escrow is empty once every
// entitlement and refund has been claimed
func (v *InvariantValidator) ValidateEscrowCleared(marketID uint64, assetID AssetID) error {
	balance := v.tracker.GetMarketEscrow(marketID, assetID)
	if balance != 0 {
		return fmt.Errorf("escrow for market %d has non-zero balance: %d", marketID, balance)
	}
	return nil
}

// ValidateGlobalBalance verifies system is zero-sum
func (v *InvariantValidator) ValidateGlobalBalance() error {
	totals := v.tracker.ComputeGlobalBalance()

	for assetID, total := range totals {
		if total != 0 {
			assetName, _ := GetAssetName(assetID)
			return fmt.Errorf("global balance for %s is non-zero: %d", assetName, total)
		}
	}

	return nil
}
