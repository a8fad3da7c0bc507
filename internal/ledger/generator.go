package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// JournalGenerator creates balanced journal batches from commands
type JournalGenerator struct {
	sequence       int64
	balanceTracker *BalanceTracker // Reference for pre-checks
}

func NewJournalGenerator(startSequence int64, tracker *BalanceTracker) *JournalGenerator {
	return &JournalGenerator{
		sequence:       startSequence,
		balanceTracker: tracker,
	}
}

// GenerateEscrowDeposit creates journals for a committed stake entering escrow.
// Moves funds: external:deposits → market:escrow
func (jg *JournalGenerator) GenerateEscrowDeposit(
	marketID uint64,
	commandRef string,
	amount int64,
	assetID AssetID,
	timestamp int64,
) (*Batch, error) {
	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  commandRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      commandRef,
		Sequence:      jg.sequence,
		DebitAccount:  NewMarketAccountKey(marketID, SubTypeEscrow, assetID),
		CreditAccount: NewExternalAccountKey(SubTypeExternalDeposits, assetID),
		AssetID:       assetID,
		Amount:        amount,
		JournalType:   JournalTypeEscrowDeposit,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// GenerateRefund creates journals for a stake leaving escrow before settlement.
// The journal type distinguishes cancellation refunds, unrevealed-stake refunds
// and post-cancellation stake reclaims.
// Pre-check: the market must hold at least the refunded amount.
// Moves funds: market:escrow → external:payouts
func (jg *JournalGenerator) GenerateRefund(
	marketID uint64,
	commandRef string,
	amount int64,
	journalType JournalType,
	assetID AssetID,
	timestamp int64,
) (*Batch, error) {
	if err := jg.balanceTracker.ValidateSufficientEscrow(marketID, assetID, amount); err != nil {
		return nil, fmt.Errorf("refund pre-check failed: %w", err)
	}

	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  commandRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      commandRef,
		Sequence:      jg.sequence,
		DebitAccount:  NewExternalAccountKey(SubTypeExternalPayouts, assetID),
		CreditAccount: NewMarketAccountKey(marketID, SubTypeEscrow, assetID),
		AssetID:       assetID,
		Amount:        amount,
		JournalType:   journalType,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// GenerateSettlementCuts creates the multi-leg batch for the distribution step:
// the platform fee, the truncation residual and the party reward all leave
// escrow in one batch. Zero-amount legs are omitted.
// Pre-check: the market must hold the sum of all legs.
func (jg *JournalGenerator) GenerateSettlementCuts(
	marketID uint64,
	commandRef string,
	feeAmount int64,
	residualAmount int64,
	partyRewardAmount int64,
	assetID AssetID,
	timestamp int64,
) (*Batch, error) {
	total := feeAmount + residualAmount + partyRewardAmount
	if err := jg.balanceTracker.ValidateSufficientEscrow(marketID, assetID, total); err != nil {
		return nil, fmt.Errorf("settlement pre-check failed: %w", err)
	}

	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  commandRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 3),
	}

	appendLeg := func(amount int64, jt JournalType) {
		if amount <= 0 {
			return
		}
		batch.Journals = append(batch.Journals, Journal{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			EventRef:      commandRef,
			Sequence:      jg.sequence,
			DebitAccount:  NewExternalAccountKey(SubTypeExternalPayouts, assetID),
			CreditAccount: NewMarketAccountKey(marketID, SubTypeEscrow, assetID),
			AssetID:       assetID,
			Amount:        amount,
			JournalType:   jt,
			Timestamp:     timestamp,
		})
	}

	appendLeg(feeAmount, JournalTypePlatformFee)
	appendLeg(residualAmount, JournalTypeFeeResidual)
	appendLeg(partyRewardAmount, JournalTypePartyReward)

	jg.sequence++

	if len(batch.Journals) == 0 {
		return nil, nil
	}
	return batch, nil
}

// GenerateWinnerPayout creates journals for a winner claiming their entitlement.
// Pre-check: the market must still hold the entitlement.
// Moves funds: market:escrow → external:payouts
func (jg *JournalGenerator) GenerateWinnerPayout(
	marketID uint64,
	commandRef string,
	amount int64,
	assetID AssetID,
	timestamp int64,
) (*Batch, error) {
	if err := jg.balanceTracker.ValidateSufficientEscrow(marketID, assetID, amount); err != nil {
		return nil, fmt.Errorf("payout pre-check failed: %w", err)
	}

	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  commandRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      commandRef,
		Sequence:      jg.sequence,
		DebitAccount:  NewExternalAccountKey(SubTypeExternalPayouts, assetID),
		CreditAccount: NewMarketAccountKey(marketID, SubTypeEscrow, assetID),
		AssetID:       assetID,
		Amount:        amount,
		JournalType:   JournalTypeWinnerPayout,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// Sequence returns the next sequence the generator will assign
func (jg *JournalGenerator) Sequence() int64 {
	return jg.sequence
}

// SetSequence resets the generator sequence (used on snapshot restore)
func (jg *JournalGenerator) SetSequence(seq int64) {
	jg.sequence = seq
}
