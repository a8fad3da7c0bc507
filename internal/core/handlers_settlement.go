package core

import (
	"context"

	"github.com/AgoraXchange/agora-contract/internal/command"
	"github.com/AgoraXchange/agora-contract/internal/event"
	"github.com/AgoraXchange/agora-contract/internal/ledger"
	fpmath "github.com/AgoraXchange/agora-contract/internal/math"
	"github.com/AgoraXchange/agora-contract/internal/state"

	"github.com/google/uuid"
)

// handleDistributeRewards runs the one-shot settlement for a resolved market.
// The fee and the party reward are cut from the losing pool and pushed out
// immediately; winner entitlements are locked into a settlement snapshot and
// pulled later through claims. Truncation dust is swept with the fee so the
// losing pool splits exactly.
func (c *BettingCore) handleDistributeRewards(ctx context.Context, cmd *command.DistributeRewards) (*dispatchResult, error) {
	market := c.markets.Get(cmd.MarketID)
	if market == nil {
		return nil, reject(RejectNotFound, reasonMarketNotFound)
	}
	if market.Status == state.MarketStatusDistributed || c.settlements.Get(market.ID) != nil {
		return nil, reject(RejectStateConflict, reasonAlreadyDistributed)
	}
	if market.Status != state.MarketStatusResolved {
		return nil, rejectf(RejectStateConflict, "Market is %s", market.Status)
	}

	plan := c.computeDistribution(market)
	winner := market.Winner
	entitlements := plan.entitlements
	feeAmount := plan.feeAmount
	partyRewardAmount := plan.partyRewardAmount
	residualAmount := plan.residualAmount
	winPool := plan.winPool
	losePool := plan.losePool
	totalEntitlement := plan.totalEntitlement

	// Push the cuts before any bookkeeping. Fee and residual go out
	// together; a failed party-reward push aborts after the fee left, which
	// is the accepted limitation of two independent pushes.
	if feeAmount+residualAmount > 0 {
		if err := c.transferrer.Transfer(ctx, c.platform.FeeRecipient, feeAmount+residualAmount); err != nil {
			return nil, rejectWrap(RejectTransfer, "Fee transfer failed", err)
		}
	}
	if partyRewardAmount > 0 {
		if err := c.transferrer.Transfer(ctx, market.PartyRewardDest, partyRewardAmount); err != nil {
			return nil, rejectWrap(RejectTransfer, "Party reward transfer failed", err)
		}
	}

	batch, err := c.journalGen.GenerateSettlementCuts(
		market.ID, cmd.CommandID.String(),
		feeAmount, residualAmount, partyRewardAmount,
		ledger.DefaultAssetID, cmd.At.UnixMicro(),
	)
	if err != nil {
		panic("FATAL: settlement cuts exceed tracked escrow: " + err.Error())
	}

	settlement := &state.Settlement{
		MarketID:          market.ID,
		Winner:            winner,
		WinPool:           winPool,
		LosePool:          losePool,
		FeeAmount:         feeAmount,
		PartyRewardAmount: partyRewardAmount,
		ResidualAmount:    residualAmount,
		Entitlements:      entitlements,
		TotalEntitlement:  totalEntitlement,
		DistributedAt:     cmd.At.UnixMicro(),
	}
	c.settlements.Put(settlement)

	cuts := feeAmount + residualAmount + partyRewardAmount
	market.Status = state.MarketStatusDistributed
	market.EscrowHeld -= cuts
	market.Version++

	c.platform.TotalFeesCollected += feeAmount + residualAmount
	c.platform.Version++

	if c.metrics != nil {
		c.metrics.FeesCollected.Add(float64(feeAmount + residualAmount))
		c.metrics.EscrowHeld.Sub(float64(cuts))
	}

	return &dispatchResult{
		batch:     batch,
		eventType: event.EventTypeRewardsDistributed,
		payload: event.RewardsDistributed{
			MarketID:          market.ID,
			Winner:            uint8(winner),
			FeeAmount:         feeAmount,
			PartyRewardAmount: partyRewardAmount,
			ResidualAmount:    residualAmount,
			TotalEntitlement:  totalEntitlement,
			WinnerCount:       int64(len(entitlements)),
		},
	}, nil
}

// distributionPlan is the result of the settlement split computation.
type distributionPlan struct {
	entitlements      map[uuid.UUID]int64
	feeAmount         int64
	partyRewardAmount int64
	residualAmount    int64
	winPool           int64
	losePool          int64
	totalEntitlement  int64
}

// computeDistribution derives the full settlement split from the revealed
// records and the current platform fee. The computation is deterministic
// and is shared by live distribution and event replay.
func (c *BettingCore) computeDistribution(market *state.Market) distributionPlan {
	winner := market.Winner
	plan := distributionPlan{entitlements: make(map[uuid.UUID]int64)}

	if winner == state.ChoiceDraw {
		// Draws split nothing: no fee, no party reward, every revealed
		// bettor gets exactly their own stake back through the claim path
		for _, record := range c.bets.MarketRecords(market.ID) {
			if record.State != state.BetStateRevealed {
				continue
			}
			plan.entitlements[record.Bettor] += record.Amount
			plan.totalEntitlement += record.Amount
		}
		return plan
	}

	plan.winPool = market.PoolFor(winner)
	plan.losePool = market.PoolFor(winner.Opposite())

	plan.feeAmount = fpmath.ComputePercentage(plan.losePool, c.platform.FeePct)
	plan.partyRewardAmount = fpmath.ComputePercentage(plan.losePool, market.PartyRewardPct)
	remainder := plan.losePool - plan.feeAmount - plan.partyRewardAmount

	var distributed int64
	for _, record := range c.bets.MarketRecords(market.ID) {
		if record.State != state.BetStateRevealed || record.Choice != winner {
			continue
		}
		share := fpmath.ComputeProportionalShare(record.Amount, remainder, plan.winPool)
		plan.entitlements[record.Bettor] += record.Amount + share
		plan.totalEntitlement += record.Amount + share
		distributed += share
	}

	// With no winners the whole remainder is dust
	plan.residualAmount = remainder - distributed

	if plan.feeAmount+plan.partyRewardAmount+distributed+plan.residualAmount != plan.losePool {
		panic("FATAL: settlement does not conserve the losing pool")
	}
	return plan
}

// handleClaimReward pulls the caller's aggregate entitlement. The claimable
// amount is zeroed before the transfer and restored only if the transfer
// fails, so a re-entrant or repeated claim finds nothing to take.
// Claims stay available under pause.
func (c *BettingCore) handleClaimReward(ctx context.Context, cmd *command.ClaimReward) (*dispatchResult, error) {
	market := c.markets.Get(cmd.MarketID)
	if market == nil {
		return nil, reject(RejectNotFound, reasonMarketNotFound)
	}

	switch market.Status {
	case state.MarketStatusDistributed:
		return c.claimFromSettlement(ctx, cmd, market)
	case state.MarketStatusCancelled:
		return c.claimAfterCancellation(ctx, cmd, market)
	case state.MarketStatusResolved:
		return nil, reject(RejectStateConflict, "Rewards not yet distributed")
	default:
		return nil, rejectf(RejectStateConflict, "Market is %s", market.Status)
	}
}

func (c *BettingCore) claimFromSettlement(ctx context.Context, cmd *command.ClaimReward, market *state.Market) (*dispatchResult, error) {
	settlement := c.settlements.Get(market.ID)
	if settlement == nil {
		panic("FATAL: distributed market has no settlement")
	}

	amount := settlement.ZeroEntitlement(cmd.CallerID)
	if amount == 0 {
		return nil, reject(RejectStateConflict, reasonNothingToClaim)
	}

	if err := c.transferrer.Transfer(ctx, cmd.CallerID, amount); err != nil {
		settlement.RestoreEntitlement(cmd.CallerID, amount)
		return nil, rejectWrap(RejectTransfer, "Claim transfer failed", err)
	}

	batch, err := c.journalGen.GenerateWinnerPayout(
		market.ID, cmd.CommandID.String(), amount,
		ledger.DefaultAssetID, cmd.At.UnixMicro(),
	)
	if err != nil {
		panic("FATAL: claim exceeds tracked escrow: " + err.Error())
	}

	// Mark the records whose stakes fed this entitlement
	for _, record := range c.bets.UserRecords(market.ID, cmd.CallerID) {
		if record.State != state.BetStateRevealed || record.Claimed {
			continue
		}
		if settlement.Winner != state.ChoiceDraw && record.Choice != settlement.Winner {
			continue
		}
		record.Claimed = true
		record.Version++
	}

	market.EscrowHeld -= amount
	market.Version++

	if c.metrics != nil {
		c.metrics.PayoutsClaimed.Add(float64(amount))
		c.metrics.EscrowHeld.Sub(float64(amount))
	}

	return &dispatchResult{
		batch:     batch,
		eventType: event.EventTypeRewardClaimed,
		payload: event.RewardClaimed{
			MarketID: market.ID,
			Bettor:   cmd.CallerID,
			Amount:   amount,
		},
	}, nil
}

// claimAfterCancellation returns the caller's revealed stakes at face value.
// Committed records on a cancelled market go through the refund path instead.
func (c *BettingCore) claimAfterCancellation(ctx context.Context, cmd *command.ClaimReward, market *state.Market) (*dispatchResult, error) {
	var amount int64
	var claimable []*state.BetRecord
	for _, record := range c.bets.UserRecords(market.ID, cmd.CallerID) {
		if record.State == state.BetStateRevealed && !record.Claimed {
			amount += record.Amount
			claimable = append(claimable, record)
		}
	}
	if amount == 0 {
		return nil, reject(RejectStateConflict, reasonNothingToClaim)
	}

	if err := c.transferrer.Transfer(ctx, cmd.CallerID, amount); err != nil {
		return nil, rejectWrap(RejectTransfer, "Claim transfer failed", err)
	}

	batch, err := c.journalGen.GenerateRefund(
		market.ID, cmd.CommandID.String(), amount,
		ledger.JournalTypeStakeReclaim, ledger.DefaultAssetID, cmd.At.UnixMicro(),
	)
	if err != nil {
		panic("FATAL: reclaim exceeds tracked escrow: " + err.Error())
	}

	for _, record := range claimable {
		record.Claimed = true
		record.Version++
	}

	market.EscrowHeld -= amount
	market.Version++

	if c.metrics != nil {
		c.metrics.PayoutsClaimed.Add(float64(amount))
		c.metrics.EscrowHeld.Sub(float64(amount))
	}

	return &dispatchResult{
		batch:     batch,
		eventType: event.EventTypeRewardClaimed,
		payload: event.RewardClaimed{
			MarketID: market.ID,
			Bettor:   cmd.CallerID,
			Amount:   amount,
		},
	}, nil
}
