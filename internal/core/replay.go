package core

import (
	"encoding/json"
	"fmt"

	"github.com/AgoraXchange/agora-contract/internal/commitment"
	"github.com/AgoraXchange/agora-contract/internal/event"
	"github.com/AgoraXchange/agora-contract/internal/ledger"
	"github.com/AgoraXchange/agora-contract/internal/state"
)

// ReplayRow is one stored event pulled from the log for warm restart.
type ReplayRow struct {
	Sequence        int64
	EventType       event.EventType
	IdempotencyKey  string
	Payload         []byte
	StateHash       [32]byte
	PrevHash        [32]byte
	TimestampMicros int64
}

// ReplayEvent re-applies one logged event to in-memory state. Replay runs
// strictly in sequence order; each row's prev hash must match the current
// chain tip, and the stored state hash becomes the new tip. Commands are
// not re-dispatched: the event's recorded outcome is applied directly, so
// replay never re-validates deadlines, re-verifies commitments, or pushes
// external transfers.
func (c *BettingCore) ReplayEvent(row ReplayRow) error {
	if row.Sequence != c.sequence {
		return fmt.Errorf("replay gap: expected sequence %d, got %d", c.sequence, row.Sequence)
	}
	if row.PrevHash != c.hasher.GetPrevHash() {
		return fmt.Errorf("replay chain break at sequence %d: prev hash mismatch", row.Sequence)
	}

	if err := c.applyReplayedEvent(row); err != nil {
		return fmt.Errorf("replay apply at sequence %d (%s): %w", row.Sequence, row.EventType, err)
	}

	c.hasher.SetPrevHash(row.StateHash)
	c.sequence = row.Sequence + 1
	c.clockGuard.Restore(row.TimestampMicros)
	return nil
}

func (c *BettingCore) applyReplayedEvent(row ReplayRow) error {
	ts := row.TimestampMicros

	switch row.EventType {
	case event.EventTypeMarketCreated:
		var p event.MarketCreated
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			return err
		}
		market := &state.Market{
			ID:              p.MarketID,
			Topic:           p.Topic,
			PartyA:          p.PartyA,
			PartyB:          p.PartyB,
			Creator:         p.Creator,
			PartyRewardPct:  p.PartyRewardPct,
			PartyRewardDest: p.PartyRewardDest,
			BettingEndTime:  p.BettingEndTime,
			RevealEndTime:   p.RevealEndTime,
			MinBet:          p.MinBet,
			MaxBet:          p.MaxBet,
			Status:          state.MarketStatusActive,
			CreatedAt:       ts,
			CancelAfter:     p.BettingEndTime - state.CancellationGrace.Microseconds(),
		}
		c.markets.Restore(market)
		c.platform.TotalMarkets++
		c.platform.Version++

	case event.EventTypeBetCommitted:
		var p event.BetCommitted
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			return err
		}
		com, err := commitment.Parse(p.Commitment)
		if err != nil {
			return fmt.Errorf("parse commitment: %w", err)
		}
		market := c.markets.Get(p.MarketID)
		if market == nil {
			return fmt.Errorf("market %d not found", p.MarketID)
		}
		c.bets.Restore(&state.BetRecord{
			Index:       p.RecordIndex,
			MarketID:    p.MarketID,
			Bettor:      p.Bettor,
			Commitment:  com,
			Amount:      p.Amount,
			State:       state.BetStateCommitted,
			CommittedAt: ts,
		})
		market.BetCount++
		market.EscrowHeld += p.Amount
		market.Version++
		c.platform.TotalBets++
		c.platform.TotalVolume += p.Amount
		c.platform.Version++

		batch, err := c.journalGen.GenerateEscrowDeposit(p.MarketID, row.IdempotencyKey, p.Amount, ledger.DefaultAssetID, ts)
		if err != nil {
			return err
		}
		return c.balanceTracker.ApplyBatch(batch)

	case event.EventTypeBetRevealed:
		var p event.BetRevealed
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			return err
		}
		market := c.markets.Get(p.MarketID)
		record := c.bets.Get(p.MarketID, p.RecordIndex)
		if market == nil || record == nil {
			return fmt.Errorf("market %d record %d not found", p.MarketID, p.RecordIndex)
		}
		side := state.Choice(p.Choice)
		record.Choice = side
		record.State = state.BetStateRevealed
		record.RevealedAt = ts
		record.Version++
		if side == state.ChoiceA {
			market.PoolA += p.Amount
		} else {
			market.PoolB += p.Amount
		}
		market.Volume += p.Amount
		if c.bets.MarkSeenOnSide(p.MarketID, p.Bettor, side) {
			if side == state.ChoiceA {
				market.BettorsA++
			} else {
				market.BettorsB++
			}
		}
		market.Version++

	case event.EventTypeBetCancelled:
		var p event.BetCancelled
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			return err
		}
		market := c.markets.Get(p.MarketID)
		record := c.bets.Get(p.MarketID, p.RecordIndex)
		if market == nil || record == nil {
			return fmt.Errorf("market %d record %d not found", p.MarketID, p.RecordIndex)
		}
		record.State = state.BetStateCancelled
		record.Version++
		market.BetCount--
		market.EscrowHeld -= p.Amount
		market.Version++
		c.platform.TotalBets--
		c.platform.TotalVolume -= p.Amount
		c.platform.Version++

		batch, err := c.journalGen.GenerateRefund(p.MarketID, row.IdempotencyKey, p.Amount, ledger.JournalTypeCancelRefund, ledger.DefaultAssetID, ts)
		if err != nil {
			return err
		}
		return c.balanceTracker.ApplyBatch(batch)

	case event.EventTypeBetRefunded:
		var p event.BetRefunded
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			return err
		}
		market := c.markets.Get(p.MarketID)
		record := c.bets.Get(p.MarketID, p.RecordIndex)
		if market == nil || record == nil {
			return fmt.Errorf("market %d record %d not found", p.MarketID, p.RecordIndex)
		}
		journalType := ledger.JournalTypeUnrevealedRefund
		if market.Status == state.MarketStatusCancelled {
			journalType = ledger.JournalTypeStakeReclaim
		}
		record.State = state.BetStateRefunded
		record.Version++
		market.EscrowHeld -= p.Amount
		market.Version++

		batch, err := c.journalGen.GenerateRefund(p.MarketID, row.IdempotencyKey, p.Amount, journalType, ledger.DefaultAssetID, ts)
		if err != nil {
			return err
		}
		return c.balanceTracker.ApplyBatch(batch)

	case event.EventTypeBettingClosed:
		var p event.BettingClosed
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			return err
		}
		market := c.markets.Get(p.MarketID)
		if market == nil {
			return fmt.Errorf("market %d not found", p.MarketID)
		}
		market.Status = state.MarketStatusBettingClosed
		market.Version++

	case event.EventTypeMarketCancelled:
		var p event.MarketCancelled
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			return err
		}
		market := c.markets.Get(p.MarketID)
		if market == nil {
			return fmt.Errorf("market %d not found", p.MarketID)
		}
		market.Status = state.MarketStatusCancelled
		market.Version++

	case event.EventTypeWinnerDeclared:
		var p event.WinnerDeclared
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			return err
		}
		market := c.markets.Get(p.MarketID)
		if market == nil {
			return fmt.Errorf("market %d not found", p.MarketID)
		}
		market.Winner = state.Choice(p.Winner)
		market.Status = state.MarketStatusResolved
		market.ResolvedAt = ts
		market.Version++

	case event.EventTypeRewardsDistributed:
		var p event.RewardsDistributed
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			return err
		}
		market := c.markets.Get(p.MarketID)
		if market == nil {
			return fmt.Errorf("market %d not found", p.MarketID)
		}

		// The split is recomputed from replayed state; the logged amounts
		// double as a cross-check on determinism.
		plan := c.computeDistribution(market)
		if plan.feeAmount != p.FeeAmount || plan.partyRewardAmount != p.PartyRewardAmount ||
			plan.residualAmount != p.ResidualAmount || plan.totalEntitlement != p.TotalEntitlement {
			return fmt.Errorf("market %d: recomputed split diverges from logged split", p.MarketID)
		}

		batch, err := c.journalGen.GenerateSettlementCuts(
			market.ID, row.IdempotencyKey,
			plan.feeAmount, plan.residualAmount, plan.partyRewardAmount,
			ledger.DefaultAssetID, ts,
		)
		if err != nil {
			return err
		}

		c.settlements.Restore(&state.Settlement{
			MarketID:          market.ID,
			Winner:            market.Winner,
			WinPool:           plan.winPool,
			LosePool:          plan.losePool,
			FeeAmount:         plan.feeAmount,
			PartyRewardAmount: plan.partyRewardAmount,
			ResidualAmount:    plan.residualAmount,
			Entitlements:      plan.entitlements,
			TotalEntitlement:  plan.totalEntitlement,
			DistributedAt:     ts,
		})

		cuts := plan.feeAmount + plan.residualAmount + plan.partyRewardAmount
		market.Status = state.MarketStatusDistributed
		market.EscrowHeld -= cuts
		market.Version++
		c.platform.TotalFeesCollected += plan.feeAmount + plan.residualAmount
		c.platform.Version++

		if batch != nil {
			return c.balanceTracker.ApplyBatch(batch)
		}

	case event.EventTypeRewardClaimed:
		var p event.RewardClaimed
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			return err
		}
		market := c.markets.Get(p.MarketID)
		if market == nil {
			return fmt.Errorf("market %d not found", p.MarketID)
		}

		var batch *ledger.Batch
		var err error
		if market.Status == state.MarketStatusCancelled {
			for _, record := range c.bets.UserRecords(market.ID, p.Bettor) {
				if record.State == state.BetStateRevealed && !record.Claimed {
					record.Claimed = true
					record.Version++
				}
			}
			batch, err = c.journalGen.GenerateRefund(market.ID, row.IdempotencyKey, p.Amount, ledger.JournalTypeStakeReclaim, ledger.DefaultAssetID, ts)
		} else {
			settlement := c.settlements.Get(market.ID)
			if settlement == nil {
				return fmt.Errorf("market %d has no settlement", p.MarketID)
			}
			if got := settlement.ZeroEntitlement(p.Bettor); got != p.Amount {
				return fmt.Errorf("market %d: entitlement %d diverges from logged claim %d", p.MarketID, got, p.Amount)
			}
			for _, record := range c.bets.UserRecords(market.ID, p.Bettor) {
				if record.State != state.BetStateRevealed || record.Claimed {
					continue
				}
				if settlement.Winner != state.ChoiceDraw && record.Choice != settlement.Winner {
					continue
				}
				record.Claimed = true
				record.Version++
			}
			batch, err = c.journalGen.GenerateWinnerPayout(market.ID, row.IdempotencyKey, p.Amount, ledger.DefaultAssetID, ts)
		}
		if err != nil {
			return err
		}
		market.EscrowHeld -= p.Amount
		market.Version++
		return c.balanceTracker.ApplyBatch(batch)

	case event.EventTypePlatformFeeUpdated:
		var p event.PlatformFeeUpdated
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			return err
		}
		c.platform.FeePct = p.NewFeePct
		c.platform.Version++

	case event.EventTypeFeeRecipientUpdated:
		var p event.FeeRecipientUpdated
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			return err
		}
		c.platform.FeeRecipient = p.NewRecipient
		c.platform.Version++

	case event.EventTypeDefaultBetLimitsUpdated:
		var p event.DefaultBetLimitsUpdated
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			return err
		}
		c.platform.MinBet = p.MinBet
		c.platform.MaxBet = p.MaxBet
		c.platform.Version++

	case event.EventTypeOracleUpdated:
		var p event.OracleUpdated
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			return err
		}
		c.platform.Oracle = p.NewOracle
		c.platform.Version++

	case event.EventTypeOwnershipTransferred:
		var p event.OwnershipTransferred
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			return err
		}
		c.platform.Owner = p.NewOwner
		c.platform.Version++

	case event.EventTypePaused:
		c.platform.Paused = true
		c.platform.Version++

	case event.EventTypeUnpaused:
		c.platform.Paused = false
		c.platform.Version++

	default:
		return fmt.Errorf("unknown event type %d", row.EventType)
	}

	return nil
}
