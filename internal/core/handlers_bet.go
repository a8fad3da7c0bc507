package core

import (
	"context"

	"github.com/AgoraXchange/agora-contract/internal/command"
	"github.com/AgoraXchange/agora-contract/internal/event"
	"github.com/AgoraXchange/agora-contract/internal/ledger"
	"github.com/AgoraXchange/agora-contract/internal/state"
)

func (c *BettingCore) handleCommitBet(cmd *command.CommitBet) (*dispatchResult, error) {
	if c.platform.Paused {
		return nil, reject(RejectStateConflict, reasonPaused)
	}

	market := c.markets.Get(cmd.MarketID)
	if market == nil {
		return nil, reject(RejectNotFound, reasonMarketNotFound)
	}
	if market.Status != state.MarketStatusActive {
		return nil, rejectf(RejectStateConflict, "Market is %s", market.Status)
	}
	if cmd.At.UnixMicro() >= market.BettingEndTime {
		return nil, reject(RejectTemporal, "Betting period ended")
	}

	if cmd.Amount <= 0 {
		return nil, reject(RejectValidation, "Amount must be positive")
	}
	if cmd.DepositValue != cmd.Amount {
		return nil, reject(RejectValidation, "Deposit does not match amount")
	}
	if cmd.Amount < market.MinBet {
		return nil, reject(RejectValidation, reasonBetBelowMinimum)
	}
	if cmd.Amount > market.MaxBet {
		return nil, reject(RejectValidation, reasonBetAboveMaximum)
	}
	if cmd.Commitment.IsZero() {
		return nil, reject(RejectValidation, "Commitment required")
	}

	batch, err := c.journalGen.GenerateEscrowDeposit(
		market.ID, cmd.CommandID.String(), cmd.Amount,
		ledger.DefaultAssetID, cmd.At.UnixMicro(),
	)
	if err != nil {
		return nil, rejectWrap(RejectValidation, "escrow deposit", err)
	}

	record := &state.BetRecord{
		MarketID:    market.ID,
		Bettor:      cmd.CallerID,
		Commitment:  cmd.Commitment,
		Amount:      cmd.Amount,
		State:       state.BetStateCommitted,
		CommittedAt: cmd.At.UnixMicro(),
		Version:     1,
	}
	index := c.bets.Append(record)

	market.BetCount++
	market.EscrowHeld += cmd.Amount
	market.Version++

	c.platform.TotalBets++
	c.platform.TotalVolume += cmd.Amount
	c.platform.Version++

	if c.metrics != nil {
		c.metrics.BetsCommitted.Inc()
		c.metrics.VolumeCommitted.Add(float64(cmd.Amount))
		c.metrics.EscrowHeld.Add(float64(cmd.Amount))
	}

	return &dispatchResult{
		batch:     batch,
		eventType: event.EventTypeBetCommitted,
		payload: event.BetCommitted{
			MarketID:    market.ID,
			Bettor:      cmd.CallerID,
			RecordIndex: index,
			Commitment:  cmd.Commitment.String(),
			Amount:      cmd.Amount,
		},
	}, nil
}

// handleRevealBet discloses a commitment. The caller's committed records are
// scanned for a match; a failed scan never reports which input differed.
// Reveals stay available under pause.
func (c *BettingCore) handleRevealBet(cmd *command.RevealBet) (*dispatchResult, error) {
	market := c.markets.Get(cmd.MarketID)
	if market == nil {
		return nil, reject(RejectNotFound, reasonMarketNotFound)
	}
	if market.Status != state.MarketStatusActive {
		return nil, rejectf(RejectStateConflict, "Market is %s", market.Status)
	}

	now := cmd.At.UnixMicro()
	if now < market.BettingEndTime {
		return nil, reject(RejectTemporal, "Betting period still open")
	}
	if now >= market.RevealEndTime {
		return nil, reject(RejectTemporal, "Reveal period ended")
	}

	choice := state.Choice(cmd.Choice)
	if !choice.IsSide() {
		return nil, reject(RejectValidation, "Invalid choice")
	}

	record := c.bets.FindCommittedMatch(market.ID, cmd.CallerID, choice, cmd.Nonce)
	if record == nil {
		return nil, reject(RejectIntegrity, reasonInvalidReveal)
	}

	record.Choice = choice
	record.State = state.BetStateRevealed
	record.RevealedAt = now
	record.Version++

	switch choice {
	case state.ChoiceA:
		market.PoolA += record.Amount
	case state.ChoiceB:
		market.PoolB += record.Amount
	}
	market.Volume += record.Amount
	if c.bets.MarkSeenOnSide(market.ID, cmd.CallerID, choice) {
		if choice == state.ChoiceA {
			market.BettorsA++
		} else {
			market.BettorsB++
		}
	}
	market.Version++

	if c.metrics != nil {
		c.metrics.BetsRevealed.WithLabelValues(choice.String()).Inc()
	}

	return &dispatchResult{
		eventType: event.EventTypeBetRevealed,
		payload: event.BetRevealed{
			MarketID:    market.ID,
			Bettor:      cmd.CallerID,
			RecordIndex: record.Index,
			Choice:      uint8(choice),
			Amount:      record.Amount,
		},
	}, nil
}

// handleCancelBet takes back a still-hidden bet. The stake is pushed back
// before any bookkeeping changes; a failed push aborts with the store
// untouched.
func (c *BettingCore) handleCancelBet(ctx context.Context, cmd *command.CancelBet) (*dispatchResult, error) {
	market := c.markets.Get(cmd.MarketID)
	if market == nil {
		return nil, reject(RejectNotFound, reasonMarketNotFound)
	}

	record := c.bets.Get(market.ID, cmd.RecordIndex)
	if record == nil {
		return nil, reject(RejectNotFound, reasonRecordNotFound)
	}
	if record.Bettor != cmd.CallerID {
		return nil, reject(RejectAuthorization, "Caller does not own this bet")
	}
	if record.State != state.BetStateCommitted {
		return nil, rejectf(RejectStateConflict, "Bet is %s", record.State)
	}
	if market.Status != state.MarketStatusActive {
		return nil, rejectf(RejectStateConflict, "Market is %s", market.Status)
	}
	if cmd.At.UnixMicro() > market.CancelAfter {
		return nil, reject(RejectTemporal, reasonCancelDeadline)
	}

	if err := c.transferrer.Transfer(ctx, cmd.CallerID, record.Amount); err != nil {
		return nil, rejectWrap(RejectTransfer, "Refund transfer failed", err)
	}

	batch, err := c.journalGen.GenerateRefund(
		market.ID, cmd.CommandID.String(), record.Amount,
		ledger.JournalTypeCancelRefund, ledger.DefaultAssetID, cmd.At.UnixMicro(),
	)
	if err != nil {
		panic("FATAL: cancel refund exceeds tracked escrow: " + err.Error())
	}

	record.State = state.BetStateCancelled
	record.Version++

	market.BetCount--
	market.EscrowHeld -= record.Amount
	market.Version++

	c.platform.TotalBets--
	c.platform.TotalVolume -= record.Amount
	c.platform.Version++

	if c.metrics != nil {
		c.metrics.BetsCancelled.Inc()
		c.metrics.EscrowHeld.Sub(float64(record.Amount))
	}

	return &dispatchResult{
		batch:     batch,
		eventType: event.EventTypeBetCancelled,
		payload: event.BetCancelled{
			MarketID:    market.ID,
			Bettor:      cmd.CallerID,
			RecordIndex: record.Index,
			Amount:      record.Amount,
		},
	}, nil
}

// handleRefundBet returns a stake that was never revealed, once the reveal
// window closed or the market was cancelled. Stays available under pause.
func (c *BettingCore) handleRefundBet(ctx context.Context, cmd *command.RefundBet) (*dispatchResult, error) {
	market := c.markets.Get(cmd.MarketID)
	if market == nil {
		return nil, reject(RejectNotFound, reasonMarketNotFound)
	}

	record := c.bets.Get(market.ID, cmd.RecordIndex)
	if record == nil {
		return nil, reject(RejectNotFound, reasonRecordNotFound)
	}
	if record.Bettor != cmd.CallerID {
		return nil, reject(RejectAuthorization, "Caller does not own this bet")
	}
	if record.State != state.BetStateCommitted {
		return nil, rejectf(RejectStateConflict, "Bet is %s", record.State)
	}

	// Cancelled markets refund immediately; otherwise the stake stays locked
	// until the reveal window has passed unused
	if market.Status != state.MarketStatusCancelled && cmd.At.UnixMicro() < market.RevealEndTime {
		return nil, reject(RejectTemporal, "Reveal window still open")
	}

	if err := c.transferrer.Transfer(ctx, cmd.CallerID, record.Amount); err != nil {
		return nil, rejectWrap(RejectTransfer, "Refund transfer failed", err)
	}

	journalType := ledger.JournalTypeUnrevealedRefund
	if market.Status == state.MarketStatusCancelled {
		journalType = ledger.JournalTypeStakeReclaim
	}

	batch, err := c.journalGen.GenerateRefund(
		market.ID, cmd.CommandID.String(), record.Amount,
		journalType, ledger.DefaultAssetID, cmd.At.UnixMicro(),
	)
	if err != nil {
		panic("FATAL: refund exceeds tracked escrow: " + err.Error())
	}

	record.State = state.BetStateRefunded
	record.Version++

	market.EscrowHeld -= record.Amount
	market.Version++

	if c.metrics != nil {
		c.metrics.BetsRefunded.Inc()
		c.metrics.EscrowHeld.Sub(float64(record.Amount))
	}

	return &dispatchResult{
		batch:     batch,
		eventType: event.EventTypeBetRefunded,
		payload: event.BetRefunded{
			MarketID:    market.ID,
			Bettor:      cmd.CallerID,
			RecordIndex: record.Index,
			Amount:      record.Amount,
		},
	}, nil
}
