package core

import (
	"github.com/AgoraXchange/agora-contract/internal/command"
	"github.com/AgoraXchange/agora-contract/internal/event"
	"github.com/AgoraXchange/agora-contract/internal/state"

	"github.com/google/uuid"
)

// maxLabelLen bounds topic and party names so canonical serialization can
// use single-byte length prefixes
const maxLabelLen = 255

func (c *BettingCore) handleCreateMarket(cmd *command.CreateMarket) (*dispatchResult, error) {
	if c.platform.Paused {
		return nil, reject(RejectStateConflict, reasonPaused)
	}

	if cmd.Topic == "" {
		return nil, reject(RejectValidation, "Topic required")
	}
	if len(cmd.Topic) > maxLabelLen {
		return nil, reject(RejectValidation, "Topic too long")
	}
	if cmd.PartyA == "" || cmd.PartyB == "" {
		return nil, reject(RejectValidation, "Both party names required")
	}
	if len(cmd.PartyA) > maxLabelLen || len(cmd.PartyB) > maxLabelLen {
		return nil, reject(RejectValidation, "Party name too long")
	}
	if cmd.PartyA == cmd.PartyB {
		return nil, reject(RejectValidation, "Party names must differ")
	}
	if cmd.PartyRewardPct < 0 || cmd.PartyRewardPct > state.MaxPartyRewardPct {
		return nil, reject(RejectValidation, "Party reward too high")
	}
	if cmd.PartyRewardDest == uuid.Nil {
		return nil, reject(RejectValidation, "Party reward destination required")
	}
	if !cmd.BettingEndTime.After(cmd.At) {
		return nil, reject(RejectTemporal, "Betting end time must be in the future")
	}

	minBet, maxBet := c.platform.EffectiveLimits(cmd.MinBet, cmd.MaxBet)
	if minBet <= 0 || maxBet < minBet {
		return nil, reject(RejectValidation, "Invalid bet limits")
	}

	bettingEnd := cmd.BettingEndTime.UnixMicro()

	market := &state.Market{
		Topic:           cmd.Topic,
		PartyA:          cmd.PartyA,
		PartyB:          cmd.PartyB,
		Creator:         cmd.CallerID,
		PartyRewardPct:  cmd.PartyRewardPct,
		PartyRewardDest: cmd.PartyRewardDest,
		BettingEndTime:  bettingEnd,
		RevealEndTime:   bettingEnd + state.RevealWindow.Microseconds(),
		MinBet:          minBet,
		MaxBet:          maxBet,
		Status:          state.MarketStatusActive,
		CreatedAt:       cmd.At.UnixMicro(),
		CancelAfter:     bettingEnd - state.CancellationGrace.Microseconds(),
		Version:         1,
	}

	marketID := c.markets.Create(market)

	c.platform.TotalMarkets++
	c.platform.Version++

	if c.metrics != nil {
		c.metrics.MarketsCreated.Inc()
	}

	return &dispatchResult{
		eventType: event.EventTypeMarketCreated,
		marketID:  &marketID,
		payload: event.MarketCreated{
			MarketID:        marketID,
			Topic:           market.Topic,
			PartyA:          market.PartyA,
			PartyB:          market.PartyB,
			Creator:         market.Creator,
			PartyRewardPct:  market.PartyRewardPct,
			PartyRewardDest: market.PartyRewardDest,
			BettingEndTime:  market.BettingEndTime,
			RevealEndTime:   market.RevealEndTime,
			MinBet:          market.MinBet,
			MaxBet:          market.MaxBet,
		},
	}, nil
}

// handleCloseBetting transitions a market past its reveal window. Any caller
// may close; the transition is mechanical once the deadline passed. A market
// with zero revealed stake on both sides cancels instead, leaving every
// committed stake refundable.
func (c *BettingCore) handleCloseBetting(cmd *command.CloseBetting) (*dispatchResult, error) {
	market := c.markets.Get(cmd.MarketID)
	if market == nil {
		return nil, reject(RejectNotFound, reasonMarketNotFound)
	}
	if market.Status != state.MarketStatusActive {
		return nil, rejectf(RejectStateConflict, "Market is %s", market.Status)
	}
	if cmd.At.UnixMicro() < market.RevealEndTime {
		return nil, reject(RejectTemporal, "Reveal window still open")
	}

	if market.RevealedPool() == 0 {
		market.Status = state.MarketStatusCancelled
		market.Version++

		if c.metrics != nil {
			c.metrics.MarketsCancelled.Inc()
		}

		return &dispatchResult{
			eventType: event.EventTypeMarketCancelled,
			payload: event.MarketCancelled{
				MarketID:   market.ID,
				Refundable: market.EscrowHeld,
			},
		}, nil
	}

	market.Status = state.MarketStatusBettingClosed
	market.Version++

	return &dispatchResult{
		eventType: event.EventTypeBettingClosed,
		payload: event.BettingClosed{
			MarketID: market.ID,
			PoolA:    market.PoolA,
			PoolB:    market.PoolB,
		},
	}, nil
}

func (c *BettingCore) handleDeclareWinner(cmd *command.DeclareWinner) (*dispatchResult, error) {
	if cmd.CallerID != c.platform.Oracle {
		return nil, reject(RejectAuthorization, "Caller is not the oracle")
	}

	market := c.markets.Get(cmd.MarketID)
	if market == nil {
		return nil, reject(RejectNotFound, reasonMarketNotFound)
	}
	if cmd.At.UnixMicro() < market.RevealEndTime {
		return nil, reject(RejectTemporal, "Reveal window still open")
	}
	if market.Status != state.MarketStatusBettingClosed {
		return nil, rejectf(RejectStateConflict, "Market is %s", market.Status)
	}

	winner := state.Choice(cmd.Winner)
	if !winner.IsSide() && winner != state.ChoiceDraw {
		return nil, reject(RejectValidation, "Invalid winner")
	}

	market.Winner = winner
	market.Status = state.MarketStatusResolved
	market.ResolvedAt = cmd.At.UnixMicro()
	market.Version++

	if c.metrics != nil {
		c.metrics.MarketsResolved.WithLabelValues(winner.String()).Inc()
	}

	return &dispatchResult{
		eventType: event.EventTypeWinnerDeclared,
		payload: event.WinnerDeclared{
			MarketID: market.ID,
			Winner:   uint8(winner),
			WinPool:  market.PoolFor(winner),
			LosePool: market.PoolFor(winner.Opposite()),
		},
	}, nil
}

// handleCancelMarket is the owner-only emergency path. A resolved market can
// no longer be cancelled; funds then leave only through distribution.
func (c *BettingCore) handleCancelMarket(cmd *command.CancelMarket) (*dispatchResult, error) {
	if cmd.CallerID != c.platform.Owner {
		return nil, reject(RejectAuthorization, "Caller is not the owner")
	}

	market := c.markets.Get(cmd.MarketID)
	if market == nil {
		return nil, reject(RejectNotFound, reasonMarketNotFound)
	}
	if !market.Status.CanTransitionTo(state.MarketStatusCancelled) {
		return nil, rejectf(RejectStateConflict, "Market is %s", market.Status)
	}

	// While betting is still open the commitment game is live; cancellation
	// is only allowed if nobody has played yet. Past closure the owner can
	// always unblock a market the oracle failed to resolve.
	if market.Status == state.MarketStatusActive && c.bets.HasRecords(market.ID) {
		return nil, reject(RejectStateConflict, "Market has bets")
	}

	market.Status = state.MarketStatusCancelled
	market.Version++

	if c.metrics != nil {
		c.metrics.MarketsCancelled.Inc()
	}

	return &dispatchResult{
		eventType: event.EventTypeMarketCancelled,
		payload: event.MarketCancelled{
			MarketID:   market.ID,
			Refundable: market.EscrowHeld,
		},
	}, nil
}
