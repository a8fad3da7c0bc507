package persistence

import (
	"fmt"
	"sort"
	"time"

	"github.com/AgoraXchange/agora-contract/internal/commitment"
	"github.com/AgoraXchange/agora-contract/internal/core"
	"github.com/AgoraXchange/agora-contract/internal/ledger"
	"github.com/AgoraXchange/agora-contract/internal/state"

	"github.com/google/uuid"
)

// EncodeSnapshot converts the core's in-memory snapshot to its serializable
// form. Markets and bets are ordered so encoding is deterministic.
func EncodeSnapshot(snap *core.SnapshotState) *SnapshotData {
	hash := snap.StateHash

	balances := make(map[string]int64, len(snap.Balances))
	for key, balance := range snap.Balances {
		balances[key.AccountPath()] = balance
	}

	markets := make([]MarketSnapshot, 0, len(snap.Markets))
	for _, m := range snap.Markets {
		markets = append(markets, MarketSnapshot{
			ID:              m.ID,
			Topic:           m.Topic,
			PartyA:          m.PartyA,
			PartyB:          m.PartyB,
			Creator:         m.Creator.String(),
			PartyRewardPct:  m.PartyRewardPct,
			PartyRewardDest: m.PartyRewardDest.String(),
			BettingEndTime:  m.BettingEndTime,
			RevealEndTime:   m.RevealEndTime,
			MinBet:          m.MinBet,
			MaxBet:          m.MaxBet,
			Status:          int32(m.Status),
			Winner:          uint8(m.Winner),
			PoolA:           m.PoolA,
			PoolB:           m.PoolB,
			BetCount:        m.BetCount,
			Volume:          m.Volume,
			BettorsA:        m.BettorsA,
			BettorsB:        m.BettorsB,
			EscrowHeld:      m.EscrowHeld,
			CreatedAt:       m.CreatedAt,
			CancelAfter:     m.CancelAfter,
			ResolvedAt:      m.ResolvedAt,
			Version:         m.Version,
		})
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].ID < markets[j].ID })

	bets := make([]BetSnapshot, 0, len(snap.Bets))
	for _, b := range snap.Bets {
		bets = append(bets, BetSnapshot{
			Index:       b.Index,
			MarketID:    b.MarketID,
			Bettor:      b.Bettor.String(),
			Commitment:  b.Commitment.String(),
			Amount:      b.Amount,
			Choice:      uint8(b.Choice),
			State:       int32(b.State),
			CommittedAt: b.CommittedAt,
			RevealedAt:  b.RevealedAt,
			Claimed:     b.Claimed,
			Version:     b.Version,
		})
	}
	sort.Slice(bets, func(i, j int) bool {
		if bets[i].MarketID != bets[j].MarketID {
			return bets[i].MarketID < bets[j].MarketID
		}
		return bets[i].Index < bets[j].Index
	})

	settlements := make([]SettlementSnapshot, 0, len(snap.Settlements))
	for _, s := range snap.Settlements {
		entitlements := make(map[string]int64, len(s.Entitlements))
		for bettor, amount := range s.Entitlements {
			entitlements[bettor.String()] = amount
		}
		settlements = append(settlements, SettlementSnapshot{
			MarketID:          s.MarketID,
			Winner:            uint8(s.Winner),
			WinPool:           s.WinPool,
			LosePool:          s.LosePool,
			FeeAmount:         s.FeeAmount,
			PartyRewardAmount: s.PartyRewardAmount,
			ResidualAmount:    s.ResidualAmount,
			Entitlements:      entitlements,
			TotalEntitlement:  s.TotalEntitlement,
			ClaimedTotal:      s.ClaimedTotal,
			DistributedAt:     s.DistributedAt,
		})
	}
	sort.Slice(settlements, func(i, j int) bool { return settlements[i].MarketID < settlements[j].MarketID })

	return &SnapshotData{
		Sequence:    snap.Sequence,
		StateHash:   hash[:],
		ClockMicros: snap.ClockMicros,
		Balances:    balances,
		Markets:     markets,
		Bets:        bets,
		Settlements: settlements,
		Platform: PlatformSnapshot{
			Owner:              snap.Platform.Owner.String(),
			Oracle:             snap.Platform.Oracle.String(),
			FeeRecipient:       snap.Platform.FeeRecipient.String(),
			FeePct:             snap.Platform.FeePct,
			MinBet:             snap.Platform.MinBet,
			MaxBet:             snap.Platform.MaxBet,
			Paused:             snap.Platform.Paused,
			TotalMarkets:       snap.Platform.TotalMarkets,
			TotalBets:          snap.Platform.TotalBets,
			TotalVolume:        snap.Platform.TotalVolume,
			TotalFeesCollected: snap.Platform.TotalFeesCollected,
			Version:            snap.Platform.Version,
		},
		IdempotencyKeys: snap.IdempotencyKeys,
		CreatedAt:       time.Now().UTC(),
	}
}

// DecodeSnapshot converts loaded snapshot data back to the core's form.
func DecodeSnapshot(data *SnapshotData) (*core.SnapshotState, error) {
	var hash [32]byte
	copy(hash[:], data.StateHash)

	balances := make(map[ledger.AccountKey]int64, len(data.Balances))
	for path, balance := range data.Balances {
		key, err := ledger.ParseAccountPath(path)
		if err != nil {
			return nil, fmt.Errorf("parse account path %q: %w", path, err)
		}
		balances[key] = balance
	}

	markets := make([]*state.Market, 0, len(data.Markets))
	for _, m := range data.Markets {
		creator, err := uuid.Parse(m.Creator)
		if err != nil {
			return nil, fmt.Errorf("parse market %d creator: %w", m.ID, err)
		}
		dest, err := uuid.Parse(m.PartyRewardDest)
		if err != nil {
			return nil, fmt.Errorf("parse market %d reward dest: %w", m.ID, err)
		}
		markets = append(markets, &state.Market{
			ID:              m.ID,
			Topic:           m.Topic,
			PartyA:          m.PartyA,
			PartyB:          m.PartyB,
			Creator:         creator,
			PartyRewardPct:  m.PartyRewardPct,
			PartyRewardDest: dest,
			BettingEndTime:  m.BettingEndTime,
			RevealEndTime:   m.RevealEndTime,
			MinBet:          m.MinBet,
			MaxBet:          m.MaxBet,
			Status:          state.MarketStatus(m.Status),
			Winner:          state.Choice(m.Winner),
			PoolA:           m.PoolA,
			PoolB:           m.PoolB,
			BetCount:        m.BetCount,
			Volume:          m.Volume,
			BettorsA:        m.BettorsA,
			BettorsB:        m.BettorsB,
			EscrowHeld:      m.EscrowHeld,
			CreatedAt:       m.CreatedAt,
			CancelAfter:     m.CancelAfter,
			ResolvedAt:      m.ResolvedAt,
			Version:         m.Version,
		})
	}

	bets := make([]*state.BetRecord, 0, len(data.Bets))
	for _, b := range data.Bets {
		bettor, err := uuid.Parse(b.Bettor)
		if err != nil {
			return nil, fmt.Errorf("parse bet %d/%d bettor: %w", b.MarketID, b.Index, err)
		}
		hash, err := commitment.Parse(b.Commitment)
		if err != nil {
			return nil, fmt.Errorf("parse bet %d/%d commitment: %w", b.MarketID, b.Index, err)
		}
		bets = append(bets, &state.BetRecord{
			Index:       b.Index,
			MarketID:    b.MarketID,
			Bettor:      bettor,
			Commitment:  hash,
			Amount:      b.Amount,
			Choice:      state.Choice(b.Choice),
			State:       state.BetState(b.State),
			CommittedAt: b.CommittedAt,
			RevealedAt:  b.RevealedAt,
			Claimed:     b.Claimed,
			Version:     b.Version,
		})
	}

	settlements := make([]*state.Settlement, 0, len(data.Settlements))
	for _, s := range data.Settlements {
		entitlements := make(map[uuid.UUID]int64, len(s.Entitlements))
		for bettorStr, amount := range s.Entitlements {
			bettor, err := uuid.Parse(bettorStr)
			if err != nil {
				return nil, fmt.Errorf("parse settlement %d bettor: %w", s.MarketID, err)
			}
			entitlements[bettor] = amount
		}
		settlements = append(settlements, &state.Settlement{
			MarketID:          s.MarketID,
			Winner:            state.Choice(s.Winner),
			WinPool:           s.WinPool,
			LosePool:          s.LosePool,
			FeeAmount:         s.FeeAmount,
			PartyRewardAmount: s.PartyRewardAmount,
			ResidualAmount:    s.ResidualAmount,
			Entitlements:      entitlements,
			TotalEntitlement:  s.TotalEntitlement,
			ClaimedTotal:      s.ClaimedTotal,
			DistributedAt:     s.DistributedAt,
		})
	}

	owner, err := uuid.Parse(data.Platform.Owner)
	if err != nil {
		return nil, fmt.Errorf("parse platform owner: %w", err)
	}
	oracle, err := uuid.Parse(data.Platform.Oracle)
	if err != nil {
		return nil, fmt.Errorf("parse platform oracle: %w", err)
	}
	feeRecipient, err := uuid.Parse(data.Platform.FeeRecipient)
	if err != nil {
		return nil, fmt.Errorf("parse platform fee recipient: %w", err)
	}

	return &core.SnapshotState{
		Sequence:    data.Sequence,
		StateHash:   hash,
		ClockMicros: data.ClockMicros,
		Balances:    balances,
		Markets:     markets,
		Bets:        bets,
		Settlements: settlements,
		Platform: &state.Platform{
			Owner:              owner,
			Oracle:             oracle,
			FeeRecipient:       feeRecipient,
			FeePct:             data.Platform.FeePct,
			MinBet:             data.Platform.MinBet,
			MaxBet:             data.Platform.MaxBet,
			Paused:             data.Platform.Paused,
			TotalMarkets:       data.Platform.TotalMarkets,
			TotalBets:          data.Platform.TotalBets,
			TotalVolume:        data.Platform.TotalVolume,
			TotalFeesCollected: data.Platform.TotalFeesCollected,
			Version:            data.Platform.Version,
		},
		IdempotencyKeys: data.IdempotencyKeys,
	}, nil
}
