package state

// MarketStats are per-market aggregates computed from the incrementally
// maintained counters, never by rescanning history
type MarketStats struct {
	BetCount    int64 `json:"bet_count"`
	Volume      int64 `json:"volume"`
	BettorsA    int64 `json:"bettors_a"`
	BettorsB    int64 `json:"bettors_b"`
	AverageBetA int64 `json:"average_bet_a"`
	AverageBetB int64 `json:"average_bet_b"`
}

// Stats derives the per-market statistics view
func (m *Market) Stats() MarketStats {
	stats := MarketStats{
		BetCount: m.BetCount,
		Volume:   m.Volume,
		BettorsA: m.BettorsA,
		BettorsB: m.BettorsB,
	}
	if m.BettorsA > 0 {
		stats.AverageBetA = m.PoolA / m.BettorsA
	}
	if m.BettorsB > 0 {
		stats.AverageBetB = m.PoolB / m.BettorsB
	}
	return stats
}

// PlatformStats are the engine-wide running totals
type PlatformStats struct {
	TotalMarkets       int64 `json:"total_markets"`
	TotalBets          int64 `json:"total_bets"`
	TotalVolume        int64 `json:"total_volume"`
	TotalFeesCollected int64 `json:"total_fees_collected"`
}

// Stats derives the platform statistics view
func (p *Platform) Stats() PlatformStats {
	return PlatformStats{
		TotalMarkets:       p.TotalMarkets,
		TotalBets:          p.TotalBets,
		TotalVolume:        p.TotalVolume,
		TotalFeesCollected: p.TotalFeesCollected,
	}
}
