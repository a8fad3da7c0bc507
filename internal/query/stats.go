package query

import (
	"context"
	"database/sql"
	"time"
)

// MarketStatsView aggregates one market's betting activity.
type MarketStatsView struct {
	MarketID     uint64 `json:"market_id"`
	PoolA        int64  `json:"pool_a"`
	PoolB        int64  `json:"pool_b"`
	TotalPool    int64  `json:"total_pool"`
	BetCount     int64  `json:"bet_count"`
	BettorsA     int64  `json:"bettors_a"`
	BettorsB     int64  `json:"bettors_b"`
	AvgBetA      int64  `json:"avg_bet_a"`
	AvgBetB      int64  `json:"avg_bet_b"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// PlatformStatsView aggregates platform-wide activity.
type PlatformStatsView struct {
	TotalMarkets  int64 `json:"total_markets"`
	ActiveMarkets int64 `json:"active_markets"`
	TotalBets     int64 `json:"total_bets"`
	TotalVolume   int64 `json:"total_volume"`
	EscrowHeld    int64 `json:"escrow_held"`
	AsOfSequence  int64 `json:"as_of_sequence"`
}

// GetMarketStats computes aggregate figures for one market. Distinct-bettor
// counts come from the revealed bet records; averages truncate.
func (qs *Service) GetMarketStats(ctx context.Context, marketID uint64) (*MarketStatsView, error) {
	defer qs.observe("get_market_stats", time.Now())

	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	v := MarketStatsView{MarketID: marketID, AsOfSequence: asOfSeq}
	err = qs.db.QueryRowContext(ctx, `
		SELECT pool_a, pool_b, bet_count
		FROM projections.markets
		WHERE market_id = $1
	`, marketID).Scan(&v.PoolA, &v.PoolB, &v.BetCount)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		qs.countError("get_market_stats")
		return nil, err
	}
	v.TotalPool = v.PoolA + v.PoolB

	err = qs.db.QueryRowContext(ctx, `
		SELECT
			COUNT(DISTINCT bettor) FILTER (WHERE choice = 1),
			COUNT(DISTINCT bettor) FILTER (WHERE choice = 2)
		FROM projections.bets
		WHERE market_id = $1 AND state = 1
	`, marketID).Scan(&v.BettorsA, &v.BettorsB)
	if err != nil {
		qs.countError("get_market_stats")
		return nil, err
	}

	if v.BettorsA > 0 {
		v.AvgBetA = v.PoolA / v.BettorsA
	}
	if v.BettorsB > 0 {
		v.AvgBetB = v.PoolB / v.BettorsB
	}
	return &v, nil
}

// GetPlatformStats computes platform-wide aggregates.
func (qs *Service) GetPlatformStats(ctx context.Context) (*PlatformStatsView, error) {
	defer qs.observe("get_platform_stats", time.Now())

	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	v := PlatformStatsView{AsOfSequence: asOfSeq}
	err = qs.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 0),
			COALESCE(SUM(bet_count), 0),
			COALESCE(SUM(volume), 0),
			COALESCE(SUM(escrow_held), 0)
		FROM projections.markets
	`).Scan(&v.TotalMarkets, &v.ActiveMarkets, &v.TotalBets, &v.TotalVolume, &v.EscrowHeld)
	if err != nil {
		qs.countError("get_platform_stats")
		return nil, err
	}
	return &v, nil
}
