package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AgoraXchange/agora-contract/internal/observability"
	"github.com/AgoraXchange/agora-contract/internal/state"

	"github.com/google/uuid"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// Service provides read-only access to the projection tables. Reads never
// touch the single-threaded core; they see the read models the projection
// worker maintains, at the freshness its watermark reports.
type Service struct {
	db      *sql.DB
	metrics *observability.Metrics
}

func NewService(db *sql.DB, metrics *observability.Metrics) *Service {
	return &Service{db: db, metrics: metrics}
}

// GetMarket returns the basic market view.
func (qs *Service) GetMarket(ctx context.Context, marketID uint64) (*MarketView, error) {
	defer qs.observe("get_market", time.Now())

	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var v MarketView
	v.AsOfSequence = asOfSeq
	err = qs.db.QueryRowContext(ctx, `
		SELECT market_id, topic, party_a, party_b, creator, party_reward_pct,
		       party_reward_dest, betting_end_time, reveal_end_time,
		       min_bet, max_bet, status, winner
		FROM projections.markets
		WHERE market_id = $1
	`, marketID).Scan(
		&v.MarketID, &v.Topic, &v.PartyA, &v.PartyB, &v.Creator, &v.PartyRewardPct,
		&v.PartyRewardDest, &v.BettingEndTime, &v.RevealEndTime,
		&v.MinBet, &v.MaxBet, &v.Status, &v.Winner,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		qs.countError("get_market")
		return nil, err
	}
	return &v, nil
}

// GetMarketBetting returns the market view with live pool figures.
func (qs *Service) GetMarketBetting(ctx context.Context, marketID uint64) (*MarketBettingView, error) {
	defer qs.observe("get_market_betting", time.Now())

	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var v MarketBettingView
	v.AsOfSequence = asOfSeq
	err = qs.db.QueryRowContext(ctx, `
		SELECT market_id, topic, party_a, party_b, creator, party_reward_pct,
		       party_reward_dest, betting_end_time, reveal_end_time,
		       min_bet, max_bet, status, winner,
		       pool_a, pool_b, bet_count, volume, escrow_held
		FROM projections.markets
		WHERE market_id = $1
	`, marketID).Scan(
		&v.MarketID, &v.Topic, &v.PartyA, &v.PartyB, &v.Creator, &v.PartyRewardPct,
		&v.PartyRewardDest, &v.BettingEndTime, &v.RevealEndTime,
		&v.MinBet, &v.MaxBet, &v.Status, &v.Winner,
		&v.PoolA, &v.PoolB, &v.BetCount, &v.Volume, &v.EscrowHeld,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		qs.countError("get_market_betting")
		return nil, err
	}
	return &v, nil
}

// ListMarkets returns markets ordered by id, optionally filtered by status.
func (qs *Service) ListMarkets(ctx context.Context, status *int32, offset, limit int) ([]MarketView, error) {
	defer qs.observe("list_markets", time.Now())

	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	if limit <= 0 || limit > state.MaxPageSize {
		limit = state.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT market_id, topic, party_a, party_b, creator, party_reward_pct,
		       party_reward_dest, betting_end_time, reveal_end_time,
		       min_bet, max_bet, status, winner
		FROM projections.markets
	`
	args := []interface{}{}
	argIdx := 1

	if status != nil {
		query += fmt.Sprintf(" WHERE status = $%d", argIdx)
		args = append(args, *status)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY market_id OFFSET $%d LIMIT $%d", argIdx, argIdx+1)
	args = append(args, offset, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		qs.countError("list_markets")
		return nil, err
	}
	defer rows.Close()

	var markets []MarketView
	for rows.Next() {
		var v MarketView
		v.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&v.MarketID, &v.Topic, &v.PartyA, &v.PartyB, &v.Creator, &v.PartyRewardPct,
			&v.PartyRewardDest, &v.BettingEndTime, &v.RevealEndTime,
			&v.MinBet, &v.MaxBet, &v.Status, &v.Winner,
		); err != nil {
			return nil, err
		}
		markets = append(markets, v)
	}
	return markets, rows.Err()
}

// GetUserBets returns a page of a bettor's records for a market plus the
// total count. Page size is capped so an unbounded history stays cheap to
// read.
func (qs *Service) GetUserBets(ctx context.Context, marketID uint64, bettor uuid.UUID, offset, limit int) (*BetPage, error) {
	defer qs.observe("get_user_bets", time.Now())

	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	if limit <= 0 || limit > state.MaxPageSize {
		limit = state.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := qs.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM projections.bets
		WHERE market_id = $1 AND bettor = $2
	`, marketID, bettor.String()).Scan(&total); err != nil {
		qs.countError("get_user_bets")
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT record_index, commitment, amount, choice, state,
		       committed_at, revealed_at, claimed
		FROM projections.bets
		WHERE market_id = $1 AND bettor = $2
		ORDER BY record_index
		OFFSET $3 LIMIT $4
	`, marketID, bettor.String(), offset, limit)
	if err != nil {
		qs.countError("get_user_bets")
		return nil, err
	}
	defer rows.Close()

	page := &BetPage{
		Bets:         []BetView{},
		Total:        total,
		Offset:       offset,
		AsOfSequence: asOfSeq,
	}
	for rows.Next() {
		v := BetView{
			MarketID:     marketID,
			Bettor:       bettor.String(),
			AsOfSequence: asOfSeq,
		}
		var revealedAt sql.NullInt64
		if err := rows.Scan(
			&v.RecordIndex, &v.Commitment, &v.Amount, &v.Choice, &v.State,
			&v.CommittedAt, &revealedAt, &v.Claimed,
		); err != nil {
			return nil, err
		}
		if revealedAt.Valid {
			v.RevealedAt = &revealedAt.Int64
		}
		page.Bets = append(page.Bets, v)
	}
	return page, rows.Err()
}

// GetSettlement returns the distribution record for a market.
func (qs *Service) GetSettlement(ctx context.Context, marketID uint64) (*SettlementView, error) {
	defer qs.observe("get_settlement", time.Now())

	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var v SettlementView
	v.AsOfSequence = asOfSeq
	err = qs.db.QueryRowContext(ctx, `
		SELECT market_id, winner, fee_amount, party_reward_amount, residual_amount,
		       total_entitlement, winner_count, distributed_at
		FROM projections.settlements
		WHERE market_id = $1
	`, marketID).Scan(
		&v.MarketID, &v.Winner, &v.FeeAmount, &v.PartyRewardAmount, &v.ResidualAmount,
		&v.TotalEntitlement, &v.WinnerCount, &v.DistributedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		qs.countError("get_settlement")
		return nil, err
	}
	return &v, nil
}

// GetBalance returns one projected ledger account balance.
func (qs *Service) GetBalance(ctx context.Context, accountPath string) (*BalanceView, error) {
	defer qs.observe("get_balance", time.Now())

	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var v BalanceView
	v.AsOfSequence = asOfSeq
	err = qs.db.QueryRowContext(ctx, `
		SELECT account_path, asset_id, balance
		FROM projections.balances
		WHERE account_path = $1
	`, accountPath).Scan(&v.AccountPath, &v.AssetID, &v.Balance)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		qs.countError("get_balance")
		return nil, err
	}
	return &v, nil
}

// GetJournalHistory returns journal rows for a market with cursor
// pagination on sequence.
func (qs *Service) GetJournalHistory(ctx context.Context, marketID uint64, limit int, afterSequence *int64) ([]JournalHistoryEntry, error) {
	defer qs.observe("get_journal_history", time.Now())

	if limit <= 0 || limit > state.MaxPageSize {
		limit = state.MaxPageSize
	}

	accountPrefix := fmt.Sprintf("market:%d:%%", marketID)

	query := `
		SELECT journal_id, batch_id, event_ref, sequence,
		       debit_account, credit_account, asset_id, amount, journal_type, timestamp
		FROM event_log.journal
		WHERE (debit_account LIKE $1 OR credit_account LIKE $1)
	`
	args := []interface{}{accountPrefix}
	argIdx := 2

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY sequence DESC LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		qs.countError("get_journal_history")
		return nil, err
	}
	defer rows.Close()

	var entries []JournalHistoryEntry
	for rows.Next() {
		var e JournalHistoryEntry
		if err := rows.Scan(
			&e.JournalID, &e.BatchID, &e.EventRef, &e.Sequence,
			&e.DebitAccount, &e.CreditAccount, &e.AssetID, &e.Amount,
			&e.JournalType, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (qs *Service) getWatermark(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := qs.db.QueryRowContext(ctx, `
		SELECT last_sequence FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return seq.Int64, nil
}

func (qs *Service) observe(op string, start time.Time) {
	if qs.metrics == nil {
		return
	}
	qs.metrics.QueryRequests.WithLabelValues(op).Inc()
	qs.metrics.QueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (qs *Service) countError(op string) {
	if qs.metrics != nil {
		qs.metrics.QueryErrors.WithLabelValues(op).Inc()
	}
}
