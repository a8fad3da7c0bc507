package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AgoraXchange/agora-contract/internal/event"
	"github.com/AgoraXchange/agora-contract/internal/observability"

	"github.com/rs/zerolog"
)

// ProjectionOutput mirrors the data projection workers need. The
// orchestrator bridges between core.CoreOutput and this.
type ProjectionOutput struct {
	Sequence       int64
	EventType      event.EventType
	MarketID       *int64
	Payload        []byte
	JournalEntries []JournalEntry
	Timestamp      int64
}

// JournalEntry is a simplified journal for projection consumption.
type JournalEntry struct {
	DebitAccount  string
	CreditAccount string
	AssetID       uint16
	Amount        int64
	JournalType   int32
}

// Worker updates projection tables from processed events. The projection
// channel is non-blocking with drop; projections are eventually consistent
// and can always be rebuilt from the event log.
type Worker struct {
	db        *sql.DB
	inputChan <-chan ProjectionOutput
	lastSeq   int64
	metrics   *observability.Metrics
	log       zerolog.Logger
}

func NewWorker(db *sql.DB, inputChan <-chan ProjectionOutput, metrics *observability.Metrics, log zerolog.Logger) *Worker {
	return &Worker{
		db:        db,
		inputChan: inputChan,
		metrics:   metrics,
		log:       log,
	}
}

// Run starts the projection loop.
func (pw *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			start := time.Now()
			if err := pw.processOutput(ctx, output); err != nil {
				pw.log.Warn().
					Int64("sequence", output.Sequence).
					Str("event_type", output.EventType.String()).
					Err(err).
					Msg("projection update failed")
				// Continue: projections can be rebuilt from the event log
			}
			if pw.metrics != nil {
				pw.metrics.ProjectionUpdateDur.WithLabelValues(output.EventType.String()).
					Observe(time.Since(start).Seconds())
			}

			pw.lastSeq = output.Sequence
		}
	}
}

func (pw *Worker) processOutput(ctx context.Context, output ProjectionOutput) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, j := range output.JournalEntries {
		if err := pw.updateBalanceProjection(ctx, tx, j, output.Sequence); err != nil {
			return fmt.Errorf("balance projection: %w", err)
		}
	}

	if err := pw.applyEvent(ctx, tx, output); err != nil {
		return fmt.Errorf("event projection: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, output.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

func (pw *Worker) updateBalanceProjection(ctx context.Context, tx *sql.Tx, j JournalEntry, seq int64) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_path, asset_id)
		DO UPDATE SET balance = projections.balances.balance + $3, last_sequence = $4
	`, j.DebitAccount, j.AssetID, j.Amount, seq); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		VALUES ($1, $2, -$3, $4)
		ON CONFLICT (account_path, asset_id)
		DO UPDATE SET balance = projections.balances.balance - $3, last_sequence = $4
	`, j.CreditAccount, j.AssetID, j.Amount, seq); err != nil {
		return err
	}

	return nil
}

// applyEvent updates the market, bet, settlement and platform read models
// from the event payload
func (pw *Worker) applyEvent(ctx context.Context, tx *sql.Tx, output ProjectionOutput) error {
	switch output.EventType {
	case event.EventTypeMarketCreated:
		var p event.MarketCreated
		if err := json.Unmarshal(output.Payload, &p); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.markets
				(market_id, topic, party_a, party_b, creator, party_reward_pct, party_reward_dest,
				 betting_end_time, reveal_end_time, min_bet, max_bet, status, winner,
				 pool_a, pool_b, bet_count, volume, escrow_held, last_sequence)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, 0, 0, 0, 0, 0, 0, $12)
			ON CONFLICT (market_id) DO NOTHING
		`, p.MarketID, p.Topic, p.PartyA, p.PartyB, p.Creator.String(), p.PartyRewardPct,
			p.PartyRewardDest.String(), p.BettingEndTime, p.RevealEndTime, p.MinBet, p.MaxBet,
			output.Sequence)
		return err

	case event.EventTypeBetCommitted:
		var p event.BetCommitted
		if err := json.Unmarshal(output.Payload, &p); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.bets
				(market_id, record_index, bettor, commitment, amount, choice, state,
				 committed_at, claimed, last_sequence)
			VALUES ($1, $2, $3, $4, $5, 0, 0, $6, FALSE, $7)
			ON CONFLICT (market_id, record_index) DO NOTHING
		`, p.MarketID, p.RecordIndex, p.Bettor.String(), p.Commitment, p.Amount,
			output.Timestamp, output.Sequence); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.markets
			SET bet_count = bet_count + 1, escrow_held = escrow_held + $2, last_sequence = $3
			WHERE market_id = $1
		`, p.MarketID, p.Amount, output.Sequence)
		return err

	case event.EventTypeBetRevealed:
		var p event.BetRevealed
		if err := json.Unmarshal(output.Payload, &p); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE projections.bets
			SET choice = $3, state = 1, revealed_at = $4, last_sequence = $5
			WHERE market_id = $1 AND record_index = $2
		`, p.MarketID, p.RecordIndex, p.Choice, output.Timestamp, output.Sequence); err != nil {
			return err
		}
		poolColumn := "pool_a"
		if p.Choice == 2 {
			poolColumn = "pool_b"
		}
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`
			UPDATE projections.markets
			SET %s = %s + $2, volume = volume + $2, last_sequence = $3
			WHERE market_id = $1
		`, poolColumn, poolColumn), p.MarketID, p.Amount, output.Sequence)
		return err

	case event.EventTypeBetCancelled:
		var p event.BetCancelled
		if err := json.Unmarshal(output.Payload, &p); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE projections.bets
			SET state = 2, last_sequence = $3
			WHERE market_id = $1 AND record_index = $2
		`, p.MarketID, p.RecordIndex, output.Sequence); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.markets
			SET bet_count = bet_count - 1, escrow_held = escrow_held - $2, last_sequence = $3
			WHERE market_id = $1
		`, p.MarketID, p.Amount, output.Sequence)
		return err

	case event.EventTypeBetRefunded:
		var p event.BetRefunded
		if err := json.Unmarshal(output.Payload, &p); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE projections.bets
			SET state = 3, last_sequence = $3
			WHERE market_id = $1 AND record_index = $2
		`, p.MarketID, p.RecordIndex, output.Sequence); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.markets
			SET escrow_held = escrow_held - $2, last_sequence = $3
			WHERE market_id = $1
		`, p.MarketID, p.Amount, output.Sequence)
		return err

	case event.EventTypeBettingClosed:
		var p event.BettingClosed
		if err := json.Unmarshal(output.Payload, &p); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.markets
			SET status = 1, last_sequence = $2
			WHERE market_id = $1
		`, p.MarketID, output.Sequence)
		return err

	case event.EventTypeMarketCancelled:
		var p event.MarketCancelled
		if err := json.Unmarshal(output.Payload, &p); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.markets
			SET status = 4, last_sequence = $2
			WHERE market_id = $1
		`, p.MarketID, output.Sequence)
		return err

	case event.EventTypeWinnerDeclared:
		var p event.WinnerDeclared
		if err := json.Unmarshal(output.Payload, &p); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.markets
			SET status = 2, winner = $2, last_sequence = $3
			WHERE market_id = $1
		`, p.MarketID, p.Winner, output.Sequence)
		return err

	case event.EventTypeRewardsDistributed:
		var p event.RewardsDistributed
		if err := json.Unmarshal(output.Payload, &p); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.settlements
				(market_id, winner, fee_amount, party_reward_amount, residual_amount,
				 total_entitlement, winner_count, distributed_at, last_sequence)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (market_id) DO NOTHING
		`, p.MarketID, p.Winner, p.FeeAmount, p.PartyRewardAmount, p.ResidualAmount,
			p.TotalEntitlement, p.WinnerCount, output.Timestamp, output.Sequence); err != nil {
			return err
		}
		cuts := p.FeeAmount + p.PartyRewardAmount + p.ResidualAmount
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.markets
			SET status = 3, escrow_held = escrow_held - $2, last_sequence = $3
			WHERE market_id = $1
		`, p.MarketID, cuts, output.Sequence)
		return err

	case event.EventTypeRewardClaimed:
		var p event.RewardClaimed
		if err := json.Unmarshal(output.Payload, &p); err != nil {
			return err
		}
		// A claim settles every revealed unclaimed record of the caller that
		// fed the entitlement: winner-side records, or all revealed records
		// on a draw (winner=3) or cancelled market (winner never set).
		if _, err := tx.ExecContext(ctx, `
			UPDATE projections.bets b
			SET claimed = TRUE, last_sequence = $3
			FROM projections.markets m
			WHERE b.market_id = m.market_id
			  AND b.market_id = $1 AND b.bettor = $2
			  AND b.state = 1 AND b.claimed = FALSE
			  AND (m.winner = 0 OR m.winner = 3 OR b.choice = m.winner)
		`, p.MarketID, p.Bettor.String(), output.Sequence); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.markets
			SET escrow_held = escrow_held - $2, last_sequence = $3
			WHERE market_id = $1
		`, p.MarketID, p.Amount, output.Sequence)
		return err

	default:
		// Admin events only touch the platform row, which the query side
		// reads from the event payloads when needed
		return nil
	}
}

// RebuildProjections rebuilds all projection tables from the event log.
func RebuildProjections(ctx context.Context, db *sql.DB) error {
	truncateStatements := []string{
		`TRUNCATE projections.balances`,
		`TRUNCATE projections.markets`,
		`TRUNCATE projections.bets`,
		`TRUNCATE projections.settlements`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}

	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	// Balances rebuild directly from the journal; credit entries are debits
	// seen from the other account
	_, err := db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		SELECT account_path, asset_id, SUM(delta), MAX(sequence)
		FROM (
			SELECT debit_account AS account_path, asset_id, amount AS delta, sequence
			FROM event_log.journal
			UNION ALL
			SELECT credit_account AS account_path, asset_id, -amount AS delta, sequence
			FROM event_log.journal
		) entries
		GROUP BY account_path, asset_id
	`)
	return err
}
