package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SnapshotManager handles creating and loading state snapshots for recovery.
// A snapshot carries everything the core keeps in memory: ledger balances,
// markets, bet records, settlements, platform state, the idempotency LRU and
// the state hash chain tip.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData is the serializable form of core.SnapshotState.
type SnapshotData struct {
	Sequence        int64                `json:"sequence"`
	StateHash       []byte               `json:"state_hash"`
	ClockMicros     int64                `json:"clock_micros"`
	Balances        map[string]int64     `json:"balances"` // AccountPath -> balance
	Markets         []MarketSnapshot     `json:"markets"`
	Bets            []BetSnapshot        `json:"bets"`
	Settlements     []SettlementSnapshot `json:"settlements"`
	Platform        PlatformSnapshot     `json:"platform"`
	IdempotencyKeys []string             `json:"idempotency_keys"`
	CreatedAt       time.Time            `json:"created_at"`
}

// MarketSnapshot is a serializable market.
type MarketSnapshot struct {
	ID              uint64 `json:"id"`
	Topic           string `json:"topic"`
	PartyA          string `json:"party_a"`
	PartyB          string `json:"party_b"`
	Creator         string `json:"creator"`
	PartyRewardPct  int64  `json:"party_reward_pct"`
	PartyRewardDest string `json:"party_reward_dest"`
	BettingEndTime  int64  `json:"betting_end_time"`
	RevealEndTime   int64  `json:"reveal_end_time"`
	MinBet          int64  `json:"min_bet"`
	MaxBet          int64  `json:"max_bet"`
	Status          int32  `json:"status"`
	Winner          uint8  `json:"winner"`
	PoolA           int64  `json:"pool_a"`
	PoolB           int64  `json:"pool_b"`
	BetCount        int64  `json:"bet_count"`
	Volume          int64  `json:"volume"`
	BettorsA        int64  `json:"bettors_a"`
	BettorsB        int64  `json:"bettors_b"`
	EscrowHeld      int64  `json:"escrow_held"`
	CreatedAt       int64  `json:"created_at"`
	CancelAfter     int64  `json:"cancel_after"`
	ResolvedAt      int64  `json:"resolved_at"`
	Version         int64  `json:"version"`
}

// BetSnapshot is a serializable bet record.
type BetSnapshot struct {
	Index       uint64 `json:"index"`
	MarketID    uint64 `json:"market_id"`
	Bettor      string `json:"bettor"`
	Commitment  string `json:"commitment"` // Hex digest
	Amount      int64  `json:"amount"`
	Choice      uint8  `json:"choice"`
	State       int32  `json:"state"`
	CommittedAt int64  `json:"committed_at"`
	RevealedAt  int64  `json:"revealed_at"`
	Claimed     bool   `json:"claimed"`
	Version     int64  `json:"version"`
}

// SettlementSnapshot is a serializable settlement.
type SettlementSnapshot struct {
	MarketID          uint64           `json:"market_id"`
	Winner            uint8            `json:"winner"`
	WinPool           int64            `json:"win_pool"`
	LosePool          int64            `json:"lose_pool"`
	FeeAmount         int64            `json:"fee_amount"`
	PartyRewardAmount int64            `json:"party_reward_amount"`
	ResidualAmount    int64            `json:"residual_amount"`
	Entitlements      map[string]int64 `json:"entitlements"` // bettor UUID -> amount
	TotalEntitlement  int64            `json:"total_entitlement"`
	ClaimedTotal      int64            `json:"claimed_total"`
	DistributedAt     int64            `json:"distributed_at"`
}

// PlatformSnapshot is the serializable platform state.
type PlatformSnapshot struct {
	Owner              string `json:"owner"`
	Oracle             string `json:"oracle"`
	FeeRecipient       string `json:"fee_recipient"`
	FeePct             int64  `json:"fee_pct"`
	MinBet             int64  `json:"min_bet"`
	MaxBet             int64  `json:"max_bet"`
	Paused             bool   `json:"paused"`
	TotalMarkets       int64  `json:"total_markets"`
	TotalBets          int64  `json:"total_bets"`
	TotalVolume        int64  `json:"total_volume"`
	TotalFeesCollected int64  `json:"total_fees_collected"`
	Version            int64  `json:"version"`
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SaveSnapshot persists a snapshot. Snapshots are taken periodically and
// marked verified only after a replay check.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	snapshotID := uuid.New()
	sizeBytes := len(data)
	formatVersion := int32(1) // v1: JSON-encoded SnapshotData

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO event_log.snapshots
			(snapshot_id, sequence, data, state_hash, format_version, size_bytes, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, state_hash = $4, size_bytes = $6
	`, snapshotID, snap.Sequence, data, snap.StateHash, formatVersion, sizeBytes, snap.CreatedAt)

	return err
}

// LoadLatestSnapshot loads the most recent verified snapshot. On warm
// restart the core restores from it, then replays events past its sequence.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM event_log.snapshots
		WHERE verified = TRUE
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // No snapshot: cold start
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

// MarkVerified marks a snapshot as verified after an integrity check.
func (sm *SnapshotManager) MarkVerified(ctx context.Context, sequence int64) error {
	_, err := sm.db.ExecContext(ctx, `
		UPDATE event_log.snapshots SET verified = TRUE WHERE sequence = $1
	`, sequence)
	return err
}

// LoadEventsFrom loads events from a given sequence for replay.
func (sm *SnapshotManager) LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]EventRow, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT sequence, event_type, idempotency_key, market_id, payload,
		       state_hash, prev_hash, timestamp
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.IdempotencyKey, &e.MarketID,
			&e.Payload, &e.StateHash, &e.PrevHash, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// GetLatestSequence returns the highest sequence in the event log.
func (sm *SnapshotManager) GetLatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := sm.db.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM event_log.events
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil // Empty event log
	}
	return seq.Int64, nil
}
