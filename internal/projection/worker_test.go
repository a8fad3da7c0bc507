package projection_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/AgoraXchange/agora-contract/internal/event"
	"github.com/AgoraXchange/agora-contract/internal/persistence"
	"github.com/AgoraXchange/agora-contract/internal/projection"
	"github.com/AgoraXchange/agora-contract/internal/testutil"
)

var (
	projAlice = uuid.MustParse("20000000-0000-0000-0000-000000000001")
	projBob   = uuid.MustParse("20000000-0000-0000-0000-000000000002")
)

func mustPayload(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func marketRef(id int64) *int64 {
	return &id
}

func projOutput(seq int64, et event.EventType, marketID int64, payload []byte) projection.ProjectionOutput {
	return projection.ProjectionOutput{
		Sequence:  seq,
		EventType: et,
		MarketID:  marketRef(marketID),
		Payload:   payload,
		Timestamp: 1_700_000_000_000_000 + seq,
	}
}

func waitForWatermark(t *testing.T, ctx context.Context, db *sql.DB, seq int64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		var last int64
		err := db.QueryRowContext(ctx, `
			SELECT last_sequence FROM projections.watermark WHERE worker_id = 'main'
		`).Scan(&last)
		if err == nil && last >= seq {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("projection never reached sequence %d (err=%v)", seq, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestProjection_ClaimMarksWinningBets(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	migrator := persistence.NewMigrator(db, "../../migrations", zerolog.Nop())
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	in := make(chan projection.ProjectionOutput, 32)
	worker := projection.NewWorker(db, in, nil, zerolog.Nop())
	go worker.Run(ctx)

	outputs := []projection.ProjectionOutput{
		projOutput(1, event.EventTypeMarketCreated, 7, mustPayload(t, event.MarketCreated{
			MarketID: 7, Topic: "Team A vs Team B", PartyA: "Team A", PartyB: "Team B",
			Creator: projAlice, PartyRewardPct: 10, PartyRewardDest: projBob,
			BettingEndTime: 1, RevealEndTime: 2, MinBet: 1, MaxBet: 1_000_000_000,
		})),
		projOutput(2, event.EventTypeBetCommitted, 7, mustPayload(t, event.BetCommitted{
			MarketID: 7, Bettor: projAlice, RecordIndex: 0, Commitment: "aa", Amount: 2_000_000,
		})),
		projOutput(3, event.EventTypeBetCommitted, 7, mustPayload(t, event.BetCommitted{
			MarketID: 7, Bettor: projBob, RecordIndex: 1, Commitment: "bb", Amount: 1_000_000,
		})),
		projOutput(4, event.EventTypeBetRevealed, 7, mustPayload(t, event.BetRevealed{
			MarketID: 7, Bettor: projAlice, RecordIndex: 0, Choice: 1, Amount: 2_000_000,
		})),
		projOutput(5, event.EventTypeBetRevealed, 7, mustPayload(t, event.BetRevealed{
			MarketID: 7, Bettor: projBob, RecordIndex: 1, Choice: 2, Amount: 1_000_000,
		})),
		projOutput(6, event.EventTypeWinnerDeclared, 7, mustPayload(t, event.WinnerDeclared{
			MarketID: 7, Winner: 1, WinPool: 2_000_000, LosePool: 1_000_000,
		})),
		projOutput(7, event.EventTypeRewardClaimed, 7, mustPayload(t, event.RewardClaimed{
			MarketID: 7, Bettor: projAlice, Amount: 2_880_000,
		})),
	}
	for _, o := range outputs {
		in <- o
	}
	waitForWatermark(t, ctx, db, 7)

	var aliceClaimed, bobClaimed bool
	if err := db.QueryRowContext(ctx, `
		SELECT claimed FROM projections.bets WHERE market_id = 7 AND record_index = 0
	`).Scan(&aliceClaimed); err != nil {
		t.Fatalf("read winner row: %v", err)
	}
	if err := db.QueryRowContext(ctx, `
		SELECT claimed FROM projections.bets WHERE market_id = 7 AND record_index = 1
	`).Scan(&bobClaimed); err != nil {
		t.Fatalf("read loser row: %v", err)
	}

	if !aliceClaimed {
		t.Error("claimant's winning bet should be marked claimed")
	}
	if bobClaimed {
		t.Error("losing bet must stay unclaimed")
	}
}

func TestProjection_ClaimOnCancelledMarketMarksRevealedBets(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	migrator := persistence.NewMigrator(db, "../../migrations", zerolog.Nop())
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	in := make(chan projection.ProjectionOutput, 32)
	worker := projection.NewWorker(db, in, nil, zerolog.Nop())
	go worker.Run(ctx)

	outputs := []projection.ProjectionOutput{
		projOutput(1, event.EventTypeMarketCreated, 8, mustPayload(t, event.MarketCreated{
			MarketID: 8, Topic: "Team A vs Team B", PartyA: "Team A", PartyB: "Team B",
			Creator: projAlice, PartyRewardPct: 10, PartyRewardDest: projBob,
			BettingEndTime: 1, RevealEndTime: 2, MinBet: 1, MaxBet: 1_000_000_000,
		})),
		projOutput(2, event.EventTypeBetCommitted, 8, mustPayload(t, event.BetCommitted{
			MarketID: 8, Bettor: projAlice, RecordIndex: 0, Commitment: "cc", Amount: 500_000,
		})),
		projOutput(3, event.EventTypeBetRevealed, 8, mustPayload(t, event.BetRevealed{
			MarketID: 8, Bettor: projAlice, RecordIndex: 0, Choice: 1, Amount: 500_000,
		})),
		projOutput(4, event.EventTypeMarketCancelled, 8, mustPayload(t, event.MarketCancelled{
			MarketID: 8, Refundable: 500_000,
		})),
		projOutput(5, event.EventTypeRewardClaimed, 8, mustPayload(t, event.RewardClaimed{
			MarketID: 8, Bettor: projAlice, Amount: 500_000,
		})),
	}
	for _, o := range outputs {
		in <- o
	}
	waitForWatermark(t, ctx, db, 5)

	var claimed bool
	if err := db.QueryRowContext(ctx, `
		SELECT claimed FROM projections.bets WHERE market_id = 8 AND record_index = 0
	`).Scan(&claimed); err != nil {
		t.Fatalf("read bet row: %v", err)
	}
	if !claimed {
		t.Error("revealed stake on a cancelled market should be marked claimed")
	}
}
