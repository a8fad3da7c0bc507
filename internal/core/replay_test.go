package core_test

import (
	"testing"
	"time"

	"github.com/AgoraXchange/agora-contract/internal/command"
	"github.com/AgoraXchange/agora-contract/internal/core"
	"github.com/AgoraXchange/agora-contract/internal/ledger"
	"github.com/AgoraXchange/agora-contract/internal/state"

	"github.com/google/uuid"
)

func replayRowsFrom(outputs []core.CoreOutput) []core.ReplayRow {
	rows := make([]core.ReplayRow, 0, len(outputs))
	for _, o := range outputs {
		rows = append(rows, core.ReplayRow{
			Sequence:        o.Envelope.Sequence,
			EventType:       o.Envelope.EventType,
			IdempotencyKey:  o.Envelope.IdempotencyKey,
			Payload:         o.Envelope.Payload,
			StateHash:       o.Envelope.StateHash,
			PrevHash:        o.Envelope.PrevHash,
			TimestampMicros: o.Envelope.Timestamp.UnixMicro(),
		})
	}
	return rows
}

func TestReplay_RebuildsFullLifecycle(t *testing.T) {
	live := newTestCore()
	setupResolvedMarket(t, live)
	live.process(t, &command.DistributeRewards{CommandID: uuid.New(), CallerID: owner, MarketID: 1, At: revealEnd.Add(3 * time.Minute)})
	live.process(t, mustClaim(1, alice, revealEnd.Add(4*time.Minute)))

	rows := replayRowsFrom(live.drain())
	if len(rows) == 0 {
		t.Fatal("expected logged events")
	}

	replica := newTestCore()
	for _, row := range rows {
		if err := replica.core.ReplayEvent(row); err != nil {
			t.Fatalf("replay at sequence %d: %v", row.Sequence, err)
		}
	}

	if replica.core.GetSequence() != live.core.GetSequence() {
		t.Errorf("sequence: got %d, want %d", replica.core.GetSequence(), live.core.GetSequence())
	}
	if replica.core.GetStateHash() != live.core.GetStateHash() {
		t.Error("replayed chain tip should match the live tip")
	}

	// Market state is rebuilt
	m := replica.core.Market(1)
	if m == nil {
		t.Fatal("market should exist after replay")
	}
	if m.Status != state.MarketStatusDistributed {
		t.Errorf("status: got %s", m.Status)
	}
	if m.PoolA != 2_000_000 || m.PoolB != 1_000_000 {
		t.Errorf("pools: A=%d B=%d", m.PoolA, m.PoolB)
	}
	if m.EscrowHeld != live.core.Market(1).EscrowHeld {
		t.Errorf("escrow: got %d, want %d", m.EscrowHeld, live.core.Market(1).EscrowHeld)
	}

	// The ledger is rebuilt from regenerated journals
	liveEscrow := live.core.Balances().GetMarketEscrow(1, ledger.DefaultAssetID)
	replicaEscrow := replica.core.Balances().GetMarketEscrow(1, ledger.DefaultAssetID)
	if liveEscrow != replicaEscrow {
		t.Errorf("ledger escrow: got %d, want %d", replicaEscrow, liveEscrow)
	}

	// The settlement is rebuilt with alice's entitlement already drawn down
	s := replica.core.Settlement(1)
	if s == nil {
		t.Fatal("settlement should exist after replay")
	}
	if s.FeeAmount != 20_000 || s.PartyRewardAmount != 100_000 {
		t.Errorf("cuts: fee=%d party=%d", s.FeeAmount, s.PartyRewardAmount)
	}
	if got := s.ZeroEntitlement(alice); got != 0 {
		t.Errorf("alice's claimed entitlement should be drawn down, found %d", got)
	}

	// Replay pushes nothing outward
	if len(replica.recorder.Payments()) != 0 {
		t.Error("replay must not re-deliver transfers")
	}
}

func TestReplay_AcceptsRefundAndCancelEvents(t *testing.T) {
	live := newTestCore()
	live.process(t, mustCreateMarket(base))
	live.process(t, mustCommitBet(1, alice, state.ChoiceA, 11, 1_000_000, base.Add(time.Minute)))
	live.process(t, mustCommitBet(1, bob, state.ChoiceB, 22, 1_000_000, base.Add(2*time.Minute)))
	live.process(t, &command.CancelBet{CommandID: uuid.New(), CallerID: alice, MarketID: 1, RecordIndex: 0, At: base.Add(3 * time.Minute)})
	live.process(t, &command.CloseBetting{CommandID: uuid.New(), CallerID: bob, MarketID: 1, At: revealEnd.Add(time.Minute)})
	live.process(t, &command.RefundBet{CommandID: uuid.New(), CallerID: bob, MarketID: 1, RecordIndex: 1, At: revealEnd.Add(2 * time.Minute)})

	rows := replayRowsFrom(live.drain())

	replica := newTestCore()
	for _, row := range rows {
		if err := replica.core.ReplayEvent(row); err != nil {
			t.Fatalf("replay at sequence %d: %v", row.Sequence, err)
		}
	}

	if replica.core.GetStateHash() != live.core.GetStateHash() {
		t.Error("replayed chain tip should match")
	}
	if got := replica.core.Bets().Get(1, 0).State; got != state.BetStateCancelled {
		t.Errorf("record 0: got %s", got)
	}
	if got := replica.core.Bets().Get(1, 1).State; got != state.BetStateRefunded {
		t.Errorf("record 1: got %s", got)
	}
	if replica.core.Market(1).Status != state.MarketStatusCancelled {
		t.Error("zero-reveal market should replay as Cancelled")
	}
}

func TestReplay_ContinuesProcessingIdentically(t *testing.T) {
	// A replayed core must produce the same hashes as a core that never
	// stopped when both process the same subsequent command.
	live := newTestCore()
	setupResolvedMarket(t, live)
	rows := replayRowsFrom(live.drain())

	replica := newTestCore()
	for _, row := range rows {
		if err := replica.core.ReplayEvent(row); err != nil {
			t.Fatalf("replay at sequence %d: %v", row.Sequence, err)
		}
	}

	distributeID := uuid.New()
	live.process(t, &command.DistributeRewards{CommandID: distributeID, CallerID: owner, MarketID: 1, At: revealEnd.Add(3 * time.Minute)})
	replica.process(t, &command.DistributeRewards{CommandID: distributeID, CallerID: owner, MarketID: 1, At: revealEnd.Add(3 * time.Minute)})

	if live.core.GetStateHash() != replica.core.GetStateHash() {
		t.Error("post-replay processing should continue the chain identically")
	}
}

func TestReplay_SequenceGapDetected(t *testing.T) {
	live := newTestCore()
	live.process(t, mustCreateMarket(base))
	live.process(t, mustCommitBet(1, alice, state.ChoiceA, 11, 1_000_000, base.Add(time.Minute)))
	rows := replayRowsFrom(live.drain())

	replica := newTestCore()
	// Skip row 0
	if err := replica.core.ReplayEvent(rows[1]); err == nil {
		t.Fatal("a sequence gap should fail replay")
	}
}

func TestReplay_ChainBreakDetected(t *testing.T) {
	live := newTestCore()
	live.process(t, mustCreateMarket(base))
	rows := replayRowsFrom(live.drain())

	rows[0].PrevHash[0] ^= 0xff

	replica := newTestCore()
	if err := replica.core.ReplayEvent(rows[0]); err == nil {
		t.Fatal("a prev-hash mismatch should fail replay")
	}
}
