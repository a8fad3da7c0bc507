package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/AgoraXchange/agora-contract/internal/core"
	"github.com/AgoraXchange/agora-contract/internal/funds"
	"github.com/AgoraXchange/agora-contract/internal/ingestion"
)

func rawCreateMarket(t *testing.T, at time.Time) ingestion.RawCommand {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"command_id":        uuid.New().String(),
		"caller_id":         "10000000-0000-0000-0000-000000000001",
		"topic":             "Team A vs Team B",
		"party_a":           "Team A",
		"party_b":           "Team B",
		"party_reward_pct":  int64(10),
		"party_reward_dest": "10000000-0000-0000-0000-000000000003",
		"betting_end_us":    at.Add(time.Hour).UnixMicro(),
		"timestamp_us":      at.UnixMicro(),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawCommand{
		Subject: "agora.cmd.CreateMarket",
		Kind:    "CreateMarket",
		Data:    payload,
		AckFunc: func() {},
	}
}

// Snapshot captures must come from the loop goroutine, interleaved with
// command processing, never from a concurrent reader of the engine.
func TestCommandLoop_ServicesSnapshotRequests(t *testing.T) {
	persistCh := make(chan core.CoreOutput, 16)
	projCh := make(chan core.CoreOutput, 16)
	engine := core.NewBettingCore(
		uuid.MustParse("10000000-0000-0000-0000-000000000001"),
		uuid.MustParse("10000000-0000-0000-0000-000000000002"),
		0, 0,
		persistCh, projCh,
		nil, funds.NewRecorder(), nil,
	)

	rawChan := make(chan ingestion.RawCommand)
	snapChan := make(chan snapshotRequest)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		runCommandLoop(ctx, rawChan, snapChan, engine, zerolog.Nop())
		close(done)
	}()

	at := time.UnixMicro(1_700_000_000_000_000)
	rawChan <- rawCreateMarket(t, at)
	if out := <-persistCh; out.Envelope.Sequence != 0 {
		t.Fatalf("first event sequence: got %d, want 0", out.Envelope.Sequence)
	}

	// The engine has processed one command; a capture up to that point
	// succeeds.
	req := snapshotRequest{minSequence: 1, reply: make(chan *core.SnapshotState, 1)}
	snapChan <- req
	snap := <-req.reply
	if snap == nil {
		t.Fatal("expected a snapshot once minSequence is reached")
	}
	if snap.Sequence != 0 {
		t.Errorf("snapshot sequence: got %d, want 0", snap.Sequence)
	}
	if len(snap.Markets) != 1 {
		t.Errorf("snapshot markets: got %d, want 1", len(snap.Markets))
	}

	// A capture ahead of the engine's progress is declined, not blocked.
	early := snapshotRequest{minSequence: 100, reply: make(chan *core.SnapshotState, 1)}
	snapChan <- early
	if got := <-early.reply; got != nil {
		t.Error("expected nil reply before minSequence is reached")
	}

	// The loop keeps serving after both paths.
	rawChan <- rawCreateMarket(t, at.Add(time.Minute))
	if out := <-persistCh; out.Envelope.Sequence != 1 {
		t.Fatalf("second event sequence: got %d, want 1", out.Envelope.Sequence)
	}

	cancel()
	<-done
}

func TestCommandLoop_UnparseableCommandAckedAndSkipped(t *testing.T) {
	persistCh := make(chan core.CoreOutput, 16)
	projCh := make(chan core.CoreOutput, 16)
	engine := core.NewBettingCore(
		uuid.MustParse("10000000-0000-0000-0000-000000000001"),
		uuid.MustParse("10000000-0000-0000-0000-000000000002"),
		0, 0,
		persistCh, projCh,
		nil, funds.NewRecorder(), nil,
	)

	rawChan := make(chan ingestion.RawCommand)
	snapChan := make(chan snapshotRequest)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		runCommandLoop(ctx, rawChan, snapChan, engine, zerolog.Nop())
		close(done)
	}()

	acked := make(chan struct{}, 1)
	rawChan <- ingestion.RawCommand{
		Subject: "agora.cmd.CreateMarket",
		Kind:    "CreateMarket",
		Data:    []byte(`{not json`),
		AckFunc: func() { acked <- struct{}{} },
	}
	select {
	case <-acked:
	case <-time.After(5 * time.Second):
		t.Fatal("unparseable command was never acked")
	}

	// Loop is still alive and the engine saw nothing.
	req := snapshotRequest{minSequence: 0, reply: make(chan *core.SnapshotState, 1)}
	snapChan <- req
	snap := <-req.reply
	if snap == nil {
		t.Fatal("expected a snapshot reply")
	}
	if len(snap.Markets) != 0 {
		t.Errorf("engine should hold no markets, got %d", len(snap.Markets))
	}

	cancel()
	<-done
}
