package ingestion_test

import (
	"encoding/json"
	"testing"

	"github.com/AgoraXchange/agora-contract/internal/command"
	"github.com/AgoraXchange/agora-contract/internal/commitment"
	"github.com/AgoraXchange/agora-contract/internal/ingestion"

	"github.com/google/uuid"
)

func payloadJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestParseCreateMarket(t *testing.T) {
	data := payloadJSON(t, map[string]interface{}{
		"command_id":        "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":         "660e8400-e29b-41d4-a716-446655440001",
		"topic":             "Team A vs Team B",
		"party_a":           "Team A",
		"party_b":           "Team B",
		"party_reward_pct":  int64(10),
		"party_reward_dest": "770e8400-e29b-41d4-a716-446655440002",
		"betting_end_us":    int64(1_700_003_600_000_000),
		"min_bet":           int64(10_000),
		"max_bet":           int64(1_000_000_000),
		"timestamp_us":      int64(1_700_000_000_000_000),
	})

	cmd, err := ingestion.ParseCommand("CreateMarket", data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cm, ok := cmd.(*command.CreateMarket)
	if !ok {
		t.Fatalf("expected *command.CreateMarket, got %T", cmd)
	}
	if cm.Topic != "Team A vs Team B" {
		t.Errorf("topic: got %s", cm.Topic)
	}
	if cm.PartyRewardPct != 10 {
		t.Errorf("party_reward_pct: got %d", cm.PartyRewardPct)
	}
	if cm.BettingEndTime.UnixMicro() != 1_700_003_600_000_000 {
		t.Errorf("betting_end: got %d", cm.BettingEndTime.UnixMicro())
	}
	if cm.At.UnixMicro() != 1_700_000_000_000_000 {
		t.Errorf("timestamp: got %d", cm.At.UnixMicro())
	}
	if cm.Kind() != command.KindCreateMarket {
		t.Errorf("kind: got %v", cm.Kind())
	}
}

func TestParseCommitBet(t *testing.T) {
	bettor := uuid.MustParse("660e8400-e29b-41d4-a716-446655440001")
	com := commitment.Compute(7, bettor, 1, 42, 1_000_000)

	data := payloadJSON(t, map[string]interface{}{
		"command_id":    "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":     bettor.String(),
		"market_id":     uint64(7),
		"commitment":    com.String(),
		"amount":        int64(1_000_000),
		"deposit_value": int64(1_000_000),
		"timestamp_us":  int64(1_700_000_000_000_000),
	})

	cmd, err := ingestion.ParseCommand("CommitBet", data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cb, ok := cmd.(*command.CommitBet)
	if !ok {
		t.Fatalf("expected *command.CommitBet, got %T", cmd)
	}
	if cb.MarketID != 7 {
		t.Errorf("market_id: got %d", cb.MarketID)
	}
	if cb.Commitment != com {
		t.Error("commitment digest should round-trip through hex")
	}
	if cb.Amount != 1_000_000 || cb.DepositValue != 1_000_000 {
		t.Errorf("amounts: %d / %d", cb.Amount, cb.DepositValue)
	}
}

func TestParseRevealBet(t *testing.T) {
	data := payloadJSON(t, map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"market_id":    uint64(7),
		"choice":       uint8(2),
		"nonce":        uint64(987654321),
		"timestamp_us": int64(1_700_000_000_000_000),
	})

	cmd, err := ingestion.ParseCommand("RevealBet", data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	rb, ok := cmd.(*command.RevealBet)
	if !ok {
		t.Fatalf("expected *command.RevealBet, got %T", cmd)
	}
	if rb.Choice != 2 || rb.Nonce != 987654321 {
		t.Errorf("choice=%d nonce=%d", rb.Choice, rb.Nonce)
	}
}

func TestParseCancelBet(t *testing.T) {
	data := payloadJSON(t, map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"market_id":    uint64(3),
		"record_index": uint64(5),
		"timestamp_us": int64(1_700_000_000_000_000),
	})

	cmd, err := ingestion.ParseCommand("CancelBet", data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cb, ok := cmd.(*command.CancelBet)
	if !ok {
		t.Fatalf("expected *command.CancelBet, got %T", cmd)
	}
	if cb.RecordIndex != 5 {
		t.Errorf("record_index: got %d", cb.RecordIndex)
	}
}

func TestParseDeclareWinner(t *testing.T) {
	data := payloadJSON(t, map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"market_id":    uint64(3),
		"winner":       uint8(1),
		"timestamp_us": int64(1_700_000_000_000_000),
	})

	cmd, err := ingestion.ParseCommand("DeclareWinner", data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	dw, ok := cmd.(*command.DeclareWinner)
	if !ok {
		t.Fatalf("expected *command.DeclareWinner, got %T", cmd)
	}
	if dw.Winner != 1 {
		t.Errorf("winner: got %d", dw.Winner)
	}
}

func TestParsePause(t *testing.T) {
	data := payloadJSON(t, map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"timestamp_us": int64(1_700_000_000_000_000),
	})

	cmd, err := ingestion.ParseCommand("Pause", data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if _, ok := cmd.(*command.Pause); !ok {
		t.Fatalf("expected *command.Pause, got %T", cmd)
	}
}

func TestParseAllKindsResolve(t *testing.T) {
	marketRef := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"market_id":    uint64(1),
		"timestamp_us": int64(1_700_000_000_000_000),
	}

	for _, kind := range []string{"CloseBetting", "DistributeRewards", "ClaimReward", "CancelMarket"} {
		cmd, err := ingestion.ParseCommand(kind, payloadJSON(t, marketRef))
		if err != nil {
			t.Errorf("%s: parse failed: %v", kind, err)
			continue
		}
		if cmd.Kind().String() != kind {
			t.Errorf("%s: resolved as %s", kind, cmd.Kind())
		}
	}
}

func TestParseSetFeeRecipient(t *testing.T) {
	data := payloadJSON(t, map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"recipient":    "770e8400-e29b-41d4-a716-446655440002",
		"timestamp_us": int64(1_700_000_000_000_000),
	})

	cmd, err := ingestion.ParseCommand("SetFeeRecipient", data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	sr, ok := cmd.(*command.SetFeeRecipient)
	if !ok {
		t.Fatalf("expected *command.SetFeeRecipient, got %T", cmd)
	}
	if sr.Recipient != uuid.MustParse("770e8400-e29b-41d4-a716-446655440002") {
		t.Error("recipient should parse")
	}
}

func TestParseUnknownKind_Fails(t *testing.T) {
	_, err := ingestion.ParseCommand("NonExistentKind", []byte(`{}`))
	if err == nil {
		t.Fatal("expected error for unknown command kind")
	}
}

func TestParseInvalidJSON_Fails(t *testing.T) {
	_, err := ingestion.ParseCommand("CommitBet", []byte(`{invalid json`))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseInvalidUUID_Fails(t *testing.T) {
	data := payloadJSON(t, map[string]interface{}{
		"command_id":   "not-a-uuid",
		"caller_id":    "also-not-a-uuid",
		"market_id":    uint64(1),
		"timestamp_us": int64(0),
	})

	_, err := ingestion.ParseCommand("CloseBetting", data)
	if err == nil {
		t.Fatal("expected error for invalid UUID")
	}
}

func TestParseInvalidCommitment_Fails(t *testing.T) {
	data := payloadJSON(t, map[string]interface{}{
		"command_id":    "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":     "660e8400-e29b-41d4-a716-446655440001",
		"market_id":     uint64(1),
		"commitment":    "too-short",
		"amount":        int64(1),
		"deposit_value": int64(1),
		"timestamp_us":  int64(0),
	})

	_, err := ingestion.ParseCommand("CommitBet", data)
	if err == nil {
		t.Fatal("expected error for malformed commitment")
	}
}
