package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/AgoraXchange/agora-contract/internal/command"
	"github.com/AgoraXchange/agora-contract/internal/commitment"
	"github.com/AgoraXchange/agora-contract/internal/core"
	"github.com/AgoraXchange/agora-contract/internal/event"
	"github.com/AgoraXchange/agora-contract/internal/funds"
	"github.com/AgoraXchange/agora-contract/internal/ledger"
	"github.com/AgoraXchange/agora-contract/internal/state"

	"github.com/google/uuid"
)

// --- Test fixtures ---

var (
	owner     = uuid.MustParse("10000000-0000-0000-0000-000000000001")
	oracle    = uuid.MustParse("10000000-0000-0000-0000-000000000002")
	partyDest = uuid.MustParse("10000000-0000-0000-0000-000000000003")
	alice     = uuid.MustParse("20000000-0000-0000-0000-000000000001")
	bob       = uuid.MustParse("20000000-0000-0000-0000-000000000002")
	carol     = uuid.MustParse("20000000-0000-0000-0000-000000000003")
)

var (
	base       = time.UnixMicro(1_700_000_000_000_000)
	bettingEnd = base.Add(time.Hour)
	revealEnd  = bettingEnd.Add(state.RevealWindow)
)

type testHarness struct {
	core      *core.BettingCore
	persistCh chan core.CoreOutput
	projCh    chan core.CoreOutput
	recorder  *funds.Recorder
}

func newTestCore() *testHarness {
	return newTestCoreLRU(0)
}

func newTestCoreLRU(lruCapacity int) *testHarness {
	persistCh := make(chan core.CoreOutput, 1024)
	projCh := make(chan core.CoreOutput, 1024)
	recorder := funds.NewRecorder()
	c := core.NewBettingCore(owner, oracle, 0, lruCapacity, persistCh, projCh, nil, recorder, nil)
	return &testHarness{core: c, persistCh: persistCh, projCh: projCh, recorder: recorder}
}

func (h *testHarness) process(t *testing.T, cmd command.Command) {
	t.Helper()
	if err := h.core.Process(context.Background(), cmd); err != nil {
		t.Fatalf("%s failed: %v", cmd.Kind(), err)
	}
}

func (h *testHarness) mustReject(t *testing.T, cmd command.Command, class core.RejectClass) {
	t.Helper()
	err := h.core.Process(context.Background(), cmd)
	if err == nil {
		t.Fatalf("%s should have been rejected", cmd.Kind())
	}
	got, ok := core.ClassOf(err)
	if !ok {
		t.Fatalf("%s: expected a typed rejection, got %v", cmd.Kind(), err)
	}
	if got != class {
		t.Fatalf("%s: expected rejection class %s, got %s (%v)", cmd.Kind(), class, got, err)
	}
}

func (h *testHarness) drain() []core.CoreOutput {
	var outputs []core.CoreOutput
	for {
		select {
		case o := <-h.persistCh:
			outputs = append(outputs, o)
		default:
			return outputs
		}
	}
}

// --- Command builders ---

func mustCreateMarket(at time.Time) *command.CreateMarket {
	return &command.CreateMarket{
		CommandID:       uuid.New(),
		CallerID:        owner,
		Topic:           "Team A vs Team B",
		PartyA:          "Team A",
		PartyB:          "Team B",
		PartyRewardPct:  10,
		PartyRewardDest: partyDest,
		BettingEndTime:  bettingEnd,
		At:              at,
	}
}

func mustCommitBet(marketID uint64, bettor uuid.UUID, choice state.Choice, nonce uint64, amount int64, at time.Time) *command.CommitBet {
	return &command.CommitBet{
		CommandID:    uuid.New(),
		CallerID:     bettor,
		MarketID:     marketID,
		Commitment:   commitment.Compute(marketID, bettor, uint8(choice), nonce, amount),
		Amount:       amount,
		DepositValue: amount,
		At:           at,
	}
}

func mustRevealBet(marketID uint64, bettor uuid.UUID, choice state.Choice, nonce uint64, at time.Time) *command.RevealBet {
	return &command.RevealBet{
		CommandID: uuid.New(),
		CallerID:  bettor,
		MarketID:  marketID,
		Choice:    uint8(choice),
		Nonce:     nonce,
		At:        at,
	}
}

func mustClaim(marketID uint64, bettor uuid.UUID, at time.Time) *command.ClaimReward {
	return &command.ClaimReward{CommandID: uuid.New(), CallerID: bettor, MarketID: marketID, At: at}
}

// setupResolvedMarket drives market 1 through commit, reveal, close and
// resolution: alice stakes 2 units on A, bob stakes 1 unit on B, A wins.
func setupResolvedMarket(t *testing.T, h *testHarness) {
	t.Helper()

	h.process(t, mustCreateMarket(base))
	h.process(t, mustCommitBet(1, alice, state.ChoiceA, 11, 2_000_000, base.Add(time.Minute)))
	h.process(t, mustCommitBet(1, bob, state.ChoiceB, 22, 1_000_000, base.Add(2*time.Minute)))
	h.process(t, mustRevealBet(1, alice, state.ChoiceA, 11, bettingEnd.Add(time.Minute)))
	h.process(t, mustRevealBet(1, bob, state.ChoiceB, 22, bettingEnd.Add(2*time.Minute)))
	h.process(t, &command.CloseBetting{CommandID: uuid.New(), CallerID: alice, MarketID: 1, At: revealEnd.Add(time.Minute)})
	h.process(t, &command.DeclareWinner{CommandID: uuid.New(), CallerID: oracle, MarketID: 1, Winner: uint8(state.ChoiceA), At: revealEnd.Add(2 * time.Minute)})
}

// ============================================================================
// Test: Market Creation
// ============================================================================

func TestCreateMarket_AssignsSequentialIDs(t *testing.T) {
	h := newTestCore()

	h.process(t, mustCreateMarket(base))
	h.process(t, mustCreateMarket(base.Add(time.Second)))

	outputs := h.drain()
	if len(outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(outputs))
	}
	if outputs[0].Envelope.MarketID == nil || *outputs[0].Envelope.MarketID != 1 {
		t.Errorf("first market should get id 1")
	}
	if outputs[1].Envelope.MarketID == nil || *outputs[1].Envelope.MarketID != 2 {
		t.Errorf("second market should get id 2")
	}

	m := h.core.Market(1)
	if m == nil {
		t.Fatal("market 1 should exist")
	}
	if m.Status != state.MarketStatusActive {
		t.Errorf("new market should be Active, got %s", m.Status)
	}
	if m.RevealEndTime != m.BettingEndTime+state.RevealWindow.Microseconds() {
		t.Error("reveal window should extend the betting end time")
	}
	if m.MinBet != state.DefaultMinBet || m.MaxBet != state.DefaultMaxBet {
		t.Error("zero limits should defer to platform defaults")
	}
}

func TestCreateMarket_Validation(t *testing.T) {
	h := newTestCore()

	cmd := mustCreateMarket(base)
	cmd.Topic = ""
	h.mustReject(t, cmd, core.RejectValidation)

	cmd = mustCreateMarket(base.Add(time.Second))
	cmd.PartyA = "Same"
	cmd.PartyB = "Same"
	h.mustReject(t, cmd, core.RejectValidation)

	cmd = mustCreateMarket(base.Add(2 * time.Second))
	cmd.PartyRewardPct = state.MaxPartyRewardPct + 1
	h.mustReject(t, cmd, core.RejectValidation)

	cmd = mustCreateMarket(base.Add(3 * time.Second))
	cmd.PartyRewardDest = uuid.Nil
	h.mustReject(t, cmd, core.RejectValidation)

	cmd = mustCreateMarket(base.Add(4 * time.Second))
	cmd.BettingEndTime = cmd.At
	h.mustReject(t, cmd, core.RejectTemporal)
}

// ============================================================================
// Test: Commit
// ============================================================================

func TestCommitBet_EscrowsStake(t *testing.T) {
	h := newTestCore()
	h.process(t, mustCreateMarket(base))
	h.drain()

	h.process(t, mustCommitBet(1, alice, state.ChoiceA, 11, 1_000_000, base.Add(time.Minute)))

	outputs := h.drain()
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}
	if outputs[0].Envelope.EventType != event.EventTypeBetCommitted {
		t.Errorf("event type: got %v", outputs[0].Envelope.EventType)
	}

	batch := outputs[0].Batch
	if len(batch.Journals) != 1 {
		t.Fatalf("expected 1 journal, got %d", len(batch.Journals))
	}
	j := batch.Journals[0]
	if j.JournalType != ledger.JournalTypeEscrowDeposit {
		t.Errorf("expected JournalTypeEscrowDeposit, got %d", j.JournalType)
	}
	if j.Amount != 1_000_000 {
		t.Errorf("journal amount: got %d", j.Amount)
	}

	m := h.core.Market(1)
	if m.EscrowHeld != 1_000_000 || m.BetCount != 1 {
		t.Errorf("market bookkeeping: escrow=%d bets=%d", m.EscrowHeld, m.BetCount)
	}
	if got := h.core.Balances().GetMarketEscrow(1, ledger.DefaultAssetID); got != 1_000_000 {
		t.Errorf("ledger escrow: got %d", got)
	}
	if h.core.Platform().TotalVolume != 1_000_000 {
		t.Errorf("platform volume: got %d", h.core.Platform().TotalVolume)
	}
}

func TestCommitBet_Validation(t *testing.T) {
	h := newTestCore()
	h.process(t, mustCreateMarket(base))

	cmd := mustCommitBet(1, alice, state.ChoiceA, 1, 1_000_000, base.Add(time.Minute))
	cmd.DepositValue = 999_999
	h.mustReject(t, cmd, core.RejectValidation)

	h.mustReject(t, mustCommitBet(1, alice, state.ChoiceA, 2, state.DefaultMinBet-1, base.Add(2*time.Minute)), core.RejectValidation)
	h.mustReject(t, mustCommitBet(1, alice, state.ChoiceA, 3, state.DefaultMaxBet+1, base.Add(3*time.Minute)), core.RejectValidation)
	h.mustReject(t, mustCommitBet(99, alice, state.ChoiceA, 4, 1_000_000, base.Add(4*time.Minute)), core.RejectNotFound)

	zeroHash := mustCommitBet(1, alice, state.ChoiceA, 5, 1_000_000, base.Add(5*time.Minute))
	zeroHash.Commitment = commitment.Hash{}
	h.mustReject(t, zeroHash, core.RejectValidation)
}

func TestCommitBet_AfterDeadline_Rejected(t *testing.T) {
	h := newTestCore()
	h.process(t, mustCreateMarket(base))

	h.mustReject(t, mustCommitBet(1, alice, state.ChoiceA, 1, 1_000_000, bettingEnd), core.RejectTemporal)
}

// ============================================================================
// Test: Reveal
// ============================================================================

func TestRevealBet_UpdatesPools(t *testing.T) {
	h := newTestCore()
	h.process(t, mustCreateMarket(base))
	h.process(t, mustCommitBet(1, alice, state.ChoiceA, 11, 2_000_000, base.Add(time.Minute)))
	h.process(t, mustCommitBet(1, alice, state.ChoiceA, 12, 1_000_000, base.Add(2*time.Minute)))
	h.process(t, mustCommitBet(1, bob, state.ChoiceB, 22, 500_000, base.Add(3*time.Minute)))
	h.drain()

	h.process(t, mustRevealBet(1, alice, state.ChoiceA, 11, bettingEnd.Add(time.Minute)))
	h.process(t, mustRevealBet(1, alice, state.ChoiceA, 12, bettingEnd.Add(2*time.Minute)))
	h.process(t, mustRevealBet(1, bob, state.ChoiceB, 22, bettingEnd.Add(3*time.Minute)))

	m := h.core.Market(1)
	if m.PoolA != 3_000_000 || m.PoolB != 500_000 {
		t.Errorf("pools: A=%d B=%d", m.PoolA, m.PoolB)
	}
	if m.Volume != 3_500_000 {
		t.Errorf("revealed volume: got %d", m.Volume)
	}
	// Two reveals by the same bettor on the same side count once
	if m.BettorsA != 1 || m.BettorsB != 1 {
		t.Errorf("distinct bettors: A=%d B=%d", m.BettorsA, m.BettorsB)
	}
}

func TestRevealBet_WrongPreimage_Rejected(t *testing.T) {
	h := newTestCore()
	h.process(t, mustCreateMarket(base))
	h.process(t, mustCommitBet(1, alice, state.ChoiceA, 11, 1_000_000, base.Add(time.Minute)))

	// Wrong nonce
	h.mustReject(t, mustRevealBet(1, alice, state.ChoiceA, 99, bettingEnd.Add(time.Minute)), core.RejectIntegrity)
	// Wrong choice
	h.mustReject(t, mustRevealBet(1, alice, state.ChoiceB, 11, bettingEnd.Add(2*time.Minute)), core.RejectIntegrity)
	// Another caller can never reveal someone else's commitment
	h.mustReject(t, mustRevealBet(1, bob, state.ChoiceA, 11, bettingEnd.Add(3*time.Minute)), core.RejectIntegrity)
}

func TestRevealBet_TimeWindow(t *testing.T) {
	h := newTestCore()
	h.process(t, mustCreateMarket(base))
	h.process(t, mustCommitBet(1, alice, state.ChoiceA, 11, 1_000_000, base.Add(time.Minute)))

	// Too early: betting still open
	h.mustReject(t, mustRevealBet(1, alice, state.ChoiceA, 11, bettingEnd.Add(-time.Minute)), core.RejectTemporal)
	// Too late: reveal window ended
	h.mustReject(t, mustRevealBet(1, alice, state.ChoiceA, 11, revealEnd), core.RejectTemporal)
}

func TestRevealBet_DoubleReveal_Rejected(t *testing.T) {
	h := newTestCore()
	h.process(t, mustCreateMarket(base))
	h.process(t, mustCommitBet(1, alice, state.ChoiceA, 11, 1_000_000, base.Add(time.Minute)))
	h.process(t, mustRevealBet(1, alice, state.ChoiceA, 11, bettingEnd.Add(time.Minute)))

	// The record is no longer Committed, so the scan finds no match
	h.mustReject(t, mustRevealBet(1, alice, state.ChoiceA, 11, bettingEnd.Add(2*time.Minute)), core.RejectIntegrity)
}

// ============================================================================
// Test: Cancel and Refund
// ============================================================================

func TestCancelBet_ReturnsStake(t *testing.T) {
	h := newTestCore()
	h.process(t, mustCreateMarket(base))
	h.process(t, mustCommitBet(1, alice, state.ChoiceA, 11, 1_000_000, base.Add(time.Minute)))
	h.drain()

	h.process(t, &command.CancelBet{CommandID: uuid.New(), CallerID: alice, MarketID: 1, RecordIndex: 0, At: base.Add(2 * time.Minute)})

	outputs := h.drain()
	if outputs[0].Batch.Journals[0].JournalType != ledger.JournalTypeCancelRefund {
		t.Error("cancel should produce a CancelRefund journal")
	}
	if got := h.recorder.TotalPaidTo(alice); got != 1_000_000 {
		t.Errorf("refund transfer: got %d", got)
	}

	m := h.core.Market(1)
	if m.EscrowHeld != 0 || m.BetCount != 0 {
		t.Errorf("market bookkeeping after cancel: escrow=%d bets=%d", m.EscrowHeld, m.BetCount)
	}
	// Cancels unwind the platform totals too
	if h.core.Platform().TotalBets != 0 || h.core.Platform().TotalVolume != 0 {
		t.Error("platform totals should be unwound by a cancel")
	}
}

func TestCancelBet_AfterGraceDeadline_Rejected(t *testing.T) {
	h := newTestCore()
	h.process(t, mustCreateMarket(base))
	h.process(t, mustCommitBet(1, alice, state.ChoiceA, 11, 1_000_000, base.Add(time.Minute)))

	// CancelAfter is BettingEndTime - CancellationGrace
	late := bettingEnd.Add(-state.CancellationGrace).Add(time.Second)
	h.mustReject(t, &command.CancelBet{CommandID: uuid.New(), CallerID: alice, MarketID: 1, RecordIndex: 0, At: late}, core.RejectTemporal)
}

func TestCancelBet_NotOwner_Rejected(t *testing.T) {
	h := newTestCore()
	h.process(t, mustCreateMarket(base))
	h.process(t, mustCommitBet(1, alice, state.ChoiceA, 11, 1_000_000, base.Add(time.Minute)))

	h.mustReject(t, &command.CancelBet{CommandID: uuid.New(), CallerID: bob, MarketID: 1, RecordIndex: 0, At: base.Add(2 * time.Minute)}, core.RejectAuthorization)
}

func TestRefundBet_AfterRevealWindow(t *testing.T) {
	h := newTestCore()
	h.process(t, mustCreateMarket(base))
	h.process(t, mustCommitBet(1, alice, state.ChoiceA, 11, 1_000_000, base.Add(time.Minute)))
	h.drain()

	// Too early: reveal window still open
	h.mustReject(t, &command.RefundBet{CommandID: uuid.New(), CallerID: alice, MarketID: 1, RecordIndex: 0, At: bettingEnd.Add(time.Minute)}, core.RejectTemporal)

	h.process(t, &command.RefundBet{CommandID: uuid.New(), CallerID: alice, MarketID: 1, RecordIndex: 0, At: revealEnd.Add(time.Minute)})

	outputs := h.drain()
	if outputs[0].Batch.Journals[0].JournalType != ledger.JournalTypeUnrevealedRefund {
		t.Error("late refund should produce an UnrevealedRefund journal")
	}
	if h.recorder.TotalPaidTo(alice) != 1_000_000 {
		t.Error("stake should be pushed back")
	}
	// Unlike a cancel, a refund does not unwind platform totals
	if h.core.Platform().TotalBets != 1 {
		t.Error("refund should not decrement platform bet count")
	}
}

func TestRefundBet_CancelledMarket_Immediate(t *testing.T) {
	h := newTestCore()
	h.process(t, mustCreateMarket(base))
	h.process(t, mustCommitBet(1, alice, state.ChoiceA, 11, 1_000_000, base.Add(time.Minute)))

	// Nobody reveals; closing past the reveal window cancels the market
	h.process(t, &command.CloseBetting{CommandID: uuid.New(), CallerID: bob, MarketID: 1, At: revealEnd.Add(time.Minute)})
	if h.core.Market(1).Status != state.MarketStatusCancelled {
		t.Fatal("zero-reveal close should cancel the market")
	}
	h.drain()

	h.process(t, &command.RefundBet{CommandID: uuid.New(), CallerID: alice, MarketID: 1, RecordIndex: 0, At: revealEnd.Add(2 * time.Minute)})

	outputs := h.drain()
	if outputs[0].Batch.Journals[0].JournalType != ledger.JournalTypeStakeReclaim {
		t.Error("refund on a cancelled market should produce a StakeReclaim journal")
	}
}

// ============================================================================
// Test: Close and Resolution
// ============================================================================

func TestCloseBetting_BeforeRevealEnd_Rejected(t *testing.T) {
	h := newTestCore()
	h.process(t, mustCreateMarket(base))

	h.mustReject(t, &command.CloseBetting{CommandID: uuid.New(), CallerID: alice, MarketID: 1, At: bettingEnd.Add(time.Minute)}, core.RejectTemporal)
}

func TestDeclareWinner_Authorization(t *testing.T) {
	h := newTestCore()
	h.process(t, mustCreateMarket(base))
	h.process(t, mustCommitBet(1, alice, state.ChoiceA, 11, 1_000_000, base.Add(time.Minute)))
	h.process(t, mustRevealBet(1, alice, state.ChoiceA, 11, bettingEnd.Add(time.Minute)))
	h.process(t, &command.CloseBetting{CommandID: uuid.New(), CallerID: alice, MarketID: 1, At: revealEnd.Add(time.Minute)})

	h.mustReject(t, &command.DeclareWinner{CommandID: uuid.New(), CallerID: alice, MarketID: 1, Winner: 1, At: revealEnd.Add(2 * time.Minute)}, core.RejectAuthorization)

	h.process(t, &command.DeclareWinner{CommandID: uuid.New(), CallerID: oracle, MarketID: 1, Winner: 1, At: revealEnd.Add(3 * time.Minute)})
	if h.core.Market(1).Status != state.MarketStatusResolved {
		t.Error("market should be Resolved")
	}

	// Resolution is one-shot
	h.mustReject(t, &command.DeclareWinner{CommandID: uuid.New(), CallerID: oracle, MarketID: 1, Winner: 2, At: revealEnd.Add(4 * time.Minute)}, core.RejectStateConflict)
}

func TestCancelMarket_ActiveWithBets_Rejected(t *testing.T) {
	h := newTestCore()
	h.process(t, mustCreateMarket(base))
	h.process(t, mustCommitBet(1, alice, state.ChoiceA, 11, 1_000_000, base.Add(time.Minute)))

	h.mustReject(t, &command.CancelMarket{CommandID: uuid.New(), CallerID: owner, MarketID: 1, At: base.Add(2 * time.Minute)}, core.RejectStateConflict)
}

func TestCancelMarket_OwnerOnly(t *testing.T) {
	h := newTestCore()
	h.process(t, mustCreateMarket(base))

	h.mustReject(t, &command.CancelMarket{CommandID: uuid.New(), CallerID: alice, MarketID: 1, At: base.Add(time.Minute)}, core.RejectAuthorization)

	h.process(t, &command.CancelMarket{CommandID: uuid.New(), CallerID: owner, MarketID: 1, At: base.Add(2 * time.Minute)})
	if h.core.Market(1).Status != state.MarketStatusCancelled {
		t.Error("market should be Cancelled")
	}
}

// ============================================================================
// Test: Distribution and Claims
// ============================================================================

func TestDistributeRewards_TwoToOne(t *testing.T) {
	h := newTestCore()
	setupResolvedMarket(t, h)
	h.drain()

	h.process(t, &command.DistributeRewards{CommandID: uuid.New(), CallerID: owner, MarketID: 1, At: revealEnd.Add(3 * time.Minute)})

	// Losing pool is 1_000_000: fee 2% = 20_000, party reward 10% = 100_000.
	// Alice is the sole winner, so her share is the whole 880_000 remainder.
	s := h.core.Settlement(1)
	if s == nil {
		t.Fatal("settlement should exist")
	}
	if s.FeeAmount != 20_000 || s.PartyRewardAmount != 100_000 || s.ResidualAmount != 0 {
		t.Errorf("cuts: fee=%d party=%d residual=%d", s.FeeAmount, s.PartyRewardAmount, s.ResidualAmount)
	}
	if s.TotalEntitlement != 2_880_000 {
		t.Errorf("total entitlement: got %d", s.TotalEntitlement)
	}

	// Fee goes to the default recipient (the owner), party reward to its destination
	if got := h.recorder.TotalPaidTo(owner); got != 20_000 {
		t.Errorf("fee transfer: got %d", got)
	}
	if got := h.recorder.TotalPaidTo(partyDest); got != 100_000 {
		t.Errorf("party reward transfer: got %d", got)
	}

	if h.core.Market(1).Status != state.MarketStatusDistributed {
		t.Error("market should be Distributed")
	}
	if h.core.Platform().TotalFeesCollected != 20_000 {
		t.Errorf("platform fees: got %d", h.core.Platform().TotalFeesCollected)
	}

	// Alice claims her stake plus the full remainder
	h.process(t, mustClaim(1, alice, revealEnd.Add(4*time.Minute)))
	if got := h.recorder.TotalPaidTo(alice); got != 2_880_000 {
		t.Errorf("alice claim: got %d", got)
	}

	// A second claim finds nothing; bob lost and has nothing
	h.mustReject(t, mustClaim(1, alice, revealEnd.Add(5*time.Minute)), core.RejectStateConflict)
	h.mustReject(t, mustClaim(1, bob, revealEnd.Add(6*time.Minute)), core.RejectStateConflict)

	// All value has left the market
	if got := h.core.Balances().GetMarketEscrow(1, ledger.DefaultAssetID); got != 0 {
		t.Errorf("escrow should be cleared, got %d", got)
	}
}

func TestDistributeRewards_Twice_Rejected(t *testing.T) {
	h := newTestCore()
	setupResolvedMarket(t, h)

	h.process(t, &command.DistributeRewards{CommandID: uuid.New(), CallerID: owner, MarketID: 1, At: revealEnd.Add(3 * time.Minute)})
	h.mustReject(t, &command.DistributeRewards{CommandID: uuid.New(), CallerID: owner, MarketID: 1, At: revealEnd.Add(4 * time.Minute)}, core.RejectStateConflict)
}

func TestDistributeRewards_ResidualSweptWithFee(t *testing.T) {
	h := newTestCore()
	h.process(t, mustCreateMarket(base))
	h.process(t, mustCommitBet(1, alice, state.ChoiceA, 11, 1_000_001, base.Add(time.Minute)))
	h.process(t, mustCommitBet(1, carol, state.ChoiceA, 33, 999_999, base.Add(2*time.Minute)))
	h.process(t, mustCommitBet(1, bob, state.ChoiceB, 22, 1_000_000, base.Add(3*time.Minute)))
	h.process(t, mustRevealBet(1, alice, state.ChoiceA, 11, bettingEnd.Add(time.Minute)))
	h.process(t, mustRevealBet(1, carol, state.ChoiceA, 33, bettingEnd.Add(2*time.Minute)))
	h.process(t, mustRevealBet(1, bob, state.ChoiceB, 22, bettingEnd.Add(3*time.Minute)))
	h.process(t, &command.CloseBetting{CommandID: uuid.New(), CallerID: alice, MarketID: 1, At: revealEnd.Add(time.Minute)})
	h.process(t, &command.DeclareWinner{CommandID: uuid.New(), CallerID: oracle, MarketID: 1, Winner: 1, At: revealEnd.Add(2 * time.Minute)})

	h.process(t, &command.DistributeRewards{CommandID: uuid.New(), CallerID: owner, MarketID: 1, At: revealEnd.Add(3 * time.Minute)})

	// Remainder 880_000 over win pool 2_000_000: truncated shares 440_000 and
	// 439_999 leave one indivisible unit, swept to the fee recipient.
	s := h.core.Settlement(1)
	if s.ResidualAmount != 1 {
		t.Errorf("residual: got %d, want 1", s.ResidualAmount)
	}
	if got := h.recorder.TotalPaidTo(owner); got != 20_001 {
		t.Errorf("fee plus residual transfer: got %d", got)
	}
	if s.FeeAmount+s.PartyRewardAmount+s.ResidualAmount+
		(s.TotalEntitlement-s.WinPool) != s.LosePool {
		t.Error("losing pool should split exactly")
	}
}

func TestDistributeRewards_Draw(t *testing.T) {
	h := newTestCore()
	setupResolvedMarket2Draw(t, h)

	h.process(t, &command.DistributeRewards{CommandID: uuid.New(), CallerID: owner, MarketID: 1, At: revealEnd.Add(3 * time.Minute)})

	// Draws take no cuts; each revealed bettor recovers exactly their stake
	s := h.core.Settlement(1)
	if s.FeeAmount != 0 || s.PartyRewardAmount != 0 || s.ResidualAmount != 0 {
		t.Error("a draw should take no cuts")
	}
	if s.TotalEntitlement != 3_000_000 {
		t.Errorf("total entitlement: got %d", s.TotalEntitlement)
	}

	h.process(t, mustClaim(1, alice, revealEnd.Add(4*time.Minute)))
	h.process(t, mustClaim(1, bob, revealEnd.Add(5*time.Minute)))
	if h.recorder.TotalPaidTo(alice) != 2_000_000 || h.recorder.TotalPaidTo(bob) != 1_000_000 {
		t.Error("draw claims should return each stake at face value")
	}
}

func setupResolvedMarket2Draw(t *testing.T, h *testHarness) {
	t.Helper()
	h.process(t, mustCreateMarket(base))
	h.process(t, mustCommitBet(1, alice, state.ChoiceA, 11, 2_000_000, base.Add(time.Minute)))
	h.process(t, mustCommitBet(1, bob, state.ChoiceB, 22, 1_000_000, base.Add(2*time.Minute)))
	h.process(t, mustRevealBet(1, alice, state.ChoiceA, 11, bettingEnd.Add(time.Minute)))
	h.process(t, mustRevealBet(1, bob, state.ChoiceB, 22, bettingEnd.Add(2*time.Minute)))
	h.process(t, &command.CloseBetting{CommandID: uuid.New(), CallerID: alice, MarketID: 1, At: revealEnd.Add(time.Minute)})
	h.process(t, &command.DeclareWinner{CommandID: uuid.New(), CallerID: oracle, MarketID: 1, Winner: uint8(state.ChoiceDraw), At: revealEnd.Add(2 * time.Minute)})
}

func TestDistributeRewards_TransferFailure_Aborts(t *testing.T) {
	h := newTestCore()
	setupResolvedMarket(t, h)

	h.recorder.FailFor(owner, context.DeadlineExceeded)
	h.mustReject(t, &command.DistributeRewards{CommandID: uuid.New(), CallerID: owner, MarketID: 1, At: revealEnd.Add(3 * time.Minute)}, core.RejectTransfer)

	// Nothing changed; a retry after the failure clears succeeds
	if h.core.Market(1).Status != state.MarketStatusResolved {
		t.Error("failed distribution should leave the market Resolved")
	}
	if h.core.Settlement(1) != nil {
		t.Error("failed distribution should record no settlement")
	}

	h.recorder.ClearFailure(owner)
	h.process(t, &command.DistributeRewards{CommandID: uuid.New(), CallerID: owner, MarketID: 1, At: revealEnd.Add(4 * time.Minute)})
}

func TestClaimReward_TransferFailure_RestoresEntitlement(t *testing.T) {
	h := newTestCore()
	setupResolvedMarket(t, h)
	h.process(t, &command.DistributeRewards{CommandID: uuid.New(), CallerID: owner, MarketID: 1, At: revealEnd.Add(3 * time.Minute)})

	h.recorder.FailFor(alice, context.DeadlineExceeded)
	h.mustReject(t, mustClaim(1, alice, revealEnd.Add(4*time.Minute)), core.RejectTransfer)

	h.recorder.ClearFailure(alice)
	h.process(t, mustClaim(1, alice, revealEnd.Add(5*time.Minute)))
	if got := h.recorder.TotalPaidTo(alice); got != 2_880_000 {
		t.Errorf("entitlement should survive a failed transfer: got %d", got)
	}
}

func TestClaimReward_BeforeDistribution_Rejected(t *testing.T) {
	h := newTestCore()
	setupResolvedMarket(t, h)

	h.mustReject(t, mustClaim(1, alice, revealEnd.Add(3*time.Minute)), core.RejectStateConflict)
}

func TestClaimReward_CancelledMarket_ReturnsRevealedStakes(t *testing.T) {
	h := newTestCore()
	h.process(t, mustCreateMarket(base))
	h.process(t, mustCommitBet(1, alice, state.ChoiceA, 11, 1_500_000, base.Add(time.Minute)))
	h.process(t, mustCommitBet(1, alice, state.ChoiceA, 12, 500_000, base.Add(2*time.Minute)))
	h.process(t, mustRevealBet(1, alice, state.ChoiceA, 11, bettingEnd.Add(time.Minute)))
	h.process(t, mustRevealBet(1, alice, state.ChoiceA, 12, bettingEnd.Add(2*time.Minute)))

	// Owner cancels the stuck market after closure
	h.process(t, &command.CloseBetting{CommandID: uuid.New(), CallerID: bob, MarketID: 1, At: revealEnd.Add(time.Minute)})
	h.process(t, &command.CancelMarket{CommandID: uuid.New(), CallerID: owner, MarketID: 1, At: revealEnd.Add(2 * time.Minute)})

	h.process(t, mustClaim(1, alice, revealEnd.Add(3*time.Minute)))
	if got := h.recorder.TotalPaidTo(alice); got != 2_000_000 {
		t.Errorf("cancelled-market claim: got %d", got)
	}
	h.mustReject(t, mustClaim(1, alice, revealEnd.Add(4*time.Minute)), core.RejectStateConflict)
}

// ============================================================================
// Test: Admin
// ============================================================================

func TestAdmin_SetPlatformFee(t *testing.T) {
	h := newTestCore()

	h.mustReject(t, &command.SetPlatformFee{CommandID: uuid.New(), CallerID: alice, FeePct: 5, At: base}, core.RejectAuthorization)
	h.mustReject(t, &command.SetPlatformFee{CommandID: uuid.New(), CallerID: owner, FeePct: state.MaxFeePct + 1, At: base.Add(time.Second)}, core.RejectValidation)

	h.process(t, &command.SetPlatformFee{CommandID: uuid.New(), CallerID: owner, FeePct: 5, At: base.Add(2 * time.Second)})
	if h.core.Platform().FeePct != 5 {
		t.Errorf("fee: got %d", h.core.Platform().FeePct)
	}
}

func TestAdmin_TransferOwnership(t *testing.T) {
	h := newTestCore()

	h.process(t, &command.TransferOwnership{CommandID: uuid.New(), CallerID: owner, NewOwner: carol, At: base})

	// The old owner loses admin rights immediately
	h.mustReject(t, &command.Pause{CommandID: uuid.New(), CallerID: owner, At: base.Add(time.Second)}, core.RejectAuthorization)
	h.process(t, &command.Pause{CommandID: uuid.New(), CallerID: carol, At: base.Add(2 * time.Second)})
}

func TestPause_BlocksEntryPointsOnly(t *testing.T) {
	h := newTestCore()
	h.process(t, mustCreateMarket(base))
	h.process(t, mustCommitBet(1, alice, state.ChoiceA, 11, 1_000_000, base.Add(time.Minute)))

	h.process(t, &command.Pause{CommandID: uuid.New(), CallerID: owner, At: base.Add(2 * time.Minute)})

	// Paused: no new markets, no new money in
	h.mustReject(t, mustCreateMarket(base.Add(3*time.Minute)), core.RejectStateConflict)
	h.mustReject(t, mustCommitBet(1, bob, state.ChoiceB, 22, 1_000_000, base.Add(4*time.Minute)), core.RejectStateConflict)

	// Cancels and reveals still work under pause
	h.process(t, &command.CancelBet{CommandID: uuid.New(), CallerID: alice, MarketID: 1, RecordIndex: 0, At: base.Add(5 * time.Minute)})

	h.process(t, &command.Unpause{CommandID: uuid.New(), CallerID: owner, At: base.Add(6 * time.Minute)})
	h.process(t, mustCommitBet(1, bob, state.ChoiceB, 23, 1_000_000, base.Add(7*time.Minute)))
}

// ============================================================================
// Test: Idempotency and Clock
// ============================================================================

func TestIdempotency_DuplicateCommand_Ignored(t *testing.T) {
	h := newTestCore()

	cmd := mustCreateMarket(base)
	h.process(t, cmd)
	if len(h.drain()) != 1 {
		t.Fatal("first delivery should emit one output")
	}

	h.process(t, cmd)
	if len(h.drain()) != 0 {
		t.Error("duplicate delivery should emit nothing")
	}
	if h.core.Market(2) != nil {
		t.Error("duplicate delivery should not create a second market")
	}
}

func TestIdempotency_LRUCapacityHonored(t *testing.T) {
	h := newTestCoreLRU(1)

	first := mustCreateMarket(base)
	h.process(t, first)
	h.process(t, mustCreateMarket(base))
	h.drain()

	// With capacity 1 the second create evicted the first command's key, so
	// redelivering it is processed again instead of suppressed.
	h.process(t, first)
	if len(h.drain()) != 1 {
		t.Error("evicted command should be reprocessed")
	}
	if h.core.Market(3) == nil {
		t.Error("reprocessed create should have opened a third market")
	}

	wide := newTestCoreLRU(1024)
	dup := mustCreateMarket(base)
	wide.process(t, dup)
	wide.process(t, dup)
	wide.drain()
	if wide.core.Market(2) != nil {
		t.Error("redelivery within capacity should stay suppressed")
	}
}

func TestClockGuard_RegressionRejected(t *testing.T) {
	h := newTestCore()

	h.process(t, mustCreateMarket(base.Add(time.Minute)))

	err := h.core.Process(context.Background(), mustCreateMarket(base))
	if err == nil {
		t.Fatal("a rewound timestamp should be rejected")
	}
}

// ============================================================================
// Test: Hash Chain
// ============================================================================

func TestStateHashChain_Linked(t *testing.T) {
	h := newTestCore()
	setupResolvedMarket(t, h)

	outputs := h.drain()
	if len(outputs) < 2 {
		t.Fatal("expected multiple outputs")
	}
	for i := 1; i < len(outputs); i++ {
		prev := outputs[i-1].Envelope
		cur := outputs[i].Envelope
		if cur.PrevHash != prev.StateHash {
			t.Fatalf("chain break between sequence %d and %d", prev.Sequence, cur.Sequence)
		}
		if cur.Sequence != prev.Sequence+1 {
			t.Fatalf("sequence gap: %d then %d", prev.Sequence, cur.Sequence)
		}
	}
	if h.core.GetStateHash() != outputs[len(outputs)-1].Envelope.StateHash {
		t.Error("chain tip should be the last emitted state hash")
	}
}

func TestStateHashChain_Deterministic(t *testing.T) {
	run := func(commandIDs []uuid.UUID) [32]byte {
		h := newTestCore()
		create := mustCreateMarket(base)
		create.CommandID = commandIDs[0]
		h.process(t, create)

		commit := mustCommitBet(1, alice, state.ChoiceA, 11, 1_000_000, base.Add(time.Minute))
		commit.CommandID = commandIDs[1]
		h.process(t, commit)

		return h.core.GetStateHash()
	}

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	if run(ids) != run(ids) {
		t.Error("identical command streams should produce identical state hashes")
	}
}

// ============================================================================
// Test: Snapshot Round Trip
// ============================================================================

func TestSnapshot_RestoreContinuesIdentically(t *testing.T) {
	// Drive two cores through the same prefix; snapshot/restore one of them,
	// then apply the same next command to both and compare the chain tips.
	buildPrefix := func(h *testHarness, ids []uuid.UUID) {
		create := mustCreateMarket(base)
		create.CommandID = ids[0]
		h.process(t, create)
		commit := mustCommitBet(1, alice, state.ChoiceA, 11, 2_000_000, base.Add(time.Minute))
		commit.CommandID = ids[1]
		h.process(t, commit)
		commit2 := mustCommitBet(1, bob, state.ChoiceB, 22, 1_000_000, base.Add(2*time.Minute))
		commit2.CommandID = ids[2]
		h.process(t, commit2)
	}

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	live := newTestCore()
	buildPrefix(live, ids)

	donor := newTestCore()
	buildPrefix(donor, ids)
	snap := donor.core.CreateSnapshotState()

	restored := newTestCore()
	restored.core.RestoreFromSnapshot(snap)
	restored.core.WarmLRU(snap.IdempotencyKeys)

	if restored.core.GetSequence() != live.core.GetSequence() {
		t.Fatalf("sequence after restore: got %d, want %d", restored.core.GetSequence(), live.core.GetSequence())
	}
	if restored.core.GetStateHash() != live.core.GetStateHash() {
		t.Fatal("chain tip after restore should match")
	}

	// The restored core remembers processed commands
	dup := mustCommitBet(1, alice, state.ChoiceA, 11, 2_000_000, base.Add(time.Minute))
	dup.CommandID = ids[1]
	restored.process(t, dup)
	if len(restored.drain()) != 0 {
		t.Error("restored core should suppress duplicates from before the snapshot")
	}

	// Same next command on both, same resulting hash
	nextID := uuid.New()
	next := mustRevealBet(1, alice, state.ChoiceA, 11, bettingEnd.Add(time.Minute))
	next.CommandID = nextID
	live.process(t, next)

	next2 := mustRevealBet(1, alice, state.ChoiceA, 11, bettingEnd.Add(time.Minute))
	next2.CommandID = nextID
	restored.process(t, next2)

	if live.core.GetStateHash() != restored.core.GetStateHash() {
		t.Error("restored core should continue the hash chain identically")
	}
}
