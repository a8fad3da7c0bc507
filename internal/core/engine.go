package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/AgoraXchange/agora-contract/internal/command"
	"github.com/AgoraXchange/agora-contract/internal/event"
	"github.com/AgoraXchange/agora-contract/internal/funds"
	"github.com/AgoraXchange/agora-contract/internal/ledger"
	"github.com/AgoraXchange/agora-contract/internal/observability"
	"github.com/AgoraXchange/agora-contract/internal/state"

	"github.com/google/uuid"
)

// BettingCore is the single-threaded command processor. Each command is an
// atomic, all-or-nothing transition: all validation before any mutation, all
// mutation before the envelope is emitted, outbound transfers before the
// mutations they unlock.
type BettingCore struct {
	sequence       int64
	hasher         *StateHasher
	balanceTracker *ledger.BalanceTracker
	journalGen     *ledger.JournalGenerator
	validator      *ledger.InvariantValidator
	markets        *state.MarketRegistry
	bets           *state.BetLedger
	settlements    *state.SettlementBook
	platform       *state.Platform
	transferrer    funds.Transferrer
	idempotency    *IdempotencyChecker
	clockGuard     *ClockGuard
	metrics        *observability.Metrics

	persistChan    chan<- CoreOutput
	projectionChan chan<- CoreOutput
}

type CoreOutput struct {
	Envelope   *event.Envelope
	Batch      *ledger.Batch
	StateDelta []byte
}

// dispatchResult carries a handler's staged output back to the pipeline
type dispatchResult struct {
	batch     *ledger.Batch
	eventType event.EventType
	payload   interface{}
	marketID  *uint64 // Overrides the command's market ref (market creation)
}

func NewBettingCore(
	owner, oracle uuid.UUID,
	startSequence int64,
	lruCapacity int,
	persistChan, projectionChan chan<- CoreOutput,
	dbChecker DBIdempotencyChecker,
	transferrer funds.Transferrer,
	metrics *observability.Metrics,
) *BettingCore {
	balanceTracker := ledger.NewBalanceTracker()
	validator := ledger.NewInvariantValidator(balanceTracker)
	journalGen := ledger.NewJournalGenerator(startSequence, balanceTracker)

	if lruCapacity <= 0 {
		lruCapacity = 1_000_000
	}
	idempotencyChecker := NewIdempotencyChecker(lruCapacity, dbChecker)

	return &BettingCore{
		sequence:       startSequence,
		hasher:         NewStateHasher(),
		balanceTracker: balanceTracker,
		journalGen:     journalGen,
		validator:      validator,
		markets:        state.NewMarketRegistry(),
		bets:           state.NewBetLedger(),
		settlements:    state.NewSettlementBook(),
		platform:       state.NewPlatform(owner, oracle),
		transferrer:    transferrer,
		idempotency:    idempotencyChecker,
		clockGuard:     NewClockGuard(),
		metrics:        metrics,
		persistChan:    persistChan,
		projectionChan: projectionChan,
	}
}

// Process is the main processing pipeline
func (c *BettingCore) Process(ctx context.Context, cmd command.Command) error {
	start := time.Now()
	kind := cmd.Kind().String()
	idempotencyKey := cmd.IdempotencyKey()

	// Step 1: Idempotency check (two-tier)
	isDuplicate := c.idempotency.IsDuplicate(kind, idempotencyKey)

	// Step 2: Clock guard - the engine's time never rewinds
	if err := c.clockGuard.Validate(cmd.Timestamp(), isDuplicate); err != nil {
		if c.metrics != nil {
			c.metrics.ClockRegressions.Inc()
			c.metrics.CoreCommandsRejected.WithLabelValues(kind, "clock_regression").Inc()
		}
		return fmt.Errorf("clock validation failed: %w", err)
	}

	// If duplicate, skip processing
	if isDuplicate {
		if c.metrics != nil {
			c.metrics.CoreCommandsRejected.WithLabelValues(kind, "duplicate").Inc()
		}
		return nil
	}

	// Step 3: Dispatch - validate, transfer, mutate
	res, err := c.dispatch(ctx, cmd)
	if err != nil {
		if c.metrics != nil {
			reason := "error"
			if class, ok := ClassOf(err); ok {
				reason = class.String()
			}
			c.metrics.CoreCommandsRejected.WithLabelValues(kind, reason).Inc()
		}
		return err
	}

	// Step 4: Validate and apply the journal batch. A rejected batch here is
	// a bug in a handler, not a caller error.
	if res.batch != nil && len(res.batch.Journals) > 0 {
		if err := c.validator.ValidateBatchBalance(res.batch); err != nil {
			panic(fmt.Sprintf("FATAL: unbalanced batch: %v", err))
		}

		if err := c.balanceTracker.ApplyBatch(res.batch); err != nil {
			return fmt.Errorf("apply batch failed: %w", err)
		}

		if c.metrics != nil {
			for _, j := range res.batch.Journals {
				c.metrics.CoreJournals.WithLabelValues(fmt.Sprintf("%d", j.JournalType)).Inc()
			}
		}
	}

	// Step 5: Compute state digest and hash
	marketID := res.marketID
	if marketID == nil {
		marketID = cmd.MarketRef()
	}

	hashStart := time.Now()
	stateDigest := c.computeStateDigest(res.batch, marketID)
	prevHash := c.hasher.GetPrevHash()
	stateHash := c.hasher.ComputeHash(c.sequence, stateDigest)
	if c.metrics != nil {
		c.metrics.CoreStateHashDur.Observe(time.Since(hashStart).Seconds())
	}

	// Step 6: Create envelope
	payload, err := json.Marshal(res.payload)
	if err != nil {
		panic(fmt.Sprintf("FATAL: payload marshal: %v", err))
	}

	envelope := &event.Envelope{
		Sequence:       c.sequence,
		IdempotencyKey: idempotencyKey,
		EventType:      res.eventType,
		MarketID:       marketID,
		Timestamp:      cmd.Timestamp(),
		Payload:        payload,
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}

	output := CoreOutput{
		Envelope:   envelope,
		Batch:      res.batch,
		StateDelta: stateDigest,
	}

	c.sequence++

	// Step 7: Post-checks
	if err := c.postCheckInvariants(marketID); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	// Step 8: Emit outputs. Persist channel uses BLOCKING send
	// (backpressure), projection channel uses non-blocking send with drop.
	c.persistChan <- output

	select {
	case c.projectionChan <- output:
	default:
		if c.metrics != nil {
			c.metrics.ProjectionDrops.WithLabelValues("core").Inc()
		}
	}

	// Step 9: Mark as processed (add to LRU)
	c.idempotency.MarkProcessed(kind, idempotencyKey)

	if c.metrics != nil {
		c.metrics.CoreCommandsApplied.WithLabelValues(kind).Inc()
		c.metrics.CoreCommandDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		c.metrics.CoreSequence.Set(float64(c.sequence))
	}

	return nil
}

func (c *BettingCore) dispatch(ctx context.Context, cmd command.Command) (*dispatchResult, error) {
	switch v := cmd.(type) {
	case *command.CreateMarket:
		return c.handleCreateMarket(v)
	case *command.CommitBet:
		return c.handleCommitBet(v)
	case *command.RevealBet:
		return c.handleRevealBet(v)
	case *command.CancelBet:
		return c.handleCancelBet(ctx, v)
	case *command.RefundBet:
		return c.handleRefundBet(ctx, v)
	case *command.CloseBetting:
		return c.handleCloseBetting(v)
	case *command.DeclareWinner:
		return c.handleDeclareWinner(v)
	case *command.DistributeRewards:
		return c.handleDistributeRewards(ctx, v)
	case *command.ClaimReward:
		return c.handleClaimReward(ctx, v)
	case *command.CancelMarket:
		return c.handleCancelMarket(v)
	case *command.SetPlatformFee:
		return c.handleSetPlatformFee(v)
	case *command.SetFeeRecipient:
		return c.handleSetFeeRecipient(v)
	case *command.SetDefaultBetLimits:
		return c.handleSetDefaultBetLimits(v)
	case *command.SetOracle:
		return c.handleSetOracle(v)
	case *command.TransferOwnership:
		return c.handleTransferOwnership(v)
	case *command.Pause:
		return c.handlePause(v)
	case *command.Unpause:
		return c.handleUnpause(v)
	default:
		return nil, rejectf(RejectValidation, "unknown command type: %T", cmd)
	}
}

// computeStateDigest creates canonical bytes for the state hash: affected
// ledger account balances, the touched market, and the platform state.
func (c *BettingCore) computeStateDigest(batch *ledger.Batch, marketID *uint64) []byte {
	affectedAccounts := make(map[ledger.AccountKey]bool)

	if batch != nil {
		for _, j := range batch.Journals {
			affectedAccounts[j.DebitAccount] = true
			affectedAccounts[j.CreditAccount] = true
		}
	}

	accounts := make([]ledger.AccountKey, 0, len(affectedAccounts))
	for key := range affectedAccounts {
		accounts = append(accounts, key)
	}

	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountPath() < accounts[j].AccountPath()
	})

	digest := make([]byte, 0, len(accounts)*64+256)

	for _, key := range accounts {
		balance := c.balanceTracker.GetBalance(key)

		path := key.AccountPath()
		digest = append(digest, byte(len(path)))
		digest = append(digest, []byte(path)...)
		digest = appendInt64LE(digest, balance)
	}

	if marketID != nil {
		if m := c.markets.Get(*marketID); m != nil {
			digest = append(digest, m.CanonicalBytes()...)
		}
		if s := c.settlements.Get(*marketID); s != nil {
			digest = append(digest, s.CanonicalBytes()...)
		}
	}

	digest = append(digest, c.platform.CanonicalBytes()...)

	return digest
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

// postCheckInvariants validates invariants after batch application
func (c *BettingCore) postCheckInvariants(marketID *uint64) error {
	if marketID != nil {
		if err := c.balanceTracker.ValidateEscrowNonNegative(*marketID, ledger.DefaultAssetID); err != nil {
			return fmt.Errorf("post-check escrow: %w", err)
		}

		// The tracked escrow balance must equal the face value the market
		// believes it holds
		if m := c.markets.Get(*marketID); m != nil {
			escrow := c.balanceTracker.GetMarketEscrow(*marketID, ledger.DefaultAssetID)
			if escrow != m.EscrowHeld {
				return fmt.Errorf("post-check escrow reconciliation: market %d tracks %d, ledger holds %d",
					*marketID, m.EscrowHeld, escrow)
			}
		}
	}

	// Periodic global zero-sum check
	if c.sequence > 0 && c.sequence%1000 == 0 {
		if err := c.validator.ValidateGlobalBalance(); err != nil {
			return fmt.Errorf("post-check global balance: %w", err)
		}
	}

	return nil
}

// --- Read accessors (engine goroutine only) ---

// GetSequence returns the current global sequence number.
func (c *BettingCore) GetSequence() int64 {
	return c.sequence
}

// GetStateHash returns the current state hash (chain tip).
func (c *BettingCore) GetStateHash() [32]byte {
	return c.hasher.GetPrevHash()
}

// Platform returns the platform state.
func (c *BettingCore) Platform() *state.Platform {
	return c.platform
}

// Market returns a market by id or nil.
func (c *BettingCore) Market(id uint64) *state.Market {
	return c.markets.Get(id)
}

// Bets returns the bet ledger.
func (c *BettingCore) Bets() *state.BetLedger {
	return c.bets
}

// Settlement returns the settlement snapshot for a market or nil.
func (c *BettingCore) Settlement(marketID uint64) *state.Settlement {
	return c.settlements.Get(marketID)
}

// Balances returns the balance tracker.
func (c *BettingCore) Balances() *ledger.BalanceTracker {
	return c.balanceTracker
}
