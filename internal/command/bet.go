package command

import (
	"time"

	"github.com/AgoraXchange/agora-contract/internal/commitment"
	"github.com/google/uuid"
)

// CommitBet places a hidden wager. DepositValue is the value actually
// attached by the calling environment; the core verifies it equals Amount.
type CommitBet struct {
	CommandID    uuid.UUID
	CallerID     uuid.UUID
	MarketID     uint64
	Commitment   commitment.Hash
	Amount       int64
	DepositValue int64
	At           time.Time
}

func (c *CommitBet) Kind() Kind             { return KindCommitBet }
func (c *CommitBet) IdempotencyKey() string { return c.CommandID.String() }
func (c *CommitBet) Caller() uuid.UUID      { return c.CallerID }
func (c *CommitBet) MarketRef() *uint64     { return &c.MarketID }
func (c *CommitBet) Timestamp() time.Time   { return c.At }

// RevealBet discloses the choice and nonce behind a commitment
type RevealBet struct {
	CommandID uuid.UUID
	CallerID  uuid.UUID
	MarketID  uint64
	Choice    uint8 // Choice code: 1=A, 2=B
	Nonce     uint64
	At        time.Time
}

func (c *RevealBet) Kind() Kind             { return KindRevealBet }
func (c *RevealBet) IdempotencyKey() string { return c.CommandID.String() }
func (c *RevealBet) Caller() uuid.UUID      { return c.CallerID }
func (c *RevealBet) MarketRef() *uint64     { return &c.MarketID }
func (c *RevealBet) Timestamp() time.Time   { return c.At }

// CancelBet takes back a still-hidden bet before the grace deadline
type CancelBet struct {
	CommandID   uuid.UUID
	CallerID    uuid.UUID
	MarketID    uint64
	RecordIndex uint64
	At          time.Time
}

func (c *CancelBet) Kind() Kind             { return KindCancelBet }
func (c *CancelBet) IdempotencyKey() string { return c.CommandID.String() }
func (c *CancelBet) Caller() uuid.UUID      { return c.CallerID }
func (c *CancelBet) MarketRef() *uint64     { return &c.MarketID }
func (c *CancelBet) Timestamp() time.Time   { return c.At }

// RefundBet returns the stake of a record that was never revealed
type RefundBet struct {
	CommandID   uuid.UUID
	CallerID    uuid.UUID
	MarketID    uint64
	RecordIndex uint64
	At          time.Time
}

func (c *RefundBet) Kind() Kind             { return KindRefundBet }
func (c *RefundBet) IdempotencyKey() string { return c.CommandID.String() }
func (c *RefundBet) Caller() uuid.UUID      { return c.CallerID }
func (c *RefundBet) MarketRef() *uint64     { return &c.MarketID }
func (c *RefundBet) Timestamp() time.Time   { return c.At }

// ClaimReward pulls the caller's aggregate entitlement after settlement
// or cancellation
type ClaimReward struct {
	CommandID uuid.UUID
	CallerID  uuid.UUID
	MarketID  uint64
	At        time.Time
}

func (c *ClaimReward) Kind() Kind             { return KindClaimReward }
func (c *ClaimReward) IdempotencyKey() string { return c.CommandID.String() }
func (c *ClaimReward) Caller() uuid.UUID      { return c.CallerID }
func (c *ClaimReward) MarketRef() *uint64     { return &c.MarketID }
func (c *ClaimReward) Timestamp() time.Time   { return c.At }
