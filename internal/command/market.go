package command

import (
	"time"

	"github.com/google/uuid"
)

// CreateMarket opens a new binary-outcome market
type CreateMarket struct {
	CommandID       uuid.UUID
	CallerID        uuid.UUID
	Topic           string
	PartyA          string
	PartyB          string
	PartyRewardPct  int64
	PartyRewardDest uuid.UUID
	BettingEndTime  time.Time
	MinBet          int64 // 0 defers to platform default
	MaxBet          int64 // 0 defers to platform default
	At              time.Time
}

func (c *CreateMarket) Kind() Kind                { return KindCreateMarket }
func (c *CreateMarket) IdempotencyKey() string    { return c.CommandID.String() }
func (c *CreateMarket) Caller() uuid.UUID         { return c.CallerID }
func (c *CreateMarket) MarketRef() *uint64        { return nil }
func (c *CreateMarket) Timestamp() time.Time      { return c.At }

// CloseBetting transitions an active market past its reveal window
type CloseBetting struct {
	CommandID uuid.UUID
	CallerID  uuid.UUID
	MarketID  uint64
	At        time.Time
}

func (c *CloseBetting) Kind() Kind             { return KindCloseBetting }
func (c *CloseBetting) IdempotencyKey() string { return c.CommandID.String() }
func (c *CloseBetting) Caller() uuid.UUID      { return c.CallerID }
func (c *CloseBetting) MarketRef() *uint64     { return &c.MarketID }
func (c *CloseBetting) Timestamp() time.Time   { return c.At }

// DeclareWinner is the oracle-only resolution call
type DeclareWinner struct {
	CommandID uuid.UUID
	CallerID  uuid.UUID
	MarketID  uint64
	Winner    uint8 // Choice code: 1=A, 2=B, 3=Draw
	At        time.Time
}

func (c *DeclareWinner) Kind() Kind             { return KindDeclareWinner }
func (c *DeclareWinner) IdempotencyKey() string { return c.CommandID.String() }
func (c *DeclareWinner) Caller() uuid.UUID      { return c.CallerID }
func (c *DeclareWinner) MarketRef() *uint64     { return &c.MarketID }
func (c *DeclareWinner) Timestamp() time.Time   { return c.At }

// DistributeRewards runs the one-shot settlement for a resolved market
type DistributeRewards struct {
	CommandID uuid.UUID
	CallerID  uuid.UUID
	MarketID  uint64
	At        time.Time
}

func (c *DistributeRewards) Kind() Kind             { return KindDistributeRewards }
func (c *DistributeRewards) IdempotencyKey() string { return c.CommandID.String() }
func (c *DistributeRewards) Caller() uuid.UUID      { return c.CallerID }
func (c *DistributeRewards) MarketRef() *uint64     { return &c.MarketID }
func (c *DistributeRewards) Timestamp() time.Time   { return c.At }

// CancelMarket is the owner-only emergency cancellation path
type CancelMarket struct {
	CommandID uuid.UUID
	CallerID  uuid.UUID
	MarketID  uint64
	At        time.Time
}

func (c *CancelMarket) Kind() Kind             { return KindCancelMarket }
func (c *CancelMarket) IdempotencyKey() string { return c.CommandID.String() }
func (c *CancelMarket) Caller() uuid.UUID      { return c.CallerID }
func (c *CancelMarket) MarketRef() *uint64     { return &c.MarketID }
func (c *CancelMarket) Timestamp() time.Time   { return c.At }
