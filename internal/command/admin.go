package command

import (
	"time"

	"github.com/google/uuid"
)

// SetPlatformFee updates the platform fee percentage (owner-only)
type SetPlatformFee struct {
	CommandID uuid.UUID
	CallerID  uuid.UUID
	FeePct    int64
	At        time.Time
}

func (c *SetPlatformFee) Kind() Kind             { return KindSetPlatformFee }
func (c *SetPlatformFee) IdempotencyKey() string { return c.CommandID.String() }
func (c *SetPlatformFee) Caller() uuid.UUID      { return c.CallerID }
func (c *SetPlatformFee) MarketRef() *uint64     { return nil }
func (c *SetPlatformFee) Timestamp() time.Time   { return c.At }

// SetFeeRecipient updates where platform fees are pushed (owner-only)
type SetFeeRecipient struct {
	CommandID uuid.UUID
	CallerID  uuid.UUID
	Recipient uuid.UUID
	At        time.Time
}

func (c *SetFeeRecipient) Kind() Kind             { return KindSetFeeRecipient }
func (c *SetFeeRecipient) IdempotencyKey() string { return c.CommandID.String() }
func (c *SetFeeRecipient) Caller() uuid.UUID      { return c.CallerID }
func (c *SetFeeRecipient) MarketRef() *uint64     { return nil }
func (c *SetFeeRecipient) Timestamp() time.Time   { return c.At }

// SetDefaultBetLimits updates the platform default bet bounds (owner-only)
type SetDefaultBetLimits struct {
	CommandID uuid.UUID
	CallerID  uuid.UUID
	MinBet    int64
	MaxBet    int64
	At        time.Time
}

func (c *SetDefaultBetLimits) Kind() Kind             { return KindSetDefaultBetLimits }
func (c *SetDefaultBetLimits) IdempotencyKey() string { return c.CommandID.String() }
func (c *SetDefaultBetLimits) Caller() uuid.UUID      { return c.CallerID }
func (c *SetDefaultBetLimits) MarketRef() *uint64     { return nil }
func (c *SetDefaultBetLimits) Timestamp() time.Time   { return c.At }

// SetOracle reassigns the resolution identity (owner-only)
type SetOracle struct {
	CommandID uuid.UUID
	CallerID  uuid.UUID
	Oracle    uuid.UUID
	At        time.Time
}

func (c *SetOracle) Kind() Kind             { return KindSetOracle }
func (c *SetOracle) IdempotencyKey() string { return c.CommandID.String() }
func (c *SetOracle) Caller() uuid.UUID      { return c.CallerID }
func (c *SetOracle) MarketRef() *uint64     { return nil }
func (c *SetOracle) Timestamp() time.Time   { return c.At }

// TransferOwnership reassigns full admin rights (owner-only)
type TransferOwnership struct {
	CommandID uuid.UUID
	CallerID  uuid.UUID
	NewOwner  uuid.UUID
	At        time.Time
}

func (c *TransferOwnership) Kind() Kind             { return KindTransferOwnership }
func (c *TransferOwnership) IdempotencyKey() string { return c.CommandID.String() }
func (c *TransferOwnership) Caller() uuid.UUID      { return c.CallerID }
func (c *TransferOwnership) MarketRef() *uint64     { return nil }
func (c *TransferOwnership) Timestamp() time.Time   { return c.At }

// Pause blocks market creation and new commitments. Reveals, refunds,
// claims and cancellations stay available so escrowed funds remain
// recoverable.
type Pause struct {
	CommandID uuid.UUID
	CallerID  uuid.UUID
	At        time.Time
}

func (c *Pause) Kind() Kind             { return KindPause }
func (c *Pause) IdempotencyKey() string { return c.CommandID.String() }
func (c *Pause) Caller() uuid.UUID      { return c.CallerID }
func (c *Pause) MarketRef() *uint64     { return nil }
func (c *Pause) Timestamp() time.Time   { return c.At }

// Unpause lifts the pause switch
type Unpause struct {
	CommandID uuid.UUID
	CallerID  uuid.UUID
	At        time.Time
}

func (c *Unpause) Kind() Kind             { return KindUnpause }
func (c *Unpause) IdempotencyKey() string { return c.CommandID.String() }
func (c *Unpause) Caller() uuid.UUID      { return c.CallerID }
func (c *Unpause) MarketRef() *uint64     { return nil }
func (c *Unpause) Timestamp() time.Time   { return c.At }
