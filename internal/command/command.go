package command

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminator for command payloads
type Kind int32

const (
	KindUnknown Kind = iota
	KindCreateMarket
	KindCommitBet
	KindRevealBet
	KindCancelBet
	KindRefundBet
	KindCloseBetting
	KindDeclareWinner
	KindDistributeRewards
	KindClaimReward
	KindCancelMarket
	KindSetPlatformFee
	KindSetFeeRecipient
	KindSetDefaultBetLimits
	KindSetOracle
	KindTransferOwnership
	KindPause
	KindUnpause
)

// Command is the interface all mutating calls implement. The caller identity
// is opaque: the core never authenticates it, only compares it. The timestamp
// is versioned input read once per call, never the wall clock.
type Command interface {
	// Kind returns the discriminator
	Kind() Kind

	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// Caller returns the opaque caller identity
	Caller() uuid.UUID

	// MarketRef returns the market context (nil for global commands)
	MarketRef() *uint64

	// Timestamp returns the versioned input time
	Timestamp() time.Time
}

func (k Kind) String() string {
	switch k {
	case KindCreateMarket:
		return "CreateMarket"
	case KindCommitBet:
		return "CommitBet"
	case KindRevealBet:
		return "RevealBet"
	case KindCancelBet:
		return "CancelBet"
	case KindRefundBet:
		return "RefundBet"
	case KindCloseBetting:
		return "CloseBetting"
	case KindDeclareWinner:
		return "DeclareWinner"
	case KindDistributeRewards:
		return "DistributeRewards"
	case KindClaimReward:
		return "ClaimReward"
	case KindCancelMarket:
		return "CancelMarket"
	case KindSetPlatformFee:
		return "SetPlatformFee"
	case KindSetFeeRecipient:
		return "SetFeeRecipient"
	case KindSetDefaultBetLimits:
		return "SetDefaultBetLimits"
	case KindSetOracle:
		return "SetOracle"
	case KindTransferOwnership:
		return "TransferOwnership"
	case KindPause:
		return "Pause"
	case KindUnpause:
		return "Unpause"
	default:
		return "Unknown"
	}
}
