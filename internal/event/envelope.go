package event

import (
	"time"
)

// EventType discriminator for notification payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeMarketCreated
	EventTypeBetCommitted
	EventTypeBetRevealed
	EventTypeBetCancelled
	EventTypeBetRefunded
	EventTypeBettingClosed
	EventTypeMarketCancelled
	EventTypeWinnerDeclared
	EventTypeRewardsDistributed
	EventTypeRewardClaimed
	EventTypePlatformFeeUpdated
	EventTypeFeeRecipientUpdated
	EventTypeDefaultBetLimitsUpdated
	EventTypeOracleUpdated
	EventTypeOwnershipTransferred
	EventTypePaused
	EventTypeUnpaused
)

// Envelope wraps every notification in the log
type Envelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable idempotency key from the originating command
	IdempotencyKey string

	// Notification type discriminator
	EventType EventType

	// Market context (nil for global notifications)
	MarketID *uint64

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// JSON-encoded type-specific data
	Payload []byte

	// SHA-256 of state AFTER applying the originating command
	StateHash [32]byte

	// Previous envelope's state hash (chain integrity)
	PrevHash [32]byte
}

// ParseEventType maps a stored type name back to its discriminator.
func ParseEventType(s string) (EventType, bool) {
	for et := EventTypeMarketCreated; et <= EventTypeUnpaused; et++ {
		if et.String() == s {
			return et, true
		}
	}
	return EventTypeUnknown, false
}

func (et EventType) String() string {
	switch et {
	case EventTypeMarketCreated:
		return "MarketCreated"
	case EventTypeBetCommitted:
		return "BetCommitted"
	case EventTypeBetRevealed:
		return "BetRevealed"
	case EventTypeBetCancelled:
		return "BetCancelled"
	case EventTypeBetRefunded:
		return "BetRefunded"
	case EventTypeBettingClosed:
		return "BettingClosed"
	case EventTypeMarketCancelled:
		return "MarketCancelled"
	case EventTypeWinnerDeclared:
		return "WinnerDeclared"
	case EventTypeRewardsDistributed:
		return "RewardsDistributed"
	case EventTypeRewardClaimed:
		return "RewardClaimed"
	case EventTypePlatformFeeUpdated:
		return "PlatformFeeUpdated"
	case EventTypeFeeRecipientUpdated:
		return "FeeRecipientUpdated"
	case EventTypeDefaultBetLimitsUpdated:
		return "DefaultBetLimitsUpdated"
	case EventTypeOracleUpdated:
		return "OracleUpdated"
	case EventTypeOwnershipTransferred:
		return "OwnershipTransferred"
	case EventTypePaused:
		return "Paused"
	case EventTypeUnpaused:
		return "Unpaused"
	default:
		return "Unknown"
	}
}
