package event

import (
	"github.com/google/uuid"
)

// Notification payloads, JSON-encoded into Envelope.Payload. Each carries
// the identifiers and amounts external observers need to reconstruct state
// without re-querying every call.

type MarketCreated struct {
	MarketID        uint64    `json:"market_id"`
	Topic           string    `json:"topic"`
	PartyA          string    `json:"party_a"`
	PartyB          string    `json:"party_b"`
	Creator         uuid.UUID `json:"creator"`
	PartyRewardPct  int64     `json:"party_reward_pct"`
	PartyRewardDest uuid.UUID `json:"party_reward_dest"`
	BettingEndTime  int64     `json:"betting_end_time"`
	RevealEndTime   int64     `json:"reveal_end_time"`
	MinBet          int64     `json:"min_bet"`
	MaxBet          int64     `json:"max_bet"`
}

type BetCommitted struct {
	MarketID    uint64    `json:"market_id"`
	Bettor      uuid.UUID `json:"bettor"`
	RecordIndex uint64    `json:"record_index"`
	Commitment  string    `json:"commitment"` // Hex digest; the choice stays opaque
	Amount      int64     `json:"amount"`
}

type BetRevealed struct {
	MarketID    uint64    `json:"market_id"`
	Bettor      uuid.UUID `json:"bettor"`
	RecordIndex uint64    `json:"record_index"`
	Choice      uint8     `json:"choice"`
	Amount      int64     `json:"amount"`
}

type BetCancelled struct {
	MarketID    uint64    `json:"market_id"`
	Bettor      uuid.UUID `json:"bettor"`
	RecordIndex uint64    `json:"record_index"`
	Amount      int64     `json:"amount"`
}

type BetRefunded struct {
	MarketID    uint64    `json:"market_id"`
	Bettor      uuid.UUID `json:"bettor"`
	RecordIndex uint64    `json:"record_index"`
	Amount      int64     `json:"amount"`
}

type BettingClosed struct {
	MarketID uint64 `json:"market_id"`
	PoolA    int64  `json:"pool_a"`
	PoolB    int64  `json:"pool_b"`
}

type MarketCancelled struct {
	MarketID uint64 `json:"market_id"`
	Refundable int64 `json:"refundable"` // Face value still escrowed
}

type WinnerDeclared struct {
	MarketID uint64 `json:"market_id"`
	Winner   uint8  `json:"winner"`
	WinPool  int64  `json:"win_pool"`
	LosePool int64  `json:"lose_pool"`
}

type RewardsDistributed struct {
	MarketID          uint64 `json:"market_id"`
	Winner            uint8  `json:"winner"`
	FeeAmount         int64  `json:"fee_amount"`
	PartyRewardAmount int64  `json:"party_reward_amount"`
	ResidualAmount    int64  `json:"residual_amount"`
	TotalEntitlement  int64  `json:"total_entitlement"`
	WinnerCount       int64  `json:"winner_count"`
}

type RewardClaimed struct {
	MarketID uint64    `json:"market_id"`
	Bettor   uuid.UUID `json:"bettor"`
	Amount   int64     `json:"amount"`
}

type PlatformFeeUpdated struct {
	OldFeePct int64 `json:"old_fee_pct"`
	NewFeePct int64 `json:"new_fee_pct"`
}

type FeeRecipientUpdated struct {
	OldRecipient uuid.UUID `json:"old_recipient"`
	NewRecipient uuid.UUID `json:"new_recipient"`
}

type DefaultBetLimitsUpdated struct {
	MinBet int64 `json:"min_bet"`
	MaxBet int64 `json:"max_bet"`
}

type OracleUpdated struct {
	OldOracle uuid.UUID `json:"old_oracle"`
	NewOracle uuid.UUID `json:"new_oracle"`
}

type OwnershipTransferred struct {
	OldOwner uuid.UUID `json:"old_owner"`
	NewOwner uuid.UUID `json:"new_owner"`
}

type Paused struct {
	By uuid.UUID `json:"by"`
}

type Unpaused struct {
	By uuid.UUID `json:"by"`
}
