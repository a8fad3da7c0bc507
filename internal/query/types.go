package query

// Response types for the read side. Every response carries AsOfSequence,
// the projection watermark at query time, so callers can reason about
// freshness.

// MarketView is the basic market description.
type MarketView struct {
	MarketID        uint64 `json:"market_id"`
	Topic           string `json:"topic"`
	PartyA          string `json:"party_a"`
	PartyB          string `json:"party_b"`
	Creator         string `json:"creator"`
	PartyRewardPct  int64  `json:"party_reward_pct"`
	PartyRewardDest string `json:"party_reward_dest"`
	BettingEndTime  int64  `json:"betting_end_time"`
	RevealEndTime   int64  `json:"reveal_end_time"`
	MinBet          int64  `json:"min_bet"`
	MaxBet          int64  `json:"max_bet"`
	Status          int32  `json:"status"`
	Winner          uint8  `json:"winner"`
	AsOfSequence    int64  `json:"as_of_sequence"`
}

// MarketBettingView adds the live pool figures.
type MarketBettingView struct {
	MarketView
	PoolA      int64 `json:"pool_a"`
	PoolB      int64 `json:"pool_b"`
	BetCount   int64 `json:"bet_count"`
	Volume     int64 `json:"volume"`
	EscrowHeld int64 `json:"escrow_held"`
}

// BetView is one bet record as external observers see it. The choice stays
// zero until the bettor reveals.
type BetView struct {
	MarketID     uint64 `json:"market_id"`
	RecordIndex  uint64 `json:"record_index"`
	Bettor       string `json:"bettor"`
	Commitment   string `json:"commitment"`
	Amount       int64  `json:"amount"`
	Choice       uint8  `json:"choice"`
	State        int32  `json:"state"`
	CommittedAt  int64  `json:"committed_at"`
	RevealedAt   *int64 `json:"revealed_at,omitempty"`
	Claimed      bool   `json:"claimed"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// BetPage is a bounded slice of a bettor's records plus the total count.
type BetPage struct {
	Bets         []BetView `json:"bets"`
	Total        int       `json:"total"`
	Offset       int       `json:"offset"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// SettlementView describes a completed distribution.
type SettlementView struct {
	MarketID          uint64 `json:"market_id"`
	Winner            uint8  `json:"winner"`
	FeeAmount         int64  `json:"fee_amount"`
	PartyRewardAmount int64  `json:"party_reward_amount"`
	ResidualAmount    int64  `json:"residual_amount"`
	TotalEntitlement  int64  `json:"total_entitlement"`
	WinnerCount       int64  `json:"winner_count"`
	DistributedAt     int64  `json:"distributed_at"`
	AsOfSequence      int64  `json:"as_of_sequence"`
}

// BalanceView is one projected ledger account balance.
type BalanceView struct {
	AccountPath  string `json:"account_path"`
	AssetID      uint16 `json:"asset_id"`
	Balance      int64  `json:"balance"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// JournalHistoryEntry is one journal row from the event log.
type JournalHistoryEntry struct {
	JournalID     string `json:"journal_id"`
	BatchID       string `json:"batch_id"`
	EventRef      string `json:"event_ref"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	AssetID       uint16 `json:"asset_id"`
	Amount        int64  `json:"amount"`
	JournalType   int32  `json:"journal_type"`
	Timestamp     int64  `json:"timestamp"`
}
