package state

import "time"

// Platform-wide hard limits and defaults. Percentages are whole percent
// of the losing pool.
const (
	MaxFeePct         int64 = 10
	MaxPartyRewardPct int64 = 20
	DefaultFeePct     int64 = 2

	// RevealWindow is the fixed reveal phase length past bettingEndTime
	RevealWindow = time.Hour

	// CancellationGrace is how long before bettingEndTime a committed bet
	// stops being cancellable
	CancellationGrace = 30 * time.Minute

	// MaxPageSize bounds paginated bet listings
	MaxPageSize = 100

	// DefaultMinBet and DefaultMaxBet are the initial platform bet bounds
	// in fixed-point units (6 decimals)
	DefaultMinBet int64 = 10_000             // 0.01
	DefaultMaxBet int64 = 1_000_000_000_000  // 1,000,000
)
