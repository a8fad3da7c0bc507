package state

import (
	"github.com/google/uuid"
)

// BettorKey indexes records by market and bettor
type BettorKey struct {
	MarketID uint64
	Bettor   uuid.UUID
}

type sideKey struct {
	MarketID uint64
	Bettor   uuid.UUID
	Side     Choice
}

// BetLedger holds the append-only bet record arenas. Records are addressed
// by stable per-market index; the per-bettor index stores indices, never
// copies, so there is exactly one mutation site per record.
type BetLedger struct {
	records    map[uint64][]*BetRecord // Arena per market, position == record index
	byBettor   map[BettorKey][]uint64
	seenOnSide map[sideKey]bool
}

func NewBetLedger() *BetLedger {
	return &BetLedger{
		records:    make(map[uint64][]*BetRecord),
		byBettor:   make(map[BettorKey][]uint64),
		seenOnSide: make(map[sideKey]bool),
	}
}

// Append stores a new record and returns its stable index
func (bl *BetLedger) Append(record *BetRecord) uint64 {
	arena := bl.records[record.MarketID]
	record.Index = uint64(len(arena))
	bl.records[record.MarketID] = append(arena, record)

	key := BettorKey{MarketID: record.MarketID, Bettor: record.Bettor}
	bl.byBettor[key] = append(bl.byBettor[key], record.Index)

	return record.Index
}

// Get returns the record at a stable index, or nil
func (bl *BetLedger) Get(marketID uint64, index uint64) *BetRecord {
	arena := bl.records[marketID]
	if index >= uint64(len(arena)) {
		return nil
	}
	return arena[index]
}

// UserRecords returns all of a bettor's records for a market in commit order
func (bl *BetLedger) UserRecords(marketID uint64, bettor uuid.UUID) []*BetRecord {
	key := BettorKey{MarketID: marketID, Bettor: bettor}
	indices := bl.byBettor[key]

	result := make([]*BetRecord, 0, len(indices))
	for _, idx := range indices {
		result = append(result, bl.records[marketID][idx])
	}
	return result
}

// UserRecordCount returns how many records a bettor holds for a market
func (bl *BetLedger) UserRecordCount(marketID uint64, bettor uuid.UUID) int {
	key := BettorKey{MarketID: marketID, Bettor: bettor}
	return len(bl.byBettor[key])
}

// Paginate returns a bounded slice of a bettor's records starting at offset,
// length <= min(limit, MaxPageSize), plus the bettor's total record count.
// Bounds the cost of reading an unbounded history.
func (bl *BetLedger) Paginate(marketID uint64, bettor uuid.UUID, offset, limit int) ([]*BetRecord, int) {
	key := BettorKey{MarketID: marketID, Bettor: bettor}
	indices := bl.byBettor[key]
	total := len(indices)

	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 || offset >= total {
		return []*BetRecord{}, total
	}

	end := offset + limit
	if end > total {
		end = total
	}

	page := make([]*BetRecord, 0, end-offset)
	for _, idx := range indices[offset:end] {
		page = append(page, bl.records[marketID][idx])
	}
	return page, total
}

// FindCommittedMatch scans the caller's committed records for one whose
// commitment matches the revealed (choice, nonce) against the stored amount.
// Returns nil when no record matches; the caller must not disclose which
// field mismatched.
func (bl *BetLedger) FindCommittedMatch(marketID uint64, bettor uuid.UUID, choice Choice, nonce uint64) *BetRecord {
	for _, record := range bl.UserRecords(marketID, bettor) {
		if record.State != BetStateCommitted {
			continue
		}
		if record.Commitment.Verify(marketID, bettor, uint8(choice), nonce, record.Amount) {
			return record
		}
	}
	return nil
}

// MarkSeenOnSide records a bettor revealing on a side. Returns true the
// first time that bettor appears on that side (distinct-bettor counting).
func (bl *BetLedger) MarkSeenOnSide(marketID uint64, bettor uuid.UUID, side Choice) bool {
	key := sideKey{MarketID: marketID, Bettor: bettor, Side: side}
	if bl.seenOnSide[key] {
		return false
	}
	bl.seenOnSide[key] = true
	return true
}

// SeenOnSide reports whether a bettor has revealed on a side
func (bl *BetLedger) SeenOnSide(marketID uint64, bettor uuid.UUID, side Choice) bool {
	return bl.seenOnSide[sideKey{MarketID: marketID, Bettor: bettor, Side: side}]
}

// MarketRecords returns a market's full arena in index order (for iteration,
// settlement and snapshot creation)
func (bl *BetLedger) MarketRecords(marketID uint64) []*BetRecord {
	return bl.records[marketID]
}

// MarketRecordCount returns the arena size for a market
func (bl *BetLedger) MarketRecordCount(marketID uint64) int {
	return len(bl.records[marketID])
}

// HasRecords reports whether any record exists for a market
func (bl *BetLedger) HasRecords(marketID uint64) bool {
	return len(bl.records[marketID]) > 0
}

// Restore re-inserts a record during snapshot restore. Records must be
// restored in index order per market.
func (bl *BetLedger) Restore(record *BetRecord) {
	arena := bl.records[record.MarketID]
	bl.records[record.MarketID] = append(arena, record)

	key := BettorKey{MarketID: record.MarketID, Bettor: record.Bettor}
	bl.byBettor[key] = append(bl.byBettor[key], record.Index)

	if record.State == BetStateRevealed && record.Choice.IsSide() {
		bl.seenOnSide[sideKey{MarketID: record.MarketID, Bettor: record.Bettor, Side: record.Choice}] = true
	}
}
