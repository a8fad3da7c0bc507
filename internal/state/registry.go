package state

// MarketRegistry owns market records and assigns sequential identifiers
type MarketRegistry struct {
	markets map[uint64]*Market
	nextID  uint64
}

func NewMarketRegistry() *MarketRegistry {
	return &MarketRegistry{
		markets: make(map[uint64]*Market),
		nextID:  1,
	}
}

// Create stores a new market under the next sequential id
func (mr *MarketRegistry) Create(m *Market) uint64 {
	m.ID = mr.nextID
	mr.markets[m.ID] = m
	mr.nextID++
	return m.ID
}

// Get returns the market or nil
func (mr *MarketRegistry) Get(id uint64) *Market {
	return mr.markets[id]
}

// Count returns how many markets exist
func (mr *MarketRegistry) Count() int {
	return len(mr.markets)
}

// NextID returns the id the next created market will receive
func (mr *MarketRegistry) NextID() uint64 {
	return mr.nextID
}

// All returns every market keyed by id (for iteration and snapshots)
func (mr *MarketRegistry) All() map[uint64]*Market {
	return mr.markets
}

// Restore re-inserts a market during snapshot restore
func (mr *MarketRegistry) Restore(m *Market) {
	mr.markets[m.ID] = m
	if m.ID >= mr.nextID {
		mr.nextID = m.ID + 1
	}
}
