package sales

import "math/big"

// Sale is one listing of one wrapper asset. Duration caches the window
// length chosen at listing time and is reused verbatim on renewal, even if
// the schedule policy has changed since.
type Sale struct {
	ID            uint64   `json:"id"`
	AssetID       uint64   `json:"assetId"`
	Seller        [20]byte `json:"seller"`
	CollectionKey string   `json:"collectionKey"`
	BrandID       uint64   `json:"brandId"`
	Price         *big.Int `json:"price"`
	Start         int64    `json:"start"`
	End           int64    `json:"end"`
	Duration      int64    `json:"duration"`
}

// Clone returns a deep copy so callers can safely mutate the result.
func (s *Sale) Clone() *Sale {
	if s == nil {
		return nil
	}
	clone := *s
	if s.Price != nil {
		clone.Price = new(big.Int).Set(s.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

// ListItem is one entry of a listing batch.
type ListItem struct {
	AssetID uint64
	Price   *big.Int
}

// ScheduleConfig is the protocol-wide timing policy. ScheduleDay anchors
// weekly listing windows (0 disables weekly batching), Delays offsets the
// purchasable start per collection, Durations fixes the listing lifetime
// per collection, and Priorities grants higher membership tiers an early
// purchase window: lower tiers wait the configured extra seconds.
type ScheduleConfig struct {
	ScheduleDay uint8
	Delays      map[string]int64
	Durations   map[string]int64
	Priorities  map[uint8]int64
}

// NewScheduleConfig returns an empty policy with allocated maps.
func NewScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		Delays:     make(map[string]int64),
		Durations:  make(map[string]int64),
		Priorities: make(map[uint8]int64),
	}
}
