package market

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rickgao/nft-market/internal/model"
)

// registryState holds the thread-safe listing table.
type registryState struct {
	mu sync.RWMutex

	// Active listings indexed by asset.
	listings map[model.AssetKey]*model.Listing

	// Counters.
	created, removed, sold, rejected int64
	volume, fees                     decimal.Decimal
	dropped                          int64

	// Output channel for Dispatcher.
	events chan model.Event
}

func newState(bufferSize int) *registryState {
	if bufferSize < 1 {
		bufferSize = DefaultEventBufferSize
	}
	return &registryState{
		listings: make(map[model.AssetKey]*model.Listing),
		volume:   decimal.Zero,
		fees:     decimal.Zero,
		events:   make(chan model.Event, bufferSize),
	}
}

// getListing returns a listing by key (read-locked).
func (s *registryState) getListing(key model.AssetKey) (model.Listing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.listings[key]
	if !ok {
		return model.Listing{}, false
	}
	return *l, true
}

// insertListing adds a listing unless the key is taken (write-locked).
func (s *registryState) insertListing(l model.Listing) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := l.Key()
	if _, ok := s.listings[key]; ok {
		return false
	}
	lCopy := l
	s.listings[key] = &lCopy
	return true
}

// deleteListing removes and returns a listing (write-locked).
func (s *registryState) deleteListing(key model.AssetKey) (model.Listing, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[key]
	if !ok {
		return model.Listing{}, false
	}
	delete(s.listings, key)
	return *l, true
}

// snapshot returns all listings ordered by contract then asset ID (read-locked).
func (s *registryState) snapshot() []model.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Listing, 0, len(s.listings))
	for _, l := range s.listings {
		result = append(result, *l)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].AssetContract != result[j].AssetContract {
			return result[i].AssetContract < result[j].AssetContract
		}
		return result[i].AssetID < result[j].AssetID
	})
	return result
}

// recordSale updates sale counters (write-locked).
func (s *registryState) recordSale(price, fee decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sold++
	s.volume = s.volume.Add(price)
	s.fees = s.fees.Add(fee)
}

func (s *registryState) incr(counter *int64) {
	s.mu.Lock()
	*counter++
	s.mu.Unlock()
}

func (s *registryState) stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Active:        len(s.listings),
		Created:       s.created,
		Removed:       s.removed,
		Sold:          s.sold,
		Rejected:      s.rejected,
		Volume:        s.volume,
		FeesCollected: s.fees,
		DroppedEvents: s.dropped,
	}
}

// notify sends an event to the events channel (non-blocking).
func (s *registryState) notify(e model.Event) {
	select {
	case s.events <- e:
	default:
		// Channel full, drop oldest by consuming one and retrying.
		s.incr(&s.dropped)
		select {
		case <-s.events:
		default:
		}
		select {
		case s.events <- e:
		default:
		}
	}
}
