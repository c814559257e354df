package ledger

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store
type Memory struct {
	mu       sync.RWMutex
	listings map[int64]Listing
	records  map[recordKey]Record
	nextID   int64
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-process store
func NewMemory() *Memory {
	return &Memory{
		listings: make(map[int64]Listing),
		records:  make(map[recordKey]Record),
	}
}

func (m *Memory) Upsert(ctx context.Context, r Record) (Outcome, error) {
	r = normalize(r)

	m.mu.Lock()
	defer m.mu.Unlock()

	k := r.key()
	_, exists := m.records[k]
	m.records[k] = r
	if exists {
		return Updated, nil
	}
	return Added, nil
}

func (m *Memory) ListByListing(ctx context.Context, listingID int64) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Record{}
	for k, r := range m.records {
		if k.listingID == listingID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CheckIn != out[j].CheckIn {
			return out[i].CheckIn < out[j].CheckIn
		}
		if out[i].CheckOut != out[j].CheckOut {
			return out[i].CheckOut < out[j].CheckOut
		}
		return out[i].RoomType < out[j].RoomType
	})
	return out, nil
}

func (m *Memory) Get(ctx context.Context, id int64) (*Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (m *Memory) Active(ctx context.Context) ([]Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Listing{}
	for _, l := range m.listings {
		if l.IsActive {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Create stores l under a new ID. Booking URLs are unique.
func (m *Memory) Create(ctx context.Context, l Listing) (*Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.listings {
		if existing.BookingURL == l.BookingURL {
			return nil, ErrDuplicate
		}
	}
	m.nextID++
	l.ID = m.nextID
	m.listings[l.ID] = l
	return &l, nil
}

func (m *Memory) ApplyProfile(ctx context.Context, id int64, u ProfileUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[id]
	if !ok {
		return ErrNotFound
	}
	l.Apply(u)
	m.listings[id] = l
	return nil
}

func (m *Memory) Close() error { return nil }
