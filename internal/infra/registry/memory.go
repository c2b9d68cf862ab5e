package registry

import (
	"context"

	"github.com/patrickmn/go-cache"

	"github.com/totegamma/ticketgate/internal/usecase"
)

// Memory is the registry of a single scanner device.
type Memory struct {
	cache *cache.Cache
}

func NewMemory() *Memory {
	return &Memory{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

func (m *Memory) Has(ctx context.Context, ticketID string) (bool, error) {
	_, found := m.cache.Get(ticketID)
	return found, nil
}

// MarkUsed relies on cache.Add refusing existing keys under its own lock.
func (m *Memory) MarkUsed(ctx context.Context, ticketID string) (bool, error) {
	if err := m.cache.Add(ticketID, struct{}{}, cache.NoExpiration); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *Memory) Len() int {
	return m.cache.ItemCount()
}

// MemoryFactory hands out one Memory registry per event.
type MemoryFactory struct {
	stores *cache.Cache
}

func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{stores: cache.New(cache.NoExpiration, 0)}
}

func (f *MemoryFactory) For(eventID string) usecase.UsedTicketStore {
	if s, found := f.stores.Get(eventID); found {
		return s.(*Memory)
	}
	store := NewMemory()
	if err := f.stores.Add(eventID, store, cache.NoExpiration); err != nil {
		s, _ := f.stores.Get(eventID)
		return s.(*Memory)
	}
	return store
}

var _ usecase.UsedTicketStore = (*Memory)(nil)
