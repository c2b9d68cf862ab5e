package registry

import (
	"context"
	"encoding/hex"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"

	"github.com/totegamma/ticketgate/internal/usecase"
)

// Memcached is a shared registry. Entries never expire but memcached may evict
// them under memory pressure, so it suits short events on a dedicated instance.
type Memcached struct {
	mc      *memcache.Client
	eventID string
}

func NewMemcached(mc *memcache.Client, eventID string) *Memcached {
	return &Memcached{mc: mc, eventID: eventID}
}

// memcache keys are limited to 250 bytes without spaces, ticket ids are not.
func (m *Memcached) key(ticketID string) string {
	sum := xxh3.HashString128(m.eventID + "\x00" + ticketID).Bytes()
	return "tg:used:" + hex.EncodeToString(sum[:])
}

func (m *Memcached) Has(ctx context.Context, ticketID string) (bool, error) {
	_, span := tracer.Start(ctx, "Registry.Memcached.Has")
	defer span.End()

	_, err := m.mc.Get(m.key(ticketID))
	if err == memcache.ErrCacheMiss {
		return false, nil
	}
	if err != nil {
		span.RecordError(errors.Wrap(err, "Registry.Memcached.Has: get failed"))
		return false, err
	}
	return true, nil
}

func (m *Memcached) MarkUsed(ctx context.Context, ticketID string) (bool, error) {
	_, span := tracer.Start(ctx, "Registry.Memcached.MarkUsed")
	defer span.End()

	err := m.mc.Add(&memcache.Item{
		Key:   m.key(ticketID),
		Value: []byte(ticketID),
	})
	if err == memcache.ErrNotStored {
		return false, nil
	}
	if err != nil {
		span.RecordError(errors.Wrap(err, "Registry.Memcached.MarkUsed: add failed"))
		return false, err
	}
	return true, nil
}

func MemcachedFactory(mc *memcache.Client) usecase.UsedTicketStoreFactory {
	return func(eventID string) usecase.UsedTicketStore {
		return NewMemcached(mc, eventID)
	}
}

var _ usecase.UsedTicketStore = (*Memcached)(nil)
