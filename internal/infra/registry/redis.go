package registry

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/ticketgate/internal/usecase"
)

var tracer = otel.Tracer("registry")

const keyPrefix = "ticketgate:used:"

// Redis is a registry shared by every verifier of an event.
type Redis struct {
	rdb     *redis.Client
	eventID string
}

func NewRedis(rdb *redis.Client, eventID string) *Redis {
	return &Redis{rdb: rdb, eventID: eventID}
}

func (r *Redis) key(ticketID string) string {
	return keyPrefix + r.eventID + ":" + ticketID
}

func (r *Redis) Has(ctx context.Context, ticketID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Registry.Redis.Has")
	defer span.End()

	n, err := r.rdb.Exists(ctx, r.key(ticketID)).Result()
	if err != nil {
		span.RecordError(errors.Wrap(err, "Registry.Redis.Has: exists failed"))
		return false, err
	}
	return n > 0, nil
}

func (r *Redis) MarkUsed(ctx context.Context, ticketID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Registry.Redis.MarkUsed")
	defer span.End()

	ok, err := r.rdb.SetNX(ctx, r.key(ticketID), 1, 0).Result()
	if err != nil {
		span.RecordError(errors.Wrap(err, "Registry.Redis.MarkUsed: setnx failed"))
		return false, err
	}
	return ok, nil
}

func RedisFactory(rdb *redis.Client) usecase.UsedTicketStoreFactory {
	return func(eventID string) usecase.UsedTicketStore {
		return NewRedis(rdb, eventID)
	}
}

var _ usecase.UsedTicketStore = (*Redis)(nil)
