package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/totegamma/ticketgate/internal/domain"
	"github.com/totegamma/ticketgate/internal/usecase"
)

const scanChannelPrefix = "ticketgate:scans:"

type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func ScanChannel(eventID string) string {
	return scanChannelPrefix + eventID
}

func (s *SignalService) Publish(ctx context.Context, entry domain.LedgerEntry) error {

	jsonstr, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return s.rdb.Publish(ctx, ScanChannel(entry.EventID), jsonstr).Err()
}

// Subscribe returns the live scan stream of an event. The caller closes it.
func (s *SignalService) Subscribe(ctx context.Context, eventID string) *redis.PubSub {
	return s.rdb.Subscribe(ctx, ScanChannel(eventID))
}

// Stream decodes the live scan stream of an event until ctx ends or close is called.
func (s *SignalService) Stream(ctx context.Context, eventID string) (<-chan domain.LedgerEntry, func() error) {
	pubsub := s.Subscribe(ctx, eventID)
	output := make(chan domain.LedgerEntry)

	go func() {
		defer close(output)
		for msg := range pubsub.Channel() {
			var entry domain.LedgerEntry
			if err := json.Unmarshal([]byte(msg.Payload), &entry); err != nil {
				slog.WarnContext(
					ctx, "dropping undecodable scan message",
					slog.String("error", err.Error()),
					slog.String("module", "signal"),
				)
				continue
			}
			select {
			case output <- entry:
			case <-ctx.Done():
				return
			}
		}
	}()

	return output, pubsub.Close
}

var _ usecase.ScanPublisher = (*SignalService)(nil)
