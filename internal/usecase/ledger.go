package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/totegamma/ticketgate/internal/domain"
)

// PublishingLedger forwards newly accepted records to realtime subscribers.
type PublishingLedger struct {
	ledger    ScanLedger
	publisher ScanPublisher
	now       Clock
}

func NewPublishingLedger(ledger ScanLedger, publisher ScanPublisher) *PublishingLedger {
	return &PublishingLedger{
		ledger:    ledger,
		publisher: publisher,
		now:       time.Now,
	}
}

func (l *PublishingLedger) Append(ctx context.Context, records []domain.ScanRecord) ([]domain.SyncResult, error) {
	results, err := l.ledger.Append(ctx, records)
	if l.publisher == nil {
		return results, err
	}

	byID := make(map[string]domain.ScanRecord, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	for _, r := range results {
		if !r.OK || r.Duplicate {
			continue
		}
		rec := byID[r.RecordID]
		rec.State = domain.ScanStateSynced
		rec.Sync = domain.SyncSynced
		entry := domain.LedgerEntry{
			ScanRecord: rec,
			ReceivedAt: l.now(),
			Conflict:   r.Conflict,
		}
		if perr := l.publisher.Publish(ctx, entry); perr != nil {
			slog.WarnContext(
				ctx, "failed to publish scan",
				slog.String("recordId", r.RecordID),
				slog.String("error", perr.Error()),
				slog.String("module", "ledger"),
			)
		}
	}

	return results, err
}
