package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/ticketgate/internal/domain"
)

type FlusherOptions struct {
	BatchSize       int
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type FlushReport struct {
	Attempted int                 `json:"attempted"`
	Synced    int                 `json:"synced"`
	Failed    int                 `json:"failed"`
	Results   []domain.SyncResult `json:"results"`
}

// SyncFlusher delivers queued scan records to the ledger in capture order.
type SyncFlusher struct {
	queue  ScanQueue
	ledger ScanLedger
	opts   FlusherOptions
	mu     sync.Mutex
}

func NewSyncFlusher(queue ScanQueue, ledger ScanLedger, opts FlusherOptions) *SyncFlusher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 5
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 30 * time.Second
	}
	return &SyncFlusher{
		queue:  queue,
		ledger: ledger,
		opts:   opts,
	}
}

func (f *SyncFlusher) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = f.opts.InitialInterval
	exp.MaxInterval = f.opts.MaxInterval
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, f.opts.MaxRetries), ctx)
}

// Flush drains pending records batch by batch. A record is only marked synced
// after the ledger confirmed it; everything else stays pending for the next flush.
func (f *SyncFlusher) Flush(ctx context.Context) (FlushReport, error) {
	ctx, span := tracer.Start(ctx, "SyncFlusher.Flush")
	defer span.End()

	f.mu.Lock()
	defer f.mu.Unlock()

	var report FlushReport
	for {
		pending, err := f.queue.Pending(ctx, f.opts.BatchSize)
		if err != nil {
			span.RecordError(errors.Wrap(err, "SyncFlusher.Flush: queue.Pending failed"))
			return report, err
		}
		if len(pending) == 0 {
			break
		}
		report.Attempted += len(pending)

		var results []domain.SyncResult
		err = backoff.Retry(func() error {
			r, err := f.ledger.Append(ctx, pending)
			if err != nil {
				slog.WarnContext(
					ctx, "ledger append failed, retrying",
					slog.Int("batch", len(pending)),
					slog.String("error", err.Error()),
					slog.String("module", "sync"),
				)
				return err
			}
			results = r
			return nil
		}, f.newBackOff(ctx))
		if err != nil {
			report.Failed += len(pending)
			span.RecordError(errors.Wrap(err, "SyncFlusher.Flush: ledger.Append gave up"))
			return report, err
		}

		confirmed := make(map[string]domain.SyncResult, len(results))
		for _, r := range results {
			confirmed[r.RecordID] = r
		}

		var synced []string
		for _, rec := range pending {
			r, ok := confirmed[rec.ID]
			if !ok {
				r = domain.SyncResult{RecordID: rec.ID, Error: "missing from ledger response"}
			}
			report.Results = append(report.Results, r)
			if r.OK {
				synced = append(synced, rec.ID)
			} else {
				report.Failed++
			}
		}

		if len(synced) > 0 {
			if err := f.queue.MarkSynced(ctx, synced); err != nil {
				span.RecordError(errors.Wrap(err, "SyncFlusher.Flush: queue.MarkSynced failed"))
				return report, err
			}
			report.Synced += len(synced)
		}

		// rejected records would be returned again by Pending
		if len(synced) < len(pending) {
			break
		}
	}

	span.SetAttributes(
		attribute.Int("Synced", report.Synced),
		attribute.Int("Failed", report.Failed),
	)
	return report, nil
}

// Run flushes every interval while online until ctx is cancelled.
func (f *SyncFlusher) Run(ctx context.Context, interval time.Duration, connectivity Connectivity) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if connectivity != nil && !connectivity.Online() {
				continue
			}
			report, err := f.Flush(ctx)
			if err != nil {
				slog.ErrorContext(
					ctx, "flush failed",
					slog.String("error", err.Error()),
					slog.String("module", "sync"),
				)
				continue
			}
			if report.Attempted > 0 {
				slog.InfoContext(
					ctx, "flushed offline scans",
					slog.Int("synced", report.Synced),
					slog.Int("failed", report.Failed),
					slog.String("module", "sync"),
				)
			}
		}
	}
}
