package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/totegamma/ticketgate"
	"github.com/totegamma/ticketgate/internal/domain"
)

// Sink receives a verified scan record and returns it in its final state.
type Sink interface {
	Accept(ctx context.Context, record domain.ScanRecord) (domain.ScanRecord, error)
}

// DirectSink writes straight to the authoritative ledger.
type DirectSink struct {
	ledger ScanLedger
}

func NewDirectSink(ledger ScanLedger) *DirectSink {
	return &DirectSink{ledger: ledger}
}

func (s *DirectSink) Accept(ctx context.Context, record domain.ScanRecord) (domain.ScanRecord, error) {
	results, err := s.ledger.Append(ctx, []domain.ScanRecord{record})
	if err != nil {
		return record, err
	}
	if len(results) != 1 || !results[0].OK {
		msg := "no result"
		if len(results) == 1 {
			msg = results[0].Error
		}
		return record, fmt.Errorf("ledger rejected record %s: %s", record.ID, msg)
	}
	record.State = domain.ScanStateRecorded
	record.Sync = domain.SyncSynced
	return record, nil
}

// QueueingSink keeps the record as pending until a flush delivers it.
type QueueingSink struct {
	queue ScanQueue
}

func NewQueueingSink(queue ScanQueue) *QueueingSink {
	return &QueueingSink{queue: queue}
}

func (s *QueueingSink) Accept(ctx context.Context, record domain.ScanRecord) (domain.ScanRecord, error) {
	record.State = domain.ScanStateQueued
	record.Sync = domain.SyncPending
	if err := s.queue.Enqueue(ctx, record); err != nil {
		return record, err
	}
	return record, nil
}

type SessionOptions struct {
	DeviceID   string
	EventID    string
	SecretSalt string
	Window     domain.EventWindow
	Anchor     *ticketgate.Anchor
	Clock      Clock
	NewID      func() string
}

// ScannerSession runs the per device scan pipeline for one event:
// Captured -> Verified -> Recorded | Queued.
type ScannerSession struct {
	verifier     *Verifier
	direct       Sink
	queued       Sink
	connectivity Connectivity
	remote       RemoteVerifier
	opts         SessionOptions
}

// NewScannerSession builds a session. Either sink may be nil: a scanner without
// direct may only queue, a server side session without queued fails instead of
// queueing. connectivity nil means always online.
func NewScannerSession(verifier *Verifier, direct, queued Sink, connectivity Connectivity, opts SessionOptions) *ScannerSession {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &ScannerSession{
		verifier:     verifier,
		direct:       direct,
		queued:       queued,
		connectivity: connectivity,
		opts:         opts,
	}
}

// WithRemote makes the session verify through the server while online. Tickets the
// server reports as admitted or used are also marked in the local registry, so the
// device keeps refusing them once it drops offline.
func (s *ScannerSession) WithRemote(remote RemoteVerifier) *ScannerSession {
	s.remote = remote
	return s
}

func (s *ScannerSession) online() bool {
	if s.connectivity == nil {
		return true
	}
	return s.connectivity.Online()
}

// Scan classifies one raw string and routes the record. The sink is chosen from the
// connectivity state at this moment; a failed direct write falls back to the queue.
func (s *ScannerSession) Scan(ctx context.Context, raw string) (domain.ScanRecord, error) {
	ctx, span := tracer.Start(ctx, "ScannerSession.Scan")
	defer span.End()

	if s.remote != nil && s.online() {
		record, err := s.remote.Verify(ctx, s.opts.EventID, raw, s.opts.Anchor)
		if err == nil {
			s.rememberRemote(ctx, record)
			return record, nil
		}
		slog.WarnContext(
			ctx, "remote verification failed, verifying locally",
			slog.String("error", err.Error()),
			slog.String("module", "scanner"),
		)
	}

	record := domain.ScanRecord{
		ID:        s.opts.NewID(),
		EventID:   s.opts.EventID,
		DeviceID:  s.opts.DeviceID,
		Raw:       raw,
		ScannedAt: s.opts.Clock(),
		State:     domain.ScanStateCaptured,
		Sync:      domain.SyncPending,
	}

	outcome, err := s.verifier.Verify(ctx, VerifyInput{
		Raw:             raw,
		SecretSalt:      s.opts.SecretSalt,
		ExpectedEventID: s.opts.EventID,
		EventStart:      s.opts.Window.Start,
		EventEnd:        s.opts.Window.End,
		Anchor:          s.opts.Anchor,
	})
	if err != nil {
		span.RecordError(errors.Wrap(err, "ScannerSession.Scan: verify failed"))
		return record, err
	}

	record.State = domain.ScanStateVerified
	record.TicketID = outcome.TicketID
	record.Status = outcome.Status
	record.Message = outcome.Message

	if s.direct != nil && s.online() {
		recorded, err := s.direct.Accept(ctx, record)
		if err == nil {
			return recorded, nil
		}
		if s.queued == nil {
			span.RecordError(errors.Wrap(err, "ScannerSession.Scan: direct write failed"))
			return record, err
		}
		slog.WarnContext(
			ctx, "direct ledger write failed, queueing scan",
			slog.String("recordId", record.ID),
			slog.String("error", err.Error()),
			slog.String("module", "scanner"),
		)
	}

	if s.queued == nil {
		return record, fmt.Errorf("scanner for event %s has no reachable sink", s.opts.EventID)
	}
	queued, err := s.queued.Accept(ctx, record)
	if err != nil {
		span.RecordError(errors.Wrap(err, "ScannerSession.Scan: queue failed"))
		return record, err
	}
	return queued, nil
}

func (s *ScannerSession) rememberRemote(ctx context.Context, record domain.ScanRecord) {
	if record.TicketID == "" {
		return
	}
	if record.Status != ticketgate.StatusValid && record.Status != ticketgate.StatusAlreadyUsed {
		return
	}
	if _, err := s.verifier.store.MarkUsed(ctx, record.TicketID); err != nil {
		slog.WarnContext(
			ctx, "failed to mirror remote admission",
			slog.String("ticketId", record.TicketID),
			slog.String("error", err.Error()),
			slog.String("module", "scanner"),
		)
	}
}
