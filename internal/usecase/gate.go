package usecase

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/ticketgate"
	"github.com/totegamma/ticketgate/internal/domain"
)

// GateVerifyInput is one scan submitted to the server.
type GateVerifyInput struct {
	EventID string             `json:"eventId"`
	Raw     string             `json:"raw"`
	Anchor  *ticketgate.Anchor `json:"anchor,omitempty"`
}

// Gate is the server side of admission: online verification against the
// shared registry and the sync boundary for offline scanners.
type Gate struct {
	stores UsedTicketStoreFactory
	salts  SaltProvider
	ledger ScanLedger
	reader LedgerReader
	events EventStore
	opts   VerifierOptions
}

// NewGate builds the gate. events may be nil, in which case no window is enforced.
func NewGate(stores UsedTicketStoreFactory, salts SaltProvider, ledger ScanLedger, reader LedgerReader, events EventStore, opts VerifierOptions) *Gate {
	return &Gate{
		stores: stores,
		salts:  salts,
		ledger: ledger,
		reader: reader,
		events: events,
		opts:   opts,
	}
}

func enrolled(events []string, eventID string) bool {
	for _, e := range events {
		if e == eventID {
			return true
		}
	}
	return false
}

// DefineEvent stores the admission window of an event.
func (g *Gate) DefineEvent(ctx context.Context, event domain.Event) error {
	ctx, span := tracer.Start(ctx, "Gate.DefineEvent")
	defer span.End()

	if event.ID == "" {
		return fmt.Errorf("%w: event id is required", domain.ErrInvalidInput)
	}
	if event.Start != nil && event.End != nil && event.End.Before(*event.Start) {
		return fmt.Errorf("%w: event ends before it starts", domain.ErrInvalidInput)
	}
	if g.events == nil {
		return fmt.Errorf("event storage is not configured")
	}
	return g.events.Save(ctx, event)
}

func (g *Gate) window(ctx context.Context, eventID string) (domain.EventWindow, error) {
	if g.events == nil {
		return domain.EventWindow{}, nil
	}
	event, err := g.events.Get(ctx, eventID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.EventWindow{}, nil
	}
	if err != nil {
		return domain.EventWindow{}, err
	}
	return event.Window(), nil
}

// Verify classifies a scan from an authenticated device and records it directly
// in the ledger. The admission window comes from the event store.
func (g *Gate) Verify(ctx context.Context, deviceID string, events []string, in GateVerifyInput) (domain.ScanRecord, error) {
	ctx, span := tracer.Start(ctx, "Gate.Verify")
	defer span.End()
	span.SetAttributes(
		attribute.String("EventID", in.EventID),
		attribute.String("DeviceID", deviceID),
	)

	if in.EventID == "" {
		return domain.ScanRecord{}, fmt.Errorf("%w: event id is required", domain.ErrInvalidInput)
	}
	if !enrolled(events, in.EventID) {
		return domain.ScanRecord{}, fmt.Errorf("%w: device is not enrolled for event %s", domain.ErrForbidden, in.EventID)
	}

	salt, err := g.salts.SaltFor(in.EventID)
	if err != nil {
		span.RecordError(errors.Wrap(err, "Gate.Verify: salts.SaltFor failed"))
		return domain.ScanRecord{}, err
	}

	window, err := g.window(ctx, in.EventID)
	if err != nil {
		span.RecordError(errors.Wrap(err, "Gate.Verify: events.Get failed"))
		return domain.ScanRecord{}, err
	}

	session := NewScannerSession(
		NewVerifier(g.stores(in.EventID), g.opts),
		NewDirectSink(g.ledger),
		nil,
		nil,
		SessionOptions{
			DeviceID:   deviceID,
			EventID:    in.EventID,
			SecretSalt: salt,
			Window:     window,
			Anchor:     in.Anchor,
			Clock:      g.opts.Clock,
		},
	)

	return session.Scan(ctx, in.Raw)
}

// Sync accepts the ordered records of one authenticated device. Records claiming
// another device or an event outside events are rejected individually. Admissions
// the ledger accepted are copied into the shared registry so later online scans
// of the same ticket are refused.
func (g *Gate) Sync(ctx context.Context, deviceID string, events []string, records []domain.ScanRecord) ([]domain.SyncResult, error) {
	ctx, span := tracer.Start(ctx, "Gate.Sync")
	defer span.End()
	span.SetAttributes(
		attribute.String("DeviceID", deviceID),
		attribute.Int("Records", len(records)),
	)

	results := make([]domain.SyncResult, len(records))
	accepted := make([]domain.ScanRecord, 0, len(records))
	position := make(map[string]int, len(records))

	for i, rec := range records {
		results[i] = domain.SyncResult{RecordID: rec.ID}
		if _, dup := position[rec.ID]; rec.ID == "" || dup {
			results[i].Error = "record id is missing or repeated"
			continue
		}
		if rec.DeviceID != "" && rec.DeviceID != deviceID {
			results[i].Error = "record belongs to another device"
			continue
		}
		if !enrolled(events, rec.EventID) {
			results[i].Error = "device is not enrolled for event " + rec.EventID
			continue
		}
		rec.DeviceID = deviceID
		position[rec.ID] = i
		accepted = append(accepted, rec)
	}

	if len(accepted) == 0 {
		return results, nil
	}

	appended, err := g.ledger.Append(ctx, accepted)
	for _, r := range appended {
		if i, ok := position[r.RecordID]; ok {
			results[i] = r
		}
	}
	if err != nil {
		span.RecordError(errors.Wrap(err, "Gate.Sync: ledger.Append failed"))
		return results, err
	}

	// duplicates are marked again: MarkUsed is idempotent and a retried sync
	// must still reach the registry when the first attempt failed here
	for _, rec := range accepted {
		r := results[position[rec.ID]]
		if !r.OK || rec.Status != ticketgate.StatusValid {
			continue
		}
		if _, err := g.stores(rec.EventID).MarkUsed(ctx, rec.TicketID); err != nil {
			span.RecordError(errors.Wrap(err, "Gate.Sync: store.MarkUsed failed"))
			return results, err
		}
	}

	return results, nil
}

func (g *Gate) Scans(ctx context.Context, eventID string, limit int) ([]domain.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "Gate.Scans")
	defer span.End()

	return g.reader.List(ctx, eventID, limit)
}

func (g *Gate) Stats(ctx context.Context, eventID string) (map[ticketgate.Status]int64, error) {
	ctx, span := tracer.Start(ctx, "Gate.Stats")
	defer span.End()

	return g.reader.CountByStatus(ctx, eventID)
}
