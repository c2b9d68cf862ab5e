package usecase

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/ticketgate"
)

var tracer = otel.Tracer("usecase")

const (
	msgMalformed   = "malformed payload"
	msgWrongEvent  = "ticket not for this event"
	msgTooEarly    = "event has not started yet"
	msgExpired     = "event has ended"
	msgBadSig      = "invalid signature"
	msgAlreadyUsed = "ticket already used"
	msgValid       = "ticket valid, admit"
)

// VerifyInput carries one raw scan and its context.
type VerifyInput struct {
	Raw             string
	SecretSalt      string
	ExpectedEventID string
	EventStart      *time.Time
	EventEnd        *time.Time
	Anchor          *ticketgate.Anchor
}

type VerifierOptions struct {
	HashPrefixLength int
	EarlyWindow      time.Duration
	LateWindow       time.Duration
	Clock            Clock
}

type Verifier struct {
	store            UsedTicketStore
	hashPrefixLength int
	earlyWindow      time.Duration
	lateWindow       time.Duration
	now              Clock
}

func NewVerifier(store UsedTicketStore, opts VerifierOptions) *Verifier {
	v := &Verifier{
		store:            store,
		hashPrefixLength: opts.HashPrefixLength,
		earlyWindow:      opts.EarlyWindow,
		lateWindow:       opts.LateWindow,
		now:              opts.Clock,
	}
	if v.hashPrefixLength == 0 {
		v.hashPrefixLength = ticketgate.DefaultHashPrefixLength
	}
	if v.earlyWindow == 0 {
		v.earlyWindow = ticketgate.EarlyWindow
	}
	if v.lateWindow == 0 {
		v.lateWindow = ticketgate.LateWindow
	}
	if v.now == nil {
		v.now = time.Now
	}
	return v
}

// Verify classifies a raw scan. The checks run in a fixed order and the first
// failing one decides the outcome. The registry is only consulted after the
// signature matched, and only mutated on the VALID path. A non-nil error means
// the registry itself failed; classified outcomes are never errors.
func (v *Verifier) Verify(ctx context.Context, in VerifyInput) (ticketgate.Outcome, error) {
	ctx, span := tracer.Start(ctx, "Verifier.Verify")
	defer span.End()

	fields, err := ticketgate.Decode(in.Raw)
	if err != nil {
		return outcome(ticketgate.StatusFake, msgMalformed, ""), nil
	}
	span.SetAttributes(attribute.String("TicketID", fields.TicketID))

	if fields.EventID != in.ExpectedEventID {
		return outcome(ticketgate.StatusFake, msgWrongEvent, fields.TicketID), nil
	}

	now := v.now()
	if in.EventStart != nil && now.Before(in.EventStart.Add(-v.earlyWindow)) {
		return outcome(ticketgate.StatusTooEarly, msgTooEarly, fields.TicketID), nil
	}
	if in.EventEnd != nil && now.After(in.EventEnd.Add(v.lateWindow)) {
		return outcome(ticketgate.StatusExpired, msgExpired, fields.TicketID), nil
	}

	canonical := ticketgate.CanonicalPayload(
		fields.TicketID,
		fields.EventID,
		fields.AttendeeID,
		fields.IssuedAt,
		in.SecretSalt,
		in.Anchor,
	)
	if !ticketgate.MatchPrefix(ticketgate.GetHash(canonical), fields.HashPrefix, v.hashPrefixLength) {
		return outcome(ticketgate.StatusFake, msgBadSig, fields.TicketID), nil
	}

	used, err := v.store.Has(ctx, fields.TicketID)
	if err != nil {
		span.RecordError(errors.Wrap(err, "Verifier.Verify: store.Has failed"))
		return ticketgate.Outcome{}, err
	}
	if used {
		return outcome(ticketgate.StatusAlreadyUsed, msgAlreadyUsed, fields.TicketID), nil
	}

	marked, err := v.store.MarkUsed(ctx, fields.TicketID)
	if err != nil {
		span.RecordError(errors.Wrap(err, "Verifier.Verify: store.MarkUsed failed"))
		return ticketgate.Outcome{}, err
	}
	if !marked {
		// another verification of the same ticket won the check-and-set
		return outcome(ticketgate.StatusAlreadyUsed, msgAlreadyUsed, fields.TicketID), nil
	}

	return outcome(ticketgate.StatusValid, msgValid, fields.TicketID), nil
}

func outcome(status ticketgate.Status, message, ticketID string) ticketgate.Outcome {
	return ticketgate.Outcome{
		Status:   status,
		Message:  message,
		TicketID: ticketID,
	}
}
