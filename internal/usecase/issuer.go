package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/ticketgate"
	"github.com/totegamma/ticketgate/internal/domain"
	"github.com/totegamma/ticketgate/policy"
)

const (
	// Watermark is printed at low opacity on every ticket.
	Watermark = "TICKETGATE AUTHENTIC"

	microtextLength = 32
	traceHashLength = 12
)

// IssueInput is what the checkout flow hands over for one ticket.
type IssueInput struct {
	EventID      string             `json:"eventId"`
	AttendeeID   string             `json:"attendeeId"`
	TicketType   string             `json:"ticketType"`
	Event        domain.EventInfo   `json:"event"`
	AttendeeName string             `json:"attendeeName"`
	PurchasedAt  time.Time          `json:"purchasedAt"`
	SecretSalt   string             `json:"-"`
	Anchor       *ticketgate.Anchor `json:"anchor,omitempty"`
}

type IssueResult struct {
	TicketID   string                `json:"ticketId"`
	Credential ticketgate.Credential `json:"credential"`
	QRPayload  string                `json:"qrPayload"`
	Document   []byte                `json:"document"`
}

// Artifact describes the printable ticket. Banner is nil when it could not be loaded.
type Artifact struct {
	EventName    string
	EventDate    string
	EventTime    string
	Venue        string
	AttendeeName string
	TicketType   string
	TicketID     string
	QRPayload    string
	QRCodePNG    []byte
	Banner       []byte
	Microtext    string
	Border       policy.Color
	Watermark    string
	TraceID      string
	TraceHash    string
}

type IssuerOptions struct {
	HashPrefixLength int
	Clock            Clock
	// Random is the entropy source for ticket ids. Defaults to crypto/rand.
	Random     io.Reader
	NewTraceID func() string
}

type Issuer struct {
	qr               QRCodeEncoder
	renderer         DocumentRenderer
	banners          BannerFetcher
	anchors          AnchorValidator
	hashPrefixLength int
	now              Clock
	random           io.Reader
	newTraceID       func() string
}

// NewIssuer builds an issuer. banners and anchors may be nil.
func NewIssuer(qr QRCodeEncoder, renderer DocumentRenderer, banners BannerFetcher, anchors AnchorValidator, opts IssuerOptions) *Issuer {
	i := &Issuer{
		qr:               qr,
		renderer:         renderer,
		banners:          banners,
		anchors:          anchors,
		hashPrefixLength: opts.HashPrefixLength,
		now:              opts.Clock,
		random:           opts.Random,
		newTraceID:       opts.NewTraceID,
	}
	if i.hashPrefixLength == 0 {
		i.hashPrefixLength = ticketgate.DefaultHashPrefixLength
	}
	if i.now == nil {
		i.now = time.Now
	}
	if i.newTraceID == nil {
		i.newTraceID = uuid.NewString
	}
	return i
}

func (i *Issuer) Issue(ctx context.Context, in IssueInput) (IssueResult, error) {
	ctx, span := tracer.Start(ctx, "Issuer.Issue")
	defer span.End()

	if in.SecretSalt == "" {
		return IssueResult{}, fmt.Errorf("%w: secret salt is required", domain.ErrInvalidInput)
	}

	if in.Anchor != nil && i.anchors != nil {
		if err := i.anchors.Validate(ctx, *in.Anchor); err != nil {
			span.RecordError(errors.Wrap(err, "Issuer.Issue: anchor validation failed"))
			return IssueResult{}, err
		}
	}

	ticketID, err := ticketgate.NewTicketID(in.EventID, i.random)
	if err != nil {
		span.RecordError(err)
		return IssueResult{}, errors.Wrap(err, "generate ticket id")
	}
	span.SetAttributes(attribute.String("TicketID", ticketID))

	issuedAt := in.PurchasedAt
	if issuedAt.IsZero() {
		issuedAt = i.now()
	}

	credential := ticketgate.Credential{
		TicketID:   ticketID,
		EventID:    in.EventID,
		AttendeeID: in.AttendeeID,
		TicketType: in.TicketType,
		IssuedAt:   issuedAt.UnixMilli(),
		Anchor:     in.Anchor,
	}
	if err := ticketgate.ValidateCredential(credential); err != nil {
		return IssueResult{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	hash := ticketgate.SecurityHash(credential, in.SecretSalt)
	prefix, err := ticketgate.HashPrefix(hash, i.hashPrefixLength)
	if err != nil {
		return IssueResult{}, errors.Wrap(err, "truncate security hash")
	}

	payload, err := ticketgate.Encode(ticketgate.Fields{
		TicketID:   credential.TicketID,
		EventID:    credential.EventID,
		AttendeeID: credential.AttendeeID,
		IssuedAt:   credential.IssuedAt,
		HashPrefix: prefix,
	})
	if err != nil {
		return IssueResult{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	qrPNG, err := i.qr.Encode(payload)
	if err != nil {
		span.RecordError(errors.Wrap(err, "Issuer.Issue: qr.Encode failed"))
		return IssueResult{}, errors.Wrapf(fmt.Errorf("%w: %v", domain.ErrQREncoding, err), "issue ticket %s", ticketID)
	}

	artifact := Artifact{
		EventName:    in.Event.Name,
		EventDate:    in.Event.Date,
		EventTime:    in.Event.Time,
		Venue:        in.Event.Venue,
		AttendeeName: in.AttendeeName,
		TicketType:   in.TicketType,
		TicketID:     ticketID,
		QRPayload:    payload,
		QRCodePNG:    qrPNG,
		Banner:       i.fetchBanner(ctx, in.Event.BannerURL),
		Microtext:    hash[:microtextLength],
		Border:       policy.BorderColor(in.TicketType),
		Watermark:    Watermark,
		TraceID:      i.newTraceID(),
		TraceHash:    hash[len(hash)-traceHashLength:],
	}

	document, err := i.renderer.Render(ctx, artifact)
	if err != nil {
		span.RecordError(errors.Wrap(err, "Issuer.Issue: renderer.Render failed"))
		return IssueResult{}, errors.Wrapf(fmt.Errorf("%w: %v", domain.ErrRender, err), "issue ticket %s", ticketID)
	}
	if len(document) == 0 {
		return IssueResult{}, errors.Wrapf(fmt.Errorf("%w: empty document", domain.ErrRender), "issue ticket %s", ticketID)
	}

	slog.InfoContext(
		ctx, "ticket issued",
		slog.String("ticketId", ticketID),
		slog.String("eventId", in.EventID),
		slog.String("module", "issuer"),
	)

	return IssueResult{
		TicketID:   ticketID,
		Credential: credential,
		QRPayload:  payload,
		Document:   document,
	}, nil
}

// fetchBanner never fails the issuance; a missing banner only drops decoration.
func (i *Issuer) fetchBanner(ctx context.Context, url string) []byte {
	if url == "" || i.banners == nil {
		return nil
	}
	banner, err := i.banners.FetchBanner(ctx, url)
	if err != nil {
		slog.WarnContext(
			ctx, "banner unavailable, rendering without it",
			slog.String("url", url),
			slog.String("error", err.Error()),
			slog.String("module", "issuer"),
		)
		return nil
	}
	return banner
}
