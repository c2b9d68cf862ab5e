package usecase

import (
	"context"
	"time"

	"github.com/totegamma/ticketgate"
	"github.com/totegamma/ticketgate/internal/domain"
)

// UsedTicketStore is the replay registry of one event scope. Membership is monotonic.
type UsedTicketStore interface {
	Has(ctx context.Context, ticketID string) (bool, error)
	// MarkUsed atomically adds ticketID and reports whether this call added it.
	MarkUsed(ctx context.Context, ticketID string) (bool, error)
}

// UsedTicketStoreFactory returns the registry scoped to an event.
type UsedTicketStoreFactory func(eventID string) UsedTicketStore

// ScanLedger is the authoritative record of scans. Append is idempotent per record id.
type ScanLedger interface {
	Append(ctx context.Context, records []domain.ScanRecord) ([]domain.SyncResult, error)
}

// LedgerReader exposes ledger entries for reporting.
type LedgerReader interface {
	List(ctx context.Context, eventID string, limit int) ([]domain.LedgerEntry, error)
	CountByStatus(ctx context.Context, eventID string) (map[ticketgate.Status]int64, error)
}

// ScanQueue holds scan records captured while offline.
type ScanQueue interface {
	Enqueue(ctx context.Context, record domain.ScanRecord) error
	// Pending returns up to limit pending records in capture order.
	Pending(ctx context.Context, limit int) ([]domain.ScanRecord, error)
	MarkSynced(ctx context.Context, ids []string) error
}

// Connectivity reports whether the authoritative ledger is reachable right now.
type Connectivity interface {
	Online() bool
}

// BannerFetcher loads the optional event banner image.
type BannerFetcher interface {
	FetchBanner(ctx context.Context, url string) ([]byte, error)
}

// QRCodeEncoder renders a payload as a PNG image.
type QRCodeEncoder interface {
	Encode(payload string) ([]byte, error)
}

// DocumentRenderer turns an artifact description into printable bytes.
type DocumentRenderer interface {
	Render(ctx context.Context, artifact Artifact) ([]byte, error)
}

// AnchorValidator checks a payment anchor supplied by checkout.
type AnchorValidator interface {
	Validate(ctx context.Context, anchor ticketgate.Anchor) error
}

// SaltProvider returns the secret salt of an event.
type SaltProvider interface {
	SaltFor(eventID string) (string, error)
}

// ScanPublisher fans out ledger appends to realtime subscribers.
type ScanPublisher interface {
	Publish(ctx context.Context, entry domain.LedgerEntry) error
}

// EventStore holds the admission windows the server enforces.
// Get returns a domain.NotFoundError for events that were never defined.
type EventStore interface {
	Save(ctx context.Context, event domain.Event) error
	Get(ctx context.Context, eventID string) (domain.Event, error)
}

// RemoteVerifier verifies a scan against the server's shared registry.
type RemoteVerifier interface {
	Verify(ctx context.Context, eventID, raw string, anchor *ticketgate.Anchor) (domain.ScanRecord, error)
}

// Clock returns the current time.
type Clock func() time.Time
