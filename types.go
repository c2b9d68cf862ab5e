package ticketgate

import (
	"time"
)

const (
	// Delimiter separates fields of both the QR payload and the canonical payload.
	Delimiter = "|"

	// DefaultHashPrefixLength is the number of hex characters of the security hash
	// embedded in the QR payload. Issuer and verifier must use the same value.
	DefaultHashPrefixLength = 16

	// HashHexLength is the length of a full hex encoded SHA-256 digest.
	HashHexLength = 64

	// EarlyWindow is how long before the event start a ticket is already accepted.
	EarlyWindow = 2 * time.Minute
	// LateWindow is how long after the event end a ticket is still accepted.
	LateWindow = 6 * time.Hour
)

type Status string

const (
	StatusValid       Status = "VALID"
	StatusAlreadyUsed Status = "ALREADY_USED"
	StatusFake        Status = "FAKE"
	StatusTooEarly    Status = "TOO_EARLY"
	StatusExpired     Status = "EXPIRED"
)

// Statuses lists every verification status in presentation order.
var Statuses = []Status{
	StatusValid,
	StatusAlreadyUsed,
	StatusFake,
	StatusTooEarly,
	StatusExpired,
}

func (s Status) Valid() bool {
	switch s {
	case StatusValid, StatusAlreadyUsed, StatusFake, StatusTooEarly, StatusExpired:
		return true
	default:
		return false
	}
}

// Anchor references the payment transaction a credential was bought with.
type Anchor struct {
	Chain  string `json:"chain"`
	TxHash string `json:"txHash"`
}

// Credential is one issued ticket. It is immutable once created.
type Credential struct {
	TicketID   string  `json:"ticketId"`
	EventID    string  `json:"eventId"`
	AttendeeID string  `json:"attendeeId"`
	TicketType string  `json:"ticketType"`
	IssuedAt   int64   `json:"issuedAt"` // unix milliseconds
	Anchor     *Anchor `json:"anchor,omitempty"`
}

// Fields is the decoded form of a QR payload.
type Fields struct {
	TicketID   string `json:"ticketId"`
	EventID    string `json:"eventId"`
	AttendeeID string `json:"attendeeId"`
	IssuedAt   int64  `json:"issuedAt"`
	HashPrefix string `json:"hashPrefix"`
}

// Outcome is the classified result of a single verification.
type Outcome struct {
	Status   Status `json:"status"`
	Message  string `json:"message"`
	TicketID string `json:"ticketId,omitempty"`
}

func (o Outcome) Admitted() bool {
	return o.Status == StatusValid
}
