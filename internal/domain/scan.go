package domain

import (
	"time"

	"github.com/totegamma/ticketgate"
)

// ScanRecord is a classified scan as produced by a scanner session.
type ScanRecord struct {
	ID        string            `json:"id"`
	EventID   string            `json:"eventId"`
	DeviceID  string            `json:"deviceId"`
	Raw       string            `json:"raw"`
	TicketID  string            `json:"ticketId,omitempty"`
	Status    ticketgate.Status `json:"status"`
	Message   string            `json:"message"`
	ScannedAt time.Time         `json:"scannedAt"`
	State     ScanState         `json:"-"`
	Sync      SyncStatus        `json:"sync"`
}

// LedgerEntry is a scan record as accepted by the authoritative ledger.
type LedgerEntry struct {
	ScanRecord
	ReceivedAt time.Time `json:"receivedAt"`
	// Conflict is set when the ticket was already admitted by another record.
	Conflict bool `json:"conflict"`
}

// SyncResult reports the delivery of one record to the ledger. Duplicate marks a
// record the ledger had already accepted earlier.
type SyncResult struct {
	RecordID  string `json:"recordId"`
	OK        bool   `json:"ok"`
	Conflict  bool   `json:"conflict,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Error     string `json:"error,omitempty"`
}

// EventInfo is the display metadata printed on a ticket.
type EventInfo struct {
	Name      string `json:"name"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Venue     string `json:"venue"`
	BannerURL string `json:"bannerUrl,omitempty"`
}

// EventWindow bounds admission for an event. Nil ends are not checked.
type EventWindow struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Event holds the admission window the server enforces for an event.
type Event struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

func (e Event) Window() EventWindow {
	return EventWindow{Start: e.Start, End: e.End}
}

// Device is an enrolled scanner.
type Device struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Events  []string `json:"events"`
	Revoked bool     `json:"revoked"`
}
