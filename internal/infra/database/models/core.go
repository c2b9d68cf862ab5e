package models

import (
	"time"
)

type UsedTicket struct {
	EventID  string    `json:"eventID" gorm:"primaryKey;type:text"`
	TicketID string    `json:"ticketID" gorm:"primaryKey;type:text"`
	CDate    time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type LedgerEntry struct {
	ID         string    `json:"id" gorm:"primaryKey;type:text"`
	EventID    string    `json:"eventID" gorm:"type:text;index:ledger_event_ticket"`
	TicketID   string    `json:"ticketID" gorm:"type:text;index:ledger_event_ticket"`
	DeviceID   string    `json:"deviceID" gorm:"type:text;index"`
	Raw        string    `json:"raw" gorm:"type:text"`
	Status     string    `json:"status" gorm:"type:text;index"`
	Message    string    `json:"message" gorm:"type:text"`
	Conflict   bool      `json:"conflict" gorm:"type:boolean;not null;default:false"`
	ScannedAt  time.Time `json:"scannedAt" gorm:"type:timestamp with time zone;not null"`
	ReceivedAt time.Time `json:"receivedAt" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type QueuedScan struct {
	Seq       int64     `json:"seq" gorm:"primaryKey;autoIncrement"`
	ID        string    `json:"id" gorm:"type:text;uniqueIndex"`
	EventID   string    `json:"eventID" gorm:"type:text"`
	DeviceID  string    `json:"deviceID" gorm:"type:text"`
	Raw       string    `json:"raw" gorm:"type:text"`
	TicketID  string    `json:"ticketID" gorm:"type:text"`
	Status    string    `json:"status" gorm:"type:text"`
	Message   string    `json:"message" gorm:"type:text"`
	ScannedAt time.Time `json:"scannedAt" gorm:"type:timestamp with time zone;not null"`
	Synced    bool      `json:"synced" gorm:"type:boolean;not null;default:false;index"`
}

type Device struct {
	ID      string    `json:"id" gorm:"primaryKey;type:text"`
	Name    string    `json:"name" gorm:"type:text"`
	Events  string    `json:"events" gorm:"type:text"`
	Revoked bool      `json:"revoked" gorm:"type:boolean;not null;default:false"`
	CDate   time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

// Admission holds the first ledger record that admitted a ticket.
type Admission struct {
	EventID  string    `json:"eventID" gorm:"primaryKey;type:text"`
	TicketID string    `json:"ticketID" gorm:"primaryKey;type:text"`
	RecordID string    `json:"recordID" gorm:"type:text;not null"`
	CDate    time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type Event struct {
	ID       string     `json:"id" gorm:"primaryKey;type:text"`
	Name     string     `json:"name" gorm:"type:text"`
	StartsAt *time.Time `json:"startsAt" gorm:"type:timestamp with time zone"`
	EndsAt   *time.Time `json:"endsAt" gorm:"type:timestamp with time zone"`
}
