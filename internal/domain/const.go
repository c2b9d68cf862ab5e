package domain

const (
	RequesterRoleCtxKey   = "tg-requesterRole"
	RequesterDeviceCtxKey = "tg-requesterDevice"
	RequesterEventsCtxKey = "tg-requesterEvents"
)

const (
	TicketIDHeader = "X-Ticket-Id"
)

// Role is what a bearer token lets its holder do.
type Role string

const (
	RoleDevice Role = "device"
	RoleIssuer Role = "issuer"
)

// ScanState follows a single scan through the scanner pipeline.
type ScanState int

const (
	ScanStateCaptured ScanState = iota
	ScanStateVerified
	ScanStateRecorded
	ScanStateQueued
	ScanStateSynced
)

func (s ScanState) String() string {
	switch s {
	case ScanStateCaptured:
		return "Captured"
	case ScanStateVerified:
		return "Verified"
	case ScanStateRecorded:
		return "Recorded"
	case ScanStateQueued:
		return "Queued"
	case ScanStateSynced:
		return "Synced"
	default:
		return "Unknown"
	}
}

type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
)
