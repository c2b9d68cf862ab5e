package domain

import "time"

// Config is the runtime view of the ticket settings shared by issuer and verifier.
type Config struct {
	FQDN             string
	HashPrefixLength int
	EarlyWindow      time.Duration
	LateWindow       time.Duration
}
