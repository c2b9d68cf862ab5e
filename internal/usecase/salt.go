package usecase

import (
	"fmt"

	"github.com/totegamma/ticketgate"
)

// StaticSalt uses one salt for every event.
type StaticSalt string

func (s StaticSalt) SaltFor(eventID string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("no secret salt configured")
	}
	return string(s), nil
}

// DerivedSalt derives a salt per event from a master key.
type DerivedSalt struct {
	masterKey []byte
}

func NewDerivedSalt(masterKey []byte) *DerivedSalt {
	return &DerivedSalt{masterKey: masterKey}
}

func (d *DerivedSalt) SaltFor(eventID string) (string, error) {
	return ticketgate.DeriveEventSalt(d.masterKey, eventID)
}
