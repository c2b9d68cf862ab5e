package ticketgate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const saltInfoLabel = "ticketgate/event-salt/v1"

// DeriveEventSalt derives a per event secret salt from a master key so that a leaked
// salt of one event does not allow forging tickets of another.
func DeriveEventSalt(masterKey []byte, eventID string) (string, error) {
	if len(masterKey) == 0 {
		return "", fmt.Errorf("empty master key")
	}
	h := hkdf.New(sha256.New, masterKey, []byte(eventID), []byte(saltInfoLabel))
	out := make([]byte, 32)
	if _, err := io.ReadFull(h, out); err != nil {
		return "", fmt.Errorf("derive salt: %w", err)
	}
	return hex.EncodeToString(out), nil
}
