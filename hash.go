package ticketgate

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// CanonicalPayload builds the exact string the security hash is computed over:
// ticketId|eventId|attendeeId|issuedAt|secretSalt|txHash
// txHash is empty when the credential has no anchor.
func CanonicalPayload(ticketID, eventID, attendeeID string, issuedAt int64, secretSalt string, anchor *Anchor) string {
	txHash := ""
	if anchor != nil {
		txHash = anchor.TxHash
	}
	return strings.Join([]string{
		ticketID,
		eventID,
		attendeeID,
		strconv.FormatInt(issuedAt, 10),
		secretSalt,
		txHash,
	}, Delimiter)
}

// GetHash returns the hex encoded SHA-256 of the canonical payload.
func GetHash(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// SecurityHash is CanonicalPayload followed by GetHash.
func SecurityHash(c Credential, secretSalt string) string {
	return GetHash(CanonicalPayload(c.TicketID, c.EventID, c.AttendeeID, c.IssuedAt, secretSalt, c.Anchor))
}

// HashPrefix truncates a hex digest to the shared prefix length.
func HashPrefix(hash string, length int) (string, error) {
	if err := ValidatePrefixLength(length); err != nil {
		return "", err
	}
	if len(hash) < length {
		return "", fmt.Errorf("hash shorter than prefix length %d", length)
	}
	return hash[:length], nil
}

// MatchPrefix compares the claimed prefix against the recomputed digest in constant time.
// The claimed prefix must have exactly the configured length.
func MatchPrefix(hash, claimed string, length int) bool {
	expected, err := HashPrefix(hash, length)
	if err != nil {
		return false
	}
	if len(claimed) != length {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(claimed), []byte(expected)) == 1
}

func ValidatePrefixLength(length int) error {
	if length < 8 || length > HashHexLength {
		return fmt.Errorf("hash prefix length must be between 8 and %d, got %d", HashHexLength, length)
	}
	return nil
}
