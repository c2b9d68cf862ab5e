package ticketgate

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// TicketIDEntropy is the number of random bytes in a generated ticket id.
const TicketIDEntropy = 16

func JsonPrint(w io.Writer, tag string, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "%s: error marshaling: %v\n", tag, err)
		return
	}
	fmt.Fprintf(w, "%s: %s\n", tag, string(b))
}

// NewTicketID returns "<eventID>-<hex>" where hex encodes TicketIDEntropy bytes
// read from r. A nil reader means crypto/rand.
func NewTicketID(eventID string, r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, TicketIDEntropy)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read ticket id entropy: %w", err)
	}
	return eventID + "-" + hex.EncodeToString(buf), nil
}

// EventIDFromTicketID returns the human readable event prefix of a generated ticket id.
func EventIDFromTicketID(ticketID string) (string, bool) {
	i := strings.LastIndex(ticketID, "-")
	if i <= 0 {
		return "", false
	}
	return ticketID[:i], true
}

func hasDelimiter(values ...string) bool {
	for _, v := range values {
		if strings.Contains(v, Delimiter) {
			return true
		}
	}
	return false
}

// ValidateCredential checks that every field that is carried in the QR payload
// can be encoded without ambiguity.
func ValidateCredential(c Credential) error {
	if c.TicketID == "" || c.EventID == "" || c.AttendeeID == "" {
		return fmt.Errorf("credential is missing ticket, event or attendee id")
	}
	if hasDelimiter(c.TicketID, c.EventID, c.AttendeeID) {
		return ErrDelimiterInField
	}
	if c.Anchor != nil && hasDelimiter(c.Anchor.TxHash) {
		return ErrDelimiterInField
	}
	return nil
}
