package ticketgate

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrMalformedPayload is returned by Decode for anything that is not a five field payload.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrDelimiterInField is returned by Encode when a field would break the wire format.
	ErrDelimiterInField = errors.New("field contains delimiter")
)

const fieldCount = 5

// Encode serializes fields into the QR wire format
// ticketId|eventId|attendeeId|issuedAt|hashPrefix.
func Encode(f Fields) (string, error) {
	parts := []string{
		f.TicketID,
		f.EventID,
		f.AttendeeID,
		strconv.FormatInt(f.IssuedAt, 10),
		f.HashPrefix,
	}
	for _, p := range parts {
		if strings.Contains(p, Delimiter) {
			return "", ErrDelimiterInField
		}
	}
	return strings.Join(parts, Delimiter), nil
}

// Decode parses a raw scanned string. Any shape other than exactly five fields
// with a canonical decimal timestamp yields ErrMalformedPayload.
func Decode(raw string) (Fields, error) {
	parts := strings.Split(raw, Delimiter)
	if len(parts) != fieldCount {
		return Fields{}, ErrMalformedPayload
	}

	issuedAt, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return Fields{}, ErrMalformedPayload
	}
	// the hash covers the decimal form, so only that form is accepted
	if parts[3] != strconv.FormatInt(issuedAt, 10) {
		return Fields{}, ErrMalformedPayload
	}

	return Fields{
		TicketID:   parts[0],
		EventID:    parts[1],
		AttendeeID: parts[2],
		IssuedAt:   issuedAt,
		HashPrefix: parts[4],
	}, nil
}
