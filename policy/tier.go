package policy

import (
	"strings"
)

// Color is an RGB colour used for the ticket border and accents.
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

var (
	Gold   = Color{R: 212, G: 175, B: 55}
	Accent = Color{R: 79, G: 70, B: 229}
	Green  = Color{R: 22, G: 163, B: 74}
	Gray   = Color{R: 107, G: 114, B: 128}
)

type Tier string

const (
	TierVIP       Tier = "vip"
	TierGeneral   Tier = "general"
	TierEarlyBird Tier = "early bird"
	TierOther     Tier = ""
)

var tierColors = map[Tier]Color{
	TierVIP:       Gold,
	TierGeneral:   Accent,
	TierEarlyBird: Green,
}

// ParseTier normalizes a free-form ticket type from checkout.
// "Early-Bird", "early_bird" and "EarlyBird" all map to TierEarlyBird.
func ParseTier(ticketType string) Tier {
	s := strings.ToLower(strings.TrimSpace(ticketType))
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	s = strings.Join(strings.Fields(s), " ")

	switch s {
	case "vip":
		return TierVIP
	case "general", "general admission":
		return TierGeneral
	case "early bird", "earlybird":
		return TierEarlyBird
	default:
		return TierOther
	}
}

// BorderColor selects the border and accent colour of a ticket type.
func BorderColor(ticketType string) Color {
	if c, ok := tierColors[ParseTier(ticketType)]; ok {
		return c
	}
	return Gray
}
