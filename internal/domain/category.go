package domain

import (
	"fmt"
	"strings"
)

// Tier is the confidentiality tier of a category.
type Tier string

const (
	TierCommon       Tier = "common"
	TierConfidential Tier = "confidential"
	TierSignals      Tier = "signals"
)

// Direction says whether correspondence is received or sent.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Category identifies a register, formed as "<tier>_<direction>".
type Category string

const (
	CommonIncoming       Category = "common_incoming"
	CommonOutgoing       Category = "common_outgoing"
	ConfidentialIncoming Category = "confidential_incoming"
	ConfidentialOutgoing Category = "confidential_outgoing"
	SignalsIncoming      Category = "signals_incoming"
	SignalsOutgoing      Category = "signals_outgoing"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CommonIncoming,
	CommonOutgoing,
	ConfidentialIncoming,
	ConfidentialOutgoing,
	SignalsIncoming,
	SignalsOutgoing,
}

// Protocol numbering offsets. Common and confidential registers continue a
// legacy paper register that ended at 40000.
const (
	SignalsProtocolStart = 1
	LegacyProtocolStart  = 40001
	DraftStart           = 1
)

// ParseCategory validates s against the closed category set.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.TrimSpace(s))
	if !c.Valid() {
		return "", NewValidationError("category",
			fmt.Sprintf("unknown category %q: must be <common|confidential|signals>_<incoming|outgoing>", s))
	}
	return c, nil
}

// Valid reports whether c is one of the six known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Tier returns the tier part of the category.
func (c Category) Tier() Tier {
	tier, _, _ := strings.Cut(string(c), "_")
	return Tier(tier)
}

// Direction returns the direction part of the category.
func (c Category) Direction() Direction {
	_, dir, _ := strings.Cut(string(c), "_")
	return Direction(dir)
}

func (c Category) IsIncoming() bool { return c.Direction() == DirectionIncoming }
func (c Category) IsOutgoing() bool { return c.Direction() == DirectionOutgoing }

// ProtocolStart is the first protocol number issued in a fresh year.
func (c Category) ProtocolStart() int64 {
	if c.Tier() == TierSignals {
		return SignalsProtocolStart
	}
	return LegacyProtocolStart
}
