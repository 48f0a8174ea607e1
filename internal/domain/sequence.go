package domain

import (
	"fmt"
	"time"
)

// SequenceKind distinguishes the two numbering series.
type SequenceKind string

const (
	// SequenceProtocol numbers every registration, per category and year.
	SequenceProtocol SequenceKind = "protocol"

	// SequenceDraft numbers outgoing registrations, per category, never reset.
	SequenceDraft SequenceKind = "draft"
)

// SequenceKey identifies one counter. Year is zero for unscoped counters.
type SequenceKey struct {
	Kind     SequenceKind `json:"kind"`
	Category Category     `json:"category"`
	Year     int          `json:"year,omitempty"`
}

// ProtocolKey returns the protocol counter key for a category and year.
func ProtocolKey(c Category, year int) SequenceKey {
	return SequenceKey{Kind: SequenceProtocol, Category: c, Year: year}
}

// DraftKey returns the draft counter key for an outgoing category.
func DraftKey(c Category) SequenceKey {
	return SequenceKey{Kind: SequenceDraft, Category: c}
}

// Start returns the value the counter hands out on its first allocation.
func (k SequenceKey) Start() int64 {
	if k.Kind == SequenceProtocol {
		return k.Category.ProtocolStart()
	}
	return DraftStart
}

// Validate checks the key is well formed before it reaches storage.
func (k SequenceKey) Validate() error {
	if !k.Category.Valid() {
		return NewValidationError("category", fmt.Sprintf("unknown category %q", k.Category))
	}
	switch k.Kind {
	case SequenceProtocol:
		if k.Year < 1 {
			return NewValidationError("year", "protocol sequences are scoped by a calendar year")
		}
	case SequenceDraft:
		if !k.Category.IsOutgoing() {
			return NewValidationError("category", "draft numbers exist only for outgoing categories")
		}
		if k.Year != 0 {
			return NewValidationError("year", "draft sequences are not scoped by year")
		}
	default:
		return NewValidationError("kind", fmt.Sprintf("unknown sequence kind %q", k.Kind))
	}
	return nil
}

func (k SequenceKey) String() string {
	if k.Year == 0 {
		return fmt.Sprintf("%s/%s", k.Kind, k.Category)
	}
	return fmt.Sprintf("%s/%s/%d", k.Kind, k.Category, k.Year)
}

// SequenceCounter is the persisted state of one counter.
type SequenceCounter struct {
	SequenceKey
	NextValue   int64     `json:"nextValue"`
	LastUpdated time.Time `json:"lastUpdated"`
}
