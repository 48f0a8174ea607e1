package domain

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxFieldLength bounds every free-text field, in characters.
const MaxFieldLength = 255

// RegistrationInput is the caller-supplied part of a new registration.
type RegistrationInput struct {
	Issuer          string   `json:"issuer"`
	ReferenceNumber string   `json:"referenceNumber"`
	Subject         string   `json:"subject"`
	Recipient       string   `json:"recipient,omitempty"`
	Offices         []string `json:"offices,omitempty"`
	EntryDate       string   `json:"entryDate,omitempty"` // defaults to today
}

// NormalizeText trims surrounding whitespace and puts s in Unicode NFC, so
// the same Greek text typed with precomposed or combining accents is stored
// identically.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Normalize returns a copy of in with every text field normalized and blank
// offices dropped.
func (in RegistrationInput) Normalize() RegistrationInput {
	out := RegistrationInput{
		Issuer:          NormalizeText(in.Issuer),
		ReferenceNumber: NormalizeText(in.ReferenceNumber),
		Subject:         NormalizeText(in.Subject),
		Recipient:       NormalizeText(in.Recipient),
		EntryDate:       strings.TrimSpace(in.EntryDate),
	}
	for _, office := range in.Offices {
		if o := NormalizeText(office); o != "" {
			out.Offices = append(out.Offices, o)
		}
	}
	return out
}

// Validate checks in against the rules for category c. It expects a
// normalized input and returns the first violation found.
func (in RegistrationInput) Validate(c Category) error {
	if !c.Valid() {
		return NewValidationError("category", "unknown category "+string(c))
	}

	required := []struct {
		field string
		value string
	}{
		{"issuer", in.Issuer},
		{"referenceNumber", in.ReferenceNumber},
		{"subject", in.Subject},
	}
	for _, r := range required {
		if r.value == "" {
			return NewValidationError(r.field, r.field+" is required")
		}
		if utf8.RuneCountInString(r.value) > MaxFieldLength {
			return NewValidationError(r.field, r.field+" exceeds 255 characters")
		}
	}
	if utf8.RuneCountInString(in.Recipient) > MaxFieldLength {
		return NewValidationError("recipient", "recipient exceeds 255 characters")
	}

	if c.IsIncoming() && len(in.Offices) == 0 {
		return NewValidationError("offices", "offices required for incoming categories")
	}
	if c.IsOutgoing() && in.Recipient == "" {
		return NewValidationError("recipient", "recipient required for outgoing categories")
	}
	for _, office := range in.Offices {
		if strings.Contains(office, ",") {
			return NewValidationError("offices", "office codes must not contain commas")
		}
	}

	if in.EntryDate != "" {
		if _, err := ParseDate(in.EntryDate); err != nil {
			return err
		}
	}
	return nil
}
