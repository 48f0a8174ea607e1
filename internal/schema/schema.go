// Package schema validates create payloads against an embedded CUE schema
// before they reach the service.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/registry/internal/domain"
)

//go:embed registration.cue
var registrationSchema []byte

// Validator checks payload shape: field types, unknown fields, lengths and
// the entry date format. Category-dependent rules stay in the domain layer.
//
// Thread-safety: safe for concurrent use. A cue.Context is not, so every
// call holds mu while it builds and unifies values.
type Validator struct {
	mu           sync.Mutex
	ctx          *cue.Context
	registration cue.Value
	category     cue.Value
}

// NewValidator compiles the embedded schema.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(registrationSchema, cue.Filename("registration.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile registration schema: %w", err)
	}

	registration := v.LookupPath(cue.ParsePath("#Registration"))
	if !registration.Exists() {
		return nil, fmt.Errorf("registration schema: #Registration not defined")
	}
	category := v.LookupPath(cue.ParsePath("#Category"))
	if !category.Exists() {
		return nil, fmt.Errorf("registration schema: #Category not defined")
	}

	return &Validator{ctx: ctx, registration: registration, category: category}, nil
}

// ValidateCategory checks a raw category identifier.
func (v *Validator) ValidateCategory(category string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.category.Unify(v.ctx.Encode(category)).Validate(cue.Concrete(true)); err != nil {
		return domain.NewValidationError("category", fmt.Sprintf("unknown category %q", category))
	}
	return nil
}

// ValidatePayload checks a JSON create payload and decodes it.
func (v *Validator) ValidatePayload(data []byte) (domain.RegistrationInput, error) {
	if !json.Valid(data) {
		return domain.RegistrationInput{}, domain.NewValidationError("", "payload is not valid JSON")
	}

	if key := duplicateKey(data); key != "" {
		return domain.RegistrationInput{}, domain.NewValidationError(key, fmt.Sprintf("duplicate field %q", key))
	}

	if err := v.check(data); err != nil {
		return domain.RegistrationInput{}, err
	}

	var in domain.RegistrationInput
	if err := json.Unmarshal(data, &in); err != nil {
		return domain.RegistrationInput{}, domain.NewValidationError("", err.Error())
	}
	return in, nil
}

func (v *Validator) check(data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	payload := v.ctx.CompileBytes(data, cue.Filename("payload.json"))
	if err := payload.Err(); err != nil {
		return toValidationError(err)
	}
	if err := v.registration.Unify(payload).Validate(cue.Concrete(true)); err != nil {
		return toValidationError(err)
	}
	return nil
}

// duplicateKey returns the first top-level key that appears twice in a JSON
// object, or "" when there is none or data is not an object.
func duplicateKey(data []byte) string {
	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return ""
	}

	seen := map[string]bool{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		key, _ := tok.(string)
		if seen[key] {
			return key
		}
		seen[key] = true

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return ""
		}
	}
	return ""
}

// toValidationError reports the first CUE error against the payload field
// it concerns.
func toValidationError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return domain.NewValidationError("", err.Error())
	}

	first := errs[0]
	var field string
	for _, p := range first.Path() {
		if !strings.HasPrefix(p, "#") {
			field = p
			break
		}
	}
	format, args := first.Msg()
	return domain.NewValidationError(field, fmt.Sprintf(format, args...))
}
