package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/registry/internal/domain"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	require.NoError(t, err)
	return v
}

func TestValidatePayload_Valid(t *testing.T) {
	v := newValidator(t)

	in, err := v.ValidatePayload([]byte(`{
		"issuer": "Υπουργείο",
		"referenceNumber": "Φ.100/2",
		"subject": "Subject",
		"offices": ["OFF-1", "OFF-2"],
		"entryDate": "2025-10-01"
	}`))
	require.NoError(t, err)
	assert.Equal(t, domain.RegistrationInput{
		Issuer:          "Υπουργείο",
		ReferenceNumber: "Φ.100/2",
		Subject:         "Subject",
		Offices:         []string{"OFF-1", "OFF-2"},
		EntryDate:       "2025-10-01",
	}, in)
}

func TestValidatePayload_NullOptionals(t *testing.T) {
	v := newValidator(t)

	in, err := v.ValidatePayload([]byte(`{
		"issuer": "a", "referenceNumber": "b", "subject": "c",
		"recipient": null, "offices": null, "entryDate": null
	}`))
	require.NoError(t, err)
	assert.Empty(t, in.Recipient)
	assert.Nil(t, in.Offices)
}

func TestValidatePayload_MissingRequired(t *testing.T) {
	v := newValidator(t)

	_, err := v.ValidatePayload([]byte(`{"referenceNumber": "b", "subject": "c"}`))
	require.Error(t, err)

	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeValidation, derr.Code)
	assert.Equal(t, "issuer", derr.Field)
}

func TestValidatePayload_Oversize(t *testing.T) {
	v := newValidator(t)

	long := strings.Repeat("α", 256)
	_, err := v.ValidatePayload([]byte(`{"issuer": "a", "referenceNumber": "b", "subject": "` + long + `"}`))
	require.Error(t, err)

	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "subject", derr.Field)
}

func TestValidatePayload_ExactlyMaxLength(t *testing.T) {
	v := newValidator(t)

	exact := strings.Repeat("α", 255)
	_, err := v.ValidatePayload([]byte(`{"issuer": "a", "referenceNumber": "b", "subject": "` + exact + `"}`))
	assert.NoError(t, err, "the limit counts characters, not bytes")
}

func TestValidatePayload_Rejects(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `issuer: "a"`},
		{"array", `[]`},
		{"unknown field", `{"issuer": "a", "referenceNumber": "b", "subject": "c", "priority": 1}`},
		{"wrong type", `{"issuer": 7, "referenceNumber": "b", "subject": "c"}`},
		{"offices not a list", `{"issuer": "a", "referenceNumber": "b", "subject": "c", "offices": "OFF-1"}`},
		{"comma in office", `{"issuer": "a", "referenceNumber": "b", "subject": "c", "offices": ["A,B"]}`},
		{"bad date", `{"issuer": "a", "referenceNumber": "b", "subject": "c", "entryDate": "01/10/2025"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidatePayload([]byte(tt.payload))
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err), "got %v", err)
		})
	}
}

func TestValidatePayload_DuplicateField(t *testing.T) {
	v := newValidator(t)

	for _, payload := range []string{
		`{"issuer": "A", "issuer": "B", "referenceNumber": "b", "subject": "c"}`,
		`{"issuer": "A", "referenceNumber": "b", "subject": "c", "issuer": "A"}`,
	} {
		_, err := v.ValidatePayload([]byte(payload))
		require.Error(t, err)

		var derr *domain.Error
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, domain.ErrCodeValidation, derr.Code)
		assert.Equal(t, "issuer", derr.Field)
		assert.Contains(t, derr.Message, "duplicate field")
	}
}

func TestValidateCategory(t *testing.T) {
	v := newValidator(t)

	for _, c := range domain.Categories {
		assert.NoError(t, v.ValidateCategory(string(c)))
	}
	for _, bad := range []string{"", "common", "secret_incoming", "common_incoming "} {
		assert.True(t, domain.IsValidation(v.ValidateCategory(bad)), bad)
	}
}
