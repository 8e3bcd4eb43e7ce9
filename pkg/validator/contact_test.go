package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	validator := NewContactValidator()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"Plain", "jo@example.com", "jo@example.com", nil},
		{"Trimmed", "  jo@example.com ", "jo@example.com", nil},
		{"Subdomain", "a.b@mail.example.co.uk", "a.b@mail.example.co.uk", nil},
		{"Empty", "", "", ErrEmptyEmail},
		{"Whitespace only", "   ", "", ErrEmptyEmail},
		{"No at sign", "bad", "", ErrInvalidEmail},
		{"No domain dot", "jo@example", "", ErrInvalidEmail},
		{"No local part", "@example.com", "", ErrInvalidEmail},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := validator.ValidateEmail(tc.input)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidatePhone(t *testing.T) {
	validator := NewContactValidator()

	valid := []struct {
		input    string
		expected string
	}{
		{"555-123-4567", "5551234567"},
		{"(555) 123 4567", "5551234567"},
		{"+1 555 123 4567", "+15551234567"},
		{"555.1234", "5551234"},
	}

	for _, tc := range valid {
		t.Run(tc.input, func(t *testing.T) {
			got, err := validator.ValidatePhone(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}

	_, err := validator.ValidatePhone("")
	assert.ErrorIs(t, err, ErrEmptyPhone)

	_, err = validator.ValidatePhone("12345")
	assert.ErrorIs(t, err, ErrInvalidPhone)

	_, err = validator.ValidatePhone("call me")
	assert.ErrorIs(t, err, ErrInvalidPhone)
}
