package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "valid", input: "analyst@example.com", want: "analyst@example.com"},
		{name: "subdomain", input: "pm@mail.example.co.uk", want: "pm@mail.example.co.uk"},
		{name: "plus tag", input: "pm+aria@example.com", want: "pm+aria@example.com"},
		{name: "normalized", input: "  PM@Example.COM ", want: "pm@example.com"},
		{name: "empty", input: "   ", wantErr: ErrEmpty},
		{name: "missing at", input: "pm.example.com", wantErr: ErrInvalidEmail},
		{name: "missing tld", input: "pm@example", wantErr: ErrInvalidEmail},
		{name: "double at", input: "pm@@example.com", wantErr: ErrInvalidEmail},
		{name: "local part too long", input: strings.Repeat("a", 65) + "@example.com", wantErr: ErrStringTooLong},
		{name: "address too long", input: "a@" + strings.Repeat("b", 250) + ".com", wantErr: ErrStringTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Email(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Email(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Email(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Email(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
