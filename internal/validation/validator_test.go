// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

package validation

import (
	"strings"
	"testing"
)

type sampleRequest struct {
	ID    int64  `validate:"required,gt=0"`
	Email string `validate:"omitempty,email"`
	Limit int    `validate:"min=1,max=100"`
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		req       sampleRequest
		wantErr   bool
		wantField string
	}{
		{
			name: "valid request passes",
			req:  sampleRequest{ID: 7, Email: "user@example.org", Limit: 10},
		},
		{
			name: "empty email allowed by omitempty",
			req:  sampleRequest{ID: 7, Limit: 10},
		},
		{
			name:      "missing id fails required",
			req:       sampleRequest{Limit: 10},
			wantErr:   true,
			wantField: "ID",
		},
		{
			name:      "bad email fails",
			req:       sampleRequest{ID: 7, Email: "not-an-email", Limit: 10},
			wantErr:   true,
			wantField: "Email",
		},
		{
			name:      "limit over max fails",
			req:       sampleRequest{ID: 7, Limit: 500},
			wantErr:   true,
			wantField: "Limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			verr := ValidateStruct(&tt.req)
			if !tt.wantErr {
				if verr != nil {
					t.Fatalf("ValidateStruct() unexpected error: %v", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("ValidateStruct() expected error, got nil")
			}
			found := false
			for _, fe := range verr.Errors() {
				if fe.Field() == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("ValidateStruct() errors %v missing field %q", verr, tt.wantField)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	t.Parallel()

	t.Run("single failure carries field details", func(t *testing.T) {
		t.Parallel()

		verr := ValidateStruct(&sampleRequest{Limit: 10})
		if verr == nil {
			t.Fatal("expected validation error")
		}
		apiErr := verr.ToAPIError()
		if apiErr.Code != "VALIDATION_ERROR" {
			t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
		}
		if apiErr.Details["field"] != "ID" {
			t.Errorf("Details[field] = %v, want ID", apiErr.Details["field"])
		}
	})

	t.Run("multiple failures list all fields", func(t *testing.T) {
		t.Parallel()

		verr := ValidateStruct(&sampleRequest{Email: "bad", Limit: 0})
		if verr == nil {
			t.Fatal("expected validation error")
		}
		apiErr := verr.ToAPIError()
		if !strings.Contains(apiErr.Message, ";") {
			t.Errorf("Message = %q, want multiple joined messages", apiErr.Message)
		}
		fields, ok := apiErr.Details["fields"].([]map[string]interface{})
		if !ok {
			t.Fatalf("Details[fields] has type %T, want slice", apiErr.Details["fields"])
		}
		if len(fields) < 2 {
			t.Errorf("got %d field entries, want at least 2", len(fields))
		}
	})
}

func TestIsValidEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		email string
		want  bool
	}{
		{"user@example.org", true},
		{"first.last+tag@sub.example.co", true},
		{"", false},
		{"no-at-sign", false},
		{"user@", false},
		{"@example.org", false},
	}
	for _, tt := range tests {
		if got := IsValidEmail(tt.email); got != tt.want {
			t.Errorf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}
