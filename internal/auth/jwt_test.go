// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestGenerateAndValidateToken(t *testing.T) {
	t.Parallel()

	m, err := NewJWTManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager() error: %v", err)
	}

	token, err := m.GenerateToken(42, false, []string{CapView, CapEvents})
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Admin {
		t.Error("Admin = true, want false")
	}
	if !claims.HasCapability(CapView) {
		t.Error("HasCapability(CapView) = false, want true")
	}
	if claims.HasCapability(CapUpdateProfile) {
		t.Error("HasCapability(CapUpdateProfile) = true, want false")
	}
}

func TestNewJWTManagerRejectsEmptySecret(t *testing.T) {
	t.Parallel()

	if _, err := NewJWTManager("", time.Hour); err == nil {
		t.Fatal("NewJWTManager(\"\") expected error, got nil")
	}
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	t.Parallel()

	m, err := NewJWTManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager() error: %v", err)
	}
	other, err := NewJWTManager(strings.Repeat("x", 32), time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager() error: %v", err)
	}

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				tok, err := other.GenerateToken(1, false, nil)
				if err != nil {
					t.Fatalf("GenerateToken() error: %v", err)
				}
				return tok
			},
		},
		{
			name: "garbage token",
			token: func(t *testing.T) string {
				return "not.a.token"
			},
		},
		{
			name: "expired token",
			token: func(t *testing.T) string {
				claims := &Claims{
					UserID: 1,
					RegisteredClaims: jwt.RegisteredClaims{
						ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
						IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
					},
				}
				tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
				if err != nil {
					t.Fatalf("signing expired token: %v", err)
				}
				return tok
			},
		},
		{
			name: "unsigned algorithm",
			token: func(t *testing.T) string {
				claims := &Claims{UserID: 1}
				tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
				if err != nil {
					t.Fatalf("signing none token: %v", err)
				}
				return tok
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := m.ValidateToken(tt.token(t)); err == nil {
				t.Error("ValidateToken() expected error, got nil")
			}
		})
	}
}

func TestAdminImpliesAllCapabilities(t *testing.T) {
	t.Parallel()

	claims := &Claims{Admin: true}
	for _, cap := range []string{CapView, CapUpdateProfile, CapEvents} {
		if !claims.HasCapability(cap) {
			t.Errorf("admin HasCapability(%q) = false, want true", cap)
		}
	}
}
