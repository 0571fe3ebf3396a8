// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

// Package auth issues and validates the capability tokens that guard the
// HTTP API. Tokens are HS256-signed JWTs carrying the caller's site user
// id, admin flag and granted capabilities; the API middleware checks the
// route's required capability before any handler runs.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Capabilities understood by the API. They mirror the host platform's
// permission names for this plugin.
const (
	CapView          = "bservicesuite:view"
	CapUpdateProfile = "bservicesuite:updateprofile"
	CapEvents        = "bservicesuite:events"
)

// Claims are the JWT claims carried by a capability token.
type Claims struct {
	UserID       int64    `json:"uid"`
	Admin        bool     `json:"admin"`
	Capabilities []string `json:"caps"`
	jwt.RegisteredClaims
}

// HasCapability reports whether the token grants the named capability.
// Admin tokens implicitly hold every capability.
func (c *Claims) HasCapability(cap string) bool {
	if c.Admin {
		return true
	}
	for _, granted := range c.Capabilities {
		if granted == cap {
			return true
		}
	}
	return false
}

// JWTManager creates and validates capability tokens.
type JWTManager struct {
	secret  []byte
	timeout time.Duration
}

// NewJWTManager returns a manager signing with the given secret. The
// secret length is enforced by config validation before this is called.
func NewJWTManager(secret string, timeout time.Duration) (*JWTManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required but was empty")
	}
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}
	return &JWTManager{
		secret:  []byte(secret),
		timeout: timeout,
	}, nil
}

// GenerateToken creates a signed token for the given caller.
func (m *JWTManager) GenerateToken(userID int64, admin bool, capabilities []string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:       userID,
		Admin:        admin,
		Capabilities: capabilities,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.timeout)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signedToken, nil
}

// ValidateToken verifies the signature, algorithm and time claims of a
// token and returns its claims. Rejecting non-HMAC algorithms up front
// prevents algorithm confusion.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
