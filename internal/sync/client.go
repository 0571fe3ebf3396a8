// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

// Package sync pushes local user records to the external platform. The
// Client performs single delivery attempts, the Manager reconciles the
// durable sync records against the remote side, and the Bridge translates
// user lifecycle events into sync actions.
package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/logging"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/metrics"
)

// syncUserPath is the remote endpoint receiving user records. The path is
// part of the wire contract with the platform.
const syncUserPath = "/api/school/sync-user"

// originHeader carries the local site URL so the platform can attribute
// incoming records to their source installation.
const originHeader = "X-Origin-Url"

const (
	connectTimeout = 5 * time.Second
	totalTimeout   = 10 * time.Second
)

// FailureKind classifies a delivery failure. Every kind is recoverable:
// the record stays pending and a later sweep retries it.
type FailureKind string

const (
	// FailureNotConfigured: no platform URL is configured. Detected
	// before any network I/O.
	FailureNotConfigured FailureKind = "not_configured"

	// FailureTransport: the request never produced an HTTP response
	// (dial, TLS, timeout, open circuit breaker).
	FailureTransport FailureKind = "transport_error"

	// FailureRemoteRejected: the platform answered outside [200, 300).
	FailureRemoteRejected FailureKind = "remote_rejected"

	// FailureMalformedResponse: a 2xx response with an undecodable body.
	FailureMalformedResponse FailureKind = "malformed_response"
)

// deliverySuccess is the metric label for an acknowledged delivery.
const deliverySuccess = "success"

// SendError is a typed delivery failure.
type SendError struct {
	Kind   FailureKind
	Status int // HTTP status, when a response was received
	Err    error
}

func (e *SendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("sync send failed (%s, status %d): %v", e.Kind, e.Status, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("sync send failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("sync send failed (%s)", e.Kind)
}

func (e *SendError) Unwrap() error { return e.Err }

// Client delivers payloads to the platform. A zero platform URL disables
// delivery: Send fails fast with FailureNotConfigured and no I/O happens.
type Client struct {
	platformURL string
	siteURL     string
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker[map[string]any]
}

// NewClient builds a client for the given platform. The circuit breaker
// opens after five consecutive failures and half-opens after 30 seconds,
// so a dead platform does not absorb a full timeout per pending record
// on every sweep.
func NewClient(platformURL, siteURL string) *Client {
	breaker := gobreaker.NewCircuitBreaker[map[string]any](gobreaker.Settings{
		Name:        "platform-sync",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Sync circuit breaker state changed")
		},
	})

	return &Client{
		platformURL: strings.TrimRight(platformURL, "/"),
		siteURL:     siteURL,
		httpClient: &http.Client{
			Timeout: totalTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: connectTimeout,
				}).DialContext,
				TLSHandshakeTimeout: connectTimeout,
			},
		},
		breaker: breaker,
	}
}

// Send delivers one JSON payload to the platform's sync-user endpoint and
// returns the decoded response body. The client never retries; callers
// keep the record pending and a later sweep replays it.
func (c *Client) Send(ctx context.Context, payload []byte) (map[string]any, error) {
	if c.platformURL == "" {
		logging.Debug().Msg("Platform URL not configured, skipping user sync delivery")
		metrics.RecordDelivery(string(FailureNotConfigured))
		return nil, &SendError{Kind: FailureNotConfigured}
	}

	result, err := c.breaker.Execute(func() (map[string]any, error) {
		return c.post(ctx, payload)
	})
	if err != nil {
		var sendErr *SendError
		if !errors.As(err, &sendErr) {
			// Breaker-originated errors (open state, too many half-open
			// probes) never reached the network.
			sendErr = &SendError{Kind: FailureTransport, Err: err}
		}
		metrics.RecordDelivery(string(sendErr.Kind))
		return nil, sendErr
	}

	metrics.RecordDelivery(deliverySuccess)
	return result, nil
}

func (c *Client) post(ctx context.Context, payload []byte) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.platformURL+syncUserPath, bytes.NewReader(payload))
	if err != nil {
		return nil, &SendError{Kind: FailureTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(originHeader, c.siteURL)

	// Correlation id for matching our logs with the platform's.
	deliveryID := uuid.NewString()
	req.Header.Set("X-Request-Id", deliveryID)
	logging.Debug().Str("delivery_id", deliveryID).Msg("Delivering user sync payload")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &SendError{Kind: FailureTransport, Err: err}
	}
	defer resp.Body.Close()

	// 1MB cap; the ack body is expected to be tiny.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &SendError{Kind: FailureTransport, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &SendError{
			Kind:   FailureRemoteRejected,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("platform rejected sync request: %s", strings.TrimSpace(string(body))),
		}
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &SendError{
			Kind:   FailureMalformedResponse,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("undecodable platform response: %w", err),
		}
	}
	return decoded, nil
}
