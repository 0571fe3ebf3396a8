// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

package sync

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientSendSuccess(t *testing.T) {
	t.Parallel()

	var gotPath, gotOrigin, gotContentType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotOrigin = r.Header.Get("X-Origin-Url")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","id":12}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "https://lms.example.org")
	resp, err := client.Send(context.Background(), []byte(`{"username":"alice"}`))
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	if gotPath != "/api/school/sync-user" {
		t.Errorf("request path = %q, want /api/school/sync-user", gotPath)
	}
	if gotOrigin != "https://lms.example.org" {
		t.Errorf("X-Origin-Url = %q, want site URL", gotOrigin)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if string(gotBody) != `{"username":"alice"}` {
		t.Errorf("request body = %q, want payload passed through", gotBody)
	}
	if resp["status"] != "ok" {
		t.Errorf("response status = %v, want ok", resp["status"])
	}
}

func TestClientSendFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantKind FailureKind
	}{
		{
			name: "remote rejection",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "no such school", http.StatusUnprocessableEntity)
			},
			wantKind: FailureRemoteRejected,
		},
		{
			name: "malformed response body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>not json</html>"))
			},
			wantKind: FailureMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewClient(server.URL, "https://lms.example.org")
			_, err := client.Send(context.Background(), []byte(`{}`))
			if err == nil {
				t.Fatal("Send() expected error, got nil")
			}
			var sendErr *SendError
			if !errors.As(err, &sendErr) {
				t.Fatalf("Send() error type %T, want *SendError", err)
			}
			if sendErr.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", sendErr.Kind, tt.wantKind)
			}
		})
	}
}

func TestClientSendNotConfigured(t *testing.T) {
	t.Parallel()

	client := NewClient("", "https://lms.example.org")
	_, err := client.Send(context.Background(), []byte(`{}`))

	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("Send() error type %T, want *SendError", err)
	}
	if sendErr.Kind != FailureNotConfigured {
		t.Errorf("Kind = %q, want %q", sendErr.Kind, FailureNotConfigured)
	}
}

func TestClientSendTransportError(t *testing.T) {
	t.Parallel()

	// A server that is already closed refuses connections.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, "https://lms.example.org")
	_, err := client.Send(context.Background(), []byte(`{}`))

	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("Send() error type %T, want *SendError", err)
	}
	if sendErr.Kind != FailureTransport {
		t.Errorf("Kind = %q, want %q", sendErr.Kind, FailureTransport)
	}
}

func TestClientBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, "https://lms.example.org")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := client.Send(ctx, []byte(`{}`)); err == nil {
			t.Fatalf("Send() attempt %d expected error, got nil", i)
		}
	}

	// The breaker is now open; the failure is still surfaced as a
	// recoverable transport error so records stay pending.
	_, err := client.Send(ctx, []byte(`{}`))
	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("Send() error type %T, want *SendError", err)
	}
	if sendErr.Kind != FailureTransport {
		t.Errorf("Kind = %q, want %q after breaker opens", sendErr.Kind, FailureTransport)
	}
}
