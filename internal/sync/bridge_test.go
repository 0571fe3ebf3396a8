// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

package sync

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/models"
)

func newTestBridge(db *fakeDB, client *fakeClient) *Bridge {
	m := NewManager(db, client, "https://lms.example.org", time.Minute)
	return NewBridge(m, db, client)
}

func TestBridgeCreatedAndUpdatedEvents(t *testing.T) {
	t.Parallel()

	db := newFakeDB()
	db.addUser(&models.LocalUser{ID: 3, Username: "dave", Email: "dave@example.org"})
	client := &fakeClient{}
	bridge := newTestBridge(db, client)
	ctx := context.Background()

	err := bridge.HandleUserEvent(ctx, models.UserLifecycleEvent{
		Kind:   models.EventUserCreated,
		UserID: 3,
	})
	if err != nil {
		t.Fatalf("HandleUserEvent(created) error: %v", err)
	}
	if rec := db.record(3); rec == nil || !rec.Synced {
		t.Errorf("record after created event = %+v, want synced", rec)
	}

	// An update with the remote down leaves the refreshed record pending
	// instead of surfacing an error.
	client.mu.Lock()
	client.failAll = true
	client.mu.Unlock()

	err = bridge.HandleUserEvent(ctx, models.UserLifecycleEvent{
		Kind:   models.EventUserUpdated,
		UserID: 3,
	})
	if err != nil {
		t.Fatalf("HandleUserEvent(updated) error: %v", err)
	}
	if rec := db.record(3); rec == nil || rec.Synced {
		t.Errorf("record after failed update delivery = %+v, want pending", rec)
	}
}

func TestBridgeDeletedEvent(t *testing.T) {
	t.Parallel()

	db := newFakeDB()
	user := &models.LocalUser{ID: 4, Username: "erin", Email: "erin@example.org"}
	db.addUser(user)
	if err := db.UpsertSyncRecord(context.Background(), user, "https://lms.example.org"); err != nil {
		t.Fatalf("seeding sync record: %v", err)
	}

	client := &fakeClient{}
	bridge := newTestBridge(db, client)

	err := bridge.HandleUserEvent(context.Background(), models.UserLifecycleEvent{
		Kind:     models.EventUserDeleted,
		UserID:   4,
		Username: "erin",
	})
	if err != nil {
		t.Fatalf("HandleUserEvent(deleted) error: %v", err)
	}

	if rec := db.record(4); rec != nil {
		t.Errorf("record after deleted event = %+v, want removed", rec)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.payloads) != 1 {
		t.Fatalf("client sent %d payloads, want 1 deletion notice", len(client.payloads))
	}
	var notice models.DeletionNotice
	if err := json.Unmarshal(client.payloads[0], &notice); err != nil {
		t.Fatalf("unmarshal notice: %v", err)
	}
	if notice.Username != "erin" || !notice.Deleted {
		t.Errorf("notice = %+v, want {erin true}", notice)
	}
}

func TestBridgeDeletedEventNoticeFailureIsDropped(t *testing.T) {
	t.Parallel()

	db := newFakeDB()
	user := &models.LocalUser{ID: 5, Username: "frank", Email: "frank@example.org"}
	db.addUser(user)
	if err := db.UpsertSyncRecord(context.Background(), user, "https://lms.example.org"); err != nil {
		t.Fatalf("seeding sync record: %v", err)
	}

	client := &fakeClient{failAll: true}
	bridge := newTestBridge(db, client)

	err := bridge.HandleUserEvent(context.Background(), models.UserLifecycleEvent{
		Kind:     models.EventUserDeleted,
		UserID:   5,
		Username: "frank",
	})
	if err != nil {
		t.Fatalf("HandleUserEvent(deleted) error: %v, want notice failure swallowed", err)
	}

	// Local cleanup always happens, even when the notice cannot be sent.
	if rec := db.record(5); rec != nil {
		t.Errorf("record = %+v, want removed despite notice failure", rec)
	}
}

func TestBridgeUnknownEvent(t *testing.T) {
	t.Parallel()

	bridge := newTestBridge(newFakeDB(), &fakeClient{})

	err := bridge.HandleUserEvent(context.Background(), models.UserLifecycleEvent{
		Kind:   "user_promoted",
		UserID: 1,
	})
	if err == nil {
		t.Fatal("HandleUserEvent(unknown) expected error, got nil")
	}
}
