// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/logging"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/metrics"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/models"
)

// ErrUnknownEvent is returned for lifecycle events the bridge does not
// recognize.
var ErrUnknownEvent = errors.New("unknown user lifecycle event")

// Bridge translates user lifecycle events into sync actions. Events
// arrive from two sources: the site's webhook and the profile service's
// in-process notifications after successful edits.
type Bridge struct {
	manager *Manager
	db      DBInterface
	client  RemoteClient
}

// NewBridge wires the bridge to the reconciler and its collaborators.
func NewBridge(manager *Manager, db DBInterface, client RemoteClient) *Bridge {
	return &Bridge{
		manager: manager,
		db:      db,
		client:  client,
	}
}

// HandleUserEvent processes one lifecycle event.
//
// Created and updated events refresh the user's record and make one
// best-effort delivery attempt; a failed attempt leaves the record
// pending, so the event is never lost. Deleted events remove the local
// record unconditionally and then send a one-shot deletion notice: if the
// notice fails the remote side is never told, since no record remains to
// retry from. The failure is logged and counted.
func (b *Bridge) HandleUserEvent(ctx context.Context, ev models.UserLifecycleEvent) error {
	switch ev.Kind {
	case models.EventUserCreated, models.EventUserUpdated:
		delivered := b.manager.ReconcileOne(ctx, ev.UserID)
		logging.Debug().
			Str("event", string(ev.Kind)).
			Int64("user_id", ev.UserID).
			Bool("delivered", delivered).
			Msg("User lifecycle event reconciled")
		return nil

	case models.EventUserDeleted:
		return b.handleDeleted(ctx, ev)

	default:
		return fmt.Errorf("%w %q", ErrUnknownEvent, ev.Kind)
	}
}

func (b *Bridge) handleDeleted(ctx context.Context, ev models.UserLifecycleEvent) error {
	// Local cleanup happens first and unconditionally; delivery state for
	// a deleted user is meaningless.
	if err := b.db.DeleteSyncRecord(ctx, ev.UserID); err != nil {
		return fmt.Errorf("failed to drop sync record for deleted user %d: %w", ev.UserID, err)
	}

	if ev.Username == "" {
		logging.Warn().
			Int64("user_id", ev.UserID).
			Msg("Deletion event without username, cannot notify platform")
		return nil
	}

	notice, err := json.Marshal(models.DeletionNotice{
		Username: ev.Username,
		Deleted:  true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal deletion notice for %q: %w", ev.Username, err)
	}

	if _, err := b.client.Send(ctx, notice); err != nil {
		// Fire-and-forget: nothing backs the notice, so the failure is
		// dropped after logging.
		metrics.RecordDeletionNotice("failed")
		logging.Warn().
			Err(err).
			Int64("user_id", ev.UserID).
			Str("username", ev.Username).
			Msg("Deletion notice failed, platform not informed")
		return nil
	}

	metrics.RecordDeletionNotice("success")
	logging.Info().
		Int64("user_id", ev.UserID).
		Str("username", ev.Username).
		Msg("Deletion notice delivered")
	return nil
}
