// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/models"
)

// UpsertSyncRecord creates or refreshes the sync record for the user. The
// payload is rebuilt from the current snapshot and synced is reset to
// false unconditionally, so any profile edit re-arms delivery even when a
// previous payload had already been delivered.
func (db *DB) UpsertSyncRecord(ctx context.Context, user *models.LocalUser, siteURL string) error {
	payload := models.SyncPayload{
		Username: user.Username,
		Email:    user.Email,
		Password: user.Password,
		URL:      siteURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal sync payload for user %d: %w", user.ID, err)
	}

	start := time.Now()
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO user_sync (user_id, payload, synced) VALUES (?, ?, false)
		 ON CONFLICT (user_id) DO UPDATE SET payload = excluded.payload, synced = false`,
		user.ID, string(body))
	observe("upsert", "user_sync", start, err)
	if err != nil {
		return fmt.Errorf("failed to upsert sync record for user %d: %w", user.ID, err)
	}
	return nil
}

// GetSyncRecord fetches the sync record for a user, or ErrNotFound.
func (db *DB) GetSyncRecord(ctx context.Context, userID int64) (*models.SyncRecord, error) {
	var rec models.SyncRecord
	var payload string
	err := db.conn.QueryRowContext(ctx,
		`SELECT user_id, payload, synced FROM user_sync WHERE user_id = ?`,
		userID).Scan(&rec.UserID, &payload, &rec.Synced)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync record for user %d: %w", userID, err)
	}
	rec.Payload = []byte(payload)
	return &rec, nil
}

// MarkSynced flags the record as delivered. Only a successful remote
// acknowledgement should lead here.
func (db *DB) MarkSynced(ctx context.Context, userID int64) error {
	start := time.Now()
	res, err := db.conn.ExecContext(ctx,
		`UPDATE user_sync SET synced = true WHERE user_id = ?`, userID)
	observe("update", "user_sync", start, err)
	if err != nil {
		return fmt.Errorf("failed to mark user %d synced: %w", userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSyncRecord removes the record. Succeeds whether or not a row
// existed; user deletion must always clear local state.
func (db *DB) DeleteSyncRecord(ctx context.Context, userID int64) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM user_sync WHERE user_id = ?`, userID)
	observe("delete", "user_sync", start, err)
	if err != nil {
		return fmt.Errorf("failed to delete sync record for user %d: %w", userID, err)
	}
	return nil
}

// ListPendingSyncRecords returns every record awaiting delivery.
func (db *DB) ListPendingSyncRecords(ctx context.Context) ([]*models.SyncRecord, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id, payload, synced FROM user_sync
		 WHERE synced = false ORDER BY user_id`)
	observe("select", "user_sync", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending sync records: %w", err)
	}
	defer rows.Close()

	var records []*models.SyncRecord
	for rows.Next() {
		var rec models.SyncRecord
		var payload string
		if err := rows.Scan(&rec.UserID, &payload, &rec.Synced); err != nil {
			return nil, fmt.Errorf("failed to scan sync record: %w", err)
		}
		rec.Payload = []byte(payload)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sync records: %w", err)
	}
	return records, nil
}

// CountPendingSyncRecords counts records awaiting delivery.
func (db *DB) CountPendingSyncRecords(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_sync WHERE synced = false`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending sync records: %w", err)
	}
	return count, nil
}
