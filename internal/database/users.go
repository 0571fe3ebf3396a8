// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/models"
)

const userColumns = `id, username, email, password, firstname, lastname,
	city, country, admin, guest, deleted, suspended`

func scanUser(row *sql.Row) (*models.LocalUser, error) {
	var u models.LocalUser
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.FirstName,
		&u.LastName, &u.City, &u.Country, &u.Admin, &u.Guest, &u.Deleted, &u.Suspended)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

func getUser(ctx context.Context, q queryer, userID int64) (*models.LocalUser, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, userID)
	return scanUser(row)
}

// emailInUse reports whether another non-deleted account already uses the
// email. The comparison is case-insensitive.
func emailInUse(ctx context.Context, q queryer, email string, excludeUserID int64) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users
		 WHERE lower(email) = lower(?) AND deleted = false AND id <> ?`,
		email, excludeUserID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check email usage: %w", err)
	}
	return count > 0, nil
}

// GetUser fetches one user snapshot by id. Returns ErrNotFound when the
// row does not exist.
func (db *DB) GetUser(ctx context.Context, userID int64) (*models.LocalUser, error) {
	start := time.Now()
	u, err := getUser(ctx, db.conn, userID)
	if !errors.Is(err, ErrNotFound) {
		observe("select", "users", start, err)
	}
	return u, err
}

// EmailInUse reports whether a different non-deleted user holds the email.
func (db *DB) EmailInUse(ctx context.Context, email string, excludeUserID int64) (bool, error) {
	return emailInUse(ctx, db.conn, email, excludeUserID)
}

// CountActiveUsers counts users that are not deleted.
func (db *DB) CountActiveUsers(ctx context.Context) (int, error) {
	start := time.Now()
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE deleted = false`).Scan(&count)
	observe("count", "users", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// ListUsersWithoutSyncRecord returns the non-deleted users that have no
// row in user_sync yet. The reconciler backfills these before replaying
// pending records.
func (db *DB) ListUsersWithoutSyncRecord(ctx context.Context) ([]*models.LocalUser, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+`
		 FROM users u
		 LEFT JOIN user_sync s ON s.user_id = u.id
		 WHERE u.deleted = false AND s.user_id IS NULL
		 ORDER BY u.id`)
	observe("select", "users", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsynced users: %w", err)
	}
	defer rows.Close()

	var users []*models.LocalUser
	for rows.Next() {
		var u models.LocalUser
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.FirstName,
			&u.LastName, &u.City, &u.Country, &u.Admin, &u.Guest, &u.Deleted, &u.Suspended); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// GetUser fetches one user inside the transaction.
func (t *Tx) GetUser(ctx context.Context, userID int64) (*models.LocalUser, error) {
	return getUser(ctx, t.tx, userID)
}

// EmailInUse checks email uniqueness inside the transaction, so a
// concurrent edit in the same batch cannot slip past the check.
func (t *Tx) EmailInUse(ctx context.Context, email string, excludeUserID int64) (bool, error) {
	return emailInUse(ctx, t.tx, email, excludeUserID)
}

// UpdateUser writes the editable profile fields of the user row.
func (t *Tx) UpdateUser(ctx context.Context, u *models.LocalUser) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE users
		 SET username = ?, email = ?, firstname = ?, lastname = ?,
		     city = ?, country = ?, suspended = ?
		 WHERE id = ?`,
		u.Username, u.Email, u.FirstName, u.LastName,
		u.City, u.Country, u.Suspended, u.ID)
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", u.ID, err)
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

// DestroySessions removes every active session of the user. Called when
// an edit flips the suspended flag on.
func (t *Tx) DestroySessions(ctx context.Context, userID int64) error {
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to destroy sessions for user %d: %w", userID, err)
	}
	return nil
}
