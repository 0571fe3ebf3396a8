// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

// Package profile applies bulk user profile updates. Each edit runs in
// its own transaction; a failing edit rolls back, contributes exactly one
// warning, and never stops the rest of the batch.
package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/database"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/logging"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/metrics"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/models"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/validation"
)

// Caller identifies who is performing the batch update.
type Caller struct {
	UserID int64
	Admin  bool
}

// EventSink receives the lifecycle event fired after a successful edit.
// Wired to the sync bridge in production; delivery failures inside the
// sink must not fail the edit, so the sink returns nothing.
type EventSink func(ctx context.Context, ev models.UserLifecycleEvent)

// rejection aborts one edit with a warning code. Each rejection maps to
// exactly one warning in the batch response.
type rejection struct {
	code    string
	message string
}

func (r *rejection) Error() string { return r.message }

// Service applies profile edits against the shared user directory.
type Service struct {
	db                   *database.DB
	allowDuplicateEmails bool
	notify               EventSink
}

// NewService builds the profile service. notify may be nil.
func NewService(db *database.DB, allowDuplicateEmails bool, notify EventSink) *Service {
	return &Service{
		db:                   db,
		allowDuplicateEmails: allowDuplicateEmails,
		notify:               notify,
	}
}

// UpdateProfiles applies a batch of edits on behalf of the caller. The
// batch itself never fails: every rejected or failed item contributes one
// warning and processing continues. Partial success is expected.
func (s *Service) UpdateProfiles(ctx context.Context, caller Caller, edits []models.ProfileEdit) []models.Warning {
	warnings := make([]models.Warning, 0)

	for _, edit := range edits {
		if err := s.applyEdit(ctx, caller, edit); err != nil {
			warnings = append(warnings, warningFor(edit.ID, err))
			continue
		}
		metrics.RecordProfileEdit("applied")

		if s.notify != nil {
			s.notify(ctx, models.UserLifecycleEvent{
				Kind:   models.EventUserUpdated,
				UserID: edit.ID,
			})
		}
	}

	return warnings
}

// applyEdit runs the full check-and-update sequence for one item inside
// its own transaction, so concurrent edits cannot interleave with the
// email uniqueness check.
func (s *Service) applyEdit(ctx context.Context, caller Caller, edit models.ProfileEdit) error {
	return s.db.WithTx(ctx, func(tx *database.Tx) error {
		user, err := tx.GetUser(ctx, edit.ID)
		if errors.Is(err, database.ErrNotFound) {
			return &rejection{code: models.WarnInvalidUserID, message: "Invalid user ID"}
		}
		if err != nil {
			return err
		}

		// Admins may edit themselves; everyone else needs admin rights
		// to touch an admin account.
		if user.ID != caller.UserID && user.Admin && !caller.Admin {
			return &rejection{code: models.WarnAdminEdit, message: "Cannot update admin accounts"}
		}
		if user.Deleted {
			return &rejection{code: models.WarnDeletedUser, message: "User is a deleted user"}
		}
		if user.Guest {
			return &rejection{code: models.WarnGuestUser, message: "Cannot update guest account"}
		}

		if edit.Email != nil && *edit.Email != user.Email {
			if !validation.IsValidEmail(*edit.Email) {
				return &rejection{code: models.WarnEmailInvalid, message: "Invalid email address"}
			}
			if !s.allowDuplicateEmails {
				inUse, err := tx.EmailInUse(ctx, *edit.Email, user.ID)
				if err != nil {
					return err
				}
				if inUse {
					return &rejection{code: models.WarnEmailDuplicate, message: "Duplicate email address"}
				}
			}
		}

		applyFields(user, edit)
		if err := tx.UpdateUser(ctx, user); err != nil {
			return err
		}

		if edit.Suspended != nil && *edit.Suspended {
			if err := tx.DestroySessions(ctx, user.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// applyFields copies the set pointer fields onto the snapshot.
func applyFields(user *models.LocalUser, edit models.ProfileEdit) {
	if edit.Username != nil {
		user.Username = *edit.Username
	}
	if edit.FirstName != nil {
		user.FirstName = *edit.FirstName
	}
	if edit.LastName != nil {
		user.LastName = *edit.LastName
	}
	if edit.Email != nil {
		user.Email = *edit.Email
	}
	if edit.City != nil {
		user.City = *edit.City
	}
	if edit.Country != nil {
		user.Country = *edit.Country
	}
	if edit.Suspended != nil {
		user.Suspended = *edit.Suspended
	}
}

// warningFor turns a per-item failure into the batch warning shape.
func warningFor(userID int64, err error) models.Warning {
	var rej *rejection
	if errors.As(err, &rej) {
		metrics.RecordProfileEdit(rej.code)
		return models.Warning{
			Item:        "user",
			ItemID:      userID,
			WarningCode: rej.code,
			Message:     rej.message,
		}
	}

	// Unexpected failures (database errors, cancellations) still only
	// cost this one item.
	metrics.RecordProfileEdit(models.WarnUpdateFailed)
	logging.Err(err).Int64("user_id", userID).Msg("Profile edit failed")
	return models.Warning{
		Item:        "user",
		ItemID:      userID,
		WarningCode: models.WarnUpdateFailed,
		Message:     fmt.Sprintf("User update failed: %v", err),
	}
}
