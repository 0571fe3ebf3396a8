// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

// Package models defines the shared data structures for the BService Suite
// service: the site-owned entities read from the shared database (users,
// courses, activity log), the plugin-owned sync records, and the transient
// request/response shapes of the two RPC operations.
package models

import (
	"time"
)

// LocalUser is a snapshot of a row in the site's user directory.
// The directory is owned by the host platform; this service only reads it,
// except for the profile-update operation which applies field edits.
type LocalUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"-"` // password hash, never serialized to clients
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	City      string `json:"city"`
	Country   string `json:"country"`
	Admin     bool   `json:"-"`
	Guest     bool   `json:"-"`
	Deleted   bool   `json:"-"`
	Suspended bool   `json:"-"`
}

// FullName returns the display name used in activity log descriptions.
func (u *LocalUser) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// SyncRecord is the durable per-user marker of external delivery state.
// At most one record exists per user id. Payload is rebuilt from the current
// user snapshot on every upsert, and Synced is reset to false so that any
// edit re-arms delivery even if a stale payload was already delivered.
type SyncRecord struct {
	UserID  int64  `json:"userid"`
	Payload []byte `json:"payload"`
	Synced  bool   `json:"synced"`
}

// SyncPayload is the JSON body delivered to the external platform for a
// user create/update. Field names are part of the wire contract.
type SyncPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	URL      string `json:"url"`
}

// DeletionNotice is the one-shot message sent when a user is deleted.
// No local record backs it; if the send fails the remote side is never told.
type DeletionNotice struct {
	Username string `json:"username"`
	Deleted  bool   `json:"deleted"`
}

// EventKind identifies a user lifecycle transition observed on the site.
type EventKind string

// Lifecycle event kinds delivered by the site's event webhook. The names
// match the host platform's event identifiers.
const (
	EventUserCreated EventKind = "user_created"
	EventUserUpdated EventKind = "user_updated"
	EventUserDeleted EventKind = "user_deleted"
)

// UserLifecycleEvent is the explicit notification passed to the sync bridge.
// Deleted events carry the username so the deletion notice can be built
// without a directory lookup (the user row may already be gone).
type UserLifecycleEvent struct {
	Kind     EventKind `json:"event"`
	UserID   int64     `json:"userid"`
	Username string    `json:"username,omitempty"`
}

// Course is a row from the site's course catalog.
type Course struct {
	ID        int64  `json:"id"`
	FullName  string `json:"fullname"`
	ShortName string `json:"shortname"`
	Visible   bool   `json:"-"`
}

// CourseSummary is a course annotated with the analytics aggregates
// returned by the get_analytics operation.
type CourseSummary struct {
	ID         int64   `json:"id"`
	FullName   string  `json:"fullname"`
	ShortName  string  `json:"shortname"`
	Completion float64 `json:"completion"`
	Enrolled   int     `json:"enrolled"`
}

// LogEntry is a raw activity-log row joined with user and course names.
type LogEntry struct {
	EventName    string    `json:"eventname"`
	Action       string    `json:"action"`
	UserID       int64     `json:"userid"`
	UserFullName string    `json:"userfullname"`
	CourseID     int64     `json:"courseid"`
	CourseName   string    `json:"coursename"`
	ContextLevel int       `json:"contextlevel"`
	Component    string    `json:"component"`
	Origin       string    `json:"origin"`
	IP           string    `json:"ip"`
	Other        string    `json:"other"`
	TimeCreated  time.Time `json:"timecreated"`
}

// LogRow is a formatted activity-log row as presented to clients.
type LogRow struct {
	Course       int64  `json:"course"`
	CourseName   string `json:"coursename"`
	Time         string `json:"time"`
	UserFullName string `json:"userfullname"`
	ContextLevel int    `json:"contextlevel,omitempty"`
	Component    string `json:"component"`
	EventName    string `json:"eventname"`
	Description  string `json:"description"`
	Origin       string `json:"origin"`
	IP           string `json:"ip"`
}

// AnalyticsSnapshot is the transient result of one get_analytics call.
// It is computed per request and never persisted.
type AnalyticsSnapshot struct {
	Data        []CourseSummary `json:"data"`
	Logs        []LogRow        `json:"logs"`
	TotalCourse int             `json:"totalcourse"`
	TotalUser   int             `json:"totaluser"`
}

// ProfileEdit is one requested user profile change. Only ID is mandatory;
// nil pointer fields are left untouched by the update.
type ProfileEdit struct {
	ID        int64   `json:"id" validate:"required,gt=0"`
	Username  *string `json:"username,omitempty"`
	FirstName *string `json:"firstname,omitempty"`
	LastName  *string `json:"lastname,omitempty"`
	Email     *string `json:"email,omitempty"`
	City      *string `json:"city,omitempty"`
	Country   *string `json:"country,omitempty"`
	Suspended *bool   `json:"suspended,omitempty"`
}

// Warning describes one rejected item of a batch profile update. The batch
// itself never fails; each rejected edit contributes exactly one warning.
type Warning struct {
	Item        string `json:"item"`
	ItemID      int64  `json:"itemid"`
	WarningCode string `json:"warningcode"`
	Message     string `json:"message"`
}

// Warning codes returned by the profile update operation.
const (
	WarnInvalidUserID  = "invaliduserid"
	WarnAdminEdit      = "usernotupdatedadmin"
	WarnDeletedUser    = "usernotupdateddeleted"
	WarnGuestUser      = "usernotupdatedguest"
	WarnEmailInvalid   = "useremailinvalid"
	WarnEmailDuplicate = "useremailduplicate"
	WarnUpdateFailed   = "usernotupdated"
)
