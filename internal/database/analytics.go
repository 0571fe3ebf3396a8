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

// siteCourseID is the platform's front-page pseudo-course. It never
// appears in analytics listings.
const siteCourseID = 1

// GetCourse fetches one course by id, or ErrNotFound.
func (db *DB) GetCourse(ctx context.Context, courseID int64) (*models.Course, error) {
	var c models.Course
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, fullname, shortname, visible FROM courses WHERE id = ?`,
		courseID).Scan(&c.ID, &c.FullName, &c.ShortName, &c.Visible)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get course %d: %w", courseID, err)
	}
	return &c, nil
}

// ListVisibleCourses returns the visible courses excluding the site
// course, in catalog order.
func (db *DB) ListVisibleCourses(ctx context.Context) ([]*models.Course, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, fullname, shortname, visible FROM courses
		 WHERE visible = true AND id <> ?
		 ORDER BY sortorder, id`, siteCourseID)
	observe("select", "courses", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var courses []*models.Course
	for rows.Next() {
		var c models.Course
		if err := rows.Scan(&c.ID, &c.FullName, &c.ShortName, &c.Visible); err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate courses: %w", err)
	}
	return courses, nil
}

// CompletionCounts returns the completed and total completion slots of a
// course. A slot is one (tracked activity, enrolled user) pair; it counts
// as completed when a completion row with state > 0 exists.
func (db *DB) CompletionCounts(ctx context.Context, courseID int64) (completed, total int, err error) {
	start := time.Now()
	defer func() { observe("select", "activity_completions", start, err) }()

	err = db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM course_activities a
		 JOIN enrolments e ON e.course_id = a.course_id
		 WHERE a.course_id = ?`, courseID).Scan(&total)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count completion slots for course %d: %w", courseID, err)
	}

	err = db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activity_completions c
		 JOIN course_activities a ON a.id = c.activity_id
		 WHERE a.course_id = ? AND c.state > 0`, courseID).Scan(&completed)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count completions for course %d: %w", courseID, err)
	}
	return completed, total, nil
}

// EnrolledCount counts the users enrolled in a course.
func (db *DB) EnrolledCount(ctx context.Context, courseID int64) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT user_id) FROM enrolments WHERE course_id = ?`,
		courseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count enrolments for course %d: %w", courseID, err)
	}
	return count, nil
}

// RecentLogEntries returns the newest activity-log rows joined with user
// and course names, newest first.
func (db *DB) RecentLogEntries(ctx context.Context, limit int) ([]*models.LogEntry, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT l.eventname, l.action, l.userid,
		        COALESCE(u.firstname, ''), COALESCE(u.lastname, ''),
		        l.courseid, COALESCE(c.fullname, ''),
		        l.contextlevel, l.component, l.origin, l.ip, l.other, l.timecreated
		 FROM activity_log l
		 LEFT JOIN users u ON u.id = l.userid
		 LEFT JOIN courses c ON c.id = l.courseid
		 ORDER BY l.timecreated DESC
		 LIMIT ?`, limit)
	observe("select", "activity_log", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list log entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		var firstName, lastName string
		if err := rows.Scan(&e.EventName, &e.Action, &e.UserID, &firstName, &lastName,
			&e.CourseID, &e.CourseName, &e.ContextLevel, &e.Component,
			&e.Origin, &e.IP, &e.Other, &e.TimeCreated); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		u := models.LocalUser{FirstName: firstName, LastName: lastName}
		e.UserFullName = u.FullName()
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate log entries: %w", err)
	}
	return entries, nil
}
