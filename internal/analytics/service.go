// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

// Package analytics computes the per-request course analytics snapshot:
// course summaries with completion percentages and enrolment counts,
// site totals, and the formatted tail of the activity log. Nothing here
// is persisted; every call recomputes from the live tables.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/database"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/models"
)

// recentLogLimit is the number of activity-log rows included in every
// snapshot.
const recentLogLimit = 10

// ErrCourseNotFound is returned when a requested course id does not exist.
var ErrCourseNotFound = errors.New("course not found")

// Store is the slice of the database the analytics queries need.
type Store interface {
	GetCourse(ctx context.Context, courseID int64) (*models.Course, error)
	ListVisibleCourses(ctx context.Context) ([]*models.Course, error)
	CompletionCounts(ctx context.Context, courseID int64) (completed, total int, err error)
	EnrolledCount(ctx context.Context, courseID int64) (int, error)
	CountActiveUsers(ctx context.Context) (int, error)
	RecentLogEntries(ctx context.Context, limit int) ([]*models.LogEntry, error)
}

// Service answers analytics requests.
type Service struct {
	store Store
}

// NewService builds the analytics service over the given store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// GetAnalytics builds one snapshot. With courseID zero the snapshot
// covers every visible course (site course excluded) and the site-wide
// user count; with a concrete id it covers that single course and its
// enrolment count. Both shapes include the newest activity-log rows.
func (s *Service) GetAnalytics(ctx context.Context, courseID int64) (*models.AnalyticsSnapshot, error) {
	logs, err := s.recentLogs(ctx)
	if err != nil {
		return nil, err
	}

	if courseID != 0 {
		return s.singleCourse(ctx, courseID, logs)
	}
	return s.allCourses(ctx, logs)
}

func (s *Service) singleCourse(ctx context.Context, courseID int64, logs []models.LogRow) (*models.AnalyticsSnapshot, error) {
	course, err := s.store.GetCourse(ctx, courseID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrCourseNotFound, courseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load course %d: %w", courseID, err)
	}

	summary, err := s.summarize(ctx, course)
	if err != nil {
		return nil, err
	}

	return &models.AnalyticsSnapshot{
		Data:        []models.CourseSummary{*summary},
		Logs:        logs,
		TotalCourse: 1,
		TotalUser:   summary.Enrolled,
	}, nil
}

func (s *Service) allCourses(ctx context.Context, logs []models.LogRow) (*models.AnalyticsSnapshot, error) {
	courses, err := s.store.ListVisibleCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}

	summaries := make([]models.CourseSummary, 0, len(courses))
	for _, course := range courses {
		summary, err := s.summarize(ctx, course)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}

	totalUsers, err := s.store.CountActiveUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	return &models.AnalyticsSnapshot{
		Data:        summaries,
		Logs:        logs,
		TotalCourse: len(summaries),
		TotalUser:   totalUsers,
	}, nil
}

func (s *Service) summarize(ctx context.Context, course *models.Course) (*models.CourseSummary, error) {
	completed, total, err := s.store.CompletionCounts(ctx, course.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute completion for course %d: %w", course.ID, err)
	}
	enrolled, err := s.store.EnrolledCount(ctx, course.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count enrolments for course %d: %w", course.ID, err)
	}

	return &models.CourseSummary{
		ID:         course.ID,
		FullName:   course.FullName,
		ShortName:  course.ShortName,
		Completion: CompletionPercent(completed, total),
		Enrolled:   enrolled,
	}, nil
}

func (s *Service) recentLogs(ctx context.Context) ([]models.LogRow, error) {
	entries, err := s.store.RecentLogEntries(ctx, recentLogLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity log: %w", err)
	}
	return FormatLogRows(entries), nil
}

// CompletionPercent computes the completion ratio as a percentage with
// two decimals. A course with no completion slots reports zero.
func CompletionPercent(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(10000*float64(completed)/float64(total)) / 100
}
