// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

package analytics

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/models"
)

// logTimeFormat renders timestamps the way the site presents live logs:
// "3 March 2026, 10:05:00 AM".
const logTimeFormat = "2 January 2006, 03:04:05 PM"

// descriptor produces the display name and description for one known
// event identifier.
type descriptor struct {
	name     string
	describe func(e *models.LogEntry) string
}

// eventDescriptors maps event identifiers to their presentation. Add an
// entry here to give a new event a tailored description; everything else
// falls through to the action-based rules below.
var eventDescriptors = map[string]descriptor{
	`\core\event\mycourses_viewed`: {
		name: "My courses viewed",
		describe: func(e *models.LogEntry) string {
			return fmt.Sprintf("%s has viewed their my courses page", e.UserFullName)
		},
	},
	`\core\event\webservice_function_called`: {
		name: "Web service function called",
		describe: func(e *models.LogEntry) string {
			var other struct {
				Function string `json:"function"`
			}
			// A missing or undecodable payload leaves the function blank.
			_ = json.Unmarshal([]byte(e.Other), &other)
			return fmt.Sprintf("The web service function '%s' has been called.", other.Function)
		},
	},
}

// fallbackDescription is used for events with no descriptor and no
// recognized action.
const fallbackDescription = "Event occurred"

// FormatLogRows renders raw log entries into display rows.
func FormatLogRows(entries []*models.LogEntry) []models.LogRow {
	rows := make([]models.LogRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, formatLogRow(e))
	}
	return rows
}

func formatLogRow(e *models.LogEntry) models.LogRow {
	eventName := e.Action
	var description string

	if d, ok := eventDescriptors[e.EventName]; ok {
		eventName = d.name
		description = d.describe(e)
	} else if e.Action == "viewed" {
		description = fmt.Sprintf("%s viewed %s", e.UserFullName, e.CourseName)
	} else {
		description = fallbackDescription
	}

	courseName := e.CourseName
	if e.CourseID == 0 {
		courseName = ""
	}

	return models.LogRow{
		Course:       e.CourseID,
		CourseName:   courseName,
		Time:         e.TimeCreated.Format(logTimeFormat),
		UserFullName: e.UserFullName,
		ContextLevel: e.ContextLevel,
		Component:    e.Component,
		EventName:    eventName,
		Description:  description,
		Origin:       e.Origin,
		IP:           e.IP,
	}
}
