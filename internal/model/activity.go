package model

import (
	"fmt"
	"time"
)

// Activity event tags. The server synthesizes the mutation events itself;
// UI-level events (role selection, CSV export) arrive from clients via
// ADD_ACTIVITY and share the same log.
const (
	EventQuestionLocked       = "question_locked"
	EventQuestionUnlocked     = "question_unlocked"
	EventQuestionUpdated      = "question_updated"
	EventQuestionDeleted      = "question_deleted"
	EventFileUploaded         = "file_uploaded"
	EventCollectionCreated    = "collection_created"
	EventCollectionDeleted    = "collection_deleted"
	EventCSVExported          = "csv_exported"
	EventLogCleared           = "log_cleared"
	EventChoiceUpdated        = "choice_updated"
	EventFeedbackImageAdded   = "feedback_image_added"
	EventFeedbackImageRemoved = "feedback_image_removed"
	EventRoleSetAdmin         = "user_role_set_admin"
	EventRoleSetUser          = "user_role_set_user"
)

// ActivityEntry is a write-once audit record. Entries are appended in
// chronological order and never mutated.
type ActivityEntry struct {
	Timestamp      string `json:"timestamp"`
	Event          string `json:"event"`
	Username       string `json:"username"`
	QuestionIndex  *int   `json:"question_index,omitempty"`
	Field          string `json:"field,omitempty"`
	Filename       string `json:"filename,omitempty"`
	QuestionCount  int    `json:"question_count,omitempty"`
	CollectionName string `json:"collectionName,omitempty"`
	Role           string `json:"role,omitempty"`
}

// NewActivityEntry stamps an entry with the given time in the ISO-8601 form
// the activity log has always used.
func NewActivityEntry(now time.Time, event, username string) ActivityEntry {
	return ActivityEntry{
		Timestamp: now.UTC().Format(time.RFC3339),
		Event:     event,
		Username:  username,
	}
}

// WithQuestionIndex attaches the question index an entry refers to.
func (e ActivityEntry) WithQuestionIndex(index int) ActivityEntry {
	e.QuestionIndex = &index
	return e
}

// FormatEvent renders the human-readable line shown in the activity panel.
func FormatEvent(e ActivityEntry) string {
	index := 0
	if e.QuestionIndex != nil {
		index = *e.QuestionIndex
	}
	switch e.Event {
	case EventRoleSetAdmin:
		return "selected Admin role"
	case EventRoleSetUser:
		return "selected User role"
	case EventFileUploaded:
		return fmt.Sprintf("uploaded: %s (%d questions)", e.Filename, e.QuestionCount)
	case EventQuestionUpdated:
		return fmt.Sprintf("updated question %d: %s", index+1, e.Field)
	case EventChoiceUpdated:
		return fmt.Sprintf("updated choice in question %d", index+1)
	case EventFeedbackImageAdded:
		return fmt.Sprintf("added image to question %d", index+1)
	case EventFeedbackImageRemoved:
		return fmt.Sprintf("removed image from question %d", index+1)
	case EventQuestionLocked:
		return fmt.Sprintf("locked question %d", index+1)
	case EventQuestionUnlocked:
		return fmt.Sprintf("unlocked question %d", index+1)
	case EventQuestionDeleted:
		return fmt.Sprintf("deleted question %d", index+1)
	case EventCSVExported:
		return "exported CSV file"
	case EventLogCleared:
		return "cleared activity log"
	case EventCollectionCreated:
		return "created new collection: " + e.CollectionName
	case EventCollectionDeleted:
		return "deleted collection: " + e.CollectionName
	default:
		return e.Event
	}
}
