package model

import (
	"time"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyCustom  Frequency = "custom"
)

// Recurrence describes how a task repeats. MaxOccurrences is stored but not enforced.
type Recurrence struct {
	Frequency      Frequency `firestore:"frequency" json:"frequency"`
	EndDate        *string   `firestore:"enddate,omitempty" json:"endDate,omitempty"`
	MaxOccurrences *int      `firestore:"maxoccurrences,omitempty" json:"maxOccurrences,omitempty"`
}

// TaskOrigin is fixed when the task is created and never re-derived.
type TaskOrigin string

const (
	OriginPersisted TaskOrigin = "persisted"
	OriginSample    TaskOrigin = "sample"
)

type Tasks struct {
	TaskID                string      `firestore:"taskid" gorm:"column:task_id;primaryKey" json:"id"`
	UserID                string      `firestore:"userid" gorm:"column:user_id;index" json:"userId"`
	Title                 string      `firestore:"title" gorm:"column:title" json:"title"`
	Description           string      `firestore:"description,omitempty" gorm:"column:description" json:"description,omitempty"`
	Tags                  []string    `firestore:"tags,omitempty" gorm:"column:tags;serializer:json" json:"tags,omitempty"`
	DueDate               string      `firestore:"duedate" gorm:"column:due_date" json:"dueDate"` // YYYY-MM-DD
	StartTime             *string     `firestore:"starttime,omitempty" gorm:"column:start_time" json:"startTime,omitempty"`
	EndTime               *string     `firestore:"endtime,omitempty" gorm:"column:end_time" json:"endTime,omitempty"`
	IsAllDay              bool        `firestore:"isallday" gorm:"column:is_all_day" json:"isAllDay"`
	Recurring             *Recurrence `firestore:"recurring,omitempty" gorm:"column:recurring;serializer:json" json:"recurring,omitempty"`
	GoogleCalendarEventID *string     `firestore:"googlecalendareventid,omitempty" gorm:"column:google_calendar_event_id" json:"googleCalendarEventId,omitempty"`
	GoogleCalendarID      *string     `firestore:"googlecalendarid,omitempty" gorm:"column:google_calendar_id" json:"googleCalendarId,omitempty"`
	Completed             bool        `firestore:"completed" gorm:"column:completed" json:"completed"`
	Origin                TaskOrigin  `firestore:"origin" gorm:"column:origin" json:"origin"`
	SyncPending           bool        `firestore:"syncpending" gorm:"column:sync_pending;index" json:"syncPending"`
	CreatedAt             time.Time   `firestore:"createdat" gorm:"column:created_at" json:"createdAt"`
	UpdatedAt             time.Time   `firestore:"updatedat" gorm:"column:updated_at" json:"updatedAt"`
}

func (Tasks) TableName() string {
	return "tasks"
}

// HasMirror reports whether an export sync has succeeded for the task.
func (t *Tasks) HasMirror() bool {
	return t.GoogleCalendarEventID != nil && t.GoogleCalendarID != nil
}

// SetMirror records both mirror fields together.
func (t *Tasks) SetMirror(eventID, calendarID string) {
	t.GoogleCalendarEventID = &eventID
	t.GoogleCalendarID = &calendarID
}

func (t *Tasks) ClearMirror() {
	t.GoogleCalendarEventID = nil
	t.GoogleCalendarID = nil
}

func (t *Tasks) IsSample() bool {
	return t.Origin == OriginSample
}
