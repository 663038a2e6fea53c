package services

import (
	"time"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"mydayplanner/model"
)

// RecurrenceEngine computes the next occurrence of a recurring task. It never touches storage.
type RecurrenceEngine struct {
	log *zap.Logger
}

func NewRecurrenceEngine(log *zap.Logger) *RecurrenceEngine {
	return &RecurrenceEngine{log: log}
}

// NextOccurrence returns the successor of task, or nil when the task does not recur or
// its series has ended. The successor keeps the task's identity and time of day.
//
// Monthly rules keep the day of month and clamp it to the last day of shorter months:
// 2024-01-31 is followed by 2024-02-29, then 2024-03-29.
func (e *RecurrenceEngine) NextOccurrence(task *model.Tasks) (*model.Tasks, error) {
	if task.Recurring == nil {
		e.log.Warn("next occurrence requested for a non-recurring task", zap.String("task_id", task.TaskID))
		return nil, nil
	}

	due, err := civil.ParseDate(task.DueDate)
	if err != nil {
		return nil, &ValidationError{Field: "dueDate", Message: "must be a YYYY-MM-DD date"}
	}

	next := e.advance(task.Recurring.Frequency, due, task.TaskID)

	if task.Recurring.EndDate != nil && *task.Recurring.EndDate != "" {
		end, err := civil.ParseDate(*task.Recurring.EndDate)
		if err != nil {
			return nil, &ValidationError{Field: "recurring.endDate", Message: "must be a YYYY-MM-DD date"}
		}
		if next.After(end) {
			return nil, nil
		}
	}

	successor := cloneTask(task)
	successor.DueDate = next.String()
	successor.Completed = false
	return successor, nil
}

func (e *RecurrenceEngine) advance(freq model.Frequency, due civil.Date, taskID string) civil.Date {
	switch freq {
	case model.FrequencyDaily, model.FrequencyCustom:
		return due.AddDays(1)
	case model.FrequencyWeekly:
		return due.AddDays(7)
	case model.FrequencyMonthly:
		return addMonthClamped(due)
	default:
		e.log.Warn("unknown recurrence frequency, advancing daily",
			zap.String("task_id", taskID),
			zap.String("frequency", string(freq)),
		)
		return due.AddDays(1)
	}
}

func addMonthClamped(d civil.Date) civil.Date {
	year, month := d.Year, d.Month+1
	if month > time.December {
		year, month = year+1, time.January
	}
	day := d.Day
	if last := daysInMonth(month, year); day > last {
		day = last
	}
	return civil.Date{Year: year, Month: month, Day: day}
}

func daysInMonth(month time.Month, year int) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func cloneTask(task *model.Tasks) *model.Tasks {
	c := *task
	if task.Tags != nil {
		c.Tags = append([]string(nil), task.Tags...)
	}
	c.StartTime = cloneString(task.StartTime)
	c.EndTime = cloneString(task.EndTime)
	c.GoogleCalendarEventID = cloneString(task.GoogleCalendarEventID)
	c.GoogleCalendarID = cloneString(task.GoogleCalendarID)
	if task.Recurring != nil {
		r := *task.Recurring
		r.EndDate = cloneString(task.Recurring.EndDate)
		if task.Recurring.MaxOccurrences != nil {
			n := *task.Recurring.MaxOccurrences
			r.MaxOccurrences = &n
		}
		c.Recurring = &r
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
