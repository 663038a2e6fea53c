package dto

import (
	"mydayplanner/model"
	"mydayplanner/services"
)

type TaskRequest struct {
	Title       string            `json:"title" binding:"required,max=200"`
	Description string            `json:"description" binding:"max=2000"`
	Tags        []string          `json:"tags" binding:"omitempty,max=20,dive,max=50"`
	DueDate     string            `json:"dueDate" binding:"required,calendardate"`
	StartTime   *string           `json:"startTime" binding:"omitempty,clock"`
	EndTime     *string           `json:"endTime" binding:"omitempty,clock"`
	IsAllDay    bool              `json:"isAllDay"`
	Recurring   *RecurringRequest `json:"recurring"`
}

type RecurringRequest struct {
	Frequency      string  `json:"frequency" binding:"required,frequency"`
	EndDate        *string `json:"endDate" binding:"omitempty,calendardate"`
	MaxOccurrences *int    `json:"maxOccurrences" binding:"omitempty,min=1"`
}

func (r TaskRequest) Input() services.TaskInput {
	in := services.TaskInput{
		Title:       r.Title,
		Description: r.Description,
		Tags:        r.Tags,
		DueDate:     r.DueDate,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		IsAllDay:    r.IsAllDay,
	}
	if r.Recurring != nil {
		in.Recurring = &model.Recurrence{
			Frequency:      model.Frequency(r.Recurring.Frequency),
			EndDate:        r.Recurring.EndDate,
			MaxOccurrences: r.Recurring.MaxOccurrences,
		}
	}
	return in
}
