package model

import "time"

type CalendarSetting struct {
	UserID     string    `firestore:"userid" gorm:"column:user_id;primaryKey" json:"userId"`
	CalendarID string    `firestore:"calendarid" gorm:"column:calendar_id;primaryKey" json:"calendarId"`
	Enabled    bool      `firestore:"enabled" gorm:"column:enabled" json:"enabled"`
	UpdatedAt  time.Time `firestore:"updatedat" gorm:"column:updated_at" json:"updatedAt"`
}

func (CalendarSetting) TableName() string {
	return "calendar_settings"
}

// Calendar is one entry of the provider's calendar list.
type Calendar struct {
	ID              string `json:"id"`
	Summary         string `json:"summary"`
	Primary         bool   `json:"primary"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	AccessRole      string `json:"accessRole,omitempty"`
	TimeZone        string `json:"timeZone,omitempty"`
}
