package model

import "time"

type Provider string

const ProviderGoogle Provider = "google"

const DefaultCalendarID = "primary"

// Integration is the OAuth credential of one user for one provider.
type Integration struct {
	UserID             string     `firestore:"userid" gorm:"column:user_id;primaryKey" json:"userId"`
	Provider           Provider   `firestore:"provider" gorm:"column:provider;primaryKey" json:"provider"`
	AccessToken        string     `firestore:"accesstoken,omitempty" gorm:"column:access_token" json:"-"`
	RefreshToken       string     `firestore:"refreshtoken,omitempty" gorm:"column:refresh_token" json:"-"`
	TokenExpiresAt     *time.Time `firestore:"tokenexpiresat,omitempty" gorm:"column:token_expires_at" json:"tokenExpiresAt,omitempty"`
	Connected          bool       `firestore:"connected" gorm:"column:connected" json:"connected"`
	SelectedCalendarID string     `firestore:"selectedcalendarid,omitempty" gorm:"column:selected_calendar_id" json:"selectedCalendarId,omitempty"`
	UpdatedAt          time.Time  `firestore:"updatedat" gorm:"column:updated_at" json:"updatedAt"`
}

func (Integration) TableName() string {
	return "integrations"
}

// Disconnect clears the token material; a disconnected credential never keeps tokens.
func (i *Integration) Disconnect() {
	i.Connected = false
	i.AccessToken = ""
	i.RefreshToken = ""
	i.TokenExpiresAt = nil
}

func (i *Integration) CalendarID() string {
	if i.SelectedCalendarID == "" {
		return DefaultCalendarID
	}
	return i.SelectedCalendarID
}
