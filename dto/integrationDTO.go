package dto

type OAuthCallbackRequest struct {
	Code        string `json:"code" binding:"required"`
	State       string `json:"state" binding:"required"`
	RedirectURI string `json:"redirectUri" binding:"omitempty,url"`
}

type SelectCalendarRequest struct {
	CalendarID string `json:"calendarId" binding:"required"`
}

type AuthURLResponse struct {
	URL string `json:"url"`
}
