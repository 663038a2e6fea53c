package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mydayplanner/model"
	"mydayplanner/repository"
)

type CalendarVisibility struct {
	model.Calendar
	Enabled bool `json:"enabled"`
}

type SettingsService struct {
	settings     SettingStore
	integrations IntegrationStore
	tokens       TokenEnsurer
	gateway      CalendarGateway
	now          func() time.Time
	log          *zap.Logger
}

func NewSettingsService(settings SettingStore, integrations IntegrationStore, tokens TokenEnsurer, gateway CalendarGateway, log *zap.Logger) *SettingsService {
	return &SettingsService{
		settings:     settings,
		integrations: integrations,
		tokens:       tokens,
		gateway:      gateway,
		now:          time.Now,
		log:          log,
	}
}

// SetCalendarVisibility records whether a calendar's events are shown to the user.
func (s *SettingsService) SetCalendarVisibility(ctx context.Context, userID, calendarID string, enabled bool) (*model.CalendarSetting, error) {
	if err := requireID("userId", userID); err != nil {
		return nil, err
	}
	if err := requireID("calendarId", calendarID); err != nil {
		return nil, err
	}
	setting := &model.CalendarSetting{
		UserID:     userID,
		CalendarID: calendarID,
		Enabled:    enabled,
		UpdatedAt:  s.now(),
	}
	if err := s.settings.UpsertCalendarSetting(ctx, setting); err != nil {
		return nil, fmt.Errorf("save calendar setting: %w", err)
	}
	s.log.Debug("calendar visibility set",
		zap.String("user_id", userID),
		zap.String("calendar_id", calendarID),
		zap.Bool("enabled", enabled),
	)
	return setting, nil
}

func (s *SettingsService) ListVisibility(ctx context.Context, userID string) ([]model.CalendarSetting, error) {
	if err := requireID("userId", userID); err != nil {
		return nil, err
	}
	settings, err := s.settings.ListCalendarSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list calendar settings: %w", err)
	}
	return settings, nil
}

// CalendarsWithVisibility lists the provider calendars with the user's flags applied.
// Calendars the user never toggled are enabled.
func (s *SettingsService) CalendarsWithVisibility(ctx context.Context, userID string) ([]CalendarVisibility, error) {
	if err := requireID("userId", userID); err != nil {
		return nil, err
	}
	integration, err := s.integrations.GetIntegration(ctx, userID, model.ProviderGoogle)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAuthExpired
	}
	if err != nil {
		return nil, fmt.Errorf("load integration: %w", err)
	}
	token, err := s.tokens.EnsureValidToken(ctx, integration)
	if err != nil {
		return nil, err
	}
	calendars, err := s.gateway.ListCalendars(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.ListCalendarSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list calendar settings: %w", err)
	}

	flags := make(map[string]bool, len(settings))
	for _, st := range settings {
		flags[st.CalendarID] = st.Enabled
	}
	out := make([]CalendarVisibility, 0, len(calendars))
	for _, cal := range calendars {
		enabled, ok := flags[cal.ID]
		if !ok {
			enabled = true
		}
		out = append(out, CalendarVisibility{Calendar: cal, Enabled: enabled})
	}
	return out, nil
}
