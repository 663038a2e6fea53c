package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"mydayplanner/model"
	"mydayplanner/repository"
)

const (
	ScopeCalendarReadonly = "https://www.googleapis.com/auth/calendar.readonly"
	ScopeCalendarEvents   = "https://www.googleapis.com/auth/calendar.events"
	ScopeUserInfoProfile  = "https://www.googleapis.com/auth/userinfo.profile"
)

// OAuthScopes returns the consent scopes; writing events needs calendar.events.
func OAuthScopes(exportEnabled bool) []string {
	scopes := []string{ScopeCalendarReadonly, ScopeUserInfoProfile}
	if exportEnabled {
		scopes = append(scopes, ScopeCalendarEvents)
	}
	return scopes
}

type IntegrationStatus struct {
	Provider       model.Provider `json:"provider"`
	Connected      bool           `json:"connected"`
	TokenExpiresAt *time.Time     `json:"tokenExpiresAt,omitempty"`
	CalendarID     string         `json:"calendarId"`
}

type IntegrationService struct {
	store      IntegrationStore
	oauth      *oauth2.Config
	gateway    CalendarGateway
	httpClient *http.Client
	timeout    time.Duration
	now        func() time.Time
	log        *zap.Logger
}

func NewIntegrationService(store IntegrationStore, oauthCfg *oauth2.Config, gateway CalendarGateway, httpClient *http.Client, timeout time.Duration, log *zap.Logger) *IntegrationService {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &IntegrationService{
		store:      store,
		oauth:      oauthCfg,
		gateway:    gateway,
		httpClient: httpClient,
		timeout:    timeout,
		now:        time.Now,
		log:        log,
	}
}

// AuthURL is the consent page URL. The user id travels as state and comes back on the callback.
func (s *IntegrationService) AuthURL(userID string) (string, error) {
	if err := requireID("userId", userID); err != nil {
		return "", err
	}
	return s.oauth.AuthCodeURL(userID, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// ExchangeCode trades an authorization code for tokens and stores the connected credential.
func (s *IntegrationService) ExchangeCode(ctx context.Context, code, userID, callbackURL string) (*IntegrationStatus, error) {
	if err := requireID("code", code); err != nil {
		return nil, err
	}
	if err := requireID("state", userID); err != nil {
		return nil, err
	}

	var opts []oauth2.AuthCodeOption
	if callbackURL != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", callbackURL))
	}
	exchangeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	exchangeCtx = context.WithValue(exchangeCtx, oauth2.HTTPClient, s.httpClient)

	tok, err := s.oauth.Exchange(exchangeCtx, code, opts...)
	if err != nil {
		s.log.Warn("authorization code exchange failed", zap.String("user_id", userID), zap.Error(err))
		return nil, exchangeError(err)
	}

	integration, err := s.load(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFoundLocal) {
		return nil, err
	}
	if integration == nil {
		integration = &model.Integration{UserID: userID, Provider: model.ProviderGoogle}
	}
	integration.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		integration.RefreshToken = tok.RefreshToken
	}
	integration.TokenExpiresAt = nil
	if !tok.Expiry.IsZero() {
		expires := tok.Expiry
		integration.TokenExpiresAt = &expires
	}
	integration.Connected = true
	integration.UpdatedAt = s.now()

	if err := s.store.SaveIntegration(ctx, integration); err != nil {
		return nil, fmt.Errorf("save integration: %w", err)
	}
	s.log.Info("calendar connected", zap.String("user_id", userID))
	return statusOf(integration), nil
}

func exchangeError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &ProviderError{Status: re.Response.StatusCode, Body: string(re.Body)}
	}
	return &ProviderError{Status: 0, Body: err.Error()}
}

// Disconnect revokes the grant when it can and always clears the stored tokens.
func (s *IntegrationService) Disconnect(ctx context.Context, userID string) (*IntegrationStatus, error) {
	if err := requireID("userId", userID); err != nil {
		return nil, err
	}
	integration, err := s.load(ctx, userID)
	if errors.Is(err, ErrNotFoundLocal) {
		return &IntegrationStatus{Provider: model.ProviderGoogle, CalendarID: model.DefaultCalendarID}, nil
	}
	if err != nil {
		return nil, err
	}

	token := integration.RefreshToken
	if token == "" {
		token = integration.AccessToken
	}
	if token != "" {
		if err := s.gateway.RevokeToken(ctx, token); err != nil {
			s.log.Warn("token revoke failed, clearing local credential anyway",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}

	integration.Disconnect()
	integration.UpdatedAt = s.now()
	if err := s.store.SaveIntegration(ctx, integration); err != nil {
		return nil, fmt.Errorf("save integration: %w", err)
	}
	s.log.Info("calendar disconnected", zap.String("user_id", userID))
	return statusOf(integration), nil
}

func (s *IntegrationService) Status(ctx context.Context, userID string) (*IntegrationStatus, error) {
	if err := requireID("userId", userID); err != nil {
		return nil, err
	}
	integration, err := s.load(ctx, userID)
	if errors.Is(err, ErrNotFoundLocal) {
		return &IntegrationStatus{Provider: model.ProviderGoogle, CalendarID: model.DefaultCalendarID}, nil
	}
	if err != nil {
		return nil, err
	}
	return statusOf(integration), nil
}

// SelectCalendar sets the calendar new events are exported to.
func (s *IntegrationService) SelectCalendar(ctx context.Context, userID, calendarID string) (*IntegrationStatus, error) {
	if err := requireID("userId", userID); err != nil {
		return nil, err
	}
	if err := requireID("calendarId", calendarID); err != nil {
		return nil, err
	}
	integration, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	integration.SelectedCalendarID = calendarID
	integration.UpdatedAt = s.now()
	if err := s.store.SaveIntegration(ctx, integration); err != nil {
		return nil, fmt.Errorf("save integration: %w", err)
	}
	return statusOf(integration), nil
}

func (s *IntegrationService) load(ctx context.Context, userID string) (*model.Integration, error) {
	integration, err := s.store.GetIntegration(ctx, userID, model.ProviderGoogle)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFoundLocal
	}
	if err != nil {
		return nil, fmt.Errorf("load integration: %w", err)
	}
	return integration, nil
}

func statusOf(integration *model.Integration) *IntegrationStatus {
	return &IntegrationStatus{
		Provider:       integration.Provider,
		Connected:      integration.Connected,
		TokenExpiresAt: integration.TokenExpiresAt,
		CalendarID:     integration.CalendarID(),
	}
}
