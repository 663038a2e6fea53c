package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"mydayplanner/model"
	"mydayplanner/repository"
)

type TokenResult struct {
	AccessToken string
	Refreshed   bool
}

type TokenEnsurer interface {
	EnsureValidToken(ctx context.Context, integration *model.Integration) (TokenResult, error)
}

// TokenManager is the only writer of refreshed token material.
type TokenManager struct {
	store      IntegrationStore
	oauth      *oauth2.Config
	httpClient *http.Client
	timeout    time.Duration
	now        func() time.Time
	log        *zap.Logger

	refreshes singleflight.Group
}

func NewTokenManager(store IntegrationStore, oauthCfg *oauth2.Config, httpClient *http.Client, timeout time.Duration, log *zap.Logger) *TokenManager {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TokenManager{
		store:      store,
		oauth:      oauthCfg,
		httpClient: httpClient,
		timeout:    timeout,
		now:        time.Now,
		log:        log,
	}
}

// EnsureValidToken returns an access token that is usable now, refreshing and persisting
// it first when the stored one has expired.
func (m *TokenManager) EnsureValidToken(ctx context.Context, integration *model.Integration) (TokenResult, error) {
	if integration == nil || !integration.Connected {
		return TokenResult{}, ErrAuthExpired
	}
	if !m.expired(integration) {
		return TokenResult{AccessToken: integration.AccessToken}, nil
	}
	if integration.RefreshToken == "" {
		TokenRefreshes.WithLabelValues("no_refresh_token").Inc()
		return TokenResult{}, ErrAuthExpired
	}

	// One exchange per credential at a time; a second caller waits for the first result,
	// so the shared exchange must outlive a cancelled first caller.
	key := integration.UserID + "/" + string(integration.Provider)
	shared := context.WithoutCancel(ctx)
	v, err, _ := m.refreshes.Do(key, func() (interface{}, error) {
		return m.refresh(shared, integration.UserID, integration.Provider)
	})
	if err != nil {
		return TokenResult{}, err
	}
	return v.(TokenResult), nil
}

func (m *TokenManager) expired(integration *model.Integration) bool {
	if integration.TokenExpiresAt == nil {
		return false
	}
	return !m.now().Before(*integration.TokenExpiresAt)
}

func (m *TokenManager) refresh(ctx context.Context, userID string, provider model.Provider) (TokenResult, error) {
	current, err := m.store.GetIntegration(ctx, userID, provider)
	if errors.Is(err, repository.ErrNotFound) {
		return TokenResult{}, ErrAuthExpired
	}
	if err != nil {
		return TokenResult{}, fmt.Errorf("load credential: %w", err)
	}
	if !current.Connected {
		return TokenResult{}, ErrAuthExpired
	}
	// Another request may have refreshed since the caller read its copy.
	if !m.expired(current) && current.AccessToken != "" {
		return TokenResult{AccessToken: current.AccessToken}, nil
	}
	if current.RefreshToken == "" {
		TokenRefreshes.WithLabelValues("no_refresh_token").Inc()
		return TokenResult{}, ErrAuthExpired
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	exchangeCtx = context.WithValue(exchangeCtx, oauth2.HTTPClient, m.httpClient)

	started := m.now()
	tok, err := m.oauth.TokenSource(exchangeCtx, &oauth2.Token{RefreshToken: current.RefreshToken}).Token()
	if err != nil {
		TokenRefreshes.WithLabelValues("failed").Inc()
		m.log.Warn("token refresh failed",
			zap.String("user_id", userID),
			zap.String("provider", string(provider)),
			zap.Error(err),
		)
		return TokenResult{}, fmt.Errorf("%w: %v", ErrAuthExpired, err)
	}

	updated := *current
	updated.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		updated.RefreshToken = tok.RefreshToken
	}
	updated.TokenExpiresAt = rebaseExpiry(tok, started)
	updated.UpdatedAt = m.now()

	// Persist before handing the token out so no later call reuses the stale refresh token.
	err = m.store.SaveRefreshedToken(ctx, &updated, current.RefreshToken)
	if errors.Is(err, repository.ErrConflict) {
		TokenRefreshes.WithLabelValues("superseded").Inc()
		return m.afterConflict(ctx, userID, provider)
	}
	if err != nil {
		TokenRefreshes.WithLabelValues("persist_failed").Inc()
		return TokenResult{}, fmt.Errorf("persist refreshed credential: %w", err)
	}
	TokenRefreshes.WithLabelValues("ok").Inc()
	m.log.Info("access token refreshed",
		zap.String("user_id", userID),
		zap.String("provider", string(provider)),
	)
	return TokenResult{AccessToken: updated.AccessToken, Refreshed: true}, nil
}

// afterConflict handles a credential that changed during the exchange. A disconnect wins and
// the refreshed tokens are dropped; a reconnect that stored a usable token is used as is.
func (m *TokenManager) afterConflict(ctx context.Context, userID string, provider model.Provider) (TokenResult, error) {
	m.log.Info("refreshed token discarded, credential changed during exchange",
		zap.String("user_id", userID),
		zap.String("provider", string(provider)),
	)
	current, err := m.store.GetIntegration(ctx, userID, provider)
	if errors.Is(err, repository.ErrNotFound) {
		return TokenResult{}, ErrAuthExpired
	}
	if err != nil {
		return TokenResult{}, fmt.Errorf("load credential: %w", err)
	}
	if !current.Connected || m.expired(current) || current.AccessToken == "" {
		return TokenResult{}, ErrAuthExpired
	}
	return TokenResult{AccessToken: current.AccessToken}, nil
}

// rebaseExpiry turns the provider lifetime (which oauth2 turns into a wall-clock Expiry)
// into now+lifetime on the manager's clock.
func rebaseExpiry(tok *oauth2.Token, now time.Time) *time.Time {
	if tok.Expiry.IsZero() {
		return nil
	}
	lifetime := time.Until(tok.Expiry)
	expires := now.Add(lifetime)
	return &expires
}
