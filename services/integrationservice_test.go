package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"mydayplanner/model"
)

func newIntegrationFixture(t *testing.T, tokenStatus int, tokenBody string, records ...model.Integration) (*IntegrationService, *memIntegrationStore, *MockGateway) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") != "authorization_code" {
			t.Errorf("unexpected grant_type %q", r.PostForm.Get("grant_type"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(tokenStatus)
		_, _ = w.Write([]byte(tokenBody))
	}))
	t.Cleanup(srv.Close)

	cfg := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "https://app.example/callback",
		Scopes:       OAuthScopes(true),
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.example/o/oauth2/auth",
			TokenURL:  srv.URL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	store := newMemIntegrationStore(records...)
	gw := &MockGateway{}
	return NewIntegrationService(store, cfg, gw, nil, 5*time.Second, zap.NewNop()), store, gw
}

func TestAuthURLCarriesConsentParams(t *testing.T) {
	svc, _, _ := newIntegrationFixture(t, http.StatusOK, "{}")

	raw, err := svc.AuthURL("user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	q := u.Query()
	checks := map[string]string{
		"access_type":  "offline",
		"prompt":       "consent",
		"state":        "user-1",
		"redirect_uri": "https://app.example/callback",
		"client_id":    "client",
	}
	for k, want := range checks {
		if got := q.Get(k); got != want {
			t.Errorf("%s: expected %q, got %q", k, want, got)
		}
	}
	scope := q.Get("scope")
	for _, s := range []string{ScopeCalendarReadonly, ScopeUserInfoProfile, ScopeCalendarEvents} {
		if !strings.Contains(scope, s) {
			t.Errorf("Expected scope %s in %q", s, scope)
		}
	}

	if _, err := svc.AuthURL(""); !IsValidation(err) {
		t.Errorf("Expected ValidationError, got %v", err)
	}
}

func TestOAuthScopesWithoutExport(t *testing.T) {
	for _, s := range OAuthScopes(false) {
		if s == ScopeCalendarEvents {
			t.Errorf("Expected no write scope when export is disabled")
		}
	}
}

func TestExchangeCodeStoresConnectedCredential(t *testing.T) {
	previous := connectedIntegration("user-1")
	previous.Disconnect()
	previous.SelectedCalendarID = "work"
	svc, store, _ := newIntegrationFixture(t, http.StatusOK,
		`{"access_token":"acc","refresh_token":"ref","token_type":"Bearer","expires_in":3600}`, previous)

	status, err := svc.ExchangeCode(context.Background(), "code-1", "user-1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.Connected || status.CalendarID != "work" {
		t.Errorf("unexpected status: %+v", status)
	}
	stored := store.stored("user-1")
	if stored.AccessToken != "acc" || stored.RefreshToken != "ref" || !stored.Connected {
		t.Errorf("unexpected stored credential: %+v", stored)
	}
	if stored.TokenExpiresAt == nil || time.Until(*stored.TokenExpiresAt) < 55*time.Minute {
		t.Errorf("Expected expiry about an hour out, got %v", stored.TokenExpiresAt)
	}
}

func TestExchangeCodeRejected(t *testing.T) {
	svc, store, _ := newIntegrationFixture(t, http.StatusBadRequest, `{"error":"invalid_grant"}`)

	_, err := svc.ExchangeCode(context.Background(), "bad", "user-1", "")
	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Status != http.StatusBadRequest {
		t.Fatalf("Expected ProviderError 400, got %v", err)
	}
	if store.saves != 0 {
		t.Errorf("Expected nothing stored")
	}

	if _, err := svc.ExchangeCode(context.Background(), "", "user-1", ""); !IsValidation(err) {
		t.Errorf("Expected ValidationError for missing code, got %v", err)
	}
}

func TestDisconnectClearsTokensWhenRevokeFails(t *testing.T) {
	in := connectedIntegration("user-1")
	in.SelectedCalendarID = "work"
	svc, store, gw := newIntegrationFixture(t, http.StatusOK, "{}", in)
	gw.RevokeTokenFunc = func(ctx context.Context, token string) error {
		return &ProviderError{Status: 0, Body: "dial tcp: timeout"}
	}

	status, err := svc.Disconnect(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Connected {
		t.Errorf("Expected disconnected status")
	}
	if calls := gw.Calls(); len(calls) != 1 || calls[0] != "revoke:refresh-user-1" {
		t.Errorf("Expected the refresh token revoked, got %v", calls)
	}
	stored := store.stored("user-1")
	if stored.Connected || stored.AccessToken != "" || stored.RefreshToken != "" || stored.TokenExpiresAt != nil {
		t.Errorf("Expected token material cleared, got %+v", stored)
	}
	if stored.SelectedCalendarID != "work" {
		t.Errorf("Expected calendar choice kept, got %q", stored.SelectedCalendarID)
	}
}

func TestStatusAndSelectCalendar(t *testing.T) {
	svc, _, _ := newIntegrationFixture(t, http.StatusOK, "{}", connectedIntegration("user-1"))
	ctx := context.Background()

	status, err := svc.Status(ctx, "nobody")
	if err != nil || status.Connected || status.CalendarID != model.DefaultCalendarID {
		t.Errorf("Expected a disconnected default status, got %+v, %v", status, err)
	}

	status, err = svc.SelectCalendar(ctx, "user-1", "work")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.CalendarID != "work" || !status.Connected {
		t.Errorf("unexpected status: %+v", status)
	}
	if _, err := svc.SelectCalendar(ctx, "nobody", "work"); !errors.Is(err, ErrNotFoundLocal) {
		t.Errorf("Expected ErrNotFoundLocal, got %v", err)
	}
}
