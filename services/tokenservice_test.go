package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"mydayplanner/model"
)

func newTokenServer(t *testing.T, status int, body string, delay time.Duration) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("Expected grant_type refresh_token, got %q", got)
		}
		time.Sleep(delay)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestTokenManager(store IntegrationStore, tokenURL string) *TokenManager {
	cfg := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
	return NewTokenManager(store, cfg, nil, 5*time.Second, zap.NewNop())
}

func expiredIntegration(userID string) model.Integration {
	in := connectedIntegration(userID)
	past := time.Now().Add(-time.Minute)
	in.TokenExpiresAt = &past
	return in
}

const refreshedBody = `{"access_token":"new-access","token_type":"Bearer","expires_in":3600,"refresh_token":"rotated"}`

func TestEnsureValidTokenNotExpired(t *testing.T) {
	srv, hits := newTokenServer(t, http.StatusOK, refreshedBody, 0)
	in := connectedIntegration("user-1")
	future := time.Now().Add(time.Hour)
	in.TokenExpiresAt = &future
	store := newMemIntegrationStore(in)
	m := newTestTokenManager(store, srv.URL)

	res, err := m.EnsureValidToken(context.Background(), &in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AccessToken != "access-user-1" || res.Refreshed {
		t.Errorf("Expected stored token without refresh, got %+v", res)
	}
	if *hits != 0 {
		t.Errorf("Expected no token endpoint call, got %d", *hits)
	}
}

func TestEnsureValidTokenRefreshesAndPersists(t *testing.T) {
	srv, hits := newTokenServer(t, http.StatusOK, refreshedBody, 0)
	in := expiredIntegration("user-1")
	in.SelectedCalendarID = "work"
	store := newMemIntegrationStore(in)
	m := newTestTokenManager(store, srv.URL)

	res, err := m.EnsureValidToken(context.Background(), &in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Refreshed || res.AccessToken != "new-access" {
		t.Errorf("Expected refreshed token, got %+v", res)
	}
	if *hits != 1 {
		t.Errorf("Expected 1 token endpoint call, got %d", *hits)
	}

	stored := store.stored("user-1")
	if stored.AccessToken != "new-access" {
		t.Errorf("Expected persisted access token, got %q", stored.AccessToken)
	}
	if stored.RefreshToken != "rotated" {
		t.Errorf("Expected rotated refresh token, got %q", stored.RefreshToken)
	}
	if stored.SelectedCalendarID != "work" || !stored.Connected {
		t.Errorf("Expected the rest of the record kept, got %+v", stored)
	}
	if stored.TokenExpiresAt == nil {
		t.Fatal("Expected an expiry")
	}
	if d := time.Until(*stored.TokenExpiresAt); d < 55*time.Minute || d > 61*time.Minute {
		t.Errorf("Expected expiry about one hour out, got %s", d)
	}
}

func TestEnsureValidTokenCoalescesConcurrentRefresh(t *testing.T) {
	srv, hits := newTokenServer(t, http.StatusOK, refreshedBody, 50*time.Millisecond)
	in := expiredIntegration("user-1")
	store := newMemIntegrationStore(in)
	m := newTestTokenManager(store, srv.URL)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stale := in
			res, err := m.EnsureValidToken(context.Background(), &stale)
			if err == nil && res.AccessToken != "new-access" {
				err = errors.New("unexpected token " + res.AccessToken)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if got := atomic.LoadInt32(hits); got != 1 {
		t.Errorf("Expected exactly 1 refresh exchange, got %d", got)
	}
	if store.saves != 1 {
		t.Errorf("Expected 1 persisted refresh, got %d", store.saves)
	}
}

func TestEnsureValidTokenRefreshRejected(t *testing.T) {
	srv, _ := newTokenServer(t, http.StatusBadRequest, `{"error":"invalid_grant"}`, 0)
	in := expiredIntegration("user-1")
	store := newMemIntegrationStore(in)
	m := newTestTokenManager(store, srv.URL)

	_, err := m.EnsureValidToken(context.Background(), &in)
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("Expected ErrAuthExpired, got %v", err)
	}
	if store.saves != 0 {
		t.Errorf("Expected nothing persisted, got %d saves", store.saves)
	}
	if got := store.stored("user-1"); got.AccessToken != "access-user-1" {
		t.Errorf("Expected stored credential untouched, got %q", got.AccessToken)
	}
}

func TestEnsureValidTokenNeedsReconnect(t *testing.T) {
	srv, hits := newTokenServer(t, http.StatusOK, refreshedBody, 0)

	disconnected := connectedIntegration("user-1")
	disconnected.Disconnect()
	noRefresh := expiredIntegration("user-2")
	noRefresh.RefreshToken = ""

	store := newMemIntegrationStore(disconnected, noRefresh)
	m := newTestTokenManager(store, srv.URL)

	tests := []struct {
		name string
		in   *model.Integration
	}{
		{"nil", nil},
		{"disconnected", &disconnected},
		{"no refresh token", &noRefresh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.EnsureValidToken(context.Background(), tt.in)
			if !errors.Is(err, ErrAuthExpired) {
				t.Errorf("Expected ErrAuthExpired, got %v", err)
			}
		})
	}
	if *hits != 0 {
		t.Errorf("Expected no token endpoint call, got %d", *hits)
	}
}

func TestEnsureValidTokenDisconnectDuringRefresh(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(refreshedBody))
	}))
	t.Cleanup(srv.Close)

	in := expiredIntegration("user-1")
	store := newMemIntegrationStore(in)
	m := newTestTokenManager(store, srv.URL)

	done := make(chan error, 1)
	go func() {
		_, err := m.EnsureValidToken(context.Background(), &in)
		done <- err
	}()

	<-arrived
	gone := store.stored("user-1")
	gone.Disconnect()
	if err := store.SaveIntegration(context.Background(), &gone); err != nil {
		t.Fatal(err)
	}
	close(release)

	if err := <-done; !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("Expected ErrAuthExpired, got %v", err)
	}
	got := store.stored("user-1")
	if got.Connected || got.AccessToken != "" || got.RefreshToken != "" {
		t.Errorf("Expected the disconnect to stand, got %+v", got)
	}
}

func TestEnsureValidTokenSurvivesCancelledFirstCaller(t *testing.T) {
	srv, hits := newTokenServer(t, http.StatusOK, refreshedBody, 100*time.Millisecond)
	in := expiredIntegration("user-1")
	store := newMemIntegrationStore(in)
	m := newTestTokenManager(store, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		stale := in
		_, err := m.EnsureValidToken(ctx, &stale)
		first <- err
	}()
	for atomic.LoadInt32(hits) == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	stale := in
	res, err := m.EnsureValidToken(context.Background(), &stale)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AccessToken != "new-access" {
		t.Errorf("Expected new-access, got %q", res.AccessToken)
	}
	if err := <-first; err != nil {
		t.Errorf("Expected the first caller to get the shared result, got %v", err)
	}
	if got := atomic.LoadInt32(hits); got != 1 {
		t.Errorf("Expected 1 refresh exchange, got %d", got)
	}
}
