package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"mydayplanner/services"
)

var testSecret = []byte("test-secret")

func newTestRouter(log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(log))
	r.GET("/me", AccessTokenMiddleware(testSecret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": c.MustGet("userId")})
	})
	return r
}

func TestAccessTokenMiddleware(t *testing.T) {
	valid, err := services.CreateAccessToken(testSecret, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	expired, err := services.CreateAccessToken(testSecret, "user-1", -time.Minute)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	foreign, err := services.CreateAccessToken([]byte("other"), "user-1", time.Hour)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + valid, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"no bearer prefix", valid, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusForbidden},
		{"wrong secret", "Bearer " + foreign, http.StatusForbidden},
	}
	r := newTestRouter(zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestRequestLoggerRecordsUser(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newTestRouter(zap.New(core))
	token, _ := services.CreateAccessToken(testSecret, "user-7", time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("HTTP Request").All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 request log, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["user_id"] != "user-7" || ctx["path"] != "/me" {
		t.Errorf("unexpected log fields: %v", ctx)
	}
}
