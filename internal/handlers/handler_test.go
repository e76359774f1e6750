package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"snaplink/internal/config"
	"snaplink/internal/models"
	"snaplink/internal/services"
	"snaplink/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testApp struct {
	router *gin.Engine
	db     *gorm.DB
	now    time.Time
	links  *services.ShortenerService
	users  *services.UserService
	tokens *token.Manager
}

func setupTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:?_pragma=foreign_keys(1)"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	app := &testApp{db: db, now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return app.now }

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		BaseURL:         "http://sho.rt",
		JWTSecret:       "test-secret",
		TokenTTL:        time.Hour,
		DefaultTTLDays:  30,
		ShortCodeBytes:  6,
		MaxCodeAttempts: 10,
		BreakdownTopN:   5,
	}

	app.links = services.NewShortenerService(db, nil, nil, logger, clock, cfg)
	clicks := services.NewClickIngestor(db, services.NewUserAgentParser(), nil, logger, clock, false)
	resolver := services.NewResolver(app.links, clicks, logger, clock)
	stats := services.NewAnalytics(db, logger, clock, cfg.BreakdownTopN)
	app.users = services.NewUserService(db, nil, nil, logger, clock)
	app.tokens = token.NewManager(cfg.JWTSecret, cfg.TokenTTL)
	identity := services.NewIdentityProvider(app.users, app.tokens)

	h := NewHandler(cfg, logger, app.links, resolver, stats, app.users, identity, services.NewQRService())
	app.router = h.SetupRouter(nil)
	return app
}

func (a *testApp) createUser(t *testing.T, email string, superuser bool) *models.User {
	t.Helper()
	u, err := a.users.Create(context.Background(), email, superuser)
	require.NoError(t, err)
	return u
}

func (a *testApp) do(t *testing.T, method, path, apiKey string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

type payload = map[string]interface{}
