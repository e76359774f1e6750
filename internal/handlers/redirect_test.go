package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"snaplink/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedirectToURL(t *testing.T) {
	app := setupTestApp(t)
	owner := app.createUser(t, "owner@example.com", false)

	w := app.do(t, http.MethodPost, "/api/v1/links", owner.APIKey, payload{"original_url": "https://example.com/page", "tag": "launch"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[map[string]interface{}](t, w)
	code := created["short_code"].(string)

	t.Run("404 Not Found", func(t *testing.T) {
		w := app.do(t, http.MethodGet, "/NONEXISTENT", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Successful Redirect", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/"+code, nil)
		req.Header.Set("User-Agent", "Mozilla/5.0 (Linux; Android 10; K) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36")
		req.Header.Set("Referer", "https://news.example.com/")
		w := httptest.NewRecorder()
		app.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
		assert.Equal(t, "https://example.com/page", w.Header().Get("Location"))

		var clicks []models.Click
		require.NoError(t, app.db.Find(&clicks).Error)
		require.Len(t, clicks, 1)
		assert.Equal(t, "Chrome", *clicks[0].Browser)
		assert.Equal(t, models.DeviceMobile, clicks[0].DeviceType)
		assert.Equal(t, "https://news.example.com/", *clicks[0].Referrer)
	})

	t.Run("410 Gone after expiry", func(t *testing.T) {
		saved := app.now
		app.now = app.now.Add(31 * 24 * time.Hour)
		defer func() { app.now = saved }()

		var before int64
		app.db.Model(&models.Click{}).Count(&before)

		w := app.do(t, http.MethodGet, "/"+code, "", nil)
		assert.Equal(t, http.StatusGone, w.Code)

		var after int64
		app.db.Model(&models.Click{}).Count(&after)
		assert.Equal(t, before, after)
	})
}

func TestHealth(t *testing.T) {
	app := setupTestApp(t)

	w := app.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())

	w = app.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}
