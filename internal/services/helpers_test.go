package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"snaplink/internal/config"
	"snaplink/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?_pragma=foreign_keys(1)"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{now: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *testClock) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

var testConfig = config.Config{
	BaseURL:         "http://sho.rt",
	DefaultTTLDays:  30,
	ShortCodeBytes:  6,
	MaxCodeAttempts: 10,
	BreakdownTopN:   5,
}

type testEnv struct {
	db       *gorm.DB
	clock    *testClock
	links    *ShortenerService
	clicks   *ClickIngestor
	resolver *Resolver
	stats    *Analytics
	users    *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	clock := newTestClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	logger := testLogger()

	links := NewShortenerService(db, nil, nil, logger, clock.Now, testConfig)
	clicks := NewClickIngestor(db, NewUserAgentParser(), nil, logger, clock.Now, false)
	return &testEnv{
		db:       db,
		clock:    clock,
		links:    links,
		clicks:   clicks,
		resolver: NewResolver(links, clicks, logger, clock.Now),
		stats:    NewAnalytics(db, logger, clock.Now, testConfig.BreakdownTopN),
		users:    NewUserService(db, nil, nil, logger, clock.Now),
	}
}

func (e *testEnv) createUser(t *testing.T, email string, superuser bool) *models.User {
	t.Helper()
	u, err := e.users.Create(context.Background(), email, superuser)
	require.NoError(t, err)
	return u
}

func (e *testEnv) createLink(t *testing.T, ownerID uint, url string) *models.Link {
	t.Helper()
	l, err := e.links.Create(context.Background(), CreateLinkInput{OriginalURL: url, OwnerID: ownerID})
	require.NoError(t, err)
	return l
}

// insertClick writes a click row directly, bypassing classification.
func (e *testEnv) insertClick(t *testing.T, linkID uint, at time.Time, browser string) {
	t.Helper()
	c := models.Click{LinkID: linkID, CreatedAt: at, DeviceType: models.DeviceDesktop}
	if browser != "" {
		c.Browser = &browser
	}
	require.NoError(t, e.db.Create(&c).Error)
}

func (e *testEnv) clickCount(t *testing.T, linkID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.Click{}).Where("link_id = ?", linkID).Count(&n).Error)
	return n
}
