package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"snaplink/internal/models"

	"gorm.io/gorm"
)

const (
	unknownCategory = "Unknown"
	otherCategory   = "Other"
)

type Interval string

const (
	IntervalDay   Interval = "day"
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

func ParseInterval(s string) (Interval, error) {
	switch Interval(strings.ToLower(strings.TrimSpace(s))) {
	case "", IntervalDay:
		return IntervalDay, nil
	case IntervalMonth:
		return IntervalMonth, nil
	case IntervalYear:
		return IntervalYear, nil
	}
	return "", validationErrorf("interval must be one of day, month, year")
}

// Dimension is a closed set of click columns that breakdowns may group by.
type Dimension string

const (
	DimensionBrowser    Dimension = "browser"
	DimensionDeviceType Dimension = "device_type"
	DimensionCountry    Dimension = "country"
	DimensionReferrer   Dimension = "referrer"
)

var dimensionColumns = map[Dimension]string{
	DimensionBrowser:    "clicks.browser",
	DimensionDeviceType: "clicks.device_type",
	DimensionCountry:    "clicks.country",
	DimensionReferrer:   "clicks.referrer",
}

func ParseDimension(s string) (Dimension, error) {
	d := Dimension(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := dimensionColumns[d]; !ok {
		return "", validationErrorf("dimension must be one of browser, device_type, country, referrer")
	}
	return d, nil
}

type Bucket struct {
	Label string `json:"date"`
	Count int64  `json:"count"`
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// Breakdown keeps categories in descending count order. It marshals as a
// JSON object whose keys follow that order.
type Breakdown []CategoryCount

func (b Breakdown) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Category)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatInt(c.Count, 10))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (b Breakdown) Map() map[string]int64 {
	m := make(map[string]int64, len(b))
	for _, c := range b {
		m[c.Category] = c.Count
	}
	return m
}

type LinkStats struct {
	LinkID        uint             `json:"link_id"`
	ShortCode     string           `json:"short_code"`
	Tag           *string          `json:"tag,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty"`
	IsExpired     bool             `json:"is_expired"`
	TotalClicks   int64            `json:"total_clicks"`
	LastClickedAt *time.Time       `json:"last_clicked_at"`
	ByCountry     map[string]int64 `json:"by_country"`
	ByReferrer    map[string]int64 `json:"by_referrer"`
	ByBrowser     map[string]int64 `json:"by_browser"`
	ByDevice      map[string]int64 `json:"by_device"`
}

type SiteTotals struct {
	Users  int64 `json:"total_users"`
	Links  int64 `json:"total_links"`
	Clicks int64 `json:"total_clicks"`
}

// Analytics answers read-only aggregate queries over clicks and users.
type Analytics struct {
	db     *gorm.DB
	logger *slog.Logger
	clock  Clock
	topN   int
}

func NewAnalytics(db *gorm.DB, logger *slog.Logger, clock Clock, defaultTopN int) *Analytics {
	if defaultTopN <= 0 {
		defaultTopN = 5
	}
	return &Analytics{db: db, logger: logger, clock: clock, topN: defaultTopN}
}

func (a *Analytics) DefaultTopN() int { return a.topN }

// bucketExpr truncates col to the interval and renders it as YYYY-MM-DD.
func (a *Analytics) bucketExpr(col string, interval Interval) (string, error) {
	var pgFmt, sqliteFmt string
	switch interval {
	case IntervalDay:
		pgFmt, sqliteFmt = "YYYY-MM-DD", "%Y-%m-%d"
	case IntervalMonth:
		pgFmt, sqliteFmt = "YYYY-MM-01", "%Y-%m-01"
	case IntervalYear:
		pgFmt, sqliteFmt = "YYYY-01-01", "%Y-01-01"
	default:
		return "", validationErrorf("interval must be one of day, month, year")
	}

	switch a.db.Dialector.Name() {
	case "postgres":
		return fmt.Sprintf("to_char(%s AT TIME ZONE 'UTC', '%s')", col, pgFmt), nil
	case "sqlite":
		return fmt.Sprintf("strftime('%s', %s)", sqliteFmt, col), nil
	}
	return "", fmt.Errorf("time bucketing not supported for dialect %q", a.db.Dialector.Name())
}

func (a *Analytics) ownedClicks(ctx context.Context, ownerID uint) *gorm.DB {
	return a.db.WithContext(ctx).Model(&models.Click{}).
		Joins("JOIN links ON links.id = clicks.link_id").
		Where("links.owner_id = ?", ownerID)
}

func (a *Analytics) allClicks(ctx context.Context) *gorm.DB {
	return a.db.WithContext(ctx).Model(&models.Click{})
}

func (a *Analytics) timeSeries(q *gorm.DB, col string, interval Interval) ([]Bucket, error) {
	expr, err := a.bucketExpr(col, interval)
	if err != nil {
		return nil, err
	}

	buckets := []Bucket{}
	err = q.Select(expr + " AS label, COUNT(*) AS count").
		Group("label").
		Order("label ASC").
		Scan(&buckets).Error
	if err != nil {
		return nil, fmt.Errorf("time series query: %w", err)
	}
	return buckets, nil
}

// ClicksOverTime counts the owner's clicks per bucket in ascending order.
func (a *Analytics) ClicksOverTime(ctx context.Context, ownerID uint, interval Interval) ([]Bucket, error) {
	return a.timeSeries(a.ownedClicks(ctx, ownerID), "clicks.created_at", interval)
}

func (a *Analytics) SiteClicksOverTime(ctx context.Context, actor Principal, interval Interval) ([]Bucket, error) {
	if err := requireSuperuser(actor); err != nil {
		return nil, err
	}
	return a.timeSeries(a.allClicks(ctx), "clicks.created_at", interval)
}

// RegistrationStats applies the same bucketing to user sign-up times.
func (a *Analytics) RegistrationStats(ctx context.Context, actor Principal, interval Interval) ([]Bucket, error) {
	if err := requireSuperuser(actor); err != nil {
		return nil, err
	}
	return a.timeSeries(a.db.WithContext(ctx).Model(&models.User{}), "users.created_at", interval)
}

func (a *Analytics) categoryCounts(q *gorm.DB, dim Dimension) (Breakdown, error) {
	col, ok := dimensionColumns[dim]
	if !ok {
		return nil, validationErrorf("unknown dimension %q", dim)
	}

	var rows []struct {
		Category string
		Total    int64
	}
	err := q.Select(fmt.Sprintf("COALESCE(NULLIF(%s, ''), '%s') AS category, COUNT(*) AS total", col, unknownCategory)).
		Group("category").
		Order("total DESC").
		Order("category ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("breakdown query: %w", err)
	}

	out := make(Breakdown, len(rows))
	for i, r := range rows {
		out[i] = CategoryCount{Category: r.Category, Count: r.Total}
	}
	return out, nil
}

// topWithOther keeps the first n categories and folds the rest into "Other",
// which is omitted when it would be zero. A stored category that is itself
// named "Other" is folded into the same bucket.
func topWithOther(all Breakdown, n int) Breakdown {
	var rest int64
	ranked := make(Breakdown, 0, len(all)+1)
	for _, c := range all {
		if c.Category == otherCategory {
			rest += c.Count
			continue
		}
		ranked = append(ranked, c)
	}
	if n > 0 && len(ranked) > n {
		for _, c := range ranked[n:] {
			rest += c.Count
		}
		ranked = ranked[:n]
	}
	if rest > 0 {
		ranked = append(ranked, CategoryCount{Category: otherCategory, Count: rest})
	}
	return ranked
}

// Breakdown groups the owner's clicks by dim. topN <= 0 uses the configured default.
func (a *Analytics) Breakdown(ctx context.Context, ownerID uint, dim Dimension, topN int) (Breakdown, error) {
	all, err := a.categoryCounts(a.ownedClicks(ctx, ownerID), dim)
	if err != nil {
		return nil, err
	}
	return topWithOther(all, a.limit(topN)), nil
}

func (a *Analytics) SiteBreakdown(ctx context.Context, actor Principal, dim Dimension, topN int) (Breakdown, error) {
	if err := requireSuperuser(actor); err != nil {
		return nil, err
	}
	all, err := a.categoryCounts(a.allClicks(ctx), dim)
	if err != nil {
		return nil, err
	}
	return topWithOther(all, a.limit(topN)), nil
}

func (a *Analytics) limit(topN int) int {
	if topN <= 0 {
		return a.topN
	}
	return topN
}

// LinkStats returns full per-dimension counts for one owned link. A link
// owned by someone else is reported as ErrNotFound.
func (a *Analytics) LinkStats(ctx context.Context, linkID, ownerID uint) (*LinkStats, error) {
	var link models.Link
	err := a.db.WithContext(ctx).Where("id = ? AND owner_id = ?", linkID, ownerID).Limit(1).Find(&link).Error
	if err != nil {
		return nil, fmt.Errorf("load link: %w", err)
	}
	if link.ID == 0 {
		return nil, ErrNotFound
	}

	stats := &LinkStats{
		LinkID:    link.ID,
		ShortCode: link.ShortCode,
		Tag:       link.Tag,
		CreatedAt: link.CreatedAt,
		ExpiresAt: link.ExpiresAt,
		IsExpired: link.IsExpiredAt(a.clock()),
	}

	linkClicks := func() *gorm.DB {
		return a.db.WithContext(ctx).Model(&models.Click{}).Where("clicks.link_id = ?", link.ID)
	}

	if err := linkClicks().Count(&stats.TotalClicks).Error; err != nil {
		return nil, fmt.Errorf("count clicks: %w", err)
	}

	var last []models.Click
	if err := linkClicks().Select("created_at").Order("created_at DESC").Limit(1).Find(&last).Error; err != nil {
		return nil, fmt.Errorf("last click: %w", err)
	}
	if len(last) == 1 {
		t := last[0].CreatedAt
		stats.LastClickedAt = &t
	}

	for dim, dst := range map[Dimension]*map[string]int64{
		DimensionCountry:    &stats.ByCountry,
		DimensionReferrer:   &stats.ByReferrer,
		DimensionBrowser:    &stats.ByBrowser,
		DimensionDeviceType: &stats.ByDevice,
	} {
		b, err := a.categoryCounts(linkClicks(), dim)
		if err != nil {
			return nil, err
		}
		*dst = b.Map()
	}
	return stats, nil
}

// Totals counts users, links and clicks site-wide.
func (a *Analytics) Totals(ctx context.Context, actor Principal) (*SiteTotals, error) {
	if err := requireSuperuser(actor); err != nil {
		return nil, err
	}
	var t SiteTotals
	db := a.db.WithContext(ctx)
	if err := db.Model(&models.User{}).Count(&t.Users).Error; err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if err := db.Model(&models.Link{}).Count(&t.Links).Error; err != nil {
		return nil, fmt.Errorf("count links: %w", err)
	}
	if err := db.Model(&models.Click{}).Count(&t.Clicks).Error; err != nil {
		return nil, fmt.Errorf("count clicks: %w", err)
	}
	return &t, nil
}
