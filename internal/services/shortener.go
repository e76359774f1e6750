package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"snaplink/internal/config"
	"snaplink/internal/metrics"
	"snaplink/internal/models"
	"snaplink/internal/repository"
	"snaplink/pkg/utils"

	"gorm.io/gorm"
)

const (
	maxURLLength    = 2048
	maxTagLength    = 100
	maxTTLDays      = 3650
	defaultAttempts = 10
)

// LinkCache is a read-through cache of links keyed by short code.
type LinkCache interface {
	Get(ctx context.Context, code string) (*models.Link, bool, error)
	Set(ctx context.Context, link *models.Link) error
	Delete(ctx context.Context, codes ...string) error
}

type LinkFilter string

const (
	FilterAll     LinkFilter = "all"
	FilterActive  LinkFilter = "active"
	FilterExpired LinkFilter = "expired"
)

func ParseLinkFilter(s string) (LinkFilter, error) {
	switch LinkFilter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterActive:
		return FilterActive, nil
	case FilterExpired:
		return FilterExpired, nil
	}
	return "", validationErrorf("unknown link filter %q", s)
}

type CreateLinkInput struct {
	OriginalURL string
	OwnerID     uint
	Tag         string
	TTLDays     *int
}

// ShortenerService owns link records: creation with collision-safe codes,
// owner-scoped reads, expiration extension and cascading deletes.
type ShortenerService struct {
	db             *gorm.DB
	cache          LinkCache
	notifier       *Notifier
	logger         *slog.Logger
	clock          Clock
	codeGenerator  func(int) (string, error)
	baseURL        string
	codeBytes      int
	defaultTTLDays int
	maxAttempts    int
}

func NewShortenerService(db *gorm.DB, cache LinkCache, notifier *Notifier, logger *slog.Logger, clock Clock, cfg config.Config) *ShortenerService {
	s := &ShortenerService{
		db:             db,
		cache:          cache,
		notifier:       notifier,
		logger:         logger,
		clock:          clock,
		codeGenerator:  utils.GenerateShortCode,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		codeBytes:      cfg.ShortCodeBytes,
		defaultTTLDays: cfg.DefaultTTLDays,
		maxAttempts:    cfg.MaxCodeAttempts,
	}
	if s.codeBytes < utils.MinShortCodeBytes {
		s.codeBytes = utils.MinShortCodeBytes
	}
	if s.defaultTTLDays <= 0 {
		s.defaultTTLDays = 30
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultAttempts
	}
	return s
}

func validateOriginalURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", validationErrorf("original_url must not be empty")
	}
	if len(raw) > maxURLLength {
		return "", validationErrorf("original_url exceeds %d characters", maxURLLength)
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return "", validationErrorf("original_url is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", validationErrorf("original_url must use http or https")
	}
	if u.Host == "" {
		return "", validationErrorf("original_url must include a host")
	}
	return raw, nil
}

// Create stores a new link under a freshly generated short code. A candidate
// that is already taken, either by the pre-insert check or by the unique
// index rejecting the insert, is discarded and a new one generated.
func (s *ShortenerService) Create(ctx context.Context, in CreateLinkInput) (*models.Link, error) {
	originalURL, err := validateOriginalURL(in.OriginalURL)
	if err != nil {
		metrics.LinkCreationsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if in.OwnerID == 0 {
		return nil, validationErrorf("owner is required")
	}

	var tag *string
	if t := strings.TrimSpace(in.Tag); t != "" {
		if len(t) > maxTagLength {
			return nil, validationErrorf("tag exceeds %d characters", maxTagLength)
		}
		tag = &t
	}

	ttlDays := s.defaultTTLDays
	if in.TTLDays != nil {
		ttlDays = *in.TTLDays
	}
	if ttlDays <= 0 || ttlDays > maxTTLDays {
		return nil, validationErrorf("ttl_days must be between 1 and %d", maxTTLDays)
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		code, err := s.codeGenerator(s.codeBytes)
		if err != nil {
			return nil, fmt.Errorf("generate short code: %w", err)
		}

		taken, err := s.codeTaken(ctx, code)
		if err != nil {
			return nil, err
		}
		if taken {
			metrics.ShortCodeCollisionsTotal.Inc()
			s.logger.Debug("Short code collision, regenerating", "attempt", attempt)
			continue
		}

		now := s.clock()
		expiresAt := now.AddDate(0, 0, ttlDays)
		link := models.Link{
			OriginalURL: originalURL,
			ShortCode:   code,
			OwnerID:     in.OwnerID,
			Tag:         tag,
			CreatedAt:   now,
			ExpiresAt:   &expiresAt,
		}

		err = s.db.WithContext(ctx).Create(&link).Error
		if repository.IsUniqueViolation(err) {
			// Lost a race with a concurrent insert of the same code.
			metrics.ShortCodeCollisionsTotal.Inc()
			s.logger.Debug("Short code rejected by unique index, regenerating", "attempt", attempt)
			continue
		}
		if err != nil {
			metrics.LinkCreationsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("insert link: %w", err)
		}

		metrics.LinkCreationsTotal.WithLabelValues("created").Inc()
		s.notifier.Notify(&link.OwnerID, EventLinkCreated, link.ShortCode, map[string]interface{}{
			"original_url": link.OriginalURL,
		})
		return &link, nil
	}

	metrics.LinkCreationsTotal.WithLabelValues("exhausted").Inc()
	return nil, ErrCodeSpaceExhausted
}

func (s *ShortenerService) codeTaken(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Link{}).Where("short_code = ?", code).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check short code: %w", err)
	}
	return count > 0, nil
}

// GetByCode looks the code up in the cache first, then in the database.
// Cache failures degrade to a database read.
func (s *ShortenerService) GetByCode(ctx context.Context, code string) (*models.Link, error) {
	if s.cache != nil {
		link, ok, err := s.cache.Get(ctx, code)
		switch {
		case err != nil:
			metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
			s.logger.Warn("Link cache read failed", "code", code, "error", err)
		case ok:
			metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
			return link, nil
		default:
			metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		}
	}

	var link models.Link
	err := s.db.WithContext(ctx).Where("short_code = ?", code).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load link by code: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, &link); err != nil {
			s.logger.Warn("Link cache write failed", "code", code, "error", err)
		}
	}
	return &link, nil
}

// GetByIDForOwner returns ErrNotFound both for a missing link and for a link
// owned by someone else.
func (s *ShortenerService) GetByIDForOwner(ctx context.Context, id, ownerID uint) (*models.Link, error) {
	var link models.Link
	err := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load link: %w", err)
	}
	return &link, nil
}

// Exists reports whether a link row with id is present.
func (s *ShortenerService) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Link{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check link: %w", err)
	}
	return count > 0, nil
}

// ExtendExpiration sets expires_at to now + days. Superusers only.
func (s *ShortenerService) ExtendExpiration(ctx context.Context, id uint, days int, actor Principal) (*models.Link, error) {
	if err := requireSuperuser(actor); err != nil {
		return nil, err
	}
	if days <= 0 || days > maxTTLDays {
		return nil, validationErrorf("days must be between 1 and %d", maxTTLDays)
	}

	var link models.Link
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&link, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		expiresAt := s.clock().AddDate(0, 0, days)
		if err := tx.Model(&link).Update("expires_at", expiresAt).Error; err != nil {
			return err
		}
		link.ExpiresAt = &expiresAt
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("extend link: %w", err)
	}

	s.invalidate(ctx, link.ShortCode)
	s.notifier.Notify(&actor.ID, EventLinkExtended, link.ShortCode, map[string]interface{}{
		"days":       days,
		"expires_at": link.ExpiresAt,
	})
	return &link, nil
}

// Delete removes an owned link and all of its clicks in one transaction.
func (s *ShortenerService) Delete(ctx context.Context, id, ownerID uint) error {
	link, err := s.deleteWhere(ctx, "id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return err
	}
	s.notifier.Notify(&ownerID, EventLinkDeleted, link.ShortCode, nil)
	return nil
}

// AdminDelete removes any link regardless of owner. Superusers only.
func (s *ShortenerService) AdminDelete(ctx context.Context, id uint, actor Principal) error {
	if err := requireSuperuser(actor); err != nil {
		return err
	}
	link, err := s.deleteWhere(ctx, "id = ?", id)
	if err != nil {
		return err
	}
	s.notifier.Notify(&actor.ID, EventLinkDeleted, link.ShortCode, map[string]interface{}{
		"owner_id": link.OwnerID,
		"admin":    true,
	})
	return nil
}

func (s *ShortenerService) deleteWhere(ctx context.Context, query string, args ...interface{}) (*models.Link, error) {
	var link models.Link
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(query, args...).First(&link).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Where("link_id = ?", link.ID).Delete(&models.Click{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Link{}, link.ID).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("delete link: %w", err)
	}

	s.invalidate(ctx, link.ShortCode)
	return &link, nil
}

// ListForOwner returns the owner's links newest first.
func (s *ShortenerService) ListForOwner(ctx context.Context, ownerID uint, filter LinkFilter) ([]models.Link, error) {
	q := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	return s.list(q, filter)
}

// ListAll returns every link across owners newest first. Superusers only.
func (s *ShortenerService) ListAll(ctx context.Context, actor Principal, filter LinkFilter) ([]models.Link, error) {
	if err := requireSuperuser(actor); err != nil {
		return nil, err
	}
	return s.list(s.db.WithContext(ctx), filter)
}

func (s *ShortenerService) list(q *gorm.DB, filter LinkFilter) ([]models.Link, error) {
	now := s.clock()
	switch filter {
	case FilterActive:
		q = q.Where("expires_at IS NULL OR expires_at > ?", now)
	case FilterExpired:
		q = q.Where("expires_at IS NOT NULL AND expires_at <= ?", now)
	case FilterAll, "":
	default:
		return nil, validationErrorf("unknown link filter %q", filter)
	}

	var links []models.Link
	if err := q.Order("created_at DESC").Order("id DESC").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

// ClickCounts returns the click total per link id with one grouped query.
func (s *ShortenerService) ClickCounts(ctx context.Context, linkIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(linkIDs))
	if len(linkIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		LinkID uint
		Total  int64
	}
	err := s.db.WithContext(ctx).Model(&models.Click{}).
		Select("link_id, COUNT(*) AS total").
		Where("link_id IN ?", linkIDs).
		Group("link_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count clicks: %w", err)
	}
	for _, r := range rows {
		counts[r.LinkID] = r.Total
	}
	return counts, nil
}

// LinkView is a link as presented to its owner.
type LinkView struct {
	models.Link
	ShortURL      string `json:"short_url"`
	ClickCount    int64  `json:"clicks"`
	IsExpired     bool   `json:"is_expired"`
	ExpiresInDays *int   `json:"expires_in_days,omitempty"`
}

func (s *ShortenerService) Views(ctx context.Context, links []models.Link) ([]LinkView, error) {
	ids := make([]uint, len(links))
	for i, l := range links {
		ids[i] = l.ID
	}
	counts, err := s.ClickCounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	views := make([]LinkView, len(links))
	for i, l := range links {
		views[i] = newLinkView(l, counts[l.ID], now)
		views[i].ShortURL = s.ShortURL(l.ShortCode)
	}
	return views, nil
}

func (s *ShortenerService) View(ctx context.Context, link *models.Link) (LinkView, error) {
	views, err := s.Views(ctx, []models.Link{*link})
	if err != nil {
		return LinkView{}, err
	}
	return views[0], nil
}

func (s *ShortenerService) ShortURL(code string) string {
	return s.baseURL + "/" + code
}

func newLinkView(l models.Link, clicks int64, now time.Time) LinkView {
	v := LinkView{Link: l, ClickCount: clicks, IsExpired: l.IsExpiredAt(now)}
	if l.ExpiresAt != nil {
		days := 0
		if !v.IsExpired {
			days = int(l.ExpiresAt.Sub(now).Hours() / 24)
		}
		v.ExpiresInDays = &days
	}
	return v
}

// SweepExpired deletes links that expired before cutoff, with their clicks.
func (s *ShortenerService) SweepExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	var expired []models.Link
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id", "short_code").Where("expires_at IS NOT NULL AND expires_at < ?", cutoff).Find(&expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}
		ids := make([]uint, len(expired))
		for i, l := range expired {
			ids[i] = l.ID
		}
		if err := tx.Where("link_id IN ?", ids).Delete(&models.Click{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.Link{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("sweep expired links: %w", err)
	}

	if deleted > 0 {
		codes := make([]string, len(expired))
		for i, l := range expired {
			codes[i] = l.ShortCode
		}
		s.invalidate(ctx, codes...)
		s.notifier.Notify(nil, EventLinksSwept, strconv.FormatInt(deleted, 10), map[string]interface{}{
			"cutoff": cutoff,
		})
	}
	return deleted, nil
}

// Refresh drops any cached copy of code and reloads it from the database.
// It reports false when there is no cache, since GetByCode already read
// the database.
func (s *ShortenerService) Refresh(ctx context.Context, code string) (*models.Link, bool, error) {
	if s.cache == nil {
		return nil, false, nil
	}
	s.invalidate(ctx, code)
	link, err := s.GetByCode(ctx, code)
	return link, true, err
}

// Evict removes code from the cache.
func (s *ShortenerService) Evict(ctx context.Context, code string) {
	s.invalidate(ctx, code)
}

func (s *ShortenerService) invalidate(ctx context.Context, codes ...string) {
	if s.cache == nil || len(codes) == 0 {
		return
	}
	if err := s.cache.Delete(ctx, codes...); err != nil {
		s.logger.Warn("Link cache invalidation failed", "codes", codes, "error", err)
	}
}
