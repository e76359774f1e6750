package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"unicode/utf8"

	"snaplink/internal/models"

	"gorm.io/gorm"
)

// GeoLookup maps an address to an ISO country code when one is known.
type GeoLookup interface {
	Lookup(ip string) (string, bool)
}

type ClickInput struct {
	LinkID    uint
	IPAddress string
	UserAgent string
	Referrer  string
}

// ClickIngestor appends one analytics row per resolution.
type ClickIngestor struct {
	db         *gorm.DB
	classifier UserAgentClassifier
	geo        GeoLookup
	logger     *slog.Logger
	clock      Clock
	maskIPs    bool
}

// NewClickIngestor accepts a nil geo lookup, in which case country is always
// stored as NULL.
func NewClickIngestor(db *gorm.DB, classifier UserAgentClassifier, geo GeoLookup, logger *slog.Logger, clock Clock, maskIPs bool) *ClickIngestor {
	return &ClickIngestor{
		db:         db,
		classifier: classifier,
		geo:        geo,
		logger:     logger,
		clock:      clock,
		maskIPs:    maskIPs,
	}
}

// Record validates that the link still exists and inserts the click in the
// same transaction, so a concurrent delete either sees the click and removes
// it or causes Record to fail with ErrNotFound.
func (c *ClickIngestor) Record(ctx context.Context, in ClickInput) (*models.Click, error) {
	click := c.enrich(in)

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Link{}).Where("id = ?", in.LinkID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return tx.Create(click).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("insert click: %w", err)
	}
	return click, nil
}

func (c *ClickIngestor) enrich(in ClickInput) *models.Click {
	info := UserAgentInfo{BrowserFamily: unknownBrowser}
	if c.classifier != nil {
		info = c.classifier.Classify(in.UserAgent)
	}
	browser := truncate(info.BrowserFamily, 100)
	if browser == "" {
		browser = unknownBrowser
	}

	click := &models.Click{
		LinkID:     in.LinkID,
		CreatedAt:  c.clock(),
		Browser:    &browser,
		DeviceType: DeviceType(info),
		Referrer:   optional(truncate(in.Referrer, 512)),
	}

	// Anything that is not an address is stored as NULL.
	ip := ""
	if parsed := net.ParseIP(strings.TrimSpace(in.IPAddress)); parsed != nil {
		ip = parsed.String()
	}
	if c.geo != nil && ip != "" {
		if code, ok := c.geo.Lookup(ip); ok {
			click.Country = &code
		}
	}
	if c.maskIPs {
		ip = maskIP(ip)
	}
	click.IPAddress = optional(ip)
	return click
}

// maskIP zeroes the host part of an address: the last octet for IPv4 and
// everything past the /48 for IPv6.
func maskIP(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String()
	}
	return parsed.Mask(net.CIDRMask(48, 128)).String()
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// truncate drops invalid UTF-8 and cuts s to at most n bytes on a rune
// boundary.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
