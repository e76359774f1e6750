package services

import (
	"context"
	"errors"
	"log/slog"

	"snaplink/internal/metrics"
	"snaplink/internal/models"
)

type Outcome int

const (
	OutcomeNotFound Outcome = iota
	OutcomeExpired
	OutcomeRedirect
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRedirect:
		return "redirect"
	case OutcomeExpired:
		return "expired"
	default:
		return "not_found"
	}
}

type ResolveRequest struct {
	Code      string
	UserAgent string
	Referrer  string
	ClientIP  string
}

type Resolution struct {
	Outcome Outcome
	Link    *models.Link
	Target  string
}

// Resolver turns a short code into a terminal outcome. Only a redirect
// records a click, and the expiration check always runs first.
type Resolver struct {
	links  *ShortenerService
	clicks *ClickIngestor
	logger *slog.Logger
	clock  Clock
}

func NewResolver(links *ShortenerService, clicks *ClickIngestor, logger *slog.Logger, clock Clock) *Resolver {
	return &Resolver{links: links, clicks: clicks, logger: logger, clock: clock}
}

// Resolve returns an error only for storage failures while loading the link.
// A failed click write is logged and counted but never changes the outcome,
// except when it shows the link has been deleted.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) (Resolution, error) {
	link, err := r.links.GetByCode(ctx, req.Code)
	if errors.Is(err, ErrNotFound) {
		return r.notFound(), nil
	}
	if err != nil {
		return Resolution{}, err
	}

	now := r.clock()
	if link.IsExpiredAt(now) {
		// A cached copy can predate an extension.
		fresh, reloaded, err := r.links.Refresh(ctx, req.Code)
		switch {
		case !reloaded:
		case errors.Is(err, ErrNotFound):
			return r.notFound(), nil
		case err != nil:
			return Resolution{}, err
		default:
			link = fresh
		}
	}
	if link.IsExpiredAt(now) {
		metrics.ResolutionsTotal.WithLabelValues(OutcomeExpired.String()).Inc()
		return Resolution{Outcome: OutcomeExpired, Link: link}, nil
	}

	_, err = r.clicks.Record(ctx, ClickInput{
		LinkID:    link.ID,
		IPAddress: req.ClientIP,
		UserAgent: req.UserAgent,
		Referrer:  req.Referrer,
	})
	if errors.Is(err, ErrNotFound) {
		// The row is gone; whatever served it is stale.
		r.links.Evict(ctx, link.ShortCode)
		return r.notFound(), nil
	}
	if err != nil {
		metrics.ClickIngestFailuresTotal.Inc()
		r.logger.Error("Failed to record click", "code", link.ShortCode, "link_id", link.ID, "error", err)
	}

	metrics.ResolutionsTotal.WithLabelValues(OutcomeRedirect.String()).Inc()
	return Resolution{Outcome: OutcomeRedirect, Link: link, Target: link.OriginalURL}, nil
}

func (r *Resolver) notFound() Resolution {
	metrics.ResolutionsTotal.WithLabelValues(OutcomeNotFound.String()).Inc()
	return Resolution{Outcome: OutcomeNotFound}
}
