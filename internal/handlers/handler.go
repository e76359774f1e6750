package handlers

import (
	"log/slog"

	"snaplink/internal/config"
	"snaplink/internal/services"
)

type Handler struct {
	cfg      config.Config
	logger   *slog.Logger
	links    *services.ShortenerService
	resolver *services.Resolver
	stats    *services.Analytics
	users    *services.UserService
	identity *services.IdentityProvider
	qr       *services.QRService
}

func NewHandler(
	cfg config.Config,
	logger *slog.Logger,
	links *services.ShortenerService,
	resolver *services.Resolver,
	stats *services.Analytics,
	users *services.UserService,
	identity *services.IdentityProvider,
	qr *services.QRService,
) *Handler {
	return &Handler{
		cfg:      cfg,
		logger:   logger,
		links:    links,
		resolver: resolver,
		stats:    stats,
		users:    users,
		identity: identity,
		qr:       qr,
	}
}
