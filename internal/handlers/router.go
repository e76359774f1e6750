package handlers

import (
	"net/http"
	"time"

	"snaplink/internal/middleware"
	"snaplink/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (h *Handler) SetupRouter(rateLimiter *services.IPRateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(h.logger))
	r.Use(middleware.Metrics())
	corsCfg := cors.Config{
		AllowOrigins:  h.cfg.CORSAllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	}
	r.Use(cors.New(corsCfg))
	if rateLimiter != nil {
		r.Use(middleware.RateLimit(rateLimiter))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1", middleware.AuthRequired(h.identity))
	{
		api.POST("/auth/token", h.IssueToken)
		api.GET("/users/me", h.Me)
		api.DELETE("/users/me", h.DeleteAccount)

		api.POST("/links", h.CreateLink)
		api.GET("/links", h.ListLinks)
		api.GET("/links/:id", h.GetLink)
		api.DELETE("/links/:id", h.DeleteLink)
		api.PUT("/links/:id/extend", h.ExtendLink)
		api.GET("/links/:id/stats", h.LinkStats)
		api.GET("/links/:id/qr", h.LinkQRCode)

		api.GET("/analytics/clicks-over-time", h.ClicksOverTime)
		api.GET("/analytics/breakdown/:dimension", h.Breakdown)
	}

	admin := api.Group("/admin", middleware.SuperuserRequired())
	{
		admin.GET("/stats", h.AdminStats)
		admin.GET("/users", h.AdminListUsers)
		admin.POST("/users", h.AdminCreateUser)
		admin.PUT("/users/:id/active", h.AdminSetUserActive)
		admin.DELETE("/users/:id", h.AdminDeleteUser)
		admin.GET("/links", h.AdminListLinks)
		admin.GET("/links/expired", h.AdminListExpiredLinks)
		admin.DELETE("/links/:id", h.AdminDeleteLink)
		admin.GET("/registration-stats", h.AdminRegistrationStats)
		admin.GET("/analytics/clicks-over-time", h.AdminClicksOverTime)
		admin.GET("/analytics/breakdown/:dimension", h.AdminBreakdown)
	}

	r.GET("/:short_code", h.RedirectToURL)

	return r
}
