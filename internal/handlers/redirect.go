package handlers

import (
	"net/http"

	"snaplink/internal/middleware"
	"snaplink/internal/services"

	"github.com/gin-gonic/gin"
)

// RedirectToURL resolves a short code: 307 to the destination, 410 once the
// link has expired, 404 for unknown codes.
func (h *Handler) RedirectToURL(c *gin.Context) {
	res, err := h.resolver.Resolve(c.Request.Context(), services.ResolveRequest{
		Code:      c.Param("short_code"),
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
		ClientIP:  middleware.ClientIP(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	switch res.Outcome {
	case services.OutcomeRedirect:
		c.Header("Cache-Control", "no-store")
		c.Redirect(http.StatusTemporaryRedirect, res.Target)
	case services.OutcomeExpired:
		c.JSON(http.StatusGone, gin.H{"error": "Link expired"})
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
	}
}
