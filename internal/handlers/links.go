package handlers

import (
	"net/http"

	"snaplink/internal/services"

	"github.com/gin-gonic/gin"
)

type CreateLinkRequest struct {
	OriginalURL string `json:"original_url" binding:"required"`
	Tag         string `json:"tag,omitempty"`
	TTLDays     *int   `json:"ttl_days,omitempty"`
}

func (h *Handler) CreateLink(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	link, err := h.links.Create(ctx, services.CreateLinkInput{
		OriginalURL: req.OriginalURL,
		OwnerID:     principal(c).ID,
		Tag:         req.Tag,
		TTLDays:     req.TTLDays,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	view, err := h.links.View(ctx, link)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) ListLinks(c *gin.Context) {
	filter, err := services.ParseLinkFilter(c.Query("filter"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	links, err := h.links.ListForOwner(ctx, principal(c).ID, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	views, err := h.links.Views(ctx, links)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) GetLink(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	link, err := h.links.GetByIDForOwner(ctx, id, principal(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	view, err := h.links.View(ctx, link)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) DeleteLink(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.links.Delete(c.Request.Context(), id, principal(c).ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ExtendLink is reachable by any authenticated caller; the service enforces
// the superuser requirement.
func (h *Handler) ExtendLink(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	days, err := intQuery(c, "days", 30)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	link, err := h.links.ExtendExpiration(ctx, id, days, principal(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	view, err := h.links.View(ctx, link)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) LinkStats(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	stats, err := h.stats.LinkStats(c.Request.Context(), id, principal(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) LinkQRCode(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	size, err := intQuery(c, "size", services.DefaultQRSize)
	if err != nil {
		h.respondError(c, err)
		return
	}

	link, err := h.links.GetByIDForOwner(c.Request.Context(), id, principal(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	opts := services.QROptions{
		Content: h.links.ShortURL(link.ShortCode),
		Size:    size,
		FgColor: c.Query("fg"),
		BgColor: c.Query("bg"),
	}
	if c.Query("format") == "svg" {
		svg, err := h.qr.SVG(opts)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.Data(http.StatusOK, "image/svg+xml", []byte(svg))
		return
	}

	png, err := h.qr.PNG(opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
