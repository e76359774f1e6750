package handlers

import (
	"net/http"

	"snaplink/internal/models"
	"snaplink/internal/services"

	"github.com/gin-gonic/gin"
)

type CreateUserRequest struct {
	Email       string `json:"email" binding:"required"`
	IsSuperuser bool   `json:"is_superuser"`
}

type SetActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// userWithKey exposes the API key once, at creation time.
type userWithKey struct {
	models.User
	APIKey string `json:"api_key"`
}

func (h *Handler) AdminStats(c *gin.Context) {
	totals, err := h.stats.Totals(c.Request.Context(), principal(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

func (h *Handler) AdminListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context(), principal(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) AdminCreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.users.Create(c.Request.Context(), req.Email, req.IsSuperuser)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, userWithKey{User: *user, APIKey: user.APIKey})
}

func (h *Handler) AdminSetUserActive(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.SetActive(c.Request.Context(), principal(c), id, *req.IsActive)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) AdminDeleteUser(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.users.Delete(c.Request.Context(), principal(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AdminListLinks(c *gin.Context) {
	filter, err := services.ParseLinkFilter(c.Query("filter"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.adminLinks(c, filter)
}

func (h *Handler) AdminListExpiredLinks(c *gin.Context) {
	h.adminLinks(c, services.FilterExpired)
}

func (h *Handler) adminLinks(c *gin.Context, filter services.LinkFilter) {
	ctx := c.Request.Context()
	links, err := h.links.ListAll(ctx, principal(c), filter)
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

func (h *Handler) AdminDeleteLink(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.links.AdminDelete(c.Request.Context(), id, principal(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AdminRegistrationStats(c *gin.Context) {
	interval, err := services.ParseInterval(c.Query("interval"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	buckets, err := h.stats.RegistrationStats(c.Request.Context(), principal(c), interval)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, buckets)
}

func (h *Handler) AdminClicksOverTime(c *gin.Context) {
	interval, err := services.ParseInterval(c.Query("interval"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	buckets, err := h.stats.SiteClicksOverTime(c.Request.Context(), principal(c), interval)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, buckets)
}

func (h *Handler) AdminBreakdown(c *gin.Context) {
	dim, topN, err := h.breakdownParams(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	b, err := h.stats.SiteBreakdown(c.Request.Context(), principal(c), dim, topN)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
