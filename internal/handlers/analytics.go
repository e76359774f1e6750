package handlers

import (
	"net/http"

	"snaplink/internal/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ClicksOverTime(c *gin.Context) {
	interval, err := services.ParseInterval(c.Query("interval"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	buckets, err := h.stats.ClicksOverTime(c.Request.Context(), principal(c).ID, interval)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, buckets)
}

func (h *Handler) Breakdown(c *gin.Context) {
	dim, topN, err := h.breakdownParams(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	b, err := h.stats.Breakdown(c.Request.Context(), principal(c).ID, dim, topN)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) breakdownParams(c *gin.Context) (services.Dimension, int, error) {
	dim, err := services.ParseDimension(c.Param("dimension"))
	if err != nil {
		return "", 0, err
	}
	topN, err := intQuery(c, "top_n", h.stats.DefaultTopN())
	if err != nil {
		return "", 0, err
	}
	if topN <= 0 {
		return "", 0, services.ErrValidation
	}
	return dim, topN, nil
}
