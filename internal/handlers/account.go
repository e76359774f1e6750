package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// IssueToken exchanges the caller's current credential for a bearer token.
func (h *Handler) IssueToken(c *gin.Context) {
	tok, err := h.identity.IssueToken(principal(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": tok,
		"token_type":   "Bearer",
		"expires_in":   int(h.cfg.TokenTTL.Seconds()),
	})
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), principal(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeleteAccount removes the caller together with all of their links and clicks.
func (h *Handler) DeleteAccount(c *gin.Context) {
	p := principal(c)
	if err := h.users.Delete(c.Request.Context(), p, p.ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
