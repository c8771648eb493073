package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListMessages returns the log, or only what followed ?after=<id>.
func (h *Handler) ListMessages(c *gin.Context) {
	msgs, err := h.messages.Since(c.Request.Context(), c.Query("after"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage appends as the calling user, who must be approved.
func (h *Handler) PostMessage(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	u, err := h.identity.RequireApproved(ctx, claims(c).UserID())
	if err != nil {
		h.fail(c, err)
		return
	}
	msg, err := h.messages.Post(ctx, u.ID, u.Name, u.Role, req.Text)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
