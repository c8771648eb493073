package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"volunteerhub/internal/model"
)

// AttendanceSheet returns the marking sheet and, once something was
// posted, the stored tally.
func (h *Handler) AttendanceSheet(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	sheet, err := h.ledger.Sheet(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := gin.H{"sheet": sheet, "recorded": false}
	tally, err := h.ledger.Tally(ctx, id)
	switch {
	case err == nil:
		resp["recorded"] = true
		resp["tally"] = tally
	case !errors.Is(err, model.ErrAttendanceNotFound):
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type postAttendanceRequest struct {
	Marks map[string]string `json:"marks"`
}

func (h *Handler) PostAttendance(c *gin.Context) {
	var req postAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	marks := make(model.AttendanceRecord, len(req.Marks))
	for vid, raw := range req.Marks {
		st, err := model.ParseAttendanceStatus(raw)
		if err != nil {
			h.fail(c, err)
			return
		}
		marks[vid] = st
	}
	rec, err := h.ledger.Post(c.Request.Context(), c.Param("id"), marks)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": rec})
}

func (h *Handler) DeleteAttendance(c *gin.Context) {
	if err := h.ledger.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
