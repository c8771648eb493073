package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"volunteerhub/internal/events"
	"volunteerhub/internal/model"
)

type eventView struct {
	model.Event
	ConfirmedCount int `json:"confirmedCount"`
}

func viewEvent(e model.Event) eventView {
	return eventView{Event: e, ConfirmedCount: e.Confirmed()}
}

func (h *Handler) ListEvents(c *gin.Context) {
	list, err := h.events.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]eventView, 0, len(list))
	for _, e := range list {
		out = append(out, viewEvent(e))
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

func (h *Handler) GetEvent(c *gin.Context) {
	e, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewEvent(e))
}

func (h *Handler) CreateEvent(c *gin.Context) {
	var d events.Details
	if err := c.ShouldBindJSON(&d); err != nil {
		badRequest(c, err.Error())
		return
	}
	e, err := h.events.CreateEvent(c.Request.Context(), d)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewEvent(e))
}

func (h *Handler) UpdateEvent(c *gin.Context) {
	var d events.Details
	if err := c.ShouldBindJSON(&d); err != nil {
		badRequest(c, err.Error())
		return
	}
	e, err := h.events.UpdateEvent(c.Request.Context(), c.Param("id"), d)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewEvent(e))
}

func (h *Handler) DeleteEvent(c *gin.Context) {
	if err := h.events.DeleteEvent(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RegisterForEvent registers the calling volunteer.
func (h *Handler) RegisterForEvent(c *gin.Context) {
	if err := h.events.RegisterForEvent(c.Request.Context(), c.Param("id"), claims(c).UserID()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": model.RegistrationPending})
}

func (h *Handler) Roster(c *gin.Context) {
	r, err := h.events.Roster(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pending":   viewUsers(r.Pending),
		"confirmed": viewUsers(r.Confirmed),
	})
}

func (h *Handler) ConfirmRegistration(c *gin.Context) {
	if err := h.events.ConfirmRegistration(c.Request.Context(), c.Param("id"), c.Param("volunteerId")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": model.RegistrationConfirmed})
}
