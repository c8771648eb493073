// Package handler exposes the core services over HTTP with gin.
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"volunteerhub/internal/attendance"
	"volunteerhub/internal/auth"
	"volunteerhub/internal/events"
	"volunteerhub/internal/identity"
	"volunteerhub/internal/messaging"
	"volunteerhub/internal/model"
	"volunteerhub/internal/photos"
	"volunteerhub/internal/store"
)

// Handler holds the services the routes call into.
type Handler struct {
	identity *identity.Service
	events   *events.Service
	ledger   *attendance.Ledger
	messages *messaging.Log
	photos   *photos.Service
	tokens   auth.Issuer
	logger   *slog.Logger
}

// Deps lists what New needs.
type Deps struct {
	Identity *identity.Service
	Events   *events.Service
	Ledger   *attendance.Ledger
	Messages *messaging.Log
	Photos   *photos.Service
	Tokens   auth.Issuer
	Logger   *slog.Logger
}

// New creates a handler.
func New(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		identity: d.Identity,
		events:   d.Events,
		ledger:   d.Ledger,
		messages: d.Messages,
		photos:   d.Photos,
		tokens:   d.Tokens,
		logger:   logger,
	}
}

// Register mounts every /v1 route on r.
func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/v1")

	v1.POST("/auth/login", h.Login)
	v1.POST("/auth/signup", h.Signup)
	v1.POST("/auth/refresh", h.Refresh)

	authed := v1.Group("", auth.Authenticate(h.tokens))
	authed.GET("/me", h.Me)
	authed.GET("/me/attendance", auth.RequireRole(model.RoleVolunteer), h.MyAttendance)
	authed.GET("/events", h.ListEvents)
	authed.GET("/events/:id", h.GetEvent)
	authed.POST("/events/:id/register", auth.RequireRole(model.RoleVolunteer), h.RegisterForEvent)
	authed.GET("/messages", h.ListMessages)
	authed.POST("/messages", h.PostMessage)
	authed.GET("/photos", h.ListPhotos)

	admin := authed.Group("", auth.RequireRole(model.RoleAdmin))
	admin.GET("/users/pending", h.PendingUsers)
	admin.GET("/volunteers", h.SearchVolunteers)
	admin.POST("/users/:id/approve", h.ApproveUser)

	admin.POST("/events", h.CreateEvent)
	admin.PUT("/events/:id", h.UpdateEvent)
	admin.DELETE("/events/:id", h.DeleteEvent)
	admin.GET("/events/:id/roster", h.Roster)
	admin.POST("/events/:id/registrations/:volunteerId/confirm", h.ConfirmRegistration)

	admin.GET("/events/:id/attendance", h.AttendanceSheet)
	admin.POST("/events/:id/attendance", h.PostAttendance)
	admin.DELETE("/events/:id/attendance", h.DeleteAttendance)

	admin.POST("/photos", h.AddPhoto)
	admin.PUT("/photos/:id", h.UpdatePhoto)
	admin.DELETE("/photos/:id", h.DeletePhoto)
	admin.POST("/upload", h.Upload)
}

// userView is a User without its password hash.
type userView struct {
	ID       string     `json:"id"`
	Role     model.Role `json:"role"`
	Name     string     `json:"name"`
	RollNo   string     `json:"rollNo,omitempty"`
	Branch   string     `json:"branch,omitempty"`
	YearSec  string     `json:"yearSec,omitempty"`
	Phone    string     `json:"phone,omitempty"`
	Approved bool       `json:"approved"`
}

func viewUser(u model.User) userView {
	return userView{
		ID:       u.ID,
		Role:     u.Role,
		Name:     u.Name,
		RollNo:   u.RollNo,
		Branch:   u.Branch,
		YearSec:  u.YearSec,
		Phone:    u.Phone,
		Approved: u.Approved,
	}
}

func viewUsers(users []model.User) []userView {
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, viewUser(u))
	}
	return out
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// fail maps core errors onto HTTP statuses.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrUserNotFound),
		errors.Is(err, model.ErrEventNotFound),
		errors.Is(err, model.ErrRegistrationNotFound),
		errors.Is(err, model.ErrAttendanceNotFound),
		errors.Is(err, model.ErrPhotoNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrDuplicateUser),
		errors.Is(err, model.ErrAlreadyRegistered),
		errors.Is(err, store.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, model.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, model.ErrNotApproved):
		status = http.StatusForbidden
	case errors.Is(err, model.ErrNotConfirmed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrInvalidProfile),
		errors.Is(err, model.ErrInvalidEvent),
		errors.Is(err, model.ErrInvalidPhoto),
		errors.Is(err, model.ErrInvalidStatus),
		errors.Is(err, model.ErrInvalidRole),
		errors.Is(err, model.ErrEmptyMessage):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "err", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func claims(c *gin.Context) auth.Claims {
	cl, _ := auth.ClaimsFrom(c)
	return cl
}
