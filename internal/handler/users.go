package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"volunteerhub/internal/auth"
	"volunteerhub/internal/identity"
	"volunteerhub/internal/model"
)

type loginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

type sessionResponse struct {
	User   userView       `json:"user"`
	Tokens auth.TokenPair `json:"tokens"`
}

func (h *Handler) session(c *gin.Context, status int, u model.User) {
	pair, err := h.tokens.Issue(u)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(status, sessionResponse{User: viewUser(u), Tokens: pair})
}

// Login authenticates by admin name or volunteer roll number. Unapproved
// volunteers get a session too; the client shows them a pending state.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	u, err := h.identity.Login(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.session(c, http.StatusOK, u)
}

func (h *Handler) Signup(c *gin.Context) {
	var p identity.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err.Error())
		return
	}
	u, err := h.identity.Signup(c.Request.Context(), p)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.session(c, http.StatusCreated, u)
}

// Refresh trades a refresh token for a new pair carrying current user data.
func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	cl, err := h.tokens.ParseRefresh(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	u, err := h.identity.User(c.Request.Context(), cl.UserID())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.session(c, http.StatusOK, u)
}

func (h *Handler) Me(c *gin.Context) {
	u, err := h.identity.User(c.Request.Context(), claims(c).UserID())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewUser(u))
}

func (h *Handler) MyAttendance(c *gin.Context) {
	hist, err := h.ledger.History(c.Request.Context(), claims(c).UserID())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": hist})
}

func (h *Handler) PendingUsers(c *gin.Context) {
	users, err := h.identity.PendingVolunteers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": viewUsers(users)})
}

func (h *Handler) SearchVolunteers(c *gin.Context) {
	users, err := h.identity.Volunteers(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": viewUsers(users)})
}

func (h *Handler) ApproveUser(c *gin.Context) {
	if err := h.identity.ApproveUser(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
