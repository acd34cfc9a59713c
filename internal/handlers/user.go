package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"civicpulse/internal/middleware"
	"civicpulse/internal/services"
)

type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// Login saves the user on first sign-in and refreshes loggedInAt afterwards.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		UID   string `json:"uid"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Image string `json:"image"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid user")
		return
	}
	user, err := h.users.Login(c.Request.Context(), services.Profile{
		UID:   req.UID,
		Name:  req.Name,
		Email: req.Email,
		Image: req.Image,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// Role returns the role of the token's owner.
func (h *UserHandler) Role(c *gin.Context) {
	email := middleware.TokenEmail(c)
	role, err := h.users.Role(c.Request.Context(), email)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": email, "role": role})
}

func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("email"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Block 封禁或解封用户
func (h *UserHandler) Block(c *gin.Context) {
	var req struct {
		Email     string `json:"email"`
		IsBlocked bool   `json:"isBlocked"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid block request")
		return
	}
	if err := h.users.SetBlocked(c.Request.Context(), req.Email, req.IsBlocked, middleware.TokenEmail(c)); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "email": req.Email, "isBlocked": req.IsBlocked})
}
