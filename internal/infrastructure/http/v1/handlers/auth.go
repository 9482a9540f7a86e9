package handlers

import (
	"github.com/gin-gonic/gin"

	"club19/internal/domain/identity"
)

// AuthHandler serves authentication endpoints.
type AuthHandler struct {
	*BaseHandler
	identity *identity.Service
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(base *BaseHandler, svc *identity.Service) *AuthHandler {
	return &AuthHandler{BaseHandler: base, identity: svc}
}

// Login authenticates a user and returns an access token.
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req identity.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	resp, err := h.identity.Login(c.Request.Context(), req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, resp)
}
