package handler

import (
	"context"
	"net/http"

	"github.com/apiauth/user-service/internal/cqrs"
	"github.com/apiauth/user-service/internal/query"
	"github.com/gin-gonic/gin"
)

// AuthQuerier issues tokens for stored users.
type AuthQuerier interface {
	Login(context.Context, cqrs.LoginCommand) (*query.AuthToken, error)
	RefreshToken(context.Context, cqrs.RefreshTokenCommand) (*query.AuthToken, error)
}

// AuthHandler exchanges a user's email and password, or a still-valid
// token, for a new bearer token.
type AuthHandler struct {
	tokens AuthQuerier
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

type refreshRequest struct {
	Token string `json:"token" validate:"required"`
}

func NewAuthHandler(tokens AuthQuerier) *AuthHandler {
	return &AuthHandler{tokens: tokens}
}

func (h *AuthHandler) RegisterRoutes(r gin.IRouter) {
	auth := r.Group("/auth")
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.RefreshToken)
}

func (h *AuthHandler) Login(c *gin.Context) {
	req, ok := bindJSON[LoginRequest](c)
	if !ok {
		return
	}
	tok, err := h.tokens.Login(c.Request.Context(), cqrs.LoginCommand{Email: req.Email, Password: req.Password})
	if err != nil {
		respondWithServiceError(c, err, "Failed to log in")
		return
	}
	c.JSON(http.StatusOK, tok)
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	req, ok := bindJSON[refreshRequest](c)
	if !ok {
		return
	}
	tok, err := h.tokens.RefreshToken(c.Request.Context(), cqrs.RefreshTokenCommand{Token: req.Token})
	if err != nil {
		respondWithServiceError(c, err, "Failed to refresh token")
		return
	}
	c.JSON(http.StatusOK, tok)
}
