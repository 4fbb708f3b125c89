package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/apiauth/user-service/internal/cqrs"
	"github.com/apiauth/user-service/internal/middleware"
	"github.com/apiauth/user-service/internal/models"
	"github.com/apiauth/user-service/internal/query"
	"github.com/apiauth/user-service/internal/repository"
	"github.com/apiauth/user-service/internal/utils"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const (
	msgUserNotFound  = "User not found"
	msgEmailConflict = "Conflict: Email is already in use!"
	msgUserDeleted   = "User deleted successfully!"
	msgBadCreds      = "Invalid credentials"
)

// UserCommander defines the write-side operations used by UserHandler.
type UserCommander interface {
	CreateUser(context.Context, cqrs.CreateUserCommand) (*models.User, error)
	UpdateUser(context.Context, cqrs.UpdateUserCommand) (*models.User, error)
	DeleteUser(context.Context, cqrs.DeleteUserCommand) error
}

// UserQuerier defines the read-side operations used by UserHandler.
type UserQuerier interface {
	GetUser(context.Context, cqrs.GetUserQuery) (*models.User, error)
	ListUsers(context.Context, cqrs.ListUsersQuery) (models.Page[models.User], error)
}

// UserHandler routes requests to the command or query service as appropriate.
type UserHandler struct {
	commands UserCommander
	queries  UserQuerier
}

// UserRequest is the body accepted by create and update. bcrypt only hashes
// the first 72 bytes of a password, so longer ones are rejected.
type UserRequest struct {
	FirstName string `json:"firstName" validate:"required,notblank"`
	LastName  string `json:"lastName" validate:"required,notblank"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,notblank,max=72"`
}

type listRequest struct {
	Page int    `form:"page"`
	Size int    `form:"size"`
	Sort string `form:"sort"`
}

func NewUserHandler(commands UserCommander, queries UserQuerier) *UserHandler {
	return &UserHandler{commands: commands, queries: queries}
}

// RegisterRoutes mounts the /user collection on r. Registration stays open;
// auth, when given, guards every other route.
func (h *UserHandler) RegisterRoutes(r gin.IRouter, auth ...gin.HandlerFunc) {
	users := r.Group("/user")
	users.POST("", h.CreateUser)

	secured := users.Group("", auth...)
	{
		secured.GET("", h.ListUsers)
		secured.GET("/:id", h.GetUser)
		secured.PUT("/:id", h.UpdateUser)
		secured.DELETE("/:id", h.DeleteUser)
	}
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	req, ok := bindJSON[UserRequest](c)
	if !ok {
		return
	}

	user, err := h.commands.CreateUser(c.Request.Context(), cqrs.CreateUserCommand{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		respondWithServiceError(c, err, "Failed to create user")
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	var req listRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid paging parameters")
		return
	}
	q, err := cqrs.NewListUsersQuery(req.Page, req.Size, req.Sort)
	if err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.queries.ListUsers(c.Request.Context(), q)
	if err != nil {
		respondWithServiceError(c, err, "Failed to list users")
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	user, err := h.queries.GetUser(c.Request.Context(), cqrs.GetUserQuery{UserID: userID})
	if err != nil {
		respondWithServiceError(c, err, "Failed to get user")
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	req, ok := bindJSON[UserRequest](c)
	if !ok {
		return
	}

	user, err := h.commands.UpdateUser(c.Request.Context(), cqrs.UpdateUserCommand{
		UserID:    userID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		respondWithServiceError(c, err, "Failed to update user")
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	if err := h.commands.DeleteUser(c.Request.Context(), cqrs.DeleteUserCommand{UserID: userID}); err != nil {
		respondWithServiceError(c, err, "Failed to delete user")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msgUserDeleted})
}

// bindJSON decodes and validates the request body, writing the 400 response
// itself when either step fails.
func bindJSON[T any](c *gin.Context) (*T, bool) {
	var req T
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return nil, false
	}
	return &req, true
}

func userIDParam(c *gin.Context) (string, bool) {
	userID, ok := utils.ParseUserID(c.Param("id"))
	if !ok {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid user id")
		return "", false
	}
	return userID, true
}

func respondWithServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, msgUserNotFound)
	case errors.Is(err, repository.ErrEmailExists):
		middleware.RespondWithError(c, http.StatusConflict, msgEmailConflict)
	case errors.Is(err, query.ErrInvalidCredentials):
		middleware.RespondWithError(c, http.StatusUnauthorized, msgBadCreds)
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		middleware.RespondWithError(c, http.StatusBadRequest, "Password must not exceed 72 bytes")
	default:
		_ = c.Error(err)
		middleware.RespondWithError(c, http.StatusInternalServerError, fallback)
	}
}
