package repository

import (
	"context"
	"errors"

	"github.com/apiauth/user-service/internal/cqrs"
	"github.com/apiauth/user-service/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
)

// UserStore is durable keyed storage for user records.
// Implementations must reject a second record with an existing email with
// ErrEmailExists, including under concurrent writers.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	List(ctx context.Context, q cqrs.ListUsersQuery) ([]models.User, int64, error)
}
