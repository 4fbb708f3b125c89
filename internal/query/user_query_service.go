package query

import (
	"context"

	"github.com/apiauth/user-service/internal/cqrs"
	"github.com/apiauth/user-service/internal/models"
)

// UserReader is the read-side store used by UserQueryService.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, q cqrs.ListUsersQuery) ([]models.User, int64, error)
}

// UserQueryService reads users through the cached read repository.
type UserQueryService struct {
	readRepo UserReader
}

func NewUserQueryService(readRepo UserReader) *UserQueryService {
	return &UserQueryService{readRepo: readRepo}
}

func (s *UserQueryService) GetUser(ctx context.Context, q cqrs.GetUserQuery) (*models.User, error) {
	return s.readRepo.GetByID(ctx, q.UserID)
}

func (s *UserQueryService) ListUsers(ctx context.Context, q cqrs.ListUsersQuery) (models.Page[models.User], error) {
	users, total, err := s.readRepo.List(ctx, q)
	if err != nil {
		return models.Page[models.User]{}, err
	}
	return models.NewPage(users, q.Page, q.Size, total, models.Sort{Field: q.SortField, Direction: q.SortDir}), nil
}
