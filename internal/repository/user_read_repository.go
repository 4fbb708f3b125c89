package repository

import (
	"context"

	"github.com/apiauth/user-service/internal/cqrs"
	"github.com/apiauth/user-service/internal/models"
	sharedredis "github.com/apiauth/user-service/internal/redis"
)

// UserReadRepository serves reads. Single-user lookups go to the Redis view
// cache first and fall back to the store; listings always hit the store.
// A nil cache disables caching.
type UserReadRepository struct {
	store UserStore
	cache *sharedredis.ViewCache[models.User]
}

func NewUserReadRepository(store UserStore, cache *sharedredis.ViewCache[models.User]) *UserReadRepository {
	return &UserReadRepository{store: store, cache: cache}
}

// GetByID returns a user from Redis first, then the store.
func (r *UserReadRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if r.cache != nil {
		if user, ok := r.cache.Get(ctx, id); ok {
			return user, nil
		}
	}

	user, err := r.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Warm the cache
	r.CacheUser(ctx, user)
	return user, nil
}

func (r *UserReadRepository) List(ctx context.Context, q cqrs.ListUsersQuery) ([]models.User, int64, error) {
	return r.store.List(ctx, q)
}

// CacheUser stores or refreshes the cached copy of a user.
// Called by the command service after every create and update.
func (r *UserReadRepository) CacheUser(ctx context.Context, user *models.User) {
	if r.cache == nil {
		return
	}
	r.cache.Set(ctx, user.ID, user)
}

// InvalidateUser drops the cached copy of a deleted user.
func (r *UserReadRepository) InvalidateUser(ctx context.Context, id string) {
	if r.cache == nil {
		return
	}
	r.cache.Delete(ctx, id)
}
