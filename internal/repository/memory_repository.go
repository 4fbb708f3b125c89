package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/apiauth/user-service/internal/cqrs"
	"github.com/apiauth/user-service/internal/models"
)

// MemoryUserRepository is a process-local UserStore. A single mutex covers
// both indexes, so the email check and the insert are atomic.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]models.User
	byEmail map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]models.User),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return ErrEmailExists
	}
	r.byID[user.ID] = *user
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	if owner, taken := r.byEmail[user.Email]; taken && owner != user.ID {
		return ErrEmailExists
	}

	updated := *user
	updated.RegistrationDate = current.RegistrationDate
	delete(r.byEmail, current.Email)
	r.byID[user.ID] = updated
	r.byEmail[updated.Email] = user.ID
	return nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(r.byID, id)
	delete(r.byEmail, user.Email)
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func (r *MemoryUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	id, ok := r.byEmail[email]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrUserNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryUserRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byEmail[email]
	return ok, nil
}

func (r *MemoryUserRepository) List(_ context.Context, q cqrs.ListUsersQuery) ([]models.User, int64, error) {
	r.mu.RLock()
	users := make([]models.User, 0, len(r.byID))
	for _, u := range r.byID {
		users = append(users, u)
	}
	r.mu.RUnlock()

	less := fieldLess(q.SortField)
	desc := q.SortDir == cqrs.SortDesc
	sort.Slice(users, func(i, j int) bool {
		a, b := users[i], users[j]
		if c := less(a, b); c != 0 {
			if desc {
				return c > 0
			}
			return c < 0
		}
		return a.ID < b.ID
	})

	total := int64(len(users))
	start := q.Offset()
	if start < 0 || start >= len(users) {
		return []models.User{}, total, nil
	}
	end := len(users)
	if q.Size < end-start {
		end = start + q.Size
	}
	return users[start:end], total, nil
}

// fieldLess returns a three-way comparison on the named sort field.
func fieldLess(field string) func(a, b models.User) int {
	switch field {
	case "firstName":
		return func(a, b models.User) int { return strings.Compare(a.FirstName, b.FirstName) }
	case "lastName":
		return func(a, b models.User) int { return strings.Compare(a.LastName, b.LastName) }
	case "email":
		return func(a, b models.User) int { return strings.Compare(a.Email, b.Email) }
	case "registrationDate":
		return func(a, b models.User) int { return a.RegistrationDate.Compare(b.RegistrationDate) }
	default:
		return func(a, b models.User) int { return strings.Compare(a.ID, b.ID) }
	}
}
