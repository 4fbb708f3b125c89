package command

import (
	"context"
	"fmt"
	"time"

	"github.com/apiauth/user-service/internal/cqrs"
	"github.com/apiauth/user-service/internal/events"
	"github.com/apiauth/user-service/internal/models"
	"github.com/apiauth/user-service/internal/repository"
	"github.com/apiauth/user-service/internal/utils"
	"github.com/sirupsen/logrus"
)

// UserStore is the write-side persistence used by UserCommandService.
type UserStore interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

// UserViewCache keeps the read side in step with writes.
type UserViewCache interface {
	CacheUser(ctx context.Context, user *models.User)
	InvalidateUser(ctx context.Context, id string)
}

// UserCommandService owns every user mutation. Each successful write is
// followed by a notification; the notification is not part of the write, so
// a publish failure is reported to the caller but the write stands.
type UserCommandService struct {
	store    UserStore
	views    UserViewCache
	notifier events.Notifier
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewUserCommandService(
	store UserStore,
	views UserViewCache,
	notifier events.Notifier,
	log logrus.FieldLogger,
) *UserCommandService {
	return &UserCommandService{
		store:    store,
		views:    views,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

func (s *UserCommandService) CreateUser(ctx context.Context, cmd cqrs.CreateUserCommand) (*models.User, error) {
	exists, err := s.store.ExistsByEmail(ctx, cmd.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, repository.ErrEmailExists
	}

	passwordHash, err := utils.HashPassword(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		ID:               utils.GenerateID(),
		FirstName:        cmd.FirstName,
		LastName:         cmd.LastName,
		Email:            cmd.Email,
		Password:         passwordHash,
		RegistrationDate: s.now().UTC(),
	}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}
	s.views.CacheUser(ctx, user)

	if err := s.notify(ctx, events.UserCreated, user, events.UserCreatedMessage); err != nil {
		return nil, err
	}
	s.log.WithField("user_id", user.ID).Info("user created")
	return user, nil
}

// UpdateUser rebuilds the user from the command, keeping the original id and
// registration date. The new email is not checked against other users here;
// the store's uniqueness constraint is the only guard.
func (s *UserCommandService) UpdateUser(ctx context.Context, cmd cqrs.UpdateUserCommand) (*models.User, error) {
	existing, err := s.store.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	passwordHash, err := utils.HashPassword(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		ID:               existing.ID,
		FirstName:        cmd.FirstName,
		LastName:         cmd.LastName,
		Email:            cmd.Email,
		Password:         passwordHash,
		RegistrationDate: existing.RegistrationDate,
	}
	if err := s.store.Update(ctx, user); err != nil {
		return nil, err
	}
	s.views.CacheUser(ctx, user)

	if err := s.notify(ctx, events.UserUpdated, user, events.UserUpdatedMessage); err != nil {
		return nil, err
	}
	s.log.WithField("user_id", user.ID).Info("user updated")
	return user, nil
}

func (s *UserCommandService) DeleteUser(ctx context.Context, cmd cqrs.DeleteUserCommand) error {
	existing, err := s.store.GetByID(ctx, cmd.UserID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, existing.ID); err != nil {
		return err
	}
	s.views.InvalidateUser(ctx, existing.ID)

	if err := s.notify(ctx, events.UserDeleted, existing, events.UserDeletedMessage); err != nil {
		return err
	}
	s.log.WithField("user_id", existing.ID).Info("user deleted")
	return nil
}

func (s *UserCommandService) notify(ctx context.Context, eventType string, user *models.User, message string) error {
	err := s.notifier.Publish(ctx, eventType, user.ID, events.UserNotification{
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		Message:   message,
	})
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"type": eventType, "user_id": user.ID}).Error("failed to publish notification")
		return fmt.Errorf("failed to publish %s notification: %w", eventType, err)
	}
	return nil
}
