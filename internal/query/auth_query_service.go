package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apiauth/user-service/internal/cqrs"
	"github.com/apiauth/user-service/internal/middleware"
	"github.com/apiauth/user-service/internal/models"
	"github.com/apiauth/user-service/internal/repository"
	"github.com/apiauth/user-service/internal/utils"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCredentials covers an unknown email, a wrong password, and a
// token that no longer maps to a stored user.
var ErrInvalidCredentials = errors.New("invalid credentials")

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 24 * time.Hour

// UserFinder is the slice of the user store that login and refresh read.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// AuthToken is a signed bearer token for one stored user.
type AuthToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthQueryService issues the tokens accepted by middleware.AuthMiddleware.
type AuthQueryService struct {
	users  UserFinder
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthQueryService(users UserFinder, secret []byte, ttl time.Duration) *AuthQueryService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &AuthQueryService{users: users, secret: secret, ttl: ttl, now: time.Now}
}

func (s *AuthQueryService) Login(ctx context.Context, cmd cqrs.LoginCommand) (*AuthToken, error) {
	user, err := s.lookup(s.users.FindByEmail(ctx, cmd.Email))
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(cmd.Password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

// RefreshToken reissues a still-valid token, re-reading the user so deleted
// accounts stop getting tokens and a changed email is picked up.
func (s *AuthQueryService) RefreshToken(ctx context.Context, cmd cqrs.RefreshTokenCommand) (*AuthToken, error) {
	claims := &middleware.Claims{}
	token, err := jwt.ParseWithClaims(cmd.Token, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredentials
	}

	user, err := s.lookup(s.users.GetByID(ctx, claims.UserID))
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthQueryService) lookup(user *models.User, err error) (*models.User, error) {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return nil, ErrInvalidCredentials
	case err != nil:
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

func (s *AuthQueryService) issue(user *models.User) (*AuthToken, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := middleware.Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &AuthToken{Token: signed, UserID: user.ID, ExpiresAt: expiresAt.UTC().Truncate(time.Second)}, nil
}
