// Package service holds the business rules that sit between HTTP handlers and repositories.
package service

import (
	"context"
	"errors"

	"blogapi/internal/hashing"
	"blogapi/internal/models"
	"blogapi/internal/repository"
	"blogapi/internal/validation"
)

// MsgInvalidCredentials is the message returned for any failed login.
const MsgInvalidCredentials = "Invalid username or password"

type AuthService struct {
	users  repository.UserRepository
	hasher hashing.Hasher
}

type RegisterInput struct {
	Username string
	Password string
}

type LoginInput struct {
	Username string
	Password string
}

func NewAuthService(users repository.UserRepository, hasher hashing.Hasher) *AuthService {
	return &AuthService{users: users, hasher: hasher}
}

// Register creates a non-admin user. A taken username is a conflict; the
// unique index catches registrations that race past the lookup.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	username := in.Username
	if err := validation.ValidateCredentials(username, in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Username already exists")
	}

	hash, err := s.hasher.Make(in.Password)
	if err != nil {
		if errors.Is(err, hashing.ErrPasswordTooLong) {
			return nil, models.NewValidationError("password is too long")
		}
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: username,
		Password: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate verifies credentials. Unknown users and wrong passwords are
// indistinguishable to the caller.
func (s *AuthService) Authenticate(ctx context.Context, in LoginInput) (*models.User, error) {
	username := in.Username
	if username == "" || in.Password == "" {
		return nil, models.NewValidationError("username and password are required")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError(MsgInvalidCredentials)
	}

	ok, err := s.hasher.Check(in.Password, user.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if !ok {
		return nil, models.NewUnauthorizedError(MsgInvalidCredentials)
	}

	s.rehashIfNeeded(ctx, user, in.Password)
	return user, nil
}

// rehashIfNeeded upgrades hashes made with an older BCRYPT_COST. Failures keep the old hash.
func (s *AuthService) rehashIfNeeded(ctx context.Context, user *models.User, password string) {
	needs, err := s.hasher.NeedsRehash(user.Password)
	if err != nil || !needs {
		return
	}
	hash, err := s.hasher.Make(password)
	if err != nil {
		return
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err == nil {
		user.Password = hash
	}
}

// LoadUser resolves a session's user id. A missing user is (nil, nil).
func (s *AuthService) LoadUser(ctx context.Context, id uint) (*models.User, error) {
	if id == 0 {
		return nil, nil
	}
	return s.users.GetByID(ctx, id)
}
