package service

import (
	"context"
	"errors"

	"charterly/internal/domain"
	"charterly/internal/models"

	"github.com/rs/zerolog"
)

// UserService keeps the local mirror of identity-provider users.
type UserService struct {
	repo   domain.UserRepository
	logger *zerolog.Logger
}

func NewUserService(repo domain.UserRepository, logger *zerolog.Logger) *UserService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &UserService{repo: repo, logger: logger}
}

// EnsureUser returns the local row for the actor, creating it from the
// session claims when it does not exist yet.
func (s *UserService) EnsureUser(ctx context.Context, actor domain.Actor) (*models.User, error) {
	if !actor.Authenticated() {
		return nil, domain.ErrUnauthorized
	}

	user, err := s.repo.GetUserByID(ctx, actor.UserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	user = &models.User{
		ID:            actor.UserID,
		Role:          actor.Role,
		PhoneVerified: actor.PhoneVerified,
	}
	if err := s.repo.UpsertUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", user.ID).Msg("Mirrored user from session")
	return user, nil
}

// GetProfile returns the caller's local user row.
func (s *UserService) GetProfile(ctx context.Context, actor domain.Actor) (*models.User, error) {
	return s.EnsureUser(ctx, actor)
}
