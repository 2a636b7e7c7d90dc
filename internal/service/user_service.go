package service

import (
	"context"
	"time"

	"github.com/tracklane/ticket-tracker/internal/domain"
	"github.com/tracklane/ticket-tracker/internal/policy"
	"github.com/tracklane/ticket-tracker/internal/repository"
	apperrors "github.com/tracklane/ticket-tracker/pkg/util/errorutil"
)

// UserService exposes the user directory.
type UserService struct {
	users repository.UserRepository
	storage
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository, storageTimeout time.Duration) *UserService {
	return &UserService{users: users, storage: newStorage(storageTimeout, nil)}
}

// List returns every user ordered by id. Admin only.
func (s *UserService) List(ctx context.Context, actor *domain.Actor) ([]domain.UserRef, error) {
	if !policy.Can(actor, policy.ListUsers, policy.Resource{}) {
		return nil, deny(actor, "admin role required")
	}
	callCtx, cancel := s.call(ctx)
	defer cancel()
	return s.users.List(callCtx)
}

// Get returns the public projection of one user.
func (s *UserService) Get(ctx context.Context, actor *domain.Actor, id int64) (*domain.UserRef, error) {
	if !policy.Can(actor, policy.ViewUser, policy.Resource{}) {
		return nil, deny(actor, "not allowed to view users")
	}
	callCtx, cancel := s.call(ctx)
	defer cancel()
	user, err := s.users.GetByID(callCtx, id)
	if err != nil {
		return nil, notFoundAs(err, "user", map[string]any{"user_id": id})
	}
	return &domain.UserRef{ID: user.ID, Username: user.Username}, nil
}

// deny distinguishes a missing session from an insufficient one.
func deny(actor *domain.Actor, message string) error {
	if actor == nil {
		return apperrors.NewUnauthenticated("authentication required")
	}
	return apperrors.NewForbidden(message)
}
