package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/avdoshkin/smile-crm/internal/apperr"
	"github.com/avdoshkin/smile-crm/internal/logging"
	"github.com/avdoshkin/smile-crm/internal/models"
	"github.com/avdoshkin/smile-crm/internal/repo"
)

// Role and active-flag preconditions for the administrative operations below
// live at the route gate; the service trusts an already-authorized caller.

func (s *AuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user *models.User
	err := s.inTx(ctx, func(r *repo.GormRepo) error {
		u, err := r.FindUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if !u.IsActive {
			return apperr.ErrNotActive
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user *models.User
	err := s.inTx(ctx, func(r *repo.GormRepo) error {
		u, err := r.FindUserByID(ctx, id)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) ListUsers(ctx context.Context, filter repo.UsersFilter, page, size int) ([]models.User, error) {
	var users []models.User
	err := s.inTx(ctx, func(r *repo.GormRepo) error {
		list, err := r.ListUsers(ctx, filter, page, size)
		if err != nil {
			return err
		}
		users = list
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, apperr.ErrNotFound
	}
	return users, nil
}

func (s *AuthService) UpdateUser(ctx context.Context, id uuid.UUID, patch repo.UserPatch) (*models.User, error) {
	if patch.Role != nil && !patch.Role.Valid() {
		return nil, ErrValidation
	}

	var user *models.User
	err := s.inTx(ctx, func(r *repo.GormRepo) error {
		u, err := r.UpdateUser(ctx, id, patch)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// DeactivateUser is the administrative force-out: the target's live session
// is removed so the refresh path dies immediately, then the active flag goes
// off. The target's access token survives until its own expiry.
func (s *AuthService) DeactivateUser(ctx context.Context, targetID uuid.UUID) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "users.deactivate")

	var user *models.User
	err := s.inTx(ctx, func(r *repo.GormRepo) error {
		if session, err := r.FindSessionByUserID(ctx, targetID); err == nil {
			if err := r.DeleteSession(ctx, session.ID); err != nil {
				return err
			}
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}

		u, err := r.SetUserActive(ctx, targetID, false)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.Info("user_deactivated_by_admin", "user_id", targetID)
	return user, nil
}
