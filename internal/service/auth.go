package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avdoshkin/smile-crm/internal/apperr"
	"github.com/avdoshkin/smile-crm/internal/hash"
	"github.com/avdoshkin/smile-crm/internal/logging"
	"github.com/avdoshkin/smile-crm/internal/models"
	"github.com/avdoshkin/smile-crm/internal/repo"
	"github.com/avdoshkin/smile-crm/internal/tokens"
)

var ErrValidation = errors.New("validation failed")

// AuthService orchestrates identities, sessions and credentials. Every
// operation runs inside one transaction: repository writes either all commit
// or all roll back, and the connection goes back to the pool regardless.
type AuthService struct {
	DB     *gorm.DB
	Issuer *tokens.Issuer
}

func (s *AuthService) inTx(ctx context.Context, fn func(r *repo.GormRepo) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(repo.New(tx))
	})
}

func (s *AuthService) Register(ctx context.Context, login, password string, role models.Role) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	if login == "" || password == "" {
		return nil, ErrValidation
	}
	if role == models.SuperUserRole {
		return nil, apperr.ErrPrivilegedRole
	}
	if role != "" && !role.Valid() {
		return nil, ErrValidation
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("register_failed", "reason", "cannot hash the password", "error", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	user := models.User{
		Login:        login,
		PasswordHash: pwHash,
		Role:         role,
		IsActive:     true,
	}

	err = s.inTx(ctx, func(r *repo.GormRepo) error {
		if _, err := r.FindUserByLogin(ctx, login); err == nil {
			return apperr.ErrLoginUnavailable
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		// the insert still races a concurrent registration; the uniqueness
		// constraint catches the loser
		return r.CreateUser(ctx, &user)
	})
	if err != nil {
		if errors.Is(err, apperr.ErrLoginUnavailable) {
			l.Warn("register_failed", "reason", "login taken", "login", login)
		}
		return nil, err
	}

	l.Info("user_registered", "user_id", user.ID, "login", user.Login)
	return &user, nil
}

// RegisterAdmin creates a SuperUserRole identity. Reachable only through the
// admin-gated route; plain registration rejects the privileged role.
func (s *AuthService) RegisterAdmin(ctx context.Context, login, password string) (*models.User, error) {
	if login == "" || password == "" {
		return nil, ErrValidation
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Login:        login,
		PasswordHash: pwHash,
		Role:         models.SuperUserRole,
		IsActive:     true,
	}

	err = s.inTx(ctx, func(r *repo.GormRepo) error {
		if _, err := r.FindUserByLogin(ctx, login); err == nil {
			return apperr.ErrLoginUnavailable
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		return r.CreateUser(ctx, &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) Login(ctx context.Context, login, password string) (*tokens.Credentials, *models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	if login == "" || password == "" {
		return nil, nil, ErrValidation
	}

	var (
		creds *tokens.Credentials
		user  *models.User
	)
	err := s.inTx(ctx, func(r *repo.GormRepo) error {
		u, err := r.FindUserByLogin(ctx, login)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				// same error as a bad password, no login enumeration
				return apperr.ErrInvalidCredentials
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !hash.CheckPassword(u.PasswordHash, password) {
			return apperr.ErrInvalidCredentials
		}

		c, err := s.Issuer.Issue(u)
		if err != nil {
			return err
		}
		if _, err := r.CreateSession(ctx, u.ID, c.RefreshToken, c.RefreshTTL); err != nil {
			return err
		}

		creds, user = c, u
		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidCredentials) {
			l.Warn("login_failed", "login", login)
		}
		return nil, nil, err
	}

	l.Info("login_successful", "user_id", user.ID)
	return creds, user, nil
}

// Logout deletes the refresh session behind the presented cookie. A missing
// or already-deleted session is a no-op, not an error.
func (s *AuthService) Logout(ctx context.Context, claims *tokens.AccessClaims, refreshToken string) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	if !claims.Active() {
		return apperr.ErrNotActive
	}
	if refreshToken == "" {
		return nil
	}

	err := s.inTx(ctx, func(r *repo.GormRepo) error {
		session, err := r.FindSessionByToken(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, apperr.ErrInvalidCredential) {
				return nil
			}
			return err
		}
		return r.DeleteSession(ctx, session.ID)
	})
	if err != nil {
		return err
	}

	l.Info("logout_successful", "subject", claims.Subject)
	return nil
}

// Refresh rotates the session in place: the presented token is replaced by a
// fresh one in the same row, so the old value dies the moment rotation wins.
// A lapsed session is deleted on sight and reported expired; the next call
// with the same token then fails as invalid.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*tokens.Credentials, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	if refreshToken == "" {
		return nil, apperr.ErrInvalidCredential
	}

	var (
		creds   *tokens.Credentials
		expired bool
	)
	err := s.inTx(ctx, func(r *repo.GormRepo) error {
		session, err := r.FindSessionByToken(ctx, refreshToken)
		if err != nil {
			return err
		}
		if session.Expired(time.Now()) {
			// returning the expired sentinel from here would roll the
			// transaction back and resurrect the row, so the callback
			// commits the delete and the verdict is raised afterwards
			expired = true
			return r.DeleteSession(ctx, session.ID)
		}

		user, err := r.FindUserByID(ctx, session.UserID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return apperr.ErrInvalidCredential
			}
			return err
		}

		c, err := s.Issuer.Issue(user)
		if err != nil {
			return err
		}
		if _, err := r.RotateSession(ctx, session.ID, refreshToken, c.RefreshToken, c.RefreshTTL); err != nil {
			return err
		}

		creds = c
		return nil
	})
	if err != nil {
		l.Warn("refresh_failed", "error", err)
		return nil, err
	}
	if expired {
		l.Warn("refresh_failed", "error", apperr.ErrCredentialExpired)
		return nil, apperr.ErrCredentialExpired
	}

	return creds, nil
}

// AbortAllSessions removes every session row of the identity and returns the
// removed rows.
func (s *AuthService) AbortAllSessions(ctx context.Context, userID uuid.UUID) ([]models.RefreshSession, error) {
	l := logging.FromContext(ctx).With("svc", "auth.abort_all")

	var aborted []models.RefreshSession
	err := s.inTx(ctx, func(r *repo.GormRepo) error {
		sessions, err := r.DeleteAllSessionsForUser(ctx, userID)
		if err != nil {
			return err
		}
		aborted = sessions
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.Info("sessions_aborted", "user_id", userID, "count", len(aborted))
	return aborted, nil
}

// DeactivateSelf drops the caller's session and flips the active flag off.
// The access token stays valid until its natural expiry; there is no
// server-side blacklist.
func (s *AuthService) DeactivateSelf(ctx context.Context, userID uuid.UUID, refreshToken string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.deactivate_self")

	var user *models.User
	err := s.inTx(ctx, func(r *repo.GormRepo) error {
		current, err := r.FindUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if !current.IsActive {
			return apperr.ErrNotActive
		}

		if refreshToken != "" {
			if session, err := r.FindSessionByToken(ctx, refreshToken); err == nil {
				if err := r.DeleteSession(ctx, session.ID); err != nil {
					return err
				}
			} else if !errors.Is(err, apperr.ErrInvalidCredential) {
				return err
			}
		}

		user, err = r.SetUserActive(ctx, userID, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.Info("user_deactivated", "user_id", userID)
	return user, nil
}
