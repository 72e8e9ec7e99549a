package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avdoshkin/smile-crm/internal/apperr"
	"github.com/avdoshkin/smile-crm/internal/models"
)

func (r *GormRepo) CreateSession(ctx context.Context, userID uuid.UUID, refreshToken string, ttl time.Duration) (*models.RefreshSession, error) {
	session := models.RefreshSession{
		RefreshToken: refreshToken,
		UserID:       userID,
		ExpiresIn:    int64(ttl.Seconds()),
	}
	if err := r.DB.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *GormRepo) FindSessionByToken(ctx context.Context, refreshToken string) (*models.RefreshSession, error) {
	var session models.RefreshSession
	if err := r.DB.WithContext(ctx).Where("refresh_token = ?", refreshToken).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrInvalidCredential
		}
		return nil, err
	}
	return &session, nil
}

// FindSessionByUserID locates a user's live session, e.g. when an
// administrator force-deactivates someone else's account.
func (r *GormRepo) FindSessionByUserID(ctx context.Context, userID uuid.UUID) (*models.RefreshSession, error) {
	var session models.RefreshSession
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// RotateSession swaps the refresh token of an existing row in place. The
// update matches on both id and the token the caller presented, so of two
// concurrent rotations exactly one wins; the loser sees zero affected rows
// and gets apperr.ErrInvalidCredential.
func (r *GormRepo) RotateSession(ctx context.Context, sessionID uint, currentToken, newToken string, ttl time.Duration) (*models.RefreshSession, error) {
	res := r.DB.WithContext(ctx).Model(&models.RefreshSession{}).
		Where("id = ? AND refresh_token = ?", sessionID, currentToken).
		Updates(map[string]any{
			"refresh_token": newToken,
			"expires_in":    int64(ttl.Seconds()),
			"created_at":    time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.ErrInvalidCredential
	}

	var session models.RefreshSession
	if err := r.DB.WithContext(ctx).First(&session, sessionID).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *GormRepo) DeleteSession(ctx context.Context, sessionID uint) error {
	return r.DB.WithContext(ctx).Delete(&models.RefreshSession{}, sessionID).Error
}

// DeleteAllSessionsForUser removes every session row of the identity and
// returns what was deleted. The result is never nil, so callers can hand it
// straight to a JSON encoder.
func (r *GormRepo) DeleteAllSessionsForUser(ctx context.Context, userID uuid.UUID) ([]models.RefreshSession, error) {
	sessions := []models.RefreshSession{}
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&sessions).Error; err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return sessions, nil
	}
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RefreshSession{}).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}
