package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avdoshkin/smile-crm/internal/apperr"
	"github.com/avdoshkin/smile-crm/internal/models"
	"github.com/avdoshkin/smile-crm/internal/util"
)

// CreateUser inserts the identity. A duplicate login, including one lost to
// a concurrent registration, surfaces as apperr.ErrLoginUnavailable.
func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	if err := r.DB.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.ErrLoginUnavailable
		}
		return err
	}
	return nil
}

func (r *GormRepo) FindUserByLogin(ctx context.Context, login string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("login = ?", login).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

type UsersFilter struct {
	Login    *string      `json:"login,omitempty"`
	Role     *models.Role `json:"role,omitempty"`
	IsActive *bool        `json:"is_active,omitempty"`
}

func (f UsersFilter) conditions() map[string]any {
	cond := map[string]any{}
	if f.Login != nil {
		cond["login"] = *f.Login
	}
	if f.Role != nil {
		cond["role"] = *f.Role
	}
	if f.IsActive != nil {
		cond["is_active"] = *f.IsActive
	}
	return cond
}

func (r *GormRepo) ListUsers(ctx context.Context, filter UsersFilter, page, size int) ([]models.User, error) {
	offset, limit := util.Calculate(page, size)

	var users []models.User
	q := r.DB.WithContext(ctx).Model(&models.User{}).Offset(offset).Limit(limit).Order("created_at")
	if cond := filter.conditions(); len(cond) > 0 {
		q = q.Where(cond)
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

type UserPatch struct {
	Login    *string      `json:"login,omitempty"`
	Role     *models.Role `json:"role,omitempty"`
	IsActive *bool        `json:"is_active,omitempty"`
}

func (p UserPatch) values() map[string]any {
	vals := map[string]any{}
	if p.Login != nil {
		vals["login"] = *p.Login
	}
	if p.Role != nil {
		vals["role"] = *p.Role
	}
	if p.IsActive != nil {
		vals["is_active"] = *p.IsActive
	}
	return vals
}

func (r *GormRepo) UpdateUser(ctx context.Context, id uuid.UUID, patch UserPatch) (*models.User, error) {
	vals := patch.values()
	if len(vals) > 0 {
		res := r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(vals)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return nil, apperr.ErrLoginUnavailable
			}
			return nil, res.Error
		}
	}
	return r.FindUserByID(ctx, id)
}

func (r *GormRepo) SetUserActive(ctx context.Context, id uuid.UUID, active bool) (*models.User, error) {
	res := r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.ErrNotFound
	}
	return r.FindUserByID(ctx, id)
}
