package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	OrgLeaderRole      Role = "OrgLeaderRole"
	ClientRole         Role = "ClientRole"
	OrgManagerRole     Role = "OrgManagerRole"
	ProductManagerRole Role = "ProductManagerRole"
	SuperUserRole      Role = "SuperUserRole"
)

func (r Role) Valid() bool {
	switch r {
	case OrgLeaderRole, ClientRole, OrgManagerRole, ProductManagerRole, SuperUserRole:
		return true
	}
	return false
}

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"     json:"id"`
	Login        string    `gorm:"uniqueIndex;not null"     json:"login"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Role         Role      `json:"role,omitempty"`
	IsActive     bool      `gorm:"not null;default:true"    json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// RefreshSession is the single server-side record behind a refresh token.
// Rotation rewrites the row in place, so one login holds one session slot.
type RefreshSession struct {
	ID           uint      `gorm:"primaryKey"                json:"id"`
	RefreshToken string    `gorm:"uniqueIndex;not null"      json:"refresh_token"`
	UserID       uuid.UUID `gorm:"type:uuid;index;not null"  json:"user_id"`
	ExpiresIn    int64     `gorm:"not null"                  json:"expires_in"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *RefreshSession) ExpiresAt() time.Time {
	return s.CreatedAt.Add(time.Duration(s.ExpiresIn) * time.Second)
}

func (s *RefreshSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt())
}
