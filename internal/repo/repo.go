package repo

import (
	"gorm.io/gorm"
)

// GormRepo runs every query on the *gorm.DB it is built around. Handing it a
// transaction handle makes all calls part of that transaction; nothing here
// commits on its own.
type GormRepo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}
