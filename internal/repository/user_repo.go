package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/wapanel/internal/domain"
	"gorm.io/gorm"
)

type UserRepository interface {
	GetActiveByEmail(ctx context.Context, email string) (*domain.User, error)
	GetActiveByID(ctx context.Context, id string) (*domain.User, error)
}

type GormUserRepo struct {
	db *gorm.DB
}

func NewGormUserRepo(db *gorm.DB) *GormUserRepo {
	return &GormUserRepo{db: db}
}

func (r *GormUserRepo) GetActiveByEmail(ctx context.Context, email string) (*domain.User, error) {
	var model UserModel
	err := r.db.WithContext(ctx).
		Where("email = ? AND is_active = true", email).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return userModelToDomain(&model), nil
}

func (r *GormUserRepo) GetActiveByID(ctx context.Context, id string) (*domain.User, error) {
	var model UserModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = true", id).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return userModelToDomain(&model), nil
}
