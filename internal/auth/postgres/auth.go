package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/Lingeshemvigo/lms-backend/internal/auth"
	"github.com/Lingeshemvigo/lms-backend/internal/core/datamodel/user"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

func (r *UserRepository) GetByEmail(email string) (*user.User, error) {
	var u user.User
	if err := r.db.Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByID(id int64) (*user.User, error) {
	var u user.User
	if err := r.db.First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}
	return &u, nil
}
