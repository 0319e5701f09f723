package user

import "time"

type User struct {
	ID           int64     `json:"id" gorm:"primaryKey" db:"id"`
	Email        string    `json:"email" gorm:"column:email;not null;uniqueIndex" db:"email"`
	Name         string    `json:"name" gorm:"column:name;not null" db:"name"`
	PasswordHash string    `json:"-" gorm:"column:password_hash;not null" db:"password_hash"`
	IsActive     bool      `json:"is_active" gorm:"column:is_active;default:true" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at;default:now()" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"column:updated_at;default:now()" db:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
