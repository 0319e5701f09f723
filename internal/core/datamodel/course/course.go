package course

import "time"

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

type Course struct {
	ID               int64     `json:"id" gorm:"primaryKey"`
	Title            string    `json:"title" gorm:"column:title;not null"`
	Description      string    `json:"description" gorm:"column:description"`
	PriceCents       int64     `json:"price_cents" gorm:"column:price_cents;not null"`
	Status           string    `json:"status" gorm:"column:status;default:draft;index"`
	EnrolledStudents int64     `json:"enrolled_students" gorm:"column:enrolled_students;default:0"`
	CreatedAt        time.Time `json:"created_at" gorm:"column:created_at;default:now()"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"column:updated_at;default:now()"`
}

func (Course) TableName() string {
	return "courses"
}

func (c *Course) IsPublished() bool {
	return c.Status == StatusPublished
}

func (c *Course) IsFree() bool {
	return c.PriceCents == 0
}
