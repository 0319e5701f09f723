package enrollment

import (
	"encoding/json"
	"time"
)

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusDropped   = "dropped"
	StatusRefunded  = "refunded"
)

// Enrollment links a learner to a course they paid for. The composite unique
// index on (learner_id, course_id) is the invariant that makes concurrent
// confirmation safe: the losing insert re-reads the winner's row.
//
// PaymentID is a back-reference, not ownership: the repair job may delete the
// payment it points at, and readers must tolerate the stale reference.
type Enrollment struct {
	ID               int64           `json:"id" gorm:"primaryKey"`
	LearnerID        int64           `json:"learner_id" gorm:"column:learner_id;not null;uniqueIndex:ux_enrollments_learner_course"`
	CourseID         int64           `json:"course_id" gorm:"column:course_id;not null;uniqueIndex:ux_enrollments_learner_course"`
	PaymentID        int64           `json:"payment_id" gorm:"column:payment_id;not null"`
	Status           string          `json:"status" gorm:"column:status;default:active;index"`
	Progress         int             `json:"progress" gorm:"column:progress;default:0"`
	CompletedLessons json.RawMessage `json:"completed_lessons,omitempty" gorm:"column:completed_lessons;type:jsonb"`
	LastAccessedAt   time.Time       `json:"last_accessed_at" gorm:"column:last_accessed_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty" gorm:"column:completed_at"`
	CreatedAt        time.Time       `json:"created_at" gorm:"column:created_at;default:now()"`
	UpdatedAt        time.Time       `json:"updated_at" gorm:"column:updated_at;default:now()"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

func (e *Enrollment) IsCompleted() bool {
	return e.Status == StatusCompleted || e.Progress == 100
}

// CompletedLessonIDs decodes the stored lesson id set. An empty or missing
// column decodes to nil.
func (e *Enrollment) CompletedLessonIDs() ([]int64, error) {
	if len(e.CompletedLessons) == 0 {
		return nil, nil
	}
	var ids []int64
	if err := json.Unmarshal(e.CompletedLessons, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
