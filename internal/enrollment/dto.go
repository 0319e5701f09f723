package enrollment

import (
	"time"

	errors "github.com/Lingeshemvigo/lms-backend/internal"
	"github.com/Lingeshemvigo/lms-backend/internal/core/common/validation"
	"github.com/Lingeshemvigo/lms-backend/internal/core/datamodel/enrollment"
)

// UpdateProgressRequest carries the learner's full set of completed lessons.
// The percentage is derived server-side, never trusted from the client.
type UpdateProgressRequest struct {
	CompletedLessonIDs []int64 `json:"completed_lesson_ids"`
	TotalLessons       int     `json:"total_lessons" validate:"required"`
}

func (r *UpdateProgressRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("total_lessons", int64(r.TotalLessons)).Required().MinInt(1, errors.ErrCodeInvalidProgress)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

type EnrollmentResponse struct {
	ID                 int64      `json:"id"`
	CourseID           int64      `json:"course_id"`
	PaymentID          int64      `json:"payment_id"`
	Status             string     `json:"status"`
	Progress           int        `json:"progress"`
	CompletedLessonIDs []int64    `json:"completed_lesson_ids"`
	LastAccessedAt     time.Time  `json:"last_accessed_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func ToEnrollmentResponse(e *enrollment.Enrollment) EnrollmentResponse {
	lessonIDs, err := e.CompletedLessonIDs()
	if err != nil || lessonIDs == nil {
		lessonIDs = []int64{}
	}
	return EnrollmentResponse{
		ID:                 e.ID,
		CourseID:           e.CourseID,
		PaymentID:          e.PaymentID,
		Status:             e.Status,
		Progress:           e.Progress,
		CompletedLessonIDs: lessonIDs,
		LastAccessedAt:     e.LastAccessedAt,
		CompletedAt:        e.CompletedAt,
		CreatedAt:          e.CreatedAt,
	}
}

type EnrollmentListResponse struct {
	Enrollments []EnrollmentResponse `json:"enrollments"`
	Total       int                  `json:"total"`
}

func ToEnrollmentListResponse(enrollments []*enrollment.Enrollment) EnrollmentListResponse {
	resp := EnrollmentListResponse{
		Enrollments: make([]EnrollmentResponse, 0, len(enrollments)),
		Total:       len(enrollments),
	}
	for _, e := range enrollments {
		resp.Enrollments = append(resp.Enrollments, ToEnrollmentResponse(e))
	}
	return resp
}
