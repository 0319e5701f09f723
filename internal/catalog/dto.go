package catalog

import (
	"time"

	"github.com/Lingeshemvigo/lms-backend/internal/core/datamodel/course"
)

type CourseResponse struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	PriceCents       int64     `json:"price_cents"`
	Status           string    `json:"status"`
	EnrolledStudents int64     `json:"enrolled_students"`
	CreatedAt        time.Time `json:"created_at"`
}

func ToCourseResponse(c *course.Course) CourseResponse {
	return CourseResponse{
		ID:               c.ID,
		Title:            c.Title,
		Description:      c.Description,
		PriceCents:       c.PriceCents,
		Status:           c.Status,
		EnrolledStudents: c.EnrolledStudents,
		CreatedAt:        c.CreatedAt,
	}
}

type CourseListResponse struct {
	Courses []CourseResponse `json:"courses"`
	Total   int              `json:"total"`
}

func ToCourseListResponse(courses []*course.Course) CourseListResponse {
	resp := CourseListResponse{
		Courses: make([]CourseResponse, 0, len(courses)),
		Total:   len(courses),
	}
	for _, c := range courses {
		resp.Courses = append(resp.Courses, ToCourseResponse(c))
	}
	return resp
}
