package catalog

import (
	"errors"
	"log/slog"

	apperrors "github.com/Lingeshemvigo/lms-backend/internal"
	"github.com/Lingeshemvigo/lms-backend/internal/core/datamodel/course"
)

var ErrNotFound = errors.New("course not found")

type Repository interface {
	Create(c *course.Course) error
	GetByID(id int64) (*course.Course, error)
	ListPublished() ([]*course.Course, error)
	IncrementEnrolledStudents(id int64) error
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Get returns the course regardless of status.
func (s *Service) Get(courseID int64) (*course.Course, error) {
	c, err := s.repo.GetByID(courseID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.ErrCourseNotFound
		}
		return nil, apperrors.NewInternalError("failed to load course", err)
	}
	return c, nil
}

// GetForPurchase returns the course only if learners may enroll in it.
func (s *Service) GetForPurchase(courseID int64) (*course.Course, error) {
	c, err := s.Get(courseID)
	if err != nil {
		return nil, err
	}
	if !c.IsPublished() {
		return nil, apperrors.ErrCourseUnavailable
	}
	return c, nil
}

// ListPublished returns the publicly visible course list.
func (s *Service) ListPublished() ([]*course.Course, error) {
	courses, err := s.repo.ListPublished()
	if err != nil {
		s.logger.Error("failed to list courses", "error", err)
		return nil, apperrors.NewInternalError("failed to list courses", err)
	}
	return courses, nil
}

// IncrementEnrolledStudents bumps the denormalized enrollment counter.
// Called from the enrollment.created event handler; a failure here only
// skews the counter so it is logged, not propagated.
func (s *Service) IncrementEnrolledStudents(courseID int64) error {
	if err := s.repo.IncrementEnrolledStudents(courseID); err != nil {
		s.logger.Error("failed to increment enrolled students", "error", err, "course_id", courseID)
		return err
	}
	return nil
}
