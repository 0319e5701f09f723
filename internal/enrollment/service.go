package enrollment

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"time"

	apperrors "github.com/Lingeshemvigo/lms-backend/internal"
	"github.com/Lingeshemvigo/lms-backend/internal/core/common/validation"
	"github.com/Lingeshemvigo/lms-backend/internal/core/datamodel/enrollment"
)

var (
	ErrNotFound      = errors.New("enrollment not found")
	ErrDuplicatePair = errors.New("enrollment already exists for learner and course")
)

// Repository defines the data access methods for enrollments.
type Repository interface {
	Create(e *enrollment.Enrollment) error
	GetByPair(learnerID, courseID int64) (*enrollment.Enrollment, error)
	ListByLearner(learnerID int64) ([]*enrollment.Enrollment, error)
	Save(e *enrollment.Enrollment) error
}

// Service is the registrar: the single writer of enrollment rows. The
// (learner, course) unique constraint is the concurrency control; a lost
// race on create is resolved by re-reading the winner.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Materialize ensures the learner holds a usable enrollment for the course.
// An active or completed enrollment is reused untouched. A dropped or
// refunded one is reactivated, keeping accumulated progress, and pointed at
// the new payment. Otherwise a fresh row is created, reported by the
// created flag so callers can count it.
func (s *Service) Materialize(learnerID, courseID, paymentID int64) (*enrollment.Enrollment, bool, error) {
	existing, err := s.repo.GetByPair(learnerID, courseID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, false, apperrors.NewInternalError("failed to look up enrollment", err)
	}
	if existing != nil {
		e, reuseErr := s.reuse(existing, paymentID)
		return e, false, reuseErr
	}

	fresh := &enrollment.Enrollment{
		LearnerID:        learnerID,
		CourseID:         courseID,
		PaymentID:        paymentID,
		Status:           enrollment.StatusActive,
		Progress:         0,
		CompletedLessons: json.RawMessage("[]"),
		LastAccessedAt:   s.now(),
	}

	err = s.repo.Create(fresh)
	if errors.Is(err, ErrDuplicatePair) {
		// Lost the race to a concurrent confirm; the winner's row is ours too.
		winner, readErr := s.repo.GetByPair(learnerID, courseID)
		if readErr != nil {
			return nil, false, apperrors.NewInternalError("failed to re-read enrollment after conflict", readErr)
		}
		e, reuseErr := s.reuse(winner, paymentID)
		return e, false, reuseErr
	}
	if err != nil {
		s.logger.Error("failed to create enrollment", "error", err, "learner_id", learnerID, "course_id", courseID)
		return nil, false, apperrors.NewInternalError("failed to create enrollment", err)
	}

	s.logger.Info("enrollment created",
		"enrollment_id", fresh.ID,
		"learner_id", learnerID,
		"course_id", courseID,
		"payment_id", paymentID)

	return fresh, true, nil
}

func (s *Service) reuse(e *enrollment.Enrollment, paymentID int64) (*enrollment.Enrollment, error) {
	switch e.Status {
	case enrollment.StatusActive, enrollment.StatusCompleted:
		return e, nil
	case enrollment.StatusDropped, enrollment.StatusRefunded:
		e.Status = enrollment.StatusActive
		e.PaymentID = paymentID
		e.LastAccessedAt = s.now()
		if err := s.repo.Save(e); err != nil {
			return nil, apperrors.NewInternalError("failed to reactivate enrollment", err)
		}
		s.logger.Info("enrollment reactivated",
			"enrollment_id", e.ID,
			"learner_id", e.LearnerID,
			"course_id", e.CourseID,
			"payment_id", paymentID)
		return e, nil
	default:
		return nil, apperrors.NewInternalError("enrollment in unknown status", nil)
	}
}

// UpdateProgress recomputes the percentage from completed lessons and stamps
// completion exactly once when the learner reaches 100 percent.
func (s *Service) UpdateProgress(learnerID, courseID int64, completedLessonIDs []int64, totalLessons int) (*enrollment.Enrollment, error) {
	if err := validation.ValidateTotalLessons(totalLessons); err != nil {
		return nil, err
	}

	e, err := s.repo.GetByPair(learnerID, courseID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.ErrEnrollmentNotFound
		}
		return nil, apperrors.NewInternalError("failed to look up enrollment", err)
	}

	progress := int(math.Round(float64(len(completedLessonIDs)) * 100 / float64(totalLessons)))
	if progress > 100 {
		progress = 100
	}

	lessons, err := json.Marshal(completedLessonIDs)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode completed lessons", err)
	}

	e.Progress = progress
	e.CompletedLessons = lessons
	e.LastAccessedAt = s.now()

	if progress >= 100 && e.Status == enrollment.StatusActive {
		e.Status = enrollment.StatusCompleted
		if e.CompletedAt == nil {
			completedAt := s.now()
			e.CompletedAt = &completedAt
		}
		s.logger.Info("course completed",
			"enrollment_id", e.ID,
			"learner_id", learnerID,
			"course_id", courseID)
	}

	if err := s.repo.Save(e); err != nil {
		return nil, apperrors.NewInternalError("failed to update progress", err)
	}

	return e, nil
}

// Get returns the learner's enrollment in the course.
func (s *Service) Get(learnerID, courseID int64) (*enrollment.Enrollment, error) {
	e, err := s.repo.GetByPair(learnerID, courseID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.ErrEnrollmentNotFound
		}
		return nil, apperrors.NewInternalError("failed to look up enrollment", err)
	}
	return e, nil
}

// ListForLearner returns all of the learner's enrollments.
func (s *Service) ListForLearner(learnerID int64) ([]*enrollment.Enrollment, error) {
	enrollments, err := s.repo.ListByLearner(learnerID)
	if err != nil {
		s.logger.Error("failed to list enrollments", "error", err, "learner_id", learnerID)
		return nil, apperrors.NewInternalError("failed to list enrollments", err)
	}
	return enrollments, nil
}

// SetStatus moves an enrollment into the given status. Used by the refund
// flow to take access away without deleting progress.
func (s *Service) SetStatus(learnerID, courseID int64, status string) error {
	e, err := s.repo.GetByPair(learnerID, courseID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperrors.ErrEnrollmentNotFound
		}
		return apperrors.NewInternalError("failed to look up enrollment", err)
	}

	e.Status = status
	if err := s.repo.Save(e); err != nil {
		return apperrors.NewInternalError("failed to update enrollment status", err)
	}

	s.logger.Info("enrollment status changed",
		"enrollment_id", e.ID,
		"learner_id", learnerID,
		"course_id", courseID,
		"status", status)

	return nil
}
