package enrollment_test

import (
	"log/slog"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/Lingeshemvigo/lms-backend/internal"
	"github.com/Lingeshemvigo/lms-backend/internal/core/datamodel/enrollment"
	enrollmentPkg "github.com/Lingeshemvigo/lms-backend/internal/enrollment"
)

func TestEnrollmentService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Enrollment Service Suite")
}

type pairKey struct {
	learnerID int64
	courseID  int64
}

// Mock repository enforcing the (learner, course) unique constraint the
// same way the database does.
type mockEnrollmentRepository struct {
	enrollments map[pairKey]*enrollment.Enrollment
	nextID      int64
	createError error
	getError    error
	saveError   error
}

func newMockEnrollmentRepository() *mockEnrollmentRepository {
	return &mockEnrollmentRepository{
		enrollments: make(map[pairKey]*enrollment.Enrollment),
		nextID:      1,
	}
}

func (m *mockEnrollmentRepository) Create(e *enrollment.Enrollment) error {
	if m.createError != nil {
		return m.createError
	}
	key := pairKey{e.LearnerID, e.CourseID}
	if _, exists := m.enrollments[key]; exists {
		return enrollmentPkg.ErrDuplicatePair
	}
	e.ID = m.nextID
	m.nextID++
	e.CreatedAt = time.Now()
	e.UpdatedAt = time.Now()
	copied := *e
	m.enrollments[key] = &copied
	return nil
}

func (m *mockEnrollmentRepository) GetByPair(learnerID, courseID int64) (*enrollment.Enrollment, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	e, exists := m.enrollments[pairKey{learnerID, courseID}]
	if !exists {
		return nil, enrollmentPkg.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (m *mockEnrollmentRepository) ListByLearner(learnerID int64) ([]*enrollment.Enrollment, error) {
	var enrollments []*enrollment.Enrollment
	for _, e := range m.enrollments {
		if e.LearnerID == learnerID {
			copied := *e
			enrollments = append(enrollments, &copied)
		}
	}
	return enrollments, nil
}

func (m *mockEnrollmentRepository) Save(e *enrollment.Enrollment) error {
	if m.saveError != nil {
		return m.saveError
	}
	copied := *e
	m.enrollments[pairKey{e.LearnerID, e.CourseID}] = &copied
	return nil
}

var _ = Describe("EnrollmentService", func() {
	var (
		service  *enrollmentPkg.Service
		mockRepo *mockEnrollmentRepository
		logger   *slog.Logger
	)

	BeforeEach(func() {
		mockRepo = newMockEnrollmentRepository()
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = enrollmentPkg.NewService(mockRepo, logger)
	})

	Describe("Materialize", func() {
		Context("when no enrollment exists", func() {
			It("should create an active enrollment with zero progress", func() {
				e, created, err := service.Materialize(10, 20, 100)

				Expect(err).ToNot(HaveOccurred())
				Expect(created).To(BeTrue())
				Expect(e.ID).To(BeNumerically(">", 0))
				Expect(e.Status).To(Equal(enrollment.StatusActive))
				Expect(e.Progress).To(Equal(0))
				Expect(e.PaymentID).To(Equal(int64(100)))
			})
		})

		Context("when an active enrollment exists", func() {
			It("should reuse it without touching the payment reference", func() {
				first, _, err := service.Materialize(10, 20, 100)
				Expect(err).ToNot(HaveOccurred())

				second, created, err := service.Materialize(10, 20, 200)

				Expect(err).ToNot(HaveOccurred())
				Expect(created).To(BeFalse())
				Expect(second.ID).To(Equal(first.ID))
				Expect(second.PaymentID).To(Equal(int64(100)))
			})
		})

		Context("when a completed enrollment exists", func() {
			It("should reuse it and keep the completed status", func() {
				first, _, err := service.Materialize(10, 20, 100)
				Expect(err).ToNot(HaveOccurred())
				_, err = service.UpdateProgress(10, 20, []int64{1, 2, 3, 4}, 4)
				Expect(err).ToNot(HaveOccurred())

				second, created, err := service.Materialize(10, 20, 200)

				Expect(err).ToNot(HaveOccurred())
				Expect(created).To(BeFalse())
				Expect(second.ID).To(Equal(first.ID))
				Expect(second.Status).To(Equal(enrollment.StatusCompleted))
			})
		})

		Context("when a refunded enrollment exists", func() {
			It("should reactivate it, keep progress and point at the new payment", func() {
				first, _, err := service.Materialize(10, 20, 100)
				Expect(err).ToNot(HaveOccurred())
				_, err = service.UpdateProgress(10, 20, []int64{1}, 4)
				Expect(err).ToNot(HaveOccurred())
				Expect(service.SetStatus(10, 20, enrollment.StatusRefunded)).To(Succeed())

				reactivated, created, err := service.Materialize(10, 20, 200)

				Expect(err).ToNot(HaveOccurred())
				Expect(created).To(BeFalse())
				Expect(reactivated.ID).To(Equal(first.ID))
				Expect(reactivated.Status).To(Equal(enrollment.StatusActive))
				Expect(reactivated.Progress).To(Equal(25))
				Expect(reactivated.PaymentID).To(Equal(int64(200)))
			})
		})

		Context("when the create loses a race", func() {
			It("should re-read and return the winner's row", func() {
				winner := &enrollment.Enrollment{
					LearnerID: 10,
					CourseID:  20,
					PaymentID: 300,
					Status:    enrollment.StatusActive,
				}
				Expect(mockRepo.Create(winner)).To(Succeed())
				mockRepo.createError = enrollmentPkg.ErrDuplicatePair

				e, created, err := service.Materialize(10, 20, 100)

				Expect(err).ToNot(HaveOccurred())
				Expect(created).To(BeFalse())
				Expect(e.ID).To(Equal(winner.ID))
				Expect(e.PaymentID).To(Equal(int64(300)))
			})
		})
	})

	Describe("UpdateProgress", func() {
		BeforeEach(func() {
			_, _, err := service.Materialize(10, 20, 100)
			Expect(err).ToNot(HaveOccurred())
		})

		It("should round the percentage to the nearest integer", func() {
			e, err := service.UpdateProgress(10, 20, []int64{1}, 3)

			Expect(err).ToNot(HaveOccurred())
			Expect(e.Progress).To(Equal(33))

			e, err = service.UpdateProgress(10, 20, []int64{1, 2}, 3)

			Expect(err).ToNot(HaveOccurred())
			Expect(e.Progress).To(Equal(67))
		})

		It("should complete the enrollment exactly once at 100 percent", func() {
			e, err := service.UpdateProgress(10, 20, []int64{1, 2, 3}, 3)

			Expect(err).ToNot(HaveOccurred())
			Expect(e.Status).To(Equal(enrollment.StatusCompleted))
			Expect(e.CompletedAt).ToNot(BeNil())
			firstCompletedAt := *e.CompletedAt

			e, err = service.UpdateProgress(10, 20, []int64{1, 2, 3}, 3)

			Expect(err).ToNot(HaveOccurred())
			Expect(*e.CompletedAt).To(Equal(firstCompletedAt))
		})

		It("should cap progress at 100 when more lessons than total are reported", func() {
			e, err := service.UpdateProgress(10, 20, []int64{1, 2, 3, 4}, 3)

			Expect(err).ToNot(HaveOccurred())
			Expect(e.Progress).To(Equal(100))
		})

		It("should store the completed lesson ids", func() {
			e, err := service.UpdateProgress(10, 20, []int64{3, 1, 2}, 4)

			Expect(err).ToNot(HaveOccurred())
			ids, err := e.CompletedLessonIDs()
			Expect(err).ToNot(HaveOccurred())
			Expect(ids).To(Equal([]int64{3, 1, 2}))
		})

		It("should reject a non-positive lesson total", func() {
			_, err := service.UpdateProgress(10, 20, []int64{1}, 0)

			Expect(err).To(HaveOccurred())
			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(apperrors.ErrorTypeValidation))
		})

		It("should return EnrollmentNotFound for an unknown pair", func() {
			_, err := service.UpdateProgress(10, 99, []int64{1}, 3)

			Expect(err).To(MatchError(apperrors.ErrEnrollmentNotFound))
		})
	})

	Describe("Get", func() {
		It("should return the enrollment for an enrolled learner", func() {
			materialized, _, err := service.Materialize(10, 20, 100)
			Expect(err).ToNot(HaveOccurred())

			e, err := service.Get(10, 20)

			Expect(err).ToNot(HaveOccurred())
			Expect(e.ID).To(Equal(materialized.ID))
		})

		It("should return EnrollmentNotFound otherwise", func() {
			_, err := service.Get(10, 20)

			Expect(err).To(MatchError(apperrors.ErrEnrollmentNotFound))
		})
	})

	Describe("SetStatus", func() {
		It("should move an enrollment to refunded", func() {
			_, _, err := service.Materialize(10, 20, 100)
			Expect(err).ToNot(HaveOccurred())

			Expect(service.SetStatus(10, 20, enrollment.StatusRefunded)).To(Succeed())

			e, err := service.Get(10, 20)
			Expect(err).ToNot(HaveOccurred())
			Expect(e.Status).To(Equal(enrollment.StatusRefunded))
		})
	})
})
