package postgres

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/Lingeshemvigo/lms-backend/internal/core/datamodel/enrollment"
	enrollmentpkg "github.com/Lingeshemvigo/lms-backend/internal/enrollment"
)

type EnrollmentRepository struct {
	db *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) enrollmentpkg.Repository {
	return &EnrollmentRepository{
		db: db,
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func (r *EnrollmentRepository) Create(e *enrollment.Enrollment) error {
	err := r.db.Create(e).Error
	if err != nil && isUniqueViolation(err) {
		return enrollmentpkg.ErrDuplicatePair
	}
	return err
}

func (r *EnrollmentRepository) GetByPair(learnerID, courseID int64) (*enrollment.Enrollment, error) {
	var e enrollment.Enrollment
	err := r.db.Where("learner_id = ? AND course_id = ?", learnerID, courseID).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, enrollmentpkg.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *EnrollmentRepository) ListByLearner(learnerID int64) ([]*enrollment.Enrollment, error) {
	var enrollments []*enrollment.Enrollment
	err := r.db.Where("learner_id = ?", learnerID).Order("created_at DESC").Find(&enrollments).Error
	return enrollments, err
}

func (r *EnrollmentRepository) Save(e *enrollment.Enrollment) error {
	return r.db.Save(e).Error
}
