package postgres

import (
	"errors"

	"gorm.io/gorm"

	catalogpkg "github.com/Lingeshemvigo/lms-backend/internal/catalog"
	"github.com/Lingeshemvigo/lms-backend/internal/core/datamodel/course"
)

type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) catalogpkg.Repository {
	return &CatalogRepository{
		db: db,
	}
}

func (r *CatalogRepository) Create(c *course.Course) error {
	return r.db.Create(c).Error
}

func (r *CatalogRepository) GetByID(id int64) (*course.Course, error) {
	var c course.Course
	err := r.db.First(&c, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalogpkg.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *CatalogRepository) ListPublished() ([]*course.Course, error) {
	var courses []*course.Course
	err := r.db.Where("status = ?", course.StatusPublished).Order("created_at DESC").Find(&courses).Error
	return courses, err
}

func (r *CatalogRepository) IncrementEnrolledStudents(id int64) error {
	return r.db.Model(&course.Course{}).Where("id = ?", id).
		UpdateColumn("enrolled_students", gorm.Expr("enrolled_students + 1")).Error
}
