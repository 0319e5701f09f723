package postgres

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/Lingeshemvigo/lms-backend/internal/core/datamodel/payment"
	"github.com/Lingeshemvigo/lms-backend/internal/ledger"
	repairpkg "github.com/Lingeshemvigo/lms-backend/internal/repair"
)

type RepairRepository struct {
	db *gorm.DB
}

func NewRepairRepository(db *gorm.DB) repairpkg.Repository {
	return &RepairRepository{
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

func (r *RepairRepository) ListAll() ([]*payment.Payment, error) {
	var payments []*payment.Payment
	err := r.db.Order("created_at ASC").Find(&payments).Error
	return payments, err
}

func (r *RepairRepository) ListMissingTransactionIDs() ([]*payment.Payment, error) {
	var payments []*payment.Payment
	err := r.db.Where("transaction_id IS NULL OR transaction_id = ''").Find(&payments).Error
	return payments, err
}

func (r *RepairRepository) DeleteByIDs(ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Delete(&payment.Payment{}, ids)
	return result.RowsAffected, result.Error
}

func (r *RepairRepository) AssignTransactionID(id int64, transactionID string) error {
	err := r.db.Model(&payment.Payment{}).Where("id = ?", id).
		UpdateColumn("transaction_id", transactionID).Error
	if err != nil && isUniqueViolation(err) {
		return ledger.ErrDuplicateTransactionID
	}
	return err
}
