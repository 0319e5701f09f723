package postgres

import (
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/Lingeshemvigo/lms-backend/internal/core/datamodel/payment"
	"github.com/Lingeshemvigo/lms-backend/internal/ledger"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) ledger.Repository {
	return &LedgerRepository{
		db: db,
	}
}

// isUniqueViolation covers both gorm's translated error and the raw pgx
// error, since TranslateError does not reach every code path.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func (r *LedgerRepository) Create(p *payment.Payment) error {
	err := r.db.Create(p).Error
	if err != nil && isUniqueViolation(err) {
		return ledger.ErrDuplicateTransactionID
	}
	return err
}

func (r *LedgerRepository) GetByID(id int64) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *LedgerRepository) GetByIntentID(intentID string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.Where("payment_intent_id = ?", intentID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *LedgerRepository) GetByTransactionID(transactionID string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.Where("transaction_id = ?", transactionID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *LedgerRepository) ListByLearner(learnerID int64) ([]*payment.Payment, error) {
	var payments []*payment.Payment
	err := r.db.Where("learner_id = ?", learnerID).Order("created_at DESC").Find(&payments).Error
	return payments, err
}

// The transition updates guard on the expected current status so two
// writers racing on the same row cannot both apply. A zero row count means
// the row moved first; the service re-reads and decides from there.

func (r *LedgerRepository) SetCompleted(id int64, transactionID string, completedAt time.Time) error {
	result := r.db.Model(&payment.Payment{}).
		Where("id = ? AND status = ?", id, payment.StatusPending).
		Updates(map[string]interface{}{
			"status":         payment.StatusCompleted,
			"transaction_id": transactionID,
			"completed_at":   completedAt,
		})
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return ledger.ErrDuplicateTransactionID
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ledger.ErrStaleRow
	}
	return nil
}

func (r *LedgerRepository) SetFailed(id int64, reason string) error {
	result := r.db.Model(&payment.Payment{}).
		Where("id = ? AND status = ?", id, payment.StatusPending).
		Updates(map[string]interface{}{
			"status":         payment.StatusFailed,
			"failure_reason": reason,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ledger.ErrStaleRow
	}
	return nil
}

func (r *LedgerRepository) SetRefunded(id int64, reason string, refundedAt time.Time) error {
	result := r.db.Model(&payment.Payment{}).
		Where("id = ? AND status = ?", id, payment.StatusCompleted).
		Updates(map[string]interface{}{
			"status":        payment.StatusRefunded,
			"refund_reason": reason,
			"refunded_at":   refundedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ledger.ErrStaleRow
	}
	return nil
}
