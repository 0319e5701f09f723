package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Lingeshemvigo/lms-backend/internal"
	"github.com/Lingeshemvigo/lms-backend/internal/core/datamodel/payment"
)

// Storage sentinels returned by Repository implementations so the service
// can tell the expected unique-constraint conflict apart from real failures.
var (
	ErrNotFound               = errors.New("payment not found")
	ErrDuplicateTransactionID = errors.New("transaction id already exists")
	ErrStaleRow               = errors.New("payment status changed concurrently")
)

// Repository defines the data access methods for the payment ledger.
type Repository interface {
	Create(p *payment.Payment) error
	GetByID(id int64) (*payment.Payment, error)
	GetByIntentID(intentID string) (*payment.Payment, error)
	GetByTransactionID(transactionID string) (*payment.Payment, error)
	ListByLearner(learnerID int64) ([]*payment.Payment, error)
	SetCompleted(id int64, transactionID string, completedAt time.Time) error
	SetFailed(id int64, reason string) error
	SetRefunded(id int64, reason string, refundedAt time.Time) error
}

// Service owns Payment rows: it mints placeholder transaction ids, walks the
// status lifecycle and relies on the storage unique constraint to make sure
// a gateway transaction id is never claimed twice.
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

// NewPlaceholderID generates a transaction id that stands in until the
// gateway's canonical id is known. Timestamp plus random component makes a
// collision overwhelmingly unlikely; the unique index catches the rest.
// The repair job reuses the same scheme with the "repair" prefix.
func NewPlaceholderID(prefix string, learnerID, courseID int64, now time.Time) string {
	random := uuid.New().String()[:8]
	return fmt.Sprintf("%s_%d_%s_%s_%s", prefix, now.UnixMilli(), random, idPrefix(courseID), idPrefix(learnerID))
}

func idPrefix(id int64) string {
	s := strconv.FormatInt(id, 10)
	if len(s) > 5 {
		return s[:5]
	}
	return s
}

// OpenPending records a purchase attempt before the gateway has confirmed
// anything. The row is created with a placeholder transaction id; on the
// vanishingly rare placeholder collision it regenerates once and then gives
// up with LedgerExhausted.
func (s *Service) OpenPending(learnerID, courseID, amountCents int64, method, intentID string) (*payment.Payment, error) {
	if amountCents < 0 {
		s.logger.Warn("rejected negative payment amount",
			"learner_id", learnerID,
			"course_id", courseID,
			"amount_cents", amountCents)
		return nil, apperrors.ErrInvalidAmount
	}

	if method == "" {
		method = payment.MethodCard
	}

	var intentPtr *string
	if intentID != "" {
		intentPtr = &intentID
	}

	p := &payment.Payment{
		LearnerID:       learnerID,
		CourseID:        courseID,
		AmountCents:     amountCents,
		PaymentMethod:   method,
		TransactionID:   NewPlaceholderID("temp", learnerID, courseID, s.now()),
		PaymentIntentID: intentPtr,
		Status:          payment.StatusPending,
	}

	err := s.repo.Create(p)
	if errors.Is(err, ErrDuplicateTransactionID) {
		p.ID = 0
		p.TransactionID = NewPlaceholderID("temp", learnerID, courseID, s.now())
		err = s.repo.Create(p)
		if errors.Is(err, ErrDuplicateTransactionID) {
			s.logger.Error("placeholder id collided twice",
				"learner_id", learnerID,
				"course_id", courseID)
			return nil, apperrors.ErrLedgerExhausted
		}
	}
	if err != nil {
		s.logger.Error("failed to create pending payment", "error", err, "learner_id", learnerID, "course_id", courseID)
		return nil, apperrors.NewInternalError("failed to create payment record", err)
	}

	s.logger.Info("pending payment opened",
		"payment_id", p.ID,
		"learner_id", learnerID,
		"course_id", courseID,
		"amount_cents", amountCents,
		"transaction_id", p.TransactionID)

	return p, nil
}

// Complete flips a pending payment to completed, replacing the placeholder
// with the gateway's canonical transaction id.
//
// Calling it again with the same id is a no-op returning the existing row;
// a different id on an already-completed row signals an upstream bug and is
// never silently overwritten. A unique-constraint rejection means another
// payment row already claimed this gateway id, which the coordinator
// resolves by re-reading the owning row.
func (s *Service) Complete(paymentID int64, gatewayTransactionID string) (*payment.Payment, error) {
	p, err := s.repo.GetByID(paymentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, apperrors.NewInternalError("failed to load payment", err)
	}

	switch p.Status {
	case payment.StatusCompleted:
		if p.TransactionID == gatewayTransactionID {
			return p, nil
		}
		s.logger.Error("completed payment confirmed with a different transaction id",
			"payment_id", p.ID,
			"recorded_transaction_id", p.TransactionID,
			"incoming_transaction_id", gatewayTransactionID)
		return nil, apperrors.ErrAlreadyFinalized
	case payment.StatusPending:
		// fall through to the transition below
	default:
		return nil, apperrors.ErrInvalidTransition
	}

	if err := s.repo.SetCompleted(p.ID, gatewayTransactionID, s.now()); err != nil {
		if errors.Is(err, ErrDuplicateTransactionID) {
			return nil, apperrors.ErrDuplicateTransaction
		}
		if errors.Is(err, ErrStaleRow) {
			// Another writer moved the row off pending between our read and
			// the update. Re-read and resolve against the row's final state.
			return s.Complete(paymentID, gatewayTransactionID)
		}
		return nil, apperrors.NewInternalError("failed to complete payment", err)
	}

	result, err := s.repo.GetByID(p.ID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to reload completed payment", err)
	}

	s.logger.Info("payment completed",
		"payment_id", result.ID,
		"learner_id", result.LearnerID,
		"course_id", result.CourseID,
		"transaction_id", result.TransactionID)

	return result, nil
}

// MarkFailed is a terminal transition for a pending payment.
func (s *Service) MarkFailed(paymentID int64, reason string) error {
	p, err := s.repo.GetByID(paymentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperrors.ErrPaymentNotFound
		}
		return apperrors.NewInternalError("failed to load payment", err)
	}

	if p.Status != payment.StatusPending {
		return apperrors.ErrInvalidTransition
	}

	if err := s.repo.SetFailed(p.ID, reason); err != nil {
		if errors.Is(err, ErrStaleRow) {
			return apperrors.ErrInvalidTransition
		}
		return apperrors.NewInternalError("failed to mark payment failed", err)
	}

	s.logger.Info("payment marked failed",
		"payment_id", p.ID,
		"learner_id", p.LearnerID,
		"course_id", p.CourseID,
		"reason", reason)

	return nil
}

// MarkRefunded moves a completed payment to refunded.
func (s *Service) MarkRefunded(paymentID int64, reason string) error {
	p, err := s.repo.GetByID(paymentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperrors.ErrPaymentNotFound
		}
		return apperrors.NewInternalError("failed to load payment", err)
	}

	if p.Status != payment.StatusCompleted {
		return apperrors.ErrInvalidTransition
	}

	if err := s.repo.SetRefunded(p.ID, reason, s.now()); err != nil {
		if errors.Is(err, ErrStaleRow) {
			return apperrors.ErrInvalidTransition
		}
		return apperrors.NewInternalError("failed to mark payment refunded", err)
	}

	s.logger.Info("payment refunded",
		"payment_id", p.ID,
		"learner_id", p.LearnerID,
		"course_id", p.CourseID,
		"reason", reason)

	return nil
}

// GetByID returns the payment or PaymentNotFound.
func (s *Service) GetByID(paymentID int64) (*payment.Payment, error) {
	p, err := s.repo.GetByID(paymentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, apperrors.NewInternalError("failed to load payment", err)
	}
	return p, nil
}

// GetByIntentID resolves the payment created for a gateway payment intent.
func (s *Service) GetByIntentID(intentID string) (*payment.Payment, error) {
	p, err := s.repo.GetByIntentID(intentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, apperrors.NewInternalError("failed to load payment by intent id", err)
	}
	return p, nil
}

// GetByTransactionID resolves the payment that owns a transaction id. Used
// by the coordinator after a DuplicateTransaction conflict to find the row
// that won the race.
func (s *Service) GetByTransactionID(transactionID string) (*payment.Payment, error) {
	p, err := s.repo.GetByTransactionID(transactionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, apperrors.NewInternalError("failed to load payment by transaction id", err)
	}
	return p, nil
}

// HistoryForLearner lists the learner's payments, newest first.
func (s *Service) HistoryForLearner(learnerID int64) ([]*payment.Payment, error) {
	payments, err := s.repo.ListByLearner(learnerID)
	if err != nil {
		s.logger.Error("failed to list payments", "error", err, "learner_id", learnerID)
		return nil, apperrors.NewInternalError("failed to list payments", err)
	}
	return payments, nil
}
