package ledger_test

import (
	"log/slog"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/Lingeshemvigo/lms-backend/internal"
	"github.com/Lingeshemvigo/lms-backend/internal/core/datamodel/payment"
	"github.com/Lingeshemvigo/lms-backend/internal/ledger"
)

func TestLedgerService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Ledger Service Suite")
}

// Mock repository enforcing the transaction id unique constraint the same
// way the database does.
type mockLedgerRepository struct {
	payments           map[int64]*payment.Payment
	nextID             int64
	createErrors       []error
	getError           error
	beforeSetCompleted func()
}

func newMockLedgerRepository() *mockLedgerRepository {
	return &mockLedgerRepository{
		payments: make(map[int64]*payment.Payment),
		nextID:   1,
	}
}

func (m *mockLedgerRepository) Create(p *payment.Payment) error {
	if len(m.createErrors) > 0 {
		err := m.createErrors[0]
		m.createErrors = m.createErrors[1:]
		if err != nil {
			return err
		}
	}
	for _, existing := range m.payments {
		if existing.TransactionID == p.TransactionID {
			return ledger.ErrDuplicateTransactionID
		}
	}
	p.ID = m.nextID
	m.nextID++
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	copied := *p
	m.payments[p.ID] = &copied
	return nil
}

func (m *mockLedgerRepository) GetByID(id int64) (*payment.Payment, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	p, exists := m.payments[id]
	if !exists {
		return nil, ledger.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *mockLedgerRepository) GetByIntentID(intentID string) (*payment.Payment, error) {
	for _, p := range m.payments {
		if p.PaymentIntentID != nil && *p.PaymentIntentID == intentID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func (m *mockLedgerRepository) GetByTransactionID(transactionID string) (*payment.Payment, error) {
	for _, p := range m.payments {
		if p.TransactionID == transactionID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func (m *mockLedgerRepository) ListByLearner(learnerID int64) ([]*payment.Payment, error) {
	var payments []*payment.Payment
	for _, p := range m.payments {
		if p.LearnerID == learnerID {
			copied := *p
			payments = append(payments, &copied)
		}
	}
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].CreatedAt.After(payments[j].CreatedAt)
	})
	return payments, nil
}

func (m *mockLedgerRepository) SetCompleted(id int64, transactionID string, completedAt time.Time) error {
	if m.beforeSetCompleted != nil {
		m.beforeSetCompleted()
	}
	p := m.payments[id]
	if p.Status != payment.StatusPending {
		return ledger.ErrStaleRow
	}
	for otherID, other := range m.payments {
		if otherID != id && other.TransactionID == transactionID {
			return ledger.ErrDuplicateTransactionID
		}
	}
	p.Status = payment.StatusCompleted
	p.TransactionID = transactionID
	p.CompletedAt = &completedAt
	return nil
}

func (m *mockLedgerRepository) SetFailed(id int64, reason string) error {
	p := m.payments[id]
	if p.Status != payment.StatusPending {
		return ledger.ErrStaleRow
	}
	p.Status = payment.StatusFailed
	p.FailureReason = &reason
	return nil
}

func (m *mockLedgerRepository) SetRefunded(id int64, reason string, refundedAt time.Time) error {
	p := m.payments[id]
	if p.Status != payment.StatusCompleted {
		return ledger.ErrStaleRow
	}
	p.Status = payment.StatusRefunded
	p.RefundReason = &reason
	p.RefundedAt = &refundedAt
	return nil
}

var _ = Describe("LedgerService", func() {
	var (
		service  *ledger.Service
		mockRepo *mockLedgerRepository
		logger   *slog.Logger
	)

	BeforeEach(func() {
		mockRepo = newMockLedgerRepository()
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = ledger.NewService(mockRepo, logger)
	})

	Describe("OpenPending", func() {
		Context("when the amount is valid", func() {
			It("should create a pending payment with a placeholder transaction id", func() {
				p, err := service.OpenPending(10, 20, 49900, payment.MethodCard, "pi_abc123")

				Expect(err).ToNot(HaveOccurred())
				Expect(p.ID).To(BeNumerically(">", 0))
				Expect(p.Status).To(Equal(payment.StatusPending))
				Expect(p.TransactionID).To(HavePrefix("temp_"))
				Expect(p.HasPlaceholderTransactionID()).To(BeTrue())
				Expect(*p.PaymentIntentID).To(Equal("pi_abc123"))
			})

			It("should embed learner and course prefixes in the placeholder", func() {
				p, err := service.OpenPending(1234567, 42, 1000, payment.MethodCard, "")

				Expect(err).ToNot(HaveOccurred())
				parts := strings.Split(p.TransactionID, "_")
				Expect(parts).To(HaveLen(5))
				Expect(parts[3]).To(Equal("42"))
				Expect(parts[4]).To(Equal("12345"))
			})

			It("should default the payment method to card", func() {
				p, err := service.OpenPending(10, 20, 49900, "", "")

				Expect(err).ToNot(HaveOccurred())
				Expect(p.PaymentMethod).To(Equal(payment.MethodCard))
			})

			It("should allow a zero amount for free courses", func() {
				p, err := service.OpenPending(10, 20, 0, payment.MethodFree, "")

				Expect(err).ToNot(HaveOccurred())
				Expect(p.AmountCents).To(Equal(int64(0)))
			})
		})

		Context("when the amount is negative", func() {
			It("should reject with InvalidAmount", func() {
				_, err := service.OpenPending(10, 20, -1, payment.MethodCard, "")

				Expect(err).To(MatchError(apperrors.ErrInvalidAmount))
			})
		})

		Context("when the placeholder id collides", func() {
			It("should regenerate once and succeed", func() {
				mockRepo.createErrors = []error{ledger.ErrDuplicateTransactionID}

				p, err := service.OpenPending(10, 20, 49900, payment.MethodCard, "")

				Expect(err).ToNot(HaveOccurred())
				Expect(p.ID).To(BeNumerically(">", 0))
			})

			It("should give up after a second collision", func() {
				mockRepo.createErrors = []error{
					ledger.ErrDuplicateTransactionID,
					ledger.ErrDuplicateTransactionID,
				}

				_, err := service.OpenPending(10, 20, 49900, payment.MethodCard, "")

				Expect(err).To(MatchError(apperrors.ErrLedgerExhausted))
			})
		})
	})

	Describe("Complete", func() {
		var pending *payment.Payment

		BeforeEach(func() {
			var err error
			pending, err = service.OpenPending(10, 20, 49900, payment.MethodCard, "pi_abc123")
			Expect(err).ToNot(HaveOccurred())
		})

		It("should replace the placeholder with the gateway transaction id", func() {
			p, err := service.Complete(pending.ID, "txn_real_1")

			Expect(err).ToNot(HaveOccurred())
			Expect(p.Status).To(Equal(payment.StatusCompleted))
			Expect(p.TransactionID).To(Equal("txn_real_1"))
			Expect(p.CompletedAt).ToNot(BeNil())
		})

		It("should be idempotent for the same transaction id", func() {
			_, err := service.Complete(pending.ID, "txn_real_1")
			Expect(err).ToNot(HaveOccurred())

			p, err := service.Complete(pending.ID, "txn_real_1")
			Expect(err).ToNot(HaveOccurred())
			Expect(p.Status).To(Equal(payment.StatusCompleted))
			Expect(p.TransactionID).To(Equal("txn_real_1"))
		})

		It("should refuse a different transaction id on a completed payment", func() {
			_, err := service.Complete(pending.ID, "txn_real_1")
			Expect(err).ToNot(HaveOccurred())

			_, err = service.Complete(pending.ID, "txn_real_2")
			Expect(err).To(MatchError(apperrors.ErrAlreadyFinalized))
		})

		It("should refuse to complete a failed payment", func() {
			Expect(service.MarkFailed(pending.ID, "card declined")).To(Succeed())

			_, err := service.Complete(pending.ID, "txn_real_1")
			Expect(err).To(MatchError(apperrors.ErrInvalidTransition))
		})

		It("should surface a transaction id owned by another payment", func() {
			other, err := service.OpenPending(11, 20, 49900, payment.MethodCard, "pi_other")
			Expect(err).ToNot(HaveOccurred())
			_, err = service.Complete(other.ID, "txn_real_1")
			Expect(err).ToNot(HaveOccurred())

			_, err = service.Complete(pending.ID, "txn_real_1")
			Expect(err).To(MatchError(apperrors.ErrDuplicateTransaction))
		})

		It("should return PaymentNotFound for an unknown id", func() {
			_, err := service.Complete(99999, "txn_real_1")

			Expect(err).To(MatchError(apperrors.ErrPaymentNotFound))
		})

		It("should resolve a completion that raced with another writer", func() {
			completedAt := time.Now()
			mockRepo.beforeSetCompleted = func() {
				// Another request completes the row after our status check.
				mockRepo.beforeSetCompleted = nil
				row := mockRepo.payments[pending.ID]
				row.Status = payment.StatusCompleted
				row.TransactionID = "txn_real_1"
				row.CompletedAt = &completedAt
			}

			p, err := service.Complete(pending.ID, "txn_real_1")

			Expect(err).ToNot(HaveOccurred())
			Expect(p.Status).To(Equal(payment.StatusCompleted))
			Expect(p.TransactionID).To(Equal("txn_real_1"))
		})

		It("should not complete a payment that failed under its feet", func() {
			mockRepo.beforeSetCompleted = func() {
				mockRepo.beforeSetCompleted = nil
				mockRepo.payments[pending.ID].Status = payment.StatusFailed
			}

			_, err := service.Complete(pending.ID, "txn_real_1")

			Expect(err).To(MatchError(apperrors.ErrInvalidTransition))
		})
	})

	Describe("MarkFailed", func() {
		It("should move a pending payment to failed with a reason", func() {
			p, err := service.OpenPending(10, 20, 49900, payment.MethodCard, "")
			Expect(err).ToNot(HaveOccurred())

			Expect(service.MarkFailed(p.ID, "card declined")).To(Succeed())

			reloaded, err := service.GetByID(p.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(reloaded.Status).To(Equal(payment.StatusFailed))
			Expect(*reloaded.FailureReason).To(Equal("card declined"))
		})

		It("should refuse to fail a completed payment", func() {
			p, err := service.OpenPending(10, 20, 49900, payment.MethodCard, "")
			Expect(err).ToNot(HaveOccurred())
			_, err = service.Complete(p.ID, "txn_real_1")
			Expect(err).ToNot(HaveOccurred())

			Expect(service.MarkFailed(p.ID, "too late")).To(MatchError(apperrors.ErrInvalidTransition))
		})
	})

	Describe("MarkRefunded", func() {
		It("should move a completed payment to refunded", func() {
			p, err := service.OpenPending(10, 20, 49900, payment.MethodCard, "")
			Expect(err).ToNot(HaveOccurred())
			_, err = service.Complete(p.ID, "txn_real_1")
			Expect(err).ToNot(HaveOccurred())

			Expect(service.MarkRefunded(p.ID, "requested by learner")).To(Succeed())

			reloaded, err := service.GetByID(p.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(reloaded.Status).To(Equal(payment.StatusRefunded))
			Expect(reloaded.RefundedAt).ToNot(BeNil())
		})

		It("should refuse to refund a pending payment", func() {
			p, err := service.OpenPending(10, 20, 49900, payment.MethodCard, "")
			Expect(err).ToNot(HaveOccurred())

			Expect(service.MarkRefunded(p.ID, "nope")).To(MatchError(apperrors.ErrInvalidTransition))
		})
	})

	Describe("HistoryForLearner", func() {
		It("should list only the learner's payments", func() {
			_, err := service.OpenPending(10, 20, 49900, payment.MethodCard, "")
			Expect(err).ToNot(HaveOccurred())
			_, err = service.OpenPending(10, 21, 29900, payment.MethodCard, "")
			Expect(err).ToNot(HaveOccurred())
			_, err = service.OpenPending(11, 20, 49900, payment.MethodCard, "")
			Expect(err).ToNot(HaveOccurred())

			payments, err := service.HistoryForLearner(10)

			Expect(err).ToNot(HaveOccurred())
			Expect(payments).To(HaveLen(2))
			for _, p := range payments {
				Expect(p.LearnerID).To(Equal(int64(10)))
			}
		})
	})
})
