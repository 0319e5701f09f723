package repair_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Lingeshemvigo/lms-backend/internal/core/datamodel/payment"
	"github.com/Lingeshemvigo/lms-backend/internal/repair"
)

func TestRepairJob(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Repair Job Suite")
}

type mockRepairRepository struct {
	mu          sync.Mutex
	payments    map[int64]*payment.Payment
	deleteError error
	assignError error
}

func newMockRepairRepository() *mockRepairRepository {
	return &mockRepairRepository{
		payments: make(map[int64]*payment.Payment),
	}
}

func (m *mockRepairRepository) add(p *payment.Payment) {
	m.payments[p.ID] = p
}

func (m *mockRepairRepository) ListAll() ([]*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var payments []*payment.Payment
	for _, p := range m.payments {
		copied := *p
		payments = append(payments, &copied)
	}
	return payments, nil
}

func (m *mockRepairRepository) ListMissingTransactionIDs() ([]*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var payments []*payment.Payment
	for _, p := range m.payments {
		if p.TransactionID == "" {
			copied := *p
			payments = append(payments, &copied)
		}
	}
	return payments, nil
}

func (m *mockRepairRepository) DeleteByIDs(ids []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteError != nil {
		return 0, m.deleteError
	}
	var deleted int64
	for _, id := range ids {
		if _, exists := m.payments[id]; exists {
			delete(m.payments, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *mockRepairRepository) AssignTransactionID(id int64, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.assignError != nil {
		return m.assignError
	}
	p, exists := m.payments[id]
	if !exists {
		return errors.New("payment not found")
	}
	p.TransactionID = transactionID
	return nil
}

var _ = Describe("RepairJob", func() {
	var (
		job      *repair.Job
		mockRepo *mockRepairRepository
		ctx      context.Context
	)

	newPayment := func(id, learnerID, courseID int64, status string, age time.Duration) *payment.Payment {
		return &payment.Payment{
			ID:            id,
			LearnerID:     learnerID,
			CourseID:      courseID,
			AmountCents:   49900,
			PaymentMethod: payment.MethodCard,
			TransactionID: "txn_" + status + "_" + time.Duration(id).String(),
			Status:        status,
			CreatedAt:     time.Now().Add(-age),
		}
	}

	BeforeEach(func() {
		mockRepo = newMockRepairRepository()
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		job = repair.NewJob(mockRepo, repair.Config{Workers: 2}, logger)
		ctx = context.Background()
	})

	Context("when the table has no duplicates", func() {
		It("should report a clean run", func() {
			mockRepo.add(newPayment(1, 10, 20, payment.StatusCompleted, time.Hour))
			mockRepo.add(newPayment(2, 10, 21, payment.StatusCompleted, time.Hour))
			mockRepo.add(newPayment(3, 11, 20, payment.StatusPending, time.Hour))

			report, err := job.Run(ctx)

			Expect(err).ToNot(HaveOccurred())
			Expect(report.ScannedPayments).To(Equal(3))
			Expect(report.DuplicateGroups).To(Equal(0))
			Expect(report.DeletedPayments).To(Equal(int64(0)))
			Expect(report.Errors).To(Equal(int64(0)))
		})
	})

	Context("when a group has exactly one completed payment", func() {
		It("should keep the completed row and delete the rest", func() {
			mockRepo.add(newPayment(1, 10, 20, payment.StatusFailed, 3*time.Hour))
			mockRepo.add(newPayment(2, 10, 20, payment.StatusCompleted, 2*time.Hour))
			mockRepo.add(newPayment(3, 10, 20, payment.StatusPending, time.Hour))

			report, err := job.Run(ctx)

			Expect(err).ToNot(HaveOccurred())
			Expect(report.DuplicateGroups).To(Equal(1))
			Expect(report.DeletedPayments).To(Equal(int64(2)))
			Expect(mockRepo.payments).To(HaveLen(1))
			Expect(mockRepo.payments[2]).ToNot(BeNil())
			Expect(mockRepo.payments[2].Status).To(Equal(payment.StatusCompleted))
		})
	})

	Context("when a group has no completed payment", func() {
		It("should keep the newest row", func() {
			mockRepo.add(newPayment(1, 10, 20, payment.StatusFailed, 3*time.Hour))
			mockRepo.add(newPayment(2, 10, 20, payment.StatusPending, time.Hour))
			mockRepo.add(newPayment(3, 10, 20, payment.StatusFailed, 2*time.Hour))

			report, err := job.Run(ctx)

			Expect(err).ToNot(HaveOccurred())
			Expect(report.DeletedPayments).To(Equal(int64(2)))
			Expect(mockRepo.payments).To(HaveLen(1))
			Expect(mockRepo.payments[2]).ToNot(BeNil())
		})
	})

	Context("when a group has multiple completed payments", func() {
		It("should keep the newest row", func() {
			mockRepo.add(newPayment(1, 10, 20, payment.StatusCompleted, 3*time.Hour))
			mockRepo.add(newPayment(2, 10, 20, payment.StatusCompleted, time.Hour))

			report, err := job.Run(ctx)

			Expect(err).ToNot(HaveOccurred())
			Expect(report.DeletedPayments).To(Equal(int64(1)))
			Expect(mockRepo.payments[2]).ToNot(BeNil())
			Expect(mockRepo.payments[1]).To(BeNil())
		})
	})

	Context("when payments are missing transaction ids", func() {
		It("should assign placeholders with the repair prefix", func() {
			orphan := newPayment(1, 10, 20, payment.StatusPending, time.Hour)
			orphan.TransactionID = ""
			mockRepo.add(orphan)
			mockRepo.add(newPayment(2, 11, 20, payment.StatusCompleted, time.Hour))

			report, err := job.Run(ctx)

			Expect(err).ToNot(HaveOccurred())
			Expect(report.PlaceholdersAssigned).To(Equal(int64(1)))
			Expect(strings.HasPrefix(mockRepo.payments[1].TransactionID, "repair_")).To(BeTrue())
		})
	})

	Context("when a delete fails", func() {
		It("should count the error and keep going", func() {
			mockRepo.add(newPayment(1, 10, 20, payment.StatusCompleted, 2*time.Hour))
			mockRepo.add(newPayment(2, 10, 20, payment.StatusPending, time.Hour))
			mockRepo.deleteError = errors.New("deadlock detected")

			report, err := job.Run(ctx)

			Expect(err).ToNot(HaveOccurred())
			Expect(report.Errors).To(Equal(int64(1)))
			Expect(report.DeletedPayments).To(Equal(int64(0)))
			Expect(mockRepo.payments).To(HaveLen(2))
		})
	})

	Context("when assigning a placeholder fails", func() {
		It("should count the error and keep going", func() {
			orphan := newPayment(1, 10, 20, payment.StatusPending, time.Hour)
			orphan.TransactionID = ""
			mockRepo.add(orphan)
			mockRepo.assignError = errors.New("connection reset")

			report, err := job.Run(ctx)

			Expect(err).ToNot(HaveOccurred())
			Expect(report.PlaceholdersAssigned).To(Equal(int64(0)))
			Expect(report.Errors).To(Equal(int64(1)))
		})
	})

	Context("when many independent groups exist", func() {
		It("should deduplicate all of them", func() {
			var id int64 = 1
			for learner := int64(1); learner <= 5; learner++ {
				for i := 0; i < 3; i++ {
					p := newPayment(id, learner, 20, payment.StatusPending, time.Duration(i+1)*time.Hour)
					id++
					mockRepo.add(p)
				}
			}

			report, err := job.Run(ctx)

			Expect(err).ToNot(HaveOccurred())
			Expect(report.DuplicateGroups).To(Equal(5))
			Expect(report.DeletedPayments).To(Equal(int64(10)))
			Expect(mockRepo.payments).To(HaveLen(5))
		})
	})
})
