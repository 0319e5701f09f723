package postgres

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Lingeshemvigo/lms-backend/internal/core/datamodel/payment"
	ledgerpkg "github.com/Lingeshemvigo/lms-backend/internal/ledger"
)

func TestLedgerRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Ledger Repository Suite")
}

func strPtr(s string) *string {
	return &s
}

var _ = Describe("LedgerRepository", func() {
	var (
		db   *gorm.DB
		repo ledgerpkg.Repository
	)

	BeforeEach(func() {
		// In-memory SQLite; TranslateError so unique violations surface
		// as gorm.ErrDuplicatedKey like the postgres driver.
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			TranslateError: true,
			NowFunc: func() time.Time {
				return time.Now().UTC()
			},
		})
		Expect(err).ToNot(HaveOccurred())

		err = db.AutoMigrate(&payment.Payment{})
		Expect(err).ToNot(HaveOccurred())

		repo = NewLedgerRepository(db)
	})

	Describe("Create", func() {
		It("should insert a payment and set its ID", func() {
			p := &payment.Payment{
				LearnerID:     10,
				CourseID:      20,
				AmountCents:   49900,
				PaymentMethod: payment.MethodCard,
				TransactionID: "temp_1_abcd1234_20_10",
				Status:        payment.StatusPending,
			}

			err := repo.Create(p)

			Expect(err).ToNot(HaveOccurred())
			Expect(p.ID).To(BeNumerically(">", 0))
		})

		It("should reject a duplicate transaction id with the sentinel", func() {
			first := &payment.Payment{
				LearnerID:     10,
				CourseID:      20,
				AmountCents:   49900,
				PaymentMethod: payment.MethodCard,
				TransactionID: "temp_1_abcd1234_20_10",
				Status:        payment.StatusPending,
			}
			second := &payment.Payment{
				LearnerID:     11,
				CourseID:      20,
				AmountCents:   49900,
				PaymentMethod: payment.MethodCard,
				TransactionID: "temp_1_abcd1234_20_10",
				Status:        payment.StatusPending,
			}

			Expect(repo.Create(first)).To(Succeed())
			Expect(repo.Create(second)).To(MatchError(ledgerpkg.ErrDuplicateTransactionID))
		})
	})

	Describe("GetByIntentID", func() {
		BeforeEach(func() {
			p := &payment.Payment{
				LearnerID:       10,
				CourseID:        20,
				AmountCents:     49900,
				PaymentMethod:   payment.MethodCard,
				TransactionID:   "temp_1_abcd1234_20_10",
				PaymentIntentID: strPtr("pi_abc123"),
				Status:          payment.StatusPending,
			}
			Expect(repo.Create(p)).To(Succeed())
		})

		It("should return the payment for a known intent id", func() {
			result, err := repo.GetByIntentID("pi_abc123")

			Expect(err).ToNot(HaveOccurred())
			Expect(result.LearnerID).To(Equal(int64(10)))
			Expect(result.CourseID).To(Equal(int64(20)))
		})

		It("should return the not found sentinel for an unknown intent id", func() {
			result, err := repo.GetByIntentID("pi_missing")

			Expect(err).To(MatchError(ledgerpkg.ErrNotFound))
			Expect(result).To(BeNil())
		})
	})

	Describe("SetCompleted", func() {
		var pending *payment.Payment

		BeforeEach(func() {
			pending = &payment.Payment{
				LearnerID:     10,
				CourseID:      20,
				AmountCents:   49900,
				PaymentMethod: payment.MethodCard,
				TransactionID: "temp_1_abcd1234_20_10",
				Status:        payment.StatusPending,
			}
			Expect(repo.Create(pending)).To(Succeed())
		})

		It("should replace the placeholder and stamp completed_at", func() {
			completedAt := time.Now().UTC()

			err := repo.SetCompleted(pending.ID, "txn_real_1", completedAt)

			Expect(err).ToNot(HaveOccurred())
			updated, err := repo.GetByID(pending.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(updated.Status).To(Equal(payment.StatusCompleted))
			Expect(updated.TransactionID).To(Equal("txn_real_1"))
			Expect(updated.CompletedAt).ToNot(BeNil())
		})

		It("should reject a transaction id another row already claimed", func() {
			other := &payment.Payment{
				LearnerID:     11,
				CourseID:      20,
				AmountCents:   49900,
				PaymentMethod: payment.MethodCard,
				TransactionID: "txn_real_1",
				Status:        payment.StatusCompleted,
			}
			Expect(repo.Create(other)).To(Succeed())

			err := repo.SetCompleted(pending.ID, "txn_real_1", time.Now().UTC())

			Expect(err).To(MatchError(ledgerpkg.ErrDuplicateTransactionID))
		})

		It("should not touch a row that already left pending", func() {
			Expect(repo.SetFailed(pending.ID, "card declined")).To(Succeed())

			err := repo.SetCompleted(pending.ID, "txn_real_1", time.Now().UTC())

			Expect(err).To(MatchError(ledgerpkg.ErrStaleRow))
			reloaded, getErr := repo.GetByID(pending.ID)
			Expect(getErr).ToNot(HaveOccurred())
			Expect(reloaded.Status).To(Equal(payment.StatusFailed))
			Expect(reloaded.TransactionID).To(Equal("temp_1_abcd1234_20_10"))
		})

		It("should apply only the first of two competing completions", func() {
			Expect(repo.SetCompleted(pending.ID, "txn_real_1", time.Now().UTC())).To(Succeed())

			err := repo.SetCompleted(pending.ID, "txn_real_2", time.Now().UTC())

			Expect(err).To(MatchError(ledgerpkg.ErrStaleRow))
			reloaded, getErr := repo.GetByID(pending.ID)
			Expect(getErr).ToNot(HaveOccurred())
			Expect(reloaded.TransactionID).To(Equal("txn_real_1"))
		})
	})

	Describe("ListByLearner", func() {
		BeforeEach(func() {
			payments := []*payment.Payment{
				{
					LearnerID:     10,
					CourseID:      20,
					AmountCents:   49900,
					PaymentMethod: payment.MethodCard,
					TransactionID: "txn_old",
					Status:        payment.StatusCompleted,
					CreatedAt:     time.Now().Add(-2 * time.Hour),
				},
				{
					LearnerID:     10,
					CourseID:      21,
					AmountCents:   29900,
					PaymentMethod: payment.MethodCard,
					TransactionID: "txn_new",
					Status:        payment.StatusCompleted,
					CreatedAt:     time.Now().Add(-1 * time.Hour),
				},
				{
					LearnerID:     11,
					CourseID:      20,
					AmountCents:   49900,
					PaymentMethod: payment.MethodCard,
					TransactionID: "txn_other_learner",
					Status:        payment.StatusPending,
				},
			}
			for _, p := range payments {
				Expect(repo.Create(p)).To(Succeed())
			}
		})

		It("should return the learner's payments newest first", func() {
			results, err := repo.ListByLearner(10)

			Expect(err).ToNot(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].TransactionID).To(Equal("txn_new"))
			Expect(results[1].TransactionID).To(Equal("txn_old"))
		})

		It("should return an empty slice for a learner with no payments", func() {
			results, err := repo.ListByLearner(999)

			Expect(err).ToNot(HaveOccurred())
			Expect(results).To(BeEmpty())
		})
	})

	Describe("SetFailed and SetRefunded", func() {
		var p *payment.Payment

		BeforeEach(func() {
			p = &payment.Payment{
				LearnerID:     10,
				CourseID:      20,
				AmountCents:   49900,
				PaymentMethod: payment.MethodCard,
				TransactionID: "temp_1_abcd1234_20_10",
				Status:        payment.StatusPending,
			}
			Expect(repo.Create(p)).To(Succeed())
		})

		It("should record the failure reason", func() {
			err := repo.SetFailed(p.ID, "card declined")

			Expect(err).ToNot(HaveOccurred())
			updated, err := repo.GetByID(p.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(updated.Status).To(Equal(payment.StatusFailed))
			Expect(*updated.FailureReason).To(Equal("card declined"))
		})

		It("should refuse to fail a row that already left pending", func() {
			Expect(repo.SetCompleted(p.ID, "txn_real_1", time.Now().UTC())).To(Succeed())

			Expect(repo.SetFailed(p.ID, "too late")).To(MatchError(ledgerpkg.ErrStaleRow))
		})

		It("should record the refund reason and timestamp", func() {
			Expect(repo.SetCompleted(p.ID, "txn_real_1", time.Now().UTC())).To(Succeed())

			err := repo.SetRefunded(p.ID, "requested by learner", time.Now().UTC())

			Expect(err).ToNot(HaveOccurred())
			updated, err := repo.GetByID(p.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(updated.Status).To(Equal(payment.StatusRefunded))
			Expect(updated.RefundedAt).ToNot(BeNil())
		})

		It("should refuse to refund a payment that never completed", func() {
			Expect(repo.SetRefunded(p.ID, "nope", time.Now().UTC())).To(MatchError(ledgerpkg.ErrStaleRow))
		})
	})
})
