package payment

import (
	"strings"
	"time"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"
)

const (
	MethodCard         = "credit_card"
	MethodDebitCard    = "debit_card"
	MethodPaypal       = "paypal"
	MethodBankTransfer = "bank_transfer"
	MethodFree         = "free"
)

// Payment is a ledger row for one purchase attempt. TransactionID holds a
// locally generated placeholder until the gateway's canonical id is known;
// both go through the same unique index, so a gateway id can never be
// claimed by two rows.
type Payment struct {
	ID              int64      `json:"id" gorm:"primaryKey"`
	LearnerID       int64      `json:"learner_id" gorm:"column:learner_id;not null;index:idx_payments_learner_course"`
	CourseID        int64      `json:"course_id" gorm:"column:course_id;not null;index:idx_payments_learner_course"`
	AmountCents     int64      `json:"amount_cents" gorm:"column:amount_cents;not null"`
	PaymentMethod   string     `json:"payment_method" gorm:"column:payment_method;default:credit_card"`
	TransactionID   string     `json:"transaction_id" gorm:"column:transaction_id;not null;uniqueIndex"`
	PaymentIntentID *string    `json:"payment_intent_id,omitempty" gorm:"column:payment_intent_id;uniqueIndex"`
	Status          string     `json:"status" gorm:"column:status;default:pending"`
	FailureReason   *string    `json:"failure_reason,omitempty" gorm:"column:failure_reason"`
	RefundReason    *string    `json:"refund_reason,omitempty" gorm:"column:refund_reason"`
	CompletedAt     *time.Time `json:"completed_at,omitempty" gorm:"column:completed_at"`
	RefundedAt      *time.Time `json:"refunded_at,omitempty" gorm:"column:refunded_at"`
	CreatedAt       time.Time  `json:"created_at" gorm:"column:created_at;default:now()"`
	UpdatedAt       time.Time  `json:"updated_at" gorm:"column:updated_at;default:now()"`
}

func (Payment) TableName() string {
	return "payments"
}

// HasPlaceholderTransactionID reports whether the row still carries a
// locally minted id rather than the gateway's canonical one.
func (p *Payment) HasPlaceholderTransactionID() bool {
	return strings.HasPrefix(p.TransactionID, "temp_") ||
		strings.HasPrefix(p.TransactionID, "repair_")
}
