package ledger

import (
	"time"

	"github.com/Lingeshemvigo/lms-backend/internal/core/datamodel/payment"
)

// PaymentResponse is the API representation of a ledger row.
type PaymentResponse struct {
	ID              int64      `json:"id"`
	CourseID        int64      `json:"course_id"`
	AmountCents     int64      `json:"amount_cents"`
	PaymentMethod   string     `json:"payment_method"`
	TransactionID   string     `json:"transaction_id"`
	PaymentIntentID *string    `json:"payment_intent_id,omitempty"`
	Status          string     `json:"status"`
	FailureReason   *string    `json:"failure_reason,omitempty"`
	RefundReason    *string    `json:"refund_reason,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	RefundedAt      *time.Time `json:"refunded_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func ToPaymentResponse(p *payment.Payment) PaymentResponse {
	return PaymentResponse{
		ID:              p.ID,
		CourseID:        p.CourseID,
		AmountCents:     p.AmountCents,
		PaymentMethod:   p.PaymentMethod,
		TransactionID:   p.TransactionID,
		PaymentIntentID: p.PaymentIntentID,
		Status:          p.Status,
		FailureReason:   p.FailureReason,
		RefundReason:    p.RefundReason,
		CompletedAt:     p.CompletedAt,
		RefundedAt:      p.RefundedAt,
		CreatedAt:       p.CreatedAt,
	}
}

type PaymentHistoryResponse struct {
	Payments []PaymentResponse `json:"payments"`
	Total    int               `json:"total"`
}

func ToPaymentHistoryResponse(payments []*payment.Payment) PaymentHistoryResponse {
	resp := PaymentHistoryResponse{
		Payments: make([]PaymentResponse, 0, len(payments)),
		Total:    len(payments),
	}
	for _, p := range payments {
		resp.Payments = append(resp.Payments, ToPaymentResponse(p))
	}
	return resp
}
