package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentCompleted  = "payment.completed"
	EventTypePaymentFailed     = "payment.failed"
	EventTypeEnrollmentCreated = "enrollment.created"
)

type PaymentCompletedEvent struct {
	BaseEvent
	PaymentID     int64  `json:"payment_id"`
	LearnerID     int64  `json:"learner_id"`
	CourseID      int64  `json:"course_id"`
	AmountCents   int64  `json:"amount_cents"`
	TransactionID string `json:"transaction_id"`
}

func NewPaymentCompletedEvent(paymentID, learnerID, courseID, amountCents int64, transactionID string) *PaymentCompletedEvent {
	return &PaymentCompletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentCompleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":     paymentID,
				"learner_id":     learnerID,
				"course_id":      courseID,
				"amount_cents":   amountCents,
				"transaction_id": transactionID,
			},
		},
		PaymentID:     paymentID,
		LearnerID:     learnerID,
		CourseID:      courseID,
		AmountCents:   amountCents,
		TransactionID: transactionID,
	}
}

type PaymentFailedEvent struct {
	BaseEvent
	PaymentID     int64  `json:"payment_id"`
	LearnerID     int64  `json:"learner_id"`
	CourseID      int64  `json:"course_id"`
	FailureReason string `json:"failure_reason"`
}

func NewPaymentFailedEvent(paymentID, learnerID, courseID int64, failureReason string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":     paymentID,
				"learner_id":     learnerID,
				"course_id":      courseID,
				"failure_reason": failureReason,
			},
		},
		PaymentID:     paymentID,
		LearnerID:     learnerID,
		CourseID:      courseID,
		FailureReason: failureReason,
	}
}

type EnrollmentCreatedEvent struct {
	BaseEvent
	EnrollmentID int64 `json:"enrollment_id"`
	LearnerID    int64 `json:"learner_id"`
	CourseID     int64 `json:"course_id"`
	PaymentID    int64 `json:"payment_id"`
}

func NewEnrollmentCreatedEvent(enrollmentID, learnerID, courseID, paymentID int64) *EnrollmentCreatedEvent {
	return &EnrollmentCreatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeEnrollmentCreated,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"enrollment_id": enrollmentID,
				"learner_id":    learnerID,
				"course_id":     courseID,
				"payment_id":    paymentID,
			},
		},
		EnrollmentID: enrollmentID,
		LearnerID:    learnerID,
		CourseID:     courseID,
		PaymentID:    paymentID,
	}
}
