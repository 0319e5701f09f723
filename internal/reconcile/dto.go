package reconcile

import (
	"github.com/Lingeshemvigo/lms-backend/internal/core/common/validation"
	"github.com/Lingeshemvigo/lms-backend/internal/enrollment"
	"github.com/Lingeshemvigo/lms-backend/internal/ledger"
)

type CreateIntentRequest struct {
	CourseID      int64  `json:"course_id" validate:"required"`
	PaymentMethod string `json:"payment_method"`
}

func (r *CreateIntentRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("course_id", r.CourseID).Required()

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

type ConfirmRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
}

func (r *ConfirmRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("payment_intent_id", r.PaymentIntentID).Required()

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

type EnrollRequest struct {
	CourseID int64 `json:"course_id" validate:"required"`
}

func (r *EnrollRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("course_id", r.CourseID).Required()

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

type RefundRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (r *RefundRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("reason", r.Reason).Required().MaxLength(500)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

type PurchaseResponse struct {
	Payment      ledger.PaymentResponse         `json:"payment"`
	Enrollment   *enrollment.EnrollmentResponse `json:"enrollment,omitempty"`
	ClientSecret string                         `json:"client_secret,omitempty"`
}

func ToPurchaseResponse(result *PurchaseResult) PurchaseResponse {
	resp := PurchaseResponse{
		Payment:      ledger.ToPaymentResponse(result.Payment),
		ClientSecret: result.ClientSecret,
	}
	if result.Enrollment != nil {
		e := enrollment.ToEnrollmentResponse(result.Enrollment)
		resp.Enrollment = &e
	}
	return resp
}

type ConfirmResponse struct {
	Payment    ledger.PaymentResponse        `json:"payment"`
	Enrollment enrollment.EnrollmentResponse `json:"enrollment"`
}
