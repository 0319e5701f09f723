package reconcile

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	apperrors "github.com/Lingeshemvigo/lms-backend/internal"
	"github.com/Lingeshemvigo/lms-backend/internal/auth"
	"github.com/Lingeshemvigo/lms-backend/internal/enrollment"
	"github.com/Lingeshemvigo/lms-backend/internal/ledger"
	"github.com/Lingeshemvigo/lms-backend/internal/transport"
)

type Handler struct {
	transport.BaseHandler
	Coordinator *Coordinator
	Logger      *slog.Logger
}

func NewHandler(coordinator *Coordinator, logger *slog.Logger) *Handler {
	return &Handler{
		Coordinator: coordinator,
		Logger:      logger,
	}
}

// CreateIntent handles POST /api/v1/payments/intent
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.HandleError(w, apperrors.NewUnauthorizedError("authentication required", apperrors.ErrCodeInvalidToken))
		return
	}

	var req CreateIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("CreateIntent: failed to parse request body", "error", err)
		h.HandleError(w, apperrors.NewValidationError("invalid request body", apperrors.ErrCodeValidationFailed))
		return
	}

	if err := req.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	result, err := h.Coordinator.OpenPurchase(r.Context(), user.ID, req.CourseID, req.PaymentMethod)
	if err != nil {
		h.Logger.Error("CreateIntent: service error", "error", err, "learner_id", user.ID, "course_id", req.CourseID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("CreateIntent: purchase opened",
		"learner_id", user.ID,
		"course_id", req.CourseID,
		"payment_id", result.Payment.ID)

	h.WriteJSON(w, http.StatusCreated, ToPurchaseResponse(result))
}

// Confirm handles POST /api/v1/payments/confirm
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.HandleError(w, apperrors.NewUnauthorizedError("authentication required", apperrors.ErrCodeInvalidToken))
		return
	}

	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("Confirm: failed to parse request body", "error", err)
		h.HandleError(w, apperrors.NewValidationError("invalid request body", apperrors.ErrCodeValidationFailed))
		return
	}

	if err := req.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	p, e, err := h.Coordinator.Confirm(r.Context(), user.ID, req.PaymentIntentID)
	if err != nil {
		h.Logger.Error("Confirm: service error", "error", err, "learner_id", user.ID, "intent_id", req.PaymentIntentID)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("Confirm: payment reconciled",
		"learner_id", user.ID,
		"payment_id", p.ID,
		"enrollment_id", e.ID)

	h.WriteJSON(w, http.StatusOK, ConfirmResponse{
		Payment:    ledger.ToPaymentResponse(p),
		Enrollment: enrollment.ToEnrollmentResponse(e),
	})
}

// Enroll handles POST /api/v1/enrollments for free courses.
func (h *Handler) Enroll(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.HandleError(w, apperrors.NewUnauthorizedError("authentication required", apperrors.ErrCodeInvalidToken))
		return
	}

	var req EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("Enroll: failed to parse request body", "error", err)
		h.HandleError(w, apperrors.NewValidationError("invalid request body", apperrors.ErrCodeValidationFailed))
		return
	}

	if err := req.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	result, err := h.Coordinator.EnrollFree(r.Context(), user.ID, req.CourseID)
	if err != nil {
		h.Logger.Error("Enroll: service error", "error", err, "learner_id", user.ID, "course_id", req.CourseID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, ToPurchaseResponse(result))
}

// Refund handles POST /api/v1/payments/{paymentID}/refund
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.HandleError(w, apperrors.NewUnauthorizedError("authentication required", apperrors.ErrCodeInvalidToken))
		return
	}

	paymentID, err := strconv.ParseInt(chi.URLParam(r, "paymentID"), 10, 64)
	if err != nil {
		h.Logger.Error("Refund: invalid payment ID", "payment_id", chi.URLParam(r, "paymentID"))
		h.HandleError(w, apperrors.NewValidationError("invalid payment ID", apperrors.ErrCodeValidationFailed))
		return
	}

	var req RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("Refund: failed to parse request body", "error", err)
		h.HandleError(w, apperrors.NewValidationError("invalid request body", apperrors.ErrCodeValidationFailed))
		return
	}

	if err := req.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	if err := h.Coordinator.Refund(r.Context(), user.ID, paymentID, req.Reason); err != nil {
		h.Logger.Error("Refund: service error", "error", err, "learner_id", user.ID, "payment_id", paymentID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "refunded",
		"payment_id": paymentID,
	})
}
