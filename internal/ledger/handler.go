package ledger

import (
	"log/slog"
	"net/http"

	apperrors "github.com/Lingeshemvigo/lms-backend/internal"
	"github.com/Lingeshemvigo/lms-backend/internal/auth"
	"github.com/Lingeshemvigo/lms-backend/internal/core/datamodel/payment"
	"github.com/Lingeshemvigo/lms-backend/internal/transport"
)

type ServiceAPI interface {
	HistoryForLearner(learnerID int64) ([]*payment.Payment, error)
}

type Handler struct {
	transport.BaseHandler
	Service ServiceAPI
	Logger  *slog.Logger
}

func NewHandler(service ServiceAPI, logger *slog.Logger) *Handler {
	return &Handler{
		Service: service,
		Logger:  logger,
	}
}

// History handles GET /api/v1/payments
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("History: user not found in context")
		h.HandleError(w, apperrors.NewUnauthorizedError("authentication required", apperrors.ErrCodeInvalidToken))
		return
	}

	payments, err := h.Service.HistoryForLearner(user.ID)
	if err != nil {
		h.Logger.Error("History: service error", "error", err, "learner_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToPaymentHistoryResponse(payments))
}
