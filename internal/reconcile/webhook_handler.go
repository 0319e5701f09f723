package reconcile

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Lingeshemvigo/lms-backend/internal/transport"
)

// WebhookHandler receives the gateway's server-to-server notifications.
// The webhook only tells us which intent changed; the coordinator still
// verifies against the gateway before trusting anything.
type WebhookHandler struct {
	transport.BaseHandler
	coordinator   *Coordinator
	webhookSecret string
	logger        *slog.Logger
}

func NewWebhookHandler(coordinator *Coordinator, webhookSecret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		coordinator:   coordinator,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

type GatewayCallbackRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
	EventType       string `json:"event_type"`
}

type GatewayCallbackResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *WebhookHandler) HandleGatewayCallback(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get("X-Webhook-Secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.webhookSecret)) != 1 {
		h.logger.Warn("gateway callback with invalid secret")
		h.WriteErrorResponse(w, http.StatusUnauthorized, "invalid webhook secret")
		return
	}

	var req GatewayCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("invalid gateway callback request", "error", err)
		h.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.PaymentIntentID == "" {
		h.logger.Error("gateway callback missing payment_intent_id")
		h.WriteErrorResponse(w, http.StatusBadRequest, "payment_intent_id is required")
		return
	}

	h.logger.Info("received gateway callback",
		"payment_intent_id", req.PaymentIntentID,
		"event_type", req.EventType)

	p, e, err := h.coordinator.ConfirmFromGateway(r.Context(), req.PaymentIntentID)
	if err != nil {
		h.logger.Error("failed to process gateway callback",
			"error", err,
			"payment_intent_id", req.PaymentIntentID)
		h.WriteErrorResponse(w, http.StatusInternalServerError, "failed to process callback")
		return
	}

	h.logger.Info("gateway callback processed",
		"payment_id", p.ID,
		"enrollment_id", e.ID,
		"payment_intent_id", req.PaymentIntentID)

	h.WriteJSON(w, http.StatusOK, GatewayCallbackResponse{
		Status:  "success",
		Message: "callback processed successfully",
	})
}

func (h *WebhookHandler) WriteErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]string{
		"error": message,
	}
	h.WriteJSON(w, statusCode, response)
}
