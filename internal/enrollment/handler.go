package enrollment

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	apperrors "github.com/Lingeshemvigo/lms-backend/internal"
	"github.com/Lingeshemvigo/lms-backend/internal/auth"
	"github.com/Lingeshemvigo/lms-backend/internal/core/datamodel/enrollment"
	"github.com/Lingeshemvigo/lms-backend/internal/transport"
)

type ServiceAPI interface {
	Get(learnerID, courseID int64) (*enrollment.Enrollment, error)
	ListForLearner(learnerID int64) ([]*enrollment.Enrollment, error)
	UpdateProgress(learnerID, courseID int64, completedLessonIDs []int64, totalLessons int) (*enrollment.Enrollment, error)
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

// GetEnrollment handles GET /api/v1/courses/{courseID}/enrollment
func (h *Handler) GetEnrollment(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.HandleError(w, apperrors.NewUnauthorizedError("authentication required", apperrors.ErrCodeInvalidToken))
		return
	}

	courseID, err := strconv.ParseInt(chi.URLParam(r, "courseID"), 10, 64)
	if err != nil {
		h.Logger.Error("GetEnrollment: invalid course ID", "course_id", chi.URLParam(r, "courseID"))
		h.HandleError(w, apperrors.NewValidationError("invalid course ID", apperrors.ErrCodeValidationFailed))
		return
	}

	e, err := h.Service.Get(user.ID, courseID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToEnrollmentResponse(e))
}

// ListEnrollments handles GET /api/v1/enrollments
func (h *Handler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.HandleError(w, apperrors.NewUnauthorizedError("authentication required", apperrors.ErrCodeInvalidToken))
		return
	}

	enrollments, err := h.Service.ListForLearner(user.ID)
	if err != nil {
		h.Logger.Error("ListEnrollments: service error", "error", err, "learner_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToEnrollmentListResponse(enrollments))
}

// UpdateProgress handles PUT /api/v1/courses/{courseID}/progress
func (h *Handler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.HandleError(w, apperrors.NewUnauthorizedError("authentication required", apperrors.ErrCodeInvalidToken))
		return
	}

	courseID, err := strconv.ParseInt(chi.URLParam(r, "courseID"), 10, 64)
	if err != nil {
		h.Logger.Error("UpdateProgress: invalid course ID", "course_id", chi.URLParam(r, "courseID"))
		h.HandleError(w, apperrors.NewValidationError("invalid course ID", apperrors.ErrCodeValidationFailed))
		return
	}

	var req UpdateProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("UpdateProgress: failed to parse request body", "error", err)
		h.HandleError(w, apperrors.NewValidationError("invalid request body", apperrors.ErrCodeValidationFailed))
		return
	}

	if err := req.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	e, err := h.Service.UpdateProgress(user.ID, courseID, req.CompletedLessonIDs, req.TotalLessons)
	if err != nil {
		h.Logger.Error("UpdateProgress: service error", "error", err, "learner_id", user.ID, "course_id", courseID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToEnrollmentResponse(e))
}
