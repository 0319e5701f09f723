package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	apperrors "github.com/Lingeshemvigo/lms-backend/internal"
	"github.com/Lingeshemvigo/lms-backend/internal/core/datamodel/course"
	"github.com/Lingeshemvigo/lms-backend/internal/transport"
)

type ServiceAPI interface {
	Get(courseID int64) (*course.Course, error)
	ListPublished() ([]*course.Course, error)
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

// ListCourses handles GET /api/v1/courses
func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.Service.ListPublished()
	if err != nil {
		h.Logger.Error("ListCourses: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToCourseListResponse(courses))
}

// GetCourse handles GET /api/v1/courses/{courseID}
func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	courseID, err := strconv.ParseInt(chi.URLParam(r, "courseID"), 10, 64)
	if err != nil {
		h.Logger.Error("GetCourse: invalid course ID", "course_id", chi.URLParam(r, "courseID"))
		h.HandleError(w, apperrors.NewValidationError("invalid course ID", apperrors.ErrCodeValidationFailed))
		return
	}

	c, err := h.Service.Get(courseID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ToCourseResponse(c))
}
