package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lingeshemvigo/lms-backend/internal/core/events"
)

// EventHandler keeps the catalog's enrolled-students counter in sync with
// enrollments created by the reconciliation flow.
type EventHandler struct {
	service *Service
	logger  *slog.Logger
}

func NewEventHandler(service *Service, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		service: service,
		logger:  logger,
	}
}

func (h *EventHandler) HandleEnrollmentCreated(ctx context.Context, event events.Event) error {
	enrollmentEvent, ok := event.(*events.EnrollmentCreatedEvent)
	if !ok {
		h.logger.Error("invalid event type for enrollment created handler", "event_type", event.EventType())
		return fmt.Errorf("expected EnrollmentCreatedEvent, got %T", event)
	}

	h.logger.Info("handling enrollment created event",
		"enrollment_id", enrollmentEvent.EnrollmentID,
		"course_id", enrollmentEvent.CourseID,
		"event_id", enrollmentEvent.EventID())

	if err := h.service.IncrementEnrolledStudents(enrollmentEvent.CourseID); err != nil {
		return fmt.Errorf("enrolled students update failed for course %d: %w", enrollmentEvent.CourseID, err)
	}

	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypeEnrollmentCreated, h.HandleEnrollmentCreated)

	h.logger.Info("catalog event handlers registered",
		"handlers", []string{events.EventTypeEnrollmentCreated})
}
