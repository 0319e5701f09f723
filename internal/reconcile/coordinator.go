package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/Lingeshemvigo/lms-backend/internal"
	"github.com/Lingeshemvigo/lms-backend/internal/core/datamodel/course"
	enrollmentmodel "github.com/Lingeshemvigo/lms-backend/internal/core/datamodel/enrollment"
	"github.com/Lingeshemvigo/lms-backend/internal/core/datamodel/payment"
	"github.com/Lingeshemvigo/lms-backend/internal/core/events"
	"github.com/Lingeshemvigo/lms-backend/internal/paymentgateway"
	"github.com/google/uuid"
)

type LedgerAPI interface {
	OpenPending(learnerID, courseID, amountCents int64, method, intentID string) (*payment.Payment, error)
	Complete(paymentID int64, gatewayTransactionID string) (*payment.Payment, error)
	MarkFailed(paymentID int64, reason string) error
	MarkRefunded(paymentID int64, reason string) error
	GetByID(paymentID int64) (*payment.Payment, error)
	GetByIntentID(intentID string) (*payment.Payment, error)
	GetByTransactionID(transactionID string) (*payment.Payment, error)
}

type RegistrarAPI interface {
	Materialize(learnerID, courseID, paymentID int64) (*enrollmentmodel.Enrollment, bool, error)
	Get(learnerID, courseID int64) (*enrollmentmodel.Enrollment, error)
	SetStatus(learnerID, courseID int64, status string) error
}

type CatalogAPI interface {
	GetForPurchase(courseID int64) (*course.Course, error)
}

type GatewayAPI interface {
	CreateIntent(ctx context.Context, req paymentgateway.IntentRequest) (*paymentgateway.Intent, error)
	VerifyIntent(ctx context.Context, intentID string) (*paymentgateway.VerificationResult, error)
}

// Coordinator drives a payment from gateway confirmation to a usable
// enrollment. It is the only writer on that path: the ledger and registrar
// enforce their own invariants, the coordinator sequences them and resolves
// the races their unique constraints surface.
type Coordinator struct {
	ledger    LedgerAPI
	registrar RegistrarAPI
	catalog   CatalogAPI
	gateway   GatewayAPI
	eventBus  *events.EventBus
	logger    *slog.Logger
	now       func() time.Time
}

func NewCoordinator(
	ledger LedgerAPI,
	registrar RegistrarAPI,
	catalog CatalogAPI,
	gateway GatewayAPI,
	eventBus *events.EventBus,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		ledger:    ledger,
		registrar: registrar,
		catalog:   catalog,
		gateway:   gateway,
		eventBus:  eventBus,
		logger:    logger,
		now:       time.Now,
	}
}

// PurchaseResult is what the checkout flow hands back to the client: the
// pending ledger row plus the gateway secret the frontend needs to collect
// the card. ClientSecret is empty for free courses, which settle instantly.
type PurchaseResult struct {
	Payment      *payment.Payment
	Enrollment   *enrollmentmodel.Enrollment
	ClientSecret string
}

// OpenPurchase starts a purchase: it checks the course is sellable, refuses
// double purchases, registers a gateway intent and opens the pending ledger
// row. Free courses skip the gateway entirely and enroll on the spot.
func (c *Coordinator) OpenPurchase(ctx context.Context, learnerID, courseID int64, method string) (*PurchaseResult, error) {
	crs, err := c.catalog.GetForPurchase(courseID)
	if err != nil {
		return nil, err
	}

	if err := c.refuseIfEnrolled(learnerID, courseID); err != nil {
		return nil, err
	}

	if crs.IsFree() {
		return c.enrollFree(ctx, learnerID, crs)
	}

	intent, err := c.gateway.CreateIntent(ctx, paymentgateway.IntentRequest{
		AmountCents: crs.PriceCents,
		Currency:    "usd",
		Description: crs.Title,
		LearnerID:   learnerID,
		CourseID:    courseID,
	})
	if err != nil {
		c.logger.Error("gateway intent creation failed", "error", err, "learner_id", learnerID, "course_id", courseID)
		return nil, apperrors.NewExternalError("payment gateway unavailable", apperrors.ErrCodeVerificationFail).WithCause(err)
	}

	p, err := c.ledger.OpenPending(learnerID, courseID, crs.PriceCents, method, intent.ID)
	if err != nil {
		return nil, err
	}

	return &PurchaseResult{Payment: p, ClientSecret: intent.ClientSecret}, nil
}

// Confirm reconciles a gateway-side payment with the ledger and materializes
// the enrollment the learner paid for.
//
// The flow is deliberately restartable: a crash after Complete but before
// Materialize is healed on the next Confirm call, which short-circuits the
// already-completed payment straight to enrollment.
func (c *Coordinator) Confirm(ctx context.Context, learnerID int64, intentID string) (*payment.Payment, *enrollmentmodel.Enrollment, error) {
	p, err := c.ledger.GetByIntentID(intentID)
	if err != nil {
		return nil, nil, err
	}

	if p.LearnerID != learnerID {
		c.logger.Warn("confirm attempt on another learner's payment",
			"payment_id", p.ID,
			"owner_id", p.LearnerID,
			"caller_id", learnerID)
		return nil, nil, apperrors.ErrNotPaymentOwner
	}

	switch p.Status {
	case payment.StatusCompleted:
		// Crash recovery: payment settled earlier, enrollment may be missing.
		e, err := c.materialize(ctx, p)
		if err != nil {
			return nil, nil, err
		}
		return p, e, nil
	case payment.StatusPending:
		// fall through to gateway verification
	case payment.StatusFailed:
		return nil, nil, apperrors.ErrVerificationFailed
	default:
		return nil, nil, apperrors.ErrInvalidTransition
	}

	verification, err := c.gateway.VerifyIntent(ctx, intentID)
	if err != nil {
		// Gateway unreachable: leave the payment pending so the caller can retry.
		c.logger.Error("gateway verification unavailable", "error", err, "payment_id", p.ID, "intent_id", intentID)
		return nil, nil, apperrors.NewExternalError("payment verification unavailable", apperrors.ErrCodeVerificationFail).WithCause(err)
	}

	if !verification.Succeeded {
		if err := c.ledger.MarkFailed(p.ID, "gateway reported payment not succeeded"); err != nil {
			return nil, nil, err
		}
		c.publish(ctx, events.NewPaymentFailedEvent(p.ID, p.LearnerID, p.CourseID, "gateway reported payment not succeeded"))
		return nil, nil, apperrors.ErrVerificationFailed
	}

	if verification.AmountCents != p.AmountCents {
		reason := fmt.Sprintf("amount mismatch: charged %d, expected %d", verification.AmountCents, p.AmountCents)
		if err := c.ledger.MarkFailed(p.ID, reason); err != nil {
			return nil, nil, err
		}
		c.publish(ctx, events.NewPaymentFailedEvent(p.ID, p.LearnerID, p.CourseID, reason))
		return nil, nil, apperrors.ErrVerificationFailed
	}

	completed, err := c.ledger.Complete(p.ID, verification.TransactionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicateTransaction) {
			// Another row already claimed this transaction id. If it settles
			// the same purchase, a concurrent confirm won and we can ride on
			// its result; anything else is a real conflict.
			owner, ownerErr := c.ledger.GetByTransactionID(verification.TransactionID)
			if ownerErr == nil &&
				owner.LearnerID == p.LearnerID &&
				owner.CourseID == p.CourseID &&
				owner.Status == payment.StatusCompleted {
				c.logger.Info("confirm resolved against concurrent winner",
					"payment_id", p.ID,
					"winner_payment_id", owner.ID,
					"transaction_id", verification.TransactionID)
				e, matErr := c.materialize(ctx, owner)
				if matErr != nil {
					return nil, nil, matErr
				}
				return owner, e, nil
			}
		}
		return nil, nil, err
	}

	c.publish(ctx, events.NewPaymentCompletedEvent(
		completed.ID, completed.LearnerID, completed.CourseID, completed.AmountCents, completed.TransactionID))

	e, err := c.materialize(ctx, completed)
	if err != nil {
		return nil, nil, err
	}

	return completed, e, nil
}

// ConfirmFromGateway is the webhook entry point. The gateway authenticates
// with its shared secret rather than a learner session, so ownership is
// taken from the ledger row itself.
func (c *Coordinator) ConfirmFromGateway(ctx context.Context, intentID string) (*payment.Payment, *enrollmentmodel.Enrollment, error) {
	p, err := c.ledger.GetByIntentID(intentID)
	if err != nil {
		return nil, nil, err
	}
	return c.Confirm(ctx, p.LearnerID, intentID)
}

// EnrollFree enrolls the learner in a free course, settling a zero-amount
// payment through the ledger so every enrollment has a paper trail.
func (c *Coordinator) EnrollFree(ctx context.Context, learnerID, courseID int64) (*PurchaseResult, error) {
	crs, err := c.catalog.GetForPurchase(courseID)
	if err != nil {
		return nil, err
	}

	if !crs.IsFree() {
		return nil, apperrors.NewValidationError("course requires payment", apperrors.ErrCodeInvalidAmount)
	}

	if err := c.refuseIfEnrolled(learnerID, courseID); err != nil {
		return nil, err
	}

	return c.enrollFree(ctx, learnerID, crs)
}

func (c *Coordinator) enrollFree(ctx context.Context, learnerID int64, crs *course.Course) (*PurchaseResult, error) {
	p, err := c.ledger.OpenPending(learnerID, crs.ID, 0, payment.MethodFree, "")
	if err != nil {
		return nil, err
	}

	completed, err := c.ledger.Complete(p.ID, c.freeTransactionID(learnerID, crs.ID))
	if errors.Is(err, apperrors.ErrDuplicateTransaction) {
		// The random suffix makes a collision vanishingly rare; one
		// regeneration keeps the conflict internal either way.
		completed, err = c.ledger.Complete(p.ID, c.freeTransactionID(learnerID, crs.ID))
	}
	if err != nil {
		return nil, err
	}

	e, err := c.materialize(ctx, completed)
	if err != nil {
		return nil, err
	}

	c.logger.Info("free enrollment completed",
		"payment_id", completed.ID,
		"learner_id", learnerID,
		"course_id", crs.ID)

	return &PurchaseResult{Payment: completed, Enrollment: e}, nil
}

// freeTransactionID synthesizes a gateway-style transaction id for courses
// that never touch the gateway. The course id and random suffix keep ids
// unique even when one learner enrolls in several free courses in the same
// second.
func (c *Coordinator) freeTransactionID(learnerID, courseID int64) string {
	return fmt.Sprintf("FREE-%d-%d-%d-%s", c.now().Unix(), learnerID, courseID, uuid.New().String()[:8])
}

// Refund reverses a completed purchase: the ledger row becomes refunded and
// the enrollment loses access but keeps its progress for a later repurchase.
func (c *Coordinator) Refund(ctx context.Context, learnerID, paymentID int64, reason string) error {
	p, err := c.ledger.GetByID(paymentID)
	if err != nil {
		return err
	}

	if p.LearnerID != learnerID {
		return apperrors.ErrNotPaymentOwner
	}

	if err := c.ledger.MarkRefunded(p.ID, reason); err != nil {
		return err
	}

	if err := c.registrar.SetStatus(p.LearnerID, p.CourseID, enrollmentmodel.StatusRefunded); err != nil {
		// The payment is already refunded; a missing enrollment only means
		// there is no access to revoke.
		if !errors.Is(err, apperrors.ErrEnrollmentNotFound) {
			return err
		}
		c.logger.Warn("refunded payment had no enrollment", "payment_id", p.ID, "learner_id", learnerID)
	}

	c.logger.Info("payment refunded",
		"payment_id", p.ID,
		"learner_id", learnerID,
		"course_id", p.CourseID,
		"reason", reason)

	return nil
}

func (c *Coordinator) refuseIfEnrolled(learnerID, courseID int64) error {
	existing, err := c.registrar.Get(learnerID, courseID)
	if err != nil {
		if errors.Is(err, apperrors.ErrEnrollmentNotFound) {
			return nil
		}
		return err
	}
	switch existing.Status {
	case enrollmentmodel.StatusActive, enrollmentmodel.StatusCompleted:
		return apperrors.ErrAlreadyEnrolled
	}
	// Dropped or refunded enrollments may be repurchased.
	return nil
}

func (c *Coordinator) materialize(ctx context.Context, p *payment.Payment) (*enrollmentmodel.Enrollment, error) {
	e, created, err := c.registrar.Materialize(p.LearnerID, p.CourseID, p.ID)
	if err != nil {
		return nil, err
	}

	// Only a genuinely new enrollment bumps the course counter.
	if created {
		c.publish(ctx, events.NewEnrollmentCreatedEvent(e.ID, e.LearnerID, e.CourseID, p.ID))
	}

	return e, nil
}

func (c *Coordinator) publish(ctx context.Context, event events.Event) {
	if c.eventBus == nil {
		return
	}
	if err := c.eventBus.Publish(ctx, event); err != nil {
		c.logger.Error("failed to publish event", "error", err, "event_type", event.EventType())
	}
}
