package repair

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Lingeshemvigo/lms-backend/internal/core/datamodel/payment"
	"github.com/Lingeshemvigo/lms-backend/internal/ledger"
)

// Repository is the repair job's wider view of the payments table: unlike
// the ledger it may read across learners and delete rows outright.
type Repository interface {
	ListAll() ([]*payment.Payment, error)
	ListMissingTransactionIDs() ([]*payment.Payment, error)
	DeleteByIDs(ids []int64) (int64, error)
	AssignTransactionID(id int64, transactionID string) error
}

// Report summarizes one repair run. The job is fail-open: individual
// failures are counted here and logged, never aborting the run.
type Report struct {
	ScannedPayments      int           `json:"scanned_payments"`
	DuplicateGroups      int           `json:"duplicate_groups"`
	DeletedPayments      int64         `json:"deleted_payments"`
	PlaceholdersAssigned int64         `json:"placeholders_assigned"`
	Errors               int64         `json:"errors"`
	Duration             time.Duration `json:"duration"`
}

type Config struct {
	Workers int
}

// Job deduplicates payment rows that accumulated before the unique
// constraints existed and backfills missing transaction ids so the
// constraint can hold going forward.
type Job struct {
	repo    Repository
	workers int
	logger  *slog.Logger
	now     func() time.Time
}

func NewJob(repo Repository, config Config, logger *slog.Logger) *Job {
	workers := config.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Job{
		repo:    repo,
		workers: workers,
		logger:  logger,
		now:     time.Now,
	}
}

type pairKey struct {
	learnerID int64
	courseID  int64
}

// Run executes one full repair pass over a snapshot of the payments table.
func (j *Job) Run(ctx context.Context) (*Report, error) {
	start := j.now()
	report := &Report{}

	payments, err := j.repo.ListAll()
	if err != nil {
		return nil, err
	}
	report.ScannedPayments = len(payments)

	groups := make(map[pairKey][]*payment.Payment)
	for _, p := range payments {
		key := pairKey{p.LearnerID, p.CourseID}
		groups[key] = append(groups[key], p)
	}

	var duplicates [][]*payment.Payment
	for _, group := range groups {
		if len(group) > 1 {
			duplicates = append(duplicates, group)
		}
	}
	report.DuplicateGroups = len(duplicates)

	var deleted, errCount int64
	var wg sync.WaitGroup
	work := make(chan []*payment.Payment)

	for i := 0; i < j.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for group := range work {
				n, err := j.dedupGroup(group)
				if err != nil {
					atomic.AddInt64(&errCount, 1)
					j.logger.Error("failed to deduplicate payment group",
						"error", err,
						"learner_id", group[0].LearnerID,
						"course_id", group[0].CourseID)
					continue
				}
				atomic.AddInt64(&deleted, n)
			}
		}()
	}

	for _, group := range duplicates {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return report, ctx.Err()
		case work <- group:
		}
	}
	close(work)
	wg.Wait()

	report.DeletedPayments = deleted

	assigned, assignErrs := j.backfillTransactionIDs()
	report.PlaceholdersAssigned = assigned
	report.Errors = errCount + assignErrs
	report.Duration = j.now().Sub(start)

	j.logger.Info("repair run finished",
		"scanned", report.ScannedPayments,
		"duplicate_groups", report.DuplicateGroups,
		"deleted", report.DeletedPayments,
		"placeholders_assigned", report.PlaceholdersAssigned,
		"errors", report.Errors,
		"duration", report.Duration)

	return report, nil
}

// dedupGroup keeps exactly one payment per (learner, course) pair and
// deletes the rest. The keeper is the single completed payment if there is
// exactly one; otherwise the newest row wins.
func (j *Job) dedupGroup(group []*payment.Payment) (int64, error) {
	keeper := pickKeeper(group)

	var completedCount int
	for _, p := range group {
		if p.Status == payment.StatusCompleted {
			completedCount++
		}
	}
	if completedCount > 1 {
		j.logger.Warn("payment group has multiple completed rows",
			"learner_id", group[0].LearnerID,
			"course_id", group[0].CourseID,
			"completed", completedCount,
			"keeper_payment_id", keeper.ID)
	}

	var deleteIDs []int64
	for _, p := range group {
		if p.ID != keeper.ID {
			deleteIDs = append(deleteIDs, p.ID)
		}
	}

	n, err := j.repo.DeleteByIDs(deleteIDs)
	if err != nil {
		return 0, err
	}

	j.logger.Info("deduplicated payment group",
		"learner_id", group[0].LearnerID,
		"course_id", group[0].CourseID,
		"keeper_payment_id", keeper.ID,
		"deleted", n)

	return n, nil
}

func pickKeeper(group []*payment.Payment) *payment.Payment {
	var completed []*payment.Payment
	for _, p := range group {
		if p.Status == payment.StatusCompleted {
			completed = append(completed, p)
		}
	}
	if len(completed) == 1 {
		return completed[0]
	}

	sorted := make([]*payment.Payment, len(group))
	copy(sorted, group)
	sort.Slice(sorted, func(i, k int) bool {
		if sorted[i].CreatedAt.Equal(sorted[k].CreatedAt) {
			return sorted[i].ID > sorted[k].ID
		}
		return sorted[i].CreatedAt.After(sorted[k].CreatedAt)
	})
	return sorted[0]
}

// backfillTransactionIDs assigns placeholder ids to rows missing one, so
// the unique index can be relied on. On the rare placeholder collision it
// regenerates once per row, then counts the row as an error.
func (j *Job) backfillTransactionIDs() (assigned, errCount int64) {
	missing, err := j.repo.ListMissingTransactionIDs()
	if err != nil {
		j.logger.Error("failed to list payments with missing transaction ids", "error", err)
		return 0, 1
	}

	for _, p := range missing {
		placeholder := ledger.NewPlaceholderID("repair", p.LearnerID, p.CourseID, j.now())
		err := j.repo.AssignTransactionID(p.ID, placeholder)
		if errors.Is(err, ledger.ErrDuplicateTransactionID) {
			placeholder = ledger.NewPlaceholderID("repair", p.LearnerID, p.CourseID, j.now())
			err = j.repo.AssignTransactionID(p.ID, placeholder)
		}
		if err != nil {
			errCount++
			j.logger.Error("failed to assign placeholder transaction id",
				"error", err,
				"payment_id", p.ID)
			continue
		}
		assigned++
	}

	return assigned, errCount
}
