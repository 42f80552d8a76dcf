package biz

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kamayakoi/lomi.-sub008/internal/conf"
	"github.com/kamayakoi/lomi.-sub008/internal/constants"
	"github.com/kamayakoi/lomi.-sub008/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// Mutex guards one schedule claim across sweep instances.
type Mutex interface {
	LockContext(ctx context.Context) error
	UnlockContext(ctx context.Context) (bool, error)
}

// LockFactory builds named distributed mutexes.
type LockFactory interface {
	NewMutex(name string) Mutex
}

// ScheduleStatus is the lifecycle state of a retry schedule.
type ScheduleStatus string

const (
	ScheduleActive     ScheduleStatus = "active"
	ScheduleInProgress ScheduleStatus = "in_progress"
	ScheduleExhausted  ScheduleStatus = "exhausted"
	ScheduleCompleted  ScheduleStatus = "completed"
)

// RetrySchedule governs when and how many times a recoverable failure or
// recurring charge is re-attempted. It is keyed by the lineage root
// transaction; retry transactions point back at it via ParentID.
type RetrySchedule struct {
	ID             string
	TransactionID  string
	SubscriptionID string
	IntervalDays   int
	MaxAttempts    int
	Attempts       int
	NextAttemptAt  time.Time
	Status         ScheduleStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RetryScheduleRepo persists retry schedules.
type RetryScheduleRepo interface {
	Create(ctx context.Context, s *RetrySchedule) error
	GetByTransaction(ctx context.Context, transactionID string) (*RetrySchedule, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*RetrySchedule, error)
	// Claim atomically moves an active, due schedule to in_progress and
	// increments its attempt count. It returns false when another sweep
	// instance already claimed the schedule this window.
	Claim(ctx context.Context, id string, now time.Time) (bool, error)
	Update(ctx context.Context, s *RetrySchedule) error
}

// RetryPolicy is the per-merchant retry configuration carried on the
// transaction metadata. Zero max attempts means the failure is final.
type RetryPolicy struct {
	IntervalDays int
	MaxAttempts  int
}

// policyFor reads the retry policy off transaction metadata, clamped to
// the supported ranges.
func policyFor(tx *Transaction) RetryPolicy {
	p := RetryPolicy{IntervalDays: 3, MaxAttempts: 0}
	if v, ok := tx.Metadata["retry_interval_days"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			p.IntervalDays = n
		}
	}
	if v, ok := tx.Metadata["retry_max_attempts"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			p.MaxAttempts = n
		}
	}
	if tx.SubscriptionID != "" && p.MaxAttempts == 0 {
		// Recurring transactions retry by default.
		p.MaxAttempts = 3
	}
	if p.IntervalDays < 0 {
		p.IntervalDays = 0
	}
	if p.IntervalDays > constants.MaxRetryIntervalDays {
		p.IntervalDays = constants.MaxRetryIntervalDays
	}
	if p.MaxAttempts < 0 {
		p.MaxAttempts = 0
	}
	if p.MaxAttempts > constants.MaxRetryAttempts {
		p.MaxAttempts = constants.MaxRetryAttempts
	}
	return p
}

// RetryScheduler owns the schedule bookkeeping: creating a schedule when
// a payment fails, advancing or exhausting it, and completing it once
// the lineage collects. It is shared by the checkout orchestrator (for
// synchronous provider failures), the webhook gateway (for callback
// failures), and the sweep.
type RetryScheduler struct {
	schedules RetryScheduleRepo
	repo      TransactionRepo
	notifier  Notifier
	log       *log.Helper
}

func NewRetryScheduler(
	schedules RetryScheduleRepo,
	repo TransactionRepo,
	notifier Notifier,
	logger log.Logger,
) *RetryScheduler {
	return &RetryScheduler{
		schedules: schedules,
		repo:      repo,
		notifier:  notifier,
		log:       log.NewHelper(logger),
	}
}

// ScheduleNext computes the next attempt time, or a RetryExhausted error
// when no attempts remain.
func (s *RetryScheduler) ScheduleNext(sc *RetrySchedule) (time.Time, error) {
	if sc.Attempts >= sc.MaxAttempts {
		return time.Time{}, errors.RetryExhausted(sc.TransactionID)
	}
	return time.Now().UTC().AddDate(0, 0, sc.IntervalDays), nil
}

// lineageRoot resolves the original transaction a retry descends from.
func (s *RetryScheduler) lineageRoot(ctx context.Context, tx *Transaction) (*Transaction, error) {
	if tx.ParentID == "" {
		return tx, nil
	}
	root, err := s.repo.Get(ctx, tx.ParentID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, errors.TransactionNotFound(tx.ParentID)
	}
	return root, nil
}

// HandleFailure creates or advances the retry schedule for a failed
// transaction. It returns true when another attempt was scheduled and
// false when the failure is final (no policy, or attempts exhausted).
func (s *RetryScheduler) HandleFailure(ctx context.Context, tx *Transaction) (bool, error) {
	if tx.Type != TxTypePayment {
		return false, nil
	}
	root, err := s.lineageRoot(ctx, tx)
	if err != nil {
		return false, err
	}

	schedule, err := s.schedules.GetByTransaction(ctx, root.ID)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()

	if schedule == nil {
		policy := policyFor(root)
		if policy.MaxAttempts <= 0 {
			return false, nil
		}
		schedule = &RetrySchedule{
			ID:             uuid.NewString(),
			TransactionID:  root.ID,
			SubscriptionID: root.SubscriptionID,
			IntervalDays:   policy.IntervalDays,
			MaxAttempts:    policy.MaxAttempts,
			Attempts:       0,
			NextAttemptAt:  now.AddDate(0, 0, policy.IntervalDays),
			Status:         ScheduleActive,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.schedules.Create(ctx, schedule); err != nil {
			return false, err
		}
		s.log.Infof("created retry schedule %s for transaction %s: interval=%dd max=%d",
			schedule.ID, root.ID, schedule.IntervalDays, schedule.MaxAttempts)
		return true, nil
	}

	next, err := s.ScheduleNext(schedule)
	if err != nil {
		schedule.Status = ScheduleExhausted
		schedule.UpdatedAt = now
		if updErr := s.schedules.Update(ctx, schedule); updErr != nil {
			return false, updErr
		}
		s.log.Infof("retry schedule %s exhausted after %d attempts", schedule.ID, schedule.Attempts)
		s.notifier.Notify(ctx, NewNotificationEvent(NotifyRetryExhausted, root, ReasonRetriesExhausted))
		return false, nil
	}

	schedule.Status = ScheduleActive
	schedule.NextAttemptAt = next
	schedule.UpdatedAt = now
	if err := s.schedules.Update(ctx, schedule); err != nil {
		return false, err
	}
	return true, nil
}

// HandleSuccess terminates the retry schedule once the lineage collected.
func (s *RetryScheduler) HandleSuccess(ctx context.Context, tx *Transaction) error {
	root, err := s.lineageRoot(ctx, tx)
	if err != nil {
		return err
	}
	schedule, err := s.schedules.GetByTransaction(ctx, root.ID)
	if err != nil || schedule == nil {
		return err
	}
	if schedule.Status == ScheduleCompleted || schedule.Status == ScheduleExhausted {
		return nil
	}
	schedule.Status = ScheduleCompleted
	schedule.UpdatedAt = time.Now().UTC()
	return s.schedules.Update(ctx, schedule)
}

// SweepResult summarizes one retry sweep run.
type SweepResult struct {
	Due       int
	Claimed   int
	Initiated int
	Completed int
	Exhausted int
	Skipped   int
}

// RetryUsecase drives the sweep: claiming due schedules and re-invoking
// the checkout orchestrator for them.
type RetryUsecase struct {
	schedules RetryScheduleRepo
	repo      TransactionRepo
	sessions  SessionRepo
	checkout  *CheckoutUsecase
	scheduler *RetryScheduler
	notifier  Notifier
	locks     LockFactory
	batchSize int
	log       *log.Helper
}

func NewRetryUsecase(
	schedules RetryScheduleRepo,
	repo TransactionRepo,
	sessions SessionRepo,
	checkout *CheckoutUsecase,
	scheduler *RetryScheduler,
	notifier Notifier,
	locks LockFactory,
	c *conf.Bootstrap,
	logger log.Logger,
) *RetryUsecase {
	batchSize := constants.DefaultSweepBatchSize
	if c.Sweep != nil && c.Sweep.BatchSize > 0 {
		batchSize = c.Sweep.BatchSize
	}
	return &RetryUsecase{
		schedules: schedules,
		repo:      repo,
		sessions:  sessions,
		checkout:  checkout,
		scheduler: scheduler,
		notifier:  notifier,
		locks:     locks,
		batchSize: batchSize,
		log:       log.NewHelper(logger),
	}
}

// ProcessDueRetries claims every due schedule and re-invokes the checkout
// orchestrator for it. Safe to run from multiple instances concurrently:
// each schedule is taken under a redsync mutex plus an atomic claim, so
// no schedule is processed twice in the same window.
func (uc *RetryUsecase) ProcessDueRetries(ctx context.Context) (*SweepResult, error) {
	now := time.Now().UTC()
	due, err := uc.schedules.ListDue(ctx, now, uc.batchSize)
	if err != nil {
		return nil, err
	}
	result := &SweepResult{Due: len(due)}

	for _, schedule := range due {
		if err := uc.processSchedule(ctx, schedule, now, result); err != nil {
			// One bad schedule must not block the rest of the sweep.
			uc.log.Errorf("sweep failed on schedule %s: %v", schedule.ID, err)
		}
	}
	return result, nil
}

func (uc *RetryUsecase) processSchedule(ctx context.Context, schedule *RetrySchedule, now time.Time, result *SweepResult) error {
	mutex := uc.locks.NewMutex(constants.RetryLockPrefix + schedule.ID)
	if err := mutex.LockContext(ctx); err != nil {
		result.Skipped++
		uc.log.Infof("skipping schedule %s: lock busy", schedule.ID)
		return nil
	}
	defer func() {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			uc.log.Warnf("failed to unlock schedule %s: %v", schedule.ID, err)
		}
	}()

	claimed, err := uc.schedules.Claim(ctx, schedule.ID, now)
	if err != nil {
		return err
	}
	if !claimed {
		result.Skipped++
		return nil
	}
	result.Claimed++
	schedule.Attempts++

	// Re-check the owning transaction after taking the lock; a success
	// callback may have raced the sweep.
	root, err := uc.repo.Get(ctx, schedule.TransactionID)
	if err != nil {
		return err
	}
	if root == nil {
		return errors.TransactionNotFound(schedule.TransactionID)
	}
	if root.Status == StatusSucceeded || root.Status == StatusRefunded {
		schedule.Status = ScheduleCompleted
		schedule.UpdatedAt = now
		result.Completed++
		return uc.schedules.Update(ctx, schedule)
	}

	params := &InitiateParams{
		MerchantID:     root.MerchantID,
		OrganizationID: root.OrganizationID,
		CustomerID:     root.CustomerID,
		ProductID:      root.ProductID,
		SubscriptionID: root.SubscriptionID,
		ParentID:       root.ID,
		Amount:         root.GrossAmount,
		Currency:       root.Currency,
		Provider:       root.ProviderCode,
		PaymentMethod:  root.PaymentMethod,
		IdempotencyKey: fmt.Sprintf("retry:%s:%d", root.ID, schedule.Attempts),
		Metadata:       root.Metadata,
	}
	if _, err := uc.checkout.Initiate(ctx, params); err != nil {
		uc.log.Warnf("retry attempt %d for transaction %s failed to initiate: %v",
			schedule.Attempts, root.ID, err)
		// When the initiation got far enough to persist an attempt
		// transaction, the orchestrator already dispatched the failure and
		// moved this schedule on. Advance here only if it did not (the
		// initiation died before any transaction existed).
		current, getErr := uc.schedules.GetByTransaction(ctx, schedule.TransactionID)
		if getErr != nil {
			return getErr
		}
		if current != nil && current.Status != ScheduleInProgress {
			if current.Status == ScheduleExhausted {
				result.Exhausted++
			}
			return nil
		}
		next, schedErr := uc.scheduler.ScheduleNext(schedule)
		if schedErr != nil {
			schedule.Status = ScheduleExhausted
			schedule.UpdatedAt = now
			result.Exhausted++
			if updErr := uc.schedules.Update(ctx, schedule); updErr != nil {
				return updErr
			}
			uc.notifier.Notify(ctx, NewNotificationEvent(NotifyRetryExhausted, root, ReasonRetriesExhausted))
			return nil
		}
		schedule.Status = ScheduleActive
		schedule.NextAttemptAt = next
		schedule.UpdatedAt = now
		return uc.schedules.Update(ctx, schedule)
	}

	result.Initiated++
	uc.log.Infof("retry attempt %d initiated for transaction %s", schedule.Attempts, root.ID)
	// The schedule stays in_progress until the attempt's callback either
	// completes it or re-activates it.
	return nil
}

// ExpireSessions marks stale checkout sessions expired so the
// one-active-session invariant stays true over time.
func (uc *RetryUsecase) ExpireSessions(ctx context.Context) (int64, error) {
	n, err := uc.sessions.ExpireStale(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		uc.log.Infof("expired %d stale checkout sessions", n)
	}
	return n, nil
}
