package data

import (
	"context"
	"time"

	"github.com/kamayakoi/lomi.-sub008/internal/biz"
	"github.com/kamayakoi/lomi.-sub008/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// retryScheduleRepo persists retry schedules.
type retryScheduleRepo struct {
	data *Data
	log  *log.Helper
}

// NewRetryScheduleRepo creates the retry schedule repository.
func NewRetryScheduleRepo(data *Data, logger log.Logger) biz.RetryScheduleRepo {
	return &retryScheduleRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func toScheduleModel(s *biz.RetrySchedule) *model.RetrySchedule {
	return &model.RetrySchedule{
		ID:             s.ID,
		TransactionID:  s.TransactionID,
		SubscriptionID: s.SubscriptionID,
		IntervalDays:   s.IntervalDays,
		MaxAttempts:    s.MaxAttempts,
		Attempts:       s.Attempts,
		NextAttemptAt:  s.NextAttemptAt,
		Status:         string(s.Status),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func toScheduleBiz(m *model.RetrySchedule) *biz.RetrySchedule {
	return &biz.RetrySchedule{
		ID:             m.ID,
		TransactionID:  m.TransactionID,
		SubscriptionID: m.SubscriptionID,
		IntervalDays:   m.IntervalDays,
		MaxAttempts:    m.MaxAttempts,
		Attempts:       m.Attempts,
		NextAttemptAt:  m.NextAttemptAt,
		Status:         biz.ScheduleStatus(m.Status),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func (r *retryScheduleRepo) Create(ctx context.Context, s *biz.RetrySchedule) error {
	if err := r.data.DB(ctx).Create(toScheduleModel(s)).Error; err != nil {
		r.log.Errorf("failed to create retry schedule %s: %v", s.ID, err)
		return err
	}
	return nil
}

func (r *retryScheduleRepo) GetByTransaction(ctx context.Context, transactionID string) (*biz.RetrySchedule, error) {
	var m model.RetrySchedule
	if err := r.data.DB(ctx).First(&m, "transaction_id = ?", transactionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return toScheduleBiz(&m), nil
}

func (r *retryScheduleRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*biz.RetrySchedule, error) {
	var ms []*model.RetrySchedule
	err := r.data.DB(ctx).
		Where("status = ? AND next_attempt_at <= ?", string(biz.ScheduleActive), now).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	out := make([]*biz.RetrySchedule, 0, len(ms))
	for _, m := range ms {
		out = append(out, toScheduleBiz(m))
	}
	return out, nil
}

// Claim is the atomic "select and mark in-progress" step: only a row
// still active and still due can move, so two sweep instances can never
// both claim the same schedule in one window.
func (r *retryScheduleRepo) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	res := r.data.DB(ctx).Model(&model.RetrySchedule{}).
		Where("id = ? AND status = ? AND next_attempt_at <= ?", id, string(biz.ScheduleActive), now).
		Updates(map[string]interface{}{
			"status":     string(biz.ScheduleInProgress),
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *retryScheduleRepo) Update(ctx context.Context, s *biz.RetrySchedule) error {
	return r.data.DB(ctx).Model(&model.RetrySchedule{}).
		Where("id = ?", s.ID).
		Updates(map[string]interface{}{
			"status":          string(s.Status),
			"attempts":        s.Attempts,
			"next_attempt_at": s.NextAttemptAt,
			"updated_at":      s.UpdatedAt,
		}).Error
}
