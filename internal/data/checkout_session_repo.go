package data

import (
	"context"
	"time"

	"github.com/kamayakoi/lomi.-sub008/internal/biz"
	"github.com/kamayakoi/lomi.-sub008/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// sessionRepo persists checkout sessions.
type sessionRepo struct {
	data *Data
	log  *log.Helper
}

// NewSessionRepo creates the checkout session repository.
func NewSessionRepo(data *Data, logger log.Logger) biz.SessionRepo {
	return &sessionRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *sessionRepo) Create(ctx context.Context, s *biz.CheckoutSession) error {
	m := &model.CheckoutSession{
		ID:            s.ID,
		TransactionID: s.TransactionID,
		ProviderCode:  s.ProviderCode,
		SessionToken:  s.SessionToken,
		RedirectURL:   s.RedirectURL,
		ExpiresAt:     s.ExpiresAt,
		Status:        string(s.Status),
		CreatedAt:     s.CreatedAt,
	}
	if err := r.data.DB(ctx).Create(m).Error; err != nil {
		r.log.Errorf("failed to create session %s: %v", s.ID, err)
		return err
	}
	return nil
}

func (r *sessionRepo) GetActiveByTransaction(ctx context.Context, transactionID string) (*biz.CheckoutSession, error) {
	var m model.CheckoutSession
	err := r.data.DB(ctx).
		Where("transaction_id = ? AND status IN ? AND expires_at > ?",
			transactionID,
			[]string{string(biz.SessionCreated), string(biz.SessionRedirected)},
			time.Now().UTC()).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &biz.CheckoutSession{
		ID:            m.ID,
		TransactionID: m.TransactionID,
		ProviderCode:  m.ProviderCode,
		SessionToken:  m.SessionToken,
		RedirectURL:   m.RedirectURL,
		ExpiresAt:     m.ExpiresAt,
		Status:        biz.SessionStatus(m.Status),
		CreatedAt:     m.CreatedAt,
	}, nil
}

func (r *sessionRepo) UpdateStatus(ctx context.Context, id string, status biz.SessionStatus) error {
	return r.data.DB(ctx).Model(&model.CheckoutSession{}).
		Where("id = ?", id).
		Update("status", string(status)).Error
}

func (r *sessionRepo) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res := r.data.DB(ctx).Model(&model.CheckoutSession{}).
		Where("status IN ? AND expires_at <= ?",
			[]string{string(biz.SessionCreated), string(biz.SessionRedirected)}, now).
		Update("status", string(biz.SessionExpired))
	return res.RowsAffected, res.Error
}
