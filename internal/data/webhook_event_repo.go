package data

import (
	"context"

	"github.com/kamayakoi/lomi.-sub008/internal/biz"
	"github.com/kamayakoi/lomi.-sub008/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

// webhookEventRepo persists the inbound callback log.
type webhookEventRepo struct {
	data *Data
	log  *log.Helper
}

// NewWebhookEventRepo creates the webhook event repository.
func NewWebhookEventRepo(data *Data, logger log.Logger) biz.WebhookEventRepo {
	return &webhookEventRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// InsertIfAbsent relies on the unique (provider_code, provider_event_id)
// index: ON CONFLICT DO NOTHING reports zero affected rows for a replay,
// which is the dedup signal, with no read-then-write race window.
func (r *webhookEventRepo) InsertIfAbsent(ctx context.Context, ev *biz.WebhookEvent) (bool, error) {
	m := &model.WebhookEvent{
		ID:              ev.ID,
		ProviderCode:    ev.ProviderCode,
		ProviderEventID: ev.ProviderEventID,
		Payload:         datatypes.JSON(ev.Payload),
		ReceivedAt:      ev.ReceivedAt,
		Outcome:         string(ev.Outcome),
		TransactionID:   ev.TransactionID,
	}
	res := r.data.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_code"}, {Name: "provider_event_id"}},
		DoNothing: true,
	}).Create(m)
	if res.Error != nil {
		r.log.Errorf("failed to record webhook event %s/%s: %v", ev.ProviderCode, ev.ProviderEventID, res.Error)
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *webhookEventRepo) Update(ctx context.Context, ev *biz.WebhookEvent) error {
	return r.data.DB(ctx).Model(&model.WebhookEvent{}).
		Where("id = ?", ev.ID).
		Updates(map[string]interface{}{
			"outcome":        string(ev.Outcome),
			"transaction_id": ev.TransactionID,
		}).Error
}
