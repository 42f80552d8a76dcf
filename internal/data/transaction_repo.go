package data

import (
	"context"
	"time"

	"github.com/kamayakoi/lomi.-sub008/internal/biz"
	"github.com/kamayakoi/lomi.-sub008/internal/data/model"
	"github.com/kamayakoi/lomi.-sub008/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// transactionRepo persists transactions.
type transactionRepo struct {
	data *Data
	log  *log.Helper
}

// NewTransactionRepo creates the transaction repository.
func NewTransactionRepo(data *Data, logger log.Logger) biz.TransactionRepo {
	return &transactionRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func toTransactionModel(t *biz.Transaction) *model.Transaction {
	meta := make(datatypes.JSONMap, len(t.Metadata))
	for k, v := range t.Metadata {
		meta[k] = v
	}
	return &model.Transaction{
		ID:             t.ID,
		MerchantID:     t.MerchantID,
		OrganizationID: t.OrganizationID,
		CustomerID:     t.CustomerID,
		ProductID:      t.ProductID,
		SubscriptionID: t.SubscriptionID,
		ParentID:       t.ParentID,
		TxType:         string(t.Type),
		Status:         string(t.Status),
		GrossAmount:    t.GrossAmount,
		FeeAmount:      t.FeeAmount,
		NetAmount:      t.NetAmount,
		Currency:       t.Currency,
		ProviderCode:   t.ProviderCode,
		PaymentMethod:  t.PaymentMethod,
		IdempotencyKey: t.IdempotencyKey,
		Metadata:       meta,
		ProviderTxID:   t.ProviderTxID,
		FeeRuleName:    t.FeeRuleName,
		FailureReason:  t.FailureReason,
		Version:        t.Version,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func toTransactionBiz(m *model.Transaction) *biz.Transaction {
	meta := make(map[string]string, len(m.Metadata))
	for k, v := range m.Metadata {
		if s, ok := v.(string); ok {
			meta[k] = s
		}
	}
	return &biz.Transaction{
		ID:             m.ID,
		MerchantID:     m.MerchantID,
		OrganizationID: m.OrganizationID,
		CustomerID:     m.CustomerID,
		ProductID:      m.ProductID,
		SubscriptionID: m.SubscriptionID,
		ParentID:       m.ParentID,
		Type:           biz.TxType(m.TxType),
		Status:         biz.Status(m.Status),
		GrossAmount:    m.GrossAmount,
		FeeAmount:      m.FeeAmount,
		NetAmount:      m.NetAmount,
		Currency:       m.Currency,
		ProviderCode:   m.ProviderCode,
		PaymentMethod:  m.PaymentMethod,
		IdempotencyKey: m.IdempotencyKey,
		Metadata:       meta,
		ProviderTxID:   m.ProviderTxID,
		FeeRuleName:    m.FeeRuleName,
		FailureReason:  m.FailureReason,
		Version:        m.Version,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func (r *transactionRepo) Create(ctx context.Context, t *biz.Transaction) error {
	if err := r.data.DB(ctx).Create(toTransactionModel(t)).Error; err != nil {
		r.log.Errorf("failed to create transaction %s: %v", t.ID, err)
		return err
	}
	return nil
}

func (r *transactionRepo) Get(ctx context.Context, id string) (*biz.Transaction, error) {
	var m model.Transaction
	if err := r.data.DB(ctx).First(&m, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return toTransactionBiz(&m), nil
}

func (r *transactionRepo) GetByIdempotencyKey(ctx context.Context, merchantID, key string) (*biz.Transaction, error) {
	var m model.Transaction
	err := r.data.DB(ctx).First(&m, "merchant_id = ? AND idempotency_key = ?", merchantID, key).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return toTransactionBiz(&m), nil
}

func (r *transactionRepo) GetByProviderTxID(ctx context.Context, providerCode, providerTxID string) (*biz.Transaction, error) {
	var m model.Transaction
	err := r.data.DB(ctx).First(&m, "provider_code = ? AND provider_tx_id = ?", providerCode, providerTxID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return toTransactionBiz(&m), nil
}

// UpdateGuarded applies the mutable fields of t only if the stored row
// still carries the expected status. Zero rows affected means a
// concurrent writer won the state-machine race.
func (r *transactionRepo) UpdateGuarded(ctx context.Context, t *biz.Transaction, expected biz.Status) error {
	meta := make(datatypes.JSONMap, len(t.Metadata))
	for k, v := range t.Metadata {
		meta[k] = v
	}
	res := r.data.DB(ctx).Model(&model.Transaction{}).
		Where("id = ? AND status = ?", t.ID, string(expected)).
		Updates(map[string]interface{}{
			"status":         string(t.Status),
			"provider_tx_id": t.ProviderTxID,
			"failure_reason": t.FailureReason,
			"metadata":       meta,
			"version":        gorm.Expr("version + 1"),
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		r.log.Errorf("failed to update transaction %s: %v", t.ID, res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.StaleTransaction(t.ID)
	}
	return nil
}
