package data

import (
	"context"

	"github.com/kamayakoi/lomi.-sub008/internal/biz"
	"github.com/kamayakoi/lomi.-sub008/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// feeRuleRepo reads the fee rule reference data.
type feeRuleRepo struct {
	data *Data
	log  *log.Helper
}

// NewFeeRuleRepo creates the fee rule repository.
func NewFeeRuleRepo(data *Data, logger log.Logger) biz.FeeRuleRepo {
	return &feeRuleRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *feeRuleRepo) Find(ctx context.Context, txType biz.TxType, provider, method, currency string) (*biz.FeeRule, error) {
	var m model.FeeRule
	err := r.data.DB(ctx).
		First(&m, "tx_type = ? AND provider_code = ? AND payment_method = ? AND currency = ?",
			string(txType), provider, method, currency).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &biz.FeeRule{
		ID:            m.ID,
		TxType:        biz.TxType(m.TxType),
		ProviderCode:  m.ProviderCode,
		PaymentMethod: m.PaymentMethod,
		Currency:      m.Currency,
		Percentage:    m.Percentage,
		FixedAmount:   m.FixedAmount,
		Name:          m.Name,
	}, nil
}
