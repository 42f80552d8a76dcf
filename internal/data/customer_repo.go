package data

import (
	"context"

	"github.com/kamayakoi/lomi.-sub008/internal/biz"
	"github.com/kamayakoi/lomi.-sub008/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
)

// customerRepo reads the customer table owned by account management.
type customerRepo struct {
	data *Data
	log  *log.Helper
}

// NewCustomerRepo creates the customer repository.
func NewCustomerRepo(data *Data, logger log.Logger) biz.CustomerRepo {
	return &customerRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *customerRepo) Exists(ctx context.Context, customerID string) (bool, error) {
	var count int64
	err := r.data.DB(ctx).Model(&model.Customer{}).
		Where("id = ?", customerID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
