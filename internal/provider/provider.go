package provider

import (
	"net/http"
	"time"

	"github.com/kamayakoi/lomi.-sub008/internal/biz"
	"github.com/kamayakoi/lomi.-sub008/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// Provider codes.
const (
	CodeWave        = "wave"
	CodeOrangeMoney = "orange_money"
)

// ProviderSet is provider adapter providers.
var ProviderSet = wire.NewSet(
	NewAdapters,
	biz.NewProviderRegistry,
)

// NewAdapters builds one adapter per configured payment rail. Rails
// absent from configuration are simply not registered.
func NewAdapters(c *conf.Bootstrap, logger log.Logger) []biz.ProviderAdapter {
	hc := &http.Client{Timeout: 30 * time.Second}

	var adapters []biz.ProviderAdapter
	if pc, ok := c.Providers[CodeWave]; ok {
		adapters = append(adapters, NewWaveAdapter(pc, hc, logger))
	}
	if pc, ok := c.Providers[CodeOrangeMoney]; ok {
		adapters = append(adapters, NewOrangeMoneyAdapter(pc, hc, logger))
	}
	return adapters
}
