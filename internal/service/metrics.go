package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	checkoutTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_requests_total",
			Help: "Total number of checkout initiations",
		},
		[]string{"outcome"},
	)

	webhookTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_ingests_total",
			Help: "Total number of webhook deliveries by provider and result",
		},
		[]string{"provider", "result"},
	)
)

func init() {
	prometheus.MustRegister(checkoutTotal)
	prometheus.MustRegister(webhookTotal)
}

func recordCheckout(outcome string) {
	checkoutTotal.WithLabelValues(outcome).Inc()
}

func recordWebhook(provider, result string) {
	webhookTotal.WithLabelValues(provider, result).Inc()
}
