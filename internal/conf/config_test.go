package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBootstrap() *Bootstrap {
	b := &Bootstrap{
		Server: &Server{},
		Data:   &Data{},
		Providers: map[string]*Provider{
			"wave": {ApiUrl: "https://api.wave.com", ApiKey: "k", WebhookSecret: "s"},
		},
		Kafka:    &Kafka{Brokers: []string{"localhost:9092"}, Topic: "payment-notifications"},
		Checkout: &Checkout{ReturnUrl: "https://m.example.com/ok"},
		Log:      &Log{Level: "info"},
	}
	b.Server.Http.Addr = "0.0.0.0:8000"
	b.Data.Database.Source = "postgres://localhost/payments"
	return b
}

func TestBootstrapValidate(t *testing.T) {
	require.NoError(t, validBootstrap().Validate())

	tests := []struct {
		name   string
		mutate func(*Bootstrap)
	}{
		{"missing server addr", func(b *Bootstrap) { b.Server.Http.Addr = "" }},
		{"missing database source", func(b *Bootstrap) { b.Data.Database.Source = "" }},
		{"no providers", func(b *Bootstrap) { b.Providers = nil }},
		{"provider without api url", func(b *Bootstrap) { b.Providers["wave"].ApiUrl = "" }},
		{"provider without webhook secret", func(b *Bootstrap) { b.Providers["wave"].WebhookSecret = "" }},
		{"no kafka brokers", func(b *Bootstrap) { b.Kafka.Brokers = nil }},
		{"missing return url", func(b *Bootstrap) { b.Checkout.ReturnUrl = "" }},
		{"missing log", func(b *Bootstrap) { b.Log = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBootstrap()
			tt.mutate(b)
			require.Error(t, b.Validate())
		})
	}
}

func TestCheckoutDurations(t *testing.T) {
	c := &Checkout{ProviderTimeout: "5s", SessionTtl: "1h"}
	assert.Equal(t, 5*time.Second, c.ProviderTimeoutDuration())
	assert.Equal(t, time.Hour, c.SessionTtlDuration())

	// Unset or malformed values fall back to defaults.
	empty := &Checkout{}
	assert.Equal(t, 15*time.Second, empty.ProviderTimeoutDuration())
	assert.Equal(t, 30*time.Minute, empty.SessionTtlDuration())

	bad := &Checkout{ProviderTimeout: "soon", SessionTtl: "later"}
	assert.Equal(t, 15*time.Second, bad.ProviderTimeoutDuration())
	assert.Equal(t, 30*time.Minute, bad.SessionTtlDuration())
}
