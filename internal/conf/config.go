package conf

import (
	"fmt"
	"time"
)

type Bootstrap struct {
	Server    *Server              `yaml:"server" json:"server"`
	Data      *Data                `yaml:"data" json:"data"`
	Providers map[string]*Provider `yaml:"providers" json:"providers"`
	Kafka     *Kafka               `yaml:"kafka" json:"kafka"`
	Checkout  *Checkout            `yaml:"checkout" json:"checkout"`
	Sweep     *Sweep               `yaml:"sweep" json:"sweep"`
	Log       *Log                 `yaml:"log" json:"log"`
}

type Server struct {
	Http struct {
		Addr    string `yaml:"addr" json:"addr"`
		Timeout string `yaml:"timeout" json:"timeout"`
	} `yaml:"http" json:"http"`
}

type Data struct {
	Database struct {
		Driver          string `yaml:"driver" json:"driver"`
		Source          string `yaml:"source" json:"source"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	} `yaml:"database" json:"database"`
	Redis struct {
		Addr         string `yaml:"addr" json:"addr"`
		Password     string `yaml:"password" json:"password"`
		Db           int32  `yaml:"db" json:"db"`
		ReadTimeout  string `yaml:"read_timeout" json:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout" json:"write_timeout"`
	} `yaml:"redis" json:"redis"`
}

// Provider holds the endpoint and credentials for one payment rail.
type Provider struct {
	ApiUrl        string `yaml:"api_url" json:"api_url"`
	ApiKey        string `yaml:"api_key" json:"api_key"`
	WebhookSecret string `yaml:"webhook_secret" json:"webhook_secret"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" json:"brokers"`
	Topic   string   `yaml:"topic" json:"topic"`
}

type Checkout struct {
	ReturnUrl       string `yaml:"return_url" json:"return_url"`
	CancelUrl       string `yaml:"cancel_url" json:"cancel_url"`
	ProviderTimeout string `yaml:"provider_timeout" json:"provider_timeout"`
	SessionTtl      string `yaml:"session_ttl" json:"session_ttl"`
}

type Sweep struct {
	RetrySpec  string `yaml:"retry_spec" json:"retry_spec"`
	ExpirySpec string `yaml:"expiry_spec" json:"expiry_spec"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
}

type Log struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	Output     string `yaml:"output" json:"output"`
	FilePath   string `yaml:"file_path" json:"file_path"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// ProviderTimeoutDuration returns the provider call timeout, default 15s.
func (c *Checkout) ProviderTimeoutDuration() time.Duration {
	if c != nil && c.ProviderTimeout != "" {
		if d, err := time.ParseDuration(c.ProviderTimeout); err == nil {
			return d
		}
	}
	return 15 * time.Second
}

// SessionTtlDuration returns the checkout session lifetime, default 30m.
func (c *Checkout) SessionTtlDuration() time.Duration {
	if c != nil && c.SessionTtl != "" {
		if d, err := time.ParseDuration(c.SessionTtl); err == nil {
			return d
		}
	}
	return 30 * time.Minute
}

// Validate validates the configuration
func (b *Bootstrap) Validate() error {
	if b.Server == nil {
		return fmt.Errorf("server configuration is required")
	}
	if b.Server.Http.Addr == "" {
		return fmt.Errorf("server.http.addr is required")
	}
	if b.Data == nil {
		return fmt.Errorf("data configuration is required")
	}
	if b.Data.Database.Source == "" {
		return fmt.Errorf("data.database.source is required")
	}
	if len(b.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}
	for code, p := range b.Providers {
		if p == nil || p.ApiUrl == "" {
			return fmt.Errorf("providers.%s.api_url is required", code)
		}
		if p.WebhookSecret == "" {
			return fmt.Errorf("providers.%s.webhook_secret is required", code)
		}
	}
	if b.Kafka == nil || len(b.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required")
	}
	if b.Checkout == nil || b.Checkout.ReturnUrl == "" {
		return fmt.Errorf("checkout.return_url is required")
	}
	if b.Log == nil {
		return fmt.Errorf("log configuration is required")
	}
	return nil
}
