// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port        int    `yaml:"port"`         // public payment API
	PublicURL   string `yaml:"public_url"`   // base URL providers call back to
	WebhookPath string `yaml:"webhook_path"` // defaults to /api/webhooks/payment
}

type AdminConfig struct {
	Port       int           `yaml:"port"`
	APIKey     string        `yaml:"api_key"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type WeChatConfig struct {
	AppID  string `yaml:"app_id"`
	MchID  string `yaml:"mch_id"`
	APIKey string `yaml:"api_key"`
}

type AlipayConfig struct {
	AppID      string `yaml:"app_id"`
	PrivateKey string `yaml:"private_key"` // merchant RSA private key, PEM
	PublicKey  string `yaml:"public_key"`  // alipay public key, PEM
}

type PayPayConfig struct {
	APIKey      string `yaml:"api_key"`
	APISecret   string `yaml:"api_secret"`
	MerchantID  string `yaml:"merchant_id"`
	Environment string `yaml:"environment"` // sandbox|production
}

type PaymentConfig struct {
	WeChat WeChatConfig `yaml:"wechat"`
	Alipay AlipayConfig `yaml:"alipay"`
	PayPay PayPayConfig `yaml:"paypay"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Sender   string `yaml:"sender"`
}

type SchedulerConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	StaleAfter        time.Duration `yaml:"stale_after"`
}

type WorkerConfig struct {
	Notification int `yaml:"notification"` // pool size for outbound mail
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Workers   WorkerConfig    `yaml:"workers"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.WebhookPath == "" {
		cfg.Server.WebhookPath = "/api/webhooks/payment"
	}
	if cfg.Admin.Port <= 0 {
		cfg.Admin.Port = 8081
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = 2 * time.Hour
	}
	if cfg.Payment.PayPay.Environment == "" {
		cfg.Payment.PayPay.Environment = "sandbox"
	}
	if cfg.Scheduler.ReconcileInterval <= 0 {
		cfg.Scheduler.ReconcileInterval = time.Minute
	}
	if cfg.Scheduler.StaleAfter <= 0 {
		cfg.Scheduler.StaleAfter = 10 * time.Minute
	}
	if cfg.Workers.Notification <= 0 {
		cfg.Workers.Notification = 4
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}
