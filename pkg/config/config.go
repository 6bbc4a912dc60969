package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig             `yaml:"server"`
	Database   DatabaseConfig           `yaml:"database"`
	Redis      RedisConfig              `yaml:"redis"`
	Logger     LoggerConfig             `yaml:"logger"`
	JWT        JWTConfig                `yaml:"jwt"`
	Wallet     WalletConfig             `yaml:"wallet"`
	Withdrawal WithdrawalConfig         `yaml:"withdrawal"`
	Referral   ReferralConfig           `yaml:"referral"`
	Queue      QueueConfig              `yaml:"queue"`
	Reconcile  ReconcileConfig          `yaml:"reconcile"`
	Gateways   map[string]GatewayConfig `yaml:"gateways"` // gateway name -> credentials
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
}

type DatabaseConfig struct {
	Host            string `yaml:"host"`
	Port            string `yaml:"port"`
	User            string `yaml:"user"`
	DBName          string `yaml:"name"`
	Password        string `yaml:"password"`
	SSLMode         string `yaml:"ssl_mode"`
	MaxOpenConns    int32  `yaml:"max_open_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LoggerConfig struct {
	Level      string `yaml:"level"`
	TimeFormat string `yaml:"time_format"`
	Pretty     bool   `yaml:"pretty"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

type WalletConfig struct {
	Currency string `yaml:"currency"`
}

type WithdrawalConfig struct {
	Enabled    bool    `yaml:"enabled"`
	MinAmount  string  `yaml:"min_amount"`
	FeePercent float64 `yaml:"fee_percent"`
}

type ReferralConfig struct {
	CommissionPercent float64 `yaml:"commission_percent"`
}

type GatewayConfig struct {
	APIKey        string `yaml:"api_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// QueueConfig drives the task broker: which queues the worker consumes and
// the retry policy attached to each.
type QueueConfig struct {
	Stream        string                 `yaml:"stream_prefix"`
	ConsumerGroup string                 `yaml:"consumer_group"`
	Queues        []string               `yaml:"queues"`
	ResultTTL     time.Duration          `yaml:"result_ttl"`
	RetryPolicies map[string]RetryPolicy `yaml:"retry_policies"` // queue or policy label -> policy
}

type RetryPolicy struct {
	MaxRetries int             `yaml:"max_retries"`
	Delays     []time.Duration `yaml:"delays"`
}

type ReconcileConfig struct {
	UnfreezeInterval     time.Duration `yaml:"unfreeze_interval"`
	UnfreezeAfter        time.Duration `yaml:"unfreeze_after"`
	WebhookRetryInterval time.Duration `yaml:"webhook_retry_interval"`
	WebhookRetryWindow   time.Duration `yaml:"webhook_retry_window"`
	WebhookRetryBatch    int           `yaml:"webhook_retry_batch"`
	WebhookMaxAttempts   int           `yaml:"webhook_max_attempts"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config.yaml"
	}

	var config Config
	configData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(configData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Wallet.Currency == "" {
		c.Wallet.Currency = "USD"
	}
	if c.Queue.Stream == "" {
		c.Queue.Stream = "tasks"
	}
	if c.Queue.ConsumerGroup == "" {
		c.Queue.ConsumerGroup = "billing-workers"
	}
	if c.Queue.ResultTTL == 0 {
		c.Queue.ResultTTL = 24 * time.Hour
	}
	if len(c.Queue.Queues) == 0 {
		c.Queue.Queues = []string{"payments", "maintenance"}
	}
	if c.Reconcile.UnfreezeInterval == 0 {
		c.Reconcile.UnfreezeInterval = 5 * time.Minute
	}
	if c.Reconcile.UnfreezeAfter == 0 {
		c.Reconcile.UnfreezeAfter = 30 * time.Minute
	}
	if c.Reconcile.WebhookRetryInterval == 0 {
		c.Reconcile.WebhookRetryInterval = 10 * time.Minute
	}
	if c.Reconcile.WebhookRetryWindow == 0 {
		c.Reconcile.WebhookRetryWindow = 24 * time.Hour
	}
	if c.Reconcile.WebhookRetryBatch == 0 {
		c.Reconcile.WebhookRetryBatch = 50
	}
	if c.Reconcile.WebhookMaxAttempts == 0 {
		c.Reconcile.WebhookMaxAttempts = 5
	}
}
