package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	VerifyToken   string `env:"WEBHOOK_VERIFY_TOKEN"`
	PhoneNumberID string `env:"PHONE_NUMBER_ID"`
	AccessToken   string `env:"ACCESS_TOKEN"`

	GraphAPIURL     string `env:"GRAPH_API_URL" envDefault:"https://graph.facebook.com"`
	GraphAPIVersion string `env:"GRAPH_API_VERSION" envDefault:"v12.0"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	SendTimeout        time.Duration `env:"SEND_TIMEOUT" envDefault:"15s"`
	MaxConcurrentSends int64         `env:"MAX_CONCURRENT_SENDS" envDefault:"16"`
	SendRatePerSecond  float64       `env:"SEND_RATE_PER_SECOND" envDefault:"20"`

	DeliveryLogPath  string        `env:"DELIVERY_LOG_PATH"`
	DeliveryLogToken string        `env:"DELIVERY_LOG_TOKEN"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func Load() (*Config, error) {
	// .env is optional, env vars may already be set (e.g. in production)
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing env: %w", err)
	}

	if cfg.MaxConcurrentSends < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENT_SENDS must be at least 1, got %d", cfg.MaxConcurrentSends)
	}
	if cfg.SendRatePerSecond < 0 {
		return nil, fmt.Errorf("SEND_RATE_PER_SECOND must not be negative, got %v", cfg.SendRatePerSecond)
	}

	return &cfg, nil
}

// Missing returns the names of unset provider settings. They are not required
// to start: the verification handshake fails closed and sends fail at the provider.
func (c *Config) Missing() []string {
	var missing []string
	for _, req := range []struct {
		name, val string
	}{
		{"WEBHOOK_VERIFY_TOKEN", c.VerifyToken},
		{"PHONE_NUMBER_ID", c.PhoneNumberID},
		{"ACCESS_TOKEN", c.AccessToken},
	} {
		if req.val == "" {
			missing = append(missing, req.name)
		}
	}
	return missing
}
