package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (FSHOE_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string        `usage:"PostgreSQL connection URL (FSHOE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL     string        `default:"redis://localhost:6379/0" usage:"Redis URL for carts (FSHOE_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	CartTTL      time.Duration `default:"720h" usage:"Idle lifetime of a cart" flag:"cart-ttl"`
	APIKeyPepper string        `usage:"HMAC pepper for API key hashing" flag:"api-key-pepper"`
	Kafka        KafkaConfig
	Gateway      GatewayConfig
	Checkout     CheckoutConfig
	Loyalty      LoyaltyConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// KafkaConfig selects the notification broker. Without brokers,
// notifications are only logged.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka bootstrap brokers"`
	Topic   string   `default:"order-notifications" usage:"Notification topic"`
}

// GatewayConfig holds the hosted payment gateway credentials.
type GatewayConfig struct {
	BaseURL        string        `default:"https://api-merchant.payos.vn" usage:"Gateway API base URL"`
	ClientID       string        `usage:"Gateway client id"`
	APIKey         string        `usage:"Gateway API key"`
	ChecksumKey    string        `usage:"Gateway checksum key for request signing and callback verification"`
	ReturnURL      string        `default:"http://localhost:3000/orders/{order_id}?paid=1" usage:"Return URL template"`
	CancelURL      string        `default:"http://localhost:3000/orders/{order_id}?cancelled=1" usage:"Cancel URL template"`
	VerifyWebhooks bool          `default:"true" usage:"Reject callbacks with a bad signature" flag:"verify-webhooks"`
	Timeout        time.Duration `default:"10s" usage:"Gateway request timeout"`
}

// CheckoutConfig holds checkout policy.
type CheckoutConfig struct {
	ShippingFees          map[string]int64 `default:"standard:30000,express:50000" usage:"Flat fee per shipping method"`
	DefaultShippingMethod string           `default:"standard" usage:"Shipping method used when none is given"`
	StockConcurrency      int              `default:"8" usage:"Parallel inventory calls per order"`
	MaxConflictRetries    int              `default:"3" usage:"Retries on concurrent order updates"`
}

// LoyaltyConfig controls point accrual.
type LoyaltyConfig struct {
	Unit int64 `default:"10000" usage:"Revenue per loyalty point"`
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML files,
// then applies platform fallbacks.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "FSHOE",
		Files:     []string{"config.yaml", "/etc/fshoemate/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the unprefixed variables set by hosting
// platforms onto the configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if v := os.Getenv("REDIS_URL"); v != "" && os.Getenv("FSHOE_REDIS_URL") == "" {
		c.RedisURL = v
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set FSHOE_DATABASE_URL or DATABASE_URL")
	}
	if len(c.Checkout.ShippingFees) == 0 {
		return errors.New("at least one shipping fee is required")
	}
	if _, ok := c.Checkout.ShippingFees[c.Checkout.DefaultShippingMethod]; !ok {
		return errors.Errorf("default shipping method %q has no fee", c.Checkout.DefaultShippingMethod)
	}
	if c.Gateway.VerifyWebhooks && c.Gateway.ChecksumKey == "" {
		return errors.New("gateway checksum key is required when webhook verification is on")
	}
	return nil
}

// shippingFees converts the configured fee table to money.
func (c *Config) shippingFees() map[string]decimal.Decimal {
	fees := make(map[string]decimal.Decimal, len(c.Checkout.ShippingFees))
	for method, fee := range c.Checkout.ShippingFees {
		fees[method] = decimal.NewFromInt(fee)
	}
	return fees
}
