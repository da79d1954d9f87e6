// Package config содержит логику чтения конфигурации сервиса магазина.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress    = "localhost:8080"
	defaultEmailTopic    = "storefront.emails"
	defaultPendingTTL    = 24 * time.Hour
	defaultPromoRate     = 20
	defaultPaystackBase  = "https://api.paystack.co"
	defaultReapInterval  = 5 * time.Minute
	defaultReapBatchSize = 100
)

// Config содержит параметры конфигурации сервиса магазина.
type Config struct {
	RunAddress        string        `env:"RUN_ADDRESS"`
	DatabaseURI       string        `env:"DATABASE_URI"`
	PaystackSecretKey string        `env:"PAYSTACK_SECRET_KEY"`
	PaystackBaseURL   string        `env:"PAYSTACK_BASE_URL"`
	JWTSecret         string        `env:"JWT_SECRET"`
	RedisAddress      string        `env:"REDIS_ADDRESS"`
	KafkaBrokers      []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaEmailTopic   string        `env:"KAFKA_EMAIL_TOPIC"`
	PendingOrderTTL   time.Duration `env:"PENDING_ORDER_TTL"`
	ReapInterval      time.Duration `env:"REAP_INTERVAL"`
	ReapBatchSize     int           `env:"REAP_BATCH_SIZE"`
	PromoRateLimit    int           `env:"PROMO_RATE_LIMIT"`
	TrustProxy        bool          `env:"TRUST_PROXY"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Значения из окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fromEnv := *cfg

	var brokers string
	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.PaystackSecretKey, "s", "", "paystack secret key")
	flag.StringVar(&cfg.PaystackBaseURL, "paystack-url", defaultPaystackBase, "paystack API base URL")
	flag.StringVar(&cfg.JWTSecret, "j", "", "JWT signing secret of the auth platform")
	flag.StringVar(&cfg.RedisAddress, "redis", "", "redis address for rate limiting")
	flag.StringVar(&brokers, "kafka", "", "comma separated kafka brokers")
	flag.StringVar(&cfg.KafkaEmailTopic, "email-topic", defaultEmailTopic, "kafka topic for email jobs")
	flag.DurationVar(&cfg.PendingOrderTTL, "pending-ttl", defaultPendingTTL, "age after which unpaid orders are cancelled, 0 disables")
	flag.DurationVar(&cfg.ReapInterval, "reap-interval", defaultReapInterval, "interval between stale order sweeps")
	flag.IntVar(&cfg.ReapBatchSize, "reap-batch", defaultReapBatchSize, "stale orders processed per sweep")
	flag.IntVar(&cfg.PromoRateLimit, "promo-rate", defaultPromoRate, "promotion validations per minute per client")
	flag.BoolVar(&cfg.TrustProxy, "trust-proxy", false, "take client address from X-Real-IP and X-Forwarded-For")

	flag.Parse()

	if brokers != "" {
		cfg.KafkaBrokers = splitList(brokers)
	}

	if fromEnv.RunAddress != "" {
		cfg.RunAddress = fromEnv.RunAddress
	}
	if fromEnv.DatabaseURI != "" {
		cfg.DatabaseURI = fromEnv.DatabaseURI
	}
	if fromEnv.PaystackSecretKey != "" {
		cfg.PaystackSecretKey = fromEnv.PaystackSecretKey
	}
	if fromEnv.PaystackBaseURL != "" {
		cfg.PaystackBaseURL = fromEnv.PaystackBaseURL
	}
	if fromEnv.JWTSecret != "" {
		cfg.JWTSecret = fromEnv.JWTSecret
	}
	if fromEnv.RedisAddress != "" {
		cfg.RedisAddress = fromEnv.RedisAddress
	}
	if len(fromEnv.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = splitList(strings.Join(fromEnv.KafkaBrokers, ","))
	}
	if fromEnv.KafkaEmailTopic != "" {
		cfg.KafkaEmailTopic = fromEnv.KafkaEmailTopic
	}
	// Явный PENDING_ORDER_TTL=0 отключает отмену зависших заказов.
	if _, ok := os.LookupEnv("PENDING_ORDER_TTL"); ok {
		cfg.PendingOrderTTL = fromEnv.PendingOrderTTL
	}
	if fromEnv.ReapInterval != 0 {
		cfg.ReapInterval = fromEnv.ReapInterval
	}
	if fromEnv.ReapBatchSize != 0 {
		cfg.ReapBatchSize = fromEnv.ReapBatchSize
	}
	if fromEnv.PromoRateLimit != 0 {
		cfg.PromoRateLimit = fromEnv.PromoRateLimit
	}
	if _, ok := os.LookupEnv("TRUST_PROXY"); ok {
		cfg.TrustProxy = fromEnv.TrustProxy
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = defaultReapInterval
	}
	if cfg.ReapBatchSize <= 0 {
		cfg.ReapBatchSize = defaultReapBatchSize
	}

	return cfg, nil
}

func splitList(s string) []string {
	var res []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			res = append(res, part)
		}
	}
	return res
}
