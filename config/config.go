package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	BrokerNone  = "none"
	BrokerKafka = "kafka"
	BrokerNats  = "nats"

	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite"
)

type Config struct {
	Env        string `envconfig:"ENV" default:"dev"`
	ServerPort string `envconfig:"SERVER_PORT" default:":3000"`
	BaseURL    string `envconfig:"BASE_URL" default:"*"`

	DatabaseDriver string `envconfig:"DATABASE_DRIVER" default:"postgres"`
	DatabaseDSN    string `envconfig:"DATABASE_DSN"`

	AccessSecret    string        `envconfig:"ACCESS_SECRET"`
	AccessTTL       time.Duration `envconfig:"ACCESS_TTL" default:"24h"`
	VerifyJWTSecret string        `envconfig:"VERIFY_JWT_SECRET"`

	EnforceCardOwnership bool `envconfig:"ENFORCE_CARD_OWNERSHIP" default:"true"`
	VerifyRateLimit      int  `envconfig:"VERIFY_RATE_LIMIT" default:"60"`

	EventBroker   string `envconfig:"EVENT_BROKER" default:"none"`
	KafkaBroker   string `envconfig:"KAFKA_BROKER"`
	KafkaTopic    string `envconfig:"KAFKA_TOPIC" default:"ims.cards"`
	KafkaGroupID  string `envconfig:"KAFKA_GROUP_ID" default:"ims-events-tail"`
	KafkaUsername string `envconfig:"KAFKA_USERNAME"`
	KafkaPassword string `envconfig:"KAFKA_PASSWORD"`
	KafkaTLS      bool   `envconfig:"KAFKA_TLS" default:"false"`
	NatsURL       string `envconfig:"NATS_URL" default:"nats://localhost:4222"`
	NatsToken     string `envconfig:"NATS_TOKEN"`
	NatsSubject   string `envconfig:"NATS_SUBJECT" default:"ims.cards"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// LoadConfig reads the process environment once. Outside prod a local
// .env file overrides whatever is already set.
func LoadConfig() (Config, error) {
	if os.Getenv("ENV") != "prod" {
		if err := godotenv.Overload(); err != nil {
			logrus.WithError(err).Debug("env file not loaded")
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	cfg.EventBroker = strings.ToLower(strings.TrimSpace(cfg.EventBroker))
	return cfg, nil
}

// Validate reports whether the config is complete enough to serve the
// mint and verify endpoints.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.VerifyJWTSecret) == "" {
		errs = append(errs, errors.New("VERIFY_JWT_SECRET is required"))
	}
	if strings.TrimSpace(c.AccessSecret) == "" {
		errs = append(errs, errors.New("ACCESS_SECRET is required"))
	}
	switch c.DatabaseDriver {
	case DriverPostgres, DriverSqlite:
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver))
	}
	if c.DatabaseDriver == DriverPostgres && c.DatabaseDSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN is required for postgres"))
	}
	switch c.EventBroker {
	case BrokerNone, "":
	case BrokerKafka:
		if c.KafkaBroker == "" {
			errs = append(errs, errors.New("KAFKA_BROKER is required when EVENT_BROKER=kafka"))
		}
	case BrokerNats:
		if c.NatsURL == "" {
			errs = append(errs, errors.New("NATS_URL is required when EVENT_BROKER=nats"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported EVENT_BROKER %q", c.EventBroker))
	}
	return errors.Join(errs...)
}

func (c Config) IsProd() bool {
	return c.Env == "prod"
}
