package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable this service reads.
const EnvPrefix = "TICKETBLITZ"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvDBDSN  = "TICKETBLITZ_DB_DSN"
	EnvDBHost = "TICKETBLITZ_DB_HOST"
	EnvDBUser = "TICKETBLITZ_DB_USER"
	EnvDBName = "TICKETBLITZ_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Purchase     PurchaseConfig
	Stream       StreamConfig
	Outbox       OutboxConfig
	Resync       ResyncConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TICKETBLITZ_APP_ENV" required:"true"`
	Port         string `envconfig:"TICKETBLITZ_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TICKETBLITZ_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TICKETBLITZ_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TICKETBLITZ_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TICKETBLITZ_DB_DSN"`
	Driver string `envconfig:"TICKETBLITZ_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TICKETBLITZ_DB_HOST"`
	LegacyPort     int    `envconfig:"TICKETBLITZ_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TICKETBLITZ_DB_USER"`
	LegacyPassword string `envconfig:"TICKETBLITZ_DB_PASSWORD"`
	LegacyName     string `envconfig:"TICKETBLITZ_DB_NAME"`
	LegacySSLMode  string `envconfig:"TICKETBLITZ_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TICKETBLITZ_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TICKETBLITZ_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TICKETBLITZ_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TICKETBLITZ_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TICKETBLITZ_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TICKETBLITZ_REDIS_ADDR"`
	Password     string        `envconfig:"TICKETBLITZ_REDIS_PASSWORD"`
	DB           int           `envconfig:"TICKETBLITZ_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TICKETBLITZ_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TICKETBLITZ_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TICKETBLITZ_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TICKETBLITZ_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TICKETBLITZ_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TICKETBLITZ_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TICKETBLITZ_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TICKETBLITZ_JWT_EXPIRATION_MINUTES" default:"60"`
}

// PurchaseConfig carries the purchase-policy knobs. The per-request quantity
// cap is policy, not contract, so it stays configurable.
type PurchaseConfig struct {
	MaxQuantity    int           `envconfig:"TICKETBLITZ_PURCHASE_MAX_QUANTITY" default:"10"`
	IdempotencyTTL time.Duration `envconfig:"TICKETBLITZ_PURCHASE_IDEMPOTENCY_TTL" default:"168h"`
}

type StreamConfig struct {
	SubscriberBuffer  int           `envconfig:"TICKETBLITZ_STREAM_SUBSCRIBER_BUFFER" default:"32"`
	HeartbeatInterval time.Duration `envconfig:"TICKETBLITZ_STREAM_HEARTBEAT_INTERVAL" default:"15s"`
}

type OutboxConfig struct {
	BatchSize    int           `envconfig:"TICKETBLITZ_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval time.Duration `envconfig:"TICKETBLITZ_OUTBOX_POLL_INTERVAL" default:"250ms"`
	MaxAttempts  int           `envconfig:"TICKETBLITZ_OUTBOX_MAX_ATTEMPTS" default:"10"`
	BaseBackoff  time.Duration `envconfig:"TICKETBLITZ_OUTBOX_BASE_BACKOFF" default:"500ms"`
	MaxBackoff   time.Duration `envconfig:"TICKETBLITZ_OUTBOX_MAX_BACKOFF" default:"1m"`
}

type ResyncConfig struct {
	Interval time.Duration `envconfig:"TICKETBLITZ_RESYNC_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"TICKETBLITZ_RESYNC_LOCK_TTL" default:"55m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TICKETBLITZ_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TICKETBLITZ_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := url.Values{}
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
