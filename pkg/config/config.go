package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "PIXMOCK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

// env names referenced outside of struct tags
const (
	EnvAppEnv           = "PIXMOCK_APP_ENV"
	EnvPort             = "PIXMOCK_APP_PORT"
	EnvStoreDriver      = "PIXMOCK_STORE_DRIVER"
	EnvDBDSN            = "PIXMOCK_DB_DSN"
	EnvDBHost           = "PIXMOCK_DB_HOST"
	EnvDBUser           = "PIXMOCK_DB_USER"
	EnvDBName           = "PIXMOCK_DB_NAME"
	EnvRedisURL         = "PIXMOCK_REDIS_URL"
	EnvSettlementMin    = "PIXMOCK_SETTLEMENT_MIN_DELAY"
	EnvSettlementMax    = "PIXMOCK_SETTLEMENT_MAX_DELAY"
	EnvCompletedRatio   = "PIXMOCK_SETTLEMENT_COMPLETED_RATIO"
	EnvFailedRatio      = "PIXMOCK_SETTLEMENT_FAILED_RATIO"
	EnvWebhookTransport = "PIXMOCK_WEBHOOK_TRANSPORT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Store        StoreConfig
	DB           DBConfig
	Redis        RedisConfig
	Payments     PaymentsConfig
	Settlement   SettlementConfig
	Webhooks     WebhooksConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Store.UsesSQL() {
		if err := cfg.DB.ensureDSN(cfg.Store.Driver); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string        `envconfig:"PIXMOCK_APP_ENV" default:"dev"`
	Port         string        `envconfig:"PIXMOCK_APP_PORT" default:"5000"`
	LogLevel     string        `envconfig:"PIXMOCK_LOG_LEVEL" default:"info"`
	LogFormat    string        `envconfig:"PIXMOCK_LOG_FORMAT" default:"json"`
	LogWarnStack bool          `envconfig:"PIXMOCK_LOG_WARN_STACK" default:"false"`
	ShutdownWait time.Duration `envconfig:"PIXMOCK_SHUTDOWN_WAIT" default:"10s"`
	CORSOrigins  []string      `envconfig:"PIXMOCK_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type StoreConfig struct {
	Driver string `envconfig:"PIXMOCK_STORE_DRIVER" default:"memory"`
}

// UsesSQL reports whether orders and payments live in a database.
func (s StoreConfig) UsesSQL() bool {
	return s.Driver == StoreDriverPostgres || s.Driver == StoreDriverSQLite
}

type DBConfig struct {
	DSN string `envconfig:"PIXMOCK_DB_DSN"`

	LegacyHost     string `envconfig:"PIXMOCK_DB_HOST"`
	LegacyPort     int    `envconfig:"PIXMOCK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PIXMOCK_DB_USER"`
	LegacyPassword string `envconfig:"PIXMOCK_DB_PASSWORD"`
	LegacyName     string `envconfig:"PIXMOCK_DB_NAME"`
	LegacySSLMode  string `envconfig:"PIXMOCK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PIXMOCK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PIXMOCK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PIXMOCK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PIXMOCK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// RedisConfig is optional; without a URL or address the idempotency middleware is disabled.
type RedisConfig struct {
	URL          string        `envconfig:"PIXMOCK_REDIS_URL"`
	Address      string        `envconfig:"PIXMOCK_REDIS_ADDR"`
	Password     string        `envconfig:"PIXMOCK_REDIS_PASSWORD"`
	DB           int           `envconfig:"PIXMOCK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PIXMOCK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PIXMOCK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PIXMOCK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PIXMOCK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PIXMOCK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type PaymentsConfig struct {
	DefaultTTL      time.Duration `envconfig:"PIXMOCK_PAYMENT_DEFAULT_TTL" default:"1h"`
	RecipientNames  []string      `envconfig:"PIXMOCK_PAYMENT_RECIPIENT_NAMES" default:"Loja Online LTDA,Servicos Digitais ME,Comercio Eletronico"`
	DestinationKeys []string      `envconfig:"PIXMOCK_PAYMENT_DESTINATION_KEYS" default:"loja@email.com,11999999999,123.456.789-00"`
}

type SettlementConfig struct {
	MinDelay       time.Duration `envconfig:"PIXMOCK_SETTLEMENT_MIN_DELAY" default:"5s"`
	MaxDelay       time.Duration `envconfig:"PIXMOCK_SETTLEMENT_MAX_DELAY" default:"30s"`
	CompletedRatio float64       `envconfig:"PIXMOCK_SETTLEMENT_COMPLETED_RATIO" default:"0.7"`
	FailedRatio    float64       `envconfig:"PIXMOCK_SETTLEMENT_FAILED_RATIO" default:"0.2"`
	// Seed pins the random source; zero seeds from the clock.
	Seed int64 `envconfig:"PIXMOCK_RANDOM_SEED" default:"0"`
}

type WebhooksConfig struct {
	Transport      string        `envconfig:"PIXMOCK_WEBHOOK_TRANSPORT" default:"simulated"`
	SuccessRatio   float64       `envconfig:"PIXMOCK_WEBHOOK_SUCCESS_RATIO" default:"0.7"`
	HTTPTimeout    time.Duration `envconfig:"PIXMOCK_WEBHOOK_HTTP_TIMEOUT" default:"5s"`
	MaxConcurrency int           `envconfig:"PIXMOCK_WEBHOOK_MAX_CONCURRENCY" default:"8"`
}

type FeatureFlagsConfig struct {
	SeedDemoData bool `envconfig:"PIXMOCK_SEED_DEMO_DATA" default:"false"`
	AutoMigrate  bool `envconfig:"PIXMOCK_AUTO_MIGRATE" default:"false"`
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreDriverMemory, StoreDriverPostgres, StoreDriverSQLite:
	default:
		return fmt.Errorf("%s must be one of memory, postgres, sqlite (got %q)", EnvStoreDriver, c.Store.Driver)
	}
	if c.Settlement.MinDelay < 0 || c.Settlement.MaxDelay < c.Settlement.MinDelay {
		return fmt.Errorf("%s must be >= %s >= 0", EnvSettlementMax, EnvSettlementMin)
	}
	s := c.Settlement
	if s.CompletedRatio < 0 || s.FailedRatio < 0 || s.CompletedRatio+s.FailedRatio > 1 {
		return fmt.Errorf("settlement ratios must be non-negative and sum to at most 1")
	}
	switch c.Webhooks.Transport {
	case "simulated", "http":
	default:
		return fmt.Errorf("%s must be simulated or http (got %q)", EnvWebhookTransport, c.Webhooks.Transport)
	}
	if c.Payments.DefaultTTL <= 0 {
		return fmt.Errorf("payment default ttl must be positive")
	}
	return nil
}

func (db *DBConfig) ensureDSN(driver string) error {
	if db.DSN != "" {
		return nil
	}
	if driver == StoreDriverSQLite {
		db.DSN = "file:pixmock.db?cache=shared"
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
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}
	db.DSN = u.String()
	return nil
}
