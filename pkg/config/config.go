package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "bidfinderz"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv   = "BIDFINDERZ_APP_ENV"
	EnvPort     = "BIDFINDERZ_APP_PORT"
	EnvDBDSN    = "BIDFINDERZ_DB_DSN"
	EnvDBHost   = "BIDFINDERZ_DB_HOST"
	EnvDBUser   = "BIDFINDERZ_DB_USER"
	EnvDBName   = "BIDFINDERZ_DB_NAME"
	EnvRedisURL = "BIDFINDERZ_REDIS_URL"

	EnvJWTSecret = "BIDFINDERZ_JWT_SECRET"
	EnvJWTIssuer = "BIDFINDERZ_JWT_ISSUER"

	EnvGCPProjectID   = "BIDFINDERZ_GCP_PROJECT_ID"
	EnvPubSubTopic    = "BIDFINDERZ_PUBSUB_AUCTION_TOPIC"
	EnvBidWindow      = "BIDFINDERZ_ENGINE_BID_WINDOW"
	EnvSweepInterval  = "BIDFINDERZ_ENGINE_SWEEP_INTERVAL"
	EnvEndingSoonFrom = "BIDFINDERZ_ENGINE_ENDING_SOON_FROM"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Engine       EngineConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"BIDFINDERZ_APP_ENV" required:"true"`
	Port         string `envconfig:"BIDFINDERZ_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BIDFINDERZ_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BIDFINDERZ_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BIDFINDERZ_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BIDFINDERZ_DB_DSN"`
	Driver string `envconfig:"BIDFINDERZ_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BIDFINDERZ_DB_HOST"`
	LegacyPort     int    `envconfig:"BIDFINDERZ_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BIDFINDERZ_DB_USER"`
	LegacyPassword string `envconfig:"BIDFINDERZ_DB_PASSWORD"`
	LegacyName     string `envconfig:"BIDFINDERZ_DB_NAME"`
	LegacySSLMode  string `envconfig:"BIDFINDERZ_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BIDFINDERZ_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BIDFINDERZ_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BIDFINDERZ_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BIDFINDERZ_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BIDFINDERZ_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BIDFINDERZ_REDIS_ADDR"`
	Password     string        `envconfig:"BIDFINDERZ_REDIS_PASSWORD"`
	DB           int           `envconfig:"BIDFINDERZ_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BIDFINDERZ_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BIDFINDERZ_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BIDFINDERZ_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BIDFINDERZ_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BIDFINDERZ_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BIDFINDERZ_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BIDFINDERZ_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BIDFINDERZ_JWT_EXPIRATION_MINUTES" default:"60"`
}

// EngineConfig tunes the bidding engine timings.
type EngineConfig struct {
	BidWindow       time.Duration `envconfig:"BIDFINDERZ_ENGINE_BID_WINDOW" default:"15s"`
	TickInterval    time.Duration `envconfig:"BIDFINDERZ_ENGINE_TICK_INTERVAL" default:"1s"`
	SweepInterval   time.Duration `envconfig:"BIDFINDERZ_ENGINE_SWEEP_INTERVAL" default:"5s"`
	SweepLockTTL    time.Duration `envconfig:"BIDFINDERZ_ENGINE_SWEEP_LOCK_TTL" default:"30s"`
	EndingSoonFrom  time.Duration `envconfig:"BIDFINDERZ_ENGINE_ENDING_SOON_FROM" default:"10s"`
	EndingSoonUntil time.Duration `envconfig:"BIDFINDERZ_ENGINE_ENDING_SOON_UNTIL" default:"8s"`
}

type FeatureFlagsConfig struct {
	UseSQLite     bool `envconfig:"BIDFINDERZ_USE_SQLITE" default:"false"`
	AutoMigrate   bool `envconfig:"BIDFINDERZ_AUTO_MIGRATE" default:"false"`
	Notifications bool `envconfig:"BIDFINDERZ_FEATURE_NOTIFICATIONS" default:"true"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BIDFINDERZ_GCP_PROJECT_ID"`
	ApplicationCredentials string `envconfig:"BIDFINDERZ_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	AuctionTopic string `envconfig:"BIDFINDERZ_PUBSUB_AUCTION_TOPIC" default:"bf-auction-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BIDFINDERZ_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BIDFINDERZ_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BIDFINDERZ_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
