package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Reservation  ReservationConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Maintenance  MaintenanceConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DB.Driver {
	case DBDriverPostgres, DBDriverSQLite:
	default:
		return fmt.Errorf("%s must be one of %s, %s", EnvDBDriver, DBDriverPostgres, DBDriverSQLite)
	}
	if c.App.IsProd() && c.DB.Driver == DBDriverSQLite {
		return fmt.Errorf("sqlite driver is not allowed when %s=%s", EnvAppEnv, c.App.Env)
	}
	if c.Reservation.DefaultExpiry <= 0 {
		return fmt.Errorf("%s must be positive", EnvReservationDefaultExpiry)
	}
	if c.Reservation.MaxExpiry < c.Reservation.DefaultExpiry {
		return fmt.Errorf("%s must be >= %s", EnvReservationMaxExpiry, EnvReservationDefaultExpiry)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"STOCKHOLD_APP_ENV" required:"true"`
	Port         string `envconfig:"STOCKHOLD_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOCKHOLD_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOCKHOLD_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"STOCKHOLD_CORS_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"STOCKHOLD_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOCKHOLD_DB_DSN"`
	Driver string `envconfig:"STOCKHOLD_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOCKHOLD_DB_HOST"`
	LegacyPort     int    `envconfig:"STOCKHOLD_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOCKHOLD_DB_USER"`
	LegacyPassword string `envconfig:"STOCKHOLD_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOCKHOLD_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOCKHOLD_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOCKHOLD_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOCKHOLD_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOCKHOLD_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOCKHOLD_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// RedisConfig is optional; an empty URL and Address disables idempotency
// replay and the maintenance lock.
type RedisConfig struct {
	URL            string        `envconfig:"STOCKHOLD_REDIS_URL"`
	Address        string        `envconfig:"STOCKHOLD_REDIS_ADDR"`
	Password       string        `envconfig:"STOCKHOLD_REDIS_PASSWORD"`
	DB             int           `envconfig:"STOCKHOLD_REDIS_DB" default:"0"`
	PoolSize       int           `envconfig:"STOCKHOLD_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns   int           `envconfig:"STOCKHOLD_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout    time.Duration `envconfig:"STOCKHOLD_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout    time.Duration `envconfig:"STOCKHOLD_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout   time.Duration `envconfig:"STOCKHOLD_REDIS_WRITE_TIMEOUT" default:"5s"`
	IdempotencyTTL time.Duration `envconfig:"STOCKHOLD_IDEMPOTENCY_TTL" default:"24h"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOCKHOLD_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOCKHOLD_AUTO_MIGRATE" default:"false"`
}

type ReservationConfig struct {
	DefaultExpiry time.Duration `envconfig:"STOCKHOLD_RESERVATION_DEFAULT_EXPIRY" default:"15m"`
	MaxExpiry     time.Duration `envconfig:"STOCKHOLD_RESERVATION_MAX_EXPIRY" default:"24h"`
	LockTimeout   time.Duration `envconfig:"STOCKHOLD_RESERVATION_LOCK_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STOCKHOLD_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STOCKHOLD_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STOCKHOLD_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ReservationsTopic string `envconfig:"STOCKHOLD_PUBSUB_RESERVATIONS_TOPIC" default:"stockhold-reservation-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STOCKHOLD_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STOCKHOLD_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STOCKHOLD_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type MaintenanceConfig struct {
	LockTTL         time.Duration `envconfig:"STOCKHOLD_MAINTENANCE_LOCK_TTL" default:"2m"`
	OutboxRetention time.Duration `envconfig:"STOCKHOLD_OUTBOX_RETENTION" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.Driver == DBDriverSQLite {
		db.DSN = defaultSQLiteDSN
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
