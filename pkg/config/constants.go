package config

const (
	EnvPrefix = "STOCKHOLD"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	defaultSQLiteDSN = "file:stockhold.db?_busy_timeout=5000&_foreign_keys=on"
)

const (
	EnvAppEnv   = "STOCKHOLD_APP_ENV"
	EnvPort     = "STOCKHOLD_APP_PORT"
	EnvLogLevel = "STOCKHOLD_LOG_LEVEL"

	EnvDBDSN    = "STOCKHOLD_DB_DSN"
	EnvDBDriver = "STOCKHOLD_DB_DRIVER"
	EnvDBHost   = "STOCKHOLD_DB_HOST"
	EnvDBPort   = "STOCKHOLD_DB_PORT"
	EnvDBUser   = "STOCKHOLD_DB_USER"
	EnvDBPass   = "STOCKHOLD_DB_PASSWORD"
	EnvDBName   = "STOCKHOLD_DB_NAME"

	EnvRedisURL  = "STOCKHOLD_REDIS_URL"
	EnvUseSQLite = "STOCKHOLD_USE_SQLITE"

	EnvReservationDefaultExpiry = "STOCKHOLD_RESERVATION_DEFAULT_EXPIRY"
	EnvReservationMaxExpiry     = "STOCKHOLD_RESERVATION_MAX_EXPIRY"

	EnvPubSubReservationsTopic = "STOCKHOLD_PUBSUB_RESERVATIONS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
