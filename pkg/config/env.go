package config

const (
	EnvPrefix = "FULFILLMENT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv       = "FULFILLMENT_APP_ENV"
	EnvPort         = "FULFILLMENT_APP_PORT"
	EnvDBDSN        = "FULFILLMENT_DB_DSN"
	EnvDBDriver     = "FULFILLMENT_DB_DRIVER"
	EnvDBHost       = "FULFILLMENT_DB_HOST"
	EnvDBUser       = "FULFILLMENT_DB_USER"
	EnvDBPassword   = "FULFILLMENT_DB_PASSWORD"
	EnvDBName       = "FULFILLMENT_DB_NAME"
	EnvRedisURL     = "FULFILLMENT_REDIS_URL"
	EnvUnknownPol   = "FULFILLMENT_UNKNOWN_PRODUCT_POLICY"
	EnvStoreTimeout = "FULFILLMENT_STORE_TIMEOUT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
