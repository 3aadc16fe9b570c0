package config

const (
	EnvPrefix = "SAINTPAUL"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv         = "SAINTPAUL_APP_ENV"
	EnvPort           = "SAINTPAUL_APP_PORT"
	EnvBackendBaseURL = "SAINTPAUL_BACKEND_BASE_URL"
	EnvStorageDriver  = "SAINTPAUL_STORAGE_DRIVER"
	EnvStorageDir     = "SAINTPAUL_STORAGE_DIR"
	EnvRedisURL       = "SAINTPAUL_REDIS_URL"
	EnvDBDSN          = "SAINTPAUL_DB_DSN"
	EnvDBDriver       = "SAINTPAUL_DB_DRIVER"
	EnvSessionSecret  = "SAINTPAUL_SESSION_SECRET"
	EnvSessionIssuer  = "SAINTPAUL_SESSION_ISSUER"

	StorageDriverMemory = "memory"
	StorageDriverFile   = "file"
	StorageDriverRedis  = "redis"
	StorageDriverSQL    = "sql"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)
