package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Backend       BackendConfig
	Storage       StorageConfig
	Redis         RedisConfig
	DB            DBConfig
	Session       SessionConfig
	Lists         ListConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MigrateConfig is the subset cmd/migrate needs.
type MigrateConfig struct {
	App AppConfig
	DB  DBConfig
}

// LoadMigrate reads only the app and database settings.
func LoadMigrate() (*MigrateConfig, error) {
	var cfg MigrateConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if strings.TrimSpace(cfg.DB.DSN) == "" {
		return nil, fmt.Errorf("%s is required", EnvDBDSN)
	}
	switch cfg.DB.Normalized() {
	case DBDriverPostgres, DBDriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported %s %q", EnvDBDriver, cfg.DB.Driver)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Normalized() {
	case StorageDriverMemory:
	case StorageDriverFile:
		if strings.TrimSpace(c.Storage.Dir) == "" {
			return fmt.Errorf("%s is required for the file storage driver", EnvStorageDir)
		}
	case StorageDriverRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("%s is required for the redis storage driver", EnvRedisURL)
		}
	case StorageDriverSQL:
		if c.DB.DSN == "" {
			return fmt.Errorf("%s is required for the sql storage driver", EnvDBDSN)
		}
		switch c.DB.Normalized() {
		case DBDriverPostgres, DBDriverSQLite:
		default:
			return fmt.Errorf("unsupported %s %q", EnvDBDriver, c.DB.Driver)
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvStorageDriver, c.Storage.Driver)
	}
	if c.Lists.DefaultPageSize <= 0 || c.Lists.MaxPageSize < c.Lists.DefaultPageSize {
		return fmt.Errorf("list page sizes must satisfy 0 < default (%d) <= max (%d)", c.Lists.DefaultPageSize, c.Lists.MaxPageSize)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"SAINTPAUL_APP_ENV" required:"true"`
	Port         string `envconfig:"SAINTPAUL_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SAINTPAUL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SAINTPAUL_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"SAINTPAUL_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	var origins []string
	for _, part := range strings.Split(a.CORSOrigins, ",") {
		if origin := strings.TrimSpace(part); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// BackendConfig points at the congregation REST backend.
type BackendConfig struct {
	BaseURL string        `envconfig:"SAINTPAUL_BACKEND_BASE_URL" required:"true"`
	Timeout time.Duration `envconfig:"SAINTPAUL_BACKEND_TIMEOUT" default:"10s"`
}

type StorageConfig struct {
	Driver     string `envconfig:"SAINTPAUL_STORAGE_DRIVER" default:"memory"`
	Dir        string `envconfig:"SAINTPAUL_STORAGE_DIR"`
	WatchFiles bool   `envconfig:"SAINTPAUL_STORAGE_WATCH_FILES" default:"true"`
	Namespace  string `envconfig:"SAINTPAUL_STORAGE_NAMESPACE" default:"sp"`
}

func (s StorageConfig) Normalized() string {
	driver := strings.ToLower(strings.TrimSpace(s.Driver))
	if driver == "" {
		return StorageDriverMemory
	}
	return driver
}

type RedisConfig struct {
	URL          string        `envconfig:"SAINTPAUL_REDIS_URL"`
	Address      string        `envconfig:"SAINTPAUL_REDIS_ADDR"`
	Password     string        `envconfig:"SAINTPAUL_REDIS_PASSWORD"`
	DB           int           `envconfig:"SAINTPAUL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SAINTPAUL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SAINTPAUL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SAINTPAUL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SAINTPAUL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SAINTPAUL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type DBConfig struct {
	DSN    string `envconfig:"SAINTPAUL_DB_DSN"`
	Driver string `envconfig:"SAINTPAUL_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"SAINTPAUL_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"SAINTPAUL_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"SAINTPAUL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SAINTPAUL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db DBConfig) Normalized() string {
	driver := strings.ToLower(strings.TrimSpace(db.Driver))
	if driver == "" {
		return DBDriverPostgres
	}
	return driver
}

// SessionConfig controls the browser session cookie and guard behaviour.
type SessionConfig struct {
	Secret        string        `envconfig:"SAINTPAUL_SESSION_SECRET" required:"true"`
	Issuer        string        `envconfig:"SAINTPAUL_SESSION_ISSUER" default:"saintpaul-admin"`
	CookieName    string        `envconfig:"SAINTPAUL_SESSION_COOKIE_NAME" default:"sp_session"`
	CookieSecure  bool          `envconfig:"SAINTPAUL_SESSION_COOKIE_SECURE" default:"true"`
	TTL           time.Duration `envconfig:"SAINTPAUL_SESSION_TTL" default:"720h"`
	HydrationWait time.Duration `envconfig:"SAINTPAUL_SESSION_HYDRATION_WAIT" default:"2s"`
	IdleTimeout   time.Duration `envconfig:"SAINTPAUL_SESSION_IDLE_TIMEOUT" default:"30m"`
	LoginPath     string        `envconfig:"SAINTPAUL_SESSION_LOGIN_PATH" default:"/login"`
	DefaultRoute  string        `envconfig:"SAINTPAUL_SESSION_DEFAULT_ROUTE" default:"/dashboard"`
}

// EvictAfter is how long an unused in-memory session is kept. It never
// exceeds the cookie lifetime.
func (s SessionConfig) EvictAfter() time.Duration {
	if s.IdleTimeout <= 0 || (s.TTL > 0 && s.IdleTimeout > s.TTL) {
		return s.TTL
	}
	return s.IdleTimeout
}

// ListConfig holds the defaults every list view starts from.
type ListConfig struct {
	DefaultPageSize int           `envconfig:"SAINTPAUL_LIST_DEFAULT_PAGE_SIZE" default:"10"`
	MaxPageSize     int           `envconfig:"SAINTPAUL_LIST_MAX_PAGE_SIZE" default:"100"`
	SearchDebounce  time.Duration `envconfig:"SAINTPAUL_LIST_SEARCH_DEBOUNCE" default:"500ms"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"SAINTPAUL_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginUsernameLimit int           `envconfig:"SAINTPAUL_AUTH_RATE_LIMIT_LOGIN_USERNAME_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"SAINTPAUL_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SAINTPAUL_AUTO_MIGRATE" default:"false"`
}
