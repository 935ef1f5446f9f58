package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Index        IndexConfig        `mapstructure:"index"`
	Mongo        MongoConfig        `mapstructure:"mongo"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Auth         AuthConfig         `mapstructure:"auth"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MiddlewareTimeout time.Duration `mapstructure:"middleware_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// Index drivers
const (
	IndexDriverPostgres = "postgres"
	IndexDriverMySQL    = "mysql"
	IndexDriverSQLite   = "sqlite"
	IndexDriverMemory   = "memory"
)

// IndexConfig selects the backend of the conversation index.
// DSN is used by the mysql and sqlite drivers; postgres uses Database.
type IndexConfig struct {
	Driver     string `mapstructure:"driver"`
	DSN        string `mapstructure:"dsn"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// MigrationURL returns the golang-migrate database URL for the driver
func (c *Config) MigrationURL() (string, error) {
	switch c.Index.Driver {
	case IndexDriverPostgres:
		return c.Database.DSN(), nil
	case IndexDriverMySQL:
		return "mysql://" + c.Index.DSN, nil
	case IndexDriverSQLite:
		return "sqlite://" + c.Index.DSN, nil
	}
	return "", fmt.Errorf("index driver %q has no migrations", c.Index.Driver)
}

type MongoConfig struct {
	URI        string        `mapstructure:"uri"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Lock drivers
const (
	LockDriverLocal = "local"
	LockDriverRedis = "redis"
)

type ConversationConfig struct {
	LockDriver          string        `mapstructure:"lock_driver"`
	LockTTL             time.Duration `mapstructure:"lock_ttl"`
	LockWait            time.Duration `mapstructure:"lock_wait"`
	RecentMessages      int           `mapstructure:"recent_messages"`
	RecentCacheTTL      time.Duration `mapstructure:"recent_cache_ttl"`
	EnforceSingleActive bool          `mapstructure:"enforce_single_active"`
}

type AuthConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level        string        `mapstructure:"level"`
	Format       string        `mapstructure:"format"`
	File         string        `mapstructure:"file"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set config file path
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Index.Driver {
	case IndexDriverPostgres, IndexDriverMemory:
	case IndexDriverMySQL, IndexDriverSQLite:
		if c.Index.DSN == "" {
			return fmt.Errorf("index.dsn is required for driver %q", c.Index.Driver)
		}
	default:
		return fmt.Errorf("unknown index driver %q", c.Index.Driver)
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}

	switch c.Conversation.LockDriver {
	case LockDriverLocal:
	case LockDriverRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("conversation.lock_driver=redis requires redis.enabled")
		}
		// the lease is never renewed, so it must outlive the slowest request
		if c.Conversation.LockTTL <= c.Server.MiddlewareTimeout {
			return fmt.Errorf("conversation.lock_ttl (%s) must exceed server.middleware_timeout (%s)",
				c.Conversation.LockTTL, c.Server.MiddlewareTimeout)
		}
	default:
		return fmt.Errorf("unknown lock driver %q", c.Conversation.LockDriver)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.middleware_timeout", "30s")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "flight")
	v.SetDefault("database.database", "flight_support")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)

	// Index
	v.SetDefault("index.driver", IndexDriverPostgres)
	v.SetDefault("index.max_retries", 3)

	// Mongo
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "flight_support")
	v.SetDefault("mongo.collection", "conversations")
	v.SetDefault("mongo.timeout", "10s")

	// Redis
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Conversation
	v.SetDefault("conversation.lock_driver", LockDriverRedis)
	v.SetDefault("conversation.lock_ttl", "45s")
	v.SetDefault("conversation.lock_wait", "3s")
	v.SetDefault("conversation.recent_messages", 10)
	v.SetDefault("conversation.recent_cache_ttl", "2m")
	v.SetDefault("conversation.enforce_single_active", false)

	// Auth
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.access_token_ttl", "15m")

	// Rate limit
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_minute", 60)
	v.SetDefault("rate_limit.burst", 10)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_age", "168h")
	v.SetDefault("logging.rotation_time", "24h")
}

func bindEnvVars(v *viper.Viper) {
	// Database
	v.BindEnv("database.host", "POSTGRES_HOST")
	v.BindEnv("database.password", "POSTGRES_PASSWORD")

	// Index
	v.BindEnv("index.driver", "INDEX_DRIVER")
	v.BindEnv("index.dsn", "INDEX_DSN")

	// Mongo
	v.BindEnv("mongo.uri", "MONGO_URI")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Auth
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.file", "LOG_FILE")
}
