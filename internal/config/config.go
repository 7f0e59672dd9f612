package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const prefix = "MAILMART_"

type Config struct {
	StoreProvider string
	DBUser        string
	DBPass        string
	DBHost        string
	DBPort        string
	DBName        string
	SSLMode       string

	RedisHost        string
	RedisPort        string
	CategoryCacheTTL time.Duration

	BusProvider string
	NatsHost    string
	NatsPort    string

	ApiPort      string
	GRPCPort     string
	GatewayToken string
	AdminToken   string

	SweepInterval      time.Duration
	SweepInitialDelay  time.Duration
	SweepBatchSize     int
	SweepLeaseTTL      time.Duration
	VerificationWindow time.Duration
	DisputeWindow      time.Duration

	LogLevel  string
	LogFormat string
}

// New loads and validates configuration from environment variables.
// Redis and the gRPC health server are optional: without their settings
// the process falls back to a local lease, no category cache and no gRPC.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		StoreProvider: getEnv("STORE_PROVIDER", "postgres"),
		DBUser:        getEnv("POSTGRES_USER", ""),
		DBPass:        getEnv("POSTGRES_PASSWORD", ""),
		DBHost:        getEnv("POSTGRES_HOST", ""),
		DBPort:        getEnv("POSTGRES_PORT", "5432"),
		DBName:        getEnv("POSTGRES_DB", ""),
		SSLMode:       getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:        getEnv("REDIS_HOST", ""),
		RedisPort:        getEnv("REDIS_PORT", "6379"),
		CategoryCacheTTL: getEnvDuration("CATEGORY_CACHE_TTL", 5*time.Minute),

		BusProvider: getEnv("BUS_PROVIDER", "direct"),
		NatsHost:    getEnv("NATS_HOST", ""),
		NatsPort:    getEnv("NATS_PORT", "4222"),

		ApiPort:      getEnv("API_PORT", "8080"),
		GRPCPort:     getEnv("GRPC_PORT", ""),
		GatewayToken: getEnv("GATEWAY_TOKEN", ""),
		AdminToken:   getEnv("ADMIN_TOKEN", ""),

		SweepInterval:      getEnvDuration("SWEEP_INTERVAL", time.Hour),
		SweepInitialDelay:  getEnvDuration("SWEEP_INITIAL_DELAY", 30*time.Second),
		SweepBatchSize:     getEnvInt("SWEEP_BATCH_SIZE", 500),
		SweepLeaseTTL:      getEnvDuration("SWEEP_LEASE_TTL", 10*time.Minute),
		VerificationWindow: getEnvDuration("VERIFICATION_WINDOW", 24*time.Hour),
		DisputeWindow:      getEnvDuration("DISPUTE_WINDOW", 3*time.Hour),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	switch cfg.StoreProvider {
	case "postgres":
		if cfg.DBUser == "" || cfg.DBHost == "" || cfg.DBName == "" {
			return nil, fmt.Errorf("missing required env for database: %sPOSTGRES_USER/HOST/DB", prefix)
		}
	case "memory":
	default:
		return nil, fmt.Errorf("invalid store provider %q, must be 'postgres' or 'memory'", cfg.StoreProvider)
	}

	switch cfg.BusProvider {
	case "nats":
		if cfg.NatsHost == "" {
			return nil, fmt.Errorf("missing required env for nats bus: %sNATS_HOST", prefix)
		}
	case "direct":
	default:
		return nil, fmt.Errorf("invalid bus provider %q, must be 'direct' or 'nats'", cfg.BusProvider)
	}

	if cfg.GatewayToken == "" || cfg.AdminToken == "" {
		return nil, fmt.Errorf("missing required env: %sGATEWAY_TOKEN and %sADMIN_TOKEN", prefix, prefix)
	}
	if cfg.GatewayToken == cfg.AdminToken {
		return nil, fmt.Errorf("%sGATEWAY_TOKEN and %sADMIN_TOKEN must differ", prefix, prefix)
	}

	if cfg.SweepInterval <= 0 || cfg.VerificationWindow <= 0 || cfg.DisputeWindow <= 0 {
		return nil, fmt.Errorf("sweep interval and windows must be positive")
	}
	if cfg.SweepBatchSize <= 0 {
		return nil, fmt.Errorf("invalid %sSWEEP_BATCH_SIZE %d", prefix, cfg.SweepBatchSize)
	}

	return cfg, nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName, c.SSLMode)
}

func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func (c *Config) NatsAddr() string {
	return fmt.Sprintf("nats://%s:%s", c.NatsHost, c.NatsPort)
}

func (c *Config) ApiAddr() string {
	return ":" + c.ApiPort
}

// GRPCAddr returns the health server listen address if one is configured.
func (c *Config) GRPCAddr() (string, error) {
	if c.GRPCPort == "" {
		return "", fmt.Errorf("gRPC health server is disabled (%sGRPC_PORT not set)", prefix)
	}
	return ":" + c.GRPCPort, nil
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(prefix + key); ok && val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(prefix + key)
	if val == "" {
		return defaultVal
	}
	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return intVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(prefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
