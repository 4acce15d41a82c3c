package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the service
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Telos    TelosConfig
	Base     BaseConfig
	Operator OperatorConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
}

// DatabaseConfig holds PostgreSQL configuration for the issuance ledger.
// When Host is empty the service runs with an in-memory ledger instead.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Enabled reports whether a durable ledger is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// TelosConfig holds source-ledger configuration
type TelosConfig struct {
	RPCEndpoint       string
	MigrationContract string  // contract account holding the claim table
	MigrationTable    string  // claim table name
	MigrationAction   string  // action name checked by proof verification
	TokenSymbol       string  // source asset symbol, e.g. "HYPHA"
	RequestTimeout    time.Duration
	RequestsPerSec    float64 // chain API rate limit
	RequestBurst      int
}

// BaseConfig holds destination-chain configuration
type BaseConfig struct {
	RPCEndpoint    string
	TokenAddress   string // deployed token contract
	TokenDecimals  int
	IssuanceMode   string // "mint" or "transfer"
	ConfirmTimeout time.Duration
}

// OperatorConfig holds the signing wallet configuration. The private key is
// loaded once at startup and never mutated; it may be empty, in which case
// issuance endpoints answer with a configuration error.
type OperatorConfig struct {
	PrivateKey string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "hypha_migration"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Telos: TelosConfig{
			RPCEndpoint:       getEnv("TELOS_RPC_ENDPOINT", "https://mainnet.telos.net"),
			MigrationContract: getEnv("TELOS_MIGRATION_CONTRACT", "migratehypha"),
			MigrationTable:    getEnv("TELOS_MIGRATION_TABLE", "migrations"),
			MigrationAction:   getEnv("TELOS_MIGRATION_ACTION", "migrate"),
			TokenSymbol:       getEnv("TELOS_TOKEN_SYMBOL", "HYPHA"),
			RequestTimeout:    getEnvDuration("TELOS_REQUEST_TIMEOUT", 10*time.Second),
			RequestsPerSec:    float64(getEnvInt("TELOS_RATE_LIMIT_RPS", 10)),
			RequestBurst:      getEnvInt("TELOS_RATE_LIMIT_BURST", 5),
		},
		Base: BaseConfig{
			RPCEndpoint:    getEnv("BASE_RPC_ENDPOINT", "https://mainnet.base.org"),
			TokenAddress:   getEnv("BASE_TOKEN_ADDRESS", "0x8b93862835C36e9689E9bb1Ab21De3982e266CD3"),
			TokenDecimals:  getEnvInt("BASE_TOKEN_DECIMALS", 18),
			IssuanceMode:   getEnv("BASE_ISSUANCE_MODE", "mint"),
			ConfirmTimeout: getEnvDuration("BASE_CONFIRM_TIMEOUT", 2*time.Minute),
		},
		Operator: OperatorConfig{
			PrivateKey: getEnv("OPERATOR_PRIVATE_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Telos.RPCEndpoint == "" {
		return fmt.Errorf("telos RPC endpoint is required")
	}
	if c.Telos.MigrationContract == "" {
		return fmt.Errorf("telos migration contract is required")
	}

	if c.Base.RPCEndpoint == "" {
		return fmt.Errorf("base RPC endpoint is required")
	}
	if c.Base.TokenAddress == "" {
		return fmt.Errorf("base token address is required")
	}
	if c.Base.TokenDecimals <= 0 {
		return fmt.Errorf("invalid token decimals: %d", c.Base.TokenDecimals)
	}
	if c.Base.IssuanceMode != "mint" && c.Base.IssuanceMode != "transfer" {
		return fmt.Errorf("invalid issuance mode: %q", c.Base.IssuanceMode)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
