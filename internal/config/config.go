package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	CORS      CORSConfig
	Redis     RedisConfig
	Vault     VaultConfig
	Brokers   BrokersConfig
	OAuth     OAuthConfig
	Health    HealthConfig
	Portfolio PortfolioConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port string
	Host string
}

type DatabaseConfig struct {
	URL  string
	Host string
	Port int
	User string
	Pass string
	Name string
}

type AuthConfig struct {
	JWTSecret     string
	JWTExpiration string
}

type CORSConfig struct {
	Origins []string
}

type RedisConfig struct {
	URL string
}

type VaultConfig struct {
	MasterSecret string // Derived into a 256-bit key via PBKDF2
	KeySalt      string
}

// BrokerCredentials holds the OAuth app registration for one broker.
type BrokerCredentials struct {
	ClientID     string
	ClientSecret string
}

type BrokersConfig struct {
	Zerodha     BrokerCredentials
	Upstox      BrokerCredentials
	AngelOne    BrokerCredentials
	ICICIDirect BrokerCredentials
	Fyers       BrokerCredentials
	IIFL        BrokerCredentials
}

type OAuthConfig struct {
	StateTTLMin         int // Signed state validity window
	RefreshThresholdMin int // Refresh when token expires within this window
}

type HealthConfig struct {
	ProbeIntervalSec int
	ProbeTimeoutSec  int
	MaxConcurrent    int
	StalenessMin     int
}

type PortfolioConfig struct {
	CacheTTLSec     int
	FetchTimeoutSec int
	FxCacheTTLMin   int
}

type RateLimitConfig struct {
	Requests int
	Burst    int
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load initializes and loads configuration using Viper
func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: .env file not found, using environment variables and defaults")
		} else {
			log.Printf("Error reading config file: %v", err)
		}
	} else {
		log.Printf("Using config file: %s", viper.ConfigFileUsed())
	}

	config := &Config{
		Server: ServerConfig{
			Port: viper.GetString("PORT"),
			Host: viper.GetString("HOST"),
		},
		Database: DatabaseConfig{
			URL:  viper.GetString("DATABASE_URL"),
			Host: viper.GetString("DB_HOST"),
			Port: viper.GetInt("DB_PORT"),
			User: viper.GetString("DB_USER"),
			Pass: viper.GetString("DB_PASSWORD"),
			Name: viper.GetString("DB_NAME"),
		},
		Auth: AuthConfig{
			JWTSecret:     viper.GetString("JWT_SECRET"),
			JWTExpiration: viper.GetString("JWT_EXPIRATION"),
		},
		CORS: CORSConfig{
			Origins: viper.GetStringSlice("CORS_ORIGINS"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("REDIS_URL"),
		},
		Vault: VaultConfig{
			MasterSecret: viper.GetString("VAULT_MASTER_SECRET"),
			KeySalt:      viper.GetString("VAULT_KEY_SALT"),
		},
		Brokers: BrokersConfig{
			Zerodha: BrokerCredentials{
				ClientID:     viper.GetString("ZERODHA_CLIENT_ID"),
				ClientSecret: viper.GetString("ZERODHA_CLIENT_SECRET"),
			},
			Upstox: BrokerCredentials{
				ClientID:     viper.GetString("UPSTOX_CLIENT_ID"),
				ClientSecret: viper.GetString("UPSTOX_CLIENT_SECRET"),
			},
			AngelOne: BrokerCredentials{
				ClientID:     viper.GetString("ANGELONE_CLIENT_ID"),
				ClientSecret: viper.GetString("ANGELONE_CLIENT_SECRET"),
			},
			ICICIDirect: BrokerCredentials{
				ClientID:     viper.GetString("ICICI_CLIENT_ID"),
				ClientSecret: viper.GetString("ICICI_CLIENT_SECRET"),
			},
			Fyers: BrokerCredentials{
				ClientID:     viper.GetString("FYERS_CLIENT_ID"),
				ClientSecret: viper.GetString("FYERS_CLIENT_SECRET"),
			},
			IIFL: BrokerCredentials{
				ClientID:     viper.GetString("IIFL_CLIENT_ID"),
				ClientSecret: viper.GetString("IIFL_CLIENT_SECRET"),
			},
		},
		OAuth: OAuthConfig{
			StateTTLMin:         viper.GetInt("OAUTH_STATE_TTL_MIN"),
			RefreshThresholdMin: viper.GetInt("TOKEN_REFRESH_THRESHOLD_MIN"),
		},
		Health: HealthConfig{
			ProbeIntervalSec: viper.GetInt("HEALTH_PROBE_INTERVAL_SEC"),
			ProbeTimeoutSec:  viper.GetInt("HEALTH_PROBE_TIMEOUT_SEC"),
			MaxConcurrent:    viper.GetInt("HEALTH_PROBE_MAX_CONCURRENT"),
			StalenessMin:     viper.GetInt("HEALTH_STALENESS_MIN"),
		},
		Portfolio: PortfolioConfig{
			CacheTTLSec:     viper.GetInt("PORTFOLIO_CACHE_TTL_SEC"),
			FetchTimeoutSec: viper.GetInt("PORTFOLIO_FETCH_TIMEOUT_SEC"),
			FxCacheTTLMin:   viper.GetInt("FX_CACHE_TTL_MIN"),
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Burst:    viper.GetInt("RATE_LIMIT_BURST"),
		},
		Logging: LoggingConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
		},
	}

	return config
}

// setDefaults sets default values for all configuration options
func setDefaults() {
	// Server
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("HOST", "localhost")
	viper.SetDefault("GIN_MODE", "debug")

	// Database
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_USER", "gateway_user")
	viper.SetDefault("DB_PASSWORD", "gateway_password")
	viper.SetDefault("DB_NAME", "trade_gateway")

	// JWT
	viper.SetDefault("JWT_SECRET", "your-super-secret-jwt-key-change-this-in-production")
	viper.SetDefault("JWT_EXPIRATION", "24h")

	// CORS
	viper.SetDefault("CORS_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:3000"})

	// Redis
	viper.SetDefault("REDIS_URL", "redis://localhost:6379")

	// Credential vault
	// IMPORTANT: Change this in production! The master secret is stretched
	// with PBKDF2 into the AES-256 key.
	viper.SetDefault("VAULT_MASTER_SECRET", "dev-master-secret-change-in-prod")
	viper.SetDefault("VAULT_KEY_SALT", "trade-gateway-vault-v1")

	// OAuth
	viper.SetDefault("OAUTH_STATE_TTL_MIN", 10)
	viper.SetDefault("TOKEN_REFRESH_THRESHOLD_MIN", 10)

	// Health probes
	viper.SetDefault("HEALTH_PROBE_INTERVAL_SEC", 300)
	viper.SetDefault("HEALTH_PROBE_TIMEOUT_SEC", 15)
	viper.SetDefault("HEALTH_PROBE_MAX_CONCURRENT", 12)
	viper.SetDefault("HEALTH_STALENESS_MIN", 10)

	// Portfolio
	viper.SetDefault("PORTFOLIO_CACHE_TTL_SEC", 30)
	viper.SetDefault("PORTFOLIO_FETCH_TIMEOUT_SEC", 2)
	viper.SetDefault("FX_CACHE_TTL_MIN", 15)

	// Inbound rate limiting
	viper.SetDefault("RATE_LIMIT_REQUESTS", 100)
	viper.SetDefault("RATE_LIMIT_BURST", 200)

	// Logging
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
}

// IsProduction returns true when GIN_MODE is release
func IsProduction() bool {
	return viper.GetString("GIN_MODE") == "release"
}

// IsDevelopment returns true when not running in release mode
func IsDevelopment() bool {
	return !IsProduction()
}
