package config

import (
	"os"
	"strconv"
	"time"
)

type AgriGuardConfig struct {
	Port        string
	AdminID     string
	PostgresCfg PostgresConfig
	RedisCfg    RedisConfig
	MinioCfg    MinioConfig
	RabbitMQCfg RabbitMQConfig
	WeatherCfg  WeatherConfig
	TokenCfg    TokenIssuerConfig
	MonitorCfg  MonitorConfig
}

type PostgresConfig struct {
	DBname   string
	Username string
	Password string
	Host     string
	Port     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type MinioConfig struct {
	MinioURL       string
	MinioAccessKey string
	MinioSecretKey string
	MinioLocation  string
	MinioSecure    string
}

type RabbitMQConfig struct {
	Username string
	Password string
	Host     string
	Port     string
}

type WeatherConfig struct {
	APIKey       string
	BaseURL      string
	FetchTimeout time.Duration
}

type TokenIssuerConfig struct {
	// IssuerID is the account the issuer authenticates as on inbound
	// callbacks; CallbackSecret is the shared HS256 key its tokens are
	// signed with.
	IssuerID       string
	CallbackSecret string
	BaseURL        string
	CustodyAccount string
}

type MonitorConfig struct {
	// Cadence is the fixed interval between automation cycles.
	Cadence       time.Duration
	OracleID      string
	AnchorTimeout time.Duration
	MetricsPort   string
}

func New() *AgriGuardConfig {
	return &AgriGuardConfig{
		Port:    getEnvOrDefault("PORT", "8086"),
		AdminID: getEnvOrDefault("ADMIN_ACCOUNT_ID", "admin.agriguard"),
		PostgresCfg: PostgresConfig{
			DBname:   getEnvOrDefault("POSTGRES_DB", "agriguard"),
			Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
		},
		RedisCfg: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       0,
		},
		MinioCfg: MinioConfig{
			MinioURL:       getEnvOrDefault("MINIO_ENDPOINT", "http://localhost:9407"),
			MinioAccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", "minio"),
			MinioSecretKey: getEnvOrDefault("MINIO_SECRET_KEY", "minio123"),
			MinioLocation:  getEnvOrDefault("MINIO_LOCATION", "us-east-1"),
			MinioSecure:    getEnvOrDefault("MINIO_SECURE", "false"),
		},
		RabbitMQCfg: RabbitMQConfig{
			Username: getEnvOrDefault("RABBITMQ_USER", "admin"),
			Password: getEnvOrDefault("RABBITMQ_PWD", "admin"),
			Host:     getEnvOrDefault("RABBITMQ_HOST", "localhost"),
			Port:     getEnvOrDefault("RABBITMQ_PORT", "5672"),
		},
		WeatherCfg: WeatherConfig{
			APIKey:       getEnvOrDefault("WEATHER_API_KEY", ""),
			BaseURL:      getEnvOrDefault("WEATHER_API_URL", "https://api.openweathermap.org/data/3.0/onecall"),
			FetchTimeout: getEnvDuration("WEATHER_FETCH_TIMEOUT", 15*time.Second),
		},
		TokenCfg: TokenIssuerConfig{
			IssuerID:       getEnvOrDefault("TOKEN_ISSUER_ID", "token.agriguard"),
			CallbackSecret: getEnvOrDefault("TOKEN_CALLBACK_SECRET", ""),
			BaseURL:        getEnvOrDefault("TOKEN_ISSUER_URL", "http://localhost:8090"),
			CustodyAccount: getEnvOrDefault("TOKEN_CUSTODY_ACCOUNT", "custody.agriguard"),
		},
		MonitorCfg: MonitorConfig{
			Cadence:       getEnvDuration("MONITOR_CADENCE", 3*time.Hour),
			OracleID:      getEnvOrDefault("MONITOR_ORACLE_ID", "oracle.agriguard"),
			AnchorTimeout: getEnvDuration("MONITOR_ANCHOR_TIMEOUT", 30*time.Second),
			MetricsPort:   getEnvOrDefault("MONITOR_METRICS_PORT", "9187"),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
