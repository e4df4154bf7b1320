package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// Config represents application configuration, loaded from environment
// variables with sensible defaults.
type Config struct {
	AppEnv    string
	AppName   string
	Server    ServerConfig
	TLS       TLSConfig
	DB        DatabaseConfig
	Session   SessionConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Otel      OtelConfig
	Admin     AdminConfig
	Event     EventConfig
}

type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type TLSConfig struct {
	Enable   bool
	CertPath string
	KeyPath  string
}

type DatabaseConfig struct {
	// Type selects the gorm dialect: sqlite (default), postgres or mysql.
	Type string
	DSN  string
}

type SessionConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	PoolTimeout time.Duration
}

type RateLimitConfig struct {
	// Backend selects the limiter implementation: memory (default) or redis.
	Backend string
}

type OtelConfig struct {
	Endpoint string
	Insecure bool
}

type AdminConfig struct {
	// SeedEmails bootstraps the admins table on startup. The list is a seed
	// only; runtime admin checks always go through the persisted table.
	SeedEmails []string
}

type EventConfig struct {
	CurrentEventID string
}

var Module = fx.Module("config", fx.Provide(Provide))

// Provide loads configuration from the environment.
func Provide() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "hackid")
	v.SetDefault("SERVER_ADDR", ":8080")
	v.SetDefault("SERVER_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("SERVER_IDLE_TIMEOUT", time.Minute)
	v.SetDefault("TLS_ENABLE", false)
	v.SetDefault("DATABASE_TYPE", "sqlite")
	v.SetDefault("DATABASE_DSN", "hackid.db")
	v.SetDefault("SESSION_ISSUER", "hack.sv")
	v.SetDefault("SESSION_TTL", 24*time.Hour)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_POOL_TIMEOUT", 30*time.Second)
	v.SetDefault("RATELIMIT_BACKEND", "memory")
	v.SetDefault("OTEL_INSECURE", true)
	v.SetDefault("CURRENT_EVENT_ID", "")

	cfg := &Config{
		AppEnv:  v.GetString("APP_ENV"),
		AppName: v.GetString("APP_NAME"),
		Server: ServerConfig{
			Addr:         v.GetString("SERVER_ADDR"),
			ReadTimeout:  v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:  v.GetDuration("SERVER_IDLE_TIMEOUT"),
		},
		TLS: TLSConfig{
			Enable:   v.GetBool("TLS_ENABLE"),
			CertPath: v.GetString("TLS_CERT_PATH"),
			KeyPath:  v.GetString("TLS_KEY_PATH"),
		},
		DB: DatabaseConfig{
			Type: v.GetString("DATABASE_TYPE"),
			DSN:  v.GetString("DATABASE_DSN"),
		},
		Session: SessionConfig{
			Secret: v.GetString("SESSION_SECRET"),
			Issuer: v.GetString("SESSION_ISSUER"),
			TTL:    v.GetDuration("SESSION_TTL"),
		},
		Redis: RedisConfig{
			Addr:        v.GetString("REDIS_ADDR"),
			Password:    v.GetString("REDIS_PASSWORD"),
			DB:          v.GetInt("REDIS_DB"),
			PoolSize:    v.GetInt("REDIS_POOL_SIZE"),
			PoolTimeout: v.GetDuration("REDIS_POOL_TIMEOUT"),
		},
		RateLimit: RateLimitConfig{
			Backend: v.GetString("RATELIMIT_BACKEND"),
		},
		Otel: OtelConfig{
			Endpoint: v.GetString("OTEL_ADDR"),
			Insecure: v.GetBool("OTEL_INSECURE"),
		},
		Admin: AdminConfig{
			SeedEmails: splitList(v.GetString("ADMIN_SEED_EMAILS")),
		},
		Event: EventConfig{
			CurrentEventID: v.GetString("CURRENT_EVENT_ID"),
		},
	}

	if cfg.TLS.Enable && (cfg.TLS.CertPath == "" || cfg.TLS.KeyPath == "") {
		return nil, fmt.Errorf("tls enabled but TLS_CERT_PATH or TLS_KEY_PATH not provided")
	}
	if cfg.Session.Secret == "" && cfg.AppEnv == "production" {
		return nil, fmt.Errorf("SESSION_SECRET is required in production")
	}

	return cfg, nil
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
