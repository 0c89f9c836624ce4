package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	Audit         AuditConfig
	ObjectStore   ObjectStoreConfig
	AI            AIConfig
	Chat          ChatConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig describes the DuckDB file the service answers questions
// against. The serving path always opens it read-only.
type DatabaseConfig struct {
	Path         string
	MaxOpenConns int
	MaxIdleConns int
}

// AuditConfig describes the optional Postgres store that keeps a durable
// copy of completed turns. Disabled when the DSN is empty.
type AuditConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type AIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

type ChatConfig struct {
	ContextWindow    int
	MaxRetries       int
	MaxResultRows    int
	StatementTimeout time.Duration
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("TABLECHAT_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid TABLECHAT_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "TABLECHAT_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLECHAT_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TABLECHAT_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TABLECHAT_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TABLECHAT_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLECHAT_DB_PATH", &cfg.Database.Path); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLECHAT_DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLECHAT_DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLECHAT_AUDIT_DSN", &cfg.Audit.DSN); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLECHAT_AUDIT_MAX_OPEN_CONNS", &cfg.Audit.MaxOpenConns); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLECHAT_AUDIT_MAX_IDLE_CONNS", &cfg.Audit.MaxIdleConns); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TABLECHAT_AUDIT_CONN_MAX_IDLE_TIME", &cfg.Audit.ConnMaxIdleTime); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TABLECHAT_AUDIT_CONN_MAX_LIFETIME", &cfg.Audit.ConnMaxLifetime); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLECHAT_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLECHAT_OBJECTSTORE_REGION", &cfg.ObjectStore.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLECHAT_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLECHAT_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLECHAT_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TABLECHAT_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLECHAT_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TABLECHAT_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLECHAT_AI_BASE_URL", &cfg.AI.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLECHAT_AI_API_KEY", &cfg.AI.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLECHAT_AI_MODEL", &cfg.AI.Model); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "TABLECHAT_AI_TEMPERATURE", &cfg.AI.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TABLECHAT_AI_TIMEOUT", &cfg.AI.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLECHAT_CHAT_CONTEXT_WINDOW", &cfg.Chat.ContextWindow); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLECHAT_CHAT_MAX_RETRIES", &cfg.Chat.MaxRetries); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLECHAT_CHAT_MAX_RESULT_ROWS", &cfg.Chat.MaxResultRows); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TABLECHAT_CHAT_STATEMENT_TIMEOUT", &cfg.Chat.StatementTimeout); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "TABLECHAT_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TABLECHAT_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TABLECHAT_AUTH_REQUIRED", &cfg.Auth.Required); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TABLECHAT_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.Database.Path == "" {
		return Config{}, fmt.Errorf("database path is required")
	}
	if cfg.Chat.ContextWindow <= 0 {
		return Config{}, fmt.Errorf("context window must be > 0")
	}
	if cfg.Chat.MaxRetries <= 0 {
		return Config{}, fmt.Errorf("max retries must be > 0")
	}
	if cfg.Chat.MaxResultRows <= 0 {
		return Config{}, fmt.Errorf("max result rows must be > 0")
	}
	if cfg.Chat.StatementTimeout <= 0 {
		return Config{}, fmt.Errorf("statement timeout must be > 0")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "tablechat-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Path:         "retail.duckdb",
			MaxOpenConns: 8,
			MaxIdleConns: 4,
		},
		Audit: AuditConfig{
			DSN:             "",
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "tablechat",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "exports",
			AutoCreateBucket: true,
		},
		AI: AIConfig{
			BaseURL:     "https://api.openai.com",
			Model:       "gpt-5",
			Temperature: 0.1,
			Timeout:     15 * time.Second,
		},
		Chat: ChatConfig{
			ContextWindow:    10,
			MaxRetries:       2,
			MaxResultRows:    1000,
			StatementTimeout: 10 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
