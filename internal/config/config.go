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

const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
)

const (
	CollisionAppend  = "append"
	CollisionReplace = "replace"
	CollisionReject  = "reject"
	CollisionSuffix  = "suffix"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	Ingest        IngestConfig
	Query         QueryConfig
	AI            AIConfig
	ObjectStore   ObjectStoreConfig
	Demo          DemoConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxUploadBytes int64
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type IngestConfig struct {
	CollisionPolicy    string
	MaxConcurrentFiles int
	ArchiveUploads     bool
}

type QueryConfig struct {
	ReadOnly       bool
	PreviewRows    int
	ExportBaseName string
}

type AIConfig struct {
	BaseURL         string
	APIKey          string
	Model           string
	Timeout         time.Duration
	SuggestionCount int
}

type ObjectStoreConfig struct {
	Enabled          bool
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type DemoConfig struct {
	CatalogPath string
	FilesDir    string
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
	if raw, ok := lookup("DATACHAT_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid DATACHAT_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "DATACHAT_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "DATACHAT_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "DATACHAT_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "DATACHAT_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "DATACHAT_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyInt64(lookup, "DATACHAT_HTTP_MAX_UPLOAD_BYTES", &cfg.HTTP.MaxUploadBytes) },
		func() error { return applyString(lookup, "DATACHAT_DB_DRIVER", &cfg.Database.Driver) },
		func() error { return applyString(lookup, "DATACHAT_DB_DSN", &cfg.Database.DSN) },
		func() error { return applyInt(lookup, "DATACHAT_DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns) },
		func() error { return applyInt(lookup, "DATACHAT_DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns) },
		func() error {
			return applyDuration(lookup, "DATACHAT_DB_CONN_MAX_IDLE_TIME", &cfg.Database.ConnMaxIdleTime)
		},
		func() error {
			return applyDuration(lookup, "DATACHAT_DB_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime)
		},
		func() error { return applyString(lookup, "DATACHAT_INGEST_COLLISION_POLICY", &cfg.Ingest.CollisionPolicy) },
		func() error { return applyInt(lookup, "DATACHAT_INGEST_MAX_CONCURRENT_FILES", &cfg.Ingest.MaxConcurrentFiles) },
		func() error { return applyBool(lookup, "DATACHAT_INGEST_ARCHIVE_UPLOADS", &cfg.Ingest.ArchiveUploads) },
		func() error { return applyBool(lookup, "DATACHAT_QUERY_READ_ONLY", &cfg.Query.ReadOnly) },
		func() error { return applyInt(lookup, "DATACHAT_QUERY_PREVIEW_ROWS", &cfg.Query.PreviewRows) },
		func() error { return applyString(lookup, "DATACHAT_QUERY_EXPORT_BASE_NAME", &cfg.Query.ExportBaseName) },
		func() error { return applyString(lookup, "DATACHAT_AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyString(lookup, "DATACHAT_AI_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyString(lookup, "DATACHAT_AI_MODEL", &cfg.AI.Model) },
		func() error { return applyDuration(lookup, "DATACHAT_AI_TIMEOUT", &cfg.AI.Timeout) },
		func() error { return applyInt(lookup, "DATACHAT_AI_SUGGESTION_COUNT", &cfg.AI.SuggestionCount) },
		func() error { return applyBool(lookup, "DATACHAT_OBJECTSTORE_ENABLED", &cfg.ObjectStore.Enabled) },
		func() error { return applyString(lookup, "DATACHAT_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "DATACHAT_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "DATACHAT_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error { return applyString(lookup, "DATACHAT_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID) },
		func() error {
			return applyString(lookup, "DATACHAT_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
		},
		func() error { return applyBool(lookup, "DATACHAT_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "DATACHAT_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error {
			return applyBool(lookup, "DATACHAT_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},
		func() error { return applyString(lookup, "DATACHAT_DEMO_CATALOG", &cfg.Demo.CatalogPath) },
		func() error { return applyString(lookup, "DATACHAT_DEMO_FILES_DIR", &cfg.Demo.FilesDir) },
		func() error { return applyBool(lookup, "DATACHAT_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "DATACHAT_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyBool(lookup, "DATACHAT_AUTH_REQUIRED", &cfg.Auth.Required) },
		func() error { return applyString(lookup, "DATACHAT_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	cfg.Ingest.CollisionPolicy = strings.ToLower(cfg.Ingest.CollisionPolicy)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if c.HTTP.Address == "" {
		return fmt.Errorf("http address is required")
	}
	switch c.Database.Driver {
	case DriverDuckDB:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("DATACHAT_DB_DSN is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("invalid DATACHAT_DB_DRIVER: %q", c.Database.Driver)
	}
	switch c.Ingest.CollisionPolicy {
	case CollisionAppend, CollisionReplace, CollisionReject, CollisionSuffix:
	default:
		return fmt.Errorf("invalid DATACHAT_INGEST_COLLISION_POLICY: %q", c.Ingest.CollisionPolicy)
	}
	if c.Ingest.MaxConcurrentFiles <= 0 {
		return fmt.Errorf("DATACHAT_INGEST_MAX_CONCURRENT_FILES must be > 0")
	}
	if c.Query.PreviewRows <= 0 {
		return fmt.Errorf("DATACHAT_QUERY_PREVIEW_ROWS must be > 0")
	}
	if c.AI.SuggestionCount <= 0 {
		return fmt.Errorf("DATACHAT_AI_SUGGESTION_COUNT must be > 0")
	}
	if c.Ingest.ArchiveUploads && !c.ObjectStore.Enabled {
		return fmt.Errorf("DATACHAT_INGEST_ARCHIVE_UPLOADS requires DATACHAT_OBJECTSTORE_ENABLED")
	}
	return nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "datachat-api"},
		HTTP: HTTPConfig{
			Address:        ":8080",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   5 * time.Minute,
			IdleTimeout:    60 * time.Second,
			MaxUploadBytes: 256 << 20,
		},
		Database: DatabaseConfig{
			Driver:          DriverDuckDB,
			DSN:             "",
			MaxOpenConns:    8,
			MaxIdleConns:    8,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 0,
		},
		Ingest: IngestConfig{
			CollisionPolicy:    CollisionAppend,
			MaxConcurrentFiles: 4,
			ArchiveUploads:     false,
		},
		Query: QueryConfig{
			ReadOnly:       false,
			PreviewRows:    100,
			ExportBaseName: "datachat",
		},
		AI: AIConfig{
			BaseURL:         "https://api.openai.com",
			Model:           "gpt-4o-mini",
			Timeout:         2 * time.Minute,
			SuggestionCount: 5,
		},
		ObjectStore: ObjectStoreConfig{
			Enabled:          false,
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "datachat",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Demo: DemoConfig{
			CatalogPath: "",
			FilesDir:    ".",
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

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
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
