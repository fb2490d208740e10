package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds the record store connection settings.
// Driver selects between PostgreSQL and an embedded SQLite file.
type DatabaseConfig struct {
	Driver             string `validate:"oneof=postgres sqlite"`
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	SQLitePath         string
	MaxOpenConns       int `validate:"gte=0"`
	MaxIdleConns       int `validate:"gte=0"`
	ConnMaxLifetimeSec int `validate:"gte=0"`
}

// StorageConfig selects the document content backend.
type StorageConfig struct {
	Backend    string `validate:"oneof=local minio"`
	UploadRoot string
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// AuthConfig holds both credential sources: locally issued session tokens
// and tokens minted by an external identity provider.
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
	JWTTTL    time.Duration `validate:"gt=0"`

	ProviderIssuer   string
	ProviderAudience string
	ProviderCertsURL string `validate:"omitempty,url"`
	// ProviderKeys holds PEM public keys or certificates keyed by kid.
	ProviderKeys map[string]string
	KeyCacheTTL  time.Duration `validate:"gt=0"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Dev       bool
	SentryDSN string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost        string
	Port           string `validate:"required,numeric"`
	MaxUploadMB    int    `validate:"gt=0"`
	AllowedOrigins []string
	Database       DatabaseConfig
	Storage        StorageConfig
	MinIO          MinIOConfig
	Auth           AuthConfig
	Log            LogConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:        getEnv("APP_HOST", "localhost:8080"),
		Port:           getEnv("PORT", "8080"),
		MaxUploadMB:    getEnvInt("MAX_UPLOAD_MB", 16),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		Database: DatabaseConfig{
			Driver:             getEnv("DB_DRIVER", "postgres"),
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			SQLitePath:         getEnv("DB_SQLITE_PATH", "tax_services.db"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		Storage: StorageConfig{
			Backend:    getEnv("STORAGE_BACKEND", "local"),
			UploadRoot: getEnv("UPLOAD_ROOT", "uploads"),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Auth: AuthConfig{
			JWTSecret:        getEnv("JWT_SECRET_KEY", ""),
			JWTIssuer:        getEnv("JWT_ISSUER", ""),
			JWTTTL:           getEnvDuration("JWT_ACCESS_TOKEN_TTL", time.Hour),
			ProviderIssuer:   getEnv("IDP_ISSUER", ""),
			ProviderAudience: getEnv("IDP_AUDIENCE", ""),
			ProviderCertsURL: getEnv("IDP_CERTS_URL", ""),
			ProviderKeys:     getEnvKeys("IDP_PUBLIC_KEY_"),
			KeyCacheTTL:      getEnvDuration("IDP_KEY_CACHE_TTL", time.Hour),
		},
		Log: LogConfig{
			Dev:       getEnvBool("APP_DEV", false),
			SentryDSN: getEnv("SENTRY_DSN", ""),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// getEnvKeys collects every PREFIX<KID>=<PEM> variable into a kid -> PEM map.
// Literal "\n" sequences are expanded so keys can live on a single env line.
func getEnvKeys(prefix string) map[string]string {
	keys := map[string]string{}
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) || value == "" {
			continue
		}
		kid := strings.ToLower(strings.TrimPrefix(name, prefix))
		if kid == "" {
			continue
		}
		keys[kid] = strings.ReplaceAll(value, `\n`, "\n")
	}
	return keys
}
