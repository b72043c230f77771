package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type (
	// Config holds every environment-driven setting of the gateway.
	Config struct {
		Port        int
		APIVersion  string
		Environment string

		SocketCORSOrigin string
		CORSOrigins      []string
		SocketBufferSize int

		RateLimitWindow time.Duration
		RateLimitMax    int

		Storage Storage
		Auth    Auth

		UploadsDir string
	}

	// Storage selects and locates the document datastore.
	Storage struct {
		Type             string
		MongoURI         string
		MongoDatabase    string
		DataSourceName   string
		LocalStoragePath string
		S3BucketName     string
	}

	// Auth configures token issuance and the optional OAuth providers.
	Auth struct {
		JWTSecret   string
		TokenTTL    time.Duration
		StaffLogins []string

		GitHubClientID     string
		GitHubClientSecret string
		GitHubRedirectURL  string

		OIDCIssuerURL    string
		OIDCClientID     string
		OIDCClientSecret string
		OIDCRedirectURL  string
	}
)

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	cfg := &Config{
		APIVersion:       getenv("API_VERSION", "v1"),
		Environment:      getenv("NODE_ENV", "development"),
		SocketCORSOrigin: getenv("SOCKET_CORS_ORIGIN", "http://localhost:3000"),
		UploadsDir:       getenv("UPLOADS_DIR", "./uploads"),
		Storage: Storage{
			Type:             strings.ToLower(os.Getenv("STORAGE_TYPE")),
			MongoURI:         os.Getenv("MONGO_URI"),
			MongoDatabase:    getenv("MONGO_DATABASE", "vehicle_service"),
			DataSourceName:   getenv("DATA_SOURCE_NAME", "dispatch.db"),
			LocalStoragePath: getenv("LOCAL_STORAGE_PATH", "./data"),
			S3BucketName:     os.Getenv("S3_BUCKET_NAME"),
		},
		Auth: Auth{
			JWTSecret:          os.Getenv("JWT_SECRET"),
			StaffLogins:        splitList(os.Getenv("STAFF_LOGINS")),
			GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
			GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
			GitHubRedirectURL:  os.Getenv("GITHUB_REDIRECT_URL"),
			OIDCIssuerURL:      os.Getenv("OIDC_ISSUER_URL"),
			OIDCClientID:       os.Getenv("OIDC_CLIENT_ID"),
			OIDCClientSecret:   os.Getenv("OIDC_CLIENT_SECRET"),
			OIDCRedirectURL:    os.Getenv("OIDC_REDIRECT_URL"),
		},
	}

	var err error
	if cfg.Port, err = intEnv("PORT", 3001); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax, err = intEnv("RATE_LIMIT_MAX_REQUESTS", 100); err != nil {
		return nil, err
	}
	windowMs, err := intEnv("RATE_LIMIT_WINDOW_MS", 900000)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitWindow = time.Duration(windowMs) * time.Millisecond
	if cfg.SocketBufferSize, err = intEnv("SOCKET_BUFFER_SIZE", 64); err != nil {
		return nil, err
	}
	if cfg.Auth.TokenTTL, err = time.ParseDuration(getenv("JWT_TTL", "168h")); err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}

	cfg.CORSOrigins = splitList(os.Getenv("CORS_ORIGINS"))
	if len(cfg.CORSOrigins) == 0 && cfg.SocketCORSOrigin != "" {
		cfg.CORSOrigins = []string{cfg.SocketCORSOrigin}
	}

	if cfg.Storage.Type == "" {
		if cfg.Storage.MongoURI != "" {
			cfg.Storage.Type = "mongo"
		} else {
			cfg.Storage.Type = "memory"
		}
	}

	if cfg.APIVersion = strings.Trim(cfg.APIVersion, "/"); cfg.APIVersion == "" {
		return nil, fmt.Errorf("API_VERSION must not be empty")
	}
	if cfg.RateLimitWindow <= 0 || cfg.RateLimitMax <= 0 {
		return nil, fmt.Errorf("rate limit window and max must be positive")
	}
	if cfg.SocketBufferSize <= 0 {
		return nil, fmt.Errorf("SOCKET_BUFFER_SIZE must be positive")
	}

	return cfg, nil
}

// IsProduction reports whether NODE_ENV selects production behaviour.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Addr is the listen address derived from Port.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// APIPrefix is the mount point of every versioned resource router.
func (c *Config) APIPrefix() string {
	return "/api/" + c.APIVersion
}

func getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
