// Package config loads server configuration from flags, environment
// variables and an optional .env file.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Server  ServerConfig
	Data    DataConfig
	Auth    AuthConfig
	Storage StorageConfig
	Mail    MailConfig
	Share   ShareConfig
	Seed    SeedConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	LogLevel    string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string

	// PublicURL is the externally reachable API address, used in backup
	// download links. Defaults to http://localhost:{Port}.
	PublicURL string
}

// DataConfig holds the on-disk layout. Everything lives under BasePath.
type DataConfig struct {
	BasePath string
}

// DatabasePath is the SQLite file.
func (d DataConfig) DatabasePath() string { return filepath.Join(d.BasePath, "asylum.db") }

// SearchPath is the directory of the bleve index.
func (d DataConfig) SearchPath() string { return filepath.Join(d.BasePath, "search") }

// BackupPath is the directory holding backup archives.
func (d DataConfig) BackupPath() string { return filepath.Join(d.BasePath, "backups") }

// AuthConfig holds token configuration.
type AuthConfig struct {
	// KeyDir holds auth.key, the PASETO v4 local key. Defaults to Data.BasePath.
	KeyDir               string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// Storage backends.
const (
	StorageLocal = "local"
	StorageGCS   = "gcs"
)

// StorageConfig selects the object store for uploads and reports.
type StorageConfig struct {
	Backend        string
	LocalPath      string // defaults to {data}/objects
	GCSBucket      string
	GCSCredentials string // JSON document or file path
	PublicBaseURL  string
}

// Mail backends.
const (
	MailLog      = "log"
	MailSendGrid = "sendgrid"
)

// MailConfig selects how notification mail is sent.
type MailConfig struct {
	Backend   string
	APIKey    string
	FromEmail string
	FromName  string
	BaseURL   string
}

// ShareConfig holds the public site address used in emailed and shared links.
type ShareConfig struct {
	BaseURL string
}

// SeedConfig points at an optional reference-data override file.
type SeedConfig struct {
	File string
}

// LoadConfig loads configuration with precedence:
// 1. Command-line flags.
// 2. Environment variables.
// 3. .env file.
// 4. Defaults.
func LoadConfig() (*Config, error) {
	return Load(flag.CommandLine, os.Args[1:])
}

// Load parses args against fs and resolves the configuration.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for the database, index, backups and files")

	port := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 60s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	origins := fs.String("allowed-origins", "", "Comma separated CORS origins")
	apiURL := fs.String("public-url", "", "Externally reachable API URL")

	accessTokenDuration := fs.String("access-token-duration", "", "Access token lifetime (e.g., 15m)")
	refreshTokenDuration := fs.String("refresh-token-duration", "", "Refresh token lifetime (e.g., 720h)")

	storageBackend := fs.String("storage", "", "Object store backend (local, gcs)")
	gcsBucket := fs.String("gcs-bucket", "", "GCS bucket for uploads")
	publicURL := fs.String("storage-public-url", "", "Public base URL of stored objects")

	mailBackend := fs.String("mail", "", "Mail backend (log, sendgrid)")
	shareURL := fs.String("share-url", "", "Public site URL used in links")
	seedFile := fs.String("seed-file", "", "YAML file with extra languages and countries")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
			LogLevel:    getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*port, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue(*origins, "ALLOWED_ORIGINS", "*")),
			PublicURL:      strings.TrimRight(getConfigValue(*apiURL, "PUBLIC_URL", ""), "/"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Auth: AuthConfig{
			KeyDir: getConfigValue("", "AUTH_KEY_DIR", ""),
		},
		Storage: StorageConfig{
			Backend:        getConfigValue(*storageBackend, "STORAGE_BACKEND", StorageLocal),
			LocalPath:      getConfigValue("", "STORAGE_LOCAL_PATH", ""),
			GCSBucket:      getConfigValue(*gcsBucket, "GCS_BUCKET", ""),
			GCSCredentials: getConfigValue("", "GCS_CREDENTIALS", ""),
			PublicBaseURL:  getConfigValue(*publicURL, "STORAGE_PUBLIC_URL", ""),
		},
		Mail: MailConfig{
			Backend:   getConfigValue(*mailBackend, "MAIL_BACKEND", MailLog),
			APIKey:    getConfigValue("", "SENDGRID_API_KEY", ""),
			FromEmail: getConfigValue("", "MAIL_FROM_EMAIL", ""),
			FromName:  getConfigValue("", "MAIL_FROM_NAME", "Asylum Stories"),
			BaseURL:   getConfigValue("", "SENDGRID_BASE_URL", ""),
		},
		Share: ShareConfig{
			BaseURL: strings.TrimRight(getConfigValue(*shareURL, "SHARE_BASE_URL", "http://localhost:8080"), "/"),
		},
		Seed: SeedConfig{
			File: getConfigValue(*seedFile, "SEED_FILE", ""),
		},
	}

	durations := []struct {
		flag, env, def string
		dst            *time.Duration
	}{
		{*accessTokenDuration, "ACCESS_TOKEN_DURATION", "15m", &cfg.Auth.AccessTokenDuration},
		{*refreshTokenDuration, "REFRESH_TOKEN_DURATION", "720h", &cfg.Auth.RefreshTokenDuration},
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "60s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.env, d.def)
		v, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", strings.ToLower(d.env), raw, err)
		}
		*d.dst = v
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks enums and backend requirements.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	case "":
		return errors.New("ENV is required")
	default:
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	switch strings.ToLower(c.App.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.App.LogLevel)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	switch c.Storage.Backend {
	case StorageLocal:
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			return errors.New("gcs storage requires GCS_BUCKET")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be local or gcs)", c.Storage.Backend)
	}

	switch c.Mail.Backend {
	case MailLog:
	case MailSendGrid:
		if c.Mail.APIKey == "" {
			return errors.New("sendgrid mail requires SENDGRID_API_KEY")
		}
		if c.Mail.FromEmail == "" {
			return errors.New("sendgrid mail requires MAIL_FROM_EMAIL")
		}
	default:
		return fmt.Errorf("invalid mail backend: %s (must be log or sendgrid)", c.Mail.Backend)
	}

	if c.Auth.AccessTokenDuration <= 0 || c.Auth.RefreshTokenDuration <= 0 {
		return errors.New("token durations must be positive")
	}
	return nil
}

func (c *Config) expandPaths() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	if c.Data.BasePath, err = expandPath(c.Data.BasePath, filepath.Join(home, "AsylumStories", "data")); err != nil {
		return fmt.Errorf("invalid data path: %w", err)
	}
	if c.Auth.KeyDir, err = expandPath(c.Auth.KeyDir, c.Data.BasePath); err != nil {
		return fmt.Errorf("invalid auth key dir: %w", err)
	}
	if c.Storage.LocalPath, err = expandPath(c.Storage.LocalPath, filepath.Join(c.Data.BasePath, "objects")); err != nil {
		return fmt.Errorf("invalid storage path: %w", err)
	}
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = "http://localhost:" + c.Server.Port
	}
	if c.Storage.Backend == StorageLocal && c.Storage.PublicBaseURL == "" {
		c.Storage.PublicBaseURL = c.Server.PublicURL + "/files"
	}
	return nil
}

// expandPath expands ~ and makes the path absolute. An empty path yields
// defaultPath unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = abs
	}
	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// loadEnvFile loads KEY=value lines from path. Variables already set in the
// environment win.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- path comes from the operator
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}
