package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type GoogleConfig struct {
	ClientID         string `yaml:"client_id"`
	ClientSecret     string `yaml:"client_secret"`
	RedirectURL      string `yaml:"redirect_url"`
	AuthURL          string `yaml:"auth_url"`
	TokenURL         string `yaml:"token_url"`
	RevokeURL        string `yaml:"revoke_url"`
	CalendarEndpoint string `yaml:"calendar_endpoint"`
}

type StoreConfig struct {
	Driver          string `yaml:"driver"` // "firestore" or "sqlite"
	CredentialsFile string `yaml:"credentials_file"`
	ProjectID       string `yaml:"project_id"`
	SQLitePath      string `yaml:"sqlite_path"`
}

type SyncConfig struct {
	ExportEnabled   bool          `yaml:"export_enabled"`
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	PulseInterval   time.Duration `yaml:"pulse_interval"`
	BatchSize       int           `yaml:"batch_size"`
	DefaultTimezone string        `yaml:"default_timezone"`
}

type Config struct {
	Port             string       `yaml:"port"`
	JWTSecret        string       `yaml:"jwt_secret"`
	LogLevel         string       `yaml:"log_level"`
	CORSAllowOrigins []string     `yaml:"cors_allow_origins"`
	Store            StoreConfig  `yaml:"store"`
	Google           GoogleConfig `yaml:"google"`
	Sync             SyncConfig   `yaml:"sync"`
}

func defaults() Config {
	return Config{
		Port:     "8080",
		LogLevel: "info",
		Store: StoreConfig{
			Driver:     "firestore",
			SQLitePath: "mydayplanner.db",
		},
		Google: GoogleConfig{
			AuthURL:   "https://accounts.google.com/o/oauth2/auth",
			TokenURL:  "https://oauth2.googleapis.com/token",
			RevokeURL: "https://oauth2.googleapis.com/revoke",
		},
		Sync: SyncConfig{
			ExportEnabled:   true,
			ProviderTimeout: 10 * time.Second,
			PulseInterval:   5 * time.Minute,
			BatchSize:       50,
			DefaultTimezone: "Asia/Bangkok",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by CONFIG_FILE,
// then .env and process environment variables.
func Load() (*Config, error) {
	// .env is optional outside local development
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadYAMLFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := overrideFromEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}
	return nil
}

func overrideFromEnv(cfg *Config) error {
	setString(&cfg.Port, "PORT")
	setString(&cfg.JWTSecret, "JWT_SECRET_KEY")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	if v := os.Getenv("CORS_ALLOW_ORIGINS"); v != "" {
		cfg.CORSAllowOrigins = splitList(v)
	}

	setString(&cfg.Store.Driver, "STORE_DRIVER")
	setString(&cfg.Store.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS_1")
	setString(&cfg.Store.ProjectID, "FIREBASE_PROJECT_ID")
	setString(&cfg.Store.SQLitePath, "SQLITE_PATH")

	setString(&cfg.Google.ClientID, "GOOGLE_CLIENT_ID")
	setString(&cfg.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&cfg.Google.RedirectURL, "GOOGLE_REDIRECT_URL")
	setString(&cfg.Google.AuthURL, "GOOGLE_AUTH_URL")
	setString(&cfg.Google.TokenURL, "GOOGLE_TOKEN_URL")
	setString(&cfg.Google.RevokeURL, "GOOGLE_REVOKE_URL")
	setString(&cfg.Google.CalendarEndpoint, "GOOGLE_CALENDAR_ENDPOINT")

	setString(&cfg.Sync.DefaultTimezone, "DEFAULT_TIMEZONE")
	if v := os.Getenv("EXPORT_SYNC_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("EXPORT_SYNC_ENABLED: %w", err)
		}
		cfg.Sync.ExportEnabled = b
	}
	if err := setDuration(&cfg.Sync.ProviderTimeout, "PROVIDER_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Sync.PulseInterval, "SYNC_PULSE_INTERVAL"); err != nil {
		return err
	}
	if v := os.Getenv("SYNC_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SYNC_BATCH_SIZE: %w", err)
		}
		cfg.Sync.BatchSize = n
	}
	return nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	switch c.Store.Driver {
	case "firestore":
		if c.Store.CredentialsFile == "" {
			return fmt.Errorf("GOOGLE_APPLICATION_CREDENTIALS_1 is required for the firestore store")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	if c.Sync.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("SYNC_BATCH_SIZE must be positive")
	}
	if _, err := time.LoadLocation(c.Sync.DefaultTimezone); err != nil {
		return fmt.Errorf("DEFAULT_TIMEZONE: %w", err)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
