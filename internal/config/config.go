// Package config loads the service configuration from YAML with
// environment overrides. Secrets (app passwords, OAuth tokens) are meant
// to come from the environment, not the config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultAddress    = ":8070"
	defaultBundlesDir = "./data/bundles"
	defaultLedgerPath = "./data/ledger.jsonl"
	defaultSSLMode    = "disable"
	defaultRedisAddr  = "localhost:6379"
	defaultWorkers    = 4
	defaultQueueSize  = 256
	defaultJobTimeout = 10 * time.Minute
	defaultCORSOrigin = "http://localhost:3000"
	defaultDBPort     = "5432"
)

// Config is the full service configuration.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Worker    WorkerConfig    `yaml:"worker"`
	WordPress WordPressConfig `yaml:"wordpress"`
	Blogger   BloggerConfig   `yaml:"blogger"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Address     string   `yaml:"address"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// StorageConfig locates the bundle store and execution ledger on disk.
type StorageConfig struct {
	BundlesDir string `yaml:"bundles_dir"`
	LedgerPath string `yaml:"ledger_path"`
}

// DatabaseConfig holds PostgreSQL settings. When disabled, jobs are kept
// in memory and lost on restart.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig holds Redis settings for the metrics tracker.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// WorkerConfig tunes the dispatch worker pool.
type WorkerConfig struct {
	QueueSize  int           `yaml:"queue_size"`
	Workers    int           `yaml:"workers"`
	JobTimeout time.Duration `yaml:"job_timeout"`
}

// WordPressConfig holds per-site WordPress adapter settings.
type WordPressConfig struct {
	Enabled           bool   `yaml:"enabled"`
	BaseURL           string `yaml:"base_url"`
	Username          string `yaml:"username"`
	AppPassword       string `yaml:"app_password"`
	SiteTimezone      string `yaml:"site_timezone"`
	DisambiguateSlugs bool   `yaml:"disambiguate_slugs"`
}

// BloggerConfig holds Blogger adapter OAuth settings.
type BloggerConfig struct {
	Enabled      bool   `yaml:"enabled"`
	BlogID       string `yaml:"blog_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
}

// Load reads and validates the configuration. A .env file next to the
// process is folded into the environment first, matching local dev setups.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)
	overrideWithEnvVars(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = defaultAddress
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{defaultCORSOrigin}
	}
	if cfg.Storage.BundlesDir == "" {
		cfg.Storage.BundlesDir = defaultBundlesDir
	}
	if cfg.Storage.LedgerPath == "" {
		cfg.Storage.LedgerPath = defaultLedgerPath
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = defaultDBPort
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = defaultSSLMode
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = defaultRedisAddr
	}
	if cfg.Worker.QueueSize == 0 {
		cfg.Worker.QueueSize = defaultQueueSize
	}
	if cfg.Worker.Workers == 0 {
		cfg.Worker.Workers = defaultWorkers
	}
	if cfg.Worker.JobTimeout == 0 {
		cfg.Worker.JobTimeout = defaultJobTimeout
	}
}

func overrideWithEnvVars(cfg *Config) {
	if v := os.Getenv("APP_DEBUG"); v != "" {
		cfg.Debug = parseBool(v)
	}
	if v := os.Getenv("PUBLISHER_PORT"); v != "" {
		cfg.Server.Address = ":" + v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("WORDPRESS_APP_PASSWORD"); v != "" {
		cfg.WordPress.AppPassword = v
	}
	if v := os.Getenv("BLOGGER_CLIENT_SECRET"); v != "" {
		cfg.Blogger.ClientSecret = v
	}
	if v := os.Getenv("BLOGGER_REFRESH_TOKEN"); v != "" {
		cfg.Blogger.RefreshToken = v
	}
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	if !c.WordPress.Enabled && !c.Blogger.Enabled {
		return errors.New("at least one platform must be enabled")
	}
	if c.WordPress.Enabled {
		if c.WordPress.BaseURL == "" {
			return errors.New("wordpress.base_url is required when wordpress is enabled")
		}
		if c.WordPress.Username == "" || c.WordPress.AppPassword == "" {
			return errors.New("wordpress credentials are required when wordpress is enabled")
		}
	}
	if c.Blogger.Enabled {
		if c.Blogger.BlogID == "" {
			return errors.New("blogger.blog_id is required when blogger is enabled")
		}
		if c.Blogger.ClientID == "" || c.Blogger.ClientSecret == "" || c.Blogger.RefreshToken == "" {
			return errors.New("blogger oauth credentials are required when blogger is enabled")
		}
	}
	if c.Database.Enabled {
		if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
			return errors.New("database host, user, and dbname are required when database is enabled")
		}
	}
	return nil
}

// parseBool accepts the common truthy spellings.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}
