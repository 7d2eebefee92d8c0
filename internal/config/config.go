package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/dataguardian/internal/domain/fairness"
	"github.com/bryanwahyu/dataguardian/internal/logging"
)

type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"readTimeout"`
		WriteTimeout    time.Duration `yaml:"writeTimeout"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
		AllowedOrigins  []string      `yaml:"allowedOrigins"`
	} `yaml:"server"`

	Auth struct {
		// tenant -> api key; empty disables auth
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"auth"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres | "" (no persistence)
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
		Migrate  bool   `yaml:"migrate"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Storage struct {
		LocalDir string `yaml:"localDir"`
	} `yaml:"storage"`

	OpenAI struct {
		APIKey string `yaml:"apiKey"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`

	Scanner struct {
		CloneTimeout time.Duration `yaml:"cloneTimeout"`
		MaxFileBytes int64         `yaml:"maxFileBytes"`
		ExcludeDirs  []string      `yaml:"excludeDirs"`
		PatternPack  string        `yaml:"patternPack"`
		WorkDir      string        `yaml:"workDir"`
	} `yaml:"scanner"`

	Fairness struct {
		Weights fairness.HeuristicWeights `yaml:"weights"`
	} `yaml:"fairness"`

	Logging logging.Config `yaml:"logging"`

	RateLimit struct {
		RequestsPerSecond float64 `yaml:"requestsPerSecond"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rateLimit"`
}

// Defaults returns a config usable without a file: no database, local report storage.
func Defaults() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 5 * time.Minute
	c.Server.ShutdownTimeout = 30 * time.Second
	c.Server.AllowedOrigins = []string{"*"}
	c.Database.SSLMode = "disable"
	c.Minio.Region = "us-east-1"
	c.Storage.LocalDir = "reports"
	c.OpenAI.Model = "gpt-4o-mini"
	c.Scanner.CloneTimeout = 2 * time.Minute
	c.Scanner.MaxFileBytes = 2 << 20
	c.Scanner.ExcludeDirs = []string{".git", "node_modules", "vendor", ".terraform"}
	c.Fairness.Weights = fairness.DefaultWeights()
	c.Logging.Level = "info"
	c.RateLimit.RequestsPerSecond = 5
	c.RateLimit.Burst = 20
	return &c
}

// Load baca file config.yaml di atas Defaults
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault falls back to Defaults when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	return Load(path)
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Database.Driver {
	case "":
	case "mysql", "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			errs = append(errs, fmt.Errorf("database.host and database.name are required for %s", c.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: want mysql or postgres", c.Database.Driver))
	}
	if c.Minio.Endpoint != "" && c.Minio.BucketName == "" {
		errs = append(errs, errors.New("minio.bucketName is required when minio.endpoint is set"))
	}
	if c.Minio.Endpoint == "" && strings.TrimSpace(c.Storage.LocalDir) == "" {
		errs = append(errs, errors.New("either minio.endpoint or storage.localDir must be set"))
	}
	if c.Scanner.CloneTimeout <= 0 {
		errs = append(errs, errors.New("scanner.cloneTimeout must be positive"))
	}
	if c.Scanner.MaxFileBytes < 0 {
		errs = append(errs, errors.New("scanner.maxFileBytes must not be negative"))
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("rateLimit.requestsPerSecond must be positive"))
	}
	if c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("rateLimit.burst must be positive"))
	}
	for tenant, key := range c.Auth.APIKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Errorf("auth.apiKeys.%s is empty", tenant))
		}
	}
	return errors.Join(errs...)
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection URL.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	return u.String()
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.Database.Driver == "postgres" {
		return c.PostgresDSN()
	}
	return c.MySQLDSN()
}
