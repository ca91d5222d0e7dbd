package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Auth   AuthConfig   `yaml:"auth" mapstructure:"auth"`
	DB     DBConfig     `yaml:"db" mapstructure:"db"`
	LLM    LLMConfig    `yaml:"llm" mapstructure:"llm"`
	Worker WorkerConfig `yaml:"worker" mapstructure:"worker"`
	Minio  MinioConfig  `yaml:"minio" mapstructure:"minio"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	CORSOrigins    []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
}

// AuthConfig holds the admin login and the token signing secret.
type AuthConfig struct {
	SecretKey     string        `yaml:"secret_key" mapstructure:"secret_key"`
	TokenTTL      time.Duration `yaml:"token_ttl" mapstructure:"token_ttl"`
	AdminEmail    string        `yaml:"admin_email" mapstructure:"admin_email"`
	AdminPassword string        `yaml:"admin_password" mapstructure:"admin_password"`
}

// DBConfig selects the database. DSN, when set, wins over the discrete fields.
type DBConfig struct {
	Driver     string `yaml:"driver" mapstructure:"driver"`
	DSN        string `yaml:"dsn" mapstructure:"dsn"`
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	Host       string `yaml:"host" mapstructure:"host"`
	Port       int    `yaml:"port" mapstructure:"port"`
	User       string `yaml:"user" mapstructure:"user"`
	Password   string `yaml:"password" mapstructure:"password"`
	Name       string `yaml:"name" mapstructure:"name"`
	SSLMode    string `yaml:"sslmode" mapstructure:"sslmode"`
}

type LLMConfig struct {
	Provider  string        `yaml:"provider" mapstructure:"provider"`
	APIKey    string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	Model     string        `yaml:"model" mapstructure:"model"`
	MaxTokens int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	JSONMode  bool          `yaml:"json_mode" mapstructure:"json_mode"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// WorkerConfig configures the job workers and their retry policy.
type WorkerConfig struct {
	Count             int           `yaml:"count" mapstructure:"count"`
	PollInterval      time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout" mapstructure:"visibility_timeout"`
	MaxRetries        int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	RetryMaxDelay     time.Duration `yaml:"retry_max_delay" mapstructure:"retry_max_delay"`
}

type MinioConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string        `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey  string        `yaml:"access_key" mapstructure:"access_key"`
	SecretKey  string        `yaml:"secret_key" mapstructure:"secret_key"`
	Bucket     string        `yaml:"bucket" mapstructure:"bucket"`
	Region     string        `yaml:"region" mapstructure:"region"`
	UseSSL     bool          `yaml:"use_ssl" mapstructure:"use_ssl"`
	PresignTTL time.Duration `yaml:"presign_ttl" mapstructure:"presign_ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

var (
	drivers   = []string{"sqlite", "mysql", "postgres"}
	providers = []string{"cerebras", "openai", "anthropic", "gemini"}
)

// Load baca config: file (optional), lalu env BITO_*, lalu default.
// path kosong berarti cari ./config.yaml
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, eris.Wrapf(err, "config: open %s", path)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("BITO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.DB.Driver = strings.ToLower(cfg.DB.Driver)
	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 5.0)
	v.SetDefault("server.rate_limit_burst", 20)

	v.SetDefault("auth.secret_key", "")
	v.SetDefault("auth.token_ttl", 6*time.Hour)
	v.SetDefault("auth.admin_email", "admin@business.com")
	v.SetDefault("auth.admin_password", "")

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.sqlite_path", "bito.db")
	v.SetDefault("db.host", "127.0.0.1")
	v.SetDefault("db.port", 0)
	v.SetDefault("db.user", "bito")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "bito")
	v.SetDefault("db.sslmode", "disable")

	v.SetDefault("llm.provider", "cerebras")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.json_mode", false)
	v.SetDefault("llm.timeout", 2*time.Minute)

	v.SetDefault("worker.count", 2)
	v.SetDefault("worker.poll_interval", 2*time.Second)
	v.SetDefault("worker.visibility_timeout", 10*time.Minute)
	v.SetDefault("worker.max_retries", 3)
	v.SetDefault("worker.retry_delay", time.Minute)
	v.SetDefault("worker.retry_max_delay", time.Hour)

	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", "bito-reports")
	v.SetDefault("minio.region", "us-east-1")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.presign_ttl", 15*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks what the server cannot start without.
func (c *Config) Validate() error {
	if c.Auth.SecretKey == "" {
		return eris.New("config: auth.secret_key is required")
	}
	if !contains(drivers, c.DB.Driver) {
		return eris.Errorf("config: unknown db.driver %q (allowed: %s)", c.DB.Driver, strings.Join(drivers, ", "))
	}
	if !contains(providers, c.LLM.Provider) {
		return eris.Errorf("config: unknown llm.provider %q (allowed: %s)", c.LLM.Provider, strings.Join(providers, ", "))
	}
	if c.Worker.Count < 0 {
		return eris.New("config: worker.count must not be negative")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DB.DSN != "" {
		return c.DB.DSN
	}
	switch c.DB.Driver {
	case "mysql":
		return c.MySQLDSN()
	case "postgres":
		return c.PostgresDSN()
	default:
		return c.DB.SQLitePath
	}
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	port := c.DB.Port
	if port == 0 {
		port = 3306
	}
	mc := mysql.NewConfig()
	mc.User = c.DB.User
	mc.Passwd = c.DB.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", c.DB.Host, port)
	mc.DBName = c.DB.Name
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// Helper untuk build DSN Postgres (URL form, lib/pq)
func (c *Config) PostgresDSN() string {
	port := c.DB.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     fmt.Sprintf("%s:%d", c.DB.Host, port),
		Path:     "/" + c.DB.Name,
		RawQuery: url.Values{"sslmode": {c.DB.SSLMode}}.Encode(),
	}
	return u.String()
}

const masked = "****"

// Masked returns a copy with secrets hidden.
func (c Config) Masked() Config {
	hide := func(s *string) {
		if *s != "" {
			*s = masked
		}
	}
	hide(&c.Auth.SecretKey)
	hide(&c.Auth.AdminPassword)
	hide(&c.DB.Password)
	hide(&c.LLM.APIKey)
	hide(&c.Minio.SecretKey)
	if c.DB.DSN != "" {
		c.DB.DSN = masked
	}
	return c
}

// YAML renders the config with secrets masked.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c.Masked())
	if err != nil {
		return nil, eris.Wrap(err, "config: encode yaml")
	}
	return out, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
