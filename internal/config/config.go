package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

// RemindersConfig drives the engine and its scheduler. The window
// boundaries are durations before the scheduled time.
type RemindersConfig struct {
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	FirstWindowStart   time.Duration `mapstructure:"first_window_start"`
	FirstWindowEnd     time.Duration `mapstructure:"first_window_end"`
	SecondWindowStart  time.Duration `mapstructure:"second_window_start"`
	SecondWindowEnd    time.Duration `mapstructure:"second_window_end"`
	MaxConcurrentSends int           `mapstructure:"max_concurrent_sends"`
}

type WhatsappConfig struct {
	GatewayURL   string        `mapstructure:"gateway_url"`
	Token        string        `mapstructure:"token"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type SMTPConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Reminders RemindersConfig `mapstructure:"reminders"`
	Whatsapp  WhatsappConfig  `mapstructure:"whatsapp"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// overrides are secrets taken from the environment so they never need to
// live in the config file.
type overrides struct {
	DatabasePassword string `envconfig:"DB_PASSWORD"`
	RedisURL         string `envconfig:"REDIS_URL"`
	JWTSecret        string `envconfig:"JWT_SECRET"`
	GatewayToken     string `envconfig:"WHATSAPP_TOKEN"`
	SMTPPassword     string `envconfig:"SMTP_PASSWORD"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var env overrides
	if err := envconfig.Process("dentalert", &env); err != nil {
		return nil, fmt.Errorf("failed to process env overrides: %w", err)
	}
	if env.DatabasePassword != "" {
		config.Database.Password = env.DatabasePassword
	}
	if env.RedisURL != "" {
		config.Redis.URL = env.RedisURL
	}
	if env.JWTSecret != "" {
		config.JWT.Secret = env.JWTSecret
	}
	if env.GatewayToken != "" {
		config.Whatsapp.Token = env.GatewayToken
	}
	if env.SMTPPassword != "" {
		config.SMTP.Password = env.SMTPPassword
	}

	applyDefaults(&config)
	return &config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Reminders.PollInterval <= 0 {
		cfg.Reminders.PollInterval = 30 * time.Minute
	}
	if cfg.Reminders.FirstWindowStart <= 0 {
		cfg.Reminders.FirstWindowStart = 24 * time.Hour
	}
	if cfg.Reminders.FirstWindowEnd <= 0 {
		cfg.Reminders.FirstWindowEnd = 23 * time.Hour
	}
	if cfg.Reminders.SecondWindowStart <= 0 {
		cfg.Reminders.SecondWindowStart = 2 * time.Hour
	}
	if cfg.Reminders.SecondWindowEnd <= 0 {
		cfg.Reminders.SecondWindowEnd = time.Hour
	}
	if cfg.Reminders.MaxConcurrentSends <= 0 {
		cfg.Reminders.MaxConcurrentSends = 8
	}
}
