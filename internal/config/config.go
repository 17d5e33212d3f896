package config

import (
	"fmt"
	"os"

	"github.com/actuallyakshat/chrona/internal/apperrors"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Redis          RedisConfig          `yaml:"redis"`
	AWS            AWSConfig            `yaml:"aws"`
	JWT            JWTConfig            `yaml:"jwt"`
	Webhook        WebhookConfig        `yaml:"webhook"`
	Delivery       DeliveryConfig       `yaml:"delivery"`
	Chronicle      ChronicleConfig      `yaml:"chronicle"`
	Recommendation RecommendationConfig `yaml:"recommendation"`
	Log            LogConfig            `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig holds redis configuration
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AWSConfig holds S3 configuration for profile image uploads
type AWSConfig struct {
	Region    string `yaml:"region"`
	S3Bucket  string `yaml:"s3_bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// WebhookConfig holds the identity provider webhook signing secret
// (base64-encoded, svix format).
type WebhookConfig struct {
	Secret string `yaml:"secret"`
}

// DeliveryConfig holds the chronicle delay model parameters
type DeliveryConfig struct {
	SpeedKmh float64 `yaml:"speed_kmh"`
	MinHours float64 `yaml:"min_hours"`
}

// ChronicleConfig holds chronicle validation rules
type ChronicleConfig struct {
	MinWords int `yaml:"min_words"`
}

// RecommendationConfig holds recommendation engine settings.
// Exclusion is "cumulative" (a user shown once is excluded forever) or
// "daily" (exclusion resets at each day boundary).
type RecommendationConfig struct {
	Exclusion string `yaml:"exclusion"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file, applies environment overrides
// for secrets, and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if v := os.Getenv("CHRONA_JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}
	if v := os.Getenv("CHRONA_WEBHOOK_SECRET"); v != "" {
		cfg.Webhook.Secret = v
	}
	if v := os.Getenv("CHRONA_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("CHRONA_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}

	cfg.applyDefaults()

	if cfg.Webhook.Secret == "" {
		return nil, apperrors.Configuration("webhook signing secret is not set")
	}
	if cfg.JWT.Secret == "" {
		return nil, apperrors.Configuration("jwt secret is not set")
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Delivery.SpeedKmh <= 0 {
		c.Delivery.SpeedKmh = 70
	}
	if c.Delivery.MinHours <= 0 {
		c.Delivery.MinHours = 2
	}
	if c.Chronicle.MinWords <= 0 {
		c.Chronicle.MinWords = 50
	}
	if c.Recommendation.Exclusion == "" {
		c.Recommendation.Exclusion = "cumulative"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
