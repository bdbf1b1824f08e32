package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "parkledger/backend/libs/config"
	"parkledger/backend/libs/db"
)

// Config defines parking service configuration. Every key can be set from the YAML
// file named by CONFIG_FILE or from PARKING_* environment variables; untagged leaves
// take their section prefix (PARKING_DB_DSN, PARKING_REDIS_ADDR).
type Config struct {
	HTTP     HTTPConfig     `yaml:"http" env:"PARKING_HTTP"`
	Database DatabaseConfig `yaml:"database" env:"PARKING_DB"`
	Redis    RedisConfig    `yaml:"redis" env:"PARKING_REDIS"`
	Rabbit   RabbitConfig   `yaml:"rabbit" env:"PARKING_RABBIT"`
	OCR      OCRConfig      `yaml:"ocr" env:"PARKING_OCR"`
	Tariff   TariffConfig   `yaml:"tariff" env:"PARKING_TARIFF"`
	Auth     AuthConfig     `yaml:"auth" env:"PARKING_AUTH"`
	Board    BoardConfig    `yaml:"board" env:"PARKING_BOARD"`
	Currency string         `yaml:"currency" env:"PARKING_CURRENCY"`
}

type HTTPConfig struct {
	Port string `yaml:"port"`
}

// DatabaseConfig selects the record store. Timezone is the wall clock entry and
// exit times are written in.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Timezone string `yaml:"timezone"`
}

// RedisConfig enables the shared presence cache when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// RabbitConfig enables receipt events when DSN is set.
type RabbitConfig struct {
	DSN      string `yaml:"dsn"`
	Exchange string `yaml:"exchange"`
}

// OCRConfig enables photo input when URL is set.
type OCRConfig struct {
	URL           string        `yaml:"url"`
	MinConfidence float64       `yaml:"minConfidence" env:"PARKING_OCR_MIN_CONFIDENCE"`
	Timeout       time.Duration `yaml:"timeout"`
}

type TariffConfig struct {
	BaseAmount    int64 `yaml:"baseAmount" env:"PARKING_TARIFF_BASE_AMOUNT"`
	IncludedHours int64 `yaml:"includedHours" env:"PARKING_TARIFF_INCLUDED_HOURS"`
	HourlyRate    int64 `yaml:"hourlyRate" env:"PARKING_TARIFF_HOURLY_RATE"`
}

// AuthConfig protects /parking endpoints when JWTSecret is set.
type AuthConfig struct {
	JWTSecret            string        `yaml:"jwtSecret" env:"PARKING_JWT_SECRET"`
	ExpiresIn            time.Duration `yaml:"expiresIn" env:"PARKING_AUTH_EXPIRES_IN"`
	OperatorUsername     string        `yaml:"operatorUsername" env:"PARKING_OPERATOR_USERNAME"`
	OperatorPasswordHash string        `yaml:"operatorPasswordHash" env:"PARKING_OPERATOR_PASSWORD_HASH"`
}

type BoardConfig struct {
	Interval     time.Duration `yaml:"interval"`
	WriteTimeout time.Duration `yaml:"writeTimeout" env:"PARKING_BOARD_WRITE_TIMEOUT"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{Port: "8080"},
		Database: DatabaseConfig{
			Driver: db.DriverSQLite,
			DSN:    "parking.db",
		},
		Rabbit: RabbitConfig{Exchange: "parking_topic"},
		OCR: OCRConfig{
			MinConfidence: 0,
			Timeout:       10 * time.Second,
		},
		Tariff: TariffConfig{
			BaseAmount:    40,
			IncludedHours: 3,
			HourlyRate:    10,
		},
		Auth: AuthConfig{ExpiresIn: 12 * time.Hour},
		Board: BoardConfig{
			Interval:     time.Minute,
			WriteTimeout: 10 * time.Second,
		},
		Currency: "₹",
	}
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case db.DriverSQLite, db.DriverPostgres:
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database dsn required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Tariff.BaseAmount < 0 || c.Tariff.IncludedHours < 0 || c.Tariff.HourlyRate < 0 {
		return errors.New("config: tariff values must not be negative")
	}
	if c.Auth.JWTSecret != "" && (c.Auth.OperatorUsername == "" || c.Auth.OperatorPasswordHash == "") {
		return errors.New("config: operator credentials required when jwt secret is set")
	}
	return nil
}

// Location returns the time zone for stored timestamps. Empty means local time.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Database.Timezone)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", name, err)
	}
	return loc, nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// AuthEnabled reports whether /parking endpoints need a bearer token.
func (c *Config) AuthEnabled() bool {
	return c.Auth.JWTSecret != ""
}
