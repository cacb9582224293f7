package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

type Config struct {
	Port           string
	PublicURL      string
	StoreDriver    string
	DB             DBConfig
	PollInterval   time.Duration
	OffsetInterval time.Duration
	RunMigrations  bool
	Debug          bool
}

type DBConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// DSN prefers DATABASE_URL and otherwise assembles one from the DB_* parts.
func (d DBConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] ignoring .env: %v", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*Config, error) {
	pollMs, err := getInt("POLL_INTERVAL_MS", 500)
	if err != nil {
		return nil, err
	}
	offsetMs, err := getInt("OFFSET_INTERVAL_MS", 30000)
	if err != nil {
		return nil, err
	}
	migrations, err := getBool("RUN_MIGRATIONS", true)
	if err != nil {
		return nil, err
	}
	debug, err := getBool("DEBUG", false)
	if err != nil {
		return nil, err
	}

	port := getEnv("PORT", "8080")
	cfg := &Config{
		Port:        port,
		PublicURL:   strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:"+port), "/"),
		StoreDriver: getEnv("STORE_DRIVER", DriverMemory),
		DB: DBConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "spyroom"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "spyroom"),
		},
		PollInterval:   time.Duration(pollMs) * time.Millisecond,
		OffsetInterval: time.Duration(offsetMs) * time.Millisecond,
		RunMigrations:  migrations,
		Debug:          debug,
	}

	switch cfg.StoreDriver {
	case DriverMemory, DriverPostgres:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q: want %q or %q", cfg.StoreDriver, DriverMemory, DriverPostgres)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}
	if cfg.OffsetInterval <= 0 {
		return nil, fmt.Errorf("OFFSET_INTERVAL_MS must be positive")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
