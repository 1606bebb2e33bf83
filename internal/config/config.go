package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/DoyleJ11/lot-auction-backend/internal/engine"
)

type Config struct {
	Port           string
	AdminSecret    string
	LogLevel       string
	DatabaseURL    string
	NATSURL        string
	PublicBaseURL  string
	TickInterval   time.Duration
	AllowedOrigins []string
	Settings       engine.Settings
}

var ErrInvalidTickInterval = errors.New("TICK_INTERVAL_MS must be between 1 and 250")

// Load reads .env (if present) and the environment. A ROOM_SETTINGS_FILE overrides
// individual room defaults; keys it leaves out keep their default.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	port := getEnv("PORT", "8080")
	cfg := Config{
		Port:           port,
		AdminSecret:    os.Getenv("ADMIN_SECRET"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		NATSURL:        os.Getenv("NATS_URL"),
		PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
		Settings:       engine.DefaultSettings(),
	}

	tickMs, err := getEnvAsInt("TICK_INTERVAL_MS", 200)
	if err != nil {
		return Config{}, err
	}
	if tickMs < 1 || tickMs > 250 {
		return Config{}, ErrInvalidTickInterval
	}
	cfg.TickInterval = time.Duration(tickMs) * time.Millisecond

	if path := os.Getenv("ROOM_SETTINGS_FILE"); path != "" {
		st, err := LoadSettings(path, cfg.Settings)
		if err != nil {
			return Config{}, err
		}
		cfg.Settings = st
	}
	if err := cfg.Settings.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadSettings overlays the YAML file at path onto base.
func LoadSettings(path string, base engine.Settings) (engine.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.Settings{}, fmt.Errorf("failed to read room settings: %w", err)
	}
	st := base
	if err := yaml.Unmarshal(data, &st); err != nil {
		return engine.Settings{}, fmt.Errorf("failed to parse room settings: %w", err)
	}
	return st, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
