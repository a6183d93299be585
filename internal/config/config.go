// Package config loads server settings from the environment.
//
// A .env file in the working directory is read first if present. Variables
// already set in the process environment win over the file.
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
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config holds everything cmd/server needs to assemble the app.
type Config struct {
	Port   int
	Store  string // sqlite or memory
	DBPath string

	// Auth. An empty JWTSecret disables the OAuth routes; API keys still work.
	JWTSecret          string
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
	// APIKeys maps a user id to the bcrypt hash of its key.
	APIKeys map[string]string

	// Redis event stream. Disabled when RedisAddr is empty.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisStream   string

	// Event retention. Zero keeps events forever.
	EventRetention time.Duration
	PruneSchedule  string

	EvaluatorWorkers int
	EvaluatorQueue   int

	SeedContent bool

	LogLevel  string
	LogFormat string
}

// Load reads a .env file (if any) and then the environment.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: loading env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment alone.
func FromEnv() (Config, error) {
	var err error
	cfg := Config{
		Store:              strings.ToLower(getenv("STORE", StoreSQLite)),
		DBPath:             getenv("DB_PATH", "data/cmdshift.db"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubCallbackURL:  os.Getenv("GITHUB_CALLBACK_URL"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisStream:        getenv("REDIS_STREAM", "cmdshift:events"),
		PruneSchedule:      getenv("EVENT_PRUNE_SCHEDULE", "@hourly"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		LogFormat:          getenv("LOG_FORMAT", "text"),
	}

	if cfg.Port, err = getint("PORT", 8080); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = getint("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.EvaluatorWorkers, err = getint("EVALUATOR_WORKERS", 4); err != nil {
		return Config{}, err
	}
	if cfg.EvaluatorQueue, err = getint("EVALUATOR_QUEUE", 256); err != nil {
		return Config{}, err
	}
	if cfg.EventRetention, err = getduration("EVENT_RETENTION", 30*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.SeedContent, err = getbool("SEED_CONTENT", true); err != nil {
		return Config{}, err
	}
	if cfg.APIKeys, err = parseAPIKeys(os.Getenv("API_KEYS")); err != nil {
		return Config{}, err
	}

	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c Config) Validate() error {
	switch c.Store {
	case StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("config: STORE must be %q or %q, got %q", StoreSQLite, StoreMemory, c.Store)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: PORT out of range: %d", c.Port)
	}
	if c.EvaluatorWorkers < 1 {
		return fmt.Errorf("config: EVALUATOR_WORKERS must be at least 1")
	}
	if c.EvaluatorQueue < 0 {
		return fmt.Errorf("config: EVALUATOR_QUEUE must not be negative")
	}
	if c.EventRetention < 0 {
		return fmt.Errorf("config: EVENT_RETENTION must not be negative")
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 16 {
		return fmt.Errorf("config: JWT_SECRET must be at least 16 characters")
	}
	return nil
}

// AuthEnabled reports whether JWT sessions and the GitHub routes are on.
func (c Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// parseAPIKeys reads "uid=hash,uid=hash". The uid may itself contain ':'
// (github:123) and bcrypt hashes never contain '='.
func parseAPIKeys(raw string) (map[string]string, error) {
	keys := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		uid, hash, ok := strings.Cut(entry, "=")
		if !ok || uid == "" || hash == "" {
			return nil, fmt.Errorf("config: API_KEYS entry %q must look like uid=bcrypt-hash", entry)
		}
		keys[uid] = hash
	}
	return keys, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid int for %s: %q", key, v)
	}
	return i, nil
}

func getbool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: invalid boolean for %s: %q", key, v)
	}
	return b, nil
}

func getduration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid duration for %s: %q", key, v)
	}
	return d, nil
}
