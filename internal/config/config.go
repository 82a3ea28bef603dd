package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const productionEnv = "production"

// Config is the relay configuration, read from the environment.
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	LogFormat      string
	BridgeURL      string
	BridgePassword string
	GoogleAPIKey   string
	GeminiModel    string
	GeminiBaseURL  string
	GoogleSearch   bool
	PromptTimezone string
	HTTPTimeout    time.Duration
}

func LoadEnv() error {
	err := godotenv.Load(".env")
	if err != nil {
		log.Printf("could not load .env file: %v", err)
		return err
	}
	return nil
}

func GetEnvOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

// Load reads the configuration from the process environment. Every missing
// required key is reported in the returned error.
func Load() (*Config, error) {
	return load(true)
}

// LoadBridge is Load for commands that only talk to the bridge. The Gemini key
// and ENV are not required.
func LoadBridge() (*Config, error) {
	return load(false)
}

func load(full bool) (*Config, error) {
	cfg := &Config{
		Port:           GetEnvOrDefault("PORT", "8000"),
		Env:            strings.TrimSpace(os.Getenv("ENV")),
		LogLevel:       GetEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:      GetEnvOrDefault("LOG_FORMAT", "json"),
		BridgeURL:      strings.TrimRight(strings.TrimSpace(os.Getenv("BB_URL")), "/"),
		BridgePassword: os.Getenv("BB_PASSWORD"),
		GoogleAPIKey:   firstEnv("GOOGLE_AI_API_KEY", "GOOGLE_AI_PAID_API_KEY"),
		GeminiModel:    GetEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash-exp"),
		GeminiBaseURL:  strings.TrimRight(GetEnvOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"), "/"),
		PromptTimezone: GetEnvOrDefault("PROMPT_TIMEZONE", "America/New_York"),
	}

	var errs []error

	missing := []string{}
	required := []struct{ name, value string }{
		{"BB_URL", cfg.BridgeURL},
		{"BB_PASSWORD", cfg.BridgePassword},
	}
	if full {
		required = append(required,
			struct{ name, value string }{"GOOGLE_AI_API_KEY", cfg.GoogleAPIKey},
			struct{ name, value string }{"ENV", cfg.Env},
		)
	}
	for _, key := range required {
		if key.value == "" {
			missing = append(missing, key.name)
		}
	}
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", ")))
	}

	search, err := strconv.ParseBool(GetEnvOrDefault("GEMINI_GOOGLE_SEARCH", "true"))
	if err != nil {
		errs = append(errs, fmt.Errorf("GEMINI_GOOGLE_SEARCH: %w", err))
	}
	cfg.GoogleSearch = search

	timeout, err := time.ParseDuration(GetEnvOrDefault("HTTP_TIMEOUT", "30s"))
	if err != nil {
		errs = append(errs, fmt.Errorf("HTTP_TIMEOUT: %w", err))
	} else if timeout <= 0 {
		errs = append(errs, fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", timeout))
	}
	cfg.HTTPTimeout = timeout

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WritesEnabled reports whether the control commands may change the
// processing state. Only production deployments flip it.
func (c *Config) WritesEnabled() bool {
	return c.Env == productionEnv
}

// Location resolves the zone the system prompt timestamp is rendered in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.PromptTimezone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", c.PromptTimezone, err)
	}
	return loc, nil
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}
