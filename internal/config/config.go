// Package config provides configuration for orderdesk.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultOrderSenders are the order platforms whose mail is processed when
// no sender is configured.
var DefaultOrderSenders = []string{
	"shawarmamoose898@gmail.com",
	"lariosqueen839@gmail.com",
	"shawarmawest746@gmail.com",
}

// Config holds the orderdesk configuration.
type Config struct {
	// Server settings
	HTTPPort     int    `yaml:"http_port"`
	APIJWTSecret string `yaml:"api_jwt_secret"`

	// Database
	DatabaseURL string `yaml:"database_url"`

	// Oracle settings
	LLMBaseURL  string  `yaml:"llm_base_url"`
	LLMAPIKey   string  `yaml:"llm_api_key"`
	LLMModel    string  `yaml:"llm_model"`
	Temperature float32 `yaml:"temperature"`

	// Google settings
	GoogleCredentialsFile string   `yaml:"google_credentials_file"`
	GoogleTokenFile       string   `yaml:"google_token_file"`
	CalendarID            string   `yaml:"calendar_id"`
	OrderSenders          []string `yaml:"order_senders"`
	TimeZone              string   `yaml:"time_zone"`

	// Loop budgets
	MaxIterations  int           `yaml:"max_iterations"`
	RunTimeout     time.Duration `yaml:"run_timeout"`
	OracleTimeout  time.Duration `yaml:"oracle_timeout"`
	ToolTimeout    time.Duration `yaml:"tool_timeout"`
	HistoryLimit   int           `yaml:"history_limit"`
	DuplicateGuard bool          `yaml:"duplicate_guard"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPPort:              8080,
		DatabaseURL:           "file:orderdesk.db?cache=shared&mode=rwc",
		LLMBaseURL:            "https://api.groq.com/openai/v1",
		LLMModel:              "openai/gpt-oss-120b",
		GoogleCredentialsFile: "credentials.json",
		GoogleTokenFile:       "tokens.json",
		CalendarID:            "primary",
		OrderSenders:          append([]string(nil), DefaultOrderSenders...),
		TimeZone:              "Local",
		MaxIterations:         10,
		RunTimeout:            5 * time.Minute,
		OracleTimeout:         60 * time.Second,
		ToolTimeout:           30 * time.Second,
		HistoryLimit:          200,
		DuplicateGuard:        true,
		LogLevel:              "info",
	}
}

// Load loads configuration from defaults, the optional YAML file named by
// CONFIG_FILE, then environment variables, in that order of precedence.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.HTTPPort = getEnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.APIJWTSecret = getEnv("API_JWT_SECRET", cfg.APIJWTSecret)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.LLMBaseURL = getEnv("LLM_BASE_URL", cfg.LLMBaseURL)
	cfg.LLMAPIKey = getEnv("LLM_API_KEY", getEnv("GROQ_API_KEY", cfg.LLMAPIKey))
	cfg.LLMModel = getEnv("LLM_MODEL", cfg.LLMModel)
	cfg.GoogleCredentialsFile = getEnv("GOOGLE_CREDENTIALS_FILE", cfg.GoogleCredentialsFile)
	cfg.GoogleTokenFile = getEnv("GOOGLE_TOKEN_FILE", cfg.GoogleTokenFile)
	cfg.CalendarID = getEnv("CALENDAR_ID", cfg.CalendarID)
	cfg.OrderSenders = getEnvList("ORDER_SENDERS", cfg.OrderSenders)
	cfg.TimeZone = getEnv("TIME_ZONE", cfg.TimeZone)
	cfg.MaxIterations = getEnvInt("MAX_ITERATIONS", cfg.MaxIterations)
	cfg.RunTimeout = getEnvMillis("RUN_TIMEOUT_MS", cfg.RunTimeout)
	cfg.OracleTimeout = getEnvMillis("ORACLE_TIMEOUT_MS", cfg.OracleTimeout)
	cfg.ToolTimeout = getEnvMillis("TOOL_TIMEOUT_MS", cfg.ToolTimeout)
	cfg.HistoryLimit = getEnvInt("HISTORY_LIMIT", cfg.HistoryLimit)
	cfg.DuplicateGuard = getEnvBool("DUPLICATE_GUARD", cfg.DuplicateGuard)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the budgets and settings the loop depends on.
func (c *Config) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.RunTimeout <= 0 || c.OracleTimeout <= 0 || c.ToolTimeout <= 0 {
		return fmt.Errorf("run, oracle and tool timeouts must be positive")
	}
	if len(c.OrderSenders) == 0 {
		return fmt.Errorf("at least one order sender is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured IANA time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time_zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvMillis(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
