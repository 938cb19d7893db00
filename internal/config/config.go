// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/listenupapp/dirwatch/internal/validation"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig     `json:"app"`
	Logger  LoggerConfig  `json:"logger"`
	Browser BrowserConfig `json:"browser"`
	Watch   WatchConfig   `json:"watch"`
	Server  ServerConfig  `json:"server"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `json:"environment" validate:"required,oneof=development staging production"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `json:"level" validate:"required,oneof=debug info warn error"`
}

// BrowserConfig holds directory browsing configuration.
type BrowserConfig struct {
	// StartPath is shown when no directory was browsed yet (default: home directory).
	StartPath string `json:"start_path" validate:"required,watchpath"`
	// Locale orders names within a group (default: derived from LANG, else "en").
	Locale string `json:"locale" validate:"required,bcp47_language_tag"`
	// DetectContent sniffs file content to pick an entry icon (default: true).
	DetectContent bool `json:"detect_content"`
}

// WatchConfig holds watch session configuration.
type WatchConfig struct {
	// BufferSize is the notification read buffer in bytes (default: 4096).
	BufferSize int `json:"buffer_size" validate:"gte=272"`
	// MaxRows caps the rows the monitor retains; 0 keeps every row.
	MaxRows int `json:"max_rows" validate:"gte=0"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port         string        `json:"port" validate:"required,numeric"` // Server port (default: 8080)
	ReadTimeout  time.Duration `json:"read_timeout" validate:"gt=0"`     // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration `json:"write_timeout" validate:"gte=0"`   // HTTP write timeout, 0 for none (default: 0, streams stay open)
	IdleTimeout  time.Duration `json:"idle_timeout" validate:"gt=0"`     // HTTP idle timeout (default: 60s)
	// MaxConnections caps concurrently accepted connections; 0 disables the cap (default: 256).
	MaxConnections int `json:"max_connections" validate:"gte=0"`
	// AllowedOrigins enables CORS for these origins (comma separated in env).
	AllowedOrigins []string `json:"allowed_origins" validate:"dive,required"`
	// ControlRate is watch start/stop requests per minute per client; 0 disables limiting (default: 60).
	ControlRate float64 `json:"control_rate" validate:"gte=0"`
	// ControlBurst is the number of start/stop requests allowed at once (default: 10).
	ControlBurst int `json:"control_burst" validate:"gte=1"`
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("dirwatch", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")

	// Browser flags
	browsePath := fs.String("browse-path", "", "Directory shown first (default: home directory)")
	browseLocale := fs.String("browse-locale", "", "Locale for name ordering (default: from LANG)")
	detectContent := fs.String("detect-content", "", "Sniff file content for icons (default: true)")

	// Watch flags
	bufferSize := fs.String("watch-buffer-size", "", "Notification read buffer in bytes (default: 4096)")
	maxRows := fs.String("watch-max-rows", "", "Maximum retained event rows, 0 for unlimited (default: 0)")

	// Server flags
	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 0)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	maxConnections := fs.String("max-connections", "", "Maximum concurrent connections (default: 256)")
	allowedOrigins := fs.String("allowed-origins", "", "Comma separated CORS origins")
	controlRate := fs.String("control-rate", "", "Watch start/stop requests per minute per client (default: 60)")
	controlBurst := fs.String("control-burst", "", "Watch start/stop burst (default: 10)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: strings.ToLower(getConfigValue(*logLevel, "LOG_LEVEL", "info")),
		},
		Browser: BrowserConfig{
			StartPath:     getConfigValue(*browsePath, "BROWSE_PATH", ""),
			Locale:        getConfigValue(*browseLocale, "BROWSE_LOCALE", localeFromEnv()),
			DetectContent: getBoolConfigValue(*detectContent, "BROWSE_DETECT_CONTENT", true),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue(*allowedOrigins, "ALLOWED_ORIGINS", "")),
		},
	}

	var err error
	if cfg.Watch.BufferSize, err = getIntConfigValue(*bufferSize, "WATCH_BUFFER_SIZE", 4096); err != nil {
		return nil, err
	}
	if cfg.Watch.MaxRows, err = getIntConfigValue(*maxRows, "WATCH_MAX_ROWS", 0); err != nil {
		return nil, err
	}
	if cfg.Server.MaxConnections, err = getIntConfigValue(*maxConnections, "SERVER_MAX_CONNECTIONS", 256); err != nil {
		return nil, err
	}
	if cfg.Server.ControlBurst, err = getIntConfigValue(*controlBurst, "CONTROL_BURST", 10); err != nil {
		return nil, err
	}

	rateStr := getConfigValue(*controlRate, "CONTROL_RATE", "60")
	if cfg.Server.ControlRate, err = strconv.ParseFloat(rateStr, 64); err != nil {
		return nil, fmt.Errorf("invalid control rate %q: %w", rateStr, err)
	}

	// Parse server timeouts.
	if cfg.Server.ReadTimeout, err = getDurationConfigValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = getDurationConfigValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "0s"); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = getDurationConfigValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}

	if err := cfg.expandStartPath(); err != nil {
		return nil, fmt.Errorf("invalid browse path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	return validation.New().Validate(c)
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, strings.TrimPrefix(path[1:], "/"))
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandStartPath defaults the browse path to the home directory, or / without one.
func (c *Config) expandStartPath() error {
	defaultPath := string(filepath.Separator)
	if homeDir, err := os.UserHomeDir(); err == nil {
		defaultPath = homeDir
	}

	expanded, err := expandPath(c.Browser.StartPath, defaultPath)
	if err != nil {
		return err
	}
	c.Browser.StartPath = expanded
	return nil
}

// localeFromEnv turns a POSIX locale such as "de_DE.UTF-8" into a BCP 47 tag.
func localeFromEnv() string {
	for _, key := range []string{"LC_ALL", "LC_COLLATE", "LANG"} {
		if tag := posixToBCP47(os.Getenv(key)); tag != "" {
			return tag
		}
	}
	return "en"
}

func posixToBCP47(locale string) string {
	locale, _, _ = strings.Cut(locale, ".")
	locale, _, _ = strings.Cut(locale, "@")
	if locale == "" || locale == "C" || locale == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(locale, "_", "-")
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) (int, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return result, nil
}

// getDurationConfigValue returns a duration from flag, env var, or default.
func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if _, set := os.LookupEnv(key); !set {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
