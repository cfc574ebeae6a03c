package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"rmbot/internal/domain"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for rmbot.
type Config struct {
	Telegram   TelegramConfig   `yaml:"telegram" json:"telegram"`
	Remarkable RemarkableConfig `yaml:"remarkable" json:"remarkable"`
	Fetch      FetchConfig      `yaml:"fetch" json:"fetch"`
	Log        LogConfig        `yaml:"log" json:"log"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
}

type TelegramConfig struct {
	Token       string  `yaml:"token" json:"token"`
	AllowFrom   []int64 `yaml:"allow_from,omitempty" json:"allowFrom,omitempty"` // empty = allow all
	PollTimeout int     `yaml:"poll_timeout" json:"pollTimeout"`                 // long-poll seconds
	Debug       bool    `yaml:"debug,omitempty" json:"debug,omitempty"`
}

type RemarkableConfig struct {
	RmapiPath string `yaml:"rmapi_path" json:"rmapiPath"`
	Folder    string `yaml:"folder" json:"folder"`
}

type FetchConfig struct {
	Renderer       string `yaml:"renderer" json:"renderer"` // "http" | "chrome"
	UserAgent      string `yaml:"user_agent" json:"userAgent"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeoutSeconds"`
	MaxBodyBytes   int    `yaml:"max_body_bytes" json:"maxBodyBytes"`
	ChromeProfile  string `yaml:"chrome_profile,omitempty" json:"chromeProfile,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // "text" | "json"
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string `yaml:"listen,omitempty" json:"listen,omitempty"`
	Path   string `yaml:"path" json:"path"`
}

// Environment variables that override the config file.
const (
	EnvToken     = "TELEGRAM_TOKEN"
	EnvRmapiPath = "RMAPI_PATH"
	EnvFolder    = "REMARKABLE_FOLDER"
	EnvLogLevel  = "RMBOT_LOG_LEVEL"
	EnvConfig    = "RMBOT_CONFIG"
)

// DefaultConfigDir returns the default config directory (~/.rmbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rmbot"
	}
	return filepath.Join(home, ".rmbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Load builds a Config from defaults, the optional YAML file at path, and
// the environment, in that order. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		path = ExpandPath(path)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		}

		// Substitute environment variables: ${VAR} and ${VAR:-default}
		data = []byte(ExpandEnvVars(string(data)))

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	cfg.Remarkable.RmapiPath = ExpandPath(cfg.Remarkable.RmapiPath)
	cfg.Fetch.ChromeProfile = ExpandPath(cfg.Fetch.ChromeProfile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvToken); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv(EnvRmapiPath); v != "" {
		cfg.Remarkable.RmapiPath = v
	}
	if v := os.Getenv(EnvFolder); v != "" {
		cfg.Remarkable.Folder = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
// A variable with no value and no default expands to the empty string.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		if val, ok := os.LookupEnv(groups[1]); ok && val != "" {
			return val
		}
		if len(groups) >= 3 {
			return groups[2]
		}
		return ""
	})
}

// Save writes cfg as YAML, creating the parent directory.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Remarkable.RmapiPath == "" {
		errs = append(errs, "remarkable.rmapi_path must not be empty")
	}
	if strings.TrimSpace(cfg.Remarkable.Folder) == "" {
		errs = append(errs, "remarkable.folder must not be empty")
	}
	switch cfg.Fetch.Renderer {
	case "http", "chrome":
	default:
		errs = append(errs, "fetch.renderer must be one of: http, chrome")
	}
	if cfg.Fetch.TimeoutSeconds < 1 || cfg.Fetch.TimeoutSeconds > 600 {
		errs = append(errs, "fetch.timeout_seconds must be between 1 and 600")
	}
	if cfg.Fetch.MaxBodyBytes < 0 {
		errs = append(errs, "fetch.max_body_bytes must be >= 0")
	}
	if cfg.Telegram.PollTimeout < 0 {
		errs = append(errs, "telegram.poll_timeout must be >= 0")
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, err.Error())
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, "log.format must be one of: text, json")
	}
	if cfg.Metrics.Listen != "" && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, "metrics.path must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Preflight checks the conditions the bot cannot start without: a Telegram
// token and an rmapi binary at the configured path. Every returned error
// matches domain.ErrStartup.
func Preflight(cfg *Config) error {
	var errs []error
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		errs = append(errs, domain.Errorf(domain.ErrStartup,
			"%s is not set (export %s='your-token-here')", EnvToken, EnvToken))
	}
	if err := CheckExecutable(cfg.Remarkable.RmapiPath); err != nil {
		errs = append(errs, domain.Errorf(domain.ErrStartup,
			"%w (install it from https://github.com/ddvk/rmapi or set %s)", err, EnvRmapiPath))
	}
	return errors.Join(errs...)
}

// CheckExecutable reports whether path names an existing regular file.
func CheckExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("rmapi not found at %s", path)
	}
	if info.IsDir() {
		return fmt.Errorf("rmapi path %s is a directory", path)
	}
	return nil
}

// ParseLevel maps a config level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level must be one of: debug, info, warn, error (got %q)", s)
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
