package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DownloadDir string `toml:"download_dir"`
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
	OutboxDir   string `toml:"outbox_dir"`
}

// Encoder contains settings for the ffmpeg invocation and the burned-in styling.
type Encoder struct {
	FFmpegBinary            string `toml:"ffmpeg_binary"`
	FontPath                string `toml:"font_path"`
	FontName                string `toml:"font_name"`
	FontColor               string `toml:"font_color"`
	BorderWidth             string `toml:"border_width"`
	Watermark               string `toml:"watermark"`
	ProgressIntervalSeconds int    `toml:"progress_interval_seconds"`
}

// Defaults holds the encoding preferences applied when a user has not chosen one.
type Defaults struct {
	CRF        int    `toml:"crf"`
	Preset     string `toml:"preset"`
	Codec      string `toml:"codec"`
	FontSize   int    `toml:"font_size"`
	Resolution string `toml:"resolution"`
}

// Jobs bounds encoder concurrency and failure reporting.
type Jobs struct {
	MaxConcurrent  int `toml:"max_concurrent"`
	ErrorTailChars int `toml:"error_tail_chars"`
}

// Intake contains limits applied to incoming uploads.
type Intake struct {
	MaxURLBytes       int64 `toml:"max_url_bytes"`
	URLTimeoutSeconds int   `toml:"url_timeout_seconds"`
	MinFreeGiB        int   `toml:"min_free_gib"`
	StaleHours        int   `toml:"stale_hours"`
}

// Transport contains delivery retry settings.
type Transport struct {
	RetryDelaySeconds int `toml:"retry_delay_seconds"`
}

// API contains HTTP listener and access configuration.
type API struct {
	Bind         string   `toml:"bind"`
	Token        string   `toml:"token"`
	AllowedUsers []string `toml:"allowed_users"`
	CORSOrigins  []string `toml:"cors_origins"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobCompleted   bool   `toml:"job_completed"`
	JobFailed      bool   `toml:"job_failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for submux.
//
// Configuration sections by subsystem:
//   - Paths: download, state, log, and outbox directories
//   - Encoder: ffmpeg binary, font resource, and burn-in styling
//   - Defaults: encoding preferences used when a user has none stored
//   - Jobs: encoder concurrency and failure tail size
//   - Intake: upload limits and stale file cleanup
//   - Transport: delivery retry policy
//   - API: HTTP bind address, bearer token, and user allow-list
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Encoder       Encoder       `toml:"encoder"`
	Defaults      Defaults      `toml:"defaults"`
	Jobs          Jobs          `toml:"jobs"`
	Intake        Intake        `toml:"intake"`
	Transport     Transport     `toml:"transport"`
	API           API           `toml:"api"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("submux.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for service operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DownloadDir, c.Paths.StateDir, c.Paths.LogDir, c.Paths.OutboxDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for muxing.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Encoder.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

// SessionDBPath returns the path of the SQLite session database.
func (c *Config) SessionDBPath() string {
	return filepath.Join(c.Paths.StateDir, "sessions.db")
}

// LockPath returns the path of the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "submux.lock")
}

// ProgressInterval returns the minimum spacing between status pushes.
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.Encoder.ProgressIntervalSeconds) * time.Second
}

// RetryDelay returns the delay before a failed transport call is retried.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Transport.RetryDelaySeconds) * time.Second
}

// URLTimeout returns the overall deadline for fetching a remote upload.
func (c *Config) URLTimeout() time.Duration {
	return time.Duration(c.Intake.URLTimeoutSeconds) * time.Second
}

// StaleAge returns how old an orphaned download must be before cleanup removes it.
func (c *Config) StaleAge() time.Duration {
	return time.Duration(c.Intake.StaleHours) * time.Hour
}

// UserAllowed reports whether userID may use the service. An empty allow-list admits everyone.
func (c *Config) UserAllowed(userID string) bool {
	if len(c.API.AllowedUsers) == 0 {
		return true
	}
	for _, allowed := range c.API.AllowedUsers {
		if allowed == userID {
			return true
		}
	}
	return false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	redacted := *c
	if redacted.API.Token != "" {
		redacted.API.Token = "********"
	}
	data, err := toml.Marshal(redacted)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
