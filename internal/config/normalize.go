package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeEncoder(); err != nil {
		return err
	}
	c.normalizeDefaults()
	c.normalizeAPI()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.OutboxDir, err = expandPath(c.Paths.OutboxDir); err != nil {
		return fmt.Errorf("paths.outbox_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeEncoder() error {
	c.Encoder.FFmpegBinary = strings.TrimSpace(c.Encoder.FFmpegBinary)
	if c.Encoder.FFmpegBinary == "" {
		c.Encoder.FFmpegBinary = defaultFFmpegBinary
	}
	var err error
	if strings.TrimSpace(c.Encoder.FontPath) == "" {
		c.Encoder.FontPath = defaultFontPath
	}
	if c.Encoder.FontPath, err = expandPath(strings.TrimSpace(c.Encoder.FontPath)); err != nil {
		return fmt.Errorf("encoder.font_path: %w", err)
	}
	c.Encoder.FontName = strings.TrimSpace(c.Encoder.FontName)
	if c.Encoder.FontName == "" {
		c.Encoder.FontName = defaultFontName
	}
	c.Encoder.FontColor = strings.TrimSpace(c.Encoder.FontColor)
	if c.Encoder.FontColor == "" {
		c.Encoder.FontColor = defaultFontColor
	}
	c.Encoder.BorderWidth = strings.TrimSpace(c.Encoder.BorderWidth)
	if c.Encoder.BorderWidth == "" {
		c.Encoder.BorderWidth = defaultBorderWidth
	}
	c.Encoder.Watermark = strings.TrimSpace(c.Encoder.Watermark)
	return nil
}

func (c *Config) normalizeDefaults() {
	c.Defaults.Preset = strings.ToLower(strings.TrimSpace(c.Defaults.Preset))
	if c.Defaults.Preset == "" {
		c.Defaults.Preset = defaultPreset
	}
	c.Defaults.Codec = strings.ToLower(strings.TrimSpace(c.Defaults.Codec))
	if c.Defaults.Codec == "" {
		c.Defaults.Codec = defaultCodec
	}
	c.Defaults.Resolution = strings.ToLower(strings.TrimSpace(c.Defaults.Resolution))
	if c.Defaults.Resolution == "" {
		c.Defaults.Resolution = defaultResolution
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("SUBMUX_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
	if len(c.API.AllowedUsers) == 0 {
		if value, ok := os.LookupEnv("SUBMUX_ALLOWED_USERS"); ok {
			c.API.AllowedUsers = strings.Split(value, ",")
		}
	}
	users := make([]string, 0, len(c.API.AllowedUsers))
	seen := make(map[string]struct{}, len(c.API.AllowedUsers))
	for _, user := range c.API.AllowedUsers {
		user = strings.TrimSpace(user)
		if user == "" {
			continue
		}
		if _, exists := seen[user]; exists {
			continue
		}
		seen[user] = struct{}{}
		users = append(users, user)
	}
	c.API.AllowedUsers = users

	origins := c.API.CORSOrigins[:0]
	for _, origin := range c.API.CORSOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	c.API.CORSOrigins = origins
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("SUBMUX_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
