package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var resolutionPattern = regexp.MustCompile(`^\d{2,5}x\d{2,5}$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateDefaults(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DownloadDir == "" {
		return errors.New("paths.download_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.OutboxDir == "" {
		return errors.New("paths.outbox_dir must be set")
	}
	return nil
}

func (c *Config) validateEncoder() error {
	if c.Encoder.ProgressIntervalSeconds < 0 {
		return errors.New("encoder.progress_interval_seconds must not be negative")
	}
	if strings.ContainsAny(c.Encoder.FontName, ",:=") {
		return fmt.Errorf("encoder.font_name %q must not contain ',', ':' or '='", c.Encoder.FontName)
	}
	return nil
}

func (c *Config) validateDefaults() error {
	if c.Defaults.CRF < 0 || c.Defaults.CRF > 51 {
		return fmt.Errorf("defaults.crf must be between 0 and 51, got %d", c.Defaults.CRF)
	}
	if c.Defaults.FontSize <= 0 {
		return errors.New("defaults.font_size must be positive")
	}
	if c.Defaults.Resolution != "original" && !resolutionPattern.MatchString(c.Defaults.Resolution) {
		return fmt.Errorf("defaults.resolution must be WIDTHxHEIGHT or \"original\", got %q", c.Defaults.Resolution)
	}
	return nil
}

func (c *Config) validateLimits() error {
	if err := ensurePositiveMap(map[string]int{
		"jobs.max_concurrent":           c.Jobs.MaxConcurrent,
		"jobs.error_tail_chars":         c.Jobs.ErrorTailChars,
		"intake.url_timeout_seconds":    c.Intake.URLTimeoutSeconds,
		"intake.stale_hours":            c.Intake.StaleHours,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Jobs.ErrorTailChars > maxErrorTailChars {
		return fmt.Errorf("jobs.error_tail_chars must be at most %d", maxErrorTailChars)
	}
	if c.Intake.MaxURLBytes <= 0 {
		return errors.New("intake.max_url_bytes must be positive")
	}
	if c.Intake.MinFreeGiB < 0 {
		return errors.New("intake.min_free_gib must not be negative")
	}
	if c.Transport.RetryDelaySeconds < 0 {
		return errors.New("transport.retry_delay_seconds must not be negative")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
