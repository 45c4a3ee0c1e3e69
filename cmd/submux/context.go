package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"submux/internal/config"
	"submux/internal/logging"
)

const defaultEnvFile = ".env"

type commandContext struct {
	configFlag *string
	envFlag    *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configFile bool
	configErr  error
}

func newCommandContext(configFlag, envFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		envFlag:    envFlag,
	}
}

// loadEnv reads KEY=value pairs without overriding variables already set in
// the process environment. A missing default .env file is not an error.
func (c *commandContext) loadEnv() error {
	path := ""
	if c.envFlag != nil {
		path = strings.TrimSpace(*c.envFlag)
	}
	if path == "" {
		if _, err := os.Stat(defaultEnvFile); err != nil {
			return nil
		}
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configFile = exists
	})
	return c.config, c.configErr
}

// consoleLogger returns a logger for one-shot commands. Verbose output goes
// to stderr so command output on stdout stays clean.
func consoleLogger(verbose bool) (*slog.Logger, error) {
	if !verbose {
		return logging.NewNop(), nil
	}
	return logging.New(logging.Options{
		Level:   "debug",
		Format:  "console",
		Outputs: []string{"stderr"},
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func requireArg(value, name string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New(name + " is required")
	}
	return value, nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
