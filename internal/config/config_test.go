package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"submux/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SUBMUX_API_TOKEN", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantDownloads := filepath.Join(tempHome, ".local", "share", "submux", "downloads")
	if cfg.Paths.DownloadDir != wantDownloads {
		t.Fatalf("unexpected download dir: got %q want %q", cfg.Paths.DownloadDir, wantDownloads)
	}
	wantFont := filepath.Join(tempHome, ".local", "share", "submux", "fonts", "HelveticaRounded-Bold.ttf")
	if cfg.Encoder.FontPath != wantFont {
		t.Fatalf("unexpected font path: got %q want %q", cfg.Encoder.FontPath, wantFont)
	}
	if cfg.API.Bind != "127.0.0.1:7490" {
		t.Fatalf("unexpected api bind: %q", cfg.API.Bind)
	}
	if cfg.Defaults.CRF != 23 || cfg.Defaults.Preset != "ultrafast" || cfg.Defaults.Codec != "libx264" {
		t.Fatalf("unexpected encoding defaults: %+v", cfg.Defaults)
	}
	if cfg.Defaults.FontSize != 20 || cfg.Defaults.Resolution != "1280x720" {
		t.Fatalf("unexpected styling defaults: %+v", cfg.Defaults)
	}
	if cfg.ProgressInterval().Seconds() != 10 {
		t.Fatalf("expected 10s progress interval, got %s", cfg.ProgressInterval())
	}
	if cfg.RetryDelay().Seconds() != 5 {
		t.Fatalf("expected 5s retry delay, got %s", cfg.RetryDelay())
	}
	if cfg.Jobs.ErrorTailChars != 3000 {
		t.Fatalf("expected 3000 char error tail, got %d", cfg.Jobs.ErrorTailChars)
	}
	if cfg.Intake.MaxURLBytes != 2_000_000_000 {
		t.Fatalf("expected 2 GB url cap, got %d", cfg.Intake.MaxURLBytes)
	}
	if cfg.FFmpegBinary() != "ffmpeg" {
		t.Fatalf("unexpected ffmpeg binary: %q", cfg.FFmpegBinary())
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
download_dir = "~/downloads"
outbox_dir = "/tmp/submux-outbox"

[encoder]
watermark = "  @muxchannel  "

[defaults]
crf = 18
preset = "Medium"
resolution = "original"

[api]
allowed_users = ["42", " 42 ", "", "7"]

[logging]
format = "JSON"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Paths.DownloadDir != filepath.Join(tempHome, "downloads") {
		t.Fatalf("unexpected download dir: %q", cfg.Paths.DownloadDir)
	}
	if cfg.Encoder.Watermark != "@muxchannel" {
		t.Fatalf("expected trimmed watermark, got %q", cfg.Encoder.Watermark)
	}
	if cfg.Defaults.CRF != 18 || cfg.Defaults.Preset != "medium" || cfg.Defaults.Resolution != "original" {
		t.Fatalf("unexpected defaults: %+v", cfg.Defaults)
	}
	if got := strings.Join(cfg.API.AllowedUsers, ","); got != "42,7" {
		t.Fatalf("expected deduplicated allow-list, got %q", got)
	}
	if !cfg.UserAllowed("7") || cfg.UserAllowed("8") {
		t.Fatal("allow-list not applied")
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[paths]\nlibrary_dir = \"/x\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestEnvFallbacks(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SUBMUX_API_TOKEN", " secret ")
	t.Setenv("SUBMUX_ALLOWED_USERS", "1, 2")
	t.Setenv("SUBMUX_NTFY_TOPIC", "https://ntfy.sh/mux")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.Token != "secret" {
		t.Fatalf("expected token from env, got %q", cfg.API.Token)
	}
	if len(cfg.API.AllowedUsers) != 2 {
		t.Fatalf("expected allow-list from env, got %v", cfg.API.AllowedUsers)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.sh/mux" {
		t.Fatalf("expected ntfy topic from env, got %q", cfg.Notifications.NtfyTopic)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"crf", func(c *config.Config) { c.Defaults.CRF = 60 }, "defaults.crf"},
		{"font size", func(c *config.Config) { c.Defaults.FontSize = 0 }, "defaults.font_size"},
		{"resolution", func(c *config.Config) { c.Defaults.Resolution = "hd" }, "defaults.resolution"},
		{"concurrency", func(c *config.Config) { c.Jobs.MaxConcurrent = 0 }, "jobs.max_concurrent"},
		{"error tail", func(c *config.Config) { c.Jobs.ErrorTailChars = 3001 }, "jobs.error_tail_chars"},
		{"url cap", func(c *config.Config) { c.Intake.MaxURLBytes = 0 }, "intake.max_url_bytes"},
		{"font name", func(c *config.Config) { c.Encoder.FontName = "Bad:Font" }, "encoder.font_name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.Defaults.CRF != config.Default().Defaults.CRF {
		t.Fatalf("sample crf %d differs from default", cfg.Defaults.CRF)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
}

func TestEncodeRedactsToken(t *testing.T) {
	cfg := config.Default()
	cfg.API.Token = "hunter2"
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.Contains(string(data), "hunter2") {
		t.Fatal("expected token to be redacted")
	}
	if cfg.API.Token != "hunter2" {
		t.Fatal("Encode must not mutate the receiver")
	}
}
