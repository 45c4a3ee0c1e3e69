package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"submux/internal/config"
)

// ConfigOption tweaks the configuration built by NewConfig.
type ConfigOption func(*fixture)

type fixture struct {
	t    testing.TB
	root string
	cfg  *config.Config
}

// NewConfig returns defaults rooted in a fresh temp directory, with no
// retry delay, no free-space floor and an ephemeral API port.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths = config.Paths{
		DownloadDir: filepath.Join(root, "downloads"),
		StateDir:    filepath.Join(root, "state"),
		LogDir:      filepath.Join(root, "logs"),
		OutboxDir:   filepath.Join(root, "outbox"),
	}
	cfg.Encoder.FontPath = filepath.Join(root, "fonts", "HelveticaRounded-Bold.ttf")
	cfg.Transport.RetryDelaySeconds = 0
	cfg.Intake.MinFreeGiB = 0
	cfg.API.Bind = "127.0.0.1:0"

	fx := &fixture{t: t, root: root, cfg: &cfg}
	for _, opt := range opts {
		opt(fx)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("create fixture directories: %v", err)
	}
	return &cfg
}

// WithFont writes a placeholder font file at the configured font path.
func WithFont() ConfigOption {
	return func(fx *fixture) {
		WriteFile(fx.t, fx.cfg.Encoder.FontPath, 64)
	}
}

// WithFFmpeg points the config at a stub ffmpeg script with the given body.
// The body runs under /bin/sh with the ffmpeg arguments in "$@".
func WithFFmpeg(body string) ConfigOption {
	return func(fx *fixture) {
		fx.cfg.Encoder.FFmpegBinary = StubBinary(fx.t, filepath.Join(fx.root, "bin"), "ffmpeg", body)
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(fx *fixture) {
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		binDir := filepath.Join(fx.root, "bin")
		for _, name := range names {
			StubBinary(fx.t, binDir, name, "exit 0")
		}
		fx.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DownloadDir)
}
