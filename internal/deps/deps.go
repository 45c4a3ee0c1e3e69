package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Status reports whether an external binary can be executed.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Available   bool   `json:"available"`
	Version     string `json:"version,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// ResolveFFmpeg reports the ffmpeg binary that mux jobs will execute. A
// configured path containing a separator must point at an executable file;
// a bare name is resolved from PATH.
func ResolveFFmpeg(configured string) Status {
	status := Status{
		Name:        "FFmpeg",
		Description: "Required for muxing and burning subtitles",
		Command:     strings.TrimSpace(configured),
	}
	if status.Command == "" {
		status.Command = "ffmpeg"
	}

	if !strings.ContainsRune(status.Command, filepath.Separator) {
		resolved, err := exec.LookPath(status.Command)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found on PATH", status.Command)
			return status
		}
		status.Command = resolved
		status.Available = true
		return status
	}

	info, err := os.Stat(status.Command)
	switch {
	case err != nil:
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
	case info.IsDir() || info.Mode().Perm()&0o111 == 0:
		status.Detail = fmt.Sprintf("binary %q is not executable", status.Command)
	default:
		status.Available = true
	}
	return status
}

// FFmpegVersion runs `binary -version` and returns the version token from
// the banner ("6.1.1" from "ffmpeg version 6.1.1 Copyright ..."). It returns
// "" without error when the banner is not recognised.
func FFmpegVersion(ctx context.Context, binary string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, binary, "-hide_banner", "-version").Output()
	if err != nil {
		return "", fmt.Errorf("run %s -version: %w", binary, err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	if !scanner.Scan() {
		return "", nil
	}
	fields := strings.Fields(scanner.Text())
	for i := 0; i+1 < len(fields); i++ {
		if fields[i] == "version" {
			return fields[i+1], nil
		}
	}
	return "", nil
}
