package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"submux/internal/fileutil"
)

// Console prints messages to a writer and copies deliveries into a local
// directory. It backs the one-shot CLI commands.
type Console struct {
	w      io.Writer
	outDir string

	mu   sync.Mutex
	next int
}

// NewConsole returns a console transport writing to w. Deliveries are copied
// into outDir; an empty outDir uses the current directory.
func NewConsole(w io.Writer, outDir string) *Console {
	if outDir == "" {
		outDir = "."
	}
	return &Console{w: w, outDir: outDir}
}

func (c *Console) Send(_ context.Context, userID, text string) (MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	if _, err := fmt.Fprintln(c.w, text); err != nil {
		return MessageRef{}, err
	}
	return MessageRef{UserID: userID, ID: strconv.Itoa(c.next)}, nil
}

func (c *Console) Edit(_ context.Context, _ MessageRef, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, text)
	return err
}

func (c *Console) Deliver(_ context.Context, _ string, path, caption string, progress UploadProgress) error {
	if err := os.MkdirAll(c.outDir, 0o755); err != nil {
		return err
	}
	target := filepath.Join(c.outDir, filepath.Base(path))
	if samePath(target, path) {
		return fmt.Errorf("delivery target %s is the source file", target)
	}
	var report fileutil.ProgressFunc
	if progress != nil {
		report = fileutil.ProgressFunc(progress)
	}
	if err := fileutil.CopyFileProgress(path, target, report); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if caption != "" {
		_, err := fmt.Fprintf(c.w, "%s\nSaved to %s\n", caption, target)
		return err
	}
	_, err := fmt.Fprintf(c.w, "Saved to %s\n", target)
	return err
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
