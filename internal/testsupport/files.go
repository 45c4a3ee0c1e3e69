package testsupport

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func mkParent(t testing.TB, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("prepare parent of %s: %v", path, err)
	}
}

// WriteFile creates path holding size filler bytes (at least one).
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	mkParent(t, path)
	if size < 1 {
		size = 1
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{'B'}, int(size)), 0o644); err != nil {
		t.Fatalf("fill %s: %v", path, err)
	}
}

// WriteText writes content to path, creating parent directories.
func WriteText(t testing.TB, path, content string) {
	t.Helper()
	mkParent(t, path)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("fill %s: %v", path, err)
	}
}

// StubBinary installs an executable /bin/sh script called name in dir.
func StubBinary(t testing.TB, dir, name, body string) string {
	t.Helper()
	target := filepath.Join(dir, name)
	mkParent(t, target)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("install stub %s: %v", name, err)
	}
	return target
}

// AssertMissing fails the test when path still exists.
func AssertMissing(t testing.TB, path string) {
	t.Helper()
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("%s should be gone (stat err=%v)", path, err)
	}
}
