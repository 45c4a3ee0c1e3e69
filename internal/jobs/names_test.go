package jobs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFinalName(t *testing.T) {
	cases := []struct {
		in, ext, want string
	}{
		{"Movie.mkv", ".mkv", "Movie.mkv"},
		{"Movie.mp4", ".mkv", "Movie.mkv"},
		{"Movie", ".mp4", "Movie.mp4"},
		{"Movie.MKV", ".srt", "Movie.srt"},
		{"Show.S01E02", ".mkv", "Show.S01E02.mkv"},
		{"", ".mkv", "output.mkv"},
		{".mkv", ".mp4", "output.mp4"},
	}
	for _, tc := range cases {
		if got := finalName(tc.in, tc.ext); got != tc.want {
			t.Errorf("finalName(%q, %q) = %q, want %q", tc.in, tc.ext, got, tc.want)
		}
	}
}

func TestNameResolverSuffixesCollisions(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Movie.mkv"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := newNameResolver()

	first, releaseFirst := r.claim(dir, "Movie.mkv")
	if filepath.Base(first) != "Movie (1).mkv" {
		t.Fatalf("expected on-disk collision suffix, got %s", first)
	}
	second, releaseSecond := r.claim(dir, "Movie.mkv")
	if filepath.Base(second) != "Movie (2).mkv" {
		t.Fatalf("expected claimed collision suffix, got %s", second)
	}
	releaseFirst()
	releaseSecond()

	again, release := r.claim(dir, "Movie.mkv")
	defer release()
	if filepath.Base(again) != "Movie (1).mkv" {
		t.Fatalf("released names should be reusable, got %s", again)
	}
}

func TestRegistryOneJobPerUser(t *testing.T) {
	r := newRegistry()
	cancelled := false
	if err := r.begin(JobInfo{ID: "a", UserID: "1"}, func() { cancelled = true }); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := r.begin(JobInfo{ID: "b", UserID: "1"}, func() {}); err != ErrJobInProgress {
		t.Fatalf("expected ErrJobInProgress, got %v", err)
	}
	r.setState("1", "a", StateRunning)
	if info, ok := r.get("1"); !ok || info.State != StateRunning {
		t.Fatalf("unexpected job info %+v", info)
	}
	if !r.cancel("1") || !cancelled {
		t.Fatal("expected cancel to reach job")
	}
	r.finish("1", "b")
	if !r.busy("1") {
		t.Fatal("finishing a different job id must not clear the slot")
	}
	r.finish("1", "a")
	if r.busy("1") || r.cancel("1") {
		t.Fatal("expected registry to be empty")
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(" HardMux "); err != nil || m != ModeHardMux {
		t.Fatalf("ParseMode = %q, %v", m, err)
	}
	if _, err := ParseMode("burn"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	if ModeSoftMux.Ext() != ".mkv" || ModeHardMux.Ext() != ".mp4" || ModeExtract.Ext() != ".srt" {
		t.Fatal("unexpected mode extensions")
	}
}
