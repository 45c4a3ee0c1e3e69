package session_test

import (
	"strings"
	"testing"

	"submux/internal/session"
)

func TestResolveUsesDefaultsForUnsetFields(t *testing.T) {
	var prefs session.Preferences
	if got := prefs.Resolve(session.DefaultSettings()); got != session.DefaultSettings() {
		t.Fatalf("empty preferences resolved to %+v", got)
	}
	want := session.Settings{CRF: 23, Preset: "ultrafast", Codec: "libx264", FontSize: 20, Resolution: "1280x720"}
	if session.DefaultSettings() != want {
		t.Fatalf("unexpected defaults %+v", session.DefaultSettings())
	}
}

func TestSetRejectsValuesOutsideOptionSet(t *testing.T) {
	var prefs session.Preferences
	cases := []struct {
		field session.Field
		value string
	}{
		{session.FieldCRF, "abc"},
		{session.FieldCRF, "60"},
		{session.FieldPreset, "warp"},
		{session.FieldCodec, "mpeg2"},
		{session.FieldFontSize, "2"},
		{session.FieldResolution, "640x360"},
		{session.Field("bitrate"), "1"},
	}
	for _, tc := range cases {
		if err := prefs.Set(tc.field, tc.value); err == nil {
			t.Fatalf("expected %s=%s to be rejected", tc.field, tc.value)
		}
	}
	if !prefs.Empty() {
		t.Fatalf("rejected values must not be stored: %+v", prefs)
	}
}

func TestCycleAdvancesAndWraps(t *testing.T) {
	defaults := session.DefaultSettings()
	var prefs session.Preferences

	next, err := prefs.Cycle(session.FieldResolution, defaults)
	if err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}
	if next != "1920x1080" {
		t.Fatalf("expected 1920x1080 after default 1280x720, got %q", next)
	}
	if next, _ = prefs.Cycle(session.FieldResolution, defaults); next != session.ResolutionOriginal {
		t.Fatalf("expected original, got %q", next)
	}
	if next, _ = prefs.Cycle(session.FieldResolution, defaults); next != "854x480" {
		t.Fatalf("expected wrap to 854x480, got %q", next)
	}

	if next, _ = prefs.Cycle(session.FieldCodec, defaults); next != "libx265" {
		t.Fatalf("expected libx265, got %q", next)
	}
	if next, _ = prefs.Cycle(session.FieldCRF, defaults); next != "25" {
		t.Fatalf("expected crf 25 after 23, got %q", next)
	}

	offList := session.Settings{CRF: 19, Preset: "placebo", Codec: "libx264", FontSize: 21, Resolution: "1280x720"}
	var fresh session.Preferences
	if next, _ = fresh.Cycle(session.FieldPreset, offList); next != "ultrafast" {
		t.Fatalf("expected off-list preset to restart at first option, got %q", next)
	}
}

func TestParseFieldAndOptions(t *testing.T) {
	field, err := session.ParseField(" Font_Size ")
	if err != nil || field != session.FieldFontSize {
		t.Fatalf("ParseField = %q, %v", field, err)
	}
	if _, err := session.ParseField("bitrate"); err == nil {
		t.Fatal("expected unknown field error")
	}
	if got := strings.Join(session.Options(session.FieldResolution), ","); got != "854x480,1280x720,1920x1080,original" {
		t.Fatalf("unexpected resolution options %q", got)
	}
}

func TestDimensions(t *testing.T) {
	if w, h, ok := session.Dimensions("854x480"); !ok || w != 854 || h != 480 {
		t.Fatalf("Dimensions(854x480) = %d %d %v", w, h, ok)
	}
	if _, _, ok := session.Dimensions(session.ResolutionOriginal); ok {
		t.Fatal("original must not yield dimensions")
	}
}

func TestDeriveOutputName(t *testing.T) {
	name, err := session.DeriveOutputName("/tmp/My Movie.mkv", "")
	if err != nil || name != "My Movie.mkv" {
		t.Fatalf("DeriveOutputName = %q, %v", name, err)
	}
	name, err = session.DeriveOutputName("ignored.mkv", "  Custom Name ")
	if err != nil || name != "Custom Name" {
		t.Fatalf("custom name = %q, %v", name, err)
	}
	if _, err := session.DeriveOutputName("x.mkv", strings.Repeat("n", 61)); err == nil {
		t.Fatal("expected custom name over 60 characters to be rejected")
	}
	long := strings.Repeat("a", 80) + ".mp4"
	name, err = session.DeriveOutputName(long, "")
	if err != nil {
		t.Fatalf("DeriveOutputName failed: %v", err)
	}
	if len([]rune(name)) != session.MaxOutputNameLength || !strings.HasSuffix(name, ".mp4") {
		t.Fatalf("expected truncated name keeping extension, got %q (%d)", name, len(name))
	}
}
