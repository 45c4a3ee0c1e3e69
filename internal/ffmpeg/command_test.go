package ffmpeg_test

import (
	"reflect"
	"strings"
	"testing"

	"submux/internal/ffmpeg"
)

func TestSoftMuxArgs(t *testing.T) {
	args, err := ffmpeg.SoftMuxArgs(ffmpeg.SoftMuxRequest{
		Video:    "/d/v.mp4",
		Subtitle: "/d/s.ASS",
		Output:   "/d/out.mkv",
	})
	if err != nil {
		t.Fatalf("SoftMuxArgs: %v", err)
	}
	want := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", "/d/v.mp4",
		"-i", "/d/s.ASS",
		"-map", "1:0", "-map", "0", "-map", "-0:d",
		"-disposition:s", "0", "-disposition:s:0", "default",
		"-c:v", "copy", "-c:a", "copy", "-c:s", "copy", "-c:s:0", "ass",
		"/d/out.mkv",
	}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("args = %q\nwant  %q", args, want)
	}
}

func TestSubtitleCodec(t *testing.T) {
	cases := map[string]string{"a.srt": "srt", "a.ass": "ass", "a.ssa": "ass", "a.vtt": "webvtt"}
	for path, want := range cases {
		got, err := ffmpeg.SubtitleCodec(path)
		if err != nil || got != want {
			t.Fatalf("SubtitleCodec(%q) = %q, %v", path, got, err)
		}
	}
	if _, err := ffmpeg.SubtitleCodec("a.sub"); err == nil {
		t.Fatal("expected error for unsupported subtitle")
	}
}

func TestHardMuxArgs(t *testing.T) {
	req := ffmpeg.HardMuxRequest{
		Video:    "/d/v.mkv",
		Subtitle: "/d/my subs.srt",
		Output:   "/d/out.mp4",
		Encoding: ffmpeg.Encoding{CRF: 22, Preset: "fast", Codec: "libx265", FontSize: 20, Width: 854, Height: 480},
		Style: ffmpeg.Style{
			FontPath:    "/fonts/HelveticaRounded-Bold.ttf",
			FontName:    "HelveticaRounded-Bold",
			FontColor:   "&H00FFFFFF",
			BorderWidth: "1.5",
			Watermark:   "@mux: bot",
		},
	}
	args := ffmpeg.HardMuxArgs(req)

	joined := strings.Join(args, " ")
	for _, fragment := range []string{
		"-i /d/v.mkv",
		"-c:v libx265 -preset fast -crf 22 -tag:v hvc1 -c:a copy /d/out.mp4",
	} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("expected %q in %q", fragment, joined)
		}
	}

	var vf string
	for i, arg := range args {
		if arg == "-vf" {
			vf = args[i+1]
		}
	}
	wantVF := "scale=854:480," +
		"subtitles=filename='/d/my subs.srt'" +
		":force_style='FontName=HelveticaRounded-Bold,FontSize=20,PrimaryColour=&H00FFFFFF,Outline=1.5'" +
		":fontsdir=/fonts," +
		`drawtext=text='@mux\: bot':fontfile=/fonts/HelveticaRounded-Bold.ttf` +
		":x=w-tw-10:y=10:fontsize=24:fontcolor=white:borderw=2:bordercolor=black"
	if vf != wantVF {
		t.Fatalf("vf = %q\nwant %q", vf, wantVF)
	}
}

func TestHardMuxOmitsOptionalParts(t *testing.T) {
	args := ffmpeg.HardMuxArgs(ffmpeg.HardMuxRequest{
		Video:    "v.mp4",
		Subtitle: "s.srt",
		Output:   "o.mp4",
		Encoding: ffmpeg.Encoding{CRF: 23, Preset: "ultrafast", Codec: "libx264", FontSize: 18, KeepSource: true},
		Style:    ffmpeg.Style{FontPath: "/f/font.ttf", FontName: "F", FontColor: "&H00FFFFFF", BorderWidth: "1"},
	})
	joined := strings.Join(args, " ")
	if strings.Contains(joined, "hvc1") {
		t.Fatalf("h264 output must not be tagged hvc1: %q", joined)
	}
	if strings.Contains(joined, "scale=") {
		t.Fatalf("original resolution must not scale: %q", joined)
	}
	if strings.Contains(joined, "drawtext") {
		t.Fatalf("empty watermark must not draw text: %q", joined)
	}
}

func TestExtractArgs(t *testing.T) {
	want := []string{"-hide_banner", "-nostdin", "-y", "-i", "in.mkv", "-map", "0:s:0", "-c:s", "srt", "out.srt"}
	if got := ffmpeg.ExtractArgs("in.mkv", "out.srt"); !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractArgs = %q", got)
	}
}
