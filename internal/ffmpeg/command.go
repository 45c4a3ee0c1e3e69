package ffmpeg

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Container extensions produced by each mode.
const (
	SoftMuxExt = ".mkv"
	HardMuxExt = ".mp4"
	ExtractExt = ".srt"
)

// Encoding carries the resolved re-encode parameters for hardmux.
type Encoding struct {
	CRF        int
	Preset     string
	Codec      string
	FontSize   int
	Width      int
	Height     int
	KeepSource bool
}

// Style describes the burned-in subtitle styling and watermark overlay.
type Style struct {
	FontPath    string
	FontName    string
	FontColor   string
	BorderWidth string
	Watermark   string
}

// SoftMuxRequest describes a stream-copy mux of one subtitle track into a video.
type SoftMuxRequest struct {
	Video    string
	Subtitle string
	Output   string
}

// HardMuxRequest describes a re-encode with subtitles rendered into the picture.
type HardMuxRequest struct {
	Video    string
	Subtitle string
	Output   string
	Encoding Encoding
	Style    Style
}

var subtitleCodecs = map[string]string{
	"srt": "srt",
	"ass": "ass",
	"ssa": "ass",
	"vtt": "webvtt",
}

// SubtitleCodec maps a subtitle file extension to the Matroska subtitle codec.
func SubtitleCodec(path string) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	codec, ok := subtitleCodecs[ext]
	if !ok {
		return "", fmt.Errorf("unsupported subtitle format %q", ext)
	}
	return codec, nil
}

func baseArgs() []string {
	return []string{"-hide_banner", "-nostdin", "-y"}
}

// SoftMuxArgs builds the argument vector for a softmux. The subtitle becomes
// the first subtitle stream and the only default one. Every other stream of
// the video is copied untouched, except data streams (timecode tracks) that
// Matroska cannot hold.
func SoftMuxArgs(req SoftMuxRequest) ([]string, error) {
	codec, err := SubtitleCodec(req.Subtitle)
	if err != nil {
		return nil, err
	}
	args := baseArgs()
	args = append(args,
		"-i", req.Video,
		"-i", req.Subtitle,
		"-map", "1:0",
		"-map", "0",
		"-map", "-0:d",
		"-disposition:s", "0",
		"-disposition:s:0", "default",
		"-c:v", "copy",
		"-c:a", "copy",
		"-c:s", "copy",
		"-c:s:0", codec,
		req.Output,
	)
	return args, nil
}

// HardMuxArgs builds the argument vector for a hardmux.
func HardMuxArgs(req HardMuxRequest) []string {
	enc := req.Encoding
	args := baseArgs()
	args = append(args,
		"-i", req.Video,
		"-vf", HardMuxFilter(req.Subtitle, enc, req.Style),
		"-c:v", enc.Codec,
		"-preset", enc.Preset,
		"-crf", strconv.Itoa(enc.CRF),
	)
	if IsHEVC(enc.Codec) {
		args = append(args, "-tag:v", "hvc1")
	}
	args = append(args, "-c:a", "copy", req.Output)
	return args
}

// HardMuxFilter renders the -vf chain: optional scale, subtitles with forced
// style, and the watermark overlay when one is configured.
func HardMuxFilter(subtitle string, enc Encoding, style Style) string {
	filters := make([]string, 0, 3)
	if !enc.KeepSource && enc.Width > 0 && enc.Height > 0 {
		filters = append(filters, fmt.Sprintf("scale=%d:%d", enc.Width, enc.Height))
	}

	forceStyle := fmt.Sprintf("FontName=%s,FontSize=%d,PrimaryColour=%s,Outline=%s",
		style.FontName, enc.FontSize, style.FontColor, style.BorderWidth)
	subtitles := "subtitles=filename=" + FilterValue(subtitle) + ":force_style=" + FilterValue(forceStyle)
	if dir := filepath.Dir(style.FontPath); style.FontPath != "" && dir != "" {
		subtitles += ":fontsdir=" + FilterValue(dir)
	}
	filters = append(filters, subtitles)

	if strings.TrimSpace(style.Watermark) != "" {
		filters = append(filters, "drawtext=text="+DrawtextValue(style.Watermark)+
			":fontfile="+FilterValue(style.FontPath)+
			":x=w-tw-10:y=10:fontsize=24:fontcolor=white:borderw=2:bordercolor=black")
	}
	return strings.Join(filters, ",")
}

// ExtractArgs builds the argument vector that pulls the first subtitle stream
// of video into an SRT file.
func ExtractArgs(video, output string) []string {
	args := baseArgs()
	return append(args, "-i", video, "-map", "0:s:0", "-c:s", "srt", output)
}

// IsHEVC reports whether codec produces HEVC output, which needs the hvc1 tag
// for Apple players to accept the MP4.
func IsHEVC(codec string) bool {
	switch strings.ToLower(strings.TrimSpace(codec)) {
	case "libx265", "hevc", "hevc_nvenc", "hevc_qsv", "hevc_vaapi", "hevc_videotoolbox":
		return true
	default:
		return false
	}
}
