package subtitles

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"submux/internal/services"
)

// Format names a subtitle file format.
type Format string

const (
	FormatSRT  Format = "srt"
	FormatASS  Format = "ass"
	FormatVTT  Format = "vtt"
	FormatText Format = "txt"
)

// Plain text cues last TextCueDuration and are separated by TextCueGap.
const (
	TextCueDuration = 3 * time.Second
	TextCueGap      = time.Second
)

// Cue is one timed subtitle entry. Text lines are joined with "\n".
type Cue struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Document is a parsed subtitle file.
type Document struct {
	Cues []Cue
}

// DetectFormat maps a filename extension to a Format.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "srt":
		return FormatSRT, nil
	case "ass", "ssa":
		return FormatASS, nil
	case "vtt":
		return FormatVTT, nil
	case "txt":
		return FormatText, nil
	default:
		return "", services.Wrap(services.ErrValidation, "subtitles", "detect format",
			fmt.Sprintf("unsupported subtitle format %q", filepath.Ext(path)), nil)
	}
}

// ParseFormat maps a user-supplied format name to a Format.
func ParseFormat(value string) (Format, error) {
	return DetectFormat("x." + strings.TrimPrefix(strings.TrimSpace(value), "."))
}

// Ext returns the canonical filename extension including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// Bounds returns the earliest start and latest end across all cues.
func (d Document) Bounds() (first, last time.Duration) {
	if len(d.Cues) == 0 {
		return 0, 0
	}
	first = d.Cues[0].Start
	for _, cue := range d.Cues {
		if cue.Start < first {
			first = cue.Start
		}
		if cue.End > last {
			last = cue.End
		}
	}
	return first, last
}
