package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"submux/internal/services"
)

// ASSStyle controls the Default style written into ASS headers.
type ASSStyle struct {
	FontName string
	FontSize int
}

// DefaultASSStyle mirrors common player defaults.
var DefaultASSStyle = ASSStyle{FontName: "Arial", FontSize: 20}

// Write renders doc in format. Plain text output is one cue per line.
func Write(w io.Writer, doc Document, format Format, style ASSStyle) error {
	bw := bufio.NewWriter(w)
	switch format {
	case FormatSRT:
		for i, cue := range doc.Cues {
			fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n", i+1, srtTimestamp(cue.Start, ','), srtTimestamp(cue.End, ','), cue.Text)
		}
	case FormatVTT:
		bw.WriteString("WEBVTT\n\n")
		for _, cue := range doc.Cues {
			fmt.Fprintf(bw, "%s --> %s\n%s\n\n", srtTimestamp(cue.Start, '.'), srtTimestamp(cue.End, '.'), cue.Text)
		}
	case FormatASS:
		writeASSHeader(bw, style)
		for _, cue := range doc.Cues {
			text := strings.ReplaceAll(cue.Text, "\n", `\N`)
			fmt.Fprintf(bw, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n", assTimestamp(cue.Start), assTimestamp(cue.End), text)
		}
	case FormatText:
		for _, cue := range doc.Cues {
			bw.WriteString(strings.ReplaceAll(cue.Text, "\n", " "))
			bw.WriteByte('\n')
		}
	default:
		return services.Wrap(services.ErrValidation, "subtitles", "write",
			fmt.Sprintf("unsupported subtitle format %q", format), nil)
	}
	return bw.Flush()
}

// WriteFile renders doc to path, choosing the format from its extension.
func WriteFile(path string, doc Document, style ASSStyle) error {
	format, err := DetectFormat(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create subtitle: %w", err)
	}
	if err := Write(f, doc, format, style); err != nil {
		f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

// Convert reads src and writes it to dst, formats chosen by extension.
func Convert(src, dst string, style ASSStyle) error {
	doc, err := ReadFile(src)
	if err != nil {
		return err
	}
	if len(doc.Cues) == 0 {
		return services.Wrap(services.ErrValidation, "subtitles", "convert", "source contains no cues", nil)
	}
	return WriteFile(dst, doc, style)
}

func writeASSHeader(w *bufio.Writer, style ASSStyle) {
	if style.FontName == "" {
		style.FontName = DefaultASSStyle.FontName
	}
	if style.FontSize <= 0 {
		style.FontSize = DefaultASSStyle.FontSize
	}
	w.WriteString("[Script Info]\nScriptType: v4.00+\nWrapStyle: 0\nScaledBorderAndShadow: yes\nPlayResX: 384\nPlayResY: 288\n\n")
	w.WriteString("[V4+ Styles]\n")
	w.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(w, "Style: Default,%s,%d,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,2,2,2,10,10,10,1\n\n", style.FontName, style.FontSize)
	w.WriteString("[Events]\n")
	w.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
}

func srtTimestamp(d time.Duration, sep byte) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", ms/3_600_000, (ms/60_000)%60, (ms/1000)%60, sep, ms%1000)
}

func assTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	cs := d.Milliseconds() / 10
	return fmt.Sprintf("%d:%02d:%02d.%02d", cs/360_000, (cs/6000)%60, (cs/100)%60, cs%100)
}
