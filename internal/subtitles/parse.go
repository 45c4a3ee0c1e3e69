package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"submux/internal/services"
)

// ReadFile parses path according to its extension.
func ReadFile(path string) (Document, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return Document{}, err
	}
	return ReadFileAs(path, format)
}

// ReadFileAs parses path as format regardless of its extension.
func ReadFileAs(path string, format Format) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("open subtitle: %w", err)
	}
	defer f.Close()
	return Parse(f, format)
}

// Parse reads a subtitle document in the given format.
func Parse(r io.Reader, format Format) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("read subtitle: %w", err)
	}
	content := normalizeNewlines(string(data))
	switch format {
	case FormatSRT, FormatVTT:
		return parseBlocks(content), nil
	case FormatASS:
		return parseASS(content)
	case FormatText:
		return parseText(content), nil
	default:
		return Document{}, services.Wrap(services.ErrValidation, "subtitles", "parse",
			fmt.Sprintf("unsupported subtitle format %q", format), nil)
	}
}

func normalizeNewlines(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// parseBlocks handles SRT and WebVTT: blank-line separated blocks with a
// "start --> end" timing line. Blocks without a timing line are skipped.
func parseBlocks(content string) Document {
	var doc Document
	for _, block := range strings.Split(content, "\n\n") {
		lines := strings.Split(strings.Trim(block, "\n"), "\n")
		timing := -1
		for i, line := range lines {
			if strings.Contains(line, "-->") {
				timing = i
				break
			}
		}
		if timing < 0 {
			continue
		}
		start, end, err := parseTimingLine(lines[timing])
		if err != nil {
			continue
		}
		text := strings.TrimSpace(strings.Join(lines[timing+1:], "\n"))
		if text == "" {
			continue
		}
		doc.Cues = append(doc.Cues, Cue{Start: start, End: end, Text: text})
	}
	return doc
}

func parseTimingLine(line string) (time.Duration, time.Duration, error) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid timing line %q", line)
	}
	endFields := strings.Fields(parts[1])
	if len(endFields) == 0 {
		return 0, 0, fmt.Errorf("invalid timing line %q", line)
	}
	start, err := parseTimestamp(parts[0])
	if err != nil {
		return 0, 0, err
	}
	end, err := parseTimestamp(endFields[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// parseTimestamp accepts HH:MM:SS,mmm, HH:MM:SS.mmm and MM:SS.mmm.
func parseTimestamp(value string) (time.Duration, error) {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", ".")
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	clock, frac, _ := strings.Cut(value, ".")
	hms := strings.Split(clock, ":")
	if len(hms) == 2 {
		hms = append([]string{"0"}, hms...)
	}
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	if errH != nil || errM != nil || errS != nil || minutes > 59 || seconds > 59 || hours < 0 || minutes < 0 || seconds < 0 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	var millis int
	if frac != "" {
		if len(frac) > 3 {
			frac = frac[:3]
		}
		for len(frac) < 3 {
			frac += "0"
		}
		ms, err := strconv.Atoi(frac)
		if err != nil || ms < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		millis = ms
	}
	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond, nil
}

func parseASS(content string) (Document, error) {
	var doc Document
	inEvents := false
	fields := []string{"layer", "start", "end", "style", "name", "marginl", "marginr", "marginv", "effect", "text"}

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			inEvents = strings.EqualFold(line, "[Events]")
			continue
		}
		if !inEvents {
			continue
		}
		key, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "format":
			fields = fields[:0]
			for _, f := range strings.Split(rest, ",") {
				fields = append(fields, strings.ToLower(strings.TrimSpace(f)))
			}
		case "dialogue":
			values := strings.SplitN(strings.TrimSpace(rest), ",", len(fields))
			if len(values) != len(fields) {
				continue
			}
			var cue Cue
			var startErr, endErr error
			for i, name := range fields {
				switch name {
				case "start":
					cue.Start, startErr = parseTimestamp(values[i])
				case "end":
					cue.End, endErr = parseTimestamp(values[i])
				case "text":
					cue.Text = assTextToPlain(values[i])
				}
			}
			if startErr != nil || endErr != nil || strings.TrimSpace(cue.Text) == "" {
				continue
			}
			doc.Cues = append(doc.Cues, cue)
		}
	}
	if err := scanner.Err(); err != nil {
		return Document{}, fmt.Errorf("scan ass: %w", err)
	}
	return doc, nil
}

func assTextToPlain(text string) string {
	var b strings.Builder
	depth := 0
	for _, r := range text {
		switch {
		case r == '{':
			depth++
		case r == '}' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	out := strings.NewReplacer(`\N`, "\n", `\n`, "\n", `\h`, " ").Replace(b.String())
	return strings.TrimSpace(out)
}

func parseText(content string) Document {
	var doc Document
	var at time.Duration
	for _, line := range strings.Split(content, "\n") {
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		doc.Cues = append(doc.Cues, Cue{Start: at, End: at + TextCueDuration, Text: text})
		at += TextCueDuration + TextCueGap
	}
	return doc
}
