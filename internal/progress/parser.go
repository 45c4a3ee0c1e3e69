package progress

import (
	"regexp"
	"strings"
)

// Snapshot maps a progress key (frame, fps, size, time, bitrate, speed) to its raw value.
type Snapshot map[string]string

// Keys recognised in ffmpeg status lines.
const (
	KeyFrame   = "frame"
	KeyFPS     = "fps"
	KeySize    = "size"
	KeyTime    = "time"
	KeyBitrate = "bitrate"
	KeySpeed   = "speed"
)

const unknownValue = "N/A"

// The leading boundary rejects keys embedded in longer words such as Lsize or out_time.
var progressPattern = regexp.MustCompile(`(?:^|[^A-Za-z0-9_])(frame|fps|size|time|bitrate|speed)\s*=\s*(\S+)`)

// ParseLine extracts progress fields from a single diagnostic line. Lines
// without recognised fields yield an empty snapshot. When a key repeats, the
// last occurrence wins.
func ParseLine(line string) Snapshot {
	snap := Snapshot{}
	if line == "" {
		return snap
	}
	for _, match := range progressPattern.FindAllStringSubmatch(line, -1) {
		snap[match[1]] = match[2]
	}
	return snap
}

// Empty reports whether the snapshot carries no fields.
func (s Snapshot) Empty() bool {
	return len(s) == 0
}

// Get returns the value for key or "N/A" when absent.
func (s Snapshot) Get(key string) string {
	if v, ok := s[key]; ok && v != "" {
		return v
	}
	return unknownValue
}

// Format renders the user-facing status text.
func (s Snapshot) Format() string {
	var b strings.Builder
	b.WriteString("Size: ")
	b.WriteString(s.Get(KeySize))
	b.WriteString("\nTime: ")
	b.WriteString(s.Get(KeyTime))
	b.WriteString("\nSpeed: ")
	b.WriteString(s.Get(KeySpeed))
	return b.String()
}
