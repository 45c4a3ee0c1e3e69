package ffmpeg

import "strings"

// FilterValue escapes value for use as a filter option inside a -vf graph.
//
// The option parser treats '\', '\'' and ':' as special, so those are
// backslash-escaped first. The graph parser then splits on ',', ';', '[' and
// ']' and interprets '\' and quotes again, so any value carrying one of those
// (or whitespace) is wrapped in single quotes, with embedded quotes closed,
// escaped, and reopened.
func FilterValue(value string) string {
	escaped := escapeOption(value)
	if !strings.ContainsAny(escaped, " \t\r\n\\',;[]") {
		return escaped
	}
	return "'" + strings.ReplaceAll(escaped, "'", `'\''`) + "'"
}

// DrawtextValue escapes text for drawtext's text option. drawtext performs its
// own expansion pass where '\' and '%' are special, ahead of FilterValue.
func DrawtextValue(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 4)
	for _, r := range text {
		if r == '\\' || r == '%' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return FilterValue(b.String())
}

func escapeOption(value string) string {
	var b strings.Builder
	b.Grow(len(value) + 4)
	for _, r := range value {
		switch r {
		case '\\', '\'', ':':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
