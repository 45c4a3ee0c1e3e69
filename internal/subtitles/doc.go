// Package subtitles reads, writes, converts, and validates text subtitle files.
//
// Supported formats are SubRip (.srt), Advanced SubStation Alpha (.ass/.ssa),
// WebVTT (.vtt) for reading, and plain text (.txt) where every non-blank line
// becomes a timed cue. Conversions go through a format-neutral Document.
package subtitles
