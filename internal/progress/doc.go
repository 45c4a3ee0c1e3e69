// Package progress turns ffmpeg's diagnostic stream into status snapshots.
//
// ParseLine extracts the frame, fps, size, time, bitrate, and speed fields
// from one stderr line. LineReader splits a byte stream into lines on runs of
// carriage returns and newlines, which is how ffmpeg redraws its status line.
// Both are pure with respect to the caller: neither retains state beyond the
// reader's partial-line buffer.
package progress
