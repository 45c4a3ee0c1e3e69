// Package ffmpeg builds ffmpeg argument vectors for the three mux modes and
// runs the encoder while streaming its diagnostics.
//
// Arguments are always passed as a vector, never through a shell. Values that
// end up inside a -vf filter graph go through FilterValue, which applies both
// levels of ffmpeg's filter escaping so paths and watermark text with spaces,
// colons, quotes, or commas survive intact.
//
// Runner launches the binary, drains stderr through the progress line reader,
// pushes throttled status text to a sink from a single goroutine, and returns
// the exit code with the accumulated diagnostics. A non-zero exit is a result,
// not an error.
package ffmpeg
