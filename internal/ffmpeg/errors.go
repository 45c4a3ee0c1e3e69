package ffmpeg

import "regexp"

// Pre-compiled patterns for classifying ffmpeg stderr into failure hints.
// Checked in order by Classify; the first match wins.
var (
	reSubtitleIssue = regexp.MustCompile(
		`(?i)Subtitle codec .* is not supported|` +
			`Could not find tag for codec .* in stream .*subtitle|` +
			`Error initializing output stream .*subtitle|` +
			`Error while opening encoder for output stream .*subtitle|` +
			`Subtitle encoding currently only possible from text to text or bitmap to bitmap|` +
			`Unable to open .*\.(srt|ass|ssa|vtt)|` +
			`Invalid data found when processing input`)

	reFontIssue = regexp.MustCompile(
		`(?i)fontconfig|Cannot find a valid font|Could not load font|Glyph .* not found|Error initializing filter 'drawtext'`)

	reMissingInput = regexp.MustCompile(`(?i)No such file or directory`)

	reNoSubtitleStream = regexp.MustCompile(
		`(?i)Stream map '0:s:0' matches no streams|Output file .* does not contain any stream`)

	reEncoderIssue = regexp.MustCompile(`(?i)Unknown encoder|Encoder .* not found|Error while opening encoder`)

	reFilterIssue = regexp.MustCompile(
		`(?i)Error (initializing|reinitializing) (complex )?filters?|No such filter|Invalid argument`)

	reDiskFull = regexp.MustCompile(`(?i)No space left on device`)
)

// Failure classes reported by Classify.
const (
	FailureSubtitle         = "subtitle"
	FailureFont             = "font"
	FailureMissingInput     = "missing_input"
	FailureNoSubtitleStream = "no_subtitle_stream"
	FailureEncoder          = "encoder"
	FailureFilter           = "filter"
	FailureDiskFull         = "disk_full"
	FailureUnknown          = "unknown"
)

var failureHints = map[string]string{
	FailureSubtitle:         "subtitle file is malformed or its format cannot be muxed into the target container",
	FailureFont:             "check encoder.font_path and that fontconfig can see the font",
	FailureMissingInput:     "an input file disappeared before ffmpeg opened it",
	FailureNoSubtitleStream: "the video has no subtitle stream to extract",
	FailureEncoder:          "the configured codec is not available in this ffmpeg build",
	FailureFilter:           "the filter graph was rejected; check escaping of paths and watermark text",
	FailureDiskFull:         "free space in paths.download_dir",
	FailureUnknown:          "inspect the ffmpeg diagnostics",
}

// Classify maps ffmpeg diagnostics to a failure class and an operator hint.
func Classify(stderr string) (class, hint string) {
	switch {
	case reDiskFull.MatchString(stderr):
		class = FailureDiskFull
	case reNoSubtitleStream.MatchString(stderr):
		class = FailureNoSubtitleStream
	case reFontIssue.MatchString(stderr):
		class = FailureFont
	case reSubtitleIssue.MatchString(stderr):
		class = FailureSubtitle
	case reEncoderIssue.MatchString(stderr):
		class = FailureEncoder
	case reMissingInput.MatchString(stderr):
		class = FailureMissingInput
	case reFilterIssue.MatchString(stderr):
		class = FailureFilter
	default:
		class = FailureUnknown
	}
	return class, failureHints[class]
}
