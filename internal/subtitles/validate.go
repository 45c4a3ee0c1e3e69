package subtitles

import (
	"fmt"
	"strings"

	"submux/internal/services"
)

// Issues lists problems found in a document; empty means valid.
func Issues(doc Document) []string {
	if len(doc.Cues) == 0 {
		return []string{"empty_subtitle_file"}
	}
	var issues []string
	for i, cue := range doc.Cues {
		if cue.End <= cue.Start {
			issues = append(issues, fmt.Sprintf("cue %d ends before it starts", i+1))
		}
		if i > 0 && cue.Start < doc.Cues[i-1].Start {
			issues = append(issues, fmt.Sprintf("cue %d is out of order", i+1))
		}
	}
	return issues
}

// ValidateFile parses path and rejects files with no usable cues. Ordering
// problems are returned as warnings since ffmpeg tolerates them.
func ValidateFile(path string) (warnings []string, err error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	return ValidateFileAs(path, format)
}

// ValidateFileAs is ValidateFile with an explicit format, for files whose
// name does not carry an extension.
func ValidateFileAs(path string, format Format) (warnings []string, err error) {
	doc, err := ReadFileAs(path, format)
	if err != nil {
		return nil, err
	}
	issues := Issues(doc)
	if len(issues) == 1 && issues[0] == "empty_subtitle_file" {
		return nil, services.Wrap(services.ErrValidation, "subtitles", "validate",
			"subtitle file contains no timed cues", nil)
	}
	for _, issue := range issues {
		if !strings.HasPrefix(issue, "empty") {
			warnings = append(warnings, issue)
		}
	}
	return warnings, nil
}
