package intake

import (
	"fmt"
	"path/filepath"
	"strings"

	"submux/internal/services"
)

// Kind is the asset slot an upload fills.
type Kind string

const (
	KindVideo    Kind = "video"
	KindSubtitle Kind = "subtitle"
)

var (
	videoExtensions    = map[string]bool{"mp4": true, "mkv": true}
	subtitleExtensions = map[string]bool{"srt": true, "ass": true, "ssa": true, "vtt": true}
)

// Classify maps a filename to its asset kind by extension.
func Classify(name string) (Kind, string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	switch {
	case videoExtensions[ext]:
		return KindVideo, ext, nil
	case subtitleExtensions[ext]:
		return KindSubtitle, ext, nil
	case ext == "":
		return "", "", services.Wrap(services.ErrValidation, "intake", "classify",
			"file has no extension; send an .mp4/.mkv video or an .srt/.ass/.ssa/.vtt subtitle", nil)
	default:
		return "", ext, services.Wrap(services.ErrValidation, "intake", "classify",
			fmt.Sprintf("unsupported format .%s; send an .mp4/.mkv video or an .srt/.ass/.ssa/.vtt subtitle", ext), nil)
	}
}
