package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"submux/internal/textutil"
)

// MaxOutputNameLength bounds custom and derived output filenames.
const MaxOutputNameLength = 60

// ErrNameTooLong is returned when an output filename exceeds MaxOutputNameLength.
var ErrNameTooLong = errors.New("output filename too long")

// Asset references a stored upload.
type Asset struct {
	// StoredName is the collision-free filename inside the user's download directory.
	StoredName string `json:"stored_name"`
	// OriginalName is the filename the user uploaded. Empty for subtitles.
	OriginalName string `json:"original_name,omitempty"`
}

// Ext returns the lowercase extension of the stored file without the leading dot.
func (a *Asset) Ext() string {
	if a == nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(a.StoredName)), ".")
}

// Session is the persisted state for one user.
type Session struct {
	UserID      string      `json:"user_id"`
	Video       *Asset      `json:"video,omitempty"`
	Subtitle    *Asset      `json:"subtitle,omitempty"`
	OutputName  string      `json:"output_name,omitempty"`
	Preferences Preferences `json:"preferences"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Complete reports whether both assets are present.
func (s *Session) Complete() bool {
	return s != nil && s.Video != nil && s.Subtitle != nil
}

// Missing lists the asset kinds still required before muxing can start.
func (s *Session) Missing() []string {
	var missing []string
	if s == nil || s.Video == nil {
		missing = append(missing, "video")
	}
	if s == nil || s.Subtitle == nil {
		missing = append(missing, "subtitle")
	}
	return missing
}

// ValidateOutputName enforces the output filename rules.
func ValidateOutputName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("output filename must not be empty")
	}
	if n := utf8.RuneCountInString(name); n > MaxOutputNameLength {
		return fmt.Errorf("%w: %d characters, limit is %d", ErrNameTooLong, n, MaxOutputNameLength)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("output filename %q must not contain path separators", name)
	}
	return nil
}

// DeriveOutputName picks the output filename for a new video upload. A custom
// name wins; otherwise the original filename is used, truncated to fit.
func DeriveOutputName(original, custom string) (string, error) {
	if custom = textutil.NormalizeName(custom); custom != "" {
		if err := ValidateOutputName(custom); err != nil {
			return "", err
		}
		return custom, nil
	}
	name := textutil.NormalizeName(filepath.Base(original))
	if name == "" || name == "." || name == ".." || name == "-" {
		name = "output"
	}
	if utf8.RuneCountInString(name) <= MaxOutputNameLength {
		return name, nil
	}
	ext := filepath.Ext(name)
	if utf8.RuneCountInString(ext) >= MaxOutputNameLength {
		ext = ""
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return textutil.TruncateRunes(stem, MaxOutputNameLength-utf8.RuneCountInString(ext)) + ext, nil
}
