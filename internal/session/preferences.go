package session

import (
	"fmt"
	"strconv"
	"strings"

	"submux/internal/config"
)

// Field names an encoding preference.
type Field string

const (
	FieldCRF        Field = "crf"
	FieldPreset     Field = "preset"
	FieldCodec      Field = "codec"
	FieldFontSize   Field = "font_size"
	FieldResolution Field = "resolution"
)

// ResolutionOriginal keeps the source dimensions (no scale filter).
const ResolutionOriginal = "original"

// Fields lists every preference in display order.
var Fields = []Field{FieldCRF, FieldPreset, FieldCodec, FieldFontSize, FieldResolution}

var (
	crfOptions        = []int{18, 20, 22, 23, 25, 28, 30}
	presetOptions     = []string{"ultrafast", "superfast", "veryfast", "faster", "fast", "medium", "slow"}
	codecOptions      = []string{"libx264", "libx265"}
	fontSizeOptions   = []int{14, 16, 18, 20, 22, 24, 28}
	resolutionOptions = []string{"854x480", "1280x720", "1920x1080", ResolutionOriginal}
)

// Preferences holds optional per-user encoding settings. Nil fields fall back
// to defaults when resolved.
type Preferences struct {
	CRF        *int    `json:"crf,omitempty"`
	Preset     *string `json:"preset,omitempty"`
	Codec      *string `json:"codec,omitempty"`
	FontSize   *int    `json:"font_size,omitempty"`
	Resolution *string `json:"resolution,omitempty"`
}

// Settings is a fully resolved set of encoding parameters.
type Settings struct {
	CRF        int    `json:"crf"`
	Preset     string `json:"preset"`
	Codec      string `json:"codec"`
	FontSize   int    `json:"font_size"`
	Resolution string `json:"resolution"`
}

// DefaultSettings returns the built-in encoding defaults.
func DefaultSettings() Settings {
	return Settings{CRF: 23, Preset: "ultrafast", Codec: "libx264", FontSize: 20, Resolution: "1280x720"}
}

// ConfiguredSettings returns the operator's configured defaults.
func ConfiguredSettings(cfg *config.Config) Settings {
	if cfg == nil {
		return DefaultSettings()
	}
	d := cfg.Defaults
	return Settings{CRF: d.CRF, Preset: d.Preset, Codec: d.Codec, FontSize: d.FontSize, Resolution: d.Resolution}
}

// Resolve merges the stored preferences over defaults.
func (p Preferences) Resolve(defaults Settings) Settings {
	out := defaults
	if p.CRF != nil {
		out.CRF = *p.CRF
	}
	if p.Preset != nil {
		out.Preset = *p.Preset
	}
	if p.Codec != nil {
		out.Codec = *p.Codec
	}
	if p.FontSize != nil {
		out.FontSize = *p.FontSize
	}
	if p.Resolution != nil {
		out.Resolution = *p.Resolution
	}
	return out
}

// Empty reports whether no preference has been chosen.
func (p Preferences) Empty() bool {
	return p.CRF == nil && p.Preset == nil && p.Codec == nil && p.FontSize == nil && p.Resolution == nil
}

// Set assigns a single field from its textual value after validating it
// against the field's option set.
func (p *Preferences) Set(field Field, value string) error {
	value = strings.ToLower(strings.TrimSpace(value))
	switch field {
	case FieldCRF, FieldFontSize:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %q is not a number", field, value)
		}
		if field == FieldCRF {
			if n < 0 || n > 51 {
				return fmt.Errorf("crf: %d outside 0-51", n)
			}
			p.CRF = &n
			return nil
		}
		if n < 8 || n > 96 {
			return fmt.Errorf("font_size: %d outside 8-96", n)
		}
		p.FontSize = &n
		return nil
	case FieldPreset:
		if !containsString(presetOptions, value) {
			return fmt.Errorf("preset: %q is not one of %s", value, strings.Join(presetOptions, ", "))
		}
		p.Preset = &value
		return nil
	case FieldCodec:
		if !containsString(codecOptions, value) {
			return fmt.Errorf("codec: %q is not one of %s", value, strings.Join(codecOptions, ", "))
		}
		p.Codec = &value
		return nil
	case FieldResolution:
		if !containsString(resolutionOptions, value) {
			return fmt.Errorf("resolution: %q is not one of %s", value, strings.Join(resolutionOptions, ", "))
		}
		p.Resolution = &value
		return nil
	default:
		return fmt.Errorf("unknown preference %q", field)
	}
}

// Cycle advances field to the next option after its effective value and
// stores the result. Values outside the option set restart at the first option.
func (p *Preferences) Cycle(field Field, defaults Settings) (string, error) {
	current := p.Resolve(defaults)
	var next string
	switch field {
	case FieldCRF:
		next = strconv.Itoa(nextInt(crfOptions, current.CRF))
	case FieldFontSize:
		next = strconv.Itoa(nextInt(fontSizeOptions, current.FontSize))
	case FieldPreset:
		next = nextString(presetOptions, current.Preset)
	case FieldCodec:
		next = nextString(codecOptions, current.Codec)
	case FieldResolution:
		next = nextString(resolutionOptions, current.Resolution)
	default:
		return "", fmt.Errorf("unknown preference %q", field)
	}
	if err := p.Set(field, next); err != nil {
		return "", err
	}
	return next, nil
}

// Options returns the selectable values for field.
func Options(field Field) []string {
	switch field {
	case FieldCRF:
		return intStrings(crfOptions)
	case FieldFontSize:
		return intStrings(fontSizeOptions)
	case FieldPreset:
		return append([]string(nil), presetOptions...)
	case FieldCodec:
		return append([]string(nil), codecOptions...)
	case FieldResolution:
		return append([]string(nil), resolutionOptions...)
	default:
		return nil
	}
}

// ParseField maps user input to a Field.
func ParseField(value string) (Field, error) {
	candidate := Field(strings.ToLower(strings.TrimSpace(value)))
	for _, f := range Fields {
		if f == candidate {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown preference %q", value)
}

// Dimensions splits a WIDTHxHEIGHT resolution. ok is false for ResolutionOriginal
// and malformed values.
func Dimensions(resolution string) (width, height int, ok bool) {
	w, h, found := strings.Cut(strings.ToLower(resolution), "x")
	if !found {
		return 0, 0, false
	}
	width, errW := strconv.Atoi(w)
	height, errH := strconv.Atoi(h)
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		return 0, 0, false
	}
	return width, height, true
}

func nextInt(options []int, current int) int {
	for i, v := range options {
		if v == current {
			return options[(i+1)%len(options)]
		}
	}
	return options[0]
}

func nextString(options []string, current string) string {
	for i, v := range options {
		if v == current {
			return options[(i+1)%len(options)]
		}
	}
	return options[0]
}

func containsString(options []string, value string) bool {
	for _, v := range options {
		if v == value {
			return true
		}
	}
	return false
}

func intStrings(values []int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Itoa(v)
	}
	return out
}
