package jobs

import (
	"errors"
	"fmt"
	"strings"

	"submux/internal/ffmpeg"
	"submux/internal/services"
)

// State is a job lifecycle stage.
type State string

const (
	StateAwaitingAssets State = "awaiting_assets"
	StateConfiguring    State = "configuring"
	StateWaiting        State = "waiting"
	StateRunning        State = "running"
	StateFinalizing     State = "finalizing"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// Terminal reports whether no further transitions follow.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Mode selects what a job produces.
type Mode string

const (
	ModeSoftMux Mode = "softmux"
	ModeHardMux Mode = "hardmux"
	ModeExtract Mode = "extract"
)

// ParseMode validates a user-supplied mode name.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeSoftMux:
		return ModeSoftMux, nil
	case ModeHardMux:
		return ModeHardMux, nil
	case ModeExtract:
		return ModeExtract, nil
	default:
		return "", services.Wrap(services.ErrValidation, "jobs", "parse mode",
			fmt.Sprintf("unknown mode %q; use softmux, hardmux, or extract", value), nil)
	}
}

// Ext returns the container extension the mode writes.
func (m Mode) Ext() string {
	switch m {
	case ModeHardMux:
		return ffmpeg.HardMuxExt
	case ModeExtract:
		return ffmpeg.ExtractExt
	default:
		return ffmpeg.SoftMuxExt
	}
}

// Label is the user-facing name of the mode.
func (m Mode) Label() string {
	switch m {
	case ModeSoftMux:
		return "Softmux"
	case ModeHardMux:
		return "Hardmux"
	case ModeExtract:
		return "Subtitle extraction"
	default:
		return string(m)
	}
}

// needsSubtitle reports whether the mode consumes the subtitle asset.
func (m Mode) needsSubtitle() bool {
	return m != ModeExtract
}

// ErrJobInProgress is returned when a user already has a running job.
var ErrJobInProgress = fmt.Errorf("%w: a job is already running for this user", services.ErrValidation)

// ErrNoJob is returned when cancelling a user without a running job.
var ErrNoJob = fmt.Errorf("%w: no job is running for this user", services.ErrNotFound)

// MissingAssetsError names the asset kinds a job still needs.
type MissingAssetsError struct {
	Missing []string
}

func (e *MissingAssetsError) Error() string {
	return "missing " + strings.Join(e.Missing, " and ") + "; upload it before starting a job"
}

// Is lets callers match MissingAssetsError as a validation failure.
func (e *MissingAssetsError) Is(target error) bool {
	return target == services.ErrValidation
}

// IsMissingAssets reports whether err is a MissingAssetsError.
func IsMissingAssets(err error) bool {
	var missing *MissingAssetsError
	return errors.As(err, &missing)
}
