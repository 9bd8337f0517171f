package core

import "fmt"

// Mode selects which variant of a dataset is read and referenced.
type Mode string

const (
	// ModeDistorted uses the reconstruction computed on the original images.
	ModeDistorted Mode = "distorted"
	// ModeUndistorted uses the reconstruction and images produced by undistortion.
	ModeUndistorted Mode = "undistorted"
)

// ModeFor maps the --undistorted switch to a Mode.
func ModeFor(undistorted bool) Mode {
	if undistorted {
		return ModeUndistorted
	}
	return ModeDistorted
}

// ParseMode accepts "distorted" or "undistorted".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDistorted, ModeUndistorted:
		return Mode(s), nil
	default:
		return "", NewInvalidArgumentError("mode", fmt.Sprintf("unknown dataset mode %q", s))
	}
}
