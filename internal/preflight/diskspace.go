package preflight

import (
	"fmt"

	"golang.org/x/sys/unix"

	"submux/internal/services"
)

const gib = 1 << 30

// FreeBytes returns the bytes available to unprivileged users on the
// filesystem holding path.
func FreeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// CheckFreeSpace reports whether path has at least minGiB available.
func CheckFreeSpace(name, path string, minGiB int) Result {
	free, err := FreeBytes(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	detail := fmt.Sprintf("%.1f GiB free", float64(free)/gib)
	if minGiB > 0 && free < uint64(minGiB)*gib {
		return Result{Name: name, Detail: fmt.Sprintf("%s (minimum %d GiB)", detail, minGiB)}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// EnsureFreeSpace fails when path has less than minGiB plus need bytes free.
// A non-positive minGiB with zero need always passes.
func EnsureFreeSpace(path string, minGiB int, need int64) error {
	if minGiB <= 0 && need <= 0 {
		return nil
	}
	free, err := FreeBytes(path)
	if err != nil {
		return services.Wrap(services.ErrTransient, "preflight", "free space", "statfs failed", err)
	}
	required := uint64(0)
	if minGiB > 0 {
		required = uint64(minGiB) * gib
	}
	if need > 0 {
		required += uint64(need)
	}
	if free < required {
		return services.Wrap(services.ErrValidation, "preflight", "free space",
			fmt.Sprintf("not enough disk space: %.1f GiB free, %.1f GiB required", float64(free)/gib, float64(required)/gib), nil)
	}
	return nil
}
