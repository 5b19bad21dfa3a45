package domain

import (
	"fmt"
	"runtime"
	"strings"
)

// OperatingSystem is the platform tag rules are bound to.
type OperatingSystem string

// OSLinux and related constants list the supported platform tags.
const (
	OSLinux   OperatingSystem = "linux"
	OSWindows OperatingSystem = "win32"
	OSDarwin  OperatingSystem = "darwin"
)

// SupportedOperatingSystems returns every known platform tag in canonical order.
func SupportedOperatingSystems() []OperatingSystem {
	return []OperatingSystem{OSLinux, OSWindows, OSDarwin}
}

// ParseOperatingSystem normalizes a user-supplied platform tag.
func ParseOperatingSystem(raw string) (OperatingSystem, error) {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "linux":
		return OSLinux, nil
	case "win32", "windows":
		return OSWindows, nil
	case "darwin", "macos":
		return OSDarwin, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOperatingSystem, raw)
	}
}

// OperatingSystemFromGOOS maps a runtime.GOOS value onto a platform tag.
func OperatingSystemFromGOOS(goos string) (OperatingSystem, error) {
	return ParseOperatingSystem(goos)
}

// CurrentOperatingSystem returns the platform tag of the running process.
func CurrentOperatingSystem() (OperatingSystem, error) {
	return OperatingSystemFromGOOS(runtime.GOOS)
}
