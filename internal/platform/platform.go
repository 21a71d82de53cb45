// Package platform identifies the host platform and derives the path and
// write capabilities the store depends on.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Family is a host platform family.
type Family string

// Known platform families.
const (
	Linux   Family = "linux"
	Darwin  Family = "darwin"
	Windows Family = "windows"
	Android Family = "android"
	IOS     Family = "ios"
	Other   Family = "other"
)

// Environment overrides read by Detect.
const (
	EnvFamily  = "DIRKV_PLATFORM"
	EnvVersion = "DIRKV_PLATFORM_VERSION"
)

// OverwriteQuirkMinVersion is the first Android API level whose
// overwrite-in-place write path leaves stale trailing bytes behind.
const OverwriteQuirkMinVersion = 29

// Identity is the platform family and OS version number.
type Identity struct {
	Family  Family
	Version int
}

// Capabilities are the platform-dependent behaviours of the store,
// resolved once from an Identity.
type Capabilities struct {
	// Separator joins path segments.
	Separator string

	// LeadingSeparator prefixes normalized paths with Separator. Platforms
	// with drive-letter roots take the root from the first segment instead.
	LeadingSeparator bool

	// DeleteBeforeWrite removes an entry before overwriting it.
	DeleteBeforeWrite bool
}

// Detect returns the identity of the running host. EnvFamily and
// EnvVersion override the detected values.
func Detect() Identity {
	id := Identity{Family: ParseFamily(runtime.GOOS)}
	if v := os.Getenv(EnvFamily); v != "" {
		id.Family = ParseFamily(v)
	}
	if v := os.Getenv(EnvVersion); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			id.Version = n
		}
	}
	return id
}

// ParseFamily maps a GOOS-style name to a Family.
func ParseFamily(name string) Family {
	switch f := Family(strings.ToLower(strings.TrimSpace(name))); f {
	case Linux, Darwin, Windows, Android, IOS:
		return f
	case "macos":
		return Darwin
	default:
		return Other
	}
}

// Capabilities resolves the capabilities of id.
func (id Identity) Capabilities() Capabilities {
	caps := Capabilities{
		Separator:        "/",
		LeadingSeparator: true,
	}
	if id.Family == Windows {
		caps.Separator = `\`
		caps.LeadingSeparator = false
	}
	caps.DeleteBeforeWrite = id.RequiresDeleteBeforeWrite()
	return caps
}

// RequiresDeleteBeforeWrite reports whether overwrites on this platform
// must remove the existing file first.
func (id Identity) RequiresDeleteBeforeWrite() bool {
	return id.Family == Android && id.Version >= OverwriteQuirkMinVersion
}

func (id Identity) String() string {
	if id.Version == 0 {
		return string(id.Family)
	}
	return string(id.Family) + " " + strconv.Itoa(id.Version)
}

// DocumentDir returns the user's document storage root (~/Documents).
func DocumentDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Documents"), nil
}

// CacheDir returns the user's cache root.
func CacheDir() (string, error) {
	return os.UserCacheDir()
}
