package kvstore

import (
	"strings"

	"github.com/princespaghetti/dirkv/internal/platform"
)

// forbiddenKeyChars are replaced with '_' when a key becomes a filename.
const forbiddenKeyChars = `;\/:*?"<>|&'`

var keySanitizer = func() *strings.Replacer {
	pairs := make([]string, 0, 2*len(forbiddenKeyChars))
	for _, c := range forbiddenKeyChars {
		pairs = append(pairs, string(c), "_")
	}
	return strings.NewReplacer(pairs...)
}()

// Resolver builds canonical absolute paths for one platform convention.
type Resolver struct {
	sep     string
	leading bool
}

// NewResolver returns a Resolver using the separator and root-prefix rule
// from caps.
func NewResolver(caps platform.Capabilities) *Resolver {
	sep := caps.Separator
	if sep == "" {
		sep = "/"
	}
	return &Resolver{sep: sep, leading: caps.LeadingSeparator}
}

// Separator returns the path separator in use.
func (r *Resolver) Separator() string {
	return r.sep
}

// Normalize joins segments into one path, dropping empty and "." parts.
// ".." is kept as-is.
func (r *Resolver) Normalize(segments ...string) string {
	parts := strings.Split(strings.Join(segments, r.sep), r.sep)
	kept := parts[:0]
	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}
		kept = append(kept, p)
	}
	joined := strings.Join(kept, r.sep)
	if r.leading {
		return r.sep + joined
	}
	return joined
}

// PathForKey returns the entry path of key under baseFolder.
func (r *Resolver) PathForKey(baseFolder, key string) string {
	return r.Normalize(baseFolder, SanitizeKey(key))
}

// SanitizeKey replaces every filesystem-unsafe character of key with '_'.
// Keys that differ only in those characters share a filename.
func SanitizeKey(key string) string {
	return keySanitizer.Replace(key)
}
