package avatar

import (
	"path/filepath"
	"strings"
)

// Key identifies one avatar resource. It is the normalized form of the path or URL an
// instance was created with, so every instance backed by the same file shares one Key.
type Key string

// NewKey normalizes a resource reference.
// Surrounding whitespace is trimmed, file:// URLs become local paths, other URLs are kept
// verbatim and local paths are cleaned.
//
// Parameters:
//   - ref: a local path or URL
//
// Returns:
//   - Key: the normalized key
func NewKey(ref string) Key {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if local, ok := strings.CutPrefix(ref, "file://"); ok {
		return Key(filepath.Clean(local))
	}
	if strings.Contains(ref, "://") {
		return Key(ref)
	}
	return Key(filepath.Clean(ref))
}

// IsRemote reports whether the key refers to a URL rather than a local file.
func (k Key) IsRemote() bool {
	return strings.Contains(string(k), "://")
}

// Ext returns the lowercase file extension of the key, including the dot.
func (k Key) Ext() string {
	return strings.ToLower(filepath.Ext(string(k)))
}

// String returns the key as a string.
func (k Key) String() string {
	return string(k)
}
