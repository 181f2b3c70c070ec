package gate

import (
	"strings"

	"golang.org/x/exp/slices"
)

var (
	excludedPrefixes   = []string{"/_next/static", "/_next/image", "/static/", "/favicon.ico"}
	excludedExtensions = []string{".svg", ".png", ".jpg", ".jpeg", ".gif", ".webp"}
)

// Excluded reports whether path bypasses the gate entirely: asset
// directories, the favicon and image files
func Excluded(path string) bool {
	if slices.ContainsFunc(excludedPrefixes, func(p string) bool { return strings.HasPrefix(path, p) }) {
		return true
	}
	return slices.ContainsFunc(excludedExtensions, func(ext string) bool { return strings.HasSuffix(path, ext) })
}
