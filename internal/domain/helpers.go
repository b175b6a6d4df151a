package domain

import "strings"

// Extensions lists the archive suffixes treated as ZIP-based Android packages.
func Extensions() []string {
	return []string{".apks", ".xapk", ".apk", ".aab", ".jar", ".zip"}
}

func IsRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
