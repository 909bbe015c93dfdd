package circuitbreaker

import "strings"

// NameFromPath derives the breaker name from the first two path
// segments, giving a coarse per-route granularity: "/api/users/123"
// maps to "api-users". A bare path maps to "root".
func NameFromPath(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "root"
	}

	segments := strings.Split(trimmed, "/")
	if len(segments) == 1 {
		return segments[0]
	}

	return segments[0] + "-" + segments[1]
}
