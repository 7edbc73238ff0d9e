package testutil

import "strings"

// pathSegment returns the i-th slash-separated segment of a URL path.
func pathSegment(path string, i int) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if i < 0 || i >= len(parts) {
		return ""
	}
	return parts[i]
}

// pathSuffix returns the trailing one or two segments used for route matching
// (e.g. "channels" or "messages/send").
func pathSuffix(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 2 && parts[len(parts)-2] == "messages" {
		return "messages/send"
	}
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}
