package util

import "strings"

func OrElse(a, b string) string {
	if a == "" {
		return b
	}
	return a
}

// IsTruthy accepts 1, true, yes and on in any case.
func IsTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on", "y", "t":
		return true
	default:
		return false
	}
}
