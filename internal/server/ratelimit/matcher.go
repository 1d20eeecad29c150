package ratelimit

import (
	"strings"
)

// MatchEndpoint returns the first config whose method and pattern match the
// request, or nil. GET /health is never limited.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if path == "/health" && method == "GET" {
		return &EndpointConfig{Pattern: "/health", Method: method}
	}

	segments := splitPath(path)
	for i := range configs {
		c := &configs[i]
		if c.Method == method && matchSegments(splitPath(c.Pattern), segments) {
			return c
		}
	}
	return nil
}

func splitPath(p string) []string {
	return strings.Split(strings.Trim(p, "/"), "/")
}

func matchSegments(pattern, segments []string) bool {
	if len(pattern) != len(segments) {
		return false
	}
	for i, p := range pattern {
		if p != "*" && p != segments[i] {
			return false
		}
	}
	return true
}
