package scanner

import (
	"net/url"
	"strings"
)

// IsLink reports whether content is an absolute http or https URL.
func IsLink(content string) bool {
	u, err := url.Parse(strings.TrimSpace(content))
	if err != nil || u.Host == "" {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return true
	}
	return false
}
