// Package privacy scrubs credentials and identifying URL parts from text
// that leaves the process: logs, alerts and error reports.
package privacy

import (
	"net/url"
	"regexp"
	"strings"
)

// Redacted replaces removed URL parts.
const Redacted = "[REDACTED]"

var urlPattern = regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9+.-]*://[^\s"'<>]+`)

// ScrubMessage replaces every URL in message with its RedactURL form.
func ScrubMessage(message string) string {
	if !strings.Contains(message, "://") {
		return message
	}
	return urlPattern.ReplaceAllStringFunc(message, func(m string) string {
		if strings.HasSuffix(m, "://"+Redacted) {
			return m
		}
		return RedactURL(m)
	})
}

// RedactURL keeps scheme, host and port. Credentials, path and query are
// replaced, since service URLs often carry tokens in any of them.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return Redacted
	}

	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	if u.User != nil {
		b.WriteString(Redacted)
		b.WriteByte('@')
	}
	b.WriteString(u.Host)
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Opaque != "" {
		b.WriteString("/" + Redacted)
	}
	return b.String()
}

// StripCredentials removes only the userinfo part of raw. Use it for
// endpoints like broker URLs where the path is useful and not secret.
func StripCredentials(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return Redacted
	}
	if u.User == nil {
		return raw
	}
	u.User = nil
	return u.String()
}
