package logging

import (
	"log/slog"
	"net/url"
	"strings"
)

// RedactedURL wraps a url.URL for logging without exposing credentials or
// api keys carried in the query string
type RedactedURL struct {
	url *url.URL
}

// LogValue implements slog.LogValuer
func (u RedactedURL) LogValue() slog.Value {
	if u.url == nil {
		return slog.StringValue("")
	}
	clone := *u.url
	if q := clone.Query(); q.Has("apikey") {
		q.Set("apikey", "xxxxx")
		clone.RawQuery = q.Encode()
	}
	return slog.StringValue(clone.Redacted())
}

// RedactURL returns a safely loggable URL value
func RedactURL(u *url.URL) RedactedURL {
	return RedactedURL{url: u}
}

// MaskedEmail logs only the first character of the local part
type MaskedEmail string

// LogValue implements slog.LogValuer
func (e MaskedEmail) LogValue() slog.Value {
	local, domain, ok := strings.Cut(string(e), "@")
	if !ok || local == "" {
		return slog.StringValue("***")
	}
	return slog.StringValue(local[:1] + "***@" + domain)
}
