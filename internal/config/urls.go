package config

import (
	"fmt"
	"net/url"
)

// SessionURL builds the websocket endpoint for a session id.
func (c *Config) SessionURL(sessionID string) string {
	scheme := "ws"
	if c.Server.TLS {
		scheme = "wss"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port),
		Path:   "/ws/" + sessionID,
	}
	return u.String()
}

// NormalizeWSURL rewrites http(s) schemes to their websocket
// equivalents and validates the URL. Explicit ws/wss URLs pass through.
func NormalizeWSURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid websocket URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	return u.String(), nil
}
