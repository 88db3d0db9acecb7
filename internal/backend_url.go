package internal

import (
	"fmt"
	"net/url"
	"strings"
)

// BackendURL is a configured base address for the REST backend or the push stream.
type BackendURL struct {
	Raw string
}

// Base returns the address without trailing slashes so paths can be appended.
func (u BackendURL) Base() string {
	return strings.TrimRight(strings.TrimSpace(u.Raw), "/")
}

// Join appends path to the base address.
func (u BackendURL) Join(path string) string {
	if path == "" {
		return u.Base()
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return u.Base() + path
}

// Origin returns the http(s) origin matching a ws(s) address. The websocket handshake
// needs one.
func (u BackendURL) Origin() (string, error) {
	parsed, err := url.Parse(u.Base())
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "ws", "http":
		parsed.Scheme = "http"
	case "wss", "https":
		parsed.Scheme = "https"
	default:
		return "", fmt.Errorf("unsupported scheme %q in %s", parsed.Scheme, u.Raw)
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}

// StreamURL returns the ws(s) handshake address carrying the stream credentials. http(s)
// addresses are converted to their ws(s) equivalents.
func (u BackendURL) StreamURL(path, userID, token string) (string, error) {
	parsed, err := url.Parse(u.Join(path))
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "ws", "wss":
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q in %s", parsed.Scheme, u.Raw)
	}
	q := parsed.Query()
	q.Set("userId", userID)
	q.Set("token", token)
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}
