package sourcemap

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	schemePrefix  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*:`)
	windowsAbs    = regexp.MustCompile(`^[a-zA-Z]:[\\/]`)
	errNotDataURL = errors.New("not a data URL")
)

// IsDataURL reports whether u is an inline data: URL.
func IsDataURL(u string) bool {
	return len(u) >= 5 && strings.EqualFold(u[:5], "data:")
}

// IsRequestable reports whether u can be loaded as a file request.
// Absolute URLs with a scheme and protocol-relative URLs cannot.
func IsRequestable(u string) bool {
	if u == "" || IsDataURL(u) {
		return false
	}
	if windowsAbs.MatchString(u) {
		return true
	}
	if schemePrefix.MatchString(u) {
		return false
	}
	if strings.HasPrefix(u, "//") || strings.HasPrefix(u, "#") {
		return false
	}
	return true
}

// ToRequest converts a sourceMappingURL into a resolvable request. "~name"
// becomes a module request, absolute and explicit relative paths are kept,
// and anything else is made relative with "./".
func ToRequest(u string) string {
	switch {
	case strings.HasPrefix(u, "~"):
		return strings.TrimPrefix(u, "~")
	case windowsAbs.MatchString(u), strings.HasPrefix(u, "/"):
		return u
	case strings.HasPrefix(u, "./"), strings.HasPrefix(u, "../"):
		return u
	default:
		return "./" + u
	}
}

// DecodeDataURL returns the payload of a data: URL.
func DecodeDataURL(u string) ([]byte, error) {
	if !IsDataURL(u) {
		return nil, errNotDataURL
	}
	meta, payload, ok := strings.Cut(u[len("data:"):], ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URL: missing ','")
	}

	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
		if err != nil {
			return nil, fmt.Errorf("malformed data URL: %w", err)
		}
		return data, nil
	}

	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("malformed data URL: %w", err)
	}
	return []byte(text), nil
}

// EncodeDataURL returns data as a base64 JSON data: URL.
func EncodeDataURL(data []byte) string {
	return "data:application/json;charset=utf-8;base64," + base64.StdEncoding.EncodeToString(data)
}
