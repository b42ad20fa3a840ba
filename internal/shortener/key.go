package shortener

import (
	"regexp"
	"strings"
)

var schemePrefix = regexp.MustCompile(`^https?://(www\.)?`)

// ParseKey extracts a key from user input that may be a full short URL:
// the base URL, scheme and "www." prefix are removed, then surrounding
// whitespace and slashes.
func ParseKey(raw, baseURL string) Key {
	s := strings.TrimSpace(raw)

	base := strings.TrimRight(baseURL, "/")
	if base != "" && (s == base || strings.HasPrefix(s, base+"/")) {
		s = strings.TrimPrefix(s, base)
	}

	s = schemePrefix.ReplaceAllString(s, "")

	if host := schemePrefix.ReplaceAllString(base, ""); host != "" && (s == host || strings.HasPrefix(s, host+"/")) {
		s = strings.TrimPrefix(s, host)
	}

	return Key(strings.Trim(s, " /"))
}

// ShortURL joins baseURL and key.
func ShortURL(baseURL string, key Key) string {
	return strings.TrimRight(baseURL, "/") + "/" + string(key)
}
