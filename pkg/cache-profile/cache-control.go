package cacheprofile

import (
	"net/http"
	"strings"
)

// CacheControl holds parsed Cache-Control directives.
//
// Directive names are compared case-insensitively and may carry an argument
// in token or quoted-string form (RFC 9111 §5.2).
type CacheControl struct {
	directives map[string]string
}

func (c CacheControl) Get(directive string) (string, bool) {
	val, ok := c.directives[strings.ToLower(directive)]
	return val, ok
}

func (c CacheControl) HasDirective(directive string) bool {
	_, ok := c.Get(directive)
	return ok
}

// ParseCacheControl takes Cache-Control header values and returns an instance of `CacheControl`.
// The last occurrence of a directive wins.
func ParseCacheControl(headers []string) CacheControl {
	m := make(map[string]string)
	for _, header := range headers {
		for _, directive := range strings.Split(header, ",") {
			directive = strings.TrimSpace(directive)
			if directive == "" {
				continue
			}
			name, arg, _ := strings.Cut(directive, "=")
			m[strings.ToLower(strings.TrimSpace(name))] = strings.Trim(strings.TrimSpace(arg), `"`)
		}
	}
	return CacheControl{m}
}

func cacheControlOf(header http.Header) CacheControl {
	return ParseCacheControl(header.Values("Cache-Control"))
}
