package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
)

// DefaultPrefix is prepended to every key produced by DefaultHasher.
const DefaultPrefix = "responsecache:"

const (
	fieldSeparator = "\n"
	valueSeparator = "="
)

// Hasher derives the cache key of a request.
//
// Implementations must be deterministic and safe for concurrent use.
type Hasher interface {
	Hash(r *http.Request) string
}

// HasherFunc adapts a function to the Hasher interface.
type HasherFunc func(r *http.Request) string

func (f HasherFunc) Hash(r *http.Request) string {
	return f(r)
}

// DefaultHasher hashes method, path, query and the selected discriminators of a request
// with SHA-256.
type DefaultHasher struct {
	// Prefix of generated keys. DefaultPrefix is used if empty.
	Prefix string
	// Request headers that take part in the key, e.g. `Accept-Language`.
	KeyHeaders []string
	// Optional function returning the identity the response is rendered for,
	// e.g. the authenticated user id. Empty means anonymous.
	Identity func(r *http.Request) string
}

// NewDefaultHasher returns a hasher that includes the given headers in the key.
func NewDefaultHasher(keyHeaders ...string) DefaultHasher {
	return DefaultHasher{KeyHeaders: keyHeaders}
}

// Hash returns the cache key for r.
func (h DefaultHasher) Hash(r *http.Request) string {
	sum := sha256.Sum256([]byte(h.Signature(r)))
	prefix := h.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + hex.EncodeToString(sum[:])
}

// Signature returns the canonical form of the request that Hash digests.
// Requests that are equal under the hasher's settings have equal signatures.
func (h DefaultHasher) Signature(r *http.Request) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(r.Method))
	b.WriteString(fieldSeparator)
	path := r.URL.EscapedPath()
	if path == "" {
		path = "/"
	}
	b.WriteString(path)
	b.WriteString(fieldSeparator)
	b.WriteString(canonicalQuery(r.URL.RawQuery))
	for _, name := range sortedHeaderNames(h.KeyHeaders) {
		b.WriteString(fieldSeparator)
		b.WriteString(name)
		b.WriteString(valueSeparator)
		b.WriteString(strings.Join(r.Header.Values(name), ","))
	}
	if h.Identity != nil {
		b.WriteString(fieldSeparator)
		b.WriteString("identity")
		b.WriteString(valueSeparator)
		b.WriteString(h.Identity(r))
	}
	return b.String()
}

// canonicalQuery sorts the query by parameter name.
// Values of a repeated parameter keep their order, since it may be meaningful.
// A query that cannot be parsed is used verbatim.
func canonicalQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return rawQuery
	}
	return values.Encode()
}

func sortedHeaderNames(names []string) []string {
	sorted := make([]string, 0, len(names))
	for _, name := range names {
		sorted = append(sorted, textproto.CanonicalMIMEHeaderKey(name))
	}
	sort.Strings(sorted)
	return sorted
}

var _ Hasher = DefaultHasher{}
