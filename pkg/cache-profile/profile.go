// Package cacheprofile decides what gets cached and for how long.
package cacheprofile

import (
	"net/http"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultLifetime is used when no lifetime is configured.
const DefaultLifetime = 7 * 24 * time.Hour

// Profile is the pluggable caching policy.
//
// All methods must be pure functions of their arguments and the profile's
// configuration, safe for concurrent use.
type Profile interface {
	// Enabled reports whether caching is switched on for the request at all.
	Enabled(r *http.Request) bool
	// ShouldCacheRequest reports whether responses to the request may be cached.
	ShouldCacheRequest(r *http.Request) bool
	// ShouldCacheResponse reports whether the response may be stored.
	// The response body, if any, is fully read into memory.
	ShouldCacheResponse(res *http.Response) bool
	// CacheRequestUntil returns the lifetime of the response to the request.
	CacheRequestUntil(r *http.Request) time.Duration
}

// Options configure CacheSuccessfulGetRequests.
type Options struct {
	Enabled bool
	// Doublestar patterns of paths for which caching is switched off.
	DisabledPaths []string
	// Doublestar patterns of paths that are never cached.
	ExcludePaths []string
	// Cache requests carrying an Authorization header.
	// Combine with an identity-aware hasher.
	CacheAuthorized bool
	// Cache 3xx responses.
	CacheRedirects bool
	// Cache responses that set cookies.
	AllowSetCookie bool
	// Responses with larger bodies are not cached. Zero means no limit.
	MaxBodySize int64
	// Lifetime when no rule matches. DefaultLifetime if zero.
	DefaultLifetime time.Duration
	// Upper bound for any lifetime. Zero means no limit.
	MaxLifetime time.Duration
	Rules       Rules
}

// CacheSuccessfulGetRequests caches successful responses to GET and HEAD requests.
type CacheSuccessfulGetRequests struct {
	opts Options
}

// New returns the default profile.
func New(opts Options) CacheSuccessfulGetRequests {
	if opts.DefaultLifetime <= 0 {
		opts.DefaultLifetime = DefaultLifetime
	}
	return CacheSuccessfulGetRequests{opts}
}

func (p CacheSuccessfulGetRequests) Enabled(r *http.Request) bool {
	if !p.opts.Enabled {
		return false
	}
	return !matchAny(p.opts.DisabledPaths, r.URL.Path)
}

func (p CacheSuccessfulGetRequests) ShouldCacheRequest(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	if cacheControlOf(r.Header).HasDirective("no-store") {
		return false
	}
	if !p.opts.CacheAuthorized && r.Header.Get("Authorization") != "" {
		return false
	}
	return !matchAny(p.opts.ExcludePaths, r.URL.Path)
}

func (p CacheSuccessfulGetRequests) ShouldCacheResponse(res *http.Response) bool {
	if !p.successful(res.StatusCode) {
		return false
	}
	cc := cacheControlOf(res.Header)
	if cc.HasDirective("no-store") || cc.HasDirective("private") {
		return false
	}
	if !p.opts.AllowSetCookie && len(res.Header.Values("Set-Cookie")) > 0 {
		return false
	}
	if p.opts.MaxBodySize > 0 && res.ContentLength > p.opts.MaxBodySize {
		return false
	}
	return true
}

func (p CacheSuccessfulGetRequests) successful(status int) bool {
	if status >= 200 && status < 300 {
		return true
	}
	return p.opts.CacheRedirects && status >= 300 && status < 400 && status != http.StatusNotModified
}

func (p CacheSuccessfulGetRequests) CacheRequestUntil(r *http.Request) time.Duration {
	lifetime := p.opts.DefaultLifetime
	if ruleLifetime, ok := p.opts.Rules.Lifetime(r); ok && ruleLifetime > 0 {
		lifetime = ruleLifetime
	}
	return clamp(lifetime, p.opts.MaxLifetime)
}

// EffectiveLifetime returns the lifetime to store a response with.
// A positive override wins over the profile's lifetime.
func EffectiveLifetime(profileLifetime, override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return profileLifetime
}

func clamp(lifetime, max time.Duration) time.Duration {
	if max > 0 && lifetime > max {
		return max
	}
	return lifetime
}

func matchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, path); matched {
			return true
		}
	}
	return false
}

var _ Profile = CacheSuccessfulGetRequests{}
