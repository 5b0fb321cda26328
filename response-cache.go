// Package responsecache caches full HTTP responses of an application and
// rewrites the anti-forgery token in cached pages for the session being served.
package responsecache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/always-cache/response-cache/cache"
	cachekey "github.com/always-cache/response-cache/pkg/cache-key"
	cacheprofile "github.com/always-cache/response-cache/pkg/cache-profile"
	tokenrewriter "github.com/always-cache/response-cache/pkg/token-rewriter"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultCacheTimeHeaderName is the name of the header recording when a response was cached.
	DefaultCacheTimeHeaderName = "Response-Cache"
	cacheTimeLayout            = "2006-01-02 15:04:05"
)

type Config struct {
	// Storage for cache entries. An in-memory LRU is used if nil.
	Store cache.Store
	// Derives cache keys. cachekey.NewDefaultHasher() if nil.
	Hasher cachekey.Hasher
	// Decides what is cached and for how long.
	// The default profile, enabled, is used if nil.
	Profile cacheprofile.Profile
	// Current anti-forgery token of the requesting session.
	// Tokens in cached pages are blanked if nil.
	Tokens TokenSource
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
	// Add a header recording when the response was cached.
	AddCacheTimeHeader bool
	// Name of that header. DefaultCacheTimeHeaderName if empty.
	CacheTimeHeaderName string
	// Optional counters.
	Metrics *Metrics
}

type ResponseCache struct {
	store          cache.Store
	hasher         cachekey.Hasher
	profile        cacheprofile.Profile
	tokens         TokenSource
	log            zerolog.Logger
	addTimeHeader  bool
	timeHeaderName string
	metrics        *Metrics
	now            func() time.Time
}

// New creates the response cache from config, filling in defaults.
func New(config Config) *ResponseCache {
	logger := log.Logger
	if config.Logger != nil {
		logger = *config.Logger
	}
	rc := &ResponseCache{
		store:          config.Store,
		hasher:         config.Hasher,
		profile:        config.Profile,
		tokens:         config.Tokens,
		log:            logger.With().Str("component", "responsecache").Logger(),
		addTimeHeader:  config.AddCacheTimeHeader,
		timeHeaderName: config.CacheTimeHeaderName,
		metrics:        config.Metrics,
		now:            time.Now,
	}
	if rc.store == nil {
		rc.store = cache.NewMemCache(cache.DefaultMaxEntries)
	}
	if rc.hasher == nil {
		rc.hasher = cachekey.NewDefaultHasher()
	}
	if rc.profile == nil {
		rc.profile = cacheprofile.New(cacheprofile.Options{Enabled: true})
	}
	if rc.tokens == nil {
		rc.tokens = noToken
	}
	if rc.timeHeaderName == "" {
		rc.timeHeaderName = DefaultCacheTimeHeaderName
	}
	return rc
}

// Enabled reports whether the cache handles the request at all.
func (rc *ResponseCache) Enabled(r *http.Request) bool {
	return rc.profile.Enabled(r)
}

// ShouldCache reports whether res, the response to r, is to be stored.
// A request marked with DoNotCache is never stored.
func (rc *ResponseCache) ShouldCache(r *http.Request, res *http.Response) bool {
	if IsDoNotCache(r) {
		return false
	}
	return rc.profile.ShouldCacheRequest(r) && rc.profile.ShouldCacheResponse(res)
}

// HasBeenCached reports whether a live response for r is stored.
// It is always false when caching is disabled for r.
// Store failures are returned wrapping cache.ErrUnavailable.
func (rc *ResponseCache) HasBeenCached(ctx context.Context, r *http.Request) (bool, error) {
	if !rc.Enabled(r) {
		return false, nil
	}
	key := rc.hasher.Hash(r)
	has, err := rc.store.Has(ctx, key)
	if err != nil {
		rc.metrics.storeError("has")
		return false, fmt.Errorf("has %s: %w", key, err)
	}
	return has, nil
}

// CachedResponseFor returns the stored response for r with the anti-forgery
// token replaced by the current session's token.
// The stored entry itself is not modified.
// It returns an error wrapping cache.ErrNotFound on a miss.
func (rc *ResponseCache) CachedResponseFor(ctx context.Context, r *http.Request) (*http.Response, error) {
	key := rc.hasher.Hash(r)
	entry, err := rc.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			rc.metrics.storeError("get")
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	body := tokenrewriter.RewriteBytes(entry.Body, rc.tokens.CurrentToken(r))
	header := entry.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	// the token of another session may differ in length
	if r.Method != http.MethodHead && header.Get("Content-Length") != "" {
		header.Set("Content-Length", strconv.Itoa(len(body)))
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", entry.Status, http.StatusText(entry.Status)),
		StatusCode:    entry.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       r,
	}, nil
}

// CacheResponse stores res as the response to r and returns the response
// to send to the client, carrying the cache time header if configured.
// A positive lifetime overrides the profile's lifetime, and a lifetime set
// with SetLifetime overrides both.
// The body of res is read completely. The returned response is usable even
// when storing fails.
func (rc *ResponseCache) CacheResponse(ctx context.Context, r *http.Request, res *http.Response, lifetime time.Duration) (*http.Response, error) {
	var body []byte
	if res.Body != nil {
		var err error
		body, err = io.ReadAll(res.Body)
		res.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
	}

	storedAt := rc.now()
	decorated := *res
	decorated.Header = res.Header.Clone()
	if decorated.Header == nil {
		decorated.Header = http.Header{}
	}
	if rc.addTimeHeader {
		decorated.Header.Set(rc.timeHeaderName, "cached on "+storedAt.Format(cacheTimeLayout))
	}
	decorated.Body = io.NopCloser(bytes.NewReader(body))
	decorated.ContentLength = int64(len(body))

	if override := Lifetime(r); override > 0 {
		lifetime = override
	}
	ttl := cacheprofile.EffectiveLifetime(rc.profile.CacheRequestUntil(r), lifetime)

	key := rc.hasher.Hash(r)
	entry := cache.Entry{
		Status:   res.StatusCode,
		Header:   decorated.Header.Clone(),
		Body:     body,
		StoredAt: storedAt,
	}
	if err := rc.store.Put(ctx, key, entry, ttl); err != nil {
		rc.metrics.storeError("put")
		return &decorated, fmt.Errorf("put %s: %w", key, err)
	}
	rc.metrics.stored()
	rc.log.Debug().Str("key", key).Str("url", r.URL.String()).Dur("ttl", ttl).Msg("Stored response")
	return &decorated, nil
}

// Flush removes every cached response.
func (rc *ResponseCache) Flush(ctx context.Context) error {
	if err := rc.store.Flush(ctx); err != nil {
		rc.metrics.storeError("flush")
		return fmt.Errorf("flush: %w", err)
	}
	rc.metrics.flushed()
	rc.log.Info().Msg("Flushed cache")
	return nil
}
