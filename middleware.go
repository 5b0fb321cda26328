package responsecache

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/always-cache/response-cache/cache"
	responsesaver "github.com/always-cache/response-cache/pkg/response-saver"
)

// Middleware serves cached responses for next and caches its responses.
// The optional lifetime overrides the profile's lifetime for every response
// stored by this middleware.
//
// Cache failures are logged and never change what the client receives.
func (rc *ResponseCache) Middleware(next http.Handler, lifetime ...time.Duration) http.Handler {
	var override time.Duration
	if len(lifetime) > 0 {
		override = lifetime[0]
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(NewContext(r.Context()))
		log := rc.log.With().Str("method", r.Method).Str("path", r.URL.Path).Logger()

		var cacheStatus CacheStatus

		if !rc.Enabled(r) {
			cacheStatus.Forward(CacheStatusFwdBypass)
			w.Header().Set("Cache-Status", cacheStatus.String())
			next.ServeHTTP(w, r)
			return
		}

		cached, err := rc.HasBeenCached(r.Context(), r)
		if err != nil {
			log.Error().Err(err).Msg("Could not query cache")
		}
		if cached {
			res, err := rc.CachedResponseFor(r.Context(), r)
			if err == nil {
				rc.metrics.hit()
				log.Trace().Msg("Serving cached response")
				cacheStatus.Hit()
				send(w, res, cacheStatus)
				return
			}
			// expired or evicted since the check
			if !errors.Is(err, cache.ErrNotFound) {
				log.Error().Err(err).Msg("Could not get cached response")
			}
		}
		rc.metrics.miss()

		if !rc.profile.ShouldCacheRequest(r) {
			cacheStatus.Forward(CacheStatusFwdMethod)
			w.Header().Set("Cache-Status", cacheStatus.String())
			next.ServeHTTP(w, r)
			return
		}

		cacheStatus.Forward(CacheStatusFwdUriMiss)
		saver := responsesaver.NewResponseSaver()
		next.ServeHTTP(saver, r)
		res := saver.Response(r)

		if rc.ShouldCache(r, res) {
			decorated, err := rc.CacheResponse(r.Context(), r, res, override)
			if err != nil {
				log.Error().Err(err).Msg("Could not cache response")
				if decorated == nil {
					res = saver.Response(r)
				} else {
					res = decorated
				}
			} else {
				cacheStatus.Stored()
				res = decorated
			}
		}
		send(w, res, cacheStatus)
	})
}

// send writes res to the client.
func send(w http.ResponseWriter, res *http.Response, status CacheStatus) {
	if res.Body != nil {
		defer res.Body.Close()
	}
	copyHeader(w.Header(), res.Header)
	w.Header().Set("Cache-Status", status.String())
	w.WriteHeader(res.StatusCode)
	if res.Body != nil {
		io.Copy(w, res.Body)
	}
}

// copyHeader replaces the fields of dst that src carries.
func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		dst[k] = append([]string(nil), vv...)
	}
}

// Handler returns Middleware as a constructor, for routers such as chi.
func (rc *ResponseCache) Handler(lifetime ...time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return rc.Middleware(next, lifetime...)
	}
}
