package responsecache

import (
	"context"
	"net/http"
	"time"
)

type ctxKey int

const requestInfoKey ctxKey = 0

// requestInfo carries per-request decisions made by the application.
type requestInfo struct {
	doNotCache bool
	lifetime   time.Duration
}

// NewContext returns a context carrying a fresh set of request flags.
// If the parent already carries flags they are kept.
// Middleware does this before calling the application.
func NewContext(parent context.Context) context.Context {
	if _, ok := fromContext(parent); ok {
		return parent
	}
	return newContext(parent, &requestInfo{})
}

// DoNotCache marks the request so that its response is not stored,
// regardless of the profile's decision.
func DoNotCache(r *http.Request) {
	if info, ok := fromContext(r.Context()); ok {
		info.doNotCache = true
	}
}

// IsDoNotCache reports whether DoNotCache was called for the request.
func IsDoNotCache(r *http.Request) bool {
	if info, ok := fromContext(r.Context()); ok {
		return info.doNotCache
	}
	return false
}

// SetLifetime overrides the lifetime used when the response to r is stored.
func SetLifetime(r *http.Request, lifetime time.Duration) {
	if info, ok := fromContext(r.Context()); ok {
		info.lifetime = lifetime
	}
}

// Lifetime returns the lifetime set with SetLifetime, or zero.
func Lifetime(r *http.Request) time.Duration {
	if info, ok := fromContext(r.Context()); ok {
		return info.lifetime
	}
	return 0
}

func fromContext(ctx context.Context) (info *requestInfo, ok bool) {
	if val := ctx.Value(requestInfoKey); val != nil {
		info, ok = val.(*requestInfo)
	}
	return
}

func newContext(ctx context.Context, info *requestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey, info)
}
