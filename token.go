package responsecache

import "net/http"

// TokenSource provides the anti-forgery token of the session making a request.
type TokenSource interface {
	CurrentToken(r *http.Request) string
}

// TokenSourceFunc is an adapter to allow the use of ordinary functions as token sources.
type TokenSourceFunc func(r *http.Request) string

func (f TokenSourceFunc) CurrentToken(r *http.Request) string {
	return f(r)
}

// noToken blanks cached tokens when no source is configured,
// so one session's token is never served to another.
var noToken = TokenSourceFunc(func(*http.Request) string { return "" })
