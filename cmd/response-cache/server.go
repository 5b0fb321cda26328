package main

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"time"

	responsecache "github.com/always-cache/response-cache"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const sessionCookie = "session"

type sessionKey struct{}

// sessions gives every client a session cookie. The session id doubles as the
// anti-forgery token of the demo application.
func sessions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if c, err := r.Cookie(sessionCookie); err == nil {
			if _, err := uuid.Parse(c.Value); err == nil {
				token = c.Value
			}
		}
		if token == "" {
			token = uuid.NewString()
			http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: token, Path: "/", HttpOnly: true})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, token)))
	})
}

func sessionToken(r *http.Request) string {
	token, _ := r.Context().Value(sessionKey{}).(string)
	return token
}

var sessionTokens = responsecache.TokenSourceFunc(sessionToken)

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head><meta name="csrf-token" content="{{.Token}}"><title>{{.Title}}</title></head>
<body>
<p>Rendered at {{.Rendered}}</p>
<form method="post" action="/contact">
<input type="hidden" name="_token" value="{{.Token}}">
<input name="message"><button>Send</button>
</form>
</body>
</html>
`))

func renderPage(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err := page.Execute(w, map[string]string{
			"Title":    title,
			"Token":    sessionToken(r),
			"Rendered": time.Now().Format(time.RFC3339),
		})
		if err != nil {
			log.Error().Err(err).Msg("Could not render page")
		}
	}
}

func contact(w http.ResponseWriter, r *http.Request) {
	if r.PostFormValue("_token") != sessionToken(r) {
		http.Error(w, "Token mismatch", http.StatusForbidden)
		return
	}
	fmt.Fprintf(w, "Thanks for your message")
}

func newRouter(rc *responsecache.ResponseCache) http.Handler {
	r := chi.NewRouter()
	r.Use(sessions)

	r.Group(func(r chi.Router) {
		r.Use(rc.Handler())
		r.Get("/", renderPage("Home"))
		r.Get("/about", renderPage("About"))
		r.Post("/contact", contact)
	})
	r.Group(func(r chi.Router) {
		r.Use(rc.Handler(time.Minute))
		r.Get("/news", renderPage("News"))
	})

	r.Get("/live", renderPage("Live"))
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/.response-cache/flush", func(w http.ResponseWriter, r *http.Request) {
		if err := rc.Flush(r.Context()); err != nil {
			log.Error().Err(err).Msg("Could not flush cache")
			http.Error(w, "Could not flush cache", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, "Cache flushed")
	})
	return r
}
