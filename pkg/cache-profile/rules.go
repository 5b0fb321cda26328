package cacheprofile

import (
	"net/http"
	"strings"
	"time"
)

// Rules are evaluated in order; the first match decides the lifetime.
type Rules []Rule

// Rule sets the lifetime of responses to matching requests.
// Empty fields match everything.
type Rule struct {
	Prefix   string            `yaml:"prefix"`
	Path     string            `yaml:"path"`
	Method   string            `yaml:"method"`
	Query    map[string]string `yaml:"query"`
	Lifetime time.Duration     `yaml:"lifetime"`
}

// Lifetime returns the lifetime of the first rule matching the request.
func (r Rules) Lifetime(req *http.Request) (time.Duration, bool) {
	if rule := r.find(req); rule != nil {
		return rule.Lifetime, true
	}
	return 0, false
}

func (r Rules) find(req *http.Request) *Rule {
rulesLoop:
	for i := range r {
		rule := &r[i]
		if rule.Method != "" && !strings.EqualFold(rule.Method, req.Method) {
			continue
		}
		if rule.Path != "" && rule.Path != req.URL.Path {
			continue
		}
		if rule.Prefix != "" && !strings.HasPrefix(req.URL.Path, rule.Prefix) {
			continue
		}
		if len(rule.Query) > 0 {
			qry := req.URL.Query()
			for name, value := range rule.Query {
				if value == "" && !qry.Has(name) {
					continue rulesLoop
				} else if value != "" && qry.Get(name) != value {
					continue rulesLoop
				}
			}
		}
		return rule
	}
	return nil
}
