// Package tokenrewriter replaces the anti-forgery token embedded in rendered
// markup without parsing the document.
//
// A cached page still carries the token of the session that rendered it.
// Rewrite finds that token with a handful of substring scans and swaps in the
// token of the session being served.
package tokenrewriter

import "strings"

// Location describes where a token lives in markup: the tag that holds it,
// the attribute/value pair identifying that tag, and the attribute holding
// the token itself.
type Location struct {
	// Tag open marker, e.g. `<input`.
	Tag string
	// Marker identifying the element, e.g. `name="_token"`.
	Marker string
	// Opening of the attribute carrying the token, e.g. `value="`.
	ValueAttr string
}

var locations = [...]Location{
	{Tag: "<input", Marker: `name="_token"`, ValueAttr: `value="`},
	{Tag: "<meta", Marker: `name="csrf-token"`, ValueAttr: `content="`},
}

// Locations returns the recognised token locations, in priority order.
func Locations() []Location {
	return append([]Location(nil), locations[:]...)
}

const quote = `"`

// Rewrite returns markup with the embedded token replaced by newToken.
//
// The first location that yields a complete match wins, and every occurrence
// of the old token in the document is replaced, so secondary copies (e.g. in a
// script variable) are fixed up too. Markup without a recognisable token is
// returned unchanged.
func Rewrite(markup, newToken string) string {
	for _, loc := range locations {
		oldToken, ok := loc.find(markup)
		if !ok {
			continue
		}
		if oldToken == "" {
			return markup
		}
		return strings.ReplaceAll(markup, oldToken, newToken)
	}
	return markup
}

// RewriteBytes is Rewrite for response bodies.
func RewriteBytes(body []byte, newToken string) []byte {
	return []byte(Rewrite(string(body), newToken))
}

// Find returns the token found at the first matching location, if any.
func Find(markup string) (string, bool) {
	for _, loc := range locations {
		if token, ok := loc.find(markup); ok {
			return token, true
		}
	}
	return "", false
}

// find runs the four scans for a single location.
// It reports false if any of them fails.
func (l Location) find(markup string) (string, bool) {
	markerPos := strings.Index(markup, l.Marker)
	if markerPos < 0 {
		return "", false
	}
	// the marker must sit inside the expected tag
	if strings.LastIndex(markup[:markerPos], l.Tag) < 0 {
		return "", false
	}
	markerEnd := markerPos + len(l.Marker)
	valuePos := strings.Index(markup[markerEnd:], l.ValueAttr)
	if valuePos < 0 {
		return "", false
	}
	valueStart := markerEnd + valuePos + len(l.ValueAttr)
	valueLen := strings.Index(markup[valueStart:], quote)
	if valueLen < 0 {
		return "", false
	}
	return markup[valueStart : valueStart+valueLen], true
}
