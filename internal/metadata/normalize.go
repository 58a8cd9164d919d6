// Package metadata – URL normalization
//
// Website strings arrive exactly as organizations typed them: bare domains,
// paths without a scheme, full URLs, or junk. Normalize turns them into a
// Target the extractor can fetch, defaulting a missing scheme to https and
// requiring an absolute URL with a host. Anything else is KindInvalidURL.
//
// BestEffortDomain never fails and is used where a display domain is needed
// for input that did not normalize (fallback synthesis).
package metadata

import (
	"net/url"
	"regexp"
	"strings"
)

// schemeRE matches an explicit "scheme://" prefix.
var schemeRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*://`)

// Target is a normalized, absolute website URL.
type Target struct {
	URL        *url.URL
	Normalized string // URL.String()
	Host       string // hostname without port
}

// Normalize defaults a missing scheme to https and validates that the result
// parses as an absolute URL with a host. Strings that already carry a scheme
// are used as-is, so Normalize(s) == Normalize("https://"+s) for any s
// without one.
func Normalize(raw string) (Target, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Target{}, &Error{Kind: KindInvalidURL, URL: raw}
	}
	if !schemeRE.MatchString(s) {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return Target{}, &Error{Kind: KindInvalidURL, URL: raw, Err: err}
	}
	if !u.IsAbs() || u.Hostname() == "" {
		return Target{}, &Error{Kind: KindInvalidURL, URL: raw}
	}
	return Target{URL: u, Normalized: u.String(), Host: u.Hostname()}, nil
}

// BestEffortDomain extracts a display domain from a string that may not be a
// valid URL: it strips a leading scheme and keeps what precedes the first '/'.
func BestEffortDomain(raw string) string {
	s := strings.TrimSpace(raw)
	if loc := schemeRE.FindStringIndex(s); loc != nil {
		s = s[loc[1]:]
	}
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// resolve turns ref into an absolute URL against base. Absolute refs pass
// through unchanged.
func resolve(base *url.URL, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	abs := base.ResolveReference(r)
	if abs.Host == "" {
		return "", &Error{Kind: KindInvalidURL, URL: ref}
	}
	return abs.String(), nil
}
