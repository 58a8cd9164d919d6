// Package metadata turns an arbitrary user-supplied website string into a
// normalized display record (title, description, banner image, favicon).
//
// The package is split by concern:
//   - normalize.go: scheme defaulting and absolute-URL validation
//   - extractor.go: bounded HTTP fetch and ordered selector extraction
//   - fallback.go:  deterministic, network-free record synthesis
//   - cache.go:     TTL cache keyed by the raw input string
//
// Failures are reported as *Error values carrying a Kind so that callers can
// decide between retrying, falling back, or rejecting the input.
package metadata

import (
	"errors"
	"fmt"
)

// Kind classifies enrichment failures.
type Kind string

const (
	// KindInvalidURL: input cannot be normalized into an absolute URL. Terminal.
	KindInvalidURL Kind = "invalid_url"
	// KindUpstreamHTTP: the target answered with a non-2xx status.
	KindUpstreamHTTP Kind = "upstream_http"
	// KindUpstreamTimeout: the fetch exceeded its deadline.
	KindUpstreamTimeout Kind = "upstream_timeout"
	// KindUpstreamNetwork: DNS, connect, TLS or body read failures.
	KindUpstreamNetwork Kind = "upstream_network"
	// KindParse: the document was fetched but could not be parsed.
	KindParse Kind = "parse"
)

// Error is the typed failure returned by Normalize and Extractor.Extract.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int // set for KindUpstreamHTTP
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUpstreamHTTP:
		return fmt.Sprintf("metadata %s: %s: upstream returned HTTP %d", e.Kind, e.URL, e.StatusCode)
	case KindInvalidURL:
		return fmt.Sprintf("metadata %s: %q", e.Kind, e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("metadata %s: %s: %v", e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("metadata %s: %s", e.Kind, e.URL)
}

func (e *Error) Unwrap() error { return e.Err }

// Note renders a short human-readable explanation for ErrorNote fields.
func (e *Error) Note() string {
	switch e.Kind {
	case KindUpstreamHTTP:
		return fmt.Sprintf("Website returned HTTP %d", e.StatusCode)
	case KindUpstreamTimeout:
		return "Website took too long to respond"
	case KindParse:
		return "Website content could not be parsed"
	case KindInvalidURL:
		return "Website URL is not valid"
	}
	return "Website could not be reached"
}

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}

// IsInvalidURL reports whether err is a KindInvalidURL failure.
func IsInvalidURL(err error) bool { return KindOf(err) == KindInvalidURL }
