// Package metadata – Fallback synthesis
//
// When a page cannot be fetched or parsed the caller still receives a complete
// record. Two builders exist:
//
//   - FallbackFor: server side, from an already normalized Target, with the
//     failure's note as ErrorNote.
//   - Synthesize: client side, from whatever the organization entered plus
//     its name. It works on input that does not normalize.
//
// Both are pure: no network, no clock, same input gives the same record.
package metadata

import (
	"net/url"
	"strings"

	"github.com/tbourn/go-org-enricher/internal/domain"
)

const (
	// DefaultDescription is shown whenever no page description is available.
	DefaultDescription = "Climate advocacy organization working for a sustainable future."

	// DefaultTitle is used when neither a domain nor an organization name exists.
	DefaultTitle = "Organization"

	// GenericFavicon is the icon used when no hostname can be resolved.
	GenericFavicon = "https://placehold.co/64x64/1f6f50/ffffff/png?text=%E2%97%8F"

	faviconServiceURL = "https://www.google.com/s2/favicons"
	placeholderURL    = "https://placehold.co/1200x630/1f6f50/ffffff/png"
)

// FaviconLookupURL returns the third-party favicon lookup URL for host.
func FaviconLookupURL(host string) string {
	return faviconServiceURL + "?domain=" + url.QueryEscape(host) + "&sz=64"
}

// PlaceholderImage returns a generated banner URL displaying text.
func PlaceholderImage(text string) string {
	if strings.TrimSpace(text) == "" {
		text = DefaultTitle
	}
	return placeholderURL + "?text=" + url.QueryEscape(text)
}

// Synthesize builds a complete record without network access from a raw URL
// (or bare domain) and an optional organization name. It never fails.
//
// The title prefers the domain, then the organization name. The banner text
// prefers the organization name. The favicon uses the lookup service only
// when a hostname resolves; otherwise the generic icon.
func Synthesize(rawOrDomain, orgName string) domain.Metadata {
	orgName = strings.TrimSpace(orgName)

	var (
		host, source string
		dom          string
	)
	if t, err := Normalize(rawOrDomain); err == nil {
		host, source, dom = t.Host, t.Normalized, t.Host
	} else {
		dom = BestEffortDomain(rawOrDomain)
		source = strings.TrimSpace(rawOrDomain)
	}

	title := firstNonBlank(dom, orgName, DefaultTitle)
	favicon := GenericFavicon
	if host != "" {
		favicon = FaviconLookupURL(host)
	}
	return domain.Metadata{
		Title:       title,
		Description: DefaultDescription,
		Image:       PlaceholderImage(firstNonBlank(orgName, dom)),
		Favicon:     favicon,
		SourceURL:   firstNonBlank(source, title),
		Domain:      firstNonBlank(dom, title),
	}
}

// FallbackFor builds the server-side record returned when extraction of an
// already-normalized target fails. note is recorded as ErrorNote.
func FallbackFor(t Target, note string) domain.Metadata {
	return domain.Metadata{
		Title:       t.Host,
		Description: DefaultDescription,
		Image:       PlaceholderImage(t.Host),
		Favicon:     FaviconLookupURL(t.Host),
		SourceURL:   t.Normalized,
		Domain:      t.Host,
		ErrorNote:   note,
	}
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
