package domain

import "time"

// Metadata is the display record produced for an organization's website.
//
// Every field except ErrorNote is always populated: records are built either
// by the extractor from a fetched page or by the fallback synthesizer. Image
// and Favicon are always absolute URLs. Records are immutable values; a
// refresh replaces the record rather than mutating it.
type Metadata struct {
	Title       string `json:"title"       example:"Climate Action Network"`
	Description string `json:"description" example:"A global network of climate organizations."`
	Image       string `json:"image"       example:"https://example.org/banner.png"`
	Favicon     string `json:"favicon"     example:"https://example.org/favicon.ico"`
	SourceURL   string `json:"url"         example:"https://example.org"`
	Domain      string `json:"domain"      example:"example.org"`
	// ErrorNote is set only when the record was synthesized after a failure.
	ErrorNote string `json:"errorNote,omitempty" example:"upstream returned HTTP 503"`
}

// IsFallback reports whether the record was synthesized after a failure.
func (m Metadata) IsFallback() bool { return m.ErrorNote != "" }

// CacheEntry is a cached metadata record with the instant it was fetched.
type CacheEntry struct {
	Data      Metadata
	FetchedAt time.Time
}

// Fresh reports whether the entry is still valid at now for the given TTL.
func (e CacheEntry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) < ttl
}
