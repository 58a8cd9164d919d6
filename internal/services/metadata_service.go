// Package services – MetadataService
//
// MetadataService backs the GET /metadata endpoint. A lookup consults the
// response cache under the raw input string, normalizes the URL, runs the
// extractor and caches only successful extractions. Upstream failures are
// converted into a fallback record tagged with an errorNote so the caller
// always receives a complete record; only a blank or unparseable URL is
// reported as an error.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-org-enricher/internal/domain"
	"github.com/tbourn/go-org-enricher/internal/metadata"
)

// Extractor is the upstream fetch contract required by MetadataService.
// *metadata.Extractor satisfies it.
type Extractor interface {
	Extract(ctx context.Context, t metadata.Target) (domain.Metadata, error)
}

// MetadataService resolves website metadata through a TTL cache.
type MetadataService struct {
	Cache     *metadata.Cache
	Extractor Extractor
}

// NewMetadataService wires a cache and an extractor.
func NewMetadataService(c *metadata.Cache, x Extractor) *MetadataService {
	return &MetadataService{Cache: c, Extractor: x}
}

// Lookup returns the metadata record for rawURL.
//
// Errors:
//   - ErrURLRequired when rawURL is blank
//   - ErrInvalidURL (wrapping the *metadata.Error) when normalization fails
//
// Every other failure mode yields a fallback record and a nil error.
func (s *MetadataService) Lookup(ctx context.Context, rawURL string) (domain.Metadata, error) {
	tr := otel.Tracer("services/MetadataService")
	ctx, span := tr.Start(ctx, "Lookup", trace.WithAttributes(attribute.String("url.raw", rawURL)))
	defer span.End()

	if strings.TrimSpace(rawURL) == "" {
		return domain.Metadata{}, ErrURLRequired
	}

	if rec, ok := s.Cache.Get(rawURL); ok {
		metadata.ObserveCacheLookup(true)
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return rec, nil
	}
	metadata.ObserveCacheLookup(false)
	span.SetAttributes(attribute.Bool("cache.hit", false))

	target, err := metadata.Normalize(rawURL)
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	rec, err := s.Extractor.Extract(ctx, target)
	if err != nil {
		note := "Website could not be reached"
		var me *metadata.Error
		if errors.As(err, &me) {
			note = me.Note()
		}
		log.Warn().
			Err(err).
			Str("url", target.Normalized).
			Str("kind", string(metadata.KindOf(err))).
			Msg("metadata extraction failed; serving fallback")
		return metadata.FallbackFor(target, note), nil
	}

	s.Cache.Put(rawURL, rec)
	return rec, nil
}
