// Package enrich – EndpointClient
//
// EndpointClient is the orchestrator's only way to reach the metadata
// service. It sends the organization's website string unmodified as the url
// query parameter, joins the caller's trace, and checks the answer before it
// can reach the Store: a 2xx body has to decode and carry every display
// field, otherwise the call counts as failed and the retry controller decides
// what happens next.
//
// Error semantics:
//   - *EndpointError for non-2xx answers; 400 is terminal (see IsTerminal)
//   - ErrIncompleteRecord for a 2xx record with blank display fields
//   - transport and decode errors are returned wrapped
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/tbourn/go-org-enricher/internal/domain"
)

// DefaultClientTimeout is the client-perceived bound on one endpoint call.
// It is independent of the extractor's own upstream timeout.
const DefaultClientTimeout = 15 * time.Second

// EndpointClient calls GET <endpoint>?url=<raw> on the metadata service.
type EndpointClient struct {
	endpoint *url.URL
	http     *http.Client
}

// NewEndpointClient parses endpoint and builds a client bounded by timeout.
// A nil hc gets a fresh *http.Client; a non-nil hc is copied and its
// Timeout replaced.
//
// Errors:
//   - endpoint does not parse, or is not absolute with a host
func NewEndpointClient(endpoint string, timeout time.Duration, hc *http.Client) (*EndpointClient, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("endpoint %q must be an absolute URL", endpoint)
	}
	if timeout <= 0 {
		timeout = DefaultClientTimeout
	}
	c := &http.Client{}
	if hc != nil {
		cp := *hc
		c = &cp
	}
	c.Timeout = timeout
	return &EndpointClient{endpoint: u, http: c}, nil
}

// Fetch requests the record for rawURL. The raw string is sent as-is; the
// server normalizes it.
//
// Errors:
//   - *EndpointError: non-2xx, with the {"error"} text when present
//   - ErrIncompleteRecord: 2xx with any of title, description, image,
//     favicon, url or domain blank
//   - context, transport or JSON decode failures
func (c *EndpointClient) Fetch(ctx context.Context, rawURL string) (domain.Metadata, error) {
	u := *c.endpoint
	q := u.Query()
	q.Set("url", rawURL)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.Metadata{}, err
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Metadata{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4<<10)).Decode(&body)
		return domain.Metadata{}, &EndpointError{StatusCode: resp.StatusCode, Message: body.Error}
	}

	var rec domain.Metadata
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return domain.Metadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	if missing := missingFields(rec); len(missing) > 0 {
		return domain.Metadata{}, fmt.Errorf("%w: missing %s", ErrIncompleteRecord, strings.Join(missing, ", "))
	}
	return rec, nil
}

// missingFields lists the JSON names of blank fields that every record,
// fallbacks included, carries. errorNote is optional.
func missingFields(rec domain.Metadata) []string {
	var out []string
	for _, f := range []struct{ name, val string }{
		{"title", rec.Title},
		{"description", rec.Description},
		{"image", rec.Image},
		{"favicon", rec.Favicon},
		{"url", rec.SourceURL},
		{"domain", rec.Domain},
	} {
		if strings.TrimSpace(f.val) == "" {
			out = append(out, f.name)
		}
	}
	return out
}
