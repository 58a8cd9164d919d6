// Package metadata – Extractor
//
// This file implements the bounded upstream fetch behind GET /metadata. One
// Extract call performs exactly one GET with browser-like headers under a
// per-call deadline, decodes gzip, deflate and brotli bodies, converts legacy
// charsets to UTF-8, and reads Open Graph, Twitter card and generic head tags
// in that priority order. Relative image and favicon references are resolved
// against the requested URL.
//
// The default transport refuses to connect to loopback, private, link-local,
// shared (CGNAT) and unspecified addresses. The check runs on the resolved
// address of every dial, so redirects and DNS answers pointing inward fail the
// same way. A refusal surfaces as KindUpstreamNetwork wrapping
// ErrBlockedAddress and is served as a fallback record by the service layer.
//
// Failure kinds:
//   - KindUpstreamTimeout: the deadline expired
//   - KindUpstreamHTTP: non-2xx status
//   - KindUpstreamNetwork: DNS, connect, TLS, blocked address, body read
//   - KindParse: the document could not be parsed
package metadata

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/unicode/norm"

	"github.com/tbourn/go-org-enricher/internal/domain"
)

const (
	// DefaultTimeout bounds a single upstream fetch.
	DefaultTimeout = 10 * time.Second
	// DefaultMaxBodyBytes caps how much of a page is read.
	DefaultMaxBodyBytes = 5 << 20

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

var tracer = otel.Tracer("github.com/tbourn/go-org-enricher/internal/metadata")

// ErrBlockedAddress is wrapped by dial failures against addresses that are
// not publicly routable (loopback, private, link-local, unspecified).
var ErrBlockedAddress = errors.New("address is not publicly routable")

// sharedAddressSpace is the carrier-grade NAT range (RFC 6598), which
// netip does not count as private.
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// ExtractorOptions controls upstream fetching.
//
// Fields:
//   - Timeout: per-fetch deadline, DefaultTimeout when zero.
//   - UserAgent: sent on every request, a desktop browser string when blank.
//   - MaxBodyBytes: read cap, DefaultMaxBodyBytes when zero.
//   - AllowPrivateHosts: disables the dial guard of the default transport.
//   - Client: replaces the default client entirely, guard included.
type ExtractorOptions struct {
	Timeout           time.Duration
	UserAgent         string
	MaxBodyBytes      int64
	AllowPrivateHosts bool
	Client            *http.Client
}

// Extractor fetches a page and extracts its display metadata.
type Extractor struct {
	client       *http.Client
	timeout      time.Duration
	userAgent    string
	maxBodyBytes int64
}

// NewExtractor builds an Extractor, applying defaults to zero options.
func NewExtractor(opts ExtractorOptions) *Extractor {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultUserAgent
	}
	client := opts.Client
	if client == nil {
		dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
		if !opts.AllowPrivateHosts {
			dialer.Control = guardDial
		}
		// No proxy: the guard has to see the target address, not a proxy's.
		transport := &http.Transport{
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   5 * time.Second,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: time.Second,
		}
		client = &http.Client{Transport: transport}
	}
	return &Extractor{
		client:       client,
		timeout:      opts.Timeout,
		userAgent:    opts.UserAgent,
		maxBodyBytes: opts.MaxBodyBytes,
	}
}

// Extract performs one GET against t with the configured deadline and returns
// the extracted record.
//
// Every field of a successful record is populated: missing tags fall back to
// the host, DefaultDescription, a placeholder banner and the favicon lookup
// service.
//
// Errors:
//   - *Error with one of the upstream kinds or KindParse
//
// A panic while parsing is recovered and reported as KindParse.
func (x *Extractor) Extract(ctx context.Context, t Target) (rec domain.Metadata, err error) {
	ctx, span := tracer.Start(ctx, "metadata.Extract")
	span.SetAttributes(attribute.String("url.full", t.Normalized), attribute.String("server.address", t.Host))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Kind: KindParse, URL: t.Normalized, Err: fmt.Errorf("panic: %v", r)}
		}
		fetchDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			fetchTotal.WithLabelValues(string(KindOf(err))).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			fetchTotal.WithLabelValues("ok").Inc()
		}
		span.End()
	}()

	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	doc, err := x.fetchDocument(ctx, t)
	if err != nil {
		return domain.Metadata{}, err
	}
	return extract(doc, t), nil
}

func (x *Extractor) fetchDocument(ctx context.Context, t Target) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.Normalized, nil)
	if err != nil {
		return nil, &Error{Kind: KindInvalidURL, URL: t.Normalized, Err: err}
	}
	req.Header.Set("User-Agent", x.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := x.client.Do(req)
	if err != nil {
		return nil, classify(ctx, t.Normalized, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: KindUpstreamHTTP, URL: t.Normalized, StatusCode: resp.StatusCode}
	}

	body, err := x.readBody(resp)
	if err != nil {
		return nil, classify(ctx, t.Normalized, err)
	}

	r, err := charset.NewReader(bytes.NewReader(body), resp.Header.Get("Content-Type"))
	if err != nil {
		r = bytes.NewReader(body)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, &Error{Kind: KindParse, URL: t.Normalized, Err: err}
	}
	return doc, nil
}

// readBody decodes the Content-Encoding and enforces the body cap. A body
// larger than the cap is truncated rather than rejected: the head section
// is all extraction needs.
func (x *Extractor) readBody(resp *http.Response) ([]byte, error) {
	reader := io.Reader(resp.Body)
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	}
	body, err := io.ReadAll(io.LimitReader(reader, x.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// guardDial runs after DNS resolution and before connect, so redirects and
// rebinding hostnames are checked against the address actually dialed.
func guardDial(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	if !publicAddr(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
	}
	return nil
}

func publicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	switch {
	case ip.IsLoopback(), ip.IsPrivate(), ip.IsUnspecified(),
		ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(), ip.IsMulticast():
		return false
	case sharedAddressSpace.Contains(ip):
		return false
	}
	return true
}

// classify maps transport errors onto timeout or network kinds.
func classify(ctx context.Context, u string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &ne) && ne.Timeout()) {
		return &Error{Kind: KindUpstreamTimeout, URL: u, Err: err}
	}
	return &Error{Kind: KindUpstreamNetwork, URL: u, Err: err}
}

// extract applies the ordered selector chains. Priority: Open Graph, then
// Twitter cards, then generic tags, then synthesized defaults.
func extract(doc *goquery.Document, t Target) domain.Metadata {
	h := indexHead(doc)

	title := firstNonBlank(
		h.prop("og:title"),
		h.anyKey("twitter:title"),
		cleanText(doc.Find("title").First().Text()),
		cleanText(doc.Find("h1").First().Text()),
		t.Host,
	)
	description := firstNonBlank(
		h.prop("og:description"),
		h.anyKey("twitter:description"),
		h.name("description"),
		h.prop("description"),
		DefaultDescription,
	)

	image := firstNonBlank(
		h.prop("og:image"),
		h.anyKey("twitter:image"),
		h.anyKey("twitter:image:src"),
		h.prop("og:image:url"),
	)
	if image != "" {
		abs, err := resolve(t.URL, image)
		if err != nil {
			abs = ""
		}
		image = abs
	}
	if image == "" {
		image = PlaceholderImage(t.Host)
	}

	favicon := firstNonBlank(
		h.links["icon"],
		h.links["shortcut icon"],
		h.links["apple-touch-icon"],
		h.links["apple-touch-icon-precomposed"],
	)
	if favicon != "" {
		abs, err := resolve(t.URL, favicon)
		if err != nil {
			abs = FaviconLookupURL(t.Host)
		}
		favicon = abs
	} else {
		favicon = FaviconLookupURL(t.Host)
	}

	return domain.Metadata{
		Title:       title,
		Description: description,
		Image:       image,
		Favicon:     favicon,
		SourceURL:   t.Normalized,
		Domain:      t.Host,
	}
}

// headIndex holds the first non-empty value per meta property, meta name and
// link rel, with keys lowercased.
type headIndex struct {
	props map[string]string
	names map[string]string
	links map[string]string
}

func indexHead(doc *goquery.Document) headIndex {
	h := headIndex{
		props: map[string]string{},
		names: map[string]string{},
		links: map[string]string{},
	}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content := cleanText(s.AttrOr("content", ""))
		if content == "" {
			return
		}
		if p := strings.ToLower(strings.TrimSpace(s.AttrOr("property", ""))); p != "" {
			if _, seen := h.props[p]; !seen {
				h.props[p] = content
			}
		}
		if n := strings.ToLower(strings.TrimSpace(s.AttrOr("name", ""))); n != "" {
			if _, seen := h.names[n]; !seen {
				h.names[n] = content
			}
		}
	})
	doc.Find("link[rel]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return
		}
		rel := strings.ToLower(strings.Join(strings.Fields(s.AttrOr("rel", "")), " "))
		if _, seen := h.links[rel]; !seen {
			h.links[rel] = href
		}
	})
	return h
}

func (h headIndex) prop(k string) string { return h.props[k] }
func (h headIndex) name(k string) string { return h.names[k] }

// anyKey checks name= first, then property=. Sites disagree on which one
// twitter card tags use.
func (h headIndex) anyKey(k string) string {
	if v := h.names[k]; v != "" {
		return v
	}
	return h.props[k]
}

// cleanText collapses whitespace and applies NFC normalization.
func cleanText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	return norm.NFC.String(s)
}
