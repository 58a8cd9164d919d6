package metadata

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

func serveHTML(t *testing.T, html string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func mustTarget(t *testing.T, raw string) Target {
	t.Helper()
	tg, err := Normalize(raw)
	if err != nil {
		t.Fatalf("normalize %q: %v", raw, err)
	}
	return tg
}

func TestExtract_OpenGraphWins(t *testing.T) {
	srv := serveHTML(t, `<html><head>
		<title>Plain Title</title>
		<meta name="twitter:title" content="Twitter Title">
		<meta property="og:title" content="  OG   Title ">
		<meta property="og:description" content="OG description">
		<meta name="description" content="Generic description">
		<meta name="twitter:image" content="https://cdn.example.org/tw.png">
		<meta property="og:image" content="/img/og.png">
		<link rel="apple-touch-icon" href="/apple.png">
		<link rel="icon" href="/favicon.ico">
	</head><body><h1>Heading</h1></body></html>`)

	rec, err := NewExtractor(ExtractorOptions{AllowPrivateHosts: true}).Extract(context.Background(), mustTarget(t, srv.URL))
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if rec.Title != "OG Title" {
		t.Errorf("title = %q", rec.Title)
	}
	if rec.Description != "OG description" {
		t.Errorf("description = %q", rec.Description)
	}
	if rec.Image != srv.URL+"/img/og.png" {
		t.Errorf("image = %q; want resolved og:image", rec.Image)
	}
	if rec.Favicon != srv.URL+"/favicon.ico" {
		t.Errorf("favicon = %q", rec.Favicon)
	}
	if rec.SourceURL != srv.URL || rec.Domain != "127.0.0.1" || rec.ErrorNote != "" {
		t.Errorf("unexpected source/domain/note: %+v", rec)
	}
}

func TestExtract_TwitterThenGenericFallbacks(t *testing.T) {
	srv := serveHTML(t, `<html><head>
		<title>Plain Title</title>
		<meta name="twitter:title" content="Twitter Title">
		<meta property="description" content="Property description">
		<meta name="twitter:image:src" content="https://cdn.example.org/src.png">
		<link rel="Shortcut  Icon" href="https://cdn.example.org/short.ico">
		<link rel="apple-touch-icon-precomposed" href="/pre.png">
	</head><body></body></html>`)

	rec, err := NewExtractor(ExtractorOptions{AllowPrivateHosts: true}).Extract(context.Background(), mustTarget(t, srv.URL))
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if rec.Title != "Twitter Title" {
		t.Errorf("title = %q", rec.Title)
	}
	if rec.Description != "Property description" {
		t.Errorf("description = %q", rec.Description)
	}
	if rec.Image != "https://cdn.example.org/src.png" {
		t.Errorf("image = %q", rec.Image)
	}
	if rec.Favicon != "https://cdn.example.org/short.ico" {
		t.Errorf("favicon = %q", rec.Favicon)
	}
}

func TestExtract_TitleChainAndDefaults(t *testing.T) {
	srv := serveHTML(t, `<html><head></head><body><h1> Our <b>Mission</b> </h1></body></html>`)
	rec, err := NewExtractor(ExtractorOptions{AllowPrivateHosts: true}).Extract(context.Background(), mustTarget(t, srv.URL))
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if rec.Title != "Our Mission" {
		t.Errorf("title = %q; want h1 text", rec.Title)
	}
	if rec.Description != DefaultDescription {
		t.Errorf("description = %q", rec.Description)
	}
	if rec.Image != PlaceholderImage("127.0.0.1") {
		t.Errorf("image = %q; want placeholder embedding host", rec.Image)
	}
	if rec.Favicon != FaviconLookupURL("127.0.0.1") {
		t.Errorf("favicon = %q; want lookup service", rec.Favicon)
	}

	empty := serveHTML(t, `<html><head></head><body></body></html>`)
	rec, err = NewExtractor(ExtractorOptions{AllowPrivateHosts: true}).Extract(context.Background(), mustTarget(t, empty.URL))
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if rec.Title != "127.0.0.1" {
		t.Errorf("title = %q; want hostname", rec.Title)
	}
}

func TestExtract_UnresolvableRefsFallBack(t *testing.T) {
	srv := serveHTML(t, `<html><head>
		<meta property="og:image" content="%zz">
		<link rel="icon" href="%zz">
	</head></html>`)
	rec, err := NewExtractor(ExtractorOptions{AllowPrivateHosts: true}).Extract(context.Background(), mustTarget(t, srv.URL))
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if rec.Image != PlaceholderImage("127.0.0.1") {
		t.Errorf("image = %q; want placeholder after failed resolution", rec.Image)
	}
	if rec.Favicon != FaviconLookupURL("127.0.0.1") {
		t.Errorf("favicon = %q; want lookup service after failed resolution", rec.Favicon)
	}
}

func TestExtract_SendsBrowserHeaders(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA, gotAccept = r.UserAgent(), r.Header.Get("Accept")
		_, _ = w.Write([]byte(`<title>x</title>`))
	}))
	defer srv.Close()

	if _, err := NewExtractor(ExtractorOptions{UserAgent: "Mozilla/5.0 test", AllowPrivateHosts: true}).Extract(context.Background(), mustTarget(t, srv.URL)); err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if gotUA != "Mozilla/5.0 test" || !strings.Contains(gotAccept, "text/html") {
		t.Fatalf("headers not sent: ua=%q accept=%q", gotUA, gotAccept)
	}
}

func TestExtract_Non2xxIsUpstreamHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewExtractor(ExtractorOptions{AllowPrivateHosts: true}).Extract(context.Background(), mustTarget(t, srv.URL))
	if KindOf(err) != KindUpstreamHTTP {
		t.Fatalf("kind = %q; want upstream_http (err=%v)", KindOf(err), err)
	}
	if me := err.(*Error); me.StatusCode != http.StatusServiceUnavailable || !strings.Contains(me.Note(), "503") {
		t.Fatalf("status code not carried: %+v", me)
	}
}

func TestExtract_TimeoutIsUpstreamTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	start := time.Now()
	_, err := NewExtractor(ExtractorOptions{Timeout: 50 * time.Millisecond, AllowPrivateHosts: true}).Extract(context.Background(), mustTarget(t, srv.URL))
	if KindOf(err) != KindUpstreamTimeout {
		t.Fatalf("kind = %q; want upstream_timeout (err=%v)", KindOf(err), err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("timeout not enforced")
	}
}

func TestExtract_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()

	_, err := NewExtractor(ExtractorOptions{AllowPrivateHosts: true}).Extract(context.Background(), mustTarget(t, u))
	if KindOf(err) != KindUpstreamNetwork {
		t.Fatalf("kind = %q; want upstream_network (err=%v)", KindOf(err), err)
	}
}

func TestExtract_DefaultTransportRefusesLoopback(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`<title>internal admin</title>`))
	}))
	defer srv.Close()

	_, err := NewExtractor(ExtractorOptions{}).Extract(context.Background(), mustTarget(t, srv.URL+"/admin"))
	if KindOf(err) != KindUpstreamNetwork || !errors.Is(err, ErrBlockedAddress) {
		t.Fatalf("err = %v; want upstream_network wrapping ErrBlockedAddress", err)
	}
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Fatalf("loopback server was reached %d times", n)
	}
}

func TestExtract_RedirectToLoopbackRefused(t *testing.T) {
	var hits int32
	inner := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer inner.Close()

	// The first hop goes through an injected dialer that ignores the guard,
	// the redirect goes through the guarded one.
	guarded := &net.Dialer{Control: guardDial}
	open := &net.Dialer{}
	first := true
	tr := &http.Transport{DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
		if first {
			first = false
			return open.DialContext(ctx, network, addr)
		}
		return guarded.DialContext(ctx, network, addr)
	}, DisableKeepAlives: true}
	outer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, inner.URL, http.StatusFound)
	}))
	defer outer.Close()

	x := NewExtractor(ExtractorOptions{Client: &http.Client{Transport: tr}})
	_, err := x.Extract(context.Background(), mustTarget(t, outer.URL))
	if !errors.Is(err, ErrBlockedAddress) {
		t.Fatalf("err = %v; want ErrBlockedAddress", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("redirect target was reached")
	}
}

func TestGuardDial(t *testing.T) {
	cases := []struct {
		addr    string
		blocked bool
	}{
		{"127.0.0.1:80", true},
		{"[::1]:443", true},
		{"10.0.0.7:80", true},
		{"172.20.1.1:80", true},
		{"192.168.1.10:8080", true},
		{"169.254.169.254:80", true},
		{"[fe80::1]:80", true},
		{"[fd00::1]:80", true},
		{"0.0.0.0:80", true},
		{"100.64.0.1:80", true},
		{"[::ffff:127.0.0.1]:80", true},
		{"no-port", true},
		{"93.184.216.34:443", false},
		{"[2606:4700::6810:85e5]:443", false},
		{"8.8.8.8:53", false},
	}
	for _, tc := range cases {
		err := guardDial("tcp", tc.addr, nil)
		if got := errors.Is(err, ErrBlockedAddress); got != tc.blocked {
			t.Errorf("guardDial(%q) blocked = %v; want %v (err=%v)", tc.addr, got, tc.blocked, err)
		}
	}
}

func TestExtract_DecodesGzipAndBrotli(t *testing.T) {
	page := `<html><head><meta property="og:title" content="Compressed"></head></html>`

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, _ = zw.Write([]byte(page))
	_ = zw.Close()

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	_, _ = bw.Write([]byte(page))
	_ = bw.Close()

	for enc, body := range map[string][]byte{"gzip": gz.Bytes(), "br": br.Bytes()} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Header().Set("Content-Encoding", enc)
			_, _ = w.Write(body)
		}))
		rec, err := NewExtractor(ExtractorOptions{AllowPrivateHosts: true}).Extract(context.Background(), mustTarget(t, srv.URL))
		srv.Close()
		if err != nil || rec.Title != "Compressed" {
			t.Fatalf("%s: title=%q err=%v", enc, rec.Title, err)
		}
	}
}

func TestExtract_DecodesLegacyCharset(t *testing.T) {
	// "Café" in ISO-8859-1.
	body := []byte("<html><head><title>Caf\xe9</title></head></html>")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	rec, err := NewExtractor(ExtractorOptions{AllowPrivateHosts: true}).Extract(context.Background(), mustTarget(t, srv.URL))
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if rec.Title != "Café" {
		t.Fatalf("title = %q; want Café", rec.Title)
	}
}

func TestError_Messages(t *testing.T) {
	cases := []*Error{
		{Kind: KindInvalidURL, URL: "x"},
		{Kind: KindUpstreamHTTP, URL: "u", StatusCode: 404},
		{Kind: KindUpstreamTimeout, URL: "u", Err: context.DeadlineExceeded},
		{Kind: KindParse, URL: "u"},
		{Kind: KindUpstreamNetwork, URL: "u"},
	}
	for _, e := range cases {
		if e.Error() == "" || e.Note() == "" {
			t.Fatalf("empty message for %+v", e)
		}
	}
	if KindOf(context.Canceled) != "" {
		t.Fatalf("foreign errors have no kind")
	}
}

func TestExtract_ExampleOrgWithoutImage(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><meta property="og:title" content="Example Org"></head></html>`))
	}))
	defer srv.Close()

	// Route every host to the test server; its certificate is issued for example.com.
	tr := srv.Client().Transport.(*http.Transport).Clone()
	tr.TLSClientConfig.ServerName = "example.com"
	tr.DialContext = func(ctx context.Context, network, _ string) (net.Conn, error) {
		return (&net.Dialer{}).DialContext(ctx, network, srv.Listener.Addr().String())
	}
	x := NewExtractor(ExtractorOptions{Client: &http.Client{Transport: tr}})

	rec, err := x.Extract(context.Background(), mustTarget(t, "example.org"))
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if rec.Title != "Example Org" || rec.Domain != "example.org" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.Image != PlaceholderImage("example.org") || !strings.Contains(rec.Image, "example.org") {
		t.Fatalf("image = %q; want placeholder embedding example.org", rec.Image)
	}
}
