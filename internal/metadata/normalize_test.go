package metadata

import (
	"errors"
	"testing"
)

func TestNormalize_DefaultsSchemeToHTTPS(t *testing.T) {
	cases := map[string]struct{ url, host string }{
		"example.org":                {"https://example.org", "example.org"},
		"  example.org/about  ":      {"https://example.org/about", "example.org"},
		"http://example.org":         {"http://example.org", "example.org"},
		"HTTPS://Example.org/x?y=1":  {"https://Example.org/x?y=1", "Example.org"},
		"www.350.org":                {"https://www.350.org", "www.350.org"},
		"sub.example.org:8443/path/": {"https://sub.example.org:8443/path/", "sub.example.org"},
	}
	for in, want := range cases {
		got, err := Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%q) error: %v", in, err)
		}
		if got.Normalized != want.url || got.Host != want.host {
			t.Errorf("Normalize(%q) = (%q, %q); want (%q, %q)", in, got.Normalized, got.Host, want.url, want.host)
		}
	}
}

func TestNormalize_SchemelessEqualsHTTPSPrefixed(t *testing.T) {
	for _, s := range []string{"example.org", "a.b.c/d/e", "climate.org?x=1", "not a url", "foo bar/baz"} {
		a, errA := Normalize(s)
		b, errB := Normalize("https://" + s)
		if (errA == nil) != (errB == nil) {
			t.Fatalf("Normalize(%q) and prefixed form disagree on validity: %v vs %v", s, errA, errB)
		}
		if errA == nil && a.Normalized != b.Normalized {
			t.Fatalf("Normalize(%q) = %q; prefixed = %q", s, a.Normalized, b.Normalized)
		}
	}
}

func TestNormalize_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "not a url", "https://", "http:///path-only", "https://exa mple.org"} {
		_, err := Normalize(in)
		if err == nil {
			t.Fatalf("Normalize(%q) expected error", in)
		}
		if !IsInvalidURL(err) {
			t.Fatalf("Normalize(%q) kind = %q; want invalid_url", in, KindOf(err))
		}
		var me *Error
		if !errors.As(err, &me) || me.URL != in {
			t.Fatalf("error should carry the raw input, got %#v", err)
		}
	}
}

func TestBestEffortDomain(t *testing.T) {
	cases := map[string]string{
		"not a url":                "not a url",
		"https://example.org/a/b":  "example.org",
		"ftp://files.example.org/": "files.example.org",
		"example.org/about":        "example.org",
		"  ":                       "",
	}
	for in, want := range cases {
		if got := BestEffortDomain(in); got != want {
			t.Errorf("BestEffortDomain(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestResolve(t *testing.T) {
	base, _ := Normalize("https://example.org/about/team")
	cases := map[string]string{
		"/img/banner.png":              "https://example.org/img/banner.png",
		"logo.png":                     "https://example.org/about/logo.png",
		"//cdn.example.net/x.png":      "https://cdn.example.net/x.png",
		"https://other.org/banner.jpg": "https://other.org/banner.jpg",
	}
	for in, want := range cases {
		got, err := resolve(base.URL, in)
		if err != nil || got != want {
			t.Errorf("resolve(%q) = (%q, %v); want %q", in, got, err, want)
		}
	}
	if _, err := resolve(base.URL, "data:image/png;base64,AAAA"); err == nil {
		t.Fatalf("data URI must not resolve to an absolute http URL")
	}
	if _, err := resolve(base.URL, "%zz"); err == nil {
		t.Fatalf("malformed escape should fail to resolve")
	}
}
