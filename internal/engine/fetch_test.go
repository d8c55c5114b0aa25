package engine

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
)

func TestChromeHeaders(t *testing.T) {
	h := ChromeHeaders()

	required := []string{"accept", "accept-language", "user-agent"}
	for _, key := range required {
		if _, ok := h[key]; !ok {
			t.Errorf("ChromeHeaders() missing key %q", key)
		}
	}
	if ua := h["user-agent"]; len(ua) < 20 {
		t.Errorf("user-agent too short: %q", ua)
	}
}

func TestCleanHTML(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"<b>bold</b> text", "bold text"},
		{"plain text", "plain text"},
		{`<a href="url">link</a>`, "link"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanHTML(tt.input); got != tt.want {
			t.Errorf("CleanHTML(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestExtractPageText(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		wantTitle string
		wantText  string
	}{
		{
			name:      "main element wins",
			html:      `<html><head><title> Page </title></head><body><p>outside</p><main><p>inside  one</p><p>two</p></main></body></html>`,
			wantTitle: "Page",
			wantText:  "inside one two",
		},
		{
			name:     "whole document without main",
			html:     `<html><body><h1>Head</h1><div>body <b>bold</b> text</div></body></html>`,
			wantText: "Head body bold text",
		},
		{
			name:     "invisible elements skipped",
			html:     `<body><style>p{}</style><p>shown</p><noscript>enable js</noscript><!-- hidden --><template><p>tpl</p></template><script>alert(1)</script></body>`,
			wantText: "shown",
		},
		{
			name:      "og title fallback",
			html:      `<html><head><meta property="og:title" content="OG Title"></head><body>x</body></html>`,
			wantTitle: "OG Title",
			wantText:  "x",
		},
		{
			name:     "entities decoded",
			html:     `<p>Tom &amp; Jerry&#39;s</p>`,
			wantText: "Tom & Jerry's",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, text, err := ExtractPageText([]byte(tt.html), "text/html; charset=utf-8")
			if err != nil {
				t.Fatalf("ExtractPageText: %v", err)
			}
			if title != tt.wantTitle {
				t.Errorf("title = %q, want %q", title, tt.wantTitle)
			}
			if text != tt.wantText {
				t.Errorf("text = %q, want %q", text, tt.wantText)
			}
		})
	}
}

func TestExtractPageTextRejectsNonMarkup(t *testing.T) {
	for _, ct := range []string{"application/pdf", "image/png", "application/octet-stream"} {
		_, _, err := ExtractPageText([]byte("%PDF-1.4"), ct)
		if !errors.Is(err, ErrParse) {
			t.Errorf("content type %q: err = %v, want ParseError", ct, err)
		}
	}
	for _, ct := range []string{"", "text/html", "application/xhtml+xml", "text/plain; charset=utf-8"} {
		if !isMarkup(ct) {
			t.Errorf("isMarkup(%q) = false", ct)
		}
	}
}

func gzipPage(t *testing.T, size int) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if ae := r.Header.Get("Accept-Encoding"); ae != "gzip" {
			t.Errorf("Accept-Encoding = %q, want gzip", ae)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent")
		}
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, _ = gz.Write([]byte(strings.Repeat("x", size)))
		_ = gz.Close()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write(buf.Bytes())
	}
}

func TestFetchPageSizeCap(t *testing.T) {
	tests := []struct {
		name          string
		size          int
		maxBytes      int64
		wantLen       int
		wantTruncated bool
	}{
		{"over cap", 1000, 100, 100, true},
		{"exactly cap", 100, 100, 100, false},
		{"under cap", 40, 100, 40, false},
		{"no cap", 1000, 0, 1000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(gzipPage(t, tt.size))
			defer srv.Close()

			p, err := fetchPage(context.Background(), srv.Client(), srv.URL, tt.maxBytes, 0)
			if err != nil {
				t.Fatalf("fetchPage: %v", err)
			}
			if len(p.body) != tt.wantLen {
				t.Errorf("body length = %d, want %d", len(p.body), tt.wantLen)
			}
			if p.truncated != tt.wantTruncated {
				t.Errorf("truncated = %v, want %v", p.truncated, tt.wantTruncated)
			}
			if p.contentType != "text/html" {
				t.Errorf("contentType = %q", p.contentType)
			}
		})
	}
}

func TestExtractMarksTruncatedPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<main><p>" + strings.Repeat("word ", 100) + "</p></main>"))
	}))
	defer srv.Close()

	e := NewExtractor(Config{HTTPClient: srv.Client(), MaxBodyBytes: 64})
	doc, err := e.Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !doc.Truncated {
		t.Error("document from a capped body should be marked truncated")
	}
	if doc.Content == "" {
		t.Error("truncated page should still yield text")
	}
}

func TestFetchPageStatusNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := fetchPage(context.Background(), srv.Client(), srv.URL, 1024, 3)
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if e.Kind != KindFetch || e.Status != http.StatusServiceUnavailable {
		t.Errorf("got kind %q status %d, want fetch 503", e.Kind, e.Status)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestFetchPageTransportRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			// drop the connection without a response
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("response writer cannot hijack")
				return
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Errorf("hijack: %v", err)
				return
			}
			_ = conn.Close()
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<p>ok</p>"))
	}))
	defer srv.Close()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	p, err := fetchPage(context.Background(), client, srv.URL, 1024, 1)
	if err != nil {
		t.Fatalf("fetchPage: %v", err)
	}
	if string(p.body) != "<p>ok</p>" {
		t.Errorf("body = %q", p.body)
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("server hit %d times, want 2", n)
	}
}

func TestFetchPageTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := fetchPage(ctx, srv.Client(), srv.URL, 1024, 0); !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want TimeoutError", err)
	}
}

func TestFetchPageConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	if _, err := fetchPage(context.Background(), http.DefaultClient, "http://"+addr+"/", 1024, 0); !errors.Is(err, ErrFetch) {
		t.Errorf("err = %v, want FetchError", err)
	}
}
