package engine

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// NewFetchClient creates an HTTP client with proper settings for web scraping.
func NewFetchClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: 15 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return nil
		},
	}
}

// page is a fetched web page body plus the headers extraction cares about.
type page struct {
	body        []byte
	contentType string
	truncated   bool // body hit the size cap
}

// fetchPage GETs pageURL with browser headers. A non-2xx status is a FetchError
// carrying the status and is never retried; transport failures are retried up
// to retries times with exponential backoff.
func fetchPage(ctx context.Context, client *http.Client, pageURL string, maxBytes int64, retries int) (page, error) {
	metrics.FetchRequests.Add(1)

	operation := func() (page, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return page{}, backoff.Permanent(invalidInput("extract", "bad request URL: %v", err))
		}
		for k, v := range ChromeHeaders() {
			req.Header.Set(k, v)
		}
		// only gzip is decoded by readResponseBody
		req.Header.Set("Accept-Encoding", "gzip")

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return page{}, backoff.Permanent(err)
			}
			return page{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return page{}, backoff.Permanent(fetchStatusError("extract", resp.StatusCode))
		}

		body, truncated, err := readResponseBody(resp, maxBytes)
		if err != nil {
			return page{}, fmt.Errorf("read body: %w", err)
		}
		if truncated {
			slog.Warn("fetch: body truncated at size limit",
				slog.String("url", pageURL), slog.Int64("max_bytes", maxBytes))
		}
		return page{
			body:        body,
			contentType: resp.Header.Get("Content-Type"),
			truncated:   truncated,
		}, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	p, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(retries+1)),
		backoff.WithNotify(func(err error, d time.Duration) {
			slog.Debug("fetch: retrying", slog.String("url", pageURL), slog.Duration("after", d), slog.Any("error", err))
		}),
	)
	if err != nil {
		metrics.FetchErrors.Add(1)
		return page{}, WrapFetch("extract", err)
	}
	return p, nil
}

// readResponseBody reads at most maxBytes of the response body, handling gzip
// decompression if needed. Longer bodies are truncated and reported as such.
func readResponseBody(resp *http.Response, maxBytes int64) ([]byte, bool, error) {
	var r io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, false, err
		}
		defer gz.Close()
		r = gz
	}
	if maxBytes <= 0 {
		body, err := io.ReadAll(r)
		return body, false, err
	}
	// one byte past the cap tells a body of exactly maxBytes from a longer one
	body, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(body)) > maxBytes {
		return body[:maxBytes], true, nil
	}
	return body, false, nil
}
