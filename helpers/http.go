package helpers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"sjsage522/hotelpricesync/pkg/errors"
	"sjsage522/hotelpricesync/services/cache"

	"golang.org/x/net/html/charset"
)

// HTTP client and header configurations
var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	}

	referers = []string{
		"https://www.google.com/",
		"https://www.bing.com/",
		"https://duckduckgo.com/",
	}

	rateLimitedCodes = []int{http.StatusTooManyRequests, 430}
)

// DefaultTimeout bounds a single page fetch
const DefaultTimeout = 30 * time.Second

// Fetcher fetches listing pages with browser-like headers. When a cache is
// set, a 429/430 answer blocks further fetches to the same host for
// BlockTime, and fetches during the block fail fast.
type Fetcher struct {
	Client    *http.Client
	Cache     cache.CacheService
	BlockTime time.Duration
}

// NewFetcher creates a fetcher whose client times out after timeout
func NewFetcher(timeout time.Duration, blockCache cache.CacheService, blockTime time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		Client:    &http.Client{Timeout: timeout},
		Cache:     blockCache,
		BlockTime: blockTime,
	}
}

var defaultFetcher = NewFetcher(DefaultTimeout, nil, 0)

// FetchWithRandomHeaders fetches rawURL with the default fetcher
func FetchWithRandomHeaders(ctx context.Context, rawURL string) (io.Reader, error) {
	return defaultFetcher.Fetch(ctx, rawURL)
}

func blockKey(host string) string {
	return "fetch_blocked:" + host
}

// Fetch sends a GET request with randomized headers, converts the response
// body to UTF-8 (if needed), and returns it as an io.Reader.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (io.Reader, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, errors.NewValidation("fetch", fmt.Sprintf("invalid url %q", rawURL))
	}

	if f.Cache != nil {
		if _, err := f.Cache.Get(blockKey(u.Host)); err == nil {
			return nil, errors.NewRateLimit(u.Host, f.BlockTime)
		}
	}

	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.NewNetwork(u.Host, "failed to create request", err)
	}

	// Set browser-like headers
	req.Header.Set("User-Agent", userAgents[rnd.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Referer", referers[rnd.Intn(len(referers))])
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	req.Header.Set("Sec-Fetch-User", "?1")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, errors.NewNetwork(u.Host, "failed to fetch URL", err)
	}
	defer resp.Body.Close()

	if slices.Contains(rateLimitedCodes, resp.StatusCode) {
		block := f.BlockTime
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			block = time.Duration(secs) * time.Second
		}
		if f.Cache != nil && block > 0 {
			f.Cache.Set(blockKey(u.Host), []byte(strconv.Itoa(int(block.Seconds()))), block)
		}
		return nil, errors.NewRateLimit(u.Host, block)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewNetwork(u.Host, fmt.Sprintf("unexpected status code: %d", resp.StatusCode), nil)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetwork(u.Host, "failed to read response body", err)
	}

	// Determine the encoding from Content-Type header and body content
	encoding, name, _ := charset.DetermineEncoding(bodyBytes, resp.Header.Get("Content-Type"))
	if name == "utf-8" || name == "UTF-8" {
		return bytes.NewReader(bodyBytes), nil
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, encoding.NewDecoder().Reader(bytes.NewReader(bodyBytes))); err != nil {
		return nil, errors.NewParsing(u.Host, "failed to convert body to UTF-8", err)
	}
	return &buf, nil
}
