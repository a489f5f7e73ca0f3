// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenk/backoff"
	"github.com/charmbracelet/log"
	"github.com/rs/dnscache"
	circuit "github.com/rubyist/circuitbreaker"

	"github.com/modforge/modforge/pkg/metadata"
	"github.com/modforge/modforge/pkg/resolver"
	"github.com/modforge/modforge/pkg/semver"
)

const (
	// DefaultUserAgent identifies registry requests.
	DefaultUserAgent = "modforge/1.0"
	// DefaultMaxRetries is the number of retries after a retryable failure.
	DefaultMaxRetries = 3
	// DefaultTripThreshold is the number of consecutive failures that opens the breaker.
	DefaultTripThreshold = 5

	maxListingSize = 8 << 20
)

var (
	// ErrNotFound is returned for a module or release the registry does not have.
	ErrNotFound = errors.New("not found in registry")
	// ErrRateLimited is returned when the registry throttles requests.
	ErrRateLimited = errors.New("rate limited by registry")
	// ErrUnavailable is returned for server errors and an open circuit breaker.
	ErrUnavailable = errors.New("registry unavailable")
)

type (
	// HTTPOption configures an HTTPRegistry.
	HTTPOption func(*HTTPRegistry)

	// HTTPRegistry lists and downloads releases over HTTP:
	//
	//	GET <base>/v3/modules/<owner>-<name>            release listing
	//	GET <base>/v3/files/<owner>-<name>-<version>.tar.gz
	HTTPRegistry struct {
		base       *url.URL
		client     *http.Client
		userAgent  string
		maxRetries int
		baseDelay  time.Duration
		authFn     func(req *http.Request)
		logger     *log.Logger

		breaker  *circuit.Breaker
		stopOnce sync.Once
		stop     chan struct{}
	}

	moduleListing struct {
		Releases []struct {
			Version string `json:"version"`
			FileURI string `json:"file_uri"`
		} `json:"releases"`
	}
)

// WithHTTPClient replaces the DNS-caching client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(r *HTTPRegistry) { r.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(r *HTTPRegistry) {
		if ua != "" {
			r.userAgent = ua
		}
	}
}

// WithMaxRetries sets the number of retries after a retryable failure.
func WithMaxRetries(n int) HTTPOption {
	return func(r *HTTPRegistry) { r.maxRetries = max(n, 0) }
}

// WithBaseDelay sets the first retry delay.
func WithBaseDelay(d time.Duration) HTTPOption {
	return func(r *HTTPRegistry) { r.baseDelay = d }
}

// WithAuth sets a hook that decorates every request, typically with an
// Authorization header.
func WithAuth(fn func(req *http.Request)) HTTPOption {
	return func(r *HTTPRegistry) { r.authFn = fn }
}

// WithHTTPLogger sets the request logger.
func WithHTTPLogger(l *log.Logger) HTTPOption {
	return func(r *HTTPRegistry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTripThreshold sets how many consecutive failures open the circuit breaker.
func WithTripThreshold(n int64) HTTPOption {
	return func(r *HTTPRegistry) { r.breaker = newBreaker(n) }
}

// NewHTTP returns a registry rooted at baseURL. Close releases the DNS
// refresh goroutine.
func NewHTTP(baseURL string, opts ...HTTPOption) (*HTTPRegistry, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid registry URL %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid registry URL %q: scheme must be http or https", baseURL)
	}

	r := &HTTPRegistry{
		base:       base,
		userAgent:  DefaultUserAgent,
		maxRetries: DefaultMaxRetries,
		baseDelay:  500 * time.Millisecond,
		logger:     log.New(io.Discard),
		breaker:    newBreaker(DefaultTripThreshold),
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = r.cachingClient()
	}
	return r, nil
}

// Close stops background DNS refreshing.
func (r *HTTPRegistry) Close() error {
	r.stopOnce.Do(func() { close(r.stop) })
	return nil
}

// cachingClient builds a client whose dialer resolves hosts through a
// periodically refreshed DNS cache.
func (r *HTTPRegistry) cachingClient() *http.Client {
	dns := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				dns.Refresh(true)
			case <-r.stop:
				return
			}
		}
	}()

	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: 5 * time.Minute,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, err
				}
				ips, err := dns.LookupHost(ctx, host)
				if err != nil {
					return nil, err
				}
				for _, ip := range ips {
					conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
					if err == nil {
						return conn, nil
					}
				}
				return nil, fmt.Errorf("failed to dial any address of %s", host)
			},
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}

func newBreaker(threshold int64) *circuit.Breaker {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	return circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(threshold),
	})
}

// Tripped reports whether the circuit breaker is open.
func (r *HTTPRegistry) Tripped() bool { return r.breaker.Tripped() }

// Versions implements resolver.Registry.
func (r *HTTPRegistry) Versions(ctx context.Context, name metadata.ModuleName) ([]semver.Version, error) {
	body, err := r.get(ctx, "v3/modules/"+url.PathEscape(name.String()))
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", resolver.ErrUnknownModule, name)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	var listing moduleListing
	if err := json.NewDecoder(io.LimitReader(body, maxListingSize)).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode release listing of %s: %w", name, err)
	}
	var versions []semver.Version
	for _, rel := range listing.Releases {
		v, err := semver.Parse(rel.Version)
		if err != nil {
			r.logger.Warn("skipping release with invalid version", "module", name.String(), "version", rel.Version)
			continue
		}
		versions = append(versions, v)
	}
	return versions, nil
}

// Fetch implements cache.Fetcher.
func (r *HTTPRegistry) Fetch(ctx context.Context, name metadata.ModuleName, version semver.Version) (io.ReadCloser, error) {
	return r.get(ctx, "v3/files/"+url.PathEscape(FileName(name, version)))
}

// get issues a GET through the circuit breaker, retrying rate limits and
// server errors with exponential backoff. The caller closes the body.
func (r *HTTPRegistry) get(ctx context.Context, rel string) (io.ReadCloser, error) {
	target := r.base.JoinPath(rel).String()
	if !r.breaker.Ready() {
		return nil, fmt.Errorf("circuit breaker open for %s: %w", r.base.Host, ErrUnavailable)
	}

	var (
		body     io.ReadCloser
		notFound error
	)
	err := r.breaker.Call(func() error {
		b, err := r.getWithRetry(ctx, target)
		// A missing module is an answer, not a registry failure.
		if errors.Is(err, ErrNotFound) {
			notFound = err
			return nil
		}
		body = b
		return err
	}, 0)
	if notFound != nil {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (r *HTTPRegistry) getWithRetry(ctx context.Context, target string) (io.ReadCloser, error) {
	delays := backoff.NewExponentialBackOff()
	delays.InitialInterval = r.baseDelay
	delays.RandomizationFactor = 0.1
	delays.Reset()

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := delays.NextBackOff()
			r.logger.Debug("retrying registry request", "url", target, "attempt", attempt, "delay", delay, "err", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := r.do(ctx, target)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !errors.Is(err, ErrRateLimited) && !errors.Is(err, ErrUnavailable) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (r *HTTPRegistry) do(ctx context.Context, target string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "*/*")
	if r.authFn != nil {
		r.authFn(req)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", target, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp.Body, nil
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, target)
	case resp.StatusCode == http.StatusTooManyRequests:
		_ = resp.Body.Close()
		return nil, ErrRateLimited
	case resp.StatusCode >= 500:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, target, strings.TrimSpace(string(msg)))
	}
}
