package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/braxsimmons/Cliopa/internal/config"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultMinChars = 10
	maxBodyBytes    = 4 << 20
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	// RatePerSecond caps requests per host. Zero disables the limit.
	RatePerSecond float64
	MinChars      int
	// MaxBytes caps the body size. Zero means 4 MiB.
	MaxBytes int64
}

// OptionsFromConfig maps the sync section to HTTPOptions.
func OptionsFromConfig(cfg config.SyncConfig) HTTPOptions {
	return HTTPOptions{
		Timeout:       cfg.FetchTimeout(),
		RatePerSecond: cfg.FetchRatePerSecond,
	}
}

// AdaptiveLimiter wraps a rate.Limiter with adaptive rate adjustment.
// On success it increases the rate by 20% (up to 2x initial).
// On 429 it halves the rate (down to initial/4 minimum).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	initialRate rate.Limit
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive rate limiter that auto-tunes.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		initialRate: initialRate,
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, up to 2x initial.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	newRate := a.currentRate * 1.2
	if newRate > a.maxRate {
		newRate = a.maxRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
}

// OnRateLimit halves the rate on 429 responses.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	newRate := a.currentRate * 0.5
	if newRate < a.minRate {
		newRate = a.minRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
	zap.L().Warn("fetcher: reducing rate after 429",
		zap.Float64("new_rate", float64(newRate)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// HTTPFetcher implements Fetcher using net/http with per-host rate
// limiting. It never retries: a failed file is simply absent this run.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MinChars <= 0 {
		opts.MinChars = defaultMinChars
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "cliopa-sync/1.0"
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = maxBodyBytes
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: make(map[string]*AdaptiveLimiter),
	}
}

// limiterFor returns the shared limiter of the URL's host, or nil when
// rate limiting is off.
func (f *HTTPFetcher) limiterFor(rawURL string) *AdaptiveLimiter {
	if f.opts.RatePerSecond <= 0 {
		return nil
	}
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		burst := int(f.opts.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		lim = NewAdaptiveLimiter(rate.Limit(f.opts.RatePerSecond), burst)
		f.limiters[host] = lim
	}
	return lim
}

// FetchText GETs rawURL and returns its body as text.
func (f *HTTPFetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	if lim := f.limiterFor(rawURL); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "fetcher: limiter wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "fetcher: get")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusTooManyRequests {
			if lim := f.limiterFor(rawURL); lim != nil {
				lim.OnRateLimit()
			}
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, f.opts.MaxBytes))
		return "", &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBytes+1))
	if err != nil {
		return "", eris.Wrap(err, "fetcher: read body")
	}
	if int64(len(body)) > f.opts.MaxBytes {
		return "", eris.Wrapf(ErrBodyTooLarge, "fetcher: %s exceeds %d bytes", rawURL, f.opts.MaxBytes)
	}
	if lim := f.limiterFor(rawURL); lim != nil {
		lim.OnSuccess()
	}

	text := string(body)
	if utf8.RuneCountInString(text) < f.opts.MinChars {
		return "", ErrShortBody
	}
	return text, nil
}
