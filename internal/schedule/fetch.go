package schedule

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sync"
	"time"

	logx "istubot/pkg/logx"
)

// Fetcher performs retrying, timeout-bounded GETs against the portal.
//
// Transient failures (transport errors, timeouts, 5xx) are retried with
// exponential backoff plus jitter; any other non-2xx status fails
// immediately since it indicates a request problem, not server load.
// A short-lived raw-response cache short-circuits bursts of identical
// requests; it is an optimization only and can be disabled with ttl 0.
type Fetcher struct {
	base      string
	userAgent string
	client    *http.Client

	retries   int
	retryBase time.Duration
	retryMax  time.Duration

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error

	log logx.Logger

	rawTTL time.Duration
	rawMu  sync.Mutex
	raw    map[string]rawEntry
}

type rawEntry struct {
	body string
	at   time.Time
}

// FetcherOptions configures a Fetcher. Zero fields pick defaults.
type FetcherOptions struct {
	BaseURL       string
	UserAgent     string
	Timeout       time.Duration
	Retries       int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	RawCacheTTL   time.Duration
}

const (
	defaultBaseURL   = "https://www.istu.edu/schedule/"
	defaultUserAgent = "istubot/1.0"
)

func NewFetcher(opt FetcherOptions, log logx.Logger) *Fetcher {
	if opt.BaseURL == "" {
		opt.BaseURL = defaultBaseURL
	}
	if opt.UserAgent == "" {
		opt.UserAgent = defaultUserAgent
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 20 * time.Second
	}
	if opt.Retries <= 0 {
		opt.Retries = 3
	}
	if opt.RetryBase <= 0 {
		opt.RetryBase = time.Second
	}
	if opt.RetryMaxDelay <= 0 {
		opt.RetryMaxDelay = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Fetcher{
		base:      opt.BaseURL,
		userAgent: opt.UserAgent,
		client:    &http.Client{Timeout: opt.Timeout},
		retries:   opt.Retries,
		retryBase: opt.RetryBase,
		retryMax:  opt.RetryMaxDelay,
		sleep:     sleepCtx,
		log:       log,
		rawTTL:    opt.RawCacheTTL,
		raw:       map[string]rawEntry{},
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Fetch GETs the portal with the given query parameters and returns the
// raw page body. Params are normalized (sorted) for the raw cache key.
func (f *Fetcher) Fetch(ctx context.Context, params url.Values) (string, error) {
	key := f.base + "?" + params.Encode()

	if body, ok := f.rawGet(key); ok {
		return body, nil
	}

	var lastErr error
	for attempt := 0; attempt < f.retries; attempt++ {
		if attempt > 0 {
			delay := f.backoff(attempt - 1)
			f.log.Warn("portal fetch retry",
				logx.Int("attempt", attempt+1),
				logx.Int("max", f.retries),
				logx.Duration("delay", delay),
				logx.Err(lastErr))
			if err := f.sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		body, retryable, err := f.once(ctx, key)
		if err == nil {
			f.rawPut(key, body)
			return body, nil
		}
		if !retryable {
			return "", err
		}
		lastErr = err
	}

	return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// backoff returns the delay before retry attempt n (0-based): base
// doubled per attempt plus up to 1s of jitter, capped at the maximum.
func (f *Fetcher) backoff(n int) time.Duration {
	d := f.retryBase << n
	d += time.Duration(rand.Int64N(int64(time.Second)))
	if d > f.retryMax {
		d = f.retryMax
	}
	return d
}

func (f *Fetcher) once(ctx context.Context, rawURL string) (body string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", false, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", true, fmt.Errorf("portal returned %d", resp.StatusCode)
	}
	if resp.StatusCode/100 != 2 {
		// Client-side request problem; retrying cannot fix it.
		return "", false, fmt.Errorf("%w: portal returned %d", ErrBadPage, resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, err
	}
	return string(b), false, nil
}

func (f *Fetcher) rawGet(key string) (string, bool) {
	if f.rawTTL <= 0 {
		return "", false
	}
	now := time.Now()
	f.rawMu.Lock()
	defer f.rawMu.Unlock()
	for k, e := range f.raw {
		if now.Sub(e.at) > f.rawTTL {
			delete(f.raw, k)
		}
	}
	e, ok := f.raw[key]
	if !ok {
		return "", false
	}
	return e.body, true
}

func (f *Fetcher) rawPut(key, body string) {
	if f.rawTTL <= 0 {
		return
	}
	f.rawMu.Lock()
	f.raw[key] = rawEntry{body: body, at: time.Now()}
	f.rawMu.Unlock()
}
