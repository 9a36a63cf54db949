// Package fetch implements the plain-HTTP fetch collaborator with Colly.
// It serves sitemap retrieval and image download; rendered pages go through
// the browser package instead.
package fetch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/shelfscan/shelfscan/internal/crawler"
	"github.com/shelfscan/shelfscan/internal/ratelimit"
)

// Config controls the Colly collector behind the fetcher.
type Config struct {
	UserAgent      string
	RequestTimeout time.Duration
	MaxBodyBytes   int
	// RequestsPerSecond caps the sustained per-host request rate; zero
	// means unlimited.
	RequestsPerSecond float64
}

// CollyFetcher implements crawler.Fetcher using a shared base collector that
// is cloned per request.
type CollyFetcher struct {
	baseCollector *colly.Collector
	limiter       *ratelimit.Limiter
	logger        *zap.Logger
}

// New constructs a configured Colly-based fetcher.
func New(cfg Config, logger *zap.Logger) (*CollyFetcher, error) {
	if cfg.UserAgent == "" {
		return nil, errors.New("user agent is required")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	base := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
	)
	base.AllowURLRevisit = true
	if cfg.MaxBodyBytes > 0 {
		base.MaxBodySize = cfg.MaxBodyBytes
	}
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(timeout)

	return &CollyFetcher{
		baseCollector: base,
		limiter:       ratelimit.New(ratelimit.Config{RPS: cfg.RequestsPerSecond, Burst: 2}),
		logger:        logger,
	}, nil
}

// Get retrieves rawURL and returns its body plus status code. HTTP error
// statuses are returned as results, not errors; callers check FetchResult.OK.
func (f *CollyFetcher) Get(ctx context.Context, rawURL string, headers http.Header) (crawler.FetchResult, error) {
	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return crawler.FetchResult{}, err
	}

	collector := f.baseCollector.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range headers {
			for _, v := range values {
				r.Headers.Set(key, v)
			}
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		send(fetchResult{result: crawler.FetchResult{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte{}, r.Body...),
		}})
	})

	collector.OnError(func(r *colly.Response, err error) {
		// Non-2xx responses surface here; keep the status so callers can
		// treat them as soft failures.
		if r != nil && r.StatusCode > 0 {
			send(fetchResult{result: crawler.FetchResult{
				URL:        rawURL,
				StatusCode: r.StatusCode,
				Body:       append([]byte{}, r.Body...),
			}})
			return
		}
		if err == nil {
			err = errors.New("unknown colly error")
		}
		f.logger.Debug("fetch failed", zap.String("url", rawURL), zap.Error(err))
		send(fetchResult{err: &crawler.TransientFetchError{URL: rawURL, Err: err}})
	})

	if err := collector.Visit(rawURL); err != nil {
		return crawler.FetchResult{}, &crawler.TransientFetchError{URL: rawURL, Err: err}
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return crawler.FetchResult{}, err
		}
		return res.result, res.err
	default:
		return crawler.FetchResult{}, &crawler.TransientFetchError{URL: rawURL, Err: errors.New("fetch produced no result")}
	}
}

type fetchResult struct {
	result crawler.FetchResult
	err    error
}
