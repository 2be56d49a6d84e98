package enrichment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/k3a/html2text"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/tphakala/codescan/internal/errors"
	"github.com/tphakala/codescan/internal/logger"
	"github.com/tphakala/codescan/internal/observability/metrics"
)

// maxBodySize caps how much of a product response is read.
const maxBodySize = 2 << 20

// Client looks up products on Open Food Facts. It is safe for concurrent use.
type Client struct {
	config     Config
	httpClient *http.Client
	cache      *cache.Cache
	group      singleflight.Group
	limiter    *rate.Limiter
	sem        *semaphore.Weighted
	metrics    *metrics.EnrichmentMetrics
	logger     logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMetrics enables lookup metrics.
func WithMetrics(m *metrics.EnrichmentMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger overrides the package logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates an Open Food Facts client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.Newf("enrichment base URL is required").
			Component("enrichment").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, errors.New(err).
			Component("enrichment").
			Category(errors.CategoryConfiguration).
			Context("base_url", cfg.BaseURL).
			Build()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = 0
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	c := &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger:     logger.Global().Module("enrichment"),
	}
	if cfg.CacheTTL > 0 {
		c.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Lookup resolves barcode to product data. It never returns an error; failures
// come back as OutcomeUnavailable with a reason.
func (c *Client) Lookup(ctx context.Context, barcode string) Outcome {
	start := time.Now()
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return Unavailable("empty barcode")
	}

	if out, ok := c.cached(barcode); ok {
		c.recordLookup(out, start)
		return out
	}

	// The shared fetch must not be cancelled by whichever caller started it,
	// so it runs detached under its own timeout.
	ch := c.group.DoChan(barcode, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.Timeout)
		defer cancel()
		out := c.fetch(fetchCtx, barcode)
		if c.cache != nil && (out.Kind == OutcomeFound || out.Kind == OutcomeNotFound) {
			c.cache.Set(barcode, out, cache.DefaultExpiration)
		}
		return out, nil
	})

	select {
	case res := <-ch:
		out, _ := res.Val.(Outcome)
		c.recordLookup(out, start)
		if out.Kind == OutcomeUnavailable {
			c.logger.Warn("product lookup unavailable",
				logger.String("barcode", barcode),
				logger.String("reason", out.Reason))
		}
		return out
	case <-ctx.Done():
		out := Unavailable(fmt.Sprintf("lookup cancelled: %v", ctx.Err()))
		c.recordLookup(out, start)
		return out
	}
}

func (c *Client) cached(barcode string) (Outcome, bool) {
	if c.cache == nil {
		return Outcome{}, false
	}
	v, ok := c.cache.Get(barcode)
	if c.metrics != nil {
		c.metrics.RecordCacheAccess(ok)
	}
	if !ok {
		return Outcome{}, false
	}
	out, ok := v.(Outcome)
	return out, ok
}

func (c *Client) recordLookup(out Outcome, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordLookup(string(out.Kind), time.Since(start))
	}
}

// ClearCache drops all cached outcomes.
func (c *Client) ClearCache() {
	if c.cache != nil {
		c.cache.Flush()
	}
}

// fetch runs the request with retries under the concurrency cap.
func (c *Client) fetch(ctx context.Context, barcode string) Outcome {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return Unavailable(fmt.Sprintf("waiting for lookup slot: %v", err))
	}
	defer c.sem.Release(1)

	if c.metrics != nil {
		c.metrics.LookupStarted()
		defer c.metrics.LookupFinished()
	}

	var last Outcome
	for attempt := range c.config.MaxRetries {
		if attempt > 0 {
			if c.metrics != nil {
				c.metrics.RecordRetry()
			}
			backoff := time.Duration(attempt) * c.config.RetryBackoff
			c.logger.Debug("retrying product lookup",
				logger.String("barcode", barcode),
				logger.Int("attempt", attempt+1),
				logger.Duration("backoff", backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return Unavailable(fmt.Sprintf("%s; gave up: %v", last.Reason, ctx.Err()))
			}
		}

		out, retry := c.doRequest(ctx, barcode)
		if !retry {
			return out
		}
		last = out
	}
	return last
}

// doRequest performs one HTTP round trip. The second return value reports
// whether the failure is worth retrying.
func (c *Client) doRequest(ctx context.Context, barcode string) (Outcome, bool) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Unavailable(fmt.Sprintf("rate limiter: %v", err)), false
	}

	reqURL := fmt.Sprintf("%s/api/v0/product/%s.json", c.config.BaseURL, url.PathEscape(barcode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return Unavailable(fmt.Sprintf("building request: %v", err)), false
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordHTTPRequest(0)
		}
		// a cancelled or expired context cannot succeed on retry
		return Unavailable(fmt.Sprintf("request failed: %v", err)), ctx.Err() == nil
	}
	defer func() { _ = resp.Body.Close() }()

	if c.metrics != nil {
		c.metrics.RecordHTTPRequest(resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		retry := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return Unavailable(fmt.Sprintf("unexpected status %d", resp.StatusCode)), retry
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Unavailable(fmt.Sprintf("reading response: %v", err)), ctx.Err() == nil
	}

	return parseProductResponse(body), false
}

// parseProductResponse maps an OFF v0 product body onto an Outcome.
func parseProductResponse(body []byte) Outcome {
	obj, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return Unavailable(fmt.Sprintf("decoding response: %v", err))
	}

	status, err := obj.GetInt64("status")
	if err != nil {
		return Unavailable(fmt.Sprintf("decoding status: %v", err))
	}
	if status != 1 {
		return NotFound()
	}

	product, err := obj.GetObject("product")
	if err != nil {
		// status 1 with a null or missing product carries nothing to store
		return NotFound()
	}

	name := UnknownProductName
	if s, err := product.GetString("product_name"); err == nil {
		name = strings.TrimSpace(s)
	}

	return Found(Product{
		Name:        name,
		Brand:       optionalString(product, "brands"),
		Ingredients: plainText(optionalString(product, "ingredients_text")),
		NutriScore:  ParseNutriScore(optionalString(product, "nutrition_grades")),
	})
}

func optionalString(obj *jason.Object, key string) string {
	s, err := obj.GetString(key)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// plainText strips markup OFF leaves in ingredient lists, e.g. <span class="allergen">.
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	return strings.TrimSpace(html2text.HTML2Text(s))
}
