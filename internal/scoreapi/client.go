// Package scoreapi is the client for the GEOINT scoring backend: province and
// district keyword scores plus competitor ranking comparisons.
package scoreapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoint-cli/internal/boundary"
	"github.com/sells-group/geoint-cli/internal/fetcher"
	"github.com/sells-group/geoint-cli/internal/resilience"
)

// ErrNotFound is returned when the backend answers 404 (e.g. unknown comparison).
var ErrNotFound = eris.New("scoreapi: not found")

// Endpoint paths relative to the base URL.
const (
	provincesPath  = "/api/geoint/provinces"
	districtsPath  = "/api/geoint/districts"
	comparisonPath = "/api/competitors/comparisons/"
)

// Client fetches score payloads from the backend.
type Client struct {
	baseURL  string
	token    string
	fetcher  fetcher.Fetcher
	cache    *PayloadCache
	timeout  time.Duration
	rps      float64
	retry    resilience.RetryConfig
	injected bool
}

// Option configures the Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithRateLimit sets the requests-per-second limit toward the backend.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		c.rps = rps
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithCache enables payload caching.
func WithCache(cache *PayloadCache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithFetcher replaces the HTTP fetcher; rate limit, timeout and retry
// options are then ignored.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(c *Client) {
		c.fetcher = f
		c.injected = true
	}
}

// NewClient creates a Client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: 20 * time.Second,
		rps:     5,
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if !c.injected {
		c.retry.OnRetry = resilience.RetryLogger("scoreapi", "fetch")
		c.fetcher = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:     "geoint-cli/1.0",
			Timeout:       c.timeout,
			Retry:         c.retry,
			RatePerSecond: c.rps,
		})
	}
	return c
}

// Provinces fetches province scores for keyword.
func (c *Client) Provinces(ctx context.Context, keyword string) (*boundary.ScoreCollection, error) {
	q := url.Values{}
	q.Set("keyword", keyword)
	data, err := c.get(ctx, RequestKey{Kind: KindProvinces, Keyword: keyword}, provincesPath, q)
	if err != nil {
		return nil, err
	}
	return boundary.ParseScores(data)
}

// Districts fetches district scores for keyword. provinceCode may be empty.
func (c *Client) Districts(ctx context.Context, keyword, provinceCode string) (*boundary.ScoreCollection, error) {
	q := url.Values{}
	q.Set("keyword", keyword)
	code := boundary.PadProvinceCode(provinceCode)
	if code != "" {
		q.Set("province_code", code)
	}
	data, err := c.get(ctx, RequestKey{Kind: KindDistricts, Keyword: keyword, ProvinceCode: code}, districtsPath, q)
	if err != nil {
		return nil, err
	}
	return boundary.ParseScores(data)
}

// Comparison fetches the regions of competitor comparison id.
func (c *Client) Comparison(ctx context.Context, id string) ([]boundary.ComparisonRegion, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, eris.New("scoreapi: empty comparison id")
	}
	data, err := c.get(ctx, RequestKey{Kind: KindComparison, ComparisonID: id}, comparisonPath+url.PathEscape(id)+"/regions", nil)
	if err != nil {
		return nil, err
	}
	return boundary.ParseComparison(data)
}

// CacheStats returns payload cache statistics; zero when caching is off.
func (c *Client) CacheStats() CacheStats {
	if c.cache == nil {
		return CacheStats{}
	}
	return c.cache.Stats()
}

// ForgetKeyword drops cached province and district payloads for keyword.
func (c *Client) ForgetKeyword(keyword string) int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Drop(func(k RequestKey) bool {
		return k.Kind != KindComparison && k.Keyword == keyword
	})
}

// ForgetComparison drops the cached regions of comparison id.
func (c *Client) ForgetComparison(id string) int {
	if c.cache == nil {
		return 0
	}
	id = strings.TrimSpace(id)
	return c.cache.Drop(func(k RequestKey) bool {
		return k.Kind == KindComparison && k.ComparisonID == id
	})
}

func (c *Client) get(ctx context.Context, key RequestKey, path string, q url.Values) ([]byte, error) {
	if c.cache != nil {
		if data, ok := c.cache.Lookup(key); ok {
			return data, nil
		}
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	data, err := c.fetcher.Fetch(ctx, u, header)
	if err != nil {
		var se *fetcher.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, eris.Wrapf(ErrNotFound, "%s", path)
		}
		return nil, eris.Wrapf(err, "scoreapi: get %s", path)
	}
	zap.L().Debug("scoreapi: fetched payload",
		zap.String("path", path),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if c.cache != nil {
		c.cache.Store(key, data)
	}
	return data, nil
}
