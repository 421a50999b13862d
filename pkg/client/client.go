// Package client wraps the DOPA eSpecies REST service. Every endpoint returns
// a normalized table; country arguments are resolved to ISO 3166-1 numeric
// codes and status filters are checked against the IUCN Red List categories
// before any request is sent.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/coolbeans/dopa/pkg/config"
	"github.com/coolbeans/dopa/pkg/country"
	"github.com/coolbeans/dopa/pkg/geometry"
	"github.com/coolbeans/dopa/pkg/logging"
	"github.com/coolbeans/dopa/pkg/observability"
	"github.com/coolbeans/dopa/pkg/status"
	"github.com/coolbeans/dopa/pkg/table"
)

// DefaultUserAgent is the default User-Agent header sent with DOPA requests.
const DefaultUserAgent = "dopa-go-client/1.0"

// RequestIDHeader carries a fresh UUID on every attempt.
const RequestIDHeader = "X-Request-ID"

// defaultMaxBodyBytes bounds how much of a response body is read.
const defaultMaxBodyBytes = 64 << 20

// Service endpoint paths, relative to the base URL.
const (
	EndpointCountryList        = "get_country_list"
	EndpointSpeciesList        = "get_country_species_list"
	EndpointSpeciesCount       = "get_country_species_count"
	EndpointProtectedAreaStats = "get_country_pa_stats"
	EndpointProtectedAreaList  = "get_country_pa_list"
)

// Query parameter names understood by the service.
const (
	ParamCountry = "c_un_m49"
	ParamStatus  = "status"
)

// GeometryColumn is the WKT column returned by the protected-area list.
const GeometryColumn = "geom"

// RetryPolicy defines retry behavior for transient failures.
type RetryPolicy struct {
	// MaxAttempts counts the first try. 1 disables retries.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Config holds configuration for a Client.
type Config struct {
	// BaseURL is the service root, e.g. DefaultBaseURL.
	BaseURL string

	// HTTPClient is the underlying transport. If nil, a plain *http.Client
	// is used. It is always wrapped with rate limiting.
	HTTPClient HTTPClient

	// RateLimit is the minimum interval between requests.
	RateLimit time.Duration

	// Timeout bounds each attempt.
	Timeout time.Duration

	UserAgent string

	// CacheDir enables the on-disk response cache when non-empty.
	CacheDir string
	CacheTTL time.Duration

	Retry RetryPolicy
}

// DefaultConfig returns a Config with the same defaults as config.Default.
func DefaultConfig() Config {
	return FromConfig(config.Default())
}

// FromConfig maps loaded settings onto a client Config.
func FromConfig(settings config.Config) Config {
	return Config{
		BaseURL:   settings.Client.BaseURL,
		RateLimit: settings.Client.RateLimit,
		Timeout:   settings.Client.Timeout,
		UserAgent: settings.Client.UserAgent,
		CacheDir:  settings.Cache.Dir,
		CacheTTL:  settings.Cache.TTL,
		Retry: RetryPolicy{
			MaxAttempts:  settings.Client.Retry.MaxAttempts,
			InitialDelay: settings.Client.Retry.InitialDelay,
			MaxDelay:     settings.Client.Retry.MaxDelay,
		},
	}
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the logger used for request logs and status diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(dopaClient *Client) {
		if logger != nil {
			dopaClient.logger = logger
		}
	}
}

// WithMetrics records request metrics on collector.
func WithMetrics(collector *observability.ClientCollector) Option {
	return func(dopaClient *Client) {
		dopaClient.metrics = collector
	}
}

// WithResolver replaces the country resolver backed by the bundled ISO table.
func WithResolver(resolver *country.Resolver) Option {
	return func(dopaClient *Client) {
		if resolver != nil {
			dopaClient.resolver = resolver
		}
	}
}

// WithTableOptions sets the normalization options applied to every response.
func WithTableOptions(opts table.Options) Option {
	return func(dopaClient *Client) {
		dopaClient.tableOptions = opts
	}
}

// Client provides typed access to the DOPA endpoints. It is safe for
// concurrent use.
type Client struct {
	baseURL      string
	httpClient   HTTPClient
	timeout      time.Duration
	userAgent    string
	retryPolicy  RetryPolicy
	cache        *DiskCache
	resolver     *country.Resolver
	logger       *logging.Logger
	metrics      *observability.ClientCollector
	tableOptions table.Options
	maxBodyBytes int64
	requests     atomic.Int64
}

// New creates a Client. It fails when the base URL is unusable or the cache
// directory cannot be created.
func New(cfg Config, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	underlyingClient := cfg.HTTPClient
	if underlyingClient == nil {
		underlyingClient = newDefaultHTTPClient()
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	retryPolicy := cfg.Retry
	if retryPolicy.MaxAttempts < 1 {
		retryPolicy.MaxAttempts = 1
	}
	if retryPolicy.InitialDelay <= 0 {
		retryPolicy.InitialDelay = 500 * time.Millisecond
	}
	if retryPolicy.MaxDelay < retryPolicy.InitialDelay {
		retryPolicy.MaxDelay = retryPolicy.InitialDelay
	}

	dopaClient := &Client{
		baseURL:      baseURL,
		httpClient:   NewRateLimitedHTTPClient(underlyingClient, cfg.RateLimit),
		timeout:      cfg.Timeout,
		userAgent:    userAgent,
		retryPolicy:  retryPolicy,
		resolver:     country.NewResolver(nil),
		logger:       logging.Discard(),
		tableOptions: table.DefaultOptions(),
		maxBodyBytes: defaultMaxBodyBytes,
	}

	if cfg.CacheDir != "" {
		cacheTTL := cfg.CacheTTL
		if cacheTTL <= 0 {
			cacheTTL = 24 * time.Hour
		}
		diskCache, err := NewDiskCache(cfg.CacheDir, cacheTTL)
		if err != nil {
			return nil, err
		}
		dopaClient.cache = diskCache
	}

	for _, opt := range opts {
		opt(dopaClient)
	}
	return dopaClient, nil
}

// BaseURL returns the normalized service root.
func (dopaClient *Client) BaseURL() string {
	return dopaClient.baseURL
}

// Requests returns the number of requests sent over the network, retries
// included.
func (dopaClient *Client) Requests() int64 {
	return dopaClient.requests.Load()
}

// ClearCache removes every cached response. It is a no-op when caching is
// disabled.
func (dopaClient *Client) ClearCache() (int, error) {
	if dopaClient.cache == nil {
		return 0, nil
	}
	return dopaClient.cache.Clear()
}

// CountryList returns the countries known to the service.
func (dopaClient *Client) CountryList(ctx context.Context) (*table.Table, error) {
	return dopaClient.fetchTable(ctx, EndpointCountryList, nil)
}

// SpeciesList returns the species recorded for a country. A nil or empty
// statuses slice requests every status; otherwise the valid codes are sent
// and invalid ones are logged and dropped.
func (dopaClient *Client) SpeciesList(ctx context.Context, countryID any, statuses []string) (*table.Table, error) {
	query, err := dopaClient.speciesQuery(countryID, statuses)
	if err != nil {
		return nil, err
	}
	return dopaClient.fetchTable(ctx, EndpointSpeciesList, query)
}

// SpeciesCount returns species counts per status for a country.
func (dopaClient *Client) SpeciesCount(ctx context.Context, countryID any, statuses []string) (*table.Table, error) {
	query, err := dopaClient.speciesQuery(countryID, statuses)
	if err != nil {
		return nil, err
	}
	return dopaClient.fetchTable(ctx, EndpointSpeciesCount, query)
}

// ProtectedAreaStats returns protected-area coverage statistics for a country.
func (dopaClient *Client) ProtectedAreaStats(ctx context.Context, countryID any) (*table.Table, error) {
	query, err := dopaClient.countryQuery(countryID)
	if err != nil {
		return nil, err
	}
	return dopaClient.fetchTable(ctx, EndpointProtectedAreaStats, query)
}

// ProtectedAreaList returns the protected areas of a country, including the
// WKT outline in GeometryColumn.
func (dopaClient *Client) ProtectedAreaList(ctx context.Context, countryID any) (*table.Table, error) {
	query, err := dopaClient.countryQuery(countryID)
	if err != nil {
		return nil, err
	}
	return dopaClient.fetchTable(ctx, EndpointProtectedAreaList, query)
}

// ProtectedAreaGeometries fetches the protected-area list and materializes
// its outlines in the default CRS.
func (dopaClient *Client) ProtectedAreaGeometries(ctx context.Context, countryID any) (*geometry.Collection, error) {
	areas, err := dopaClient.ProtectedAreaList(ctx, countryID)
	if err != nil {
		return nil, err
	}
	return geometry.ToGeometries(areas, GeometryColumn, geometry.DefaultCRS)
}

func (dopaClient *Client) countryQuery(countryID any) (url.Values, error) {
	code, err := dopaClient.resolver.ResolveCode(countryID)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set(ParamCountry, strconv.Itoa(code))
	return query, nil
}

func (dopaClient *Client) speciesQuery(countryID any, statuses []string) (url.Values, error) {
	query, err := dopaClient.countryQuery(countryID)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return query, nil
	}
	valid, err := status.Validate(statuses, dopaClient.logger)
	if err != nil {
		return nil, err
	}
	query.Set(ParamStatus, strings.Join(valid, ","))
	return query, nil
}

// endpointURL joins the base URL, endpoint path and query.
func (dopaClient *Client) endpointURL(endpoint string, query url.Values) string {
	requestURL := dopaClient.baseURL + "/" + endpoint
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}
	return requestURL
}

func (dopaClient *Client) fetchTable(ctx context.Context, endpoint string, query url.Values) (*table.Table, error) {
	records, err := dopaClient.fetchRecords(ctx, endpoint, query)
	if err != nil {
		return nil, err
	}
	return table.Normalize(records, dopaClient.tableOptions), nil
}

// fetchRecords returns the decoded records for one endpoint call, consulting
// the cache first. Only bodies that decode cleanly are cached.
func (dopaClient *Client) fetchRecords(ctx context.Context, endpoint string, query url.Values) ([]table.Record, error) {
	requestURL := dopaClient.endpointURL(endpoint, query)

	if dopaClient.cache != nil {
		if body, found := dopaClient.cache.Get(requestURL); found {
			if records, err := table.DecodeRecords(body); err == nil {
				dopaClient.metrics.IncCacheHits()
				dopaClient.logger.Debug("cache hit", "endpoint", endpoint, "url", requestURL)
				return records, nil
			}
		}
	}

	started := time.Now()
	body, err := dopaClient.get(ctx, endpoint, requestURL)
	if err != nil {
		dopaClient.metrics.ObserveRequest(endpoint, outcomeFor(err), time.Since(started))
		dopaClient.logger.Warn("request failed", "endpoint", endpoint, "url", requestURL, "error", err)
		return nil, err
	}

	records, err := table.DecodeRecords(body)
	if err != nil {
		dopaClient.metrics.ObserveRequest(endpoint, observability.OutcomeError, time.Since(started))
		return nil, fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	dopaClient.metrics.ObserveRequest(endpoint, observability.OutcomeOK, time.Since(started))
	dopaClient.logger.Debug("request complete", "endpoint", endpoint, "records", len(records), "duration", time.Since(started))

	if dopaClient.cache != nil {
		if err := dopaClient.cache.Set(requestURL, body); err != nil {
			dopaClient.logger.Warn("failed to cache response", "url", requestURL, "error", err)
		}
	}
	return records, nil
}

// get performs a GET with retries on network errors, 5xx and 429.
func (dopaClient *Client) get(ctx context.Context, endpoint, requestURL string) ([]byte, error) {
	backoff := retry.NewExponential(dopaClient.retryPolicy.InitialDelay)
	backoff = retry.WithCappedDuration(dopaClient.retryPolicy.MaxDelay, backoff)
	backoff = retry.WithMaxRetries(uint64(dopaClient.retryPolicy.MaxAttempts-1), backoff)

	var body []byte
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			dopaClient.metrics.IncRetries()
			dopaClient.logger.Debug("retrying request", "endpoint", endpoint, "attempt", attempt)
		}

		data, err := dopaClient.attempt(ctx, requestURL)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var httpErr *HTTPError
			if errors.As(err, &httpErr) && !httpErr.Temporary() {
				return err
			}
			if errors.Is(err, ErrBodyTooLarge) {
				return err
			}
			return retry.RetryableError(err)
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// attempt sends a single request under the per-attempt timeout.
func (dopaClient *Client) attempt(ctx context.Context, requestURL string) ([]byte, error) {
	if dopaClient.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dopaClient.timeout)
		defer cancel()
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", requestURL, err)
	}
	request.Header.Set("User-Agent", dopaClient.userAgent)
	request.Header.Set("Accept", "application/json")
	request.Header.Set(RequestIDHeader, uuid.NewString())

	dopaClient.requests.Add(1)
	response, err := dopaClient.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", requestURL, err)
	}
	defer response.Body.Close()

	data, err := io.ReadAll(io.LimitReader(response.Body, dopaClient.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", requestURL, err)
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, &HTTPError{
			StatusCode: response.StatusCode,
			URL:        requestURL,
			Body:       snippet(data),
		}
	}
	if int64(len(data)) > dopaClient.maxBodyBytes {
		return nil, fmt.Errorf("response from %s exceeds %d bytes: %w", requestURL, dopaClient.maxBodyBytes, ErrBodyTooLarge)
	}
	return data, nil
}

func outcomeFor(err error) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return observability.OutcomeHTTPError
	}
	return observability.OutcomeError
}
