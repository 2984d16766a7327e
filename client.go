package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"

	"github.com/coinlens/upstream/internal/httpclient"
	"github.com/coinlens/upstream/internal/resilience"
	"github.com/coinlens/upstream/internal/respcache"
	"github.com/coinlens/upstream/internal/scrub"
)

// Client is the resilient HTTP client for one logical upstream API. It owns
// the three state containers scoped to that upstream: a token bucket, a
// circuit breaker, and a response cache. Construct one Client per upstream
// at application start and inject the same instance into every collector
// that talks to it; all methods are safe for concurrent use.
type Client struct {
	cfg            Config
	httpClient     *http.Client
	logger         *slog.Logger
	bucket         *resilience.TokenBucket
	shared         *rate.Limiter
	breaker        *resilience.Breaker
	cache          *respcache.Cache
	retry          resilience.RetryConfig
	clock          clock.Clock
	defaultHeaders http.Header
	secrets        []string
	apiKeys        []apiKeySpec
}

type apiKeySpec struct {
	header string
	cred   Credential
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRateLimit sets the token bucket's refill rate and burst capacity.
func WithRateLimit(tokensPerSecond, maxTokens float64) Option {
	return func(c *Client) {
		c.cfg.TokensPerSecond = tokensPerSecond
		c.cfg.MaxTokens = maxTokens
	}
}

// WithBreaker sets the circuit breaker's trip threshold and the open
// duration before a half-open trial.
func WithBreaker(failureThreshold uint32, recoveryTimeout time.Duration) Option {
	return func(c *Client) {
		c.cfg.FailureThreshold = failureThreshold
		c.cfg.RecoveryTimeout = recoveryTimeout
	}
}

// WithDefaultTTL sets the cache TTL used when a call carries no override.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cfg.DefaultTTL = ttl
	}
}

// WithRetries sets the number of retries after the first attempt.
func WithRetries(max int) Option {
	return func(c *Client) {
		c.cfg.MaxRetries = max
	}
}

// WithRequestTimeout bounds each individual network attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.cfg.RequestTimeout = d
	}
}

// WithSharedLimiter layers a process-wide egress limiter under the
// per-upstream bucket. Pass the same *rate.Limiter to every Client to cap
// total outbound rate across all upstreams.
func WithSharedLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.shared = l
	}
}

// WithClock injects a time source for the bucket and cache (useful for
// testing).
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		c.clock = clk
	}
}

// WithAPIKey resolves cred from the environment at construction time. When
// present, its value is sent as the given header on every request and
// redacted from error text before logging. When absent the client simply
// calls unauthenticated; missing credentials are a degraded mode, not an
// error.
func WithAPIKey(header string, cred Credential) Option {
	return func(c *Client) {
		c.apiKeys = append(c.apiKeys, apiKeySpec{header: header, cred: cred})
	}
}

// WithUserAgent sets the User-Agent header sent on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.cfg.UserAgent = ua
	}
}

// New creates a Client for the named upstream with default configuration,
// adjusted by options.
func New(name string, opts ...Option) (*Client, error) {
	return NewFromConfig(DefaultConfig(name), opts...)
}

// NewFromConfig creates a Client from a Config.
func NewFromConfig(cfg Config, opts ...Option) (*Client, error) {
	c := &Client{
		cfg:            cfg,
		defaultHeaders: make(http.Header),
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}

	if c.cfg.MaxResponseSize <= 0 {
		c.cfg.MaxResponseSize = DefaultConfig(c.cfg.Name).MaxResponseSize
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	if c.clock == nil {
		c.clock = clock.New()
	}

	if c.httpClient == nil {
		hc := httpclient.DefaultConfig()
		hc.RequestTimeout = c.cfg.RequestTimeout
		hc.KeepAlive = c.cfg.KeepAlive
		hc.MaxIdleConns = c.cfg.MaxIdleConns
		hc.IdleTimeout = c.cfg.IdleTimeout
		c.httpClient = httpclient.New(hc)
	}

	c.bucket = resilience.NewTokenBucket(c.cfg.Name, c.cfg.TokensPerSecond, c.cfg.MaxTokens, c.clock)
	c.cache = respcache.New(c.clock)
	c.breaker = resilience.NewBreaker(resilience.BreakerConfig{
		Name:             c.cfg.Name,
		FailureThreshold: c.cfg.FailureThreshold,
		RecoveryTimeout:  c.cfg.RecoveryTimeout,
		OnStateChange: func(name, from, to string) {
			c.logger.Info("circuit breaker state changed",
				"upstream", name,
				"from", from,
				"to", to,
			)
		},
	})
	c.retry = resilience.RetryConfig{
		MaxRetries: c.cfg.MaxRetries,
		BaseWait:   c.cfg.RetryBaseWait,
		MaxWait:    c.cfg.RetryMaxWait,
		Factor:     c.cfg.RetryFactor,
		Jitter:     c.cfg.RetryJitter,
	}

	for _, spec := range c.apiKeys {
		value, ok := spec.cred.Resolve()
		if !ok {
			c.logger.Warn("credential not set, calling unauthenticated",
				"upstream", c.cfg.Name,
				"credential", spec.cred.Name,
			)
			continue
		}
		c.defaultHeaders.Set(spec.header, value)
		c.secrets = append(c.secrets, value)
	}

	return c, nil
}

// Name returns the logical upstream name.
func (c *Client) Name() string {
	return c.cfg.Name
}

// Close releases idle connections held by the client's transport.
// In-flight requests complete normally or with context errors.
func (c *Client) Close() error {
	if t, ok := c.httpClient.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	return nil
}

// callOptions collects per-call request settings. Transient, never persisted.
type callOptions struct {
	params   url.Values
	headers  http.Header
	ttl      time.Duration
	useCache bool
	cost     float64
}

// CallOption adjusts a single Get call.
type CallOption func(*callOptions)

// WithParams merges query parameters into the request URL.
func WithParams(params url.Values) CallOption {
	return func(o *callOptions) {
		for k, vs := range params {
			for _, v := range vs {
				o.params.Add(k, v)
			}
		}
	}
}

// WithParam adds a single query parameter.
func WithParam(key, value string) CallOption {
	return func(o *callOptions) {
		o.params.Add(key, value)
	}
}

// WithHeader adds a request header for this call only.
func WithHeader(key, value string) CallOption {
	return func(o *callOptions) {
		o.headers.Add(key, value)
	}
}

// WithTTL overrides the client's default cache TTL for this call.
func WithTTL(ttl time.Duration) CallOption {
	return func(o *callOptions) {
		o.ttl = ttl
	}
}

// WithoutCache bypasses the cache entirely: no fresh-hit short circuit, no
// stale fallback, and the response is not stored.
func WithoutCache() CallOption {
	return func(o *callOptions) {
		o.useCache = false
	}
}

// WithCost sets the token cost of this call. Some upstreams weight expensive
// endpoints as several "credits"; costs above the bucket capacity are
// clamped.
func WithCost(cost float64) CallOption {
	return func(o *callOptions) {
		o.cost = cost
	}
}

// Get fetches url through the full pipeline: fresh cache hit, rate-limit
// admission, breaker admission, then the network call with bounded retry.
//
// Get never returns an error. On any failure it returns the last cached
// payload for this URL even if expired, or nil when nothing was ever
// cached, and logs exactly one warning. Callers branch on nil and degrade.
func (c *Client) Get(ctx context.Context, rawURL string, opts ...CallOption) json.RawMessage {
	call := callOptions{
		params:   make(url.Values),
		headers:  make(http.Header),
		ttl:      c.cfg.DefaultTTL,
		useCache: true,
		cost:     1,
	}
	for _, opt := range opts {
		opt(&call)
	}

	fullURL := mergeParams(rawURL, call.params)

	if call.useCache {
		if value, freshness := c.cache.Get(fullURL); freshness == respcache.Fresh {
			return value
		}
	}

	body, err := c.fetch(ctx, fullURL, call)
	if err == nil {
		if call.useCache {
			c.cache.Put(fullURL, body, call.ttl)
		}
		return body
	}

	// Degraded path: one warning per failed call, stale payload if we have one.
	if call.useCache {
		if value, freshness := c.cache.Get(fullURL); freshness != respcache.Missing {
			c.warn("upstream call failed, serving stale cache", fullURL, err)
			return value
		}
	}
	c.warn("upstream call failed, no cached fallback", fullURL, err)
	return nil
}

// GetJSON fetches url via Get and decodes the payload into v. Returns false
// when the upstream is unavailable with no fallback, or when the payload
// does not fit v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any, opts ...CallOption) bool {
	body := c.Get(ctx, rawURL, opts...)
	if body == nil {
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		c.logger.Warn("upstream payload failed to decode",
			"upstream", c.cfg.Name,
			"url", scrub.URL(rawURL),
			"error", err,
		)
		return false
	}
	return true
}

// BreakerState returns the breaker state for dashboards and tests.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// Tokens returns the rate limiter's current token count.
func (c *Client) Tokens() float64 {
	return c.bucket.Tokens()
}

// CacheLen returns the number of cached entries, fresh or stale.
func (c *Client) CacheLen() int {
	return c.cache.Len()
}

// fetch runs admission and the network call, producing either a JSON payload
// or a *CallError. The breaker outcome is recorded for every admitted call,
// including ones cancelled mid-flight.
func (c *Client) fetch(ctx context.Context, fullURL string, call callOptions) (json.RawMessage, error) {
	if err := c.bucket.Acquire(ctx, call.cost); err != nil {
		return nil, newCallError(c.cfg.Name, KindAdmission, 0, fmt.Errorf("%w: %w", ErrRateLimitWait, err))
	}
	if c.shared != nil {
		if err := c.shared.Wait(ctx); err != nil {
			return nil, newCallError(c.cfg.Name, KindAdmission, 0, fmt.Errorf("%w: %w", ErrRateLimitWait, err))
		}
	}

	done, err := c.breaker.Allow()
	if err != nil {
		// Open, or a half-open trial is already in flight.
		return nil, newCallError(c.cfg.Name, KindCircuitOpen, 0, fmt.Errorf("%w: %w", ErrCircuitOpen, err))
	}

	body, err := c.doWithRetry(ctx, fullURL, call.headers)
	done(err == nil)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) doWithRetry(ctx context.Context, fullURL string, headers http.Header) (json.RawMessage, error) {
	var body json.RawMessage

	operation := func() error {
		var err error
		body, err = c.doRequest(ctx, fullURL, headers)
		if err == nil {
			return nil
		}
		var callErr *CallError
		if errors.As(err, &callErr) && !callErr.IsRetryable() {
			return resilience.Permanent(err)
		}
		return err
	}

	if err := c.retry.Retry(ctx, operation); err != nil {
		var callErr *CallError
		if errors.As(err, &callErr) {
			return nil, err
		}
		// Context expiry surfaced by the backoff policy itself.
		return nil, newCallError(c.cfg.Name, KindNetwork, 0, err)
	}
	return body, nil
}

// doRequest performs one network attempt and classifies the outcome.
func (c *Client) doRequest(ctx context.Context, fullURL string, headers http.Header) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, newCallError(c.cfg.Name, KindBadRequest, 0, err)
	}

	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	for k, vs := range c.defaultHeaders {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newCallError(c.cfg.Name, KindNetwork, 0, c.scrubErr(err))
	}
	defer resp.Body.Close()

	// Read one byte past the cap to detect overflow without a false positive
	// on a body of exactly MaxResponseSize.
	limited := io.LimitReader(resp.Body, c.cfg.MaxResponseSize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, newCallError(c.cfg.Name, KindNetwork, 0, c.scrubErr(err))
	}
	if int64(len(body)) > c.cfg.MaxResponseSize {
		return nil, newCallError(c.cfg.Name, KindParse, 0, ErrResponseTooLarge)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newCallError(c.cfg.Name, KindHTTPStatus, resp.StatusCode,
			fmt.Errorf("unexpected status %q", resp.Status))
	}

	if !json.Valid(body) {
		return nil, newCallError(c.cfg.Name, KindParse, 0, errors.New("response body is not valid JSON"))
	}

	return json.RawMessage(body), nil
}

func (c *Client) warn(msg, fullURL string, err error) {
	kind := KindNetwork
	var callErr *CallError
	if errors.As(err, &callErr) {
		kind = callErr.Kind
	}
	c.logger.Warn(msg,
		"upstream", c.cfg.Name,
		"kind", kind.String(),
		"url", scrub.URL(fullURL),
		"error", c.scrubErr(err),
	)
}

func (c *Client) scrubErr(err error) error {
	for _, secret := range c.secrets {
		err = scrub.SecretFromError(err, secret)
	}
	return err
}

// mergeParams folds extra query parameters into rawURL. Encode sorts keys,
// so the merged URL doubles as a stable cache key.
func mergeParams(rawURL string, params url.Values) string {
	if len(params) == 0 {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
