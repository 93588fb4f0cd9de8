package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	retry "github.com/avast/retry-go/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/mediahub/internal/domain"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	MobileUserAgent  = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1"

	defaultTimeout  = 10 * time.Second
	defaultAttempts = 3
	defaultDelay    = 500 * time.Millisecond
	maxBodySize     = 8 << 20
)

// Kind is the sniffed shape of a response body.
type Kind int

const (
	KindOther Kind = iota
	KindHTML
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindHTML:
		return "html"
	case KindJSON:
		return "json"
	}
	return "other"
}

// Response is a fully read 2xx response.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	Kind        Kind
}

// Client issues GET requests for one source with its own user agent,
// timeouts, retry budget and rate limit.
type Client struct {
	source     domain.SourceType
	log        zerolog.Logger
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	attempts   uint
	delay      time.Duration
	limiter    *rate.Limiter
	headers    http.Header
	redacted   []string
}

// Option configures a Client.
type Option func(*Client)

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTimeout sets the connect and read timeouts.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetry sets the total attempts for a request and the base backoff delay.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if delay >= 0 {
			c.delay = delay
		}
	}
}

// WithRateLimit caps requests per second. Zero disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRedactedParams hides query parameters such as api keys in errors and logs.
func WithRedactedParams(params ...string) Option {
	return func(c *Client) {
		c.redacted = append(c.redacted, params...)
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

func NewClient(source domain.SourceType, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		source:    source,
		log:       log.With().Str("module", "fetch").Str("source", string(source)).Logger(),
		userAgent: DefaultUserAgent,
		timeout:   defaultTimeout,
		attempts:  defaultAttempts,
		delay:     defaultDelay,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		headers:   http.Header{},
	}
	c.headers.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   c.timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   c.timeout,
				ResponseHeaderTimeout: c.timeout,
				MaxIdleConnsPerHost:   4,
				IdleConnTimeout:       90 * time.Second,
			},
			Timeout: 2 * c.timeout,
		}
	}

	return c
}

func (c *Client) Source() domain.SourceType { return c.source }

func (c *Client) UserAgent() string { return c.userAgent }

func (c *Client) Timeout() time.Duration { return c.timeout }

// SafeURL returns raw with redacted query parameters masked.
func (c *Client) SafeURL(raw string) string {
	if len(c.redacted) == 0 {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	masked := false
	for _, p := range c.redacted {
		if q.Has(p) {
			q.Set(p, "REDACTED")
			masked = true
		}
	}
	if !masked {
		return raw
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Get fetches url, retrying transport failures and 5xx/429 responses.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	var resp *Response

	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			r, err := c.do(ctx, rawURL)
			if err != nil {
				return err
			}
			resp = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			c.log.Debug().Err(err).Uint("attempt", n+1).Str("url", c.SafeURL(rawURL)).Msg("retrying request")
		}),
	)
	if err != nil {
		var te *domain.TransportError
		if errors.As(err, &te) {
			return nil, te
		}
		return nil, &domain.TransportError{Source: c.source, URL: c.SafeURL(rawURL), Err: err}
	}

	return resp, nil
}

func (c *Client) do(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, retry.Unrecoverable(&domain.TransportError{Source: c.source, URL: c.SafeURL(rawURL), Err: errors.Wrap(err, "failed to create request")})
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}
	req.Header.Set("User-Agent", c.userAgent)

	c.log.Trace().Str("url", c.SafeURL(rawURL)).Msg("GET")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Source: c.source, URL: c.SafeURL(rawURL), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &domain.TransportError{Source: c.source, URL: c.SafeURL(rawURL), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &domain.TransportError{Source: c.source, URL: c.SafeURL(rawURL), Err: errors.Wrap(err, "failed to read response body")}
	}

	ct := resp.Header.Get("Content-Type")
	return &Response{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: ct,
		Body:        body,
		Kind:        sniff(body, ct),
	}, nil
}

// Document fetches an HTML page, decoding legacy charsets to UTF-8.
func (c *Client) Document(ctx context.Context, rawURL string) (*goquery.Document, error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if resp.Kind != KindHTML {
		return nil, &domain.ParseError{Source: c.source, URL: c.SafeURL(rawURL), Err: errors.Errorf("expected html, got %s", resp.Kind)}
	}

	var r io.Reader = bytes.NewReader(resp.Body)
	if cr, err := charset.NewReader(r, resp.ContentType); err == nil {
		r = cr
	} else {
		c.log.Debug().Err(err).Str("content_type", resp.ContentType).Msg("charset detection failed, assuming utf-8")
		r = bytes.NewReader(resp.Body)
	}

	node, err := html.Parse(r)
	if err != nil {
		return nil, &domain.ParseError{Source: c.source, URL: c.SafeURL(rawURL), Err: errors.Wrap(err, "failed to parse html")}
	}

	doc := goquery.NewDocumentFromNode(node)
	if u, err := url.Parse(resp.URL); err == nil {
		doc.Url = u
	}
	return doc, nil
}

// JSON fetches url and decodes a JSON body into v.
func (c *Client) JSON(ctx context.Context, rawURL string, v any) error {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if resp.Kind != KindJSON {
		return &domain.ParseError{Source: c.source, URL: c.SafeURL(rawURL), Err: errors.Errorf("expected json, got %s", resp.Kind)}
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return &domain.ParseError{Source: c.source, URL: c.SafeURL(rawURL), Err: errors.Wrap(err, "failed to unmarshal response")}
	}
	return nil
}

// Transport returns a round tripper that binds requests to ctx and the
// client's rate limit and retry policy, for collectors that build their own
// requests. Only bodiless GET and HEAD requests are retried.
func (c *Client) Transport(ctx context.Context) http.RoundTripper {
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &boundTransport{client: c, ctx: ctx, base: base}
}

type boundTransport struct {
	client *Client
	ctx    context.Context
	base   http.RoundTripper
}

func (t *boundTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c := t.client

	r := req.Clone(t.ctx)
	if r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", c.userAgent)
	}

	attempts := c.attempts
	if !replayable(r) {
		attempts = 1
	}

	var (
		resp *http.Response
		n    uint
	)
	err := retry.Do(
		func() error {
			n++
			if err := c.limiter.Wait(t.ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			res, err := t.base.RoundTrip(r)
			if err != nil {
				return err
			}
			if n < attempts && (res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests) {
				_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 64<<10))
				res.Body.Close()
				return &domain.TransportError{Source: c.source, URL: c.SafeURL(r.URL.String()), StatusCode: res.StatusCode}
			}
			resp = res
			return nil
		},
		retry.Context(t.ctx),
		retry.Attempts(attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			c.log.Debug().Err(err).Uint("attempt", n+1).Str("url", c.SafeURL(r.URL.String())).Msg("retrying request")
		}),
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func replayable(r *http.Request) bool {
	return (r.Method == http.MethodGet || r.Method == http.MethodHead) && (r.Body == nil || r.Body == http.NoBody)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *domain.TransportError
	if errors.As(err, &te) && te.StatusCode != 0 {
		return te.StatusCode >= 500 || te.StatusCode == http.StatusTooManyRequests
	}
	return true
}

func sniff(body []byte, contentType string) Kind {
	mt := mimetype.Detect(body)
	ct := strings.ToLower(contentType)

	switch {
	case mt.Is("application/json"):
		return KindJSON
	case strings.Contains(ct, "json") && json.Valid(body):
		return KindJSON
	case mt.Is("text/html"), strings.Contains(ct, "html"):
		return KindHTML
	}
	return KindOther
}

// QueryEscape encodes a keyword for a query string.
func QueryEscape(s string) string {
	return url.QueryEscape(s)
}

// PathEscape encodes a keyword for a path segment.
func PathEscape(s string) string {
	return url.PathEscape(s)
}
