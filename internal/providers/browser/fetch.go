package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const (
	// DefaultUserAgent is a current desktop Chrome string.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// MaxBodySize limits fetched documents to 10MB
	MaxBodySize = 10 * 1024 * 1024
)

// Kind classifies a fetch failure.
type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindNotFound   Kind = "dns-not-found"
	KindRefused    Kind = "connection-refused"
	KindHTTPStatus Kind = "upstream-http-error"
	KindTooLarge   Kind = "body-too-large"
	KindNetwork    Kind = "network-error"
	KindCanceled   Kind = "canceled"
)

// FetchError describes why a fetch produced no content.
type FetchError struct {
	Kind       Kind
	Status     int
	StatusText string
	URL        string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("fetch %s: HTTP %d %s", e.URL, e.Status, e.StatusText)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf returns the fetch failure kind of err, or "" if err is not a *FetchError.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Page is a retrieved document.
type Page struct {
	URL         *url.URL
	FinalURL    string
	Status      int
	ContentType string
	Body        []byte
}

// Fetcher retrieves a single document.
type Fetcher interface {
	Fetch(ctx context.Context, target string) (*Page, error)
}

// Config configures the outbound client.
type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	UserAgent    string
	MaxBodySize  int64
	// CheckRedirect, when set, vets every redirect hop. A non-nil error
	// aborts the fetch and is reachable through errors.Is / errors.As.
	CheckRedirect func(next *url.URL) error
}

// DefaultConfig returns the standard fetch settings.
func DefaultConfig() Config {
	return Config{
		Timeout:      10 * time.Second,
		MaxRedirects: 5,
		UserAgent:    DefaultUserAgent,
		MaxBodySize:  MaxBodySize,
	}
}

// Client fetches pages with browser-like headers and no internal retries.
type Client struct {
	resty   *resty.Client
	maxBody int64
	logger  *zap.Logger
}

// NewClient creates the outbound client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 5
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = MaxBodySize
	}

	// Pooled transport only; retries belong to the fallback strategy.
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.Logger = nil

	policies := []interface{}{resty.FlexibleRedirectPolicy(cfg.MaxRedirects)}
	if cfg.CheckRedirect != nil {
		check := cfg.CheckRedirect
		policies = append(policies, resty.RedirectPolicyFunc(func(req *http.Request, _ []*http.Request) error {
			return check(req.URL)
		}))
	}

	// Accept-Encoding is left to the transport so gzip is decoded transparently.
	restyClient := resty.New().
		SetTransport(retryClient.HTTPClient.Transport).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetRedirectPolicy(policies...).
		SetHeaders(map[string]string{
			"User-Agent":                cfg.UserAgent,
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Language":           "en-US,en;q=0.5",
			"Upgrade-Insecure-Requests": "1",
		})

	return &Client{
		resty:   restyClient,
		maxBody: cfg.MaxBodySize,
		logger:  logger,
	}
}

// Fetch performs one GET. Statuses of 400 and above are failures.
func (c *Client) Fetch(ctx context.Context, target string) (*Page, error) {
	start := time.Now()

	resp, err := c.resty.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(target)
	if err != nil {
		fe := classify(target, err)
		c.logger.Warn("Fetch failed",
			zap.String("url", target),
			zap.String("kind", string(fe.Kind)),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, fe
	}

	raw := resp.RawBody()
	defer raw.Close()

	status := resp.StatusCode()
	if status >= 400 {
		// drain a little so the connection can be reused
		_, _ = io.CopyN(io.Discard, raw, 4096)
		c.logger.Warn("Upstream returned error status",
			zap.String("url", target),
			zap.Int("status", status))
		return nil, &FetchError{
			Kind:       KindHTTPStatus,
			Status:     status,
			StatusText: http.StatusText(status),
			URL:        target,
		}
	}

	body, err := io.ReadAll(io.LimitReader(raw, c.maxBody+1))
	if err != nil {
		return nil, classify(target, err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, &FetchError{
			Kind: KindTooLarge,
			URL:  target,
			Err:  fmt.Errorf("document exceeds %d bytes", c.maxBody),
		}
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = mimetype.Detect(body).String()
	}

	final := target
	if req := resp.RawResponse.Request; req != nil && req.URL != nil {
		final = req.URL.String()
	}
	finalURL, err := url.Parse(final)
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, URL: target, Err: err}
	}

	c.logger.Debug("Fetched page",
		zap.String("url", target),
		zap.String("final_url", final),
		zap.Int("status", status),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)))

	return &Page{
		URL:         finalURL,
		FinalURL:    final,
		Status:      status,
		ContentType: contentType,
		Body:        body,
	}, nil
}

func classify(target string, err error) *FetchError {
	fe := &FetchError{Kind: KindNetwork, URL: target, Err: err}

	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		fe.Kind = KindCanceled
	case errors.As(err, &dnsErr) && !dnsErr.IsTimeout:
		fe.Kind = KindNotFound
	case errors.Is(err, syscall.ECONNREFUSED):
		fe.Kind = KindRefused
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		fe.Kind = KindTimeout
	}
	return fe
}
