package woocommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"storehub/internal/metrics"
)

const apiPrefix = "/wp-json/wc/v3"

var ErrMissingCredentials = errors.New("woocommerce: store API credentials not configured")

// Webhook is the REST representation of a webhook on the store.
type Webhook struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Status      string `json:"status,omitempty"`
	Topic       string `json:"topic,omitempty"`
	DeliveryURL string `json:"delivery_url,omitempty"`
	Secret      string `json:"secret,omitempty"`
}

// APIError is a non-2xx answer from the store.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("woocommerce: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("woocommerce: %d %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a remote 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsRejection reports whether err is a remote 4xx, i.e. the store refused
// the request rather than failing to answer it.
func IsRejection(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
}

type Credentials struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
}

type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
}

// Client talks to one store's REST API. Calls are throttled by a token
// bucket and bounded by Options.Timeout.
type Client struct {
	creds   Credentials
	http    *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

func NewClient(creds Credentials, opts Options) (*Client, error) {
	if creds.BaseURL == "" || creds.ConsumerKey == "" || creds.ConsumerSecret == "" {
		return nil, ErrMissingCredentials
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	creds.BaseURL = strings.TrimRight(creds.BaseURL, "/")
	return &Client{
		creds:   creds,
		http:    opts.HTTPClient,
		limiter: rate.NewLimiter(limit, burst),
		timeout: opts.Timeout,
	}, nil
}

func (c *Client) CreateWebhook(ctx context.Context, hook Webhook) (*Webhook, error) {
	var out Webhook
	if err := c.do(ctx, "create_webhook", http.MethodPost, "/webhooks", hook, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateWebhook sends only the non-zero fields of hook.
func (c *Client) UpdateWebhook(ctx context.Context, id int64, hook Webhook) (*Webhook, error) {
	hook.ID = 0
	var out Webhook
	if err := c.do(ctx, "update_webhook", http.MethodPut, fmt.Sprintf("/webhooks/%d", id), hook, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetWebhook(ctx context.Context, id int64) (*Webhook, error) {
	var out Webhook
	if err := c.do(ctx, "get_webhook", http.MethodGet, fmt.Sprintf("/webhooks/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteWebhook removes the webhook permanently; the API rejects deletes
// without force=true.
func (c *Client) DeleteWebhook(ctx context.Context, id int64) error {
	return c.do(ctx, "delete_webhook", http.MethodDelete, fmt.Sprintf("/webhooks/%d?force=true", id), nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		metrics.RemoteCalls.WithLabelValues(op, outcome).Inc()
		metrics.RemoteLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("woocommerce: rate limit wait: %w", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.creds.BaseURL+apiPrefix+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.creds.ConsumerKey, c.creds.ConsumerSecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("woocommerce: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var remote struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &remote) == nil && remote.Message != "" {
			apiErr.Code = remote.Code
			apiErr.Message = remote.Message
		}
		return apiErr
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("woocommerce: decode response: %w", err)
		}
	}
	return nil
}
