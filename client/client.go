// Package client calls the GhostTalk HTTP API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/ghosttalk/ghosttalk/models"
)

// DefaultListRetries matches the board UI: a failed listing is retried twice.
const DefaultListRetries = 2

// Error is a non-success envelope returned by the API.
type Error struct {
	Status  int
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("ghosttalk: %d %s (code %d)", e.Status, e.Message, e.Code)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client talks to one GhostTalk server. Reads retry; writes never do, since
// a retried create or reply could land twice.
type Client struct {
	baseURL string
	read    *retryablehttp.Client
	write   *retryablehttp.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying transport client for both reads and writes.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.read.HTTPClient = hc
		c.write.HTTPClient = hc
	}
}

// WithListRetries overrides how often ListPosts retries.
func WithListRetries(n int) Option {
	return func(c *Client) { c.read.RetryMax = n }
}

// WithRetryWait bounds the backoff between read retries.
func WithRetryWait(min, max time.Duration) Option {
	return func(c *Client) {
		c.read.RetryWaitMin = min
		c.read.RetryWaitMax = max
	}
}

// New creates a client for baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		read:    newRetryClient(DefaultListRetries),
		write:   newRetryClient(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newRetryClient(retries int) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	// hand back the final response so the envelope message survives
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return rc
}

// CreatePost publishes a new post.
func (c *Client) CreatePost(ctx context.Context, content string) (*models.Post, error) {
	var out struct {
		Post models.Post `json:"post"`
	}
	if err := c.do(ctx, c.write, http.MethodPost, "/api/v1/posts", map[string]string{"content": content}, &out); err != nil {
		return nil, err
	}
	return &out.Post, nil
}

// ListPosts returns all posts, newest first.
func (c *Client) ListPosts(ctx context.Context) ([]models.Post, error) {
	var out struct {
		Items []models.Post `json:"items"`
	}
	if err := c.do(ctx, c.read, http.MethodGet, "/api/v1/posts", nil, &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []models.Post{}
	}
	return out.Items, nil
}

// AddReply appends a reply to post postID.
func (c *Client) AddReply(ctx context.Context, postID int64, reply string) (*models.Post, error) {
	var out struct {
		Post models.Post `json:"post"`
	}
	path := fmt.Sprintf("/api/v1/posts/%d/replies", postID)
	if err := c.do(ctx, c.write, http.MethodPost, path, map[string]string{"reply": reply}, &out); err != nil {
		return nil, err
	}
	return &out.Post, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, hc *retryablehttp.Client, method, path string, body, out interface{}) error {
	var payload interface{}
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("backend unavailable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if resp.StatusCode >= 300 || env.Code != 0 {
		return &Error{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
