package onboarding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// APIError is a non-2xx reply from the onboarding service. Detail carries the
// service's own error message when it sent one.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("onboarding api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("onboarding api: status %d: %s", e.StatusCode, e.Detail)
}

// Client talks to the remote onboarding service over HTTP.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	log     zerolog.Logger

	// onUnauthorized is invoked once per 401 reply so the owning process can
	// clear stale credentials. The controller never special-cases auth errors.
	onUnauthorized func()
}

type ClientOption func(*Client)

func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.client = hc }
}

func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

func WithUnauthorizedHook(fn func()) ClientOption {
	return func(c *Client) { c.onUnauthorized = fn }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartSession starts a new onboarding session or resumes the existing one
// for the given user identifier.
func (c *Client) StartSession(ctx context.Context, req StartRequest) (*StepResponse, error) {
	var resp StepResponse
	if err := c.post(ctx, "/api/onboarding/start", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitStep submits one turn (free text or a quick-reply payload).
func (c *Client) SubmitStep(ctx context.Context, req StepRequest) (*StepResponse, error) {
	var resp StepResponse
	if err := c.post(ctx, "/api/onboarding/step", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status is a read-only session lookup, not part of the turn loop.
func (c *Client) Status(ctx context.Context, sessionID string) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.get(ctx, "/api/onboarding/status/"+url.PathEscape(sessionID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FindSession looks up an existing session by user identifier, for
// cross-channel continuity.
func (c *Client) FindSession(ctx context.Context, userIdentifier string) (*FindResponse, error) {
	var resp FindResponse
	if err := c.get(ctx, "/api/onboarding/find/"+url.PathEscape(userIdentifier), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
		c.log.Warn().
			Str("path", req.URL.Path).
			Int("status", resp.StatusCode).
			Str("detail", apiErr.Detail).
			Msg("onboarding api error")
		if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return apiErr
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// readDetail extracts the service's {"detail": ...} error body. Falls back to
// the raw body for anything that is not that shape.
func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Detail != "" {
		return body.Detail
	}
	return strings.TrimSpace(string(raw))
}
