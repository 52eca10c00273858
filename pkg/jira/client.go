package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client is a thin wrapper over the Jira Cloud REST API (v3). It exposes the
// three verbs the services need and nothing else; endpoint paths are relative
// to /rest/api/3/.
type Client struct {
	baseURL string
	email   string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

// APIError is a non-2xx response from Jira.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira api status=%d body=%s", e.Status, e.Body)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Email   string
	Token   string
	Timeout time.Duration
}

// NewClient creates a Jira REST client using basic auth (email + API token).
func NewClient(opts Options, log zerolog.Logger) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("jira: base URL is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		email:   opts.Email,
		token:   opts.Token,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}, nil
}

// Get issues a GET against endpoint with optional query parameters.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, endpoint, params, nil)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, payload any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, endpoint, nil, payload)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, endpoint string, payload any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPut, endpoint, nil, payload)
}

func (c *Client) apiURL(endpoint string, params url.Values) string {
	u := c.baseURL + "/rest/api/3/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, payload any) (json.RawMessage, error) {
	u := c.apiURL(endpoint, params)

	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("jira: marshal payload for %s: %w", endpoint, err)
		}
		body = b
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		var r io.Reader
		if body != nil {
			r = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, r)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.SetBasicAuth(c.email, c.token)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
		} else {
			out, done, err := readResponse(resp)
			if done {
				if err != nil {
					c.log.Error().Str("method", method).Str("endpoint", endpoint).Err(err).Msg("jira request failed")
				}
				return out, err
			}
			// retryable status (429 / 5xx)
			lastErr = err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(300*(1<<attempt)) * time.Millisecond):
		}
	}
	c.log.Error().Str("method", method).Str("endpoint", endpoint).Err(lastErr).Msg("jira request failed after retries")
	return nil, lastErr
}

// readResponse drains resp and reports whether the attempt is final. Only
// 429 and 5xx are worth retrying.
func readResponse(resp *http.Response) (json.RawMessage, bool, error) {
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, false, apiErr
		}
		return nil, true, apiErr
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, true, nil
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, true, nil
	}
	return json.RawMessage(b), true, nil
}
