// Package api is the HTTP client for the timer server: the record list under
// /time and the cookie session behind /login and /logout.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// Record is a completed timing session held by the server.
type Record struct {
	ID   string `json:"_id"`
	Time int64  `json:"time"` // milliseconds
}

// Elapsed returns the record's duration.
func (r Record) Elapsed() time.Duration {
	return time.Duration(r.Time) * time.Millisecond
}

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ListResponse is the body of GET /time.
type ListResponse struct {
	Times []Record `json:"times"`
}

// CreateRequest is the body of POST /time.
type CreateRequest struct {
	Time int64 `json:"time"`
}

// maxErrorBody bounds how much of an error response is kept in ServerError.
const maxErrorBody = 512

// Client talks to the timer server. It keeps the session cookie between calls.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient creates a client for the server at baseURL. A timeout of 0 means
// requests never time out on their own.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("server url %q: missing scheme or host", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return &Client{
		base: u,
		http: &http.Client{Jar: jar, Timeout: timeout},
	}, nil
}

// Login posts credentials to /login.
func (c *Client) Login(ctx context.Context, creds Credentials) error {
	return c.do(ctx, "login", http.MethodPost, "/login", creds, nil)
}

// Logout posts to /logout.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, "logout", http.MethodPost, "/logout", nil, nil)
}

// ListRecords fetches the full record list in server order.
func (c *Client) ListRecords(ctx context.Context) ([]Record, error) {
	var resp ListResponse
	if err := c.do(ctx, "list records", http.MethodGet, "/time", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Times == nil {
		resp.Times = []Record{}
	}
	return resp.Times, nil
}

// CreateRecord submits a new record with the given elapsed time.
func (c *Client) CreateRecord(ctx context.Context, elapsed time.Duration) error {
	return c.do(ctx, "create record", http.MethodPost, "/time", CreateRequest{Time: elapsed.Milliseconds()}, nil)
}

// DeleteRecord removes the record with the given id.
func (c *Client) DeleteRecord(ctx context.Context, id string) error {
	return c.do(ctx, "delete record", http.MethodDelete, "/time/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if out != nil {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &ServerError{Op: op, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// A 2xx whose body is unreadable is treated as a bad server reply.
		return &ServerError{Op: op, StatusCode: resp.StatusCode, Message: "decode response: " + err.Error()}
	}
	return nil
}
